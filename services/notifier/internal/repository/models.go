package repository

import (
	"time"

	"example.com/marketplace/services/notifier/internal/domain"
)

// ConversationModel — таблица conversations, одна переписка на пару покупатель–продавец.
type ConversationModel struct {
	ID        string    `gorm:"column:id;type:varchar(36);primaryKey"`
	BuyerID   string    `gorm:"column:buyer_id;type:varchar(36);not null;uniqueIndex:idx_conversations_pair"`
	SellerID  string    `gorm:"column:seller_id;type:varchar(36);not null;uniqueIndex:idx_conversations_pair"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName возвращает имя таблицы в БД.
func (ConversationModel) TableName() string { return "conversations" }

// MessageModel — таблица messages. event_id делает повторную доставку события безопасной.
type MessageModel struct {
	ID             string    `gorm:"column:id;type:varchar(36);primaryKey"`
	ConversationID string    `gorm:"column:conversation_id;type:varchar(36);not null;index"`
	SenderID       string    `gorm:"column:sender_id;type:varchar(36);not null"`
	Content        string    `gorm:"column:content;type:text;not null"`
	EventID        *string   `gorm:"column:event_id;type:varchar(36);uniqueIndex"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

// TableName возвращает имя таблицы в БД.
func (MessageModel) TableName() string { return "messages" }

// NotificationModel — таблица notifications.
type NotificationModel struct {
	ID        string    `gorm:"column:id;type:varchar(36);primaryKey"`
	UserID    string    `gorm:"column:user_id;type:varchar(36);not null;index;uniqueIndex:idx_notifications_event_user"`
	SenderID  *string   `gorm:"column:sender_id;type:varchar(36)"`
	Title     string    `gorm:"column:title;type:varchar(255);not null"`
	Body      string    `gorm:"column:body;type:text;not null"`
	Type      string    `gorm:"column:type;type:varchar(32);not null"`
	IsRead    bool      `gorm:"column:is_read;not null;default:false"`
	EventID   *string   `gorm:"column:event_id;type:varchar(36);uniqueIndex:idx_notifications_event_user"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// TableName возвращает имя таблицы в БД.
func (NotificationModel) TableName() string { return "notifications" }

func (m *NotificationModel) toDomain() domain.Notification {
	n := domain.Notification{
		ID:        m.ID,
		UserID:    m.UserID,
		Title:     m.Title,
		Body:      m.Body,
		Type:      m.Type,
		IsRead:    m.IsRead,
		CreatedAt: m.CreatedAt,
	}
	if m.SenderID != nil {
		n.SenderID = *m.SenderID
	}
	if m.EventID != nil {
		n.EventID = *m.EventID
	}
	return n
}

// Models — все модели notifier для AutoMigrate.
func Models() []any {
	return []any{&ConversationModel{}, &MessageModel{}, &NotificationModel{}}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
