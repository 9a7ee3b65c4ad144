// Package repository — хранилище переписок и уведомлений notifier.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/marketplace/services/notifier/internal/domain"
)

// Repository записывает результат обработки события.
type Repository interface {
	// Save применяет план в одной транзакции и возвращает уведомления,
	// которые были созданы сейчас. Повтор того же eventID ничего не создаёт.
	Save(ctx context.Context, eventID string, plan *domain.Plan) ([]domain.Notification, error)

	// ListForUser — последние уведомления пользователя, новые первыми.
	ListForUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository создаёт Repository на GORM.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Save(ctx context.Context, eventID string, plan *domain.Plan) ([]domain.Notification, error) {
	var created []domain.Notification

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		if plan.Chat != nil {
			if err := saveMessage(tx, eventID, plan.Chat, now); err != nil {
				return err
			}
		}

		for _, n := range plan.Notifications {
			m := &NotificationModel{
				ID:        uuid.NewString(),
				UserID:    n.UserID,
				SenderID:  optional(n.SenderID),
				Title:     n.Title,
				Body:      n.Body,
				Type:      n.Type,
				EventID:   optional(eventID),
				CreatedAt: now,
			}
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "event_id"}, {Name: "user_id"}},
				DoNothing: true,
			}).Create(m)
			if res.Error != nil {
				return fmt.Errorf("ошибка записи уведомления: %w", res.Error)
			}
			if res.RowsAffected == 1 {
				created = append(created, m.toDomain())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// saveMessage находит или создаёт переписку и добавляет в неё сообщение.
func saveMessage(tx *gorm.DB, eventID string, msg *domain.ChatMessage, now time.Time) error {
	conv := &ConversationModel{
		ID:        uuid.NewString(),
		BuyerID:   msg.BuyerID,
		SellerID:  msg.SellerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "buyer_id"}, {Name: "seller_id"}},
		DoNothing: true,
	}).Create(conv).Error
	if err != nil {
		return fmt.Errorf("ошибка создания переписки: %w", err)
	}
	// При конфликте вставка пропущена: id берём у существующей строки.
	var existing ConversationModel
	if err := tx.Where("buyer_id = ? AND seller_id = ?", msg.BuyerID, msg.SellerID).First(&existing).Error; err != nil {
		return fmt.Errorf("ошибка чтения переписки: %w", err)
	}

	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&MessageModel{
		ID:             uuid.NewString(),
		ConversationID: existing.ID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		EventID:        optional(eventID),
		CreatedAt:      now,
	}).Error
	if err != nil {
		return fmt.Errorf("ошибка записи сообщения: %w", err)
	}

	return tx.Model(&ConversationModel{}).Where("id = ?", existing.ID).Update("updated_at", now).Error
}

func (r *repository) ListForUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var models []NotificationModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения уведомлений: %w", err)
	}

	out := make([]domain.Notification, 0, len(models))
	for i := range models {
		out = append(out, models[i].toDomain())
	}
	return out, nil
}
