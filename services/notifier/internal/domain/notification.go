// Package domain — уведомления и сообщения чата, которые notifier создаёт
// по событиям платёжных сущностей.
package domain

import "time"

// Тип уведомления определяет иконку и раздел в колокольчике.
const (
	TypeOrder        = "order"
	TypePayment      = "payment"
	TypeAnnouncement = "announcement"
)

// Notification — запись в ленте пользователя.
type Notification struct {
	ID        string
	EventID   string
	UserID    string
	SenderID  string
	Title     string
	Body      string
	Type      string
	IsRead    bool
	CreatedAt time.Time
}

// ChatMessage — сообщение в переписке покупателя и продавца.
// Переписка создаётся при первом сообщении.
type ChatMessage struct {
	BuyerID  string
	SellerID string
	SenderID string
	Content  string
}

// Plan — что нужно записать по одному событию.
type Plan struct {
	Chat          *ChatMessage
	Notifications []Notification
}

// Empty — событие ничего не порождает.
func (p *Plan) Empty() bool {
	return p == nil || (p.Chat == nil && len(p.Notifications) == 0)
}
