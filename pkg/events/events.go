// Package events — контракт событий платёжных сущностей между marketplace
// (пишет через outbox) и notifier (читает из Kafka). Единый источник типов
// для обеих сторон.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Type — тип события.
type Type string

const (
	// OrderStatusChanged — продавец (или платформа) продвинул заказ.
	OrderStatusChanged Type = "order.status_changed"
	// PaymentReceived — вебхук подтвердил оплату.
	PaymentReceived Type = "payment.received"
	// ListingApproved — заявка продавца или рекламная кампания одобрена.
	ListingApproved Type = "listing.approved"
	// ListingRejected — отклонена администратором.
	ListingRejected Type = "listing.rejected"
	// ListingPaymentWaived — оплата отменена администратором.
	ListingPaymentWaived Type = "listing.payment_waived"
	// ListingPaymentDemanded — администратор потребовал оплату повторно.
	ListingPaymentDemanded Type = "listing.payment_demanded"
	// ListingPaymentRequired — одобрение отклонено: кампания не оплачена.
	ListingPaymentRequired Type = "listing.payment_required"
)

// Known сообщает, знает ли notifier такой тип.
func (t Type) Known() bool {
	switch t {
	case OrderStatusChanged, PaymentReceived, ListingApproved, ListingRejected,
		ListingPaymentWaived, ListingPaymentDemanded, ListingPaymentRequired:
		return true
	}
	return false
}

// PayableEvent — payload сообщения в топике payable.events.
type PayableEvent struct {
	ID             string    `json:"id"`
	Type           Type      `json:"type"`
	Kind           string    `json:"kind"`
	EntityID       string    `json:"entity_id"`
	OwnerID        string    `json:"owner_id"`
	CounterpartyID string    `json:"counterparty_id,omitempty"`
	ActorID        string    `json:"actor_id,omitempty"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	PaymentState   string    `json:"payment_state"`
	Title          string    `json:"title,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Validate проверяет обязательные поля перед обработкой.
func (e *PayableEvent) Validate() error {
	switch {
	case e.ID == "":
		return errors.New("событие без id")
	case !e.Type.Known():
		return fmt.Errorf("неизвестный тип события %q", e.Type)
	case e.EntityID == "" || e.OwnerID == "":
		return fmt.Errorf("событие %s без сущности или владельца", e.ID)
	case e.Type == OrderStatusChanged && e.CounterpartyID == "":
		return fmt.Errorf("событие заказа %s без продавца", e.ID)
	}
	return nil
}

// Decode разбирает и валидирует payload.
func Decode(data []byte) (*PayableEvent, error) {
	var e PayableEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("ошибка разбора события: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
