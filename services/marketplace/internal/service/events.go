package service

import (
	"time"

	"github.com/google/uuid"

	"example.com/marketplace/pkg/events"
	"example.com/marketplace/services/marketplace/internal/domain"
)

// newEvent описывает переход сущности e в состояние (status, payment).
func newEvent(typ events.Type, e *domain.PayableEntity, actor domain.Actor, status domain.Status, payment domain.PaymentState) *events.PayableEvent {
	return &events.PayableEvent{
		ID:             uuid.NewString(),
		Type:           typ,
		Kind:           string(e.Kind),
		EntityID:       e.ID,
		OwnerID:        e.OwnerID,
		CounterpartyID: e.CounterpartyID,
		ActorID:        actor.ID,
		Status:         string(orStatus(status, e.Status)),
		PreviousStatus: string(e.Status),
		PaymentState:   string(orPayment(payment, e.PaymentState)),
		Title:          e.Title(),
		OccurredAt:     time.Now().UTC(),
	}
}
