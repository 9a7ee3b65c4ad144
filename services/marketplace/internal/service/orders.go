package service

import (
	"context"
	"strings"

	"example.com/marketplace/pkg/events"
	"example.com/marketplace/pkg/logger"
	"example.com/marketplace/services/marketplace/internal/domain"
	"example.com/marketplace/services/marketplace/internal/repository"
)

// CreateOrderRequest — оформление заказа покупателем.
type CreateOrderRequest struct {
	ProductID       string
	Quantity        int
	Method          domain.PaymentMethod
	ShippingAddress string
}

// CreateOrder резервирует товар, создаёт заказ и, для оплаты через шлюз,
// открывает платёжную сессию. Если шлюз отказал, заказ остаётся неоплаченным
// и возвращается вместе с ErrPaymentInitiationFailed: оплату можно повторить.
func (s *Engine) CreateOrder(ctx context.Context, actor domain.Actor, req CreateOrderRequest) (*Outcome, error) {
	if actor.ID == "" {
		return nil, domain.ErrUnauthorized
	}
	if strings.TrimSpace(req.ProductID) == "" {
		return nil, domain.Invalid("product_id", "обязательное поле")
	}
	if req.Quantity < 1 {
		return nil, domain.Invalid("quantity", "должно быть не меньше 1")
	}

	order, err := s.repo.CreateOrder(ctx, repository.NewOrder{
		BuyerID:         actor.ID,
		ProductID:       req.ProductID,
		Quantity:        req.Quantity,
		Method:          req.Method,
		ShippingAddress: strings.TrimSpace(req.ShippingAddress),
	})
	if err != nil {
		return nil, err
	}

	logger.Ctx(ctx).Info().
		Str("order_id", order.ID).
		Str("product_id", req.ProductID).
		Int("quantity", req.Quantity).
		Str("status", string(order.Status)).
		Msg("Заказ создан")

	if !req.Method.Upfront() {
		return &Outcome{Entity: order, Applied: true}, nil
	}
	return s.initiate(ctx, actor, order)
}

// AdvanceOrder переводит заказ по таблице переходов от имени продавца
// (или администратора для товаров платформы). paid актор выставить не может:
// это делает только вебхук.
func (s *Engine) AdvanceOrder(ctx context.Context, actor domain.Actor, orderID string, to domain.Status) (*Outcome, error) {
	lc := domain.LifecycleOf(domain.KindOrder)

	return s.reconcile(ctx, "advance:"+string(to), s.byID(domain.KindOrder, orderID), func(e *domain.PayableEntity) (*repository.Change, error) {
		if err := domain.Authorize(actor, domain.ActionAdvanceOrder, e); err != nil {
			return nil, err
		}
		if to == domain.StatusPaid {
			return nil, domain.ErrIllegalTransition
		}
		if err := lc.Check(e.Status, to); err != nil {
			return nil, err
		}
		return &repository.Change{
			Status: to,
			Events: []*events.PayableEvent{newEvent(events.OrderStatusChanged, e, actor, to, "")},
		}, nil
	})
}
