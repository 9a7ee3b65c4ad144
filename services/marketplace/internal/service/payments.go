package service

import (
	"context"
	"errors"
	"fmt"

	"example.com/marketplace/pkg/circuitbreaker"
	"example.com/marketplace/pkg/logger"
	"example.com/marketplace/pkg/metrics"
	"example.com/marketplace/services/marketplace/internal/domain"
	"example.com/marketplace/services/marketplace/internal/payment"
	"example.com/marketplace/services/marketplace/internal/reference"
	"example.com/marketplace/services/marketplace/internal/repository"
)

// Pay повторно открывает платёжную сессию для неоплаченной сущности.
func (s *Engine) Pay(ctx context.Context, actor domain.Actor, kind domain.Kind, id string) (*Outcome, error) {
	e, err := s.repo.FindByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if err := domain.Authorize(actor, domain.ActionInitiatePayment, e); err != nil {
		return nil, err
	}
	return s.initiate(ctx, actor, e)
}

// canInitiate — можно ли открыть новую сессию. Ссылка на сущность неизменна,
// поэтому повтор возможен только там, где провайдер принимает нашу ссылку
// (мобильные деньги), либо пока ссылки ещё нет.
func canInitiate(e *domain.PayableEntity) error {
	if e.PaymentState.Settled() {
		return domain.ErrAlreadyInTargetState
	}
	if !e.PaymentMethod.Upfront() {
		return domain.ErrIllegalTransition
	}
	entry := domain.LifecycleOf(e.Kind).Entry(e.PaymentMethod)
	if e.Status != entry {
		return domain.ErrIllegalTransition
	}
	if e.PaymentReference != nil && e.PaymentMethod != domain.MethodMobileMoney {
		return domain.ErrIllegalTransition
	}
	return nil
}

// initiate вызывает шлюз и только после успеха сохраняет ссылку
// и состояние pending. При отказе шлюза сущность не меняется.
func (s *Engine) initiate(ctx context.Context, actor domain.Actor, e *domain.PayableEntity) (*Outcome, error) {
	log := logger.Ctx(ctx).With().Str("kind", string(e.Kind)).Str("entity_id", e.ID).
		Str("method", string(e.PaymentMethod)).Logger()

	if err := canInitiate(e); err != nil {
		if errors.Is(err, domain.ErrAlreadyInTargetState) {
			return &Outcome{Entity: e}, nil
		}
		return &Outcome{Entity: e}, err
	}

	gw, err := s.gateways.Gateway(e.PaymentMethod)
	if err != nil {
		metrics.PaymentInitiations.WithLabelValues(string(e.PaymentMethod), "unavailable").Inc()
		return &Outcome{Entity: e}, err
	}

	entityRef, err := reference.Encode(e.Kind, e.ID)
	if err != nil {
		return nil, err
	}

	session, err := gw.Initiate(ctx, s.checkout(e, actor, entityRef))
	if err != nil {
		result := "failed"
		if errors.Is(err, circuitbreaker.ErrOpen) {
			result = "breaker_open"
		}
		metrics.PaymentInitiations.WithLabelValues(string(e.PaymentMethod), result).Inc()
		log.Warn().Err(err).Str("gateway", gw.Name()).Msg("Шлюз не создал платёжную сессию")
		return &Outcome{Entity: e}, fmt.Errorf("%w: %s: %v", domain.ErrPaymentInitiationFailed, gw.Name(), err)
	}
	metrics.PaymentInitiations.WithLabelValues(string(e.PaymentMethod), "created").Inc()

	if session.Immediate || session.Reference == "" {
		return &Outcome{Entity: e}, nil
	}

	out, err := s.reconcile(ctx, "initiate", s.byID(e.Kind, e.ID), func(cur *domain.PayableEntity) (*repository.Change, error) {
		if err := canInitiate(cur); err != nil {
			return nil, err
		}
		if cur.PaymentReference != nil && *cur.PaymentReference != session.Reference {
			return nil, domain.ErrIllegalTransition
		}
		return &repository.Change{PaymentState: domain.PaymentPending, Reference: session.Reference}, nil
	})
	if err != nil {
		log.Error().Err(err).Str("reference", session.Reference).Msg("Сессия создана, но ссылка не сохранена")
		return out, err
	}

	log.Info().Str("gateway", gw.Name()).Str("reference", session.Reference).Msg("Платёжная сессия создана")
	out.RedirectURL = session.RedirectURL
	return out, nil
}

// checkout описывает оплату для шлюза.
func (s *Engine) checkout(e *domain.PayableEntity, actor domain.Actor, entityRef string) payment.Checkout {
	c := payment.Checkout{
		Kind:       e.Kind,
		EntityID:   e.ID,
		Reference:  entityRef,
		Amount:     e.Amount,
		Currency:   e.Currency,
		Quantity:   1,
		PayerEmail: actor.Email,
	}

	site := s.opts.SiteURL
	switch e.Kind {
	case domain.KindOrder:
		c.Description = e.Order.ProductTitle
		c.Quantity = e.Order.Quantity
		c.SuccessURL = site + "/orders?paid=1"
		c.CancelURL = site + "/checkout?cancelled=1"
	case domain.KindSellerApplication:
		c.Description = "Seller Application Fee"
		c.SuccessURL = site + "/seller/apply?feePaid=1"
		c.CancelURL = site + "/seller/apply?feeCancelled=1"
	case domain.KindAdCampaign:
		c.Description = "Ad campaign: " + e.Ad.Title
		c.SuccessURL = site + "/seller/ads?paid=1"
		c.CancelURL = site + "/seller/ads?cancelled=1"
	}
	return c
}
