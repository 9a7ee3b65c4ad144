package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"example.com/marketplace/pkg/events"
	"example.com/marketplace/pkg/logger"
	"example.com/marketplace/services/marketplace/internal/domain"
	"example.com/marketplace/services/marketplace/internal/repository"
)

// Причины отказа по умолчанию.
const (
	ApplicationRejectionReason = "Not eligible yet"
	AdRejectionReason          = "Rejected by admin review"
)

// =============================================================================
// Подача
// =============================================================================

// ApplicationRequest — заявка на статус продавца.
type ApplicationRequest struct {
	StoreName           string
	BusinessDescription string
	ContactPhone        string
	BusinessImageURL    string
	Method              domain.PaymentMethod
	PayNow              bool
}

// SubmitApplication создаёт или обновляет заявку и при PayNow открывает оплату взноса.
func (s *Engine) SubmitApplication(ctx context.Context, actor domain.Actor, req ApplicationRequest) (*Outcome, error) {
	if actor.ID == "" {
		return nil, domain.ErrUnauthorized
	}
	if strings.TrimSpace(req.StoreName) == "" {
		return nil, domain.Invalid("store_name", "обязательное поле")
	}

	if err := s.catalog.EnsureProfile(ctx, actor.ID, actor.Email, actor.Role); err != nil {
		return nil, err
	}

	app, err := s.repo.SubmitApplication(ctx, repository.NewApplication{
		UserID:              actor.ID,
		StoreName:           strings.TrimSpace(req.StoreName),
		BusinessDescription: strings.TrimSpace(req.BusinessDescription),
		ContactPhone:        strings.TrimSpace(req.ContactPhone),
		BusinessImageURL:    strings.TrimSpace(req.BusinessImageURL),
		Method:              req.Method,
		Fee:                 s.opts.ApplicationFee,
		Currency:            s.opts.FeeCurrency,
	})
	if err != nil {
		return nil, err
	}

	logger.Ctx(ctx).Info().Str("application_id", app.ID).Str("status", string(app.Status)).Msg("Заявка продавца подана")

	if !req.PayNow || !app.PaymentMethod.Upfront() {
		return &Outcome{Entity: app, Applied: true}, nil
	}
	return s.initiate(ctx, actor, app)
}

// AdRequest — рекламная кампания покупателя.
type AdRequest struct {
	Title       string
	Description string
	TargetURL   string
	ImageURL    string
	Budget      decimal.Decimal
	Method      domain.PaymentMethod
}

// CreateAd создаёт кампанию (только роль buyer) и для оплаты через шлюз сразу открывает сессию.
func (s *Engine) CreateAd(ctx context.Context, actor domain.Actor, req AdRequest) (*Outcome, error) {
	if actor.ID == "" || actor.Role != domain.RoleBuyer {
		return nil, domain.ErrUnauthorized
	}
	switch {
	case strings.TrimSpace(req.Title) == "":
		return nil, domain.Invalid("title", "обязательное поле")
	case strings.TrimSpace(req.Description) == "":
		return nil, domain.Invalid("description", "обязательное поле")
	case strings.TrimSpace(req.TargetURL) == "":
		return nil, domain.Invalid("target_url", "обязательное поле")
	}
	if !req.Budget.IsPositive() {
		return nil, domain.Invalid("budget", "должен быть положительным")
	}

	ad, err := s.repo.CreateAd(ctx, repository.NewAd{
		SellerID:    actor.ID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		TargetURL:   strings.TrimSpace(req.TargetURL),
		ImageURL:    strings.TrimSpace(req.ImageURL),
		Budget:      req.Budget,
		Currency:    s.opts.AdCurrency,
		Method:      req.Method,
	})
	if err != nil {
		return nil, err
	}

	logger.Ctx(ctx).Info().Str("ad_id", ad.ID).Str("budget", ad.Amount.String()).Msg("Рекламная кампания создана")

	if !req.Method.Upfront() {
		return &Outcome{Entity: ad, Applied: true}, nil
	}
	return s.initiate(ctx, actor, ad)
}

// =============================================================================
// Решения администратора
// =============================================================================

// Approve одобряет заявку или кампанию.
//
// Заявку можно одобрить без оплаты: неоплаченный взнос списывается, владелец
// становится продавцом, витрина копируется в профиль. Кампанию без оплаты
// одобрить нельзя: владелец получает напоминание, возвращается ErrPaymentRequired.
func (s *Engine) Approve(ctx context.Context, actor domain.Actor, kind domain.Kind, id string) (*Outcome, error) {
	out, err := s.reconcile(ctx, "approve", s.byID(kind, id), func(e *domain.PayableEntity) (*repository.Change, error) {
		if err := domain.Authorize(actor, domain.ActionApprove, e); err != nil {
			return nil, err
		}
		switch e.Status {
		case domain.StatusApproved:
			return nil, domain.ErrAlreadyInTargetState
		case domain.StatusRejected:
			return nil, domain.ErrIllegalTransition
		}

		ch := &repository.Change{
			Status: domain.StatusApproved,
			Review: &repository.Review{By: actor.ID},
		}
		if e.Kind == domain.KindAdCampaign {
			if !e.PaymentState.Settled() {
				return nil, domain.ErrPaymentRequired
			}
		} else {
			if !e.PaymentState.Settled() {
				ch.PaymentState = domain.PaymentWaived
			}
			ch.Profile = domain.PromoteToSeller(e)
		}
		ch.Events = []*events.PayableEvent{newEvent(events.ListingApproved, e, actor, ch.Status, ch.PaymentState)}
		return ch, nil
	})

	if errors.Is(err, domain.ErrPaymentRequired) && out != nil {
		ev := newEvent(events.ListingPaymentRequired, out.Entity, actor, "", "")
		if emitErr := s.repo.EmitEvents(ctx, ev); emitErr != nil {
			logger.Ctx(ctx).Error().Err(emitErr).Str("entity_id", id).Msg("Не удалось записать напоминание об оплате")
		}
	}
	return out, err
}

// Reject отклоняет заявку или кампанию. reason пустой — причина по умолчанию.
func (s *Engine) Reject(ctx context.Context, actor domain.Actor, kind domain.Kind, id, reason string) (*Outcome, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = AdRejectionReason
		if kind == domain.KindSellerApplication {
			reason = ApplicationRejectionReason
		}
	}

	lc := domain.LifecycleOf(kind)
	return s.reconcile(ctx, "reject", s.byID(kind, id), func(e *domain.PayableEntity) (*repository.Change, error) {
		if err := domain.Authorize(actor, domain.ActionReject, e); err != nil {
			return nil, err
		}
		if err := lc.Check(e.Status, domain.StatusRejected); err != nil {
			return nil, err
		}

		ch := &repository.Change{
			Status: domain.StatusRejected,
			Review: &repository.Review{By: actor.ID, RejectionReason: reason},
		}
		if e.Kind == domain.KindSellerApplication {
			ch.Profile = domain.RevokeVerification(e)
		}
		ev := newEvent(events.ListingRejected, e, actor, ch.Status, "")
		ev.Reason = reason
		ch.Events = []*events.PayableEvent{ev}
		return ch, nil
	})
}

// Waive списывает оплату. Заявка переходит на рассмотрение, кампания
// сразу одобряется.
func (s *Engine) Waive(ctx context.Context, actor domain.Actor, kind domain.Kind, id string) (*Outcome, error) {
	lc := domain.LifecycleOf(kind)

	return s.reconcile(ctx, "waive", s.byID(kind, id), func(e *domain.PayableEntity) (*repository.Change, error) {
		if err := domain.Authorize(actor, domain.ActionWaive, e); err != nil {
			return nil, err
		}

		if e.Kind == domain.KindSellerApplication {
			if e.PaymentState.Settled() {
				return nil, domain.ErrAlreadyInTargetState
			}
			if lc.IsTerminal(e.Status) {
				return nil, domain.ErrIllegalTransition
			}
			ch := &repository.Change{PaymentState: domain.PaymentWaived, Status: lc.Settled(e.Status)}
			ch.Events = []*events.PayableEvent{newEvent(events.ListingPaymentWaived, e, actor, ch.Status, ch.PaymentState)}
			return ch, nil
		}

		if e.Status == domain.StatusRejected {
			return nil, domain.ErrIllegalTransition
		}
		if e.Status == domain.StatusApproved && e.PaymentState.Settled() {
			return nil, domain.ErrAlreadyInTargetState
		}

		ch := &repository.Change{Status: domain.StatusApproved, Review: &repository.Review{By: actor.ID}}
		typ := events.ListingApproved
		if !e.PaymentState.Settled() {
			ch.PaymentState = domain.PaymentWaived
			typ = events.ListingPaymentWaived
		}
		ch.Events = []*events.PayableEvent{newEvent(typ, e, actor, ch.Status, ch.PaymentState)}
		return ch, nil
	})
}

// DemandPayment сбрасывает незавершённую попытку оплаты в unpaid, чтобы
// владелец оплатил заново, и отправляет ему напоминание. Повтор по уже
// неоплаченной сущности только повторяет напоминание.
func (s *Engine) DemandPayment(ctx context.Context, actor domain.Actor, kind domain.Kind, id string) (*Outcome, error) {
	lc := domain.LifecycleOf(kind)

	out, err := s.reconcile(ctx, "demand_payment", s.byID(kind, id), func(e *domain.PayableEntity) (*repository.Change, error) {
		if err := domain.Authorize(actor, domain.ActionDemandPayment, e); err != nil {
			return nil, err
		}
		if e.PaymentState.Settled() || lc.IsTerminal(e.Status) {
			return nil, domain.ErrIllegalTransition
		}
		if e.PaymentState == domain.PaymentUnpaid {
			return nil, domain.ErrAlreadyInTargetState
		}
		ch := &repository.Change{PaymentState: domain.PaymentUnpaid}
		ch.Events = []*events.PayableEvent{newEvent(events.ListingPaymentDemanded, e, actor, "", ch.PaymentState)}
		return ch, nil
	})
	if err != nil {
		return out, err
	}

	if !out.Applied {
		ev := newEvent(events.ListingPaymentDemanded, out.Entity, actor, "", "")
		if err := s.repo.EmitEvents(ctx, ev); err != nil {
			return nil, err
		}
	}
	return out, nil
}
