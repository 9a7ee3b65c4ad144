package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"example.com/marketplace/pkg/events"
	"example.com/marketplace/pkg/logger"
	"example.com/marketplace/pkg/metrics"
	"example.com/marketplace/services/marketplace/internal/domain"
	"example.com/marketplace/services/marketplace/internal/payment"
	"example.com/marketplace/services/marketplace/internal/reference"
	"example.com/marketplace/services/marketplace/internal/repository"
)

// ErrUnknownProvider — вебхук пришёл на провайдера, которого нет в реестре.
var ErrUnknownProvider = errors.New("неизвестный платёжный провайдер")

const webhookKeyPrefix = "webhook:"

// Исходы обработки вебхука.
const (
	WebhookApplied   = "applied"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
	WebhookRejected  = "rejected"
	WebhookFailed    = "failed"
)

// WebhookResult — что сделано с вебхуком. Любой результат без ошибки
// подтверждается провайдеру, чтобы он прекратил повторы.
type WebhookResult struct {
	Outcome  string
	EntityID string
	Kind     domain.Kind
	Reason   string
}

// HandleWebhook проверяет подпись, отсеивает повторы и применяет оплату.
//
// Ошибка возвращается только в двух случаях: подпись не прошла
// (domain.ErrInvalidSignature) или хранилище недоступно. Бизнес-отказы
// (ссылка не разбирается, сущность не найдена, переход запрещён)
// логируются и подтверждаются.
func (s *Engine) HandleWebhook(ctx context.Context, provider string, header http.Header, body []byte) (*WebhookResult, error) {
	log := logger.Ctx(ctx).With().Str("provider", provider).Logger()

	src, ok := s.gateways.Webhook(provider)
	if !ok {
		return nil, ErrUnknownProvider
	}

	ev, err := src.ParseWebhook(ctx, header, body)
	switch {
	case errors.Is(err, domain.ErrInvalidSignature):
		metrics.RecordWebhook(provider, WebhookRejected)
		log.Warn().Err(err).Msg("Вебхук с невалидной подписью")
		return nil, err
	case errors.Is(err, domain.ErrMalformedReference):
		metrics.RecordWebhook(provider, WebhookIgnored)
		log.Warn().Err(err).Msg("Вебхук без разбираемой ссылки")
		return &WebhookResult{Outcome: WebhookIgnored, Reason: err.Error()}, nil
	case err != nil:
		metrics.RecordWebhook(provider, WebhookFailed)
		return nil, err
	}

	log = log.With().Str("event_id", ev.ID).Str("event_type", ev.Type).Str("reference", ev.Reference).Logger()

	if !ev.Successful {
		metrics.RecordWebhook(provider, WebhookIgnored)
		log.Info().Msg("Событие не подтверждает оплату, пропускаем")
		return &WebhookResult{Outcome: WebhookIgnored, Reason: "not a successful payment"}, nil
	}

	key := webhookKeyPrefix + provider + ":" + ev.ID
	if ev.ID != "" && s.redis != nil {
		fresh, err := s.redis.SetNX(ctx, key, "1", s.opts.DedupeTTL).Result()
		if err != nil {
			// Повтор всё равно станет no-op на условном UPDATE.
			log.Warn().Err(err).Msg("Redis недоступен, дедупликация вебхука пропущена")
		} else if !fresh {
			metrics.RecordWebhook(provider, WebhookDuplicate)
			log.Info().Msg("Повтор вебхука")
			return &WebhookResult{Outcome: WebhookDuplicate}, nil
		}
	}

	res, err := s.settle(ctx, ev)
	if err != nil {
		if ev.ID != "" && s.redis != nil {
			if delErr := s.redis.Del(context.WithoutCancel(ctx), key).Err(); delErr != nil {
				log.Warn().Err(delErr).Msg("Не удалось снять ключ дедупликации")
			}
		}
		metrics.RecordWebhook(provider, WebhookFailed)
		log.Error().Err(err).Msg("Ошибка применения вебхука")
		return nil, err
	}

	metrics.RecordWebhook(provider, res.Outcome)
	log.Info().Str("outcome", res.Outcome).Str("entity_id", res.EntityID).Str("reason", res.Reason).Msg("Вебхук обработан")
	return res, nil
}

// settle находит сущность по ссылке и переводит её оплату в paid.
func (s *Engine) settle(ctx context.Context, ev *payment.Event) (*WebhookResult, error) {
	candidates := reference.Candidates(ev.Reference)
	if len(candidates) == 0 && ev.Hint == "" {
		return &WebhookResult{Outcome: WebhookIgnored, Reason: "пустая ссылка"}, nil
	}

	var kinds []domain.Kind
	if d, err := reference.Decode(ev.Reference); err == nil {
		kinds = []domain.Kind{d.Kind}
	}

	target, err := s.repo.FindByReference(ctx, candidates, kinds...)
	storeRef := ""
	if errors.Is(err, domain.ErrEntityNotFound) {
		target, storeRef, err = s.resolveHint(ctx, ev)
	}
	if err != nil {
		if isBusinessRefusal(err) {
			return &WebhookResult{Outcome: WebhookIgnored, Reason: err.Error()}, nil
		}
		return nil, err
	}

	out, err := s.reconcile(ctx, "paid", s.byID(target.Kind, target.ID), func(e *domain.PayableEntity) (*repository.Change, error) {
		if e.PaymentState.Settled() {
			return nil, domain.ErrAlreadyInTargetState
		}
		if e.PaymentReference != nil && !slices.Contains(candidates, *e.PaymentReference) {
			return nil, fmt.Errorf("%w: ссылка сущности %s не совпадает с вебхуком", domain.ErrMalformedReference, e.ID)
		}

		status := domain.LifecycleOf(e.Kind).Settled(e.Status)
		ch := &repository.Change{Status: status, PaymentState: domain.PaymentPaid, Reference: storeRef}
		ch.Events = []*events.PayableEvent{newEvent(events.PaymentReceived, e, domain.Actor{}, status, domain.PaymentPaid)}
		return ch, nil
	})

	res := &WebhookResult{Kind: target.Kind, EntityID: target.ID}
	switch {
	case err != nil && isBusinessRefusal(err):
		res.Outcome = WebhookIgnored
		res.Reason = err.Error()
		return res, nil
	case err != nil:
		return nil, err
	case out.Applied:
		res.Outcome = WebhookApplied
	default:
		res.Outcome = WebhookDuplicate
	}
	return res, nil
}

// resolveHint ищет сущность по эху ссылки на сущность, когда по ссылке сессии
// ничего не нашлось (ссылка не успела сохраниться после создания сессии).
// Возвращает ссылку, которую нужно записать на сущность.
func (s *Engine) resolveHint(ctx context.Context, ev *payment.Event) (*domain.PayableEntity, string, error) {
	if ev.Hint == "" {
		return nil, "", domain.ErrEntityNotFound
	}
	d, err := reference.Decode(ev.Hint)
	if err != nil {
		return nil, "", err
	}
	if d.Form != reference.FormEntity {
		return nil, "", fmt.Errorf("%w: подсказка не ссылка на сущность", domain.ErrMalformedReference)
	}

	e, err := s.repo.FindByID(ctx, d.Kind, d.Value)
	if err != nil {
		return nil, "", err
	}

	storeRef := ev.Reference
	if _, err := reference.Decode(ev.Reference); err != nil {
		if storeRef, err = reference.EncodeSession(d.Kind, ev.Reference); err != nil {
			return nil, "", err
		}
	}
	return e, storeRef, nil
}

// isBusinessRefusal — отказ, который подтверждается провайдеру без повтора.
func isBusinessRefusal(err error) bool {
	return errors.Is(err, domain.ErrEntityNotFound) ||
		errors.Is(err, domain.ErrMalformedReference) ||
		errors.Is(err, domain.ErrIllegalTransition) ||
		errors.Is(err, domain.ErrUnauthorized) ||
		domain.IsValidation(err)
}
