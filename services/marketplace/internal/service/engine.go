// Package service — движок сверки: применяет действия акторов и вебхуки
// провайдеров к платёжным сущностям с проверкой прав, таблицы переходов
// и идемпотентности.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"example.com/marketplace/pkg/logger"
	"example.com/marketplace/pkg/metrics"
	"example.com/marketplace/services/marketplace/internal/domain"
	"example.com/marketplace/services/marketplace/internal/payment"
	"example.com/marketplace/services/marketplace/internal/repository"
)

// =============================================================================
// Конфигурация
// =============================================================================

// Options — параметры движка.
type Options struct {
	SiteURL        string
	ApplicationFee decimal.Decimal
	FeeCurrency    string
	AdCurrency     string

	// MaxAttempts — сколько раз перечитать снимок, если строку изменили
	// параллельно.
	MaxAttempts int

	// DedupeTTL — сколько помнить id обработанных событий провайдеров.
	DedupeTTL time.Duration
}

// DefaultOptions — значения по умолчанию.
func DefaultOptions() Options {
	return Options{
		SiteURL:        "http://localhost:3000",
		ApplicationFee: decimal.NewFromInt(10000),
		FeeCurrency:    "XAF",
		AdCurrency:     "XAF",
		MaxAttempts:    5,
		DedupeTTL:      24 * time.Hour,
	}
}

// =============================================================================
// Результат
// =============================================================================

// Outcome — итог операции над сущностью.
type Outcome struct {
	Entity *domain.PayableEntity

	// Applied — строка изменена. false — идемпотентный повтор.
	Applied bool

	// RedirectURL — куда отправить пользователя для оплаты.
	RedirectURL string
}

// =============================================================================
// Движок
// =============================================================================

// Engine — единая точка изменения платёжных сущностей.
type Engine struct {
	repo     repository.PayableRepository
	catalog  repository.CatalogRepository
	gateways *payment.Registry
	redis    redis.UniversalClient
	opts     Options
}

// NewEngine создаёт движок. redis может быть nil: тогда вебхуки
// не дедуплицируются и защищены только условным UPDATE.
func NewEngine(repo repository.PayableRepository, catalog repository.CatalogRepository, gateways *payment.Registry, rdb redis.UniversalClient, opts Options) *Engine {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Engine{repo: repo, catalog: catalog, gateways: gateways, redis: rdb, opts: opts}
}

// decideFunc по снимку решает, что менять. nil Change — менять нечего.
type decideFunc func(e *domain.PayableEntity) (*repository.Change, error)

// loadFunc читает актуальный снимок.
type loadFunc func(ctx context.Context) (*domain.PayableEntity, error)

// reconcile — цикл оптимистичной конкуренции: прочитать снимок, решить,
// применить условным UPDATE. Если строку изменили между чтением и записью,
// решение принимается заново по свежему снимку. При отказе вместе с ошибкой
// возвращается снимок, по которому принято решение.
func (s *Engine) reconcile(ctx context.Context, op string, load loadFunc, decide decideFunc) (*Outcome, error) {
	log := logger.Ctx(ctx)

	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		e, err := load(ctx)
		if err != nil {
			return nil, err
		}

		ch, err := decide(e)
		switch {
		case errors.Is(err, domain.ErrAlreadyInTargetState):
			metrics.RecordTransition(string(e.Kind), op, "noop")
			return &Outcome{Entity: e}, nil
		case err != nil:
			metrics.RecordTransition(string(e.Kind), op, "refused")
			log.Info().Err(err).Str("kind", string(e.Kind)).Str("entity_id", e.ID).Str("op", op).
				Msg("Переход отклонён")
			return &Outcome{Entity: e}, err
		case ch == nil:
			metrics.RecordTransition(string(e.Kind), op, "noop")
			return &Outcome{Entity: e}, nil
		}

		ch.Snapshot = e
		err = s.repo.Apply(ctx, ch)
		if errors.Is(err, repository.ErrStale) {
			log.Debug().Str("entity_id", e.ID).Int("attempt", attempt).Msg("Снимок устарел, перечитываем")
			continue
		}
		if err != nil {
			metrics.RecordTransition(string(e.Kind), op, "error")
			return nil, err
		}

		metrics.RecordTransition(string(e.Kind), op, "applied")
		log.Info().Str("kind", string(e.Kind)).Str("entity_id", e.ID).Str("op", op).
			Str("status", string(e.Status)).Str("to_status", string(orStatus(ch.Status, e.Status))).
			Str("payment_state", string(orPayment(ch.PaymentState, e.PaymentState))).
			Msg("Переход применён")
		return &Outcome{Entity: applied(e, ch), Applied: true}, nil
	}

	metrics.RecordTransition("unknown", op, "error")
	return nil, fmt.Errorf("%w: %s", domain.ErrConcurrentUpdate, op)
}

// byID — загрузка по виду и id.
func (s *Engine) byID(kind domain.Kind, id string) loadFunc {
	return func(ctx context.Context) (*domain.PayableEntity, error) {
		return s.repo.FindByID(ctx, kind, id)
	}
}

// applied возвращает копию снимка с применёнными изменениями.
func applied(e *domain.PayableEntity, ch *repository.Change) *domain.PayableEntity {
	out := *e
	out.Status = orStatus(ch.Status, e.Status)
	out.PaymentState = orPayment(ch.PaymentState, e.PaymentState)
	if ch.Reference != "" && e.PaymentReference == nil {
		ref := ch.Reference
		out.PaymentReference = &ref
	}
	now := time.Now().UTC()
	if out.PaymentState == domain.PaymentPaid && e.PaymentState != domain.PaymentPaid {
		out.PaidAt = &now
	}
	out.UpdatedAt = now
	return &out
}

func orStatus(s, fallback domain.Status) domain.Status {
	if s == "" {
		return fallback
	}
	return s
}

func orPayment(p, fallback domain.PaymentState) domain.PaymentState {
	if p == "" {
		return fallback
	}
	return p
}

// Get возвращает сущность, если актор может её видеть.
func (s *Engine) Get(ctx context.Context, actor domain.Actor, kind domain.Kind, id string) (*domain.PayableEntity, error) {
	e, err := s.repo.FindByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if err := domain.Authorize(actor, domain.ActionView, e); err != nil {
		return nil, err
	}
	return e, nil
}
