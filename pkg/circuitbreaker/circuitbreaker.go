// Package circuitbreaker защищает вызовы внешних сервисов (платёжные шлюзы,
// очередь push-уведомлений) от каскадных сбоев.
//
// Breaker размыкается только на инфраструктурных ошибках (таймаут, 5xx, обрыв
// соединения). Отказ провайдера по существу запроса (4xx, невалидная сумма)
// оборачивается в Permanent и на состояние breaker не влияет.
package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"example.com/marketplace/pkg/logger"
)

// ErrOpen возвращается без обращения к сервису, пока breaker разомкнут.
var ErrOpen = errors.New("внешний сервис временно недоступен (circuit breaker open)")

// Settings — настройки Circuit Breaker.
type Settings struct {
	MaxRequests  uint32        // запросов в Half-Open
	Interval     time.Duration // сброс счётчиков в Closed
	Timeout      time.Duration // время в Open до Half-Open
	FailureRatio float64       // доля ошибок для размыкания
	MinRequests  uint32        // минимум запросов для расчёта доли
}

// DefaultSettings — значения для внешних платёжных API.
func DefaultSettings() Settings {
	return Settings{
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// permanentError — ошибка, которую breaker считает успешным обменом.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent помечает ошибку как бизнес-отказ провайдера.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent сообщает, была ли ошибка помечена через Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Breaker — обёртка над gobreaker с логированием смены состояния.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

// New создаёт Breaker с настройками по умолчанию.
func New(name string) *Breaker {
	return NewWithSettings(name, DefaultSettings())
}

// NewWithSettings создаёт Breaker с пользовательскими настройками.
func NewWithSettings(name string, s Settings) *Breaker {
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsPermanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log := logger.With().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Logger()
			switch to {
			case gobreaker.StateOpen:
				log.Warn().Msg("Circuit Breaker ОТКРЫТ — шлюз недоступен")
			case gobreaker.StateHalfOpen:
				log.Info().Msg("Circuit Breaker ПОЛУОТКРЫТ — пробуем восстановить")
			case gobreaker.StateClosed:
				log.Info().Msg("Circuit Breaker ЗАКРЫТ — шлюз восстановлен")
			}
		},
	})
	return &Breaker{cb: cb, name: name}
}

// Execute выполняет fn через breaker. Ошибка fn возвращается как есть
// (Permanent-обёртка снимается вызывающим через errors.Is/As).
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrOpen
	}
	return err
}

// State возвращает текущее состояние.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Name возвращает имя breaker.
func (b *Breaker) Name() string {
	return b.name
}
