// Package consumer читает payable.events и превращает события в сообщения
// чата, уведомления и push-задачи.
package consumer

import (
	"context"
	"fmt"

	"example.com/marketplace/pkg/events"
	"example.com/marketplace/pkg/kafka"
	"example.com/marketplace/pkg/logger"
	"example.com/marketplace/pkg/metrics"
	"example.com/marketplace/services/notifier/internal/push"
	"example.com/marketplace/services/notifier/internal/render"
	"example.com/marketplace/services/notifier/internal/repository"
)

// Результаты обработки для notifications_emitted_total.
const (
	resultCreated    = "created"
	resultDuplicate  = "duplicate"
	resultSkipped    = "skipped"
	resultMalformed  = "malformed"
	resultFailed     = "failed"
	resultPushFailed = "push_failed"
)

// Handler обрабатывает события платёжных сущностей.
type Handler struct {
	repo   repository.Repository
	pusher push.Pusher
}

// NewHandler создаёт Handler. pusher может быть push.Nop.
func NewHandler(repo repository.Repository, pusher push.Pusher) *Handler {
	return &Handler{repo: repo, pusher: pusher}
}

// Run читает топик до отмены ctx.
func (h *Handler) Run(ctx context.Context, c *kafka.Consumer, maxRetries int) error {
	logger.Info().Msg("Запуск обработчика событий платёжных сущностей")
	return c.Consume(ctx, h.Handle, maxRetries)
}

// Handle обрабатывает одно сообщение. Ошибка возвращается только при сбое
// хранилища: тогда Consumer повторит обработку и, исчерпав попытки,
// отправит сообщение в DLQ.
func (h *Handler) Handle(ctx context.Context, msg *kafka.Message) error {
	log := logger.Ctx(ctx)

	ev, err := events.Decode(msg.Value)
	if err != nil {
		// Битое сообщение повторять бесполезно.
		log.Error().Err(err).Str("key", string(msg.Key)).Msg("Ошибка разбора события")
		metrics.RecordNotification("unknown", resultMalformed)
		return nil
	}

	l := log.With().
		Str("event_id", ev.ID).
		Str("event_type", string(ev.Type)).
		Str("kind", ev.Kind).
		Str("entity_id", ev.EntityID).
		Logger()

	plan := render.Render(ev)
	if plan.Empty() {
		l.Debug().Str("status", ev.Status).Msg("Событие не порождает уведомлений")
		metrics.RecordNotification(string(ev.Type), resultSkipped)
		return nil
	}

	created, err := h.repo.Save(ctx, ev.ID, plan)
	if err != nil {
		metrics.RecordNotification(string(ev.Type), resultFailed)
		return fmt.Errorf("событие %s: %w", ev.ID, err)
	}
	if len(created) == 0 {
		l.Info().Msg("Событие уже обработано")
		metrics.RecordNotification(string(ev.Type), resultDuplicate)
		return nil
	}

	for _, n := range created {
		metrics.RecordNotification(string(ev.Type), resultCreated)
		// Уведомление уже в ленте; push без гарантии доставки.
		if err := h.pusher.Push(ctx, push.JobFromNotification(n)); err != nil {
			l.Warn().Err(err).Str("notification_id", n.ID).Msg("Не удалось отправить push")
			metrics.RecordNotification(string(ev.Type), resultPushFailed)
		}
	}

	l.Info().
		Int("notifications", len(created)).
		Bool("chat", plan.Chat != nil).
		Msg("Уведомления созданы")
	return nil
}
