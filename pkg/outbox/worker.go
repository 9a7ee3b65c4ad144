package outbox

import (
	"context"
	"time"

	"example.com/marketplace/pkg/kafka"
	"example.com/marketplace/pkg/logger"
)

// KafkaProducer — то, что нужно воркеру от kafka.Producer.
type KafkaProducer interface {
	SendMessage(ctx context.Context, msg *kafka.Message) error
}

// WorkerConfig — настройки Worker.
type WorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxRetries   int // после этого запись уходит в dead letter
	Retention    time.Duration
}

// DefaultWorkerConfig — опрос раз в секунду, 100 записей, 5 попыток, хранение 7 дней.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		PollInterval: time.Second,
		BatchSize:    100,
		MaxRetries:   5,
		Retention:    7 * 24 * time.Hour,
	}
}

const cleanupInterval = time.Hour

// Worker публикует outbox в Kafka с гарантией at-least-once.
type Worker struct {
	repo     Repository
	producer KafkaProducer
	cfg      WorkerConfig
}

// NewWorker создаёт Worker.
func NewWorker(repo Repository, producer KafkaProducer, cfg WorkerConfig) *Worker {
	return &Worker{repo: repo, producer: producer, cfg: cfg}
}

// Run блокирует до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info().
		Dur("poll_interval", w.cfg.PollInterval).
		Int("batch_size", w.cfg.BatchSize).
		Msg("Запуск Outbox Worker")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	cleanup := time.NewTicker(cleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Остановка Outbox Worker")
			return
		case <-ticker.C:
			w.Flush(ctx)
		case <-cleanup.C:
			w.purge(ctx)
		}
	}
}

// Flush отправляет одну пачку. Возвращает число опубликованных записей.
func (w *Worker) Flush(ctx context.Context) int {
	log := logger.FromContext(ctx)

	records, err := w.repo.Pending(ctx, w.cfg.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("Ошибка чтения outbox")
		return 0
	}

	sent := 0
	for _, rec := range records {
		if ctx.Err() != nil {
			return sent
		}

		if rec.RetryCount >= w.cfg.MaxRetries {
			log.Warn().
				Str("outbox_id", rec.ID).
				Str("event_type", rec.EventType).
				Str("aggregate_id", rec.AggregateID).
				Int("retry_count", rec.RetryCount).
				Msg("Dead letter: превышен лимит попыток, запись выведена из очереди")
			if err := w.repo.MarkDead(ctx, rec.ID); err != nil {
				log.Error().Err(err).Str("outbox_id", rec.ID).Msg("Ошибка пометки dead letter")
			}
			continue
		}

		if err := w.Publish(ctx, rec); err != nil {
			continue
		}
		sent++
	}
	return sent
}

// Publish отправляет одну запись и фиксирует результат.
func (w *Worker) Publish(ctx context.Context, rec *Record) error {
	log := logger.FromContext(ctx)

	headers := make(map[string]string, len(rec.Headers)+1)
	for k, v := range rec.Headers {
		headers[k] = v
	}
	headers[kafka.HeaderEventType] = rec.EventType

	msg := &kafka.Message{
		Topic:   rec.Topic,
		Key:     []byte(rec.MessageKey),
		Value:   rec.Payload,
		Headers: headers,
	}
	if err := w.producer.SendMessage(ctx, msg); err != nil {
		log.Error().Err(err).Str("outbox_id", rec.ID).Str("topic", rec.Topic).Msg("Ошибка отправки в Kafka")
		if markErr := w.repo.MarkFailed(ctx, rec.ID, err); markErr != nil {
			log.Error().Err(markErr).Str("outbox_id", rec.ID).Msg("Ошибка пометки outbox как failed")
		}
		return err
	}

	if err := w.repo.MarkProcessed(ctx, rec.ID); err != nil {
		// Запись уйдёт повторно; notifier идемпотентен по id события.
		log.Error().Err(err).Str("outbox_id", rec.ID).Msg("Ошибка пометки outbox как обработанной")
		return err
	}
	return nil
}

func (w *Worker) purge(ctx context.Context) {
	deleted, err := w.repo.PurgeProcessedBefore(ctx, time.Now().UTC().Add(-w.cfg.Retention))
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("Ошибка очистки outbox")
		return
	}
	if deleted > 0 {
		logger.Ctx(ctx).Info().Int64("deleted", deleted).Msg("Очистка обработанных записей outbox")
	}
}
