package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/marketplace/pkg/logger"
)

// MessageHandler обрабатывает одно сообщение. ctx несёт trace_id и correlation_id.
type MessageHandler func(ctx context.Context, msg *Message) error

// DLQSender — куда отправлять сообщения, исчерпавшие попытки.
type DLQSender interface {
	SendToDLQ(ctx context.Context, original *Message, processingErr error) error
}

// Consumer читает топик в составе consumer group и коммитит offset вручную
// после обработки (или после отправки в DLQ).
type Consumer struct {
	reader *kafka.Reader
	dlq    DLQSender
	topic  string
}

// NewConsumer создаёт Consumer для топика.
func NewConsumer(cfg Config, topic string) (*Consumer, error) {
	switch {
	case len(cfg.Brokers) == 0:
		return nil, errors.New("не указаны брокеры Kafka")
	case topic == "":
		return nil, errors.New("не указан топик")
	case cfg.ConsumerGroup == "":
		return nil, errors.New("не указан group ID")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    topic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  100 * time.Millisecond,
		// Новая группа читает с начала: уведомления за время простоя не теряются.
		StartOffset: kafka.FirstOffset,
	})

	logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", topic).
		Str("group_id", cfg.ConsumerGroup).
		Msg("Создан Kafka Consumer")

	return &Consumer{reader: reader, topic: topic}, nil
}

// SetDLQ подключает отправку необработанных сообщений в DLQ.
func (c *Consumer) SetDLQ(dlq DLQSender) {
	c.dlq = dlq
}

// Consume читает сообщения до отмены ctx. Каждое сообщение обрабатывается
// с повторами (maxRetries), затем offset коммитится.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler, maxRetries int) error {
	logger.Info().Str("topic", c.topic).Msg("Запуск чтения сообщений из Kafka")

	for {
		km, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				logger.Info().Str("topic", c.topic).Msg("Остановка Consumer")
				return err
			}
			logger.Error().Err(err).Str("topic", c.topic).Msg("Ошибка чтения сообщения из Kafka")
			continue
		}
		msg := fromKafkaMessage(km)
		msgCtx := contextFromMessage(ctx, msg)

		if err := handleWithRetry(msgCtx, msg, handler, maxRetries); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			logger.Error().Err(err).
				Str("key", string(msg.Key)).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("Ошибка обработки сообщения")
			if c.dlq != nil {
				if dlqErr := c.dlq.SendToDLQ(msgCtx, msg, err); dlqErr != nil {
					// Без DLQ не коммитим: сообщение придёт повторно.
					logger.Error().Err(dlqErr).Msg("Ошибка отправки в DLQ")
					continue
				}
			}
		}

		if err := c.reader.CommitMessages(ctx, km); err != nil {
			logger.Error().Err(err).Msg("Ошибка коммита offset")
		}
	}
}

// handleWithRetry повторяет обработку с экспоненциальной задержкой 100ms, 200ms, 400ms...
func handleWithRetry(ctx context.Context, msg *Message, handler MessageHandler, maxRetries int) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			logger.Warn().Int("attempt", attempt).Str("key", string(msg.Key)).Dur("delay", delay).
				Msg("Повторная попытка обработки сообщения")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if lastErr = handler(ctx, msg); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("исчерпаны попытки обработки: %w", lastErr)
}

// Lag — отставание группы от конца топика.
func (c *Consumer) Lag() int64 {
	return c.reader.Stats().Lag
}

// Close закрывает reader.
func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("ошибка закрытия consumer: %w", err)
	}
	logger.Info().Str("topic", c.topic).Msg("Kafka Consumer закрыт")
	return nil
}
