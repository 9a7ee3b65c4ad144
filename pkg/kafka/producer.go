package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/marketplace/pkg/logger"
)

// Producer публикует сообщения синхронно с подтверждением лидера.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer создаёт Producer. Топик задаётся в каждом сообщении.
func NewProducer(cfg Config) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("не указаны брокеры Kafka")
	}

	writer := &kafka.Writer{
		Addr: kafka.TCP(cfg.Brokers...),
		// Ключ — id сущности: события одной сущности попадают в одну партицию по порядку.
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	logger.Info().Strs("brokers", cfg.Brokers).Msg("Создан Kafka Producer")
	return &Producer{writer: writer}, nil
}

// SendMessage отправляет подготовленное сообщение, дополняя стандартные заголовки из ctx.
func (p *Producer) SendMessage(ctx context.Context, msg *Message) error {
	msg.withContextHeaders(ctx)

	if err := p.writer.WriteMessages(ctx, msg.toKafkaMessage()); err != nil {
		logger.Error().Err(err).
			Str("topic", msg.Topic).
			Str("key", string(msg.Key)).
			Msg("Ошибка отправки сообщения в Kafka")
		return fmt.Errorf("ошибка отправки в Kafka: %w", err)
	}

	logger.Debug().
		Str("topic", msg.Topic).
		Str("key", string(msg.Key)).
		Str("event_type", msg.Headers[HeaderEventType]).
		Msg("Сообщение отправлено в Kafka")
	return nil
}

// Send — сокращение для SendMessage без дополнительных заголовков.
func (p *Producer) Send(ctx context.Context, topic string, key, value []byte) error {
	return p.SendMessage(ctx, &Message{Topic: topic, Key: key, Value: value})
}

// SendToDLQ перекладывает сообщение в DLQ с описанием ошибки.
func (p *Producer) SendToDLQ(ctx context.Context, original *Message, processingErr error) error {
	return p.SendMessage(ctx, dlqMessage(original, processingErr))
}

func dlqMessage(original *Message, processingErr error) *Message {
	headers := make(map[string]string, len(original.Headers)+2)
	for k, v := range original.Headers {
		headers[k] = v
	}
	headers[HeaderDLQError] = processingErr.Error()
	headers[HeaderDLQTopic] = original.Topic
	delete(headers, HeaderTimestamp)

	return &Message{
		Topic:   TopicDLQ,
		Key:     original.Key,
		Value:   original.Value,
		Headers: headers,
	}
}

// Close закрывает writer, дожидаясь отправки буфера.
func (p *Producer) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("ошибка закрытия producer: %w", err)
	}
	logger.Info().Msg("Kafka Producer закрыт")
	return nil
}
