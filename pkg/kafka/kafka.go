// Package kafka — обёртки над kafka-go для доставки событий платёжных сущностей
// от outbox-воркера marketplace к notifier.
package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/marketplace/pkg/logger"
)

// Топики событий.
const (
	// TopicPayableEvents — переходы заказов, заявок продавцов и рекламных кампаний.
	TopicPayableEvents = "payable.events"

	// TopicDLQ — события, которые notifier не смог обработать после всех попыток.
	TopicDLQ = "payable.events.dlq"
)

// Заголовки сообщений.
const (
	HeaderTraceID       = "trace_id"
	HeaderCorrelationID = "correlation_id"
	HeaderTimestamp     = "timestamp"
	HeaderEventType     = "event_type"
	HeaderDLQError      = "dlq_error"
	HeaderDLQTopic      = "dlq_original_topic"
)

// Config — подключение к брокерам.
type Config struct {
	Brokers       []string
	ConsumerGroup string
}

// Message — сообщение Kafka с заголовками в виде map.
type Message struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Headers   map[string]string
	Time      time.Time
}

func fromKafkaMessage(m kafka.Message) *Message {
	headers := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		headers[h.Key] = string(h.Value)
	}
	return &Message{
		Key:       m.Key,
		Value:     m.Value,
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Headers:   headers,
		Time:      m.Time,
	}
}

func (m *Message) toKafkaMessage() kafka.Message {
	headers := make([]kafka.Header, 0, len(m.Headers))
	for k, v := range m.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return kafka.Message{
		Key:     m.Key,
		Value:   m.Value,
		Topic:   m.Topic,
		Headers: headers,
		Time:    m.Time,
	}
}

// withContextHeaders дописывает trace_id, correlation_id и timestamp, не затирая заданные.
func (m *Message) withContextHeaders(ctx context.Context) {
	if m.Headers == nil {
		m.Headers = make(map[string]string, 3)
	}
	if _, ok := m.Headers[HeaderTraceID]; !ok {
		if v := logger.TraceIDFromContext(ctx); v != "" {
			m.Headers[HeaderTraceID] = v
		}
	}
	if _, ok := m.Headers[HeaderCorrelationID]; !ok {
		if v := logger.CorrelationIDFromContext(ctx); v != "" {
			m.Headers[HeaderCorrelationID] = v
		}
	}
	if _, ok := m.Headers[HeaderTimestamp]; !ok {
		m.Headers[HeaderTimestamp] = time.Now().UTC().Format(time.RFC3339Nano)
	}
}

// contextFromMessage восстанавливает идентификаторы трассировки из заголовков.
func contextFromMessage(ctx context.Context, msg *Message) context.Context {
	return logger.NewContextWithIDs(ctx, msg.Headers[HeaderTraceID], msg.Headers[HeaderCorrelationID])
}
