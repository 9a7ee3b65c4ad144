package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/marketplace/pkg/logger"
)

func TestMessage_WithContextHeaders(t *testing.T) {
	ctx := logger.NewContextWithIDs(context.Background(), "trace-1", "corr-1")

	msg := &Message{Topic: TopicPayableEvents, Headers: map[string]string{HeaderTraceID: "explicit"}}
	msg.withContextHeaders(ctx)

	assert.Equal(t, "explicit", msg.Headers[HeaderTraceID], "заданный заголовок не затирается")
	assert.Equal(t, "corr-1", msg.Headers[HeaderCorrelationID])
	assert.NotEmpty(t, msg.Headers[HeaderTimestamp])
}

func TestMessage_RoundTrip(t *testing.T) {
	msg := &Message{
		Topic:   TopicPayableEvents,
		Key:     []byte("order-1"),
		Value:   []byte(`{"type":"order.status_changed"}`),
		Headers: map[string]string{HeaderEventType: "order.status_changed"},
	}

	back := fromKafkaMessage(msg.toKafkaMessage())

	assert.Equal(t, msg.Key, back.Key)
	assert.Equal(t, msg.Value, back.Value)
	assert.Equal(t, "order.status_changed", back.Headers[HeaderEventType])
}

func TestDLQMessage(t *testing.T) {
	original := &Message{
		Topic:   TopicPayableEvents,
		Key:     []byte("k"),
		Value:   []byte("v"),
		Headers: map[string]string{HeaderTraceID: "t", HeaderTimestamp: "old"},
	}

	dlq := dlqMessage(original, errors.New("битый payload"))

	assert.Equal(t, TopicDLQ, dlq.Topic)
	assert.Equal(t, "битый payload", dlq.Headers[HeaderDLQError])
	assert.Equal(t, TopicPayableEvents, dlq.Headers[HeaderDLQTopic])
	assert.Equal(t, "t", dlq.Headers[HeaderTraceID])
	assert.NotContains(t, dlq.Headers, HeaderTimestamp)
	assert.Equal(t, "old", original.Headers[HeaderTimestamp], "оригинал не меняется")
}

func TestHandleWithRetry(t *testing.T) {
	calls := 0
	handler := func(context.Context, *Message) error {
		calls++
		if calls < 3 {
			return errors.New("временная ошибка")
		}
		return nil
	}

	err := handleWithRetry(context.Background(), &Message{}, handler, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestHandleWithRetry_Exhausted(t *testing.T) {
	handler := func(context.Context, *Message) error { return errors.New("всегда падает") }

	err := handleWithRetry(context.Background(), &Message{}, handler, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "исчерпаны попытки")
}

func TestNewConsumer_Validation(t *testing.T) {
	_, err := NewConsumer(Config{}, TopicPayableEvents)
	assert.Error(t, err)
	_, err = NewConsumer(Config{Brokers: []string{"localhost:9092"}}, TopicPayableEvents)
	assert.Error(t, err)
}
