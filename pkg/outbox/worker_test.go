package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"example.com/marketplace/pkg/kafka"
)

// =============================================================================
// Моки
// =============================================================================

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Append(ctx context.Context, tx *gorm.DB, records ...*Record) error {
	args := m.Called(ctx, tx, records)
	return args.Error(0)
}

func (m *mockRepository) Pending(ctx context.Context, limit int) ([]*Record, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Record), args.Error(1)
}

func (m *mockRepository) MarkProcessed(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockRepository) MarkFailed(ctx context.Context, id string, err error) error {
	return m.Called(ctx, id, err).Error(0)
}

func (m *mockRepository) MarkDead(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockRepository) PurgeProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepository) Backlog(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type mockProducer struct {
	mock.Mock
}

func (m *mockProducer) SendMessage(ctx context.Context, msg *kafka.Message) error {
	return m.Called(ctx, msg).Error(0)
}

// =============================================================================
// Тесты Worker
// =============================================================================

func TestWorker_Publish_Success(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	producer := new(mockProducer)
	w := NewWorker(repo, producer, DefaultWorkerConfig())

	rec := &Record{
		ID:         "outbox-1",
		EventType:  "payment.received",
		Topic:      kafka.TopicPayableEvents,
		MessageKey: "order-1",
		Payload:    []byte(`{"type":"payment.received"}`),
		Headers:    map[string]string{kafka.HeaderTraceID: "trace-1"},
	}

	producer.On("SendMessage", ctx, mock.MatchedBy(func(msg *kafka.Message) bool {
		return string(msg.Key) == "order-1" &&
			msg.Headers[kafka.HeaderEventType] == "payment.received" &&
			msg.Headers[kafka.HeaderTraceID] == "trace-1"
	})).Return(nil)
	repo.On("MarkProcessed", ctx, "outbox-1").Return(nil)

	require.NoError(t, w.Publish(ctx, rec))
	producer.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestWorker_Publish_SendError(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	producer := new(mockProducer)
	w := NewWorker(repo, producer, DefaultWorkerConfig())

	sendErr := errors.New("kafka unavailable")
	producer.On("SendMessage", ctx, mock.Anything).Return(sendErr)
	repo.On("MarkFailed", ctx, "outbox-1", sendErr).Return(nil)

	err := w.Publish(ctx, &Record{ID: "outbox-1", Topic: kafka.TopicPayableEvents})

	assert.ErrorIs(t, err, sendErr)
	repo.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything)
}

func TestWorker_Flush_DeadLetter(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	producer := new(mockProducer)
	cfg := WorkerConfig{PollInterval: 10 * time.Millisecond, BatchSize: 10, MaxRetries: 3}
	w := NewWorker(repo, producer, cfg)

	dead := &Record{ID: "outbox-dead", EventType: "order.status_changed", RetryCount: 3}
	repo.On("Pending", ctx, 10).Return([]*Record{dead}, nil)
	repo.On("MarkDead", ctx, "outbox-dead").Return(nil)

	assert.Equal(t, 0, w.Flush(ctx))
	repo.AssertExpectations(t)
	producer.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
}

func TestWorker_Flush_Batch(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	producer := new(mockProducer)
	w := NewWorker(repo, producer, WorkerConfig{BatchSize: 10, MaxRetries: 5})

	repo.On("Pending", ctx, 10).Return([]*Record{
		{ID: "outbox-1", Topic: kafka.TopicPayableEvents, MessageKey: "a"},
		{ID: "outbox-2", Topic: kafka.TopicPayableEvents, MessageKey: "b"},
	}, nil)
	producer.On("SendMessage", ctx, mock.Anything).Return(nil).Times(2)
	repo.On("MarkProcessed", ctx, "outbox-1").Return(nil)
	repo.On("MarkProcessed", ctx, "outbox-2").Return(nil)

	assert.Equal(t, 2, w.Flush(ctx))
	repo.AssertExpectations(t)
	producer.AssertExpectations(t)
}

func TestWorker_Purge(t *testing.T) {
	repo := new(mockRepository)
	w := NewWorker(repo, new(mockProducer), WorkerConfig{Retention: time.Hour})

	cutoff := mock.MatchedBy(func(before time.Time) bool {
		return time.Since(before) >= time.Hour && time.Since(before) < 2*time.Hour
	})
	repo.On("PurgeProcessedBefore", mock.Anything, cutoff).Return(int64(3), nil).Once()
	repo.On("PurgeProcessedBefore", mock.Anything, cutoff).Return(int64(0), errors.New("db down")).Once()

	w.purge(context.Background())
	w.purge(context.Background())

	repo.AssertNumberOfCalls(t, "PurgeProcessedBefore", 2)
}

func TestWorker_Run_StopsOnCancel(t *testing.T) {
	repo := new(mockRepository)
	producer := new(mockProducer)
	w := NewWorker(repo, producer, WorkerConfig{PollInterval: 20 * time.Millisecond, BatchSize: 10, MaxRetries: 5})

	repo.On("Pending", mock.Anything, 10).Return([]*Record{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(60 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Worker не остановился после отмены context")
	}
}
