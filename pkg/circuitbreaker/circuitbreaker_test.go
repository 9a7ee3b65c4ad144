package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings() Settings {
	return Settings{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, FailureRatio: 0.5, MinRequests: 2}
}

func TestExecute_InfrastructureFailuresOpenBreaker(t *testing.T) {
	b := NewWithSettings("stripe", testSettings())
	boom := errors.New("connection reset")

	for i := 0; i < 2; i++ {
		err := b.Execute(context.Background(), func(context.Context) error { return boom })
		require.ErrorIs(t, err, boom)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	called := false
	err := b.Execute(context.Background(), func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestExecute_PermanentErrorsKeepBreakerClosed(t *testing.T) {
	b := NewWithSettings("flutterwave", testSettings())
	declined := errors.New("invalid amount")

	for i := 0; i < 5; i++ {
		err := b.Execute(context.Background(), func(context.Context) error { return Permanent(declined) })
		require.ErrorIs(t, err, declined)
		assert.True(t, IsPermanent(err))
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestExecute_CancelledContext(t *testing.T) {
	b := New("paypal")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Execute(ctx, func(context.Context) error { t.Fatal("не должен вызываться"); return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPermanent_Nil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
	assert.False(t, IsPermanent(errors.New("x")))
}
