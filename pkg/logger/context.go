package logger

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey string

const (
	traceIDKey       ctxKey = "trace_id"
	correlationIDKey ctxKey = "correlation_id"
	actorIDKey       ctxKey = "actor_id"
	actorRoleKey     ctxKey = "actor_role"
	loggerKey        ctxKey = "logger"
)

// WithTraceID кладёт trace_id запроса в контекст.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext возвращает trace_id или пустую строку.
func TraceIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(traceIDKey).(string)
	return v
}

// WithCorrelationID кладёт correlation_id в контекст.
// Для вебхуков это идентификатор события платёжного провайдера.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// CorrelationIDFromContext возвращает correlation_id или пустую строку.
func CorrelationIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(correlationIDKey).(string)
	return v
}

// WithActor запоминает, кто выполняет действие: id и роль попадут в каждую запись лога.
func WithActor(ctx context.Context, actorID, role string) context.Context {
	ctx = context.WithValue(ctx, actorIDKey, actorID)
	return context.WithValue(ctx, actorRoleKey, role)
}

// WithLogger привязывает к контексту заранее настроенный логгер.
func WithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext возвращает логгер запроса, обогащённый trace_id, correlation_id
// и данными актора, если они есть в контексте.
func FromContext(ctx context.Context) zerolog.Logger {
	l, ok := ctx.Value(loggerKey).(zerolog.Logger)
	if !ok {
		l = log
	}

	zctx := l.With()
	if v := TraceIDFromContext(ctx); v != "" {
		zctx = zctx.Str("trace_id", v)
	}
	if v := CorrelationIDFromContext(ctx); v != "" {
		zctx = zctx.Str("correlation_id", v)
	}
	if v, _ := ctx.Value(actorIDKey).(string); v != "" {
		zctx = zctx.Str("actor_id", v)
	}
	if v, _ := ctx.Value(actorRoleKey).(string); v != "" {
		zctx = zctx.Str("actor_role", v)
	}
	return zctx.Logger()
}

// Ctx — то же, что FromContext, но возвращает указатель.
func Ctx(ctx context.Context) *zerolog.Logger {
	l := FromContext(ctx)
	return &l
}

// NewContextWithIDs переносит идентификаторы трассировки, например из заголовков Kafka.
func NewContextWithIDs(ctx context.Context, traceID, correlationID string) context.Context {
	if traceID != "" {
		ctx = WithTraceID(ctx, traceID)
	}
	if correlationID != "" {
		ctx = WithCorrelationID(ctx, correlationID)
	}
	return ctx
}
