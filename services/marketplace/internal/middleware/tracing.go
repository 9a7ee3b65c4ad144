package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"example.com/marketplace/pkg/logger"
)

// HTTP заголовки трассировки.
const (
	HeaderTraceID       = "X-Trace-ID"
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderRequestID     = "X-Request-ID"
)

// RequestIDs кладёт trace_id и correlation_id в контекст запроса и в ответ,
// пишет строку лога на вход и выход. Если otelgin уже открыл span, trace_id
// берётся из него, чтобы логи и Jaeger совпадали.
func RequestIDs() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		traceID := c.GetHeader(HeaderTraceID)
		if traceID == "" {
			traceID = c.GetHeader(HeaderRequestID)
		}
		if sc := trace.SpanContextFromContext(c.Request.Context()); traceID == "" && sc.HasTraceID() {
			traceID = sc.TraceID().String()
		}
		if traceID == "" {
			traceID = uuid.NewString()
		}
		correlationID := c.GetHeader(HeaderCorrelationID)
		if correlationID == "" {
			correlationID = uuid.NewString()
		}

		ctx := logger.NewContextWithIDs(c.Request.Context(), traceID, correlationID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderTraceID, traceID)
		c.Header(HeaderCorrelationID, correlationID)

		log := logger.FromContext(ctx)
		log.Debug().Str("method", c.Request.Method).Str("path", c.FullPath()).Str("client_ip", c.ClientIP()).Msg("Входящий запрос")

		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}
		ev.Str("method", c.Request.Method).Str("path", c.FullPath()).Int("status", status).
			Dur("duration", time.Since(start)).Msg("Запрос завершён")
	}
}
