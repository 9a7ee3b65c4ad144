// Package metrics — Prometheus метрики маркетплейса и отдельный HTTP сервер для них.
//
//	srv := metrics.NewServer(":9090", "marketplace", metrics.WithReadinessCheck(check))
//	go srv.Start()
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/marketplace/pkg/logger"
)

// =============================================================================
// Общие метрики запросов
// =============================================================================

var (
	// RequestsTotal — все запросы: requests_total{service, method, status}.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requests_total",
			Help: "Общее количество запросов по сервису, методу и статусу",
		},
		[]string{"service", "method", "status"},
	)

	// RequestDuration — latency запросов, от 5ms до 10s.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "Время выполнения запроса в секундах",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method"},
	)
)

// =============================================================================
// Метрики сверки платежей
// =============================================================================

var (
	// TransitionsTotal — попытки перехода: result = applied | noop | refused | error.
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payable_transitions_total",
			Help: "Попытки перехода платёжных сущностей по виду, целевому состоянию и результату",
		},
		[]string{"kind", "to", "result"},
	)

	// WebhooksTotal — входящие вебхуки: outcome = applied | duplicate | ignored | rejected | failed.
	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhooks_total",
			Help: "Входящие вебхуки платёжных провайдеров по исходу обработки",
		},
		[]string{"provider", "outcome"},
	)

	// PaymentInitiations — создание платёжных сессий у провайдеров.
	PaymentInitiations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_initiations_total",
			Help: "Создание платёжных сессий по способу оплаты и результату",
		},
		[]string{"method", "result"},
	)

	// GatewayDuration — latency вызовов внешних платёжных шлюзов.
	GatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_gateway_duration_seconds",
			Help:    "Время ответа платёжного шлюза в секундах",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"gateway"},
	)

	// NotificationsTotal — записи уведомлений и сообщений, созданные notifier.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_emitted_total",
			Help: "Уведомления, созданные по событиям платёжных сущностей",
		},
		[]string{"type", "result"},
	)
)

// =============================================================================
// HTTP Server для /metrics endpoint
// =============================================================================

// ReadinessChecker возвращает nil, если сервис готов принимать трафик.
type ReadinessChecker func(ctx context.Context) error

// Server — HTTP сервер для Prometheus и Kubernetes проб.
type Server struct {
	httpServer     *http.Server
	service        string
	readinessCheck ReadinessChecker
}

// Option — функциональная опция Server.
type Option func(*Server)

// WithReadinessCheck подключает проверку зависимостей к /readyz.
func WithReadinessCheck(checker ReadinessChecker) Option {
	return func(s *Server) {
		s.readinessCheck = checker
	}
}

// NewServer создаёт metrics server с /metrics, /healthz и /readyz.
func NewServer(addr, service string, opts ...Option) *Server {
	s := &Server{service: service}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"alive"}`))
	})
	mux.HandleFunc("/readyz", s.handleReady)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Handler возвращает mux сервера (для тестов через httptest).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.readinessCheck == nil {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.readinessCheck(ctx); err != nil {
		// Детали ошибки наружу не отдаём.
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"not_ready"}`))
		logger.Warn().Err(err).Str("service", s.service).Msg("Readiness check не пройден")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}

// Start блокирует до остановки сервера; запускать в горутине.
func (s *Server) Start() error {
	logger.Info().Str("service", s.service).Str("addr", s.httpServer.Addr).Msg("Запуск Metrics Server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully останавливает сервер.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// =============================================================================
// Запись метрик
// =============================================================================

// RecordRequest записывает счётчик и latency одного запроса.
func RecordRequest(service, method, status string, duration time.Duration) {
	RequestsTotal.WithLabelValues(service, method, status).Inc()
	RequestDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}

// RecordTransition учитывает попытку перехода платёжной сущности.
func RecordTransition(kind, to, result string) {
	TransitionsTotal.WithLabelValues(kind, to, result).Inc()
}

// RecordWebhook учитывает исход обработки вебхука.
func RecordWebhook(provider, outcome string) {
	WebhooksTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordNotification учитывает запись уведомления notifier-ом.
func RecordNotification(eventType, result string) {
	NotificationsTotal.WithLabelValues(eventType, result).Inc()
}

// ObserveGateway записывает latency вызова платёжного шлюза.
func ObserveGateway(gateway string, started time.Time) {
	GatewayDuration.WithLabelValues(gateway).Observe(time.Since(started).Seconds())
}

// GinMetricsMiddleware собирает requests_total и request_duration_seconds для HTTP.
func GinMetricsMiddleware(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := "success"
		if c.Writer.Status() >= 400 {
			status = "error"
		}
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		RecordRequest(service, path, status, time.Since(start))
	}
}
