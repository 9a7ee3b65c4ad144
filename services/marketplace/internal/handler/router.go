package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"example.com/marketplace/pkg/metrics"
	"example.com/marketplace/services/marketplace/internal/domain"
	"example.com/marketplace/services/marketplace/internal/middleware"
)

// Провайдеры по умолчанию для путей вебхуков.
const (
	ProviderStripe      = "stripe"
	ProviderFlutterwave = "flutterwave"
	ProviderPayPal      = "paypal"
)

// ReadinessChecker — проверка зависимостей для /readyz.
type ReadinessChecker func(ctx context.Context) error

// RouterConfig — зависимости роутера.
type RouterConfig struct {
	Service        Marketplace
	AuthMW         *middleware.AuthMiddleware
	RateLimitMW    *middleware.RateLimitMiddleware
	CORS           middleware.CORSConfig
	ReadinessCheck ReadinessChecker
	ServiceName    string

	// CardProvider — кто обслуживает /webhooks/card: stripe или paypal.
	CardProvider string

	Debug bool
}

// Router — HTTP роутер маркетплейса.
type Router struct {
	engine *gin.Engine
	cfg    RouterConfig
}

// NewRouter собирает gin engine со всеми маршрутами.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "marketplace"
	}
	if cfg.CardProvider == "" {
		cfg.CardProvider = ProviderStripe
	}
	if cfg.CORS.AllowedOrigins == nil {
		cfg.CORS = middleware.DefaultCORSConfig()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(cfg.CORS))
	engine.Use(middleware.SecurityHeaders())
	engine.Use(otelgin.Middleware(cfg.ServiceName))
	engine.Use(middleware.RequestIDs())
	engine.Use(metrics.GinMetricsMiddleware(cfg.ServiceName))

	r := &Router{engine: engine, cfg: cfg}
	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	r.engine.GET("/healthz", r.liveness)
	r.engine.GET("/readyz", r.readiness)

	payables := NewPayableHandler(r.cfg.Service)
	catalog := NewCatalogHandler(r.cfg.Service)
	reports := NewReportHandler(r.cfg.Service)
	webhooks := NewWebhookHandler(r.cfg.Service)

	// Вебхуки публичные: подлинность проверяет подпись провайдера.
	hooks := r.engine.Group("/webhooks")
	{
		hooks.POST("/card", webhooks.Handle(r.cfg.CardProvider))
		hooks.POST("/mobile-money", webhooks.Handle(ProviderFlutterwave))
		hooks.POST("/paypal", webhooks.Handle(ProviderPayPal))
	}

	v1 := r.engine.Group("/api/v1")
	if r.cfg.AuthMW != nil {
		v1.Use(r.cfg.AuthMW.Handle())
	}
	if r.cfg.RateLimitMW != nil {
		v1.Use(r.cfg.RateLimitMW.Handle())
	}

	v1.POST("/orders", payables.CreateOrder)
	v1.POST("/orders/:id/status", payables.AdvanceOrder)
	v1.POST("/seller-applications", payables.SubmitApplication)
	v1.POST("/ads", payables.CreateAd)

	v1.GET("/payables/:kind", payables.List)
	v1.GET("/payables/:kind/:id", payables.Get)
	v1.POST("/payables/:kind/:id/pay", payables.Pay)

	v1.POST("/products", catalog.CreateProduct)
	v1.POST("/products/:id/restock", catalog.Restock)

	admin := v1.Group("/admin")
	{
		admin.POST("/seller-applications/:id/review", payables.Review(domain.KindSellerApplication))
		admin.POST("/seller-applications/:id/demand-payment", payables.DemandPayment(domain.KindSellerApplication))
		admin.POST("/ads/:id/review", payables.Review(domain.KindAdCampaign))
		admin.POST("/ads/:id/demand-payment", payables.DemandPayment(domain.KindAdCampaign))
		admin.GET("/reconciliation/report.xlsx", reports.Reconciliation)
	}
}

// Engine возвращает gin engine для http.Server.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (r *Router) readiness(c *gin.Context) {
	if r.cfg.ReadinessCheck == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := r.cfg.ReadinessCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
