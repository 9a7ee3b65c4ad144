package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"example.com/marketplace/pkg/logger"
)

// Фиксированное окно: INCR и EXPIRE на первом запросе.
var rateScript = redis.NewScript(`
	local current = redis.call("INCR", KEYS[1])
	if current == 1 then
		redis.call("EXPIRE", KEYS[1], ARGV[1])
	end
	return current
`)

// RateLimitConfig — параметры лимита.
type RateLimitConfig struct {
	Redis  redis.UniversalClient
	Limit  int
	Window time.Duration
	// Prefix разделяет счётчики разных групп маршрутов.
	Prefix string
}

// RateLimitMiddleware ограничивает запросы на ключ (актор или IP) в окне.
type RateLimitMiddleware struct {
	cfg RateLimitConfig
}

// NewRateLimitMiddleware создаёт middleware. Limit по умолчанию 100 в минуту.
func NewRateLimitMiddleware(cfg RateLimitConfig) *RateLimitMiddleware {
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "rate"
	}
	return &RateLimitMiddleware{cfg: cfg}
}

// Handle возвращает gin handler. Ошибки Redis пропускают запрос.
func (m *RateLimitMiddleware) Handle() gin.HandlerFunc {
	window := int(m.cfg.Window.Seconds())

	return func(c *gin.Context) {
		key := m.cfg.Prefix + ":ip:" + c.ClientIP()
		if actor, ok := ActorFrom(c); ok {
			key = m.cfg.Prefix + ":actor:" + actor.ID
		}

		count, err := rateScript.Run(c.Request.Context(), m.cfg.Redis, []string{key}, window).Int()
		if err != nil {
			logger.Ctx(c.Request.Context()).Warn().Err(err).Msg("Rate limit недоступен, запрос пропущен")
			c.Next()
			return
		}

		remaining := max(m.cfg.Limit-count, 0)
		c.Header("X-RateLimit-Limit", strconv.Itoa(m.cfg.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if count > m.cfg.Limit {
			logger.Ctx(c.Request.Context()).Warn().Str("key", key).Int("limit", m.cfg.Limit).Msg("Rate limit превышен")
			c.Header("Retry-After", strconv.Itoa(window))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": fmt.Sprintf("Превышен лимит запросов. Попробуйте через %d секунд", window),
			})
			return
		}
		c.Next()
	}
}
