// Package middleware — HTTP middleware маркетплейса: аутентификация актора,
// rate limiting, trace/correlation id, CORS и заголовки безопасности.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"example.com/marketplace/pkg/jwt"
	"example.com/marketplace/pkg/logger"
	"example.com/marketplace/services/marketplace/internal/domain"
)

const actorKey = "actor"

// TokenVerifier проверяет токен identity-провайдера.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*jwt.Claims, error)
}

// AuthMiddleware превращает Bearer токен в domain.Actor.
type AuthMiddleware struct {
	verifier TokenVerifier
}

// NewAuthMiddleware создаёт middleware.
func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Handle возвращает gin handler.
func (m *AuthMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := logger.FromContext(ctx)

		token := bearerToken(c)
		if token == "" {
			abortUnauthorized(c, "Требуется авторизация")
			return
		}

		claims, err := m.verifier.Verify(ctx, token)
		if err != nil {
			log.Warn().Err(err).Msg("Токен не прошёл проверку")
			abortUnauthorized(c, "Невалидный токен")
			return
		}

		role, err := domain.ParseRole(claims.Role)
		if err != nil {
			log.Warn().Str("role", claims.Role).Msg("Неизвестная роль в токене")
			abortUnauthorized(c, "Невалидный токен")
			return
		}

		actor := domain.Actor{ID: claims.UserID, Role: role, Email: claims.Email}
		c.Set(actorKey, actor)
		c.Request = c.Request.WithContext(logger.WithActor(ctx, actor.ID, string(actor.Role)))

		c.Next()
	}
}

// ActorFrom возвращает аутентифицированного актора.
func ActorFrom(c *gin.Context) (domain.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return domain.Actor{}, false
	}
	actor, ok := v.(domain.Actor)
	return actor, ok
}

// SetActor кладёт актора в контекст. Нужен тестам хендлеров.
func SetActor(c *gin.Context, actor domain.Actor) {
	c.Set(actorKey, actor)
}

// bearerToken извлекает токен из "Authorization: Bearer <token>".
func bearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "unauthorized",
		"message": msg,
	})
}
