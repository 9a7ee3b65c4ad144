package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/marketplace/pkg/jwt"
	"example.com/marketplace/pkg/logger"
	"example.com/marketplace/services/marketplace/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const issuer = "marketplace-identity"

func signToken(t *testing.T, key *rsa.PrivateKey, userID, role string) string {
	t.Helper()
	now := time.Now()
	claims := jwt.Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  gojwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: gojwt.NewNumericDate(now.Add(time.Hour)),
		},
		UserID: userID,
		Role:   role,
		Email:  userID + "@example.com",
	}
	s, err := gojwt.NewWithClaims(gojwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestAuthMiddleware(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	mw := NewAuthMiddleware(jwt.NewVerifierFromKey(&key.PublicKey, issuer))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantActor  domain.Actor
	}{
		{"валидный токен продавца", "Bearer " + signToken(t, key, "u-1", "seller"), http.StatusOK,
			domain.Actor{ID: "u-1", Role: domain.RoleSeller, Email: "u-1@example.com"}},
		{"без роли — покупатель", "bearer " + signToken(t, key, "u-2", ""), http.StatusOK,
			domain.Actor{ID: "u-2", Role: domain.RoleBuyer, Email: "u-2@example.com"}},
		{"нет заголовка", "", http.StatusUnauthorized, domain.Actor{}},
		{"не Bearer", "Basic abc", http.StatusUnauthorized, domain.Actor{}},
		{"мусор вместо токена", "Bearer abc.def.ghi", http.StatusUnauthorized, domain.Actor{}},
		{"неизвестная роль", "Bearer " + signToken(t, key, "u-3", "root"), http.StatusUnauthorized, domain.Actor{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got domain.Actor
			r := gin.New()
			r.GET("/me", mw.Handle(), func(c *gin.Context) {
				got, _ = ActorFrom(c)
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantActor, got)
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	mw := NewRateLimitMiddleware(RateLimitConfig{Redis: rdb, Limit: 2, Window: time.Minute})
	r := gin.New()
	r.GET("/x", mw.Handle(), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Другой IP считается отдельно.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Redis недоступен — запрос проходит.
	mr.Close()
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestIDs(t *testing.T) {
	var traceID, correlationID string
	r := gin.New()
	r.Use(RequestIDs())
	r.GET("/x", func(c *gin.Context) {
		traceID = logger.TraceIDFromContext(c.Request.Context())
		correlationID = logger.CorrelationIDFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-1", traceID)
	assert.NotEmpty(t, correlationID)
	assert.Equal(t, "req-1", w.Header().Get(HeaderTraceID))
	assert.Equal(t, correlationID, w.Header().Get(HeaderCorrelationID))
}

func TestCORSAndSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(CORS(CORSConfig{AllowedOrigins: []string{"https://shop.example.com"}, AllowedMethods: []string{"GET"}, MaxAge: "60"}))
	r.Use(SecurityHeaders())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}
