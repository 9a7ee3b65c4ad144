package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/marketplace/pkg/logger"
	"example.com/marketplace/services/marketplace/internal/domain"
	"example.com/marketplace/services/marketplace/internal/service"
)

// maxWebhookBody — события провайдеров укладываются в несколько КБ.
const maxWebhookBody = 1 << 20

// WebhookHandler — приём уведомлений платёжных провайдеров.
type WebhookHandler struct {
	svc Marketplace
}

// NewWebhookHandler создаёт хендлер.
func NewWebhookHandler(svc Marketplace) *WebhookHandler {
	return &WebhookHandler{svc: svc}
}

// WebhookResponse — подтверждение провайдеру.
type WebhookResponse struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome"`
}

// Handle возвращает хендлер для провайдера provider.
//
// Провайдеру отвечаем 200 на всё, что повторять бесполезно, 400 на чужую
// подпись и 503 на сбой хранилища, чтобы он повторил доставку.
func (h *WebhookHandler) Handle(provider string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := logger.FromContext(ctx).With().Str("provider", provider).Logger()

		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
		if err != nil {
			log.Warn().Err(err).Msg("Не удалось прочитать тело вебхука")
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "Невалидное тело запроса"})
			return
		}

		res, err := h.svc.HandleWebhook(ctx, provider, c.Request.Header, body)
		switch {
		case errors.Is(err, service.ErrUnknownProvider):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: err.Error()})
		case errors.Is(err, domain.ErrInvalidSignature):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_signature", Message: "Подпись не прошла проверку"})
		case err != nil:
			log.Error().Err(err).Msg("Вебхук не обработан, провайдер повторит")
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "service_unavailable", Message: "Повторите позже"})
		default:
			c.JSON(http.StatusOK, WebhookResponse{Received: true, Outcome: res.Outcome})
		}
	}
}
