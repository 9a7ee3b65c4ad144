// Package handler — REST API маркетплейса и приём вебхуков платёжных провайдеров.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/marketplace/pkg/logger"
	"example.com/marketplace/services/marketplace/internal/domain"
	"example.com/marketplace/services/marketplace/internal/service"
)

// ErrorResponse — формат ошибки API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`

	// Entity — сущность, если она создана, но оплату открыть не удалось.
	Entity *PayableResponse `json:"entity,omitempty"`
}

// errorStatus сопоставляет доменную ошибку с HTTP статусом и кодом.
func errorStatus(err error) (int, string) {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden, "permission_denied"
	case errors.Is(err, domain.ErrEntityNotFound), errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrPaymentRequired):
		return http.StatusConflict, "payment_required"
	case errors.Is(err, domain.ErrIllegalTransition):
		return http.StatusConflict, "illegal_transition"
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusConflict, "insufficient_stock"
	case errors.Is(err, domain.ErrConcurrentUpdate):
		return http.StatusConflict, "concurrent_update"
	case errors.Is(err, domain.ErrPaymentInitiationFailed):
		return http.StatusBadGateway, "payment_initiation_failed"
	case errors.Is(err, domain.ErrMalformedReference):
		return http.StatusBadRequest, "malformed_reference"
	}
	return http.StatusInternalServerError, "internal_error"
}

// respondError пишет ошибку движка. out — результат, возвращённый вместе с ней.
func respondError(c *gin.Context, err error, out *service.Outcome) {
	status, code := errorStatus(err)
	msg := err.Error()

	log := logger.FromContext(c.Request.Context())
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Ошибка обработки запроса")
		if status == http.StatusInternalServerError {
			msg = "Внутренняя ошибка сервера"
		}
	} else {
		log.Info().Err(err).Str("path", c.FullPath()).Str("code", code).Msg("Запрос отклонён")
	}

	resp := ErrorResponse{Error: code, Message: msg}
	if status == http.StatusBadGateway && out != nil && out.Entity != nil {
		p := toPayableResponse(out)
		resp.Entity = &p
	}
	c.JSON(status, resp)
}

func badRequest(c *gin.Context, err error) {
	logger.Ctx(c.Request.Context()).Debug().Err(err).Msg("Невалидный запрос")
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "Невалидные данные запроса"})
}
