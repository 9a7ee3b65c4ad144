package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"example.com/marketplace/services/marketplace/internal/domain"
	"example.com/marketplace/services/marketplace/internal/middleware"
	"example.com/marketplace/services/marketplace/internal/service"
)

// PayableHandler — действия над заказами, заявками и кампаниями.
type PayableHandler struct {
	svc Marketplace
}

// NewPayableHandler создаёт хендлер.
func NewPayableHandler(svc Marketplace) *PayableHandler {
	return &PayableHandler{svc: svc}
}

// =============================================================================
// DTO
// =============================================================================

// CreateOrderRequest — POST /orders.
type CreateOrderRequest struct {
	ProductID       string `json:"product_id" binding:"required"`
	Quantity        int    `json:"quantity" binding:"required,min=1"`
	PaymentMethod   string `json:"payment_method" binding:"required"`
	ShippingAddress string `json:"shipping_address"`
}

// AdvanceOrderRequest — POST /orders/:id/status.
type AdvanceOrderRequest struct {
	NextStatus string `json:"next_status" binding:"required"`
}

// ApplicationRequest — POST /seller-applications.
type ApplicationRequest struct {
	StoreName           string `json:"store_name" binding:"required,max=120"`
	BusinessDescription string `json:"business_description" binding:"max=2000"`
	ContactPhone        string `json:"contact_phone" binding:"max=32"`
	BusinessImageURL    string `json:"business_image_url" binding:"omitempty,url"`
	PaymentMethod       string `json:"payment_method" binding:"required"`
	PayNow              bool   `json:"pay_now"`
}

// AdRequest — POST /ads.
type AdRequest struct {
	Title         string          `json:"title" binding:"required,max=200"`
	Description   string          `json:"description" binding:"required"`
	TargetURL     string          `json:"target_url" binding:"required,url"`
	ImageURL      string          `json:"image_url" binding:"omitempty,url"`
	Budget        decimal.Decimal `json:"budget"`
	PaymentMethod string          `json:"payment_method" binding:"required"`
}

// ReviewRequest — решение администратора.
type ReviewRequest struct {
	Action string `json:"action" binding:"required,oneof=approve reject waive_payment"`
	Reason string `json:"reason" binding:"max=500"`
}

// PayableResponse — состояние сущности после действия.
type PayableResponse struct {
	Kind          string     `json:"kind"`
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	PaymentState  string     `json:"payment_state"`
	PaymentMethod string     `json:"payment_method"`
	Reference     *string    `json:"reference,omitempty"`
	Amount        string     `json:"amount"`
	Currency      string     `json:"currency"`
	Title         string     `json:"title,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	Changed       bool       `json:"changed"`
	RedirectURL   string     `json:"redirect_url,omitempty"`
}

// ListResponse — страница сущностей.
type ListResponse struct {
	Items    []PayableResponse `json:"items"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

func entityResponse(e *domain.PayableEntity) PayableResponse {
	return PayableResponse{
		Kind:          string(e.Kind),
		ID:            e.ID,
		Status:        string(e.Status),
		PaymentState:  string(e.PaymentState),
		PaymentMethod: string(e.PaymentMethod),
		Reference:     e.PaymentReference,
		Amount:        e.Amount.StringFixed(2),
		Currency:      e.Currency,
		Title:         e.Title(),
		PaidAt:        e.PaidAt,
		CreatedAt:     e.CreatedAt,
	}
}

func toPayableResponse(out *service.Outcome) PayableResponse {
	resp := entityResponse(out.Entity)
	resp.Changed = out.Applied
	resp.RedirectURL = out.RedirectURL
	return resp
}

// =============================================================================
// Хендлеры
// =============================================================================

// CreateOrder — POST /api/v1/orders.
func (h *PayableHandler) CreateOrder(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	method, err := domain.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		respondError(c, err, nil)
		return
	}

	out, err := h.svc.CreateOrder(c.Request.Context(), actor, service.CreateOrderRequest{
		ProductID:       req.ProductID,
		Quantity:        req.Quantity,
		Method:          method,
		ShippingAddress: req.ShippingAddress,
	})
	h.respond(c, http.StatusCreated, out, err)
}

// AdvanceOrder — POST /api/v1/orders/:id/status.
func (h *PayableHandler) AdvanceOrder(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req AdvanceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	out, err := h.svc.AdvanceOrder(c.Request.Context(), actor, c.Param("id"), domain.Status(req.NextStatus))
	h.respond(c, http.StatusOK, out, err)
}

// SubmitApplication — POST /api/v1/seller-applications.
func (h *PayableHandler) SubmitApplication(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req ApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	method, err := domain.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		respondError(c, err, nil)
		return
	}

	out, err := h.svc.SubmitApplication(c.Request.Context(), actor, service.ApplicationRequest{
		StoreName:           req.StoreName,
		BusinessDescription: req.BusinessDescription,
		ContactPhone:        req.ContactPhone,
		BusinessImageURL:    req.BusinessImageURL,
		Method:              method,
		PayNow:              req.PayNow,
	})
	h.respond(c, http.StatusOK, out, err)
}

// CreateAd — POST /api/v1/ads.
func (h *PayableHandler) CreateAd(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req AdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	method, err := domain.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		respondError(c, err, nil)
		return
	}

	out, err := h.svc.CreateAd(c.Request.Context(), actor, service.AdRequest{
		Title:       req.Title,
		Description: req.Description,
		TargetURL:   req.TargetURL,
		ImageURL:    req.ImageURL,
		Budget:      req.Budget,
		Method:      method,
	})
	h.respond(c, http.StatusCreated, out, err)
}

// Review возвращает хендлер решения администратора по виду kind.
func (h *PayableHandler) Review(kind domain.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}
		var req ReviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		ctx, id := c.Request.Context(), c.Param("id")
		var (
			out *service.Outcome
			err error
		)
		switch req.Action {
		case "approve":
			out, err = h.svc.Approve(ctx, actor, kind, id)
		case "reject":
			out, err = h.svc.Reject(ctx, actor, kind, id, req.Reason)
		case "waive_payment":
			out, err = h.svc.Waive(ctx, actor, kind, id)
		}
		h.respond(c, http.StatusOK, out, err)
	}
}

// DemandPayment возвращает хендлер требования оплаты по виду kind.
func (h *PayableHandler) DemandPayment(kind domain.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}
		out, err := h.svc.DemandPayment(c.Request.Context(), actor, kind, c.Param("id"))
		h.respond(c, http.StatusOK, out, err)
	}
}

// Pay — POST /api/v1/payables/:kind/:id/pay.
func (h *PayableHandler) Pay(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	kind, err := domain.ParseKind(c.Param("kind"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	out, err := h.svc.Pay(c.Request.Context(), actor, kind, c.Param("id"))
	h.respond(c, http.StatusOK, out, err)
}

// Get — GET /api/v1/payables/:kind/:id.
func (h *PayableHandler) Get(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	kind, err := domain.ParseKind(c.Param("kind"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	e, err := h.svc.Get(c.Request.Context(), actor, kind, c.Param("id"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, entityResponse(e))
}

// List — GET /api/v1/payables/:kind?status=&payment_state=&as=seller&page=&page_size=.
func (h *PayableHandler) List(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	kind, err := domain.ParseKind(c.Param("kind"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	res, err := h.svc.List(c.Request.Context(), actor, service.ListRequest{
		Kind:         kind,
		Status:       domain.Status(c.Query("status")),
		PaymentState: domain.PaymentState(c.Query("payment_state")),
		AsSeller:     c.Query("as") == "seller",
		Page:         page,
		PageSize:     size,
	})
	if err != nil {
		respondError(c, err, nil)
		return
	}

	items := make([]PayableResponse, 0, len(res.Items))
	for _, e := range res.Items {
		items = append(items, entityResponse(e))
	}
	c.JSON(http.StatusOK, ListResponse{Items: items, Total: res.Total, Page: res.Page, PageSize: res.PageSize})
}

// respond пишет результат действия: успех, идемпотентный no-op или ошибку.
func (h *PayableHandler) respond(c *gin.Context, status int, out *service.Outcome, err error) {
	if err != nil {
		respondError(c, err, out)
		return
	}
	if !out.Applied {
		status = http.StatusOK
	}
	c.JSON(status, toPayableResponse(out))
}

// requireActor достаёт актора, положенного AuthMiddleware.
func requireActor(c *gin.Context) (domain.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok || actor.ID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Требуется авторизация"})
		return domain.Actor{}, false
	}
	return actor, true
}
