package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"example.com/marketplace/services/marketplace/internal/domain"
	"example.com/marketplace/services/marketplace/internal/service"
)

// CatalogHandler — товары и ручное пополнение склада.
type CatalogHandler struct {
	svc Marketplace
}

// NewCatalogHandler создаёт хендлер.
func NewCatalogHandler(svc Marketplace) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

// ProductRequest — POST /products.
type ProductRequest struct {
	Title    string          `json:"title" binding:"required,max=200"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency" binding:"omitempty,len=3"`
	Stock    int             `json:"stock" binding:"min=0"`
}

// RestockRequest — POST /products/:id/restock.
type RestockRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

// ProductResponse — товар.
type ProductResponse struct {
	ID       string `json:"id"`
	SellerID string `json:"seller_id"`
	Title    string `json:"title"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
	Stock    int    `json:"stock"`
}

func productResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:       p.ID,
		SellerID: p.SellerID,
		Title:    p.Title,
		Price:    p.Price.StringFixed(2),
		Currency: p.Currency,
		Stock:    p.Stock,
	}
}

// CreateProduct — POST /api/v1/products.
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.svc.CreateProduct(c.Request.Context(), actor, service.ProductRequest{
		Title:    req.Title,
		Price:    req.Price,
		Currency: req.Currency,
		Stock:    req.Stock,
	})
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, productResponse(p))
}

// Restock — POST /api/v1/products/:id/restock.
func (h *CatalogHandler) Restock(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req RestockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.svc.Restock(c.Request.Context(), actor, c.Param("id"), req.Quantity)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, productResponse(p))
}
