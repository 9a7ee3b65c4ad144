package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"example.com/marketplace/pkg/logger"
	"example.com/marketplace/services/marketplace/internal/domain"
)

// ProductRequest — новый товар продавца.
type ProductRequest struct {
	Title    string
	Price    decimal.Decimal
	Currency string
	Stock    int
}

// CreateProduct добавляет товар в каталог продавца.
func (s *Engine) CreateProduct(ctx context.Context, actor domain.Actor, req ProductRequest) (*domain.Product, error) {
	if actor.ID == "" || (actor.Role != domain.RoleSeller && actor.Role != domain.RoleAdmin) {
		return nil, domain.ErrUnauthorized
	}
	switch {
	case strings.TrimSpace(req.Title) == "":
		return nil, domain.Invalid("title", "обязательное поле")
	case !req.Price.IsPositive():
		return nil, domain.Invalid("price", "должна быть положительной")
	case req.Stock < 0:
		return nil, domain.Invalid("stock", "не может быть отрицательным")
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}

	p := &domain.Product{
		SellerID: actor.ID,
		Title:    strings.TrimSpace(req.Title),
		Price:    req.Price,
		Currency: currency,
		Stock:    req.Stock,
	}
	if err := s.catalog.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	logger.Ctx(ctx).Info().Str("product_id", p.ID).Int("stock", p.Stock).Msg("Товар создан")
	return p, nil
}

// Restock возвращает товар на склад вручную: владелец товара или администратор.
func (s *Engine) Restock(ctx context.Context, actor domain.Actor, productID string, quantity int) (*domain.Product, error) {
	if quantity < 1 {
		return nil, domain.Invalid("quantity", "должно быть не меньше 1")
	}
	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if actor.ID == "" || (!actor.IsAdmin() && actor.ID != p.SellerID) {
		return nil, domain.ErrUnauthorized
	}

	p, err = s.catalog.Restock(ctx, productID, quantity)
	if err != nil {
		return nil, err
	}
	logger.Ctx(ctx).Info().Str("product_id", p.ID).Int("added", quantity).Int("stock", p.Stock).Msg("Товар пополнен")
	return p, nil
}
