package service

import (
	"context"

	"example.com/marketplace/services/marketplace/internal/domain"
	"example.com/marketplace/services/marketplace/internal/repository"
)

// ListRequest — выборка сущностей одного вида.
type ListRequest struct {
	Kind         domain.Kind
	Status       domain.Status
	PaymentState domain.PaymentState

	// AsSeller — заказы, где актор продавец, а не покупатель.
	AsSeller bool

	Page     int
	PageSize int
}

// ListResult — страница выборки.
type ListResult struct {
	Items    []*domain.PayableEntity
	Total    int64
	Page     int
	PageSize int
}

// List возвращает сущности, которые актор может видеть: администратор — все,
// остальные — свои (или свои продажи при AsSeller).
func (s *Engine) List(ctx context.Context, actor domain.Actor, req ListRequest) (*ListResult, error) {
	if actor.ID == "" {
		return nil, domain.ErrUnauthorized
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	f := repository.ListFilter{
		Kind:         req.Kind,
		Status:       req.Status,
		PaymentState: req.PaymentState,
		Offset:       (req.Page - 1) * req.PageSize,
		Limit:        req.PageSize,
	}
	switch {
	case req.AsSeller && req.Kind == domain.KindOrder:
		f.CounterpartyID = actor.ID
	case !actor.IsAdmin():
		f.OwnerID = actor.ID
	}

	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return &ListResult{Items: items, Total: total, Page: req.Page, PageSize: req.PageSize}, nil
}
