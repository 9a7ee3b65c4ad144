package handler

import (
	"bytes"
	"context"
	"net/http"

	"example.com/marketplace/services/marketplace/internal/domain"
	"example.com/marketplace/services/marketplace/internal/service"
)

// Marketplace — операции движка, которые вызывают хендлеры.
// *service.Engine реализует его; в тестах подставляется мок.
type Marketplace interface {
	CreateOrder(ctx context.Context, actor domain.Actor, req service.CreateOrderRequest) (*service.Outcome, error)
	AdvanceOrder(ctx context.Context, actor domain.Actor, orderID string, to domain.Status) (*service.Outcome, error)
	SubmitApplication(ctx context.Context, actor domain.Actor, req service.ApplicationRequest) (*service.Outcome, error)
	CreateAd(ctx context.Context, actor domain.Actor, req service.AdRequest) (*service.Outcome, error)

	Approve(ctx context.Context, actor domain.Actor, kind domain.Kind, id string) (*service.Outcome, error)
	Reject(ctx context.Context, actor domain.Actor, kind domain.Kind, id, reason string) (*service.Outcome, error)
	Waive(ctx context.Context, actor domain.Actor, kind domain.Kind, id string) (*service.Outcome, error)
	DemandPayment(ctx context.Context, actor domain.Actor, kind domain.Kind, id string) (*service.Outcome, error)

	Pay(ctx context.Context, actor domain.Actor, kind domain.Kind, id string) (*service.Outcome, error)
	Get(ctx context.Context, actor domain.Actor, kind domain.Kind, id string) (*domain.PayableEntity, error)
	List(ctx context.Context, actor domain.Actor, req service.ListRequest) (*service.ListResult, error)

	CreateProduct(ctx context.Context, actor domain.Actor, req service.ProductRequest) (*domain.Product, error)
	Restock(ctx context.Context, actor domain.Actor, productID string, quantity int) (*domain.Product, error)

	HandleWebhook(ctx context.Context, provider string, header http.Header, body []byte) (*service.WebhookResult, error)
	ReconciliationReport(ctx context.Context, actor domain.Actor) (*bytes.Buffer, error)
}

var _ Marketplace = (*service.Engine)(nil)
