package payment

import (
	"context"
	"fmt"
	"time"

	"example.com/marketplace/pkg/circuitbreaker"
	"example.com/marketplace/pkg/metrics"
	"example.com/marketplace/services/marketplace/internal/domain"
)

// Registry сопоставляет способ оплаты со шлюзом, а имя провайдера —
// с источником вебхуков. Каждый шлюз закрыт своим circuit breaker.
type Registry struct {
	gateways map[domain.PaymentMethod]Gateway
	webhooks map[string]WebhookSource
}

// NewRegistry создаёт пустой реестр с ручной оплатой.
func NewRegistry() *Registry {
	r := &Registry{
		gateways: make(map[domain.PaymentMethod]Gateway),
		webhooks: make(map[string]WebhookSource),
	}
	r.gateways[domain.MethodManual] = Manual{}
	return r
}

// Register назначает шлюз способу оплаты. Если шлюз умеет принимать
// вебхуки, он регистрируется и как их источник.
func (r *Registry) Register(method domain.PaymentMethod, g Gateway) {
	if method == domain.MethodManual {
		r.gateways[method] = g
		return
	}
	r.gateways[method] = &guarded{Gateway: g, breaker: circuitbreaker.New(g.Name())}
	if src, ok := g.(WebhookSource); ok {
		r.webhooks[src.Name()] = src
	}
}

// RegisterWebhook добавляет источник вебхуков без шлюза (например, второй
// карточный провайдер, по которому ещё приходят старые оплаты).
func (r *Registry) RegisterWebhook(src WebhookSource) {
	r.webhooks[src.Name()] = src
}

// Gateway возвращает шлюз для способа оплаты.
func (r *Registry) Gateway(method domain.PaymentMethod) (Gateway, error) {
	g, ok := r.gateways[method]
	if !ok {
		return nil, fmt.Errorf("%w: способ оплаты %s не настроен", domain.ErrPaymentInitiationFailed, method)
	}
	return g, nil
}

// Webhook возвращает источник вебхуков по имени провайдера.
func (r *Registry) Webhook(provider string) (WebhookSource, bool) {
	src, ok := r.webhooks[provider]
	return src, ok
}

// guarded — шлюз за circuit breaker с замером latency.
type guarded struct {
	Gateway
	breaker *circuitbreaker.Breaker
}

func (g *guarded) Initiate(ctx context.Context, c Checkout) (*Session, error) {
	var session *Session
	started := time.Now()
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		session, err = g.Gateway.Initiate(ctx, c)
		return err
	})
	metrics.ObserveGateway(g.Name(), started)
	if err != nil {
		return nil, err
	}
	return session, nil
}
