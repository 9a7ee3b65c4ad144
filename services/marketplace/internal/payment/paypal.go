package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"

	"example.com/marketplace/pkg/logger"
	"example.com/marketplace/services/marketplace/internal/domain"
	"example.com/marketplace/services/marketplace/internal/reference"
)

// PayPalConfig — настройки карточного шлюза PayPal.
type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	WebhookID    string
	Live         bool
	BaseURL      string // переопределяет sandbox/live, для тестов
	Pricing      CardPricing
}

// PayPal — альтернативный карточный шлюз. Ссылка имеет вид <tag>:<order id>.
type PayPal struct {
	cfg    PayPalConfig
	client *paypal.Client

	mu     sync.Mutex
	authed bool
}

// NewPayPal создаёт клиент. Токен запрашивается при первом обращении.
func NewPayPal(cfg PayPalConfig) (*PayPal, error) {
	base := cfg.BaseURL
	if base == "" {
		base = paypal.APIBaseSandBox
		if cfg.Live {
			base = paypal.APIBaseLive
		}
	}
	client, err := paypal.NewClient(cfg.ClientID, cfg.ClientSecret, base)
	if err != nil {
		return nil, fmt.Errorf("paypal: создание клиента: %w", err)
	}
	cfg.Pricing = cfg.Pricing.withDefaults()
	return &PayPal{cfg: cfg, client: client}, nil
}

// Name возвращает имя провайдера.
func (p *PayPal) Name() string { return "paypal" }

// ensureToken получает токен один раз; дальше клиент обновляет его сам.
func (p *PayPal) ensureToken(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.authed {
		return nil
	}
	if _, err := p.client.GetAccessToken(ctx); err != nil {
		return fmt.Errorf("paypal: получение токена: %w", err)
	}
	p.authed = true
	return nil
}

// Initiate создаёт заказ PayPal с intent CAPTURE и возвращает ссылку approve.
func (p *PayPal) Initiate(ctx context.Context, c Checkout) (*Session, error) {
	if err := p.ensureToken(ctx); err != nil {
		return nil, err
	}

	units := []paypal.PurchaseUnitRequest{{
		ReferenceID: c.EntityID,
		CustomID:    c.Reference,
		Description: c.Description,
		Amount: &paypal.PurchaseUnitAmount{
			Currency: "USD",
			Value:    decimal.New(p.cfg.Pricing.USDCents(c.Amount, c.Currency), -2).StringFixed(2),
		},
	}}
	appCtx := &paypal.ApplicationContext{ReturnURL: c.SuccessURL, CancelURL: c.CancelURL}

	order, err := p.client.CreateOrder(ctx, "CAPTURE", units, nil, appCtx)
	if err != nil {
		return nil, fmt.Errorf("paypal: создание заказа: %w", err)
	}

	approval := approvalURL(order)
	if approval == "" {
		return nil, fmt.Errorf("paypal: в заказе %s нет ссылки approve", order.ID)
	}

	ref, err := reference.EncodeSession(c.Kind, order.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Reference: ref, RedirectURL: approval}, nil
}

func approvalURL(order *paypal.Order) string {
	for _, link := range order.Links {
		if link.Rel == "approve" {
			return link.Href
		}
	}
	return ""
}

type paypalWebhook struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		CustomID      string `json:"custom_id"`
		PurchaseUnits []struct {
			CustomID string `json:"custom_id"`
		} `json:"purchase_units"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
	} `json:"resource"`
}

// ParseWebhook проверяет подпись через API PayPal и разбирает событие.
// Одобренный покупателем заказ здесь же захватывается: деньги считаются
// полученными, только если захват вернул COMPLETED.
func (p *PayPal) ParseWebhook(ctx context.Context, header http.Header, body []byte) (*Event, error) {
	if p.cfg.WebhookID == "" {
		return nil, domain.ErrInvalidSignature
	}
	if err := p.ensureToken(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhooks/paypal", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header = header.Clone()

	verified, err := p.client.VerifyWebhookSignature(ctx, req, p.cfg.WebhookID)
	if err != nil {
		return nil, fmt.Errorf("paypal: проверка подписи: %w", err)
	}
	if verified.VerificationStatus != "SUCCESS" {
		return nil, domain.ErrInvalidSignature
	}

	var wh paypalWebhook
	if err := json.Unmarshal(body, &wh); err != nil {
		return nil, fmt.Errorf("%w: тело события не JSON", domain.ErrMalformedReference)
	}

	ev := &Event{Provider: p.Name(), ID: wh.ID, Type: wh.EventType, Hint: wh.Resource.CustomID}
	if ev.Hint == "" && len(wh.Resource.PurchaseUnits) > 0 {
		ev.Hint = wh.Resource.PurchaseUnits[0].CustomID
	}

	switch wh.EventType {
	case "CHECKOUT.ORDER.APPROVED":
		ev.Reference = wh.Resource.ID
		capture, err := p.client.CaptureOrder(ctx, wh.Resource.ID, paypal.CaptureOrderRequest{})
		if err != nil {
			return nil, fmt.Errorf("paypal: захват заказа %s: %w", wh.Resource.ID, err)
		}
		ev.Successful = capture.Status == "COMPLETED"
		if !ev.Successful {
			logger.Ctx(ctx).Warn().Str("paypal_order", wh.Resource.ID).Str("status", capture.Status).
				Msg("Захват PayPal не завершён")
		}
	case "CHECKOUT.ORDER.COMPLETED":
		ev.Reference = wh.Resource.ID
		ev.Successful = true
	case "PAYMENT.CAPTURE.COMPLETED":
		ev.Reference = wh.Resource.SupplementaryData.RelatedIDs.OrderID
		ev.Successful = wh.Resource.Status == "" || wh.Resource.Status == "COMPLETED"
	default:
		ev.Reference = wh.Resource.ID
	}

	return ev, nil
}
