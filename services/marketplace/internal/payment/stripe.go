package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"

	"example.com/marketplace/pkg/circuitbreaker"
	"example.com/marketplace/services/marketplace/internal/domain"
	"example.com/marketplace/services/marketplace/internal/reference"
)

// StripeConfig — настройки карточного шлюза со Stripe-совместимым API.
type StripeConfig struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	Currency      string
	Timeout       time.Duration
	Pricing       CardPricing
}

// Stripe создаёт Checkout Session и принимает checkout.session.completed.
// Stripe выдаёт собственный id сессии, поэтому хранимая ссылка имеет
// вид <tag>:<session id>.
type Stripe struct {
	cfg    StripeConfig
	client *apiClient
	now    func() time.Time
}

// NewStripe создаёт адаптер.
func NewStripe(cfg StripeConfig) *Stripe {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.stripe.com"
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	cfg.Pricing = cfg.Pricing.withDefaults()
	return &Stripe{cfg: cfg, client: newAPIClient(cfg.BaseURL, cfg.Timeout), now: time.Now}
}

// Name возвращает имя провайдера.
func (s *Stripe) Name() string { return "stripe" }

type stripeSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type stripeError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Initiate создаёт Checkout Session на полную сумму сущности.
func (s *Stripe) Initiate(ctx context.Context, c Checkout) (*Session, error) {
	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)

	args.Add("mode", "payment")
	args.Add("line_items[0][quantity]", "1")
	args.Add("line_items[0][price_data][currency]", s.cfg.Currency)
	args.Add("line_items[0][price_data][product_data][name]", c.Description)
	args.Add("line_items[0][price_data][unit_amount]", strconv.FormatInt(s.cfg.Pricing.USDCents(c.Amount, c.Currency), 10))
	args.Add("success_url", c.SuccessURL)
	args.Add("cancel_url", c.CancelURL)
	args.Add("client_reference_id", c.Reference)
	args.Add("metadata[reference]", c.Reference)
	if c.PayerEmail != "" {
		args.Add("customer_email", c.PayerEmail)
	}

	resp, err := s.client.post(ctx, "/v1/checkout/sessions", "application/x-www-form-urlencoded",
		map[string]string{"Authorization": "Bearer " + s.cfg.SecretKey}, args.QueryString())
	if err != nil {
		return nil, err
	}

	if !isHTTPSuccess(resp.StatusCode) {
		var se stripeError
		_ = json.Unmarshal(resp.Body, &se)
		err := fmt.Errorf("stripe: статус %d: %s", resp.StatusCode, se.Error.Message)
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, circuitbreaker.Permanent(err)
		}
		return nil, err
	}

	var session stripeSession
	if err := json.Unmarshal(resp.Body, &session); err != nil {
		return nil, fmt.Errorf("stripe: разбор ответа: %w", err)
	}
	if session.ID == "" || session.URL == "" {
		return nil, fmt.Errorf("stripe: в ответе нет id или url сессии")
	}

	ref, err := reference.EncodeSession(c.Kind, session.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Reference: ref, RedirectURL: session.URL}, nil
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID                string            `json:"id"`
			ClientReferenceID string            `json:"client_reference_id"`
			PaymentStatus     string            `json:"payment_status"`
			Metadata          map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// ParseWebhook проверяет Stripe-Signature и разбирает событие.
func (s *Stripe) ParseWebhook(_ context.Context, header http.Header, body []byte) (*Event, error) {
	if err := VerifyStripeSignature(body, header.Get("Stripe-Signature"), s.cfg.WebhookSecret, s.now(), StripeTolerance); err != nil {
		return nil, err
	}

	var ev stripeEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("%w: тело события не JSON", domain.ErrMalformedReference)
	}

	obj := ev.Data.Object
	hint := obj.ClientReferenceID
	if hint == "" {
		hint = obj.Metadata["reference"]
	}

	return &Event{
		Provider:   s.Name(),
		ID:         ev.ID,
		Type:       ev.Type,
		Reference:  obj.ID,
		Hint:       hint,
		Successful: ev.Type == "checkout.session.completed" && obj.PaymentStatus != "unpaid",
	}, nil
}
