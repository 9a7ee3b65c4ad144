package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cast"

	"example.com/marketplace/pkg/circuitbreaker"
	"example.com/marketplace/services/marketplace/internal/domain"
)

// FlutterwaveConfig — настройки шлюза мобильных денег.
type FlutterwaveConfig struct {
	BaseURL        string
	SecretKey      string
	WebhookHash    string
	PaymentOptions string
	Title          string
	Timeout        time.Duration
}

// Flutterwave принимает tx_ref от нас и возвращает его во вебхуке как есть,
// поэтому хранимая ссылка — ссылка на сущность <tag>-<uuid>.
type Flutterwave struct {
	cfg    FlutterwaveConfig
	client *apiClient
}

// NewFlutterwave создаёт адаптер.
func NewFlutterwave(cfg FlutterwaveConfig) *Flutterwave {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.flutterwave.com"
	}
	if cfg.PaymentOptions == "" {
		cfg.PaymentOptions = "mobilemoneyghana,mobilemoneyrwanda,mobilemoneyzambia"
	}
	if cfg.Title == "" {
		cfg.Title = "Marketplace"
	}
	return &Flutterwave{cfg: cfg, client: newAPIClient(cfg.BaseURL, cfg.Timeout)}
}

// Name возвращает имя провайдера.
func (f *Flutterwave) Name() string { return "flutterwave" }

type flutterwaveCustomer struct {
	Email string `json:"email"`
}

type flutterwaveCustomizations struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type flutterwavePayment struct {
	TxRef          string                    `json:"tx_ref"`
	Amount         string                    `json:"amount"`
	Currency       string                    `json:"currency"`
	RedirectURL    string                    `json:"redirect_url"`
	PaymentOptions string                    `json:"payment_options"`
	Customer       flutterwaveCustomer       `json:"customer"`
	Customizations flutterwaveCustomizations `json:"customizations"`
}

type flutterwaveResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Link string `json:"link"`
	} `json:"data"`
}

// Initiate создаёт платёжную ссылку. tx_ref = ссылка на сущность.
func (f *Flutterwave) Initiate(ctx context.Context, c Checkout) (*Session, error) {
	body, err := json.Marshal(flutterwavePayment{
		TxRef:          c.Reference,
		Amount:         c.Amount.StringFixed(2),
		Currency:       strings.ToUpper(c.Currency),
		RedirectURL:    c.SuccessURL,
		PaymentOptions: f.cfg.PaymentOptions,
		Customer:       flutterwaveCustomer{Email: c.PayerEmail},
		Customizations: flutterwaveCustomizations{Title: f.cfg.Title, Description: c.Description},
	})
	if err != nil {
		return nil, err
	}

	resp, err := f.client.post(ctx, "/v3/payments", "application/json",
		map[string]string{"Authorization": "Bearer " + f.cfg.SecretKey}, body)
	if err != nil {
		return nil, err
	}

	var out flutterwaveResponse
	_ = json.Unmarshal(resp.Body, &out)

	if !isHTTPSuccess(resp.StatusCode) {
		err := fmt.Errorf("flutterwave: статус %d: %s", resp.StatusCode, out.Message)
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, circuitbreaker.Permanent(err)
		}
		return nil, err
	}
	if out.Data.Link == "" {
		return nil, fmt.Errorf("flutterwave: в ответе нет платёжной ссылки (%s)", out.Message)
	}

	return &Session{Reference: c.Reference, RedirectURL: out.Data.Link}, nil
}

// ParseWebhook сверяет verif-hash с секретом и разбирает событие.
func (f *Flutterwave) ParseWebhook(_ context.Context, header http.Header, body []byte) (*Event, error) {
	if err := verifySharedHash(header.Get("verif-hash"), f.cfg.WebhookHash); err != nil {
		return nil, err
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: тело события не JSON", domain.ErrMalformedReference)
	}

	data := cast.ToStringMap(payload["data"])
	txRef := strings.TrimSpace(cast.ToString(data["tx_ref"]))
	if txRef == "" {
		return nil, fmt.Errorf("%w: нет tx_ref", domain.ErrMalformedReference)
	}
	status := strings.ToLower(cast.ToString(data["status"]))

	// id транзакции числовой, но встречается и строкой.
	eventID := cast.ToString(data["id"])
	if eventID == "" {
		eventID = txRef + ":" + status
	}

	return &Event{
		Provider:   f.Name(),
		ID:         eventID,
		Type:       cast.ToString(payload["event"]),
		Reference:  txRef,
		Hint:       txRef,
		Successful: status == "successful",
	}, nil
}
