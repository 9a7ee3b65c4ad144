// Package payment — адаптеры внешних платёжных провайдеров: создание
// платёжной сессии и разбор входящих вебхуков.
package payment

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"example.com/marketplace/services/marketplace/internal/domain"
)

// =============================================================================
// Создание платёжной сессии
// =============================================================================

// Checkout — что оплачивается. Reference — ссылка на сущность (<tag>-<uuid>).
type Checkout struct {
	Kind        domain.Kind
	EntityID    string
	Reference   string
	Amount      decimal.Decimal
	Currency    string
	Quantity    int
	Description string
	PayerEmail  string
	SuccessURL  string
	CancelURL   string
}

// Session — результат создания сессии.
type Session struct {
	// Reference — ссылка, которую нужно сохранить на сущности. Пустая для
	// ручной оплаты.
	Reference string

	// RedirectURL — куда отправить пользователя для оплаты.
	RedirectURL string

	// Immediate — оплата вне шлюза, перенаправлять некуда.
	Immediate bool
}

// Gateway создаёт платёжные сессии у одного провайдера.
type Gateway interface {
	// Name — имя провайдера для логов и метрик.
	Name() string

	// Initiate создаёт сессию. Ошибка означает, что живой сессии нет
	// и сохранять ссылку нельзя.
	Initiate(ctx context.Context, c Checkout) (*Session, error)
}

// =============================================================================
// Вебхуки
// =============================================================================

// Event — нормализованное уведомление провайдера.
type Event struct {
	Provider string
	ID       string // id события у провайдера, ключ дедупликации
	Type     string

	// Reference — значение, которое провайдер вернул как ссылку: id сессии
	// или ссылка на сущность.
	Reference string

	// Hint — ссылка на сущность (<tag>-<uuid>), если провайдер её эхом вернул.
	// Используется, когда по Reference ничего не найдено.
	Hint string

	// Successful — деньги получены.
	Successful bool
}

// WebhookSource проверяет подлинность и разбирает вебхук провайдера.
// Возвращает domain.ErrInvalidSignature, если запрос не от провайдера.
type WebhookSource interface {
	Name() string
	ParseWebhook(ctx context.Context, header http.Header, body []byte) (*Event, error)
}

// =============================================================================
// Суммы
// =============================================================================

// Значения по умолчанию для карточных платежей в долларах.
const (
	DefaultXAFPerUSD          = 650
	DefaultMinCardAmountCents = 100
)

var hundred = decimal.NewFromInt(100)

// CardPricing — пересчёт суммы сущности в центы USD для карточного шлюза.
// Нулевые поля заменяются значениями по умолчанию.
type CardPricing struct {
	XAFPerUSD decimal.Decimal
	MinCents  int64
}

// DefaultCardPricing — курс 650 XAF за доллар, минимум 100 центов.
func DefaultCardPricing() CardPricing {
	return CardPricing{XAFPerUSD: decimal.NewFromInt(DefaultXAFPerUSD), MinCents: DefaultMinCardAmountCents}
}

func (p CardPricing) withDefaults() CardPricing {
	def := DefaultCardPricing()
	if !p.XAFPerUSD.IsPositive() {
		p.XAFPerUSD = def.XAFPerUSD
	}
	if p.MinCents <= 0 {
		p.MinCents = def.MinCents
	}
	return p
}

// USDCents переводит сумму в центы USD. Суммы в XAF конвертируются по курсу,
// результат не меньше MinCents.
func (p CardPricing) USDCents(amount decimal.Decimal, currency string) int64 {
	p = p.withDefaults()
	cents := amount.Mul(hundred)
	if strings.EqualFold(currency, "XAF") {
		cents = cents.Div(p.XAFPerUSD)
	}
	v := cents.Round(0).IntPart()
	if v < p.MinCents {
		return p.MinCents
	}
	return v
}

// isHTTPSuccess — 2xx.
func isHTTPSuccess(code int) bool {
	return code >= 200 && code < 300
}
