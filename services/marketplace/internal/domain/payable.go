package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind — вид платёжной сущности, фиксируется при создании.
type Kind string

const (
	KindOrder             Kind = "order"
	KindSellerApplication Kind = "seller_application"
	KindAdCampaign        Kind = "ad_campaign"
)

// Kinds — все виды в порядке перебора при сверке.
var Kinds = []Kind{KindOrder, KindSellerApplication, KindAdCampaign}

// ParseKind разбирает вид из пути запроса.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.TrimSpace(s)); k {
	case KindOrder, KindSellerApplication, KindAdCampaign:
		return k, nil
	}
	return "", Invalid("kind", fmt.Sprintf("неизвестный вид сущности %q", s))
}

// IsListing — заявка продавца или рекламная кампания (проходят модерацию).
func (k Kind) IsListing() bool {
	return k == KindSellerApplication || k == KindAdCampaign
}

// Status — состояние исполнения, словарь зависит от вида.
type Status string

// Статусы заказа.
const (
	StatusPending    Status = "pending"
	StatusPaid       Status = "paid"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Статусы заявки продавца и рекламной кампании.
const (
	StatusPendingPayment Status = "pending_payment"
	StatusPendingReview  Status = "pending_review"
	StatusApproved       Status = "approved"
	StatusRejected       Status = "rejected"
)

// PaymentState — денежное состояние, ортогональное Status.
type PaymentState string

const (
	PaymentUnpaid  PaymentState = "unpaid"
	PaymentPending PaymentState = "pending"
	PaymentPaid    PaymentState = "paid"
	PaymentWaived  PaymentState = "waived"
)

// Settled — деньги получены или взыскание отменено.
func (p PaymentState) Settled() bool {
	return p == PaymentPaid || p == PaymentWaived
}

// PaymentMethod — способ оплаты, неизменен после создания.
type PaymentMethod string

const (
	MethodCard        PaymentMethod = "card"
	MethodMobileMoney PaymentMethod = "mobile_money"
	MethodManual      PaymentMethod = "manual"
)

// ParsePaymentMethod принимает также исторические названия
// ("stripe" для карты, "cash_on_delivery" для оплаты при получении).
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "card", "stripe", "paypal":
		return MethodCard, nil
	case "mobile_money":
		return MethodMobileMoney, nil
	case "manual", "cash", "cash_on_delivery":
		return MethodManual, nil
	}
	return "", Invalid("payment_method", fmt.Sprintf("неизвестный способ оплаты %q", s))
}

// Upfront — оплата проходит через внешний шлюз до исполнения.
func (m PaymentMethod) Upfront() bool {
	return m == MethodCard || m == MethodMobileMoney
}

// Role — роль пользователя, приходит из identity-провайдера.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// ParseRole разбирает роль из claims. Пустая роль — покупатель.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RoleBuyer, nil
	case RoleBuyer, RoleSeller, RoleAdmin:
		return r, nil
	}
	return "", Invalid("role", fmt.Sprintf("неизвестная роль %q", s))
}

// Actor — кто выполняет действие. Передаётся явно в каждый вызов движка.
type Actor struct {
	ID    string
	Role  Role
	Email string
}

// PayableEntity — сущность, за которую платят. Общая форма трёх видов;
// поля конкретного вида лежат в Order, Application или Ad.
type PayableEntity struct {
	ID               string
	Kind             Kind
	Status           Status
	PaymentState     PaymentState
	PaymentMethod    PaymentMethod
	PaymentReference *string
	Amount           decimal.Decimal
	Currency         string
	OwnerID          string
	CounterpartyID   string // только заказ: продавец
	CounterpartyRole Role   // роль продавца на момент чтения
	PaidAt           *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Order       *OrderDetails
	Application *ApplicationDetails
	Ad          *AdDetails
}

// Reference возвращает сохранённую платёжную ссылку или пустую строку.
func (e *PayableEntity) Reference() string {
	if e.PaymentReference == nil {
		return ""
	}
	return *e.PaymentReference
}

// Title — человекочитаемое имя для уведомлений.
func (e *PayableEntity) Title() string {
	switch {
	case e.Ad != nil:
		return e.Ad.Title
	case e.Application != nil:
		return e.Application.StoreName
	default:
		return ShortID(e.ID)
	}
}

// ShortID — первые 8 символов id, как их видит покупатель.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// OrderDetails — поля заказа.
type OrderDetails struct {
	ProductID       string
	ProductTitle    string
	Quantity        int
	UnitPrice       decimal.Decimal
	ShippingAddress string
	ConfirmedAt     *time.Time
	ShippedAt       *time.Time
	DeliveredAt     *time.Time
	CancelledAt     *time.Time
}

// ApplicationDetails — заявка на статус продавца.
type ApplicationDetails struct {
	StoreName           string
	BusinessDescription string
	ContactPhone        string
	BusinessImageURL    string
	RejectionReason     *string
	ReviewedBy          *string
	ReviewedAt          *time.Time
}

// AdDetails — рекламная кампания.
type AdDetails struct {
	Title           string
	Description     string
	TargetURL       string
	ImageURL        string
	RejectionReason *string
	ReviewedBy      *string
	ReviewedAt      *time.Time
}
