package repository

import (
	"time"

	"github.com/shopspring/decimal"

	"example.com/marketplace/services/marketplace/internal/domain"
)

// =============================================================================
// GORM модели
// =============================================================================

// ProductModel — таблица products.
type ProductModel struct {
	ID        string          `gorm:"column:id;type:varchar(36);primaryKey"`
	SellerID  string          `gorm:"column:seller_id;type:varchar(36);not null;index"`
	Title     string          `gorm:"column:title;type:varchar(255);not null"`
	Price     decimal.Decimal `gorm:"column:price;type:decimal(12,2);not null"`
	Currency  string          `gorm:"column:currency;type:varchar(3);not null"`
	Stock     int             `gorm:"column:stock;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы в БД.
func (ProductModel) TableName() string { return "products" }

func (m *ProductModel) toDomain() *domain.Product {
	return &domain.Product{
		ID:        m.ID,
		SellerID:  m.SellerID,
		Title:     m.Title,
		Price:     m.Price,
		Currency:  m.Currency,
		Stock:     m.Stock,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// ProfileModel — таблица profiles. Строку создаёт identity-провайдер,
// marketplace только дописывает витрину продавца.
type ProfileModel struct {
	ID            string    `gorm:"column:id;type:varchar(36);primaryKey"`
	Email         string    `gorm:"column:email;type:varchar(255)"`
	Role          string    `gorm:"column:role;type:varchar(16);not null;default:buyer"`
	StoreName     *string   `gorm:"column:store_name;type:varchar(255)"`
	Phone         *string   `gorm:"column:phone;type:varchar(32)"`
	Bio           *string   `gorm:"column:bio;type:text"`
	AvatarURL     *string   `gorm:"column:avatar_url;type:varchar(512)"`
	StoreVerified bool      `gorm:"column:store_verified;not null;default:false"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы в БД.
func (ProfileModel) TableName() string { return "profiles" }

func (m *ProfileModel) toDomain() *domain.Profile {
	return &domain.Profile{
		ID:            m.ID,
		Email:         m.Email,
		Role:          domain.Role(m.Role),
		StoreName:     deref(m.StoreName),
		Phone:         deref(m.Phone),
		Bio:           deref(m.Bio),
		AvatarURL:     deref(m.AvatarURL),
		StoreVerified: m.StoreVerified,
		UpdatedAt:     m.UpdatedAt,
	}
}

// OrderModel — таблица orders.
type OrderModel struct {
	ID               string          `gorm:"column:id;type:varchar(36);primaryKey"`
	BuyerID          string          `gorm:"column:buyer_id;type:varchar(36);not null;index"`
	SellerID         string          `gorm:"column:seller_id;type:varchar(36);not null;index"`
	Status           string          `gorm:"column:status;type:varchar(20);not null;index"`
	PaymentState     string          `gorm:"column:payment_state;type:varchar(16);not null"`
	PaymentMethod    string          `gorm:"column:payment_method;type:varchar(16);not null"`
	PaymentReference *string         `gorm:"column:payment_reference;type:varchar(128);uniqueIndex"`
	TotalAmount      decimal.Decimal `gorm:"column:total_amount;type:decimal(12,2);not null"`
	Currency         string          `gorm:"column:currency;type:varchar(3);not null"`
	ShippingAddress  string          `gorm:"column:shipping_address;type:text"`
	PaidAt           *time.Time      `gorm:"column:paid_at"`
	ConfirmedAt      *time.Time      `gorm:"column:confirmed_at"`
	ShippedAt        *time.Time      `gorm:"column:shipped_at"`
	DeliveredAt      *time.Time      `gorm:"column:delivered_at"`
	CancelledAt      *time.Time      `gorm:"column:cancelled_at"`
	CreatedAt        time.Time       `gorm:"column:created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at"`

	Items []OrderItemModel `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName возвращает имя таблицы в БД.
func (OrderModel) TableName() string { return "orders" }

// OrderItemModel — таблица order_items. Заказ в маркетплейсе — одна позиция.
type OrderItemModel struct {
	ID           string          `gorm:"column:id;type:varchar(36);primaryKey"`
	OrderID      string          `gorm:"column:order_id;type:varchar(36);not null;index"`
	ProductID    string          `gorm:"column:product_id;type:varchar(36);not null;index"`
	ProductTitle string          `gorm:"column:product_title;type:varchar(255);not null"`
	Quantity     int             `gorm:"column:quantity;not null"`
	UnitPrice    decimal.Decimal `gorm:"column:unit_price;type:decimal(12,2);not null"`
}

// TableName возвращает имя таблицы в БД.
func (OrderItemModel) TableName() string { return "order_items" }

func (m *OrderModel) toDomain(sellerRole domain.Role) *domain.PayableEntity {
	e := &domain.PayableEntity{
		ID:               m.ID,
		Kind:             domain.KindOrder,
		Status:           domain.Status(m.Status),
		PaymentState:     domain.PaymentState(m.PaymentState),
		PaymentMethod:    domain.PaymentMethod(m.PaymentMethod),
		PaymentReference: m.PaymentReference,
		Amount:           m.TotalAmount,
		Currency:         m.Currency,
		OwnerID:          m.BuyerID,
		CounterpartyID:   m.SellerID,
		CounterpartyRole: sellerRole,
		PaidAt:           m.PaidAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
		Order: &domain.OrderDetails{
			ShippingAddress: m.ShippingAddress,
			ConfirmedAt:     m.ConfirmedAt,
			ShippedAt:       m.ShippedAt,
			DeliveredAt:     m.DeliveredAt,
			CancelledAt:     m.CancelledAt,
		},
	}
	if len(m.Items) > 0 {
		item := m.Items[0]
		e.Order.ProductID = item.ProductID
		e.Order.ProductTitle = item.ProductTitle
		e.Order.Quantity = item.Quantity
		e.Order.UnitPrice = item.UnitPrice
	}
	return e
}

// SellerApplicationModel — таблица seller_applications, одна заявка на пользователя.
type SellerApplicationModel struct {
	ID                  string          `gorm:"column:id;type:varchar(36);primaryKey"`
	UserID              string          `gorm:"column:user_id;type:varchar(36);not null;uniqueIndex"`
	StoreName           string          `gorm:"column:store_name;type:varchar(255);not null"`
	BusinessDescription string          `gorm:"column:business_description;type:text"`
	ContactPhone        string          `gorm:"column:contact_phone;type:varchar(32)"`
	BusinessImageURL    string          `gorm:"column:business_image_url;type:varchar(512)"`
	Status              string          `gorm:"column:status;type:varchar(20);not null;index"`
	PaymentState        string          `gorm:"column:payment_state;type:varchar(16);not null"`
	PaymentMethod       string          `gorm:"column:payment_method;type:varchar(16);not null"`
	PaymentReference    *string         `gorm:"column:payment_reference;type:varchar(128);uniqueIndex"`
	FeeAmount           decimal.Decimal `gorm:"column:fee_amount;type:decimal(12,2);not null"`
	Currency            string          `gorm:"column:currency;type:varchar(3);not null"`
	RejectionReason     *string         `gorm:"column:rejection_reason;type:text"`
	ReviewedBy          *string         `gorm:"column:reviewed_by;type:varchar(36)"`
	ReviewedAt          *time.Time      `gorm:"column:reviewed_at"`
	PaidAt              *time.Time      `gorm:"column:paid_at"`
	CreatedAt           time.Time       `gorm:"column:created_at"`
	UpdatedAt           time.Time       `gorm:"column:updated_at"`
}

// TableName возвращает имя таблицы в БД.
func (SellerApplicationModel) TableName() string { return "seller_applications" }

func (m *SellerApplicationModel) toDomain() *domain.PayableEntity {
	return &domain.PayableEntity{
		ID:               m.ID,
		Kind:             domain.KindSellerApplication,
		Status:           domain.Status(m.Status),
		PaymentState:     domain.PaymentState(m.PaymentState),
		PaymentMethod:    domain.PaymentMethod(m.PaymentMethod),
		PaymentReference: m.PaymentReference,
		Amount:           m.FeeAmount,
		Currency:         m.Currency,
		OwnerID:          m.UserID,
		PaidAt:           m.PaidAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
		Application: &domain.ApplicationDetails{
			StoreName:           m.StoreName,
			BusinessDescription: m.BusinessDescription,
			ContactPhone:        m.ContactPhone,
			BusinessImageURL:    m.BusinessImageURL,
			RejectionReason:     m.RejectionReason,
			ReviewedBy:          m.ReviewedBy,
			ReviewedAt:          m.ReviewedAt,
		},
	}
}

// AdCampaignModel — таблица ad_campaigns.
type AdCampaignModel struct {
	ID               string          `gorm:"column:id;type:varchar(36);primaryKey"`
	SellerID         string          `gorm:"column:seller_id;type:varchar(36);not null;index"`
	Title            string          `gorm:"column:title;type:varchar(255);not null"`
	Description      string          `gorm:"column:description;type:text"`
	TargetURL        string          `gorm:"column:target_url;type:varchar(512)"`
	ImageURL         string          `gorm:"column:image_url;type:varchar(512)"`
	Budget           decimal.Decimal `gorm:"column:budget;type:decimal(12,2);not null"`
	Currency         string          `gorm:"column:currency;type:varchar(3);not null"`
	Status           string          `gorm:"column:status;type:varchar(20);not null;index"`
	PaymentState     string          `gorm:"column:payment_state;type:varchar(16);not null"`
	PaymentMethod    string          `gorm:"column:payment_method;type:varchar(16);not null"`
	PaymentReference *string         `gorm:"column:payment_reference;type:varchar(128);uniqueIndex"`
	RejectionReason  *string         `gorm:"column:rejection_reason;type:text"`
	ReviewedBy       *string         `gorm:"column:reviewed_by;type:varchar(36)"`
	ReviewedAt       *time.Time      `gorm:"column:reviewed_at"`
	PaidAt           *time.Time      `gorm:"column:paid_at"`
	CreatedAt        time.Time       `gorm:"column:created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at"`
}

// TableName возвращает имя таблицы в БД.
func (AdCampaignModel) TableName() string { return "ad_campaigns" }

func (m *AdCampaignModel) toDomain() *domain.PayableEntity {
	return &domain.PayableEntity{
		ID:               m.ID,
		Kind:             domain.KindAdCampaign,
		Status:           domain.Status(m.Status),
		PaymentState:     domain.PaymentState(m.PaymentState),
		PaymentMethod:    domain.PaymentMethod(m.PaymentMethod),
		PaymentReference: m.PaymentReference,
		Amount:           m.Budget,
		Currency:         m.Currency,
		OwnerID:          m.SellerID,
		PaidAt:           m.PaidAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
		Ad: &domain.AdDetails{
			Title:           m.Title,
			Description:     m.Description,
			TargetURL:       m.TargetURL,
			ImageURL:        m.ImageURL,
			RejectionReason: m.RejectionReason,
			ReviewedBy:      m.ReviewedBy,
			ReviewedAt:      m.ReviewedAt,
		},
	}
}

// Models — все модели сервиса, для AutoMigrate в режиме разработки и тестах.
func Models() []any {
	return []any{
		&ProductModel{}, &ProfileModel{}, &OrderModel{}, &OrderItemModel{},
		&SellerApplicationModel{}, &AdCampaignModel{},
	}
}

// tableOf возвращает таблицу вида.
func tableOf(kind domain.Kind) string {
	switch kind {
	case domain.KindOrder:
		return OrderModel{}.TableName()
	case domain.KindSellerApplication:
		return SellerApplicationModel{}.TableName()
	default:
		return AdCampaignModel{}.TableName()
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
