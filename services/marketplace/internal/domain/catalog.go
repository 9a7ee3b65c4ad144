package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product — товар каталога, в объёме, нужном для заказа.
type Product struct {
	ID        string
	SellerID  string
	Title     string
	Price     decimal.Decimal
	Currency  string
	Stock     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Profile — профиль пользователя. Одобрение заявки продавца переписывает
// витринные поля профиля.
type Profile struct {
	ID            string
	Email         string
	Role          Role
	StoreName     string
	Phone         string
	Bio           string
	AvatarURL     string
	StoreVerified bool
	UpdatedAt     time.Time
}

// SellerProfilePatch — изменения профиля при решении по заявке.
type SellerProfilePatch struct {
	UserID        string
	Role          *Role
	StoreName     *string
	Phone         *string
	Bio           *string
	AvatarURL     *string
	StoreVerified bool
}

// PromoteToSeller строит изменения профиля для одобренной заявки.
func PromoteToSeller(e *PayableEntity) *SellerProfilePatch {
	role := RoleSeller
	app := e.Application
	return &SellerProfilePatch{
		UserID:        e.OwnerID,
		Role:          &role,
		StoreName:     nonEmpty(app.StoreName),
		Phone:         nonEmpty(app.ContactPhone),
		Bio:           nonEmpty(app.BusinessDescription),
		AvatarURL:     nonEmpty(app.BusinessImageURL),
		StoreVerified: true,
	}
}

// RevokeVerification снимает отметку проверенного магазина при отказе.
func RevokeVerification(e *PayableEntity) *SellerProfilePatch {
	return &SellerProfilePatch{UserID: e.OwnerID, StoreVerified: false}
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
