package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// =====================================
// Тесты Authorize
// =====================================

func TestAuthorize(t *testing.T) {
	buyer := Actor{ID: "buyer-1", Role: RoleBuyer}
	seller := Actor{ID: "seller-1", Role: RoleSeller}
	otherSeller := Actor{ID: "seller-2", Role: RoleSeller}
	admin := Actor{ID: "admin-1", Role: RoleAdmin}

	sellerOrder := &PayableEntity{Kind: KindOrder, OwnerID: "buyer-1", CounterpartyID: "seller-1", CounterpartyRole: RoleSeller}
	adminOrder := &PayableEntity{Kind: KindOrder, OwnerID: "buyer-1", CounterpartyID: "admin-2", CounterpartyRole: RoleAdmin}
	ad := &PayableEntity{Kind: KindAdCampaign, OwnerID: "seller-1"}
	app := &PayableEntity{Kind: KindSellerApplication, OwnerID: "buyer-1"}

	tests := []struct {
		name        string
		actor       Actor
		action      Action
		entity      *PayableEntity
		expectedErr error
	}{
		{"продавец ведёт свой заказ", seller, ActionAdvanceOrder, sellerOrder, nil},
		{"чужой продавец", otherSeller, ActionAdvanceOrder, sellerOrder, ErrUnauthorized},
		{"покупатель не ведёт заказ", buyer, ActionAdvanceOrder, sellerOrder, ErrUnauthorized},
		{"админ не ведёт заказ продавца", admin, ActionAdvanceOrder, sellerOrder, ErrUnauthorized},
		{"админ ведёт заказ админского товара", admin, ActionAdvanceOrder, adminOrder, nil},
		{"advance для кампании", seller, ActionAdvanceOrder, ad, ErrIllegalTransition},
		{"админ одобряет кампанию", admin, ActionApprove, ad, nil},
		{"владелец не одобряет кампанию", seller, ActionApprove, ad, ErrUnauthorized},
		{"админ отклоняет заявку", admin, ActionReject, app, nil},
		{"продавец не списывает оплату", seller, ActionWaive, app, ErrUnauthorized},
		{"админ требует оплату", admin, ActionDemandPayment, ad, nil},
		{"demand для заказа", admin, ActionDemandPayment, sellerOrder, ErrIllegalTransition},
		{"владелец платит", seller, ActionInitiatePayment, ad, nil},
		{"чужой не платит", buyer, ActionInitiatePayment, ad, ErrUnauthorized},
		{"покупатель видит заказ", buyer, ActionView, sellerOrder, nil},
		{"продавец видит заказ", seller, ActionView, sellerOrder, nil},
		{"чужой не видит заказ", otherSeller, ActionView, sellerOrder, ErrUnauthorized},
		{"админ видит всё", admin, ActionView, app, nil},
		{"анонимный актор", Actor{}, ActionView, app, ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.actor, tt.action, tt.entity)
			if tt.expectedErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.expectedErr)
			}
		})
	}
}

func TestPromoteToSeller(t *testing.T) {
	e := &PayableEntity{
		Kind:    KindSellerApplication,
		OwnerID: "user-1",
		Application: &ApplicationDetails{
			StoreName:           "Chez Ama",
			ContactPhone:        "+237600000000",
			BusinessDescription: "Ткани",
		},
	}

	p := PromoteToSeller(e)
	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, RoleSeller, *p.Role)
	assert.Equal(t, "Chez Ama", *p.StoreName)
	assert.Equal(t, "+237600000000", *p.Phone)
	assert.Equal(t, "Ткани", *p.Bio)
	assert.Nil(t, p.AvatarURL)
	assert.True(t, p.StoreVerified)
}

func TestErrPaymentRequired_IsIllegalTransition(t *testing.T) {
	assert.ErrorIs(t, ErrPaymentRequired, ErrIllegalTransition)
}
