package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/marketplace/pkg/events"
	"example.com/marketplace/services/notifier/internal/domain"
)

const orderID = "8f14e45f-ceea-467f-a0e6-3a2b1c0d9e11"

func orderEvent(status string) *events.PayableEvent {
	return &events.PayableEvent{
		ID:             "ev-1",
		Type:           events.OrderStatusChanged,
		Kind:           "order",
		EntityID:       orderID,
		OwnerID:        "buyer-1",
		CounterpartyID: "seller-1",
		Status:         status,
	}
}

func TestRender_OrderStatus(t *testing.T) {
	tests := []struct {
		status   string
		readable string
	}{
		{"processing", "confirmed"},
		{"shipped", "shipped"},
		{"delivered", "delivered"},
		{"cancelled", "cancelled"},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			plan := Render(orderEvent(tt.status))
			require.NotNil(t, plan)

			require.NotNil(t, plan.Chat)
			assert.Equal(t, "buyer-1", plan.Chat.BuyerID)
			assert.Equal(t, "seller-1", plan.Chat.SellerID)
			assert.Equal(t, "seller-1", plan.Chat.SenderID)
			assert.Equal(t, "Order 8f14e45f has been "+tt.readable+".", plan.Chat.Content)

			require.Len(t, plan.Notifications, 1)
			n := plan.Notifications[0]
			assert.Equal(t, "buyer-1", n.UserID)
			assert.Equal(t, "Order Update", n.Title)
			assert.Equal(t, "Your order 8f14e45f is now "+tt.readable+".", n.Body)
			assert.Equal(t, domain.TypeOrder, n.Type)
		})
	}
}

func TestRender_OrderPendingIsSilent(t *testing.T) {
	assert.True(t, Render(orderEvent("pending")).Empty())
}

func TestRender_PaymentReceived(t *testing.T) {
	ev := orderEvent("processing")
	ev.Type = events.PaymentReceived

	plan := Render(ev)
	require.Len(t, plan.Notifications, 2)
	assert.Equal(t, "buyer-1", plan.Notifications[0].UserID)
	assert.Equal(t, "Payment for your order 8f14e45f was received.", plan.Notifications[0].Body)
	assert.Equal(t, "seller-1", plan.Notifications[1].UserID)
	assert.Nil(t, plan.Chat)

	ad := &events.PayableEvent{ID: "ev-2", Type: events.PaymentReceived, Kind: "ad_campaign",
		EntityID: "ad-1", OwnerID: "buyer-2", Title: "Summer sale"}
	plan = Render(ad)
	require.Len(t, plan.Notifications, 1)
	assert.Equal(t, `Payment for your ad campaign "Summer sale" was received. It is now awaiting review.`, plan.Notifications[0].Body)
}

func TestRender_Listings(t *testing.T) {
	tests := []struct {
		name      string
		kind      string
		typ       events.Type
		reason    string
		wantTitle string
		wantBody  string
	}{
		{"кампания одобрена", "ad_campaign", events.ListingApproved, "",
			"Ad Approved", `Your ad campaign "Summer sale" has been approved.`},
		{"кампания отклонена", "ad_campaign", events.ListingRejected, "Rejected by admin review",
			"Ad Rejected", `Your ad campaign "Summer sale" was rejected by admin.`},
		{"оплата кампании отменена", "ad_campaign", events.ListingPaymentWaived, "",
			"Ad Fee Waived", `Your ad campaign "Summer sale" was approved without payment.`},
		{"одобрение без оплаты", "ad_campaign", events.ListingPaymentRequired, "",
			"Ad Payment Required", "Please complete payment for your ad campaign before approval."},
		{"требование оплаты кампании", "ad_campaign", events.ListingPaymentDemanded, "",
			"Ad Payment Required", "Please complete payment for your ad campaign before approval."},
		{"заявка одобрена", "seller_application", events.ListingApproved, "",
			"Seller Application Approved", `Your store "Summer sale" has been approved. You can now list products.`},
		{"заявка отклонена без причины", "seller_application", events.ListingRejected, "",
			"Seller Application Rejected", "Your seller application was not approved: Not eligible yet."},
		{"заявка отклонена с причиной", "seller_application", events.ListingRejected, "Incomplete documents",
			"Seller Application Rejected", "Your seller application was not approved: Incomplete documents."},
		{"требование оплаты заявки", "seller_application", events.ListingPaymentDemanded, "",
			"Seller Application Payment Required", "Please pay the seller application fee before final confirmation, or contact support."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Render(&events.PayableEvent{
				ID: "ev", Type: tt.typ, Kind: tt.kind, EntityID: "e-1", OwnerID: "owner-1",
				ActorID: "admin-1", Title: "Summer sale", Reason: tt.reason,
			})
			require.Len(t, plan.Notifications, 1)
			n := plan.Notifications[0]
			assert.Equal(t, tt.wantTitle, n.Title)
			assert.Equal(t, tt.wantBody, n.Body)
			assert.Equal(t, "owner-1", n.UserID)
			assert.Equal(t, "admin-1", n.SenderID)
			assert.Equal(t, domain.TypeAnnouncement, n.Type)
		})
	}
}

func TestRender_ListingOnOrderIsSilent(t *testing.T) {
	ev := orderEvent("processing")
	ev.Type = events.ListingApproved
	assert.Nil(t, Render(ev))
}
