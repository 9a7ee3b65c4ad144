// Package render превращает событие платёжной сущности в сообщения чата
// и уведомления. Тексты видит пользователь, поэтому они на английском,
// как и весь интерфейс витрины.
package render

import (
	"fmt"

	"example.com/marketplace/pkg/events"
	"example.com/marketplace/services/notifier/internal/domain"
)

// Виды сущностей в событии.
const (
	kindOrder       = "order"
	kindApplication = "seller_application"
	kindAd          = "ad_campaign"
)

// defaultRejection — причина отказа заявке, если администратор её не указал.
const defaultRejection = "Not eligible yet"

// Readable — статус заказа в прошедшем времени. processing покупатель видит
// как подтверждение заказа.
func Readable(status string) string {
	if status == "processing" {
		return "confirmed"
	}
	return status
}

// shortID — первые 8 символов id, как номер заказа на витрине.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Render строит план записи. nil — событие никого не касается.
func Render(ev *events.PayableEvent) *domain.Plan {
	switch ev.Type {
	case events.OrderStatusChanged:
		return orderStatus(ev)
	case events.PaymentReceived:
		return paymentReceived(ev)
	case events.ListingApproved, events.ListingRejected, events.ListingPaymentWaived,
		events.ListingPaymentDemanded, events.ListingPaymentRequired:
		return listing(ev)
	}
	return nil
}

func orderStatus(ev *events.PayableEvent) *domain.Plan {
	switch ev.Status {
	case "processing", "shipped", "delivered", "cancelled":
	default:
		return nil
	}
	readable := Readable(ev.Status)
	id := shortID(ev.EntityID)

	return &domain.Plan{
		Chat: &domain.ChatMessage{
			BuyerID:  ev.OwnerID,
			SellerID: ev.CounterpartyID,
			SenderID: ev.CounterpartyID,
			Content:  fmt.Sprintf("Order %s has been %s.", id, readable),
		},
		Notifications: []domain.Notification{{
			UserID:   ev.OwnerID,
			SenderID: ev.CounterpartyID,
			Title:    "Order Update",
			Body:     fmt.Sprintf("Your order %s is now %s.", id, readable),
			Type:     domain.TypeOrder,
		}},
	}
}

func paymentReceived(ev *events.PayableEvent) *domain.Plan {
	plan := &domain.Plan{}
	switch ev.Kind {
	case kindOrder:
		id := shortID(ev.EntityID)
		plan.Notifications = append(plan.Notifications, domain.Notification{
			UserID: ev.OwnerID,
			Title:  "Payment Received",
			Body:   fmt.Sprintf("Payment for your order %s was received.", id),
			Type:   domain.TypePayment,
		})
		if ev.CounterpartyID != "" {
			plan.Notifications = append(plan.Notifications, domain.Notification{
				UserID:   ev.CounterpartyID,
				SenderID: ev.OwnerID,
				Title:    "New Paid Order",
				Body:     fmt.Sprintf("Order %s has been paid and is ready to ship.", id),
				Type:     domain.TypeOrder,
			})
		}
	case kindApplication:
		plan.Notifications = append(plan.Notifications, domain.Notification{
			UserID: ev.OwnerID,
			Title:  "Seller Fee Received",
			Body:   "Your seller application fee was received. Your application is now under review.",
			Type:   domain.TypePayment,
		})
	case kindAd:
		plan.Notifications = append(plan.Notifications, domain.Notification{
			UserID: ev.OwnerID,
			Title:  "Ad Payment Received",
			Body:   fmt.Sprintf("Payment for your ad campaign %q was received. It is now awaiting review.", ev.Title),
			Type:   domain.TypePayment,
		})
	default:
		return nil
	}
	return plan
}

func listing(ev *events.PayableEvent) *domain.Plan {
	var title, body string
	switch ev.Kind {
	case kindAd:
		title, body = adText(ev)
	case kindApplication:
		title, body = applicationText(ev)
	}
	if title == "" {
		return nil
	}
	return &domain.Plan{Notifications: []domain.Notification{{
		UserID:   ev.OwnerID,
		SenderID: ev.ActorID,
		Title:    title,
		Body:     body,
		Type:     domain.TypeAnnouncement,
	}}}
}

func adText(ev *events.PayableEvent) (string, string) {
	switch ev.Type {
	case events.ListingApproved:
		return "Ad Approved", fmt.Sprintf("Your ad campaign %q has been approved.", ev.Title)
	case events.ListingRejected:
		return "Ad Rejected", fmt.Sprintf("Your ad campaign %q was rejected by admin.", ev.Title)
	case events.ListingPaymentWaived:
		return "Ad Fee Waived", fmt.Sprintf("Your ad campaign %q was approved without payment.", ev.Title)
	case events.ListingPaymentDemanded, events.ListingPaymentRequired:
		return "Ad Payment Required", "Please complete payment for your ad campaign before approval."
	}
	return "", ""
}

func applicationText(ev *events.PayableEvent) (string, string) {
	switch ev.Type {
	case events.ListingApproved:
		return "Seller Application Approved",
			fmt.Sprintf("Your store %q has been approved. You can now list products.", ev.Title)
	case events.ListingRejected:
		reason := ev.Reason
		if reason == "" {
			reason = defaultRejection
		}
		return "Seller Application Rejected", fmt.Sprintf("Your seller application was not approved: %s.", reason)
	case events.ListingPaymentWaived:
		return "Seller Fee Waived", "Your seller application fee was waived. Your application is now under review."
	case events.ListingPaymentDemanded, events.ListingPaymentRequired:
		return "Seller Application Payment Required",
			"Please pay the seller application fee before final confirmation, or contact support."
	}
	return "", ""
}
