package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// =====================================
// Тесты таблиц переходов
// =====================================

func TestLifecycle_Entry(t *testing.T) {
	assert.Equal(t, StatusPending, LifecycleOf(KindOrder).Entry(MethodCard))
	assert.Equal(t, StatusPending, LifecycleOf(KindOrder).Entry(MethodMobileMoney))
	assert.Equal(t, StatusProcessing, LifecycleOf(KindOrder).Entry(MethodManual))
	assert.Equal(t, StatusPendingPayment, LifecycleOf(KindSellerApplication).Entry(MethodManual))
	assert.Equal(t, StatusPendingPayment, LifecycleOf(KindAdCampaign).Entry(MethodCard))
}

func TestLifecycle_CheckOrder(t *testing.T) {
	l := LifecycleOf(KindOrder)

	tests := []struct {
		name        string
		from, to    Status
		expectedErr error
	}{
		{"pending → processing", StatusPending, StatusProcessing, nil},
		{"pending → cancelled", StatusPending, StatusCancelled, nil},
		{"paid → processing", StatusPaid, StatusProcessing, nil},
		{"processing → shipped", StatusProcessing, StatusShipped, nil},
		{"shipped → delivered", StatusShipped, StatusDelivered, nil},
		{"повтор delivered", StatusDelivered, StatusDelivered, ErrAlreadyInTargetState},
		{"shipped уже прошёл processing", StatusShipped, StatusProcessing, ErrAlreadyInTargetState},
		{"delivered прошёл shipped", StatusDelivered, StatusShipped, ErrAlreadyInTargetState},
		{"paid прошёл pending", StatusPaid, StatusPending, ErrAlreadyInTargetState},
		{"processing нельзя отменить", StatusProcessing, StatusCancelled, ErrIllegalTransition},
		{"cancelled терминален", StatusCancelled, StatusProcessing, ErrIllegalTransition},
		{"pending → shipped минуя шаг", StatusPending, StatusShipped, ErrIllegalTransition},
		{"paid не выставляется актором", StatusPending, StatusPaid, ErrIllegalTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.Check(tt.from, tt.to)
			if tt.expectedErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.expectedErr)
			}
		})
	}
}

func TestLifecycle_CheckUnknownStatus(t *testing.T) {
	err := LifecycleOf(KindOrder).Check(StatusPending, StatusApproved)
	assert.True(t, IsValidation(err))
}

func TestLifecycle_CheckListing(t *testing.T) {
	l := LifecycleOf(KindAdCampaign)

	assert.NoError(t, l.Check(StatusPendingReview, StatusApproved))
	assert.NoError(t, l.Check(StatusPendingPayment, StatusRejected))
	assert.ErrorIs(t, l.Check(StatusPendingPayment, StatusApproved), ErrIllegalTransition)
	assert.ErrorIs(t, l.Check(StatusApproved, StatusRejected), ErrIllegalTransition)
	assert.ErrorIs(t, l.Check(StatusRejected, StatusRejected), ErrAlreadyInTargetState)
	assert.ErrorIs(t, l.Check(StatusApproved, StatusPendingReview), ErrAlreadyInTargetState)
}

func TestLifecycle_Settled(t *testing.T) {
	assert.Equal(t, StatusPaid, LifecycleOf(KindOrder).Settled(StatusPending))
	assert.Equal(t, StatusProcessing, LifecycleOf(KindOrder).Settled(StatusProcessing))
	assert.Equal(t, StatusCancelled, LifecycleOf(KindOrder).Settled(StatusCancelled))
	assert.Equal(t, StatusPendingReview, LifecycleOf(KindSellerApplication).Settled(StatusPendingPayment))
	assert.Equal(t, StatusPendingReview, LifecycleOf(KindAdCampaign).Settled(StatusPendingPayment))
	assert.Equal(t, StatusApproved, LifecycleOf(KindAdCampaign).Settled(StatusApproved))
}

func TestLifecycle_IsTerminal(t *testing.T) {
	l := LifecycleOf(KindOrder)
	assert.True(t, l.IsTerminal(StatusDelivered))
	assert.True(t, l.IsTerminal(StatusCancelled))
	assert.False(t, l.IsTerminal(StatusPending))

	ads := LifecycleOf(KindAdCampaign)
	assert.True(t, ads.IsTerminal(StatusApproved))
	assert.True(t, ads.IsTerminal(StatusRejected))
	assert.False(t, ads.IsTerminal(StatusPendingPayment))
}

func TestParsePaymentMethod(t *testing.T) {
	m, err := ParsePaymentMethod("cash_on_delivery")
	assert.NoError(t, err)
	assert.Equal(t, MethodManual, m)

	m, err = ParsePaymentMethod("Stripe")
	assert.NoError(t, err)
	assert.Equal(t, MethodCard, m)

	_, err = ParsePaymentMethod("barter")
	assert.True(t, IsValidation(err))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("ad_campaign")
	assert.NoError(t, err)
	assert.Equal(t, KindAdCampaign, k)

	_, err = ParseKind("invoice")
	assert.True(t, IsValidation(err))
}
