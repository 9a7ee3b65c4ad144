package domain

// Action — действие актора над платёжной сущностью.
type Action string

const (
	ActionView            Action = "view"
	ActionAdvanceOrder    Action = "advance_order"
	ActionInitiatePayment Action = "initiate_payment"
	ActionApprove         Action = "approve"
	ActionReject          Action = "reject"
	ActionWaive           Action = "waive"
	ActionDemandPayment   Action = "demand_payment"
)

// IsAdmin — администратор маркетплейса.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Authorize решает, может ли актор выполнить действие над сущностью.
// Роль актора берётся из токена, роль продавца — из профиля на момент чтения.
func Authorize(actor Actor, action Action, e *PayableEntity) error {
	if actor.ID == "" {
		return ErrUnauthorized
	}

	switch action {
	case ActionView:
		if actor.IsAdmin() || actor.ID == e.OwnerID || (e.CounterpartyID != "" && actor.ID == e.CounterpartyID) {
			return nil
		}

	case ActionAdvanceOrder:
		if e.Kind != KindOrder {
			return ErrIllegalTransition
		}
		// Продавец ведёт свои заказы; администратор — только заказы
		// товаров, выставленных администраторами.
		if actor.ID == e.CounterpartyID {
			return nil
		}
		if actor.IsAdmin() && e.CounterpartyRole == RoleAdmin {
			return nil
		}

	case ActionInitiatePayment:
		if actor.ID == e.OwnerID {
			return nil
		}

	case ActionApprove, ActionReject, ActionWaive, ActionDemandPayment:
		if !e.Kind.IsListing() {
			if actor.IsAdmin() {
				return ErrIllegalTransition
			}
			return ErrUnauthorized
		}
		if actor.IsAdmin() {
			return nil
		}
	}

	return ErrUnauthorized
}
