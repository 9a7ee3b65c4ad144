package domain

// Lifecycle — таблица переходов одного вида сущности.
//
// edges — переходы по действию актора. settle — переходы, которые происходят
// сами, когда оплата становится paid/waived (их выполняет только движок).
type Lifecycle struct {
	kind     Kind
	statuses []Status
	edges    map[Status][]Status
	settle   map[Status]Status
}

var orderLifecycle = Lifecycle{
	kind: KindOrder,
	statuses: []Status{
		StatusPending, StatusPaid, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled,
	},
	edges: map[Status][]Status{
		StatusPending:    {StatusProcessing, StatusCancelled},
		StatusPaid:       {StatusProcessing},
		StatusProcessing: {StatusShipped},
		StatusShipped:    {StatusDelivered},
	},
	settle: map[Status]Status{
		StatusPending: StatusPaid,
	},
}

var listingEdges = map[Status][]Status{
	StatusPendingPayment: {StatusRejected},
	StatusPendingReview:  {StatusApproved, StatusRejected},
}

var applicationLifecycle = Lifecycle{
	kind:     KindSellerApplication,
	statuses: []Status{StatusPendingPayment, StatusPendingReview, StatusApproved, StatusRejected},
	edges:    listingEdges,
	settle:   map[Status]Status{StatusPendingPayment: StatusPendingReview},
}

var adLifecycle = Lifecycle{
	kind:     KindAdCampaign,
	statuses: []Status{StatusPendingPayment, StatusPendingReview, StatusApproved, StatusRejected},
	edges:    listingEdges,
	settle:   map[Status]Status{StatusPendingPayment: StatusPendingReview},
}

// LifecycleOf возвращает таблицу переходов вида.
func LifecycleOf(k Kind) Lifecycle {
	switch k {
	case KindOrder:
		return orderLifecycle
	case KindSellerApplication:
		return applicationLifecycle
	default:
		return adLifecycle
	}
}

// Kind — вид, которому принадлежит таблица.
func (l Lifecycle) Kind() Kind { return l.kind }

// Valid сообщает, есть ли такой статус в словаре вида.
func (l Lifecycle) Valid(s Status) bool {
	for _, st := range l.statuses {
		if st == s {
			return true
		}
	}
	return false
}

// Entry — начальный статус. Заказ с оплатой при получении сразу уходит
// в processing; заявки и кампании всегда ждут оплаты или её отмены.
func (l Lifecycle) Entry(method PaymentMethod) Status {
	if l.kind == KindOrder {
		if method.Upfront() {
			return StatusPending
		}
		return StatusProcessing
	}
	return StatusPendingPayment
}

// IsTerminal — из статуса нет исходящих переходов.
func (l Lifecycle) IsTerminal(s Status) bool {
	_, hasEdges := l.edges[s]
	_, settles := l.settle[s]
	return !hasEdges && !settles
}

// CanTransition — есть ли прямое ребро from → to для действия актора.
func (l Lifecycle) CanTransition(from, to Status) bool {
	for _, next := range l.edges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Settled возвращает статус после подтверждения оплаты; для остальных
// статусов он не меняется.
func (l Lifecycle) Settled(from Status) Status {
	if to, ok := l.settle[from]; ok {
		return to
	}
	return from
}

// Reached сообщает, что сущность в статусе current уже находится в target
// или прошла его, то есть current достижим из target по рёбрам и
// автоматическим переходам оплаты.
func (l Lifecycle) Reached(current, target Status) bool {
	if current == target {
		return true
	}
	seen := map[Status]bool{target: true}
	queue := []Status{target}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		next := append([]Status{}, l.edges[s]...)
		if to, ok := l.settle[s]; ok {
			next = append(next, to)
		}
		for _, n := range next {
			if n == current {
				return true
			}
			if !seen[n] {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}
	return false
}

// Check проверяет запрошенный актором переход.
// nil — ребро есть; ErrAlreadyInTargetState — уже там или дальше;
// ErrIllegalTransition — иначе.
func (l Lifecycle) Check(from, to Status) error {
	if !l.Valid(to) {
		return Invalid("status", "неизвестный статус "+string(to))
	}
	if l.Reached(from, to) {
		return ErrAlreadyInTargetState
	}
	if !l.CanTransition(from, to) {
		return ErrIllegalTransition
	}
	return nil
}
