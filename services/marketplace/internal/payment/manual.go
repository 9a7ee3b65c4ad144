package payment

import "context"

// Manual — оплата вне шлюза (наличными при получении, переводом).
// Сессия не создаётся, состояние оплаты остаётся прежним.
type Manual struct{}

// Name возвращает имя провайдера.
func (Manual) Name() string { return "manual" }

// Initiate ничего не вызывает.
func (Manual) Initiate(context.Context, Checkout) (*Session, error) {
	return &Session{Immediate: true}, nil
}
