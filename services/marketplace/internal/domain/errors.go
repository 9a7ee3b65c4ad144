// Package domain — платёжные сущности маркетплейса (заказ, заявка продавца,
// рекламная кампания), их жизненные циклы и политика доступа.
package domain

import (
	"errors"
	"fmt"
)

// Ошибки сверки. Отказы по правам и по переходам не мутируют строку.
var (
	// ErrUnauthorized — у актора нет права на действие над этой сущностью.
	ErrUnauthorized = errors.New("действие запрещено для актора")

	// ErrIllegalTransition — переход отсутствует в таблице жизненного цикла.
	ErrIllegalTransition = errors.New("недопустимый переход состояния")

	// ErrAlreadyInTargetState — сущность уже в целевом состоянии или дальше.
	// Сервисный слой превращает её в успешный no-op.
	ErrAlreadyInTargetState = errors.New("сущность уже в целевом состоянии")

	// ErrMalformedReference — платёжная ссылка не разбирается.
	ErrMalformedReference = errors.New("некорректная платёжная ссылка")

	// ErrInsufficientStock — запрошено больше, чем есть на складе.
	ErrInsufficientStock = errors.New("недостаточно товара на складе")

	// ErrPaymentInitiationFailed — провайдер не создал платёжную сессию.
	ErrPaymentInitiationFailed = errors.New("не удалось создать платёжную сессию")

	// ErrInvalidSignature — подпись вебхука не прошла проверку.
	ErrInvalidSignature = errors.New("невалидная подпись вебхука")

	// ErrEntityNotFound — платёжная сущность не найдена.
	ErrEntityNotFound = errors.New("платёжная сущность не найдена")

	// ErrProductNotFound — товар не найден.
	ErrProductNotFound = errors.New("товар не найден")

	// ErrConcurrentUpdate — строка менялась параллельно слишком много раз подряд.
	ErrConcurrentUpdate = errors.New("сущность изменена параллельно, повторите запрос")
)

// ErrPaymentRequired — кампанию нельзя одобрить без оплаты.
// Это частный случай ErrIllegalTransition.
var ErrPaymentRequired = fmt.Errorf("%w: оплата не получена", ErrIllegalTransition)

// ValidationError — некорректные входные данные действия.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("поле %s: %s", e.Field, e.Message)
}

// Invalid создаёт ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation сообщает, является ли ошибка ошибкой валидации.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
