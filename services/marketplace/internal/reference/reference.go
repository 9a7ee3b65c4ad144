// Package reference кодирует платёжные ссылки: вид сущности плюс её id
// (или id сессии провайдера) в одной строке, которую провайдер вернёт
// во вебхуке.
//
// Две формы:
//
//	<tag>-<uuid>     ссылка на сущность, её отправляют провайдеру при оплате
//	<tag>:<session>  ссылка на сессию провайдера, который сам выдаёт id
package reference

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"example.com/marketplace/services/marketplace/internal/domain"
)

const (
	entitySep  = "-"
	sessionSep = ":"
)

// Form — форма ссылки.
type Form int

const (
	FormEntity Form = iota + 1
	FormSession
)

var tags = map[domain.Kind]string{
	domain.KindOrder:             "order",
	domain.KindSellerApplication: "seller_fee",
	domain.KindAdCampaign:        "ad",
}

// Старые заказы оплачивались со ссылкой ec-<uuid>.
var aliases = map[string]domain.Kind{
	"order":      domain.KindOrder,
	"ec":         domain.KindOrder,
	"seller_fee": domain.KindSellerApplication,
	"ad":         domain.KindAdCampaign,
}

var sessionPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,255}$`)

// Decoded — разобранная ссылка.
type Decoded struct {
	Kind  domain.Kind
	Value string // uuid сущности или id сессии
	Form  Form
}

// Tag возвращает префикс вида.
func Tag(kind domain.Kind) string {
	return tags[kind]
}

// Encode строит ссылку на сущность: тег вида плюс её uuid.
func Encode(kind domain.Kind, id string) (string, error) {
	tag, ok := tags[kind]
	if !ok {
		return "", fmt.Errorf("%w: неизвестный вид %q", domain.ErrMalformedReference, kind)
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: id %q не uuid", domain.ErrMalformedReference, id)
	}
	return tag + entitySep + strings.ToLower(id), nil
}

// EncodeSession строит ссылку на сессию провайдера.
func EncodeSession(kind domain.Kind, session string) (string, error) {
	tag, ok := tags[kind]
	if !ok {
		return "", fmt.Errorf("%w: неизвестный вид %q", domain.ErrMalformedReference, kind)
	}
	if !sessionPattern.MatchString(session) {
		return "", fmt.Errorf("%w: некорректный id сессии", domain.ErrMalformedReference)
	}
	return tag + sessionSep + session, nil
}

// Decode разбирает ссылку любой формы.
func Decode(ref string) (Decoded, error) {
	ref = strings.TrimSpace(ref)
	idx := strings.IndexAny(ref, entitySep+sessionSep)
	if idx <= 0 || idx == len(ref)-1 {
		return Decoded{}, fmt.Errorf("%w: %q", domain.ErrMalformedReference, ref)
	}

	kind, ok := aliases[ref[:idx]]
	if !ok {
		return Decoded{}, fmt.Errorf("%w: неизвестный тег %q", domain.ErrMalformedReference, ref[:idx])
	}

	value := ref[idx+1:]
	if ref[idx:idx+1] == sessionSep {
		if !sessionPattern.MatchString(value) {
			return Decoded{}, fmt.Errorf("%w: некорректный id сессии", domain.ErrMalformedReference)
		}
		return Decoded{Kind: kind, Value: value, Form: FormSession}, nil
	}

	id, err := uuid.Parse(value)
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: id %q не uuid", domain.ErrMalformedReference, value)
	}
	return Decoded{Kind: kind, Value: id.String(), Form: FormEntity}, nil
}

// Strip снимает тег, если он есть. Нераспознанная строка возвращается как есть.
func Strip(ref string) string {
	if d, err := Decode(ref); err == nil {
		return d.Value
	}
	return strings.TrimSpace(ref)
}

// Candidates возвращает варианты хранимой ссылки для значения из вебхука:
// как есть, без тега и с тегом каждого вида. Провайдеры по-разному эхом
// возвращают ссылку, поэтому сверка пробует все варианты.
func Candidates(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	add(raw)
	bare := Strip(raw)
	add(bare)
	for _, kind := range domain.Kinds {
		if ref, err := EncodeSession(kind, bare); err == nil {
			add(ref)
		}
		if ref, err := Encode(kind, bare); err == nil {
			add(ref)
		}
	}
	return out
}
