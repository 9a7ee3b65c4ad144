package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"example.com/marketplace/services/marketplace/internal/domain"
)

// StripeTolerance — допустимое расхождение времени подписи.
const StripeTolerance = 5 * time.Minute

// VerifyStripeSignature проверяет заголовок вида t=<unix>,v1=<hex>[,v1=...]:
// HMAC-SHA256 от "<t>.<payload>" на секрете вебхука.
func VerifyStripeSignature(payload []byte, header, secret string, now time.Time, tolerance time.Duration) error {
	if secret == "" || header == "" {
		return domain.ErrInvalidSignature
	}

	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == "" || len(sigs) == 0 {
		return fmt.Errorf("%w: нет t или v1", domain.ErrInvalidSignature)
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: t не число", domain.ErrInvalidSignature)
	}
	signedAt := time.Unix(unix, 0)
	if tolerance > 0 && (now.Sub(signedAt) > tolerance || signedAt.Sub(now) > tolerance) {
		return fmt.Errorf("%w: подпись устарела", domain.ErrInvalidSignature)
	}

	expected := SignStripePayload(payload, ts, secret)
	for _, sig := range sigs {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return domain.ErrInvalidSignature
}

// SignStripePayload считает v1-подпись. Используется и в тестах.
func SignStripePayload(payload []byte, ts, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// verifySharedHash сравнивает заголовок с общим секретом за постоянное время.
func verifySharedHash(got, secret string) error {
	if secret == "" || got == "" {
		return domain.ErrInvalidSignature
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
		return domain.ErrInvalidSignature
	}
	return nil
}
