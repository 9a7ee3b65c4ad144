// Package jwt проверяет RS256 токены, выпущенные внешним identity-провайдером.
// Маркетплейс токены не выпускает: ему нужен только публичный ключ,
// а из claims берутся id актора, его роль и email.
package jwt

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken — подпись, срок или формат токена не прошли проверку.
	ErrInvalidToken = errors.New("невалидный токен")
	// ErrRevokedToken — токен отозван через blacklist.
	ErrRevokedToken = errors.New("токен отозван")
)

// Claims — данные токена.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Email  string `json:"email,omitempty"`
}

// Verifier проверяет подпись, издателя и (опционально) blacklist.
type Verifier struct {
	publicKey *rsa.PublicKey
	issuer    string
	blacklist *Blacklist
}

// NewVerifier загружает публичный ключ из PEM файла.
func NewVerifier(publicKeyPath, issuer string) (*Verifier, error) {
	key, err := LoadPublicKey(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки публичного ключа: %w", err)
	}
	return NewVerifierFromKey(key, issuer), nil
}

// NewVerifierFromKey создаёт Verifier с готовым ключом.
func NewVerifierFromKey(key *rsa.PublicKey, issuer string) *Verifier {
	return &Verifier{publicKey: key, issuer: issuer}
}

// SetBlacklist подключает проверку отозванных токенов.
func (v *Verifier) SetBlacklist(bl *Blacklist) {
	v.blacklist = bl
}

// Parse проверяет подпись, срок действия и издателя.
func (v *Verifier) Parse(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return v.publicKey, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: нет user_id", ErrInvalidToken)
	}
	return claims, nil
}

// Verify — Parse плюс проверка blacklist по jti и массовому отзыву пользователя.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := v.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	if v.blacklist == nil {
		return claims, nil
	}

	if claims.ID != "" {
		revoked, err := v.blacklist.Check(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("ошибка проверки blacklist: %w", err)
		}
		if revoked {
			return nil, ErrRevokedToken
		}
	}
	if claims.IssuedAt != nil {
		invalidated, err := v.blacklist.IsUserInvalidated(ctx, claims.UserID, claims.IssuedAt.Time)
		if err != nil {
			return nil, fmt.Errorf("ошибка проверки инвалидации пользователя: %w", err)
		}
		if invalidated {
			return nil, ErrRevokedToken
		}
	}
	return claims, nil
}

// LoadPublicKey читает RSA ключ в формате PKIX или PKCS#1.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла %s: %w", path, err)
	}
	return ParsePublicKeyPEM(data)
}

// ParsePublicKeyPEM разбирает PEM блок с публичным ключом RSA.
func ParsePublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("не удалось декодировать PEM блок")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return x509.ParsePKCS1PublicKey(block.Bytes)
	}
	rsaKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("ключ не является RSA публичным ключом")
	}
	return rsaKey, nil
}
