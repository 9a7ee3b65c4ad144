package jwt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIssuer = "marketplace-identity"

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func sign(t *testing.T, key *rsa.PrivateKey, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims(userID, role string) Claims {
	now := time.Now()
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti-" + userID,
			Issuer:    testIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
		},
		UserID: userID,
		Role:   role,
		Email:  userID + "@example.com",
	}
}

func TestVerifier_Parse(t *testing.T) {
	key := generateKey(t)
	other := generateKey(t)
	v := NewVerifierFromKey(&key.PublicKey, testIssuer)

	expired := validClaims("u1", "buyer")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	foreign := validClaims("u1", "buyer")
	foreign.Issuer = "someone-else"

	noUser := validClaims("", "buyer")
	noUser.Subject = ""

	fromSubject := validClaims("u2", "seller")
	fromSubject.UserID = ""

	tests := []struct {
		name     string
		token    string
		wantErr  bool
		wantUser string
		wantRole string
	}{
		{"валидный токен", sign(t, key, validClaims("u1", "admin")), false, "u1", "admin"},
		{"user_id из sub", sign(t, key, fromSubject), false, "u2", "seller"},
		{"чужая подпись", sign(t, other, validClaims("u1", "admin")), true, "", ""},
		{"истёк", sign(t, key, expired), true, "", ""},
		{"чужой издатель", sign(t, key, foreign), true, "", ""},
		{"без пользователя", sign(t, key, noUser), true, "", ""},
		{"мусор", "not-a-token", true, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := v.Parse(tt.token)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, claims.UserID)
			assert.Equal(t, tt.wantRole, claims.Role)
		})
	}
}

func TestVerifier_RejectsHS256(t *testing.T) {
	key := generateKey(t)
	v := NewVerifierFromKey(&key.PublicKey, testIssuer)

	hs, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims("u1", "admin")).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = v.Parse(hs)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifier_VerifyWithBlacklist(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	key := generateKey(t)
	v := NewVerifierFromKey(&key.PublicKey, testIssuer)
	v.SetBlacklist(NewBlacklist(rdb))
	ctx := context.Background()

	token := sign(t, key, validClaims("u1", "seller"))
	claims, err := v.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "u1@example.com", claims.Email)

	require.NoError(t, mr.Set(prefixToken+"jti-u1", "1"))
	_, err = v.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrRevokedToken)

	token2 := sign(t, key, validClaims("u2", "buyer"))
	require.NoError(t, mr.Set(prefixUser+"u2", strconv.FormatInt(time.Now().Unix(), 10)))
	_, err = v.Verify(ctx, token2)
	assert.ErrorIs(t, err, ErrRevokedToken, "токен выдан до массового отзыва")
}

func TestVerifier_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	key := generateKey(t)
	v := NewVerifierFromKey(&key.PublicKey, testIssuer)
	v.SetBlacklist(NewBlacklist(rdb))
	mr.Close()

	_, err := v.Verify(context.Background(), sign(t, key, validClaims("u1", "buyer")))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}

func TestLoadPublicKey(t *testing.T) {
	key := generateKey(t)
	dir := t.TempDir()

	pkix, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pkixPath := filepath.Join(dir, "pkix.pem")
	require.NoError(t, os.WriteFile(pkixPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pkix}), 0o600))

	pkcs1Path := filepath.Join(dir, "pkcs1.pem")
	require.NoError(t, os.WriteFile(pkcs1Path, pem.EncodeToMemory(&pem.Block{
		Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(&key.PublicKey),
	}), 0o600))

	for _, path := range []string{pkixPath, pkcs1Path} {
		got, err := LoadPublicKey(path)
		require.NoError(t, err, path)
		assert.Equal(t, key.PublicKey.N, got.N)
	}

	_, err = LoadPublicKey(filepath.Join(dir, "missing.pem"))
	assert.Error(t, err)

	garbage := filepath.Join(dir, "garbage.pem")
	require.NoError(t, os.WriteFile(garbage, []byte("not pem"), 0o600))
	_, err = LoadPublicKey(garbage)
	assert.Error(t, err)

	v, err := NewVerifier(pkixPath, testIssuer)
	require.NoError(t, err)
	_, err = v.Parse(sign(t, key, validClaims("u1", "buyer")))
	assert.NoError(t, err)
}
