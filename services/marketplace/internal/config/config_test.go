package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("JWT_PUBLIC_KEY_PATH", "/keys/jwt.pub")

	cfg := &Config{}
	require.NoError(t, env.Parse(cfg))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
	assert.Equal(t, "stripe", cfg.Marketplace.CardGateway)
	assert.Equal(t, "10000", cfg.Marketplace.Fee().String())
	assert.Equal(t, "XAF", cfg.Marketplace.FeeCurrency)
	assert.Equal(t, 5, cfg.Marketplace.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Marketplace.GatewayTimeout)
	assert.Equal(t, "650", cfg.Marketplace.CardXAFPerUSD.String())
	assert.Equal(t, int64(100), cfg.Marketplace.CardMinAmountCents)
	assert.False(t, cfg.Stripe.Enabled())
	assert.False(t, cfg.PayPal.Enabled())
}

func TestValidate_UnknownCardGateway(t *testing.T) {
	t.Setenv("JWT_PUBLIC_KEY_PATH", "/keys/jwt.pub")
	t.Setenv("CARD_GATEWAY", "square")

	cfg := &Config{}
	require.NoError(t, env.Parse(cfg))
	assert.Error(t, cfg.Validate())
}

func TestValidate_CardPricing(t *testing.T) {
	t.Setenv("JWT_PUBLIC_KEY_PATH", "/keys/jwt.pub")
	t.Setenv("CARD_XAF_PER_USD", "655.957")
	t.Setenv("CARD_MIN_AMOUNT_CENTS", "50")

	cfg := &Config{}
	require.NoError(t, env.Parse(cfg))
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "655.957", cfg.Marketplace.CardXAFPerUSD.String())
	assert.Equal(t, int64(50), cfg.Marketplace.CardMinAmountCents)

	cfg.Marketplace.CardXAFPerUSD = decimal.Zero
	assert.ErrorContains(t, cfg.Validate(), "CARD_XAF_PER_USD")
}
