package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DevelopmentDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("FRONTEND_URL", "http://localhost:5173/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "http://localhost:5173", cfg.FrontendURL)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins)
	assert.Equal(t, 72*time.Hour, cfg.AutoReleaseWindow)
	assert.Equal(t, "*/15 * * * *", cfg.AutoReleaseSchedule)
	assert.Equal(t, "25", cfg.DisputeFee.String())
	assert.Equal(t, "usd", cfg.Stripe.Currency)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_ProductionRequiresSecrets(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "short")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ProductionRequiresStripe(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("REFRESH_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.myhomebro.com")
	t.Setenv("STRIPE_SECRET_KEY", "")

	_, err := Load()
	assert.ErrorContains(t, err, "STRIPE_SECRET_KEY")
}

func TestLoad_ParsesOriginsAndFee(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("DISPUTE_FEE", "40.50")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, "40.5", cfg.DisputeFee.String())
}

func TestLoad_RejectsNegativeFee(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DISPUTE_FEE", "-1")

	_, err := Load()
	assert.Error(t, err)
}
