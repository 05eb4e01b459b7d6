package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"license-service/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "APP_ENV", "NODE_ENV", "STRIPE_SECRET_KEY", "PAYPAL_CLIENT_ID", "EMAIL_USER", "PAYPAL_BASE_URL",
		"CHECKOUT_RATE_LIMIT", "CHECKOUT_RATE_WINDOW", "REQUEST_TIMEOUT", "WEBHOOK_RATE_PER_MINUTE", "EMAIL_PORT", "TRUSTED_PROXIES"} {
		t.Setenv(k, "")
	}

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "4242", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "https://api-m.sandbox.paypal.com", cfg.PayPalBaseURL)
	assert.Equal(t, 587, cfg.EmailPort)
	assert.Equal(t, 50, cfg.CheckoutRateLimit)
	assert.Equal(t, 15*time.Minute, cfg.CheckoutRateWindow)
	assert.Equal(t, 100, cfg.WebhookRatePerMinute)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Empty(t, cfg.TrustedProxies)
	assert.Equal(t, config.ServiceStatus{}, cfg.Services())
}

func TestLoadConfig_ProductionUsesLivePayPal(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("PAYPAL_BASE_URL", "")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "https://api-m.paypal.com", cfg.PayPalBaseURL)
}

func TestLoadConfig_InvalidNumbers(t *testing.T) {
	t.Setenv("CHECKOUT_RATE_LIMIT", "lots")
	_, err := config.LoadConfig()
	assert.Error(t, err)

	t.Setenv("CHECKOUT_RATE_LIMIT", "0")
	_, err = config.LoadConfig()
	assert.Error(t, err)

	t.Setenv("CHECKOUT_RATE_LIMIT", "")
	t.Setenv("REQUEST_TIMEOUT", "soon")
	_, err = config.LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_RejectsInvalidSettings(t *testing.T) {
	cases := map[string]string{
		"EMAIL_PORT":      "70000",
		"FRONTEND_URL":    "not a url",
		"EMAIL_FROM":      "nobody",
		"REQUEST_TIMEOUT": "-1s",
		"PORT":            "http",
		"TRUSTED_PROXIES": "10.0.0.1,not-an-ip",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := config.LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}

func TestLoadConfig_TrustedProxies(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", " 10.0.0.1, 192.168.0.0/16 ,")
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "192.168.0.0/16"}, cfg.TrustedProxies)
}

func TestServices_ReportsPresence(t *testing.T) {
	cfg := &config.Config{
		StripeSecretKey:  "sk_test",
		StripeWebhookKey: "whsec",
		PayPalClientID:   "id",
		EmailHost:        "smtp.example.com",
		EmailUser:        "u",
		EmailPass:        "p",
	}
	assert.Equal(t, config.ServiceStatus{Stripe: true, PayPal: false, Email: true}, cfg.Services())
}

type fakeSecrets struct {
	values map[string]string
	err    error
	asked  string
}

func (f *fakeSecrets) GetSecretMap(_ context.Context, name string) (map[string]string, error) {
	f.asked = name
	return f.values, f.err
}

func TestApplySecrets(t *testing.T) {
	cfg := &config.Config{StripeSecretKey: "from-env", EmailUser: "env-user"}
	src := &fakeSecrets{values: map[string]string{
		"STRIPE_SECRET_KEY":    "from-secret",
		"PAYPAL_CLIENT_SECRET": "pp-secret",
		"EMAIL_USER":           "",
	}}

	require.NoError(t, cfg.ApplySecrets(context.Background(), src))
	assert.Equal(t, config.CredentialsSecretName, src.asked)
	assert.Equal(t, "from-secret", cfg.StripeSecretKey)
	assert.Equal(t, "pp-secret", cfg.PayPalClientSecret)
	assert.Equal(t, "env-user", cfg.EmailUser)
}

func TestApplySecrets_Error(t *testing.T) {
	cfg := &config.Config{}
	err := cfg.ApplySecrets(context.Background(), &fakeSecrets{err: errors.New("denied")})
	assert.Error(t, err)
}
