package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// CredentialsSecretName holds provider and SMTP credentials when AWS_USE_SECRETS=true.
const CredentialsSecretName = "license-service/CREDENTIALS"

type Config struct {
	Port        string `validate:"required,numeric"`
	Env         string `validate:"required"`
	LogLevel    string
	FrontendURL string `validate:"required,url"`

	StripeSecretKey  string
	StripeWebhookKey string

	PayPalClientID     string
	PayPalClientSecret string
	PayPalBaseURL      string `validate:"required,url"`
	PayPalWebhookID    string

	EmailHost    string
	EmailPort    int `validate:"min=1,max=65535"`
	EmailUser    string
	EmailPass    string
	EmailFrom    string `validate:"omitempty,email"`
	BrandName    string
	SupportEmail string

	CheckoutRateLimit    int           `validate:"gt=0"`
	CheckoutRateWindow   time.Duration `validate:"gt=0"`
	WebhookRatePerMinute int           `validate:"gt=0"`
	RequestTimeout       time.Duration `validate:"gt=0"`

	// TrustedProxies are the addresses or CIDRs whose X-Forwarded-For is honored.
	// Empty means the client IP is always the socket peer.
	TrustedProxies []string `validate:"dive,ip|cidr"`

	FulfillmentSNSTopicARN string
	DeliveryDLQURL         string

	UseSecrets         bool
	CloudWatchEnabled  bool
	CloudWatchLogGroup string
	MetricsNamespace   string
}

// SecretSource reads a flat JSON secret.
type SecretSource interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
}

// ServiceStatus reports which integrations have credentials configured.
type ServiceStatus struct {
	Stripe bool `json:"stripe"`
	PayPal bool `json:"paypal"`
	Email  bool `json:"email"`
}

// LoadConfig reads configuration from an optional .env file and the environment.
// Provider credentials are optional; a provider without them is reported as
// unconfigured instead of failing startup.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("APP_ENV", getEnv("NODE_ENV", "development"))

	emailPort, err := getInt("EMAIL_PORT", 587)
	if err != nil {
		return nil, err
	}
	rateLimit, err := getInt("CHECKOUT_RATE_LIMIT", 50)
	if err != nil {
		return nil, err
	}
	webhookRate, err := getInt("WEBHOOK_RATE_PER_MINUTE", 100)
	if err != nil {
		return nil, err
	}
	rateWindow, err := getDuration("CHECKOUT_RATE_WINDOW", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	requestTimeout, err := getDuration("REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:        getEnv("PORT", "4242"),
		Env:         env,
		LogLevel:    os.Getenv("LOG_LEVEL"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		StripeSecretKey:  os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookKey: os.Getenv("STRIPE_WEBHOOK_SECRET"),

		PayPalClientID:     os.Getenv("PAYPAL_CLIENT_ID"),
		PayPalClientSecret: os.Getenv("PAYPAL_CLIENT_SECRET"),
		PayPalBaseURL:      getEnv("PAYPAL_BASE_URL", defaultPayPalURL(env)),
		PayPalWebhookID:    os.Getenv("PAYPAL_WEBHOOK_ID"),

		EmailHost:    getEnv("EMAIL_HOST", "smtp.gmail.com"),
		EmailPort:    emailPort,
		EmailUser:    os.Getenv("EMAIL_USER"),
		EmailPass:    os.Getenv("EMAIL_PASS"),
		EmailFrom:    getEnv("EMAIL_FROM", "commercial@ssdf.work.gd"),
		BrandName:    getEnv("BRAND_NAME", "SSDF"),
		SupportEmail: getEnv("SUPPORT_EMAIL", "support@ssdf.work.gd"),

		CheckoutRateLimit:    rateLimit,
		CheckoutRateWindow:   rateWindow,
		WebhookRatePerMinute: webhookRate,
		RequestTimeout:       requestTimeout,
		TrustedProxies:       getList("TRUSTED_PROXIES"),

		FulfillmentSNSTopicARN: os.Getenv("FULFILLMENT_SNS_TOPIC_ARN"),
		DeliveryDLQURL:         os.Getenv("DELIVERY_DLQ_URL"),

		UseSecrets:         os.Getenv("AWS_USE_SECRETS") == "true",
		CloudWatchEnabled:  os.Getenv("CLOUDWATCH_ENABLED") == "true",
		CloudWatchLogGroup: getEnv("CLOUDWATCH_LOG_GROUP", "/license-service"),
		MetricsNamespace:   getEnv("CLOUDWATCH_NAMESPACE", "LicenseService"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the non-credential settings.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func defaultPayPalURL(env string) string {
	if env == "production" {
		return "https://api-m.paypal.com"
	}
	return "https://api-m.sandbox.paypal.com"
}

// ApplySecrets overrides credentials with values from Secrets Manager. Keys are the
// environment variable names; absent or empty keys leave the current value.
func (c *Config) ApplySecrets(ctx context.Context, src SecretSource) error {
	values, err := src.GetSecretMap(ctx, CredentialsSecretName)
	if err != nil {
		return err
	}

	override := func(key string, dst *string) {
		if v, ok := values[key]; ok && v != "" {
			*dst = v
		}
	}
	override("STRIPE_SECRET_KEY", &c.StripeSecretKey)
	override("STRIPE_WEBHOOK_SECRET", &c.StripeWebhookKey)
	override("PAYPAL_CLIENT_ID", &c.PayPalClientID)
	override("PAYPAL_CLIENT_SECRET", &c.PayPalClientSecret)
	override("PAYPAL_WEBHOOK_ID", &c.PayPalWebhookID)
	override("EMAIL_USER", &c.EmailUser)
	override("EMAIL_PASS", &c.EmailPass)
	return nil
}

func (c *Config) StripeConfigured() bool {
	return c.StripeSecretKey != "" && c.StripeWebhookKey != ""
}

func (c *Config) PayPalConfigured() bool {
	return c.PayPalClientID != "" && c.PayPalClientSecret != ""
}

func (c *Config) EmailConfigured() bool {
	return c.EmailHost != "" && c.EmailUser != "" && c.EmailPass != ""
}

// Services reports configuration presence, not live connectivity.
func (c *Config) Services() ServiceStatus {
	return ServiceStatus{
		Stripe: c.StripeConfigured(),
		PayPal: c.PayPalConfigured(),
		Email:  c.EmailConfigured(),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
