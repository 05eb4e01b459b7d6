package routes

import (
	"fmt"
	"net/http"
	"time"

	"license-service/apperrors"
	"license-service/controllers"
	"license-service/logger"
	"license-service/middleware"
	awspkg "license-service/pkg/aws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Controllers groups the HTTP handlers.
type Controllers struct {
	Checkout *controllers.CheckoutController
	PayPal   *controllers.PayPalController
	Webhooks *controllers.WebhookController
	Health   *controllers.HealthController
}

// RouterConfig carries the middleware settings for NewRouter.
type RouterConfig struct {
	Logger          *zap.Logger
	Metrics         *awspkg.MetricsClient
	RequestTimeout  time.Duration
	CheckoutLimiter middleware.Admitter
	WebhookLimiter  middleware.Admitter
	TrustedProxies  []string
}

// NewRouter builds the engine with the global middleware chain and all routes.
func NewRouter(cfg RouterConfig, ctl Controllers) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	// Rate limits key on ClientIP, so forwarded headers count only from known proxies.
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		cfg.Logger.Warn("invalid trusted proxies, trusting none", zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}

	var requestMetrics middleware.RequestRecorder
	var checkoutMetrics middleware.MetricsRecorder
	if cfg.Metrics.IsEnabled() {
		requestMetrics = cfg.Metrics
		checkoutMetrics = cfg.Metrics
	}

	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		cfg.Logger.Error("panic recovered", zap.Any("panic", recovered), zap.String("path", c.Request.URL.Path))
		apperrors.HandleError(c.Writer, apperrors.Internal(fmt.Errorf("panic: %v", recovered)))
		c.Abort()
	}))
	r.Use(logger.RequestID())
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(middleware.RequestMetrics(requestMetrics, "license-service", 5*time.Second, cfg.Logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	r.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	r.Use(apperrors.ErrorMiddleware())

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	RegisterRoutes(r, ctl,
		middleware.CheckoutRateLimit(cfg.CheckoutLimiter, checkoutMetrics, cfg.Logger),
		middleware.WebhookRateLimit(cfg.WebhookLimiter),
	)
	return r
}

// RegisterRoutes mounts the endpoints. Every POST route also answers an OPTIONS preflight.
func RegisterRoutes(r *gin.Engine, ctl Controllers, checkoutLimit, webhookLimit gin.HandlerFunc) {
	r.GET("/health", ctl.Health.Health)

	post(r, "/create-checkout-session", checkoutLimit, ctl.Checkout.CreateCheckoutSession)
	post(r, "/webhook/stripe", webhookLimit, ctl.Webhooks.StripeWebhook)
	post(r, "/webhook/paypal", webhookLimit, ctl.PayPal.Webhook)

	paypal := r.Group("/api/paypal")
	post(paypal, "/create-order", checkoutLimit, ctl.PayPal.CreateOrder)
	post(paypal, "/orders/:orderID/capture", ctl.PayPal.CaptureOrder)
	post(paypal, "/capture", ctl.PayPal.CaptureOrder)
}

func post(r gin.IRoutes, path string, handlers ...gin.HandlerFunc) {
	r.POST(path, handlers...)
	r.OPTIONS(path, preflight)
}

func preflight(c *gin.Context) {
	c.Status(http.StatusOK)
}
