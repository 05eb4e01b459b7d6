package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"license-service/config"
	"license-service/controllers"
	"license-service/events"
	"license-service/logger"
	"license-service/middleware"
	"license-service/models"
	awspkg "license-service/pkg/aws"
	"license-service/providers"
	"license-service/repository"
	"license-service/routes"
	"license-service/sender"
	"license-service/services"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("[LicenseService] Failed to load config: ", err)
	}

	ctx := context.Background()

	var awsCfg sdkaws.Config
	needAWS := cfg.UseSecrets || cfg.CloudWatchEnabled || cfg.FulfillmentSNSTopicARN != "" || cfg.DeliveryDLQURL != ""
	if needAWS {
		awsCfg, err = awspkg.LoadAWSConfig(ctx)
		if err != nil {
			log.Fatal("[LicenseService] Failed to load AWS config: ", err)
		}
	}

	var cwWriter io.Writer
	if cfg.CloudWatchEnabled {
		cw, err := awspkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.CloudWatchLogGroup, "license-service")
		if err != nil {
			fmt.Fprintf(os.Stderr, "CloudWatch Logs init failed (non-fatal): %v\n", err)
		} else {
			cwWriter = cw
		}
	}

	appLogger, err := logger.New(cfg.Env, cfg.LogLevel, cwWriter)
	if err != nil {
		log.Fatal("[LicenseService] Failed to initialize logger: ", err)
	}
	defer appLogger.Sync()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.UseSecrets {
		if err := cfg.ApplySecrets(ctx, awspkg.NewSecretsClient(awsCfg)); err != nil {
			appLogger.Warn("Secrets Manager override failed, using environment", zap.Error(err))
		}
	}

	var metricsClient *awspkg.MetricsClient
	var recorder services.MetricsRecorder
	if cfg.CloudWatchEnabled {
		metricsClient = awspkg.NewMetricsClient(awsCfg, cfg.MetricsNamespace, true)
		recorder = metricsClient
	}

	var snsPublisher awspkg.SNSPublisher
	if cfg.FulfillmentSNSTopicARN != "" {
		snsPublisher = awspkg.NewSNSClient(awsCfg)
	}
	var dlq awspkg.QueueSender
	if cfg.DeliveryDLQURL != "" {
		dlq = awspkg.NewSQSSender(awsCfg, cfg.DeliveryDLQURL)
	}
	publisher := events.NewPublisher(snsPublisher, cfg.FulfillmentSNSTopicARN, dlq, appLogger)

	emailSender := sender.Disabled()
	if cfg.EmailConfigured() {
		smtpSender, err := sender.NewSMTPSender(sender.SMTPConfig{
			Host:     cfg.EmailHost,
			Port:     strconv.Itoa(cfg.EmailPort),
			Username: cfg.EmailUser,
			Password: cfg.EmailPass,
			From:     cfg.EmailFrom,
		})
		if err != nil {
			appLogger.Fatal("Failed to init SMTP sender", zap.Error(err))
		}
		emailSender = smtpSender
	} else {
		appLogger.Warn("Email not configured; license deliveries will be recorded as failed")
	}

	// Core pipeline
	prices := services.NewPriceAuthority(services.DefaultPriceMap)
	validator := services.NewCartValidator(prices)
	dedup := services.NewEventDeduplicator(repository.NewMemoryProcessedEventRepo())

	tmpl := services.DefaultEmailTemplate
	tmpl.Brand = cfg.BrandName
	tmpl.Subject = "Your " + cfg.BrandName + " License Keys"
	tmpl.SupportEmail = cfg.SupportEmail
	issuer := services.NewEmailLicenseIssuer(emailSender, tmpl, appLogger)
	engine := services.NewFulfillmentEngine(issuer, services.InferTier, cfg.RequestTimeout, appLogger)
	fulfillment := services.NewFulfillmentService(dedup, engine, publisher, recorder, appLogger)

	// Providers
	creators := map[models.Provider]services.IntentCreator{}
	var stripeParser controllers.StripeWebhookParser
	if cfg.StripeConfigured() {
		stripeSvc := providers.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookKey, cfg.FrontendURL)
		creators[models.ProviderStripe] = stripeSvc
		stripeParser = stripeSvc
	} else {
		appLogger.Warn("Stripe not configured")
	}

	var paypalGateway controllers.PayPalGateway
	if cfg.PayPalConfigured() {
		paypal := providers.NewPayPalProvider(providers.PayPalConfig{
			ClientID:     cfg.PayPalClientID,
			ClientSecret: cfg.PayPalClientSecret,
			BaseURL:      cfg.PayPalBaseURL,
			WebhookID:    cfg.PayPalWebhookID,
			BrandName:    cfg.BrandName,
			FrontendURL:  cfg.FrontendURL,
			Timeout:      cfg.RequestTimeout,
		})
		creators[models.ProviderPayPal] = paypal
		paypalGateway = paypal
	} else {
		appLogger.Warn("PayPal not configured")
	}

	checkout := services.NewCheckoutService(validator, creators, recorder, appLogger)

	// Limiters
	stop := make(chan struct{})
	webhookLimiter := middleware.NewTokenBucketLimiter(cfg.WebhookRatePerMinute, 5*time.Minute)
	webhookLimiter.StartCleanup(stop)

	router := routes.NewRouter(routes.RouterConfig{
		Logger:          appLogger,
		Metrics:         metricsClient,
		RequestTimeout:  cfg.RequestTimeout,
		CheckoutLimiter: middleware.NewSlidingWindowLimiter(cfg.CheckoutRateLimit, cfg.CheckoutRateWindow),
		WebhookLimiter:  webhookLimiter,
		TrustedProxies:  cfg.TrustedProxies,
	}, routes.Controllers{
		Checkout: controllers.NewCheckoutController(checkout, appLogger),
		PayPal:   controllers.NewPayPalController(checkout, paypalGateway, fulfillment, appLogger),
		Webhooks: controllers.NewWebhookController(stripeParser, fulfillment, appLogger),
		Health:   controllers.NewHealthController(cfg.Services(), cfg.Env),
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		appLogger.Info("License service started",
			zap.String("port", cfg.Port),
			zap.String("environment", cfg.Env),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Initiating graceful shutdown...")
	close(stop)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}

	appLogger.Info("License service stopped gracefully")
}
