package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"license-service/apperrors"
	"license-service/logger"
	"license-service/models"
	"license-service/providers"
	"license-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PayPalGateway is the PayPal adapter surface used after checkout.
type PayPalGateway interface {
	Capture(ctx context.Context, orderID string) (*providers.CaptureResult, error)
	WebhookVerificationEnabled() bool
	VerifyWebhook(ctx context.Context, headers http.Header, body []byte) error
}

// PayPalController handles PayPal order creation, capture and webhooks.
type PayPalController struct {
	checkout    services.CheckoutService
	paypal      PayPalGateway
	fulfillment services.FulfillmentService
	logger      *zap.Logger
}

// NewPayPalController creates a PayPalController. A nil gateway means PayPal is not configured.
func NewPayPalController(checkout services.CheckoutService, paypal PayPalGateway, fulfillment services.FulfillmentService, logger *zap.Logger) *PayPalController {
	return &PayPalController{
		checkout:    checkout,
		paypal:      paypal,
		fulfillment: fulfillment,
		logger:      logger,
	}
}

type createOrderRequest struct {
	Cart []models.CartItem `json:"cart"`
}

// CreateOrder handles POST /api/paypal/create-order
func (pc *PayPalController) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(invalidBody(err))
		return
	}

	ref, err := pc.checkout.CreateIntent(c.Request.Context(), models.ProviderPayPal, req.Cart, "")
	if err != nil {
		logger.FromContext(c, pc.logger).Warn("PayPal order creation failed", zap.Error(err))
		_ = c.Error(toAppError(err, http.StatusInternalServerError))
		return
	}

	logger.FromContext(c, pc.logger).Info("PayPal order created", zap.String("order_id", ref.ID))
	c.JSON(http.StatusOK, gin.H{"id": ref.ID})
}

// CaptureOrder handles POST /api/paypal/orders/:orderID/capture and POST /api/paypal/capture.
// The order id comes from the path, then the query string, then the JSON body.
func (pc *PayPalController) CaptureOrder(c *gin.Context) {
	log := logger.FromContext(c, pc.logger)

	orderID := strings.TrimSpace(c.Param("orderID"))
	if orderID == "" {
		orderID = strings.TrimSpace(c.Query("orderID"))
	}
	if orderID == "" {
		var body struct {
			OrderID string `json:"orderID"`
		}
		_ = c.ShouldBindJSON(&body)
		orderID = strings.TrimSpace(body.OrderID)
	}
	if orderID == "" {
		_ = c.Error(apperrors.New(http.StatusBadRequest, apperrors.KindValidation, "Order ID required", nil))
		return
	}

	if pc.paypal == nil {
		_ = c.Error(apperrors.NotConfigured("paypal"))
		return
	}

	ctx := c.Request.Context()
	result, err := pc.paypal.Capture(ctx, orderID)
	if err != nil {
		log.Error("PayPal capture failed", zap.String("order_id", orderID), zap.Error(err))
		_ = c.Error(toAppError(err, http.StatusInternalServerError))
		return
	}

	event, err := result.PaymentEvent()
	if errors.Is(err, providers.ErrNoPayerEmail) {
		log.Error("PayPal order missing email", zap.String("order_id", orderID))
		_ = c.Error(apperrors.MissingPayerEmail(orderID))
		return
	}
	if err != nil {
		_ = c.Error(apperrors.Internal(err))
		return
	}

	outcome, err := pc.fulfillment.Process(ctx, event)
	if err != nil {
		log.Error("PayPal fulfillment failed", zap.String("order_id", orderID), zap.Error(err))
		_ = c.Error(toAppError(err, http.StatusInternalServerError))
		return
	}
	if outcome.Duplicate {
		log.Info("PayPal capture already fulfilled", zap.String("order_id", orderID))
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", result.Raw)
}

// Webhook handles POST /webhook/paypal. Deliveries are acknowledged and logged but never
// fulfill; capture is the only PayPal fulfillment path.
func (pc *PayPalController) Webhook(c *gin.Context) {
	log := logger.FromContext(c, pc.logger)

	body, err := readWebhookBody(c)
	if err != nil {
		_ = c.Error(invalidBody(err))
		return
	}

	if pc.paypal != nil && pc.paypal.WebhookVerificationEnabled() {
		if err := pc.paypal.VerifyWebhook(c.Request.Context(), c.Request.Header, body); err != nil {
			log.Warn("PayPal webhook verification failed", zap.Error(err))
			_ = c.Error(toAppError(err, http.StatusInternalServerError))
			return
		}
	}

	var evt struct {
		ID        string `json:"id"`
		EventType string `json:"event_type"`
	}
	_ = json.Unmarshal(body, &evt)

	log.Info("PayPal webhook received",
		zap.String("event_type", evt.EventType),
		zap.String("webhook_event_id", evt.ID),
	)
	c.JSON(http.StatusOK, gin.H{"received": true})
}
