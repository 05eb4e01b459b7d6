package controllers

import (
	"errors"
	"net/http"

	"license-service/apperrors"
	"license-service/logger"
	"license-service/providers"
	"license-service/services"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

// StripeWebhookParser verifies and decodes a Stripe webhook delivery.
type StripeWebhookParser interface {
	ParseWebhook(payload []byte, sigHeader string) (stripe.Event, error)
}

// WebhookController handles Stripe webhook deliveries.
type WebhookController struct {
	stripe      StripeWebhookParser
	fulfillment services.FulfillmentService
	logger      *zap.Logger
}

// NewWebhookController creates a WebhookController. A nil parser means Stripe is not configured.
func NewWebhookController(parser StripeWebhookParser, fulfillment services.FulfillmentService, logger *zap.Logger) *WebhookController {
	return &WebhookController{stripe: parser, fulfillment: fulfillment, logger: logger}
}

// StripeWebhook handles POST /webhook/stripe. Every verified event id is consumed before the
// event type is looked at, so redeliveries of any type are acknowledged as duplicates.
func (wc *WebhookController) StripeWebhook(c *gin.Context) {
	log := logger.FromContext(c, wc.logger)

	if wc.stripe == nil {
		_ = c.Error(apperrors.NotConfigured("stripe"))
		return
	}

	payload, err := readWebhookBody(c)
	if err != nil {
		_ = c.Error(invalidBody(err))
		return
	}

	event, err := wc.stripe.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		log.Warn("Webhook signature verification failed", zap.Error(err))
		_ = c.Error(apperrors.Signature(err))
		return
	}

	ctx := c.Request.Context()
	first, err := wc.fulfillment.Claim(ctx, event.ID)
	if err != nil {
		log.Error("Failed to record webhook event", zap.String("event_id", event.ID), zap.Error(err))
		_ = c.Error(apperrors.Internal(err))
		return
	}
	if !first {
		c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": true})
		return
	}

	if event.Type != "checkout.session.completed" {
		log.Info("Unhandled webhook event type",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
		)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	paymentEvent, sess, err := providers.CheckoutCompletedEvent(event)
	if errors.Is(err, providers.ErrNoPayerEmail) {
		log.Error("No email in Stripe session", zap.String("session_id", sess.ID), zap.String("event_id", event.ID))
		_ = c.Error(apperrors.New(http.StatusBadRequest, apperrors.KindMissingPayerEmail, "No customer email available", err))
		return
	}
	if err != nil {
		// The event is consumed; a redelivery would only be acknowledged as a duplicate.
		wc.fulfillment.Unfulfillable(ctx, paymentEvent, err)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if _, err := wc.fulfillment.Fulfill(ctx, paymentEvent); err != nil {
		log.Error("Stripe fulfillment failed", zap.String("session_id", paymentEvent.IntentID), zap.Error(err))
		_ = c.Error(toAppError(err, http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
