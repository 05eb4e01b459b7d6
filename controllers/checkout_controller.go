package controllers

import (
	"net/http"

	"license-service/logger"
	"license-service/models"
	"license-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CheckoutController handles Stripe hosted checkout.
type CheckoutController struct {
	checkout services.CheckoutService
	logger   *zap.Logger
}

func NewCheckoutController(checkout services.CheckoutService, logger *zap.Logger) *CheckoutController {
	return &CheckoutController{checkout: checkout, logger: logger}
}

type createCheckoutSessionRequest struct {
	Items []models.CartItem `json:"items"`
	Email string            `json:"email"`
}

// CreateCheckoutSession handles POST /create-checkout-session
func (cc *CheckoutController) CreateCheckoutSession(c *gin.Context) {
	var req createCheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(invalidBody(err))
		return
	}

	ref, err := cc.checkout.CreateIntent(c.Request.Context(), models.ProviderStripe, req.Items, req.Email)
	if err != nil {
		logger.FromContext(c, cc.logger).Warn("Stripe checkout failed", zap.Error(err))
		_ = c.Error(toAppError(err, http.StatusBadRequest))
		return
	}

	logger.FromContext(c, cc.logger).Info("Stripe session created", zap.String("session_id", ref.ID))
	c.JSON(http.StatusOK, gin.H{"id": ref.ID})
}
