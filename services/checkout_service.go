package services

import (
	"context"
	"fmt"

	"license-service/models"

	"go.uber.org/zap"
)

const MetricCheckoutIntentsCreated = "CheckoutIntentsCreated"

// IntentCreator creates a provider-side pending payment for already-priced items.
type IntentCreator interface {
	CreateIntent(ctx context.Context, items []models.PricedItem, customerEmail string) (models.PaymentIntentRef, error)
}

// CheckoutService validates a cart and opens a payment intent with the chosen provider.
type CheckoutService interface {
	CreateIntent(ctx context.Context, provider models.Provider, cart []models.CartItem, customerEmail string) (models.PaymentIntentRef, error)
}

type checkoutService struct {
	validator CartValidator
	creators  map[models.Provider]IntentCreator
	metrics   MetricsRecorder
	logger    *zap.Logger
}

// NewCheckoutService wires the validator to the configured providers. A nil creator means
// the provider is not configured.
func NewCheckoutService(validator CartValidator, creators map[models.Provider]IntentCreator, metrics MetricsRecorder, logger *zap.Logger) CheckoutService {
	return &checkoutService{
		validator: validator,
		creators:  creators,
		metrics:   metrics,
		logger:    logger,
	}
}

func (s *checkoutService) CreateIntent(ctx context.Context, provider models.Provider, cart []models.CartItem, customerEmail string) (models.PaymentIntentRef, error) {
	creator := s.creators[provider]
	if creator == nil {
		return models.PaymentIntentRef{}, fmt.Errorf("%w: %s", ErrProviderNotConfigured, provider)
	}

	items, err := s.validator.Validate(cart)
	if err != nil {
		return models.PaymentIntentRef{}, err
	}

	ref, err := creator.CreateIntent(ctx, items, customerEmail)
	if err != nil {
		return models.PaymentIntentRef{}, err
	}

	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.Name)
	}
	s.logger.Info("Checkout intent created",
		zap.String("provider", string(provider)),
		zap.String("intent_id", ref.ID),
		zap.Strings("items", names),
		zap.Int64("total", models.TotalMinorUnits(items)),
	)
	if s.metrics != nil {
		_ = s.metrics.RecordCount(ctx, MetricCheckoutIntentsCreated, map[string]string{
			"Service":  "license-service",
			"Provider": string(provider),
		})
	}
	return ref, nil
}
