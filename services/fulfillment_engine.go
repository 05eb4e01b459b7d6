package services

import (
	"context"
	"strings"
	"time"

	"license-service/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Fulfillment is the result of converting one payment into licenses.
// DeliveryErr is set when the licenses were generated but could not be sent.
type Fulfillment struct {
	Records     []models.LicenseRecord
	DeliveryErr error
}

// FulfillmentEngine derives license records from a confirmed payment and hands them to delivery.
// Callers must have claimed the event through an EventDeduplicator first.
type FulfillmentEngine interface {
	Fulfill(ctx context.Context, event models.PaymentEvent) (*Fulfillment, error)
}

type fulfillmentEngine struct {
	issuer          LicenseIssuer
	tierPolicy      TierPolicy
	newKey          func() uuid.UUID
	deliveryTimeout time.Duration
	logger          *zap.Logger
}

func NewFulfillmentEngine(issuer LicenseIssuer, policy TierPolicy, deliveryTimeout time.Duration, logger *zap.Logger) FulfillmentEngine {
	if policy == nil {
		policy = InferTier
	}
	return &fulfillmentEngine{
		issuer:          issuer,
		tierPolicy:      policy,
		newKey:          uuid.New,
		deliveryTimeout: deliveryTimeout,
		logger:          logger,
	}
}

func (e *fulfillmentEngine) Fulfill(ctx context.Context, event models.PaymentEvent) (*Fulfillment, error) {
	email := strings.TrimSpace(event.PayerEmail)
	if email == "" {
		return nil, ErrMissingPayerEmail
	}

	records := make([]models.LicenseRecord, 0, len(event.Items))
	for _, item := range event.Items {
		records = append(records, models.LicenseRecord{
			Project:     item.Name,
			LicenseType: e.tierPolicy(item),
			LicenseKey:  e.newKey(),
		})
	}

	if len(records) == 0 {
		e.logger.Warn("Payment event carried no items, nothing to deliver",
			zap.String("event_id", event.EventID),
			zap.String("provider", string(event.Provider)),
		)
		return &Fulfillment{DeliveryErr: ErrNothingToFulfill}, nil
	}

	// The event is already consumed, so delivery runs to its own deadline even if the
	// inbound request is cancelled.
	dctx := context.WithoutCancel(ctx)
	if e.deliveryTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(dctx, e.deliveryTimeout)
		defer cancel()
	}

	result := &Fulfillment{Records: records}
	if err := e.issuer.Deliver(dctx, email, records); err != nil {
		e.logger.Error("License delivery failed",
			zap.String("event_id", event.EventID),
			zap.String("provider", string(event.Provider)),
			zap.String("intent_id", event.IntentID),
			zap.String("to", email),
			zap.Error(err),
		)
		result.DeliveryErr = err
	}
	return result, nil
}
