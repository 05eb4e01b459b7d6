package services

import (
	"context"

	"license-service/models"

	"go.uber.org/zap"
)

// Business metric names recorded by the fulfillment pipeline.
const (
	MetricLicensesIssued        = "LicensesIssued"
	MetricLicenseDeliveryFailed = "LicenseDeliveryFailed"
	MetricDuplicateEvents       = "DuplicateEvents"
)

// FulfillmentNotifier is told about every fulfillment outcome. Implementations must not block long
// and must swallow their own failures.
type FulfillmentNotifier interface {
	Fulfilled(ctx context.Context, event models.PaymentEvent, records []models.LicenseRecord)
	DeliveryFailed(ctx context.Context, event models.PaymentEvent, records []models.LicenseRecord, cause error)
}

// MetricsRecorder is the subset of the CloudWatch client used here.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

// Outcome describes what happened to one payment event.
type Outcome struct {
	Duplicate   bool
	Records     []models.LicenseRecord
	DeliveryErr error
}

// FulfillmentService sequences deduplication and fulfillment for both providers.
type FulfillmentService interface {
	// Claim consumes eventID; false means it was seen before.
	Claim(ctx context.Context, eventID string) (bool, error)
	// Fulfill issues licenses for an event the caller has already claimed.
	Fulfill(ctx context.Context, event models.PaymentEvent) (*Outcome, error)
	// Process claims then fulfills.
	Process(ctx context.Context, event models.PaymentEvent) (*Outcome, error)
	// Unfulfillable reports a claimed event that could not be turned into licenses.
	Unfulfillable(ctx context.Context, event models.PaymentEvent, cause error)
}

type fulfillmentService struct {
	dedup    EventDeduplicator
	engine   FulfillmentEngine
	notifier FulfillmentNotifier
	metrics  MetricsRecorder
	logger   *zap.Logger
}

func NewFulfillmentService(dedup EventDeduplicator, engine FulfillmentEngine, notifier FulfillmentNotifier, metrics MetricsRecorder, logger *zap.Logger) FulfillmentService {
	return &fulfillmentService{
		dedup:    dedup,
		engine:   engine,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
	}
}

func (s *fulfillmentService) Claim(ctx context.Context, eventID string) (bool, error) {
	first, err := s.dedup.ShouldProcess(ctx, eventID)
	if err != nil {
		return false, err
	}
	if !first {
		s.logger.Info("Duplicate webhook event", zap.String("event_id", eventID))
		s.count(ctx, MetricDuplicateEvents, "")
	}
	return first, nil
}

func (s *fulfillmentService) Fulfill(ctx context.Context, event models.PaymentEvent) (*Outcome, error) {
	res, err := s.engine.Fulfill(ctx, event)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Records: res.Records, DeliveryErr: res.DeliveryErr}
	if res.DeliveryErr != nil {
		s.failed(ctx, event, res.Records, res.DeliveryErr)
		return out, nil
	}

	s.count(ctx, MetricLicensesIssued, event.Provider)
	if s.notifier != nil {
		s.notifier.Fulfilled(ctx, event, res.Records)
	}
	s.logger.Info("Payment processed",
		zap.String("provider", string(event.Provider)),
		zap.String("intent_id", event.IntentID),
		zap.String("email", event.PayerEmail),
	)
	return out, nil
}

func (s *fulfillmentService) Process(ctx context.Context, event models.PaymentEvent) (*Outcome, error) {
	first, err := s.Claim(ctx, event.EventID)
	if err != nil {
		return nil, err
	}
	if !first {
		return &Outcome{Duplicate: true}, nil
	}
	return s.Fulfill(ctx, event)
}

func (s *fulfillmentService) Unfulfillable(ctx context.Context, event models.PaymentEvent, cause error) {
	s.logger.Error("Payment event could not be fulfilled",
		zap.String("provider", string(event.Provider)),
		zap.String("event_id", event.EventID),
		zap.String("intent_id", event.IntentID),
		zap.Error(cause),
	)
	s.failed(ctx, event, nil, cause)
}

func (s *fulfillmentService) failed(ctx context.Context, event models.PaymentEvent, records []models.LicenseRecord, cause error) {
	s.count(ctx, MetricLicenseDeliveryFailed, event.Provider)
	if s.notifier != nil {
		s.notifier.DeliveryFailed(ctx, event, records, cause)
	}
}

func (s *fulfillmentService) count(ctx context.Context, metric string, provider models.Provider) {
	if s.metrics == nil {
		return
	}
	dims := map[string]string{"Service": "license-service"}
	if provider != "" {
		dims["Provider"] = string(provider)
	}
	if err := s.metrics.RecordCount(ctx, metric, dims); err != nil {
		s.logger.Debug("metric not recorded", zap.String("metric", metric), zap.Error(err))
	}
}
