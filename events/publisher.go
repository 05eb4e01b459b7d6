package events

import (
	"context"
	"encoding/json"
	"time"

	"license-service/models"
	awspkg "license-service/pkg/aws"

	"go.uber.org/zap"
)

const (
	EventLicensesFulfilled     = "license_fulfilled"
	EventLicenseDeliveryFailed = "license_delivery_failed"
)

// FulfilledEvent is published when license keys were generated and emailed.
type FulfilledEvent struct {
	EventType string           `json:"event_type"`
	EventID   string           `json:"event_id"`
	Provider  models.Provider  `json:"provider"`
	IntentID  string           `json:"intent_id"`
	Email     string           `json:"email"`
	Licenses  []LicenseSummary `json:"licenses"`
	Timestamp time.Time        `json:"timestamp"`
}

// LicenseSummary describes an issued license without its key.
type LicenseSummary struct {
	Project     string             `json:"project"`
	LicenseType models.LicenseType `json:"licenseType"`
}

// DeliveryFailedRecord carries everything support needs to resend keys by hand.
type DeliveryFailedRecord struct {
	EventType string                 `json:"event_type"`
	EventID   string                 `json:"event_id"`
	Provider  models.Provider        `json:"provider"`
	IntentID  string                 `json:"intent_id"`
	Email     string                 `json:"email"`
	Licenses  []models.LicenseRecord `json:"licenses"`
	Error     string                 `json:"error"`
	Timestamp time.Time              `json:"timestamp"`
}

// Publisher fans fulfillment outcomes out to SNS and records failed deliveries on an SQS queue.
// Either target may be nil; publish failures are logged and never returned.
type Publisher struct {
	sns      awspkg.SNSPublisher
	topicArn string
	dlq      awspkg.QueueSender
	logger   *zap.Logger
	now      func() time.Time
}

func NewPublisher(sns awspkg.SNSPublisher, topicArn string, dlq awspkg.QueueSender, logger *zap.Logger) *Publisher {
	if topicArn == "" {
		sns = nil
	}
	return &Publisher{
		sns:      sns,
		topicArn: topicArn,
		dlq:      dlq,
		logger:   logger,
		now:      time.Now,
	}
}

func (p *Publisher) Fulfilled(ctx context.Context, event models.PaymentEvent, records []models.LicenseRecord) {
	if p.sns == nil {
		return
	}
	summaries := make([]LicenseSummary, 0, len(records))
	for _, r := range records {
		summaries = append(summaries, LicenseSummary{Project: r.Project, LicenseType: r.LicenseType})
	}
	p.publish(ctx, EventLicensesFulfilled, FulfilledEvent{
		EventType: EventLicensesFulfilled,
		EventID:   event.EventID,
		Provider:  event.Provider,
		IntentID:  event.IntentID,
		Email:     event.PayerEmail,
		Licenses:  summaries,
		Timestamp: p.now().UTC(),
	})
}

func (p *Publisher) DeliveryFailed(ctx context.Context, event models.PaymentEvent, records []models.LicenseRecord, cause error) {
	rec := DeliveryFailedRecord{
		EventType: EventLicenseDeliveryFailed,
		EventID:   event.EventID,
		Provider:  event.Provider,
		IntentID:  event.IntentID,
		Email:     event.PayerEmail,
		Licenses:  records,
		Timestamp: p.now().UTC(),
	}
	if cause != nil {
		rec.Error = cause.Error()
	}

	if p.dlq != nil {
		body, err := json.Marshal(rec)
		if err != nil {
			p.logger.Error("Failed to encode delivery failure record", zap.Error(err))
		} else if err := p.dlq.SendMessage(ctx, string(body)); err != nil {
			p.logger.Error("Failed to record delivery failure",
				zap.String("event_id", event.EventID),
				zap.Error(err),
			)
		}
	}

	if p.sns != nil {
		// keys stay off the topic
		rec.Licenses = nil
		p.publish(ctx, EventLicenseDeliveryFailed, rec)
	}
}

func (p *Publisher) publish(ctx context.Context, eventType string, payload any) {
	msg, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("Failed to encode event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	if err := p.sns.Publish(ctx, p.topicArn, msg, map[string]string{"event_type": eventType}); err != nil {
		p.logger.Warn("SNS publish failed", zap.String("event_type", eventType), zap.Error(err))
	}
}
