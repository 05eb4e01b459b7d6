package sender

import (
	"context"
	"errors"
	"time"
)

type SendResult struct {
	MessageID string
	SentAt    time.Time
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) (SendResult, error)
}

// ErrNotConfigured is returned by the disabled sender.
var ErrNotConfigured = errors.New("email transport not configured")

type disabledSender struct{}

// Disabled returns a sender that fails every send. It stands in when SMTP credentials are
// absent so that fulfillment records the delivery failure instead of dropping it.
func Disabled() EmailSender {
	return disabledSender{}
}

func (disabledSender) SendEmail(context.Context, string, string, string) (SendResult, error) {
	return SendResult{}, ErrNotConfigured
}
