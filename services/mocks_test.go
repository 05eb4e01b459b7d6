package services_test

import (
	"context"
	"sync"
	"time"

	"license-service/models"
	"license-service/sender"
)

// ---- mock email sender ----

type sentEmail struct {
	to, subject, body string
}

type mockSender struct {
	mu   sync.Mutex
	err  error
	sent []sentEmail
}

func (m *mockSender) SendEmail(_ context.Context, to, subject, body string) (sender.SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return sender.SendResult{}, m.err
	}
	m.sent = append(m.sent, sentEmail{to: to, subject: subject, body: body})
	return sender.SendResult{MessageID: "msg-1", SentAt: time.Now()}, nil
}

// ---- mock license issuer ----

type deliverCall struct {
	email       string
	records     []models.LicenseRecord
	hasDeadline bool
}

type mockIssuer struct {
	mu    sync.Mutex
	err   error
	calls []deliverCall
}

func (m *mockIssuer) Deliver(ctx context.Context, email string, records []models.LicenseRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, hasDeadline := ctx.Deadline()
	m.calls = append(m.calls, deliverCall{email: email, records: records, hasDeadline: hasDeadline})
	return m.err
}

// ---- mock notifier ----

type mockNotifier struct {
	fulfilled []models.PaymentEvent
	failed    []models.PaymentEvent
	causes    []error
}

func (m *mockNotifier) Fulfilled(_ context.Context, event models.PaymentEvent, _ []models.LicenseRecord) {
	m.fulfilled = append(m.fulfilled, event)
}

func (m *mockNotifier) DeliveryFailed(_ context.Context, event models.PaymentEvent, _ []models.LicenseRecord, cause error) {
	m.failed = append(m.failed, event)
	m.causes = append(m.causes, cause)
}

// ---- mock metrics ----

type mockMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *mockMetrics) RecordCount(_ context.Context, name string, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[name]++
	return nil
}

func (m *mockMetrics) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}

// ---- mock intent creator ----

type mockCreator struct {
	ref   models.PaymentIntentRef
	err   error
	items []models.PricedItem
	email string
}

func (m *mockCreator) CreateIntent(_ context.Context, items []models.PricedItem, email string) (models.PaymentIntentRef, error) {
	m.items = items
	m.email = email
	return m.ref, m.err
}
