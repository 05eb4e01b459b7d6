package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"license-service/apperrors"
	"license-service/models"
	"license-service/repository"
	"license-service/sender"
	"license-service/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type sentEmail struct {
	to, subject, body string
}

type captureSender struct {
	mu   sync.Mutex
	err  error
	sent []sentEmail
}

func (s *captureSender) SendEmail(_ context.Context, to, subject, body string) (sender.SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return sender.SendResult{}, s.err
	}
	s.sent = append(s.sent, sentEmail{to: to, subject: subject, body: body})
	return sender.SendResult{MessageID: "msg-1", SentAt: time.Now()}, nil
}

func (s *captureSender) emails() []sentEmail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentEmail(nil), s.sent...)
}

type fakeCreator struct {
	ref   models.PaymentIntentRef
	err   error
	items []models.PricedItem
	email string
}

func (f *fakeCreator) CreateIntent(_ context.Context, items []models.PricedItem, email string) (models.PaymentIntentRef, error) {
	f.items = items
	f.email = email
	return f.ref, f.err
}

// failureLog records DeliveryFailed notifications.
type failureLog struct {
	mu     sync.Mutex
	events []models.PaymentEvent
	causes []error
}

func (f *failureLog) Fulfilled(context.Context, models.PaymentEvent, []models.LicenseRecord) {}

func (f *failureLog) DeliveryFailed(_ context.Context, event models.PaymentEvent, _ []models.LicenseRecord, cause error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	f.causes = append(f.causes, cause)
}

func (f *failureLog) snapshot() ([]models.PaymentEvent, []error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.PaymentEvent(nil), f.events...), append([]error(nil), f.causes...)
}

func newFulfillment(s sender.EmailSender) services.FulfillmentService {
	return newNotifyingFulfillment(s, nil)
}

func newNotifyingFulfillment(s sender.EmailSender, n services.FulfillmentNotifier) services.FulfillmentService {
	log := zap.NewNop()
	issuer := services.NewEmailLicenseIssuer(s, services.DefaultEmailTemplate, log)
	engine := services.NewFulfillmentEngine(issuer, services.InferTier, 5*time.Second, log)
	dedup := services.NewEventDeduplicator(repository.NewMemoryProcessedEventRepo())
	return services.NewFulfillmentService(dedup, engine, n, nil, log)
}

func newCheckout(creators map[models.Provider]services.IntentCreator) services.CheckoutService {
	validator := services.NewCartValidator(services.NewPriceAuthority(services.DefaultPriceMap))
	return services.NewCheckoutService(validator, creators, nil, zap.NewNop())
}

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(apperrors.ErrorMiddleware())
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
