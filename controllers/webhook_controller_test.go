package controllers_test

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"license-service/controllers"
	"license-service/providers"
	"license-service/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"
)

const webhookSecret = "whsec_test_secret"

func stripeRouter(t *testing.T, s *captureSender) *gin.Engine {
	t.Helper()
	stripeSvc := providers.NewStripeService("sk_test_123", webhookSecret, "http://localhost:3000")
	r := newEngine()
	r.POST("/webhook/stripe", controllers.NewWebhookController(stripeSvc, newFulfillment(s), zap.NewNop()).StripeWebhook)
	return r
}

func stripeEvent(t *testing.T, id, eventType string, session map[string]interface{}) ([]byte, string) {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"api_version": "2020-08-27",
		"data":        map[string]interface{}{"object": session},
	})
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   raw,
		Secret:    webhookSecret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func completedSession(email string) map[string]interface{} {
	return map[string]interface{}{
		"id":             "cs_test_1",
		"object":         "checkout.session",
		"customer_email": email,
		"metadata": map[string]string{
			"items": `[{"name":"Workflow Yaml Fixer Pro","licenseType":"commercial"},{"name":"Other Enterprise Tool"}]`,
		},
	}
}

func TestStripeWebhook_FulfillsOnce(t *testing.T) {
	s := &captureSender{}
	r := stripeRouter(t, s)
	payload, sig := stripeEvent(t, "evt_1", "checkout.session.completed", completedSession("buyer@example.com"))

	w := doJSON(t, r, http.MethodPost, "/webhook/stripe", payload, map[string]string{"Stripe-Signature": sig})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, map[string]interface{}{"received": true}, decode(t, w))

	emails := s.emails()
	require.Len(t, emails, 1)
	assert.Equal(t, "buyer@example.com", emails[0].to)
	assert.Contains(t, emails[0].body, "Project: Workflow Yaml Fixer Pro\nLicense Type: commercial")
	assert.Contains(t, emails[0].body, "Project: Other Enterprise Tool\nLicense Type: enterprise")

	w = doJSON(t, r, http.MethodPost, "/webhook/stripe", payload, map[string]string{"Stripe-Signature": sig})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"received": true, "duplicate": true}, decode(t, w))
	assert.Len(t, s.emails(), 1)
}

func TestStripeWebhook_BadSignature(t *testing.T) {
	s := &captureSender{}
	r := stripeRouter(t, s)
	payload, _ := stripeEvent(t, "evt_2", "checkout.session.completed", completedSession("buyer@example.com"))

	for _, sig := range []string{"", "t=1,v1=deadbeef"} {
		w := doJSON(t, r, http.MethodPost, "/webhook/stripe", payload, map[string]string{"Stripe-Signature": sig})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.True(t, strings.HasPrefix(decode(t, w)["error"].(string), "Webhook Error"))
	}
	assert.Empty(t, s.emails())
}

func TestStripeWebhook_MissingEmail(t *testing.T) {
	s := &captureSender{}
	r := stripeRouter(t, s)
	payload, sig := stripeEvent(t, "evt_3", "checkout.session.completed", completedSession(""))

	w := doJSON(t, r, http.MethodPost, "/webhook/stripe", payload, map[string]string{"Stripe-Signature": sig})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No customer email available", decode(t, w)["error"])
	assert.Empty(t, s.emails())
}

func TestStripeWebhook_OtherEventTypeIsConsumed(t *testing.T) {
	s := &captureSender{}
	r := stripeRouter(t, s)
	payload, sig := stripeEvent(t, "evt_4", "payment_intent.created", map[string]interface{}{"id": "pi_1", "object": "payment_intent"})

	w := doJSON(t, r, http.MethodPost, "/webhook/stripe", payload, map[string]string{"Stripe-Signature": sig})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"received": true}, decode(t, w))

	w = doJSON(t, r, http.MethodPost, "/webhook/stripe", payload, map[string]string{"Stripe-Signature": sig})
	assert.Equal(t, map[string]interface{}{"received": true, "duplicate": true}, decode(t, w))
	assert.Empty(t, s.emails())
}

func TestStripeWebhook_DeliveryFailureStillAcknowledged(t *testing.T) {
	s := &captureSender{err: assert.AnError}
	r := stripeRouter(t, s)
	payload, sig := stripeEvent(t, "evt_5", "checkout.session.completed", completedSession("buyer@example.com"))

	w := doJSON(t, r, http.MethodPost, "/webhook/stripe", payload, map[string]string{"Stripe-Signature": sig})
	assert.Equal(t, http.StatusOK, w.Code)
}

func notifyingStripeRouter(t *testing.T, n *failureLog) *gin.Engine {
	t.Helper()
	stripeSvc := providers.NewStripeService("sk_test_123", webhookSecret, "http://localhost:3000")
	r := newEngine()
	r.POST("/webhook/stripe", controllers.NewWebhookController(stripeSvc, newNotifyingFulfillment(&captureSender{}, n), zap.NewNop()).StripeWebhook)
	return r
}

func TestStripeWebhook_UndecodableItemsReportedAsFailure(t *testing.T) {
	n := &failureLog{}
	r := notifyingStripeRouter(t, n)
	session := completedSession("buyer@example.com")
	session["metadata"] = map[string]string{"items": "[{not json"}
	payload, sig := stripeEvent(t, "evt_10", "checkout.session.completed", session)

	w := doJSON(t, r, http.MethodPost, "/webhook/stripe", payload, map[string]string{"Stripe-Signature": sig})
	assert.Equal(t, http.StatusOK, w.Code)

	events, causes := n.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "evt_10", events[0].EventID)
	assert.Equal(t, "cs_test_1", events[0].IntentID)
	assert.Equal(t, "buyer@example.com", events[0].PayerEmail)
	assert.ErrorIs(t, causes[0], providers.ErrProvider)

	// the redelivery is a duplicate and is not reported again
	w = doJSON(t, r, http.MethodPost, "/webhook/stripe", payload, map[string]string{"Stripe-Signature": sig})
	assert.Equal(t, http.StatusOK, w.Code)
	events, _ = n.snapshot()
	assert.Len(t, events, 1)
}

func TestStripeWebhook_NoItemsReportedAsFailure(t *testing.T) {
	n := &failureLog{}
	r := notifyingStripeRouter(t, n)
	session := completedSession("buyer@example.com")
	delete(session, "metadata")
	payload, sig := stripeEvent(t, "evt_11", "checkout.session.completed", session)

	w := doJSON(t, r, http.MethodPost, "/webhook/stripe", payload, map[string]string{"Stripe-Signature": sig})
	assert.Equal(t, http.StatusOK, w.Code)

	events, causes := n.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "evt_11", events[0].EventID)
	assert.ErrorIs(t, causes[0], services.ErrNothingToFulfill)
}

func TestStripeWebhook_NotConfigured(t *testing.T) {
	r := newEngine()
	r.POST("/webhook/stripe", controllers.NewWebhookController(nil, newFulfillment(&captureSender{}), zap.NewNop()).StripeWebhook)

	w := doJSON(t, r, http.MethodPost, "/webhook/stripe", "{}", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStripeWebhook_RejectsOversizedBody(t *testing.T) {
	s := &captureSender{}
	r := stripeRouter(t, s)
	session := completedSession("buyer@example.com")
	session["padding"] = strings.Repeat("x", 70000)
	payload, sig := stripeEvent(t, "evt_big", "checkout.session.completed", session)

	w := doJSON(t, r, http.MethodPost, "/webhook/stripe", payload, map[string]string{"Stripe-Signature": sig})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Empty(t, s.emails())
}
