package controllers_test

import (
	"fmt"
	"net/http"
	"testing"

	"license-service/controllers"
	"license-service/models"
	"license-service/providers"
	"license-service/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func checkoutRouter(creators map[models.Provider]services.IntentCreator) http.Handler {
	r := newEngine()
	r.POST("/create-checkout-session", controllers.NewCheckoutController(newCheckout(creators), zap.NewNop()).CreateCheckoutSession)
	return r
}

func TestCreateCheckoutSession_Success(t *testing.T) {
	creator := &fakeCreator{ref: models.PaymentIntentRef{ID: "cs_test_1", Provider: models.ProviderStripe}}
	r := checkoutRouter(map[models.Provider]services.IntentCreator{models.ProviderStripe: creator})

	w := doJSON(t, r, http.MethodPost, "/create-checkout-session", map[string]interface{}{
		"items": []map[string]interface{}{{"name": "Workflow Yaml Fixer Pro", "licenseType": "commercial", "price": 0.01}},
		"email": "buyer@example.com",
	}, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, map[string]interface{}{"id": "cs_test_1"}, decode(t, w))
	require.Len(t, creator.items, 1)
	assert.Equal(t, int64(499), creator.items[0].PriceMinorUnits)
	assert.Equal(t, "buyer@example.com", creator.email)
}

func TestCreateCheckoutSession_ValidationErrors(t *testing.T) {
	creator := &fakeCreator{}
	r := checkoutRouter(map[models.Provider]services.IntentCreator{models.ProviderStripe: creator})

	cases := []struct {
		name string
		body interface{}
		want string
	}{
		{"empty cart", map[string]interface{}{"items": []interface{}{}}, "invalid or empty items array"},
		{"missing tier", map[string]interface{}{"items": []map[string]string{{"name": "Foo"}}}, "missing required fields: name, licenseType"},
		{"malformed body", "{not json", "Invalid request body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/create-checkout-session", tc.body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decode(t, w)["error"], tc.want)
		})
	}
	assert.Nil(t, creator.items)
}

func TestCreateCheckoutSession_ProviderFailure(t *testing.T) {
	creator := &fakeCreator{err: fmt.Errorf("%w: card declined", providers.ErrProvider)}
	r := checkoutRouter(map[models.Provider]services.IntentCreator{models.ProviderStripe: creator})

	w := doJSON(t, r, http.MethodPost, "/create-checkout-session", map[string]interface{}{
		"items": []map[string]string{{"name": "Foo", "licenseType": "commercial"}},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "card declined")
}

func TestCreateCheckoutSession_ProviderTimeout(t *testing.T) {
	creator := &fakeCreator{err: fmt.Errorf("%w: create checkout session", providers.ErrProviderTimeout)}
	r := checkoutRouter(map[models.Provider]services.IntentCreator{models.ProviderStripe: creator})

	w := doJSON(t, r, http.MethodPost, "/create-checkout-session", map[string]interface{}{
		"items": []map[string]string{{"name": "Foo", "licenseType": "commercial"}},
	}, nil)
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, true, decode(t, w)["retryable"])
}

func TestCreateCheckoutSession_NotConfigured(t *testing.T) {
	r := checkoutRouter(map[models.Provider]services.IntentCreator{})

	w := doJSON(t, r, http.MethodPost, "/create-checkout-session", map[string]interface{}{
		"items": []map[string]string{{"name": "Foo", "licenseType": "commercial"}},
	}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
