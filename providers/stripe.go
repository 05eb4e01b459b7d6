package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"license-service/models"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/checkout/session"
	"github.com/stripe/stripe-go/v80/webhook"
)

// stripeEmailStrategies is the payer email fallback chain for a completed checkout session.
var stripeEmailStrategies = []EmailStrategy[*stripe.CheckoutSession]{
	{Name: "customer_email", Extract: func(s *stripe.CheckoutSession) string { return s.CustomerEmail }},
	{Name: "customer_details.email", Extract: func(s *stripe.CheckoutSession) string {
		if s.CustomerDetails == nil {
			return ""
		}
		return s.CustomerDetails.Email
	}},
}

// metadataItem is the compact item form stored in session metadata and read back by the webhook.
type metadataItem struct {
	Name        string             `json:"name"`
	LicenseType models.LicenseType `json:"licenseType"`
}

type StripeService struct {
	WebhookKey  string
	FrontendURL string

	newSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

func NewStripeService(secretKey, webhookKey, frontendURL string) *StripeService {
	stripe.Key = secretKey
	return &StripeService{
		WebhookKey:  webhookKey,
		FrontendURL: strings.TrimSuffix(frontendURL, "/"),
		newSession:  session.New,
	}
}

// CheckoutSessionParams builds the hosted checkout request for priced items. Amounts are the
// authoritative cents values.
func (s *StripeService) CheckoutSessionParams(items []models.PricedItem, customerEmail string) (*stripe.CheckoutSessionParams, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(items))
	meta := make([]metadataItem, 0, len(items))
	for _, it := range items {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(string(stripe.CurrencyUSD)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(it.DisplayName()),
					Description: stripe.String("Commercial license for " + it.Name),
				},
				UnitAmount: stripe.Int64(it.PriceMinorUnits),
			},
			Quantity: stripe.Int64(1),
		})
		meta = append(meta, metadataItem{Name: it.Name, LicenseType: it.LicenseType})
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode session metadata: %w", err)
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          lineItems,
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(s.FrontendURL + "/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:          stripe.String(s.FrontendURL + "/cancel"),
		Metadata:           map[string]string{"items": string(metaJSON)},
	}
	if email := strings.TrimSpace(customerEmail); email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	return params, nil
}

// CreateIntent creates a Stripe Checkout Session.
func (s *StripeService) CreateIntent(ctx context.Context, items []models.PricedItem, customerEmail string) (models.PaymentIntentRef, error) {
	params, err := s.CheckoutSessionParams(items, customerEmail)
	if err != nil {
		return models.PaymentIntentRef{}, err
	}
	params.Context = ctx

	sess, err := s.newSession(params)
	if err != nil {
		return models.PaymentIntentRef{}, classify(ctx, "create checkout session", err)
	}
	return models.PaymentIntentRef{ID: sess.ID, Provider: models.ProviderStripe}, nil
}

// ParseWebhook verifies the Stripe-Signature header against the raw body. Any failure is
// reported as ErrSignature and nothing from the payload is trusted.
func (s *StripeService) ParseWebhook(payload []byte, sigHeader string) (stripe.Event, error) {
	if strings.TrimSpace(sigHeader) == "" {
		return stripe.Event{}, fmt.Errorf("%w: missing signature header", ErrSignature)
	}
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, s.WebhookKey, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrSignature, err)
	}
	return event, nil
}

// CheckoutCompletedEvent turns a verified checkout.session.completed event into a PaymentEvent.
// The session is returned even when the payer email is missing so callers can log its id.
// On error the returned event still carries whatever identifies the payment.
func CheckoutCompletedEvent(event stripe.Event) (models.PaymentEvent, *stripe.CheckoutSession, error) {
	out := models.PaymentEvent{EventID: event.ID, Provider: models.ProviderStripe}

	var sess stripe.CheckoutSession
	if event.Data == nil {
		return out, nil, fmt.Errorf("%w: event %s has no data", ErrProvider, event.ID)
	}
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return out, nil, fmt.Errorf("%w: decode checkout session: %v", ErrProvider, err)
	}
	out.IntentID = sess.ID

	email, _, ok := FirstEmail(&sess, stripeEmailStrategies)
	if !ok {
		return out, &sess, ErrNoPayerEmail
	}
	out.PayerEmail = email

	var items []metadataItem
	if raw := sess.Metadata["items"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return out, &sess, fmt.Errorf("%w: decode session items: %v", ErrProvider, err)
		}
	}

	out.Items = make([]models.PurchasedItem, 0, len(items))
	for _, it := range items {
		out.Items = append(out.Items, models.PurchasedItem{Name: it.Name, LicenseType: it.LicenseType})
	}
	return out, &sess, nil
}
