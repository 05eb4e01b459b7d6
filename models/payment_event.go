package models

import "github.com/google/uuid"

// Provider identifies the payment provider that produced an intent or event.
type Provider string

const (
	ProviderStripe Provider = "stripe"
	ProviderPayPal Provider = "paypal"
)

// PaymentIntentRef is the provider-assigned id of a pending payment (Stripe session / PayPal order).
type PaymentIntentRef struct {
	ID       string   `json:"id"`
	Provider Provider `json:"provider"`
}

// PurchasedItem is an item as reported back by the provider after payment.
type PurchasedItem struct {
	Name        string      `json:"name"`
	LicenseType LicenseType `json:"licenseType,omitempty"` // empty when the provider only reports a name
	// ReportedName is the line item name exactly as the provider returned it, when it
	// differs from Name.
	ReportedName string `json:"reportedName,omitempty"`
}

// PaymentEvent is a verified payment confirmation from either provider.
type PaymentEvent struct {
	EventID    string          `json:"event_id"` // unique per provider per confirmation
	Provider   Provider        `json:"provider"`
	IntentID   string          `json:"intent_id"` // session id / order id, for manual recovery
	PayerEmail string          `json:"payer_email"`
	Items      []PurchasedItem `json:"items"`
}

// LicenseRecord is one issued license. Never reused.
type LicenseRecord struct {
	Project     string      `json:"project"`
	LicenseType LicenseType `json:"licenseType"`
	LicenseKey  uuid.UUID   `json:"licenseKey"`
}
