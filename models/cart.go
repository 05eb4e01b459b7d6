package models

// LicenseType is the license tier a buyer purchases for a project.
type LicenseType string

const (
	LicenseCommercial LicenseType = "commercial"
	LicenseEnterprise LicenseType = "enterprise"
)

// CartItem is a client-submitted line item. Untrusted: any price the client sends is ignored.
type CartItem struct {
	Name        string      `json:"name"`
	LicenseType LicenseType `json:"licenseType"`
	Price       any         `json:"price,omitempty"` // never read for pricing
}

// PricedItem is a cart item after validation, priced by the server.
type PricedItem struct {
	Name            string      `json:"name"`
	LicenseType     LicenseType `json:"licenseType"`
	PriceMinorUnits int64       `json:"price"` // cents
	SKU             string      `json:"sku"`
}

// DisplayName is the provider-facing line item name, e.g. "Foo - commercial License".
func (p PricedItem) DisplayName() string {
	return p.Name + " - " + string(p.LicenseType) + " License"
}

// TotalMinorUnits sums the authoritative prices of items.
func TotalMinorUnits(items []PricedItem) int64 {
	var total int64
	for _, it := range items {
		total += it.PriceMinorUnits
	}
	return total
}
