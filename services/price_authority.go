package services

import (
	"fmt"

	"license-service/models"
)

// DefaultPriceMap is the server-side price list in cents. The "default-<tier>"
// entries price any project without an explicit SKU.
var DefaultPriceMap = map[string]int64{
	"workflow-yaml-fixer-pro-commercial": 499,
	"workflow-yaml-fixer-pro-enterprise": 999,
	"default-commercial":                 299,
	"default-enterprise":                 799,
}

// PriceAuthority resolves authoritative prices. Client-supplied prices are never consulted.
type PriceAuthority interface {
	ResolvePrice(sku string, licenseType models.LicenseType) (int64, error)
}

type mapPriceAuthority struct {
	prices map[string]int64
}

// NewPriceAuthority returns a PriceAuthority over a copy of prices.
func NewPriceAuthority(prices map[string]int64) PriceAuthority {
	cp := make(map[string]int64, len(prices))
	for k, v := range prices {
		cp[k] = v
	}
	return &mapPriceAuthority{prices: cp}
}

// ResolvePrice tries the exact SKU first, then "default-<licenseType>".
func (a *mapPriceAuthority) ResolvePrice(sku string, licenseType models.LicenseType) (int64, error) {
	if p, ok := a.prices[sku]; ok && p > 0 {
		return p, nil
	}
	if p, ok := a.prices["default-"+string(licenseType)]; ok && p > 0 {
		return p, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrInvalidSku, sku)
}
