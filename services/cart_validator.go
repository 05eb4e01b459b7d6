package services

import (
	"regexp"
	"strings"

	"license-service/models"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// SKU derives the price-list key for a project and tier: the lowercased name with
// whitespace runs replaced by "-", then "-<licenseType>".
func SKU(name string, licenseType models.LicenseType) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(name), "-") + "-" + string(licenseType)
}

// CartValidator turns an untrusted cart into server-priced items.
type CartValidator interface {
	Validate(items []models.CartItem) ([]models.PricedItem, error)
}

type cartValidator struct {
	prices PriceAuthority
}

func NewCartValidator(prices PriceAuthority) CartValidator {
	return &cartValidator{prices: prices}
}

// Validate preserves input order. It fails on the first bad item.
func (v *cartValidator) Validate(items []models.CartItem) ([]models.PricedItem, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	priced := make([]models.PricedItem, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.Name) == "" || item.LicenseType == "" {
			return nil, ErrMissingField
		}

		sku := SKU(item.Name, item.LicenseType)
		price, err := v.prices.ResolvePrice(sku, item.LicenseType)
		if err != nil {
			return nil, err
		}

		priced = append(priced, models.PricedItem{
			Name:            item.Name,
			LicenseType:     item.LicenseType,
			PriceMinorUnits: price,
			SKU:             sku,
		})
	}
	return priced, nil
}
