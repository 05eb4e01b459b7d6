package services

import (
	"strings"

	"license-service/models"
)

// TierPolicy decides the license tier of a purchased item from what the provider reported.
type TierPolicy func(item models.PurchasedItem) models.LicenseType

// InferTier prefers an explicit tier and otherwise looks for "enterprise" in the name the
// provider reported, ignoring case. Everything else is commercial.
func InferTier(item models.PurchasedItem) models.LicenseType {
	switch item.LicenseType {
	case models.LicenseCommercial, models.LicenseEnterprise:
		return item.LicenseType
	}
	name := item.ReportedName
	if name == "" {
		name = item.Name
	}
	if strings.Contains(strings.ToLower(name), "enterprise") {
		return models.LicenseEnterprise
	}
	return models.LicenseCommercial
}
