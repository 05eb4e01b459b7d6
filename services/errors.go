package services

import "errors"

var (
	ErrEmptyCart         = errors.New("invalid or empty items array")
	ErrMissingField      = errors.New("missing required fields: name, licenseType")
	ErrInvalidSku        = errors.New("invalid SKU")
	ErrMissingPayerEmail = errors.New("no payer email available")
	ErrDeliveryFailed    = errors.New("license delivery failed")
	ErrNothingToFulfill  = errors.New("payment event carried no items")
)

var ErrProviderNotConfigured = errors.New("payment provider not configured")

// IsValidationError reports whether err came from cart validation.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyCart) || errors.Is(err, ErrMissingField) || errors.Is(err, ErrInvalidSku)
}
