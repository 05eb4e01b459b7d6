package apperrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind classifies an error for the HTTP layer.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindTooLarge          Kind = "too_large"
	KindRateLimited       Kind = "rate_limited"
	KindSignature         Kind = "signature"
	KindProvider          Kind = "provider"
	KindMissingPayerEmail Kind = "missing_payer_email"
	KindDelivery          Kind = "delivery"
	KindNotConfigured     Kind = "not_configured"
	KindInternal          Kind = "internal"
)

// Error represents an application error
type Error struct {
	Code      int    `json:"-"`
	Kind      Kind   `json:"-"`
	Message   string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
	Err       error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// JSON returns the error as a JSON string
func (e *Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// New creates a new Error
func New(code int, kind Kind, message string, err error) *Error {
	return &Error{
		Code:    code,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Validation wraps a cart validation failure. The cause's text is safe to show clients.
func Validation(err error) *Error {
	return New(http.StatusBadRequest, KindValidation, err.Error(), err)
}

// PayloadTooLarge is returned when a request body exceeds the accepted size.
func PayloadTooLarge(limit int64) *Error {
	return New(http.StatusRequestEntityTooLarge, KindTooLarge, fmt.Sprintf("Request body exceeds %d bytes", limit), nil)
}

// RateLimited is returned when the checkout limiter rejects a client.
func RateLimited() *Error {
	return New(http.StatusTooManyRequests, KindRateLimited, "Too many checkout attempts. Please try again later.", nil)
}

// Signature is returned when a webhook fails verification.
func Signature(err error) *Error {
	return New(http.StatusBadRequest, KindSignature, "Webhook Error: invalid signature", err)
}

// Provider wraps a payment provider failure. The status depends on the phase
// (400 for Stripe session creation, 500 for PayPal create/capture).
func Provider(code int, err error) *Error {
	return New(code, KindProvider, err.Error(), err)
}

// ProviderTimeout marks a provider call that ran out of time; the client may retry.
func ProviderTimeout(err error) *Error {
	e := New(http.StatusGatewayTimeout, KindProvider, "Payment provider timed out, please retry", err)
	e.Retryable = true
	return e
}

// MissingPayerEmail is returned after money has moved but no email could be found.
// The order id is surfaced so support can recover the license manually.
func MissingPayerEmail(orderID string) *Error {
	return New(http.StatusInternalServerError, KindMissingPayerEmail,
		"Payment processed but email delivery failed. Contact support with order ID: "+orderID, nil)
}

// NotConfigured is returned when a provider's credentials are absent.
func NotConfigured(provider string) *Error {
	return New(http.StatusServiceUnavailable, KindNotConfigured, provider+" is not configured", nil)
}

// Internal wraps an unexpected failure without leaking its text.
func Internal(err error) *Error {
	return New(http.StatusInternalServerError, KindInternal, "Internal server error", err)
}

// From converts any error into an *Error, defaulting to an internal error.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// HandleError writes err to a plain net/http response.
func HandleError(w http.ResponseWriter, err error) {
	appErr := From(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Code)
	w.Write([]byte(appErr.JSON()))
}

// ErrorMiddleware renders the last error a handler attached with c.Error.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			appErr := From(c.Errors.Last().Err)
			c.JSON(appErr.Code, appErr)
			c.Abort()
		}
	}
}
