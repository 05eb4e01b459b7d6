package controllers

import (
	"errors"
	"io"
	"net/http"

	"license-service/apperrors"
	"license-service/providers"
	"license-service/services"

	"github.com/gin-gonic/gin"
)

// maxWebhookBody caps webhook payloads read into memory.
const maxWebhookBody = 65536

// toAppError maps service and provider failures onto HTTP errors. providerStatus is the
// status used for a non-timeout provider failure, which differs per endpoint.
func toAppError(err error, providerStatus int) *apperrors.Error {
	var appErr *apperrors.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case services.IsValidationError(err):
		return apperrors.Validation(err)
	case errors.Is(err, services.ErrProviderNotConfigured):
		return apperrors.NotConfigured("payment provider")
	case errors.Is(err, providers.ErrProviderTimeout):
		return apperrors.ProviderTimeout(err)
	case errors.Is(err, providers.ErrSignature):
		return apperrors.Signature(err)
	case errors.Is(err, providers.ErrProvider):
		return apperrors.Provider(providerStatus, err)
	default:
		return apperrors.Internal(err)
	}
}

func invalidBody(err error) *apperrors.Error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperrors.PayloadTooLarge(tooLarge.Limit)
	}
	return apperrors.New(http.StatusBadRequest, apperrors.KindValidation, "Invalid request body", err)
}

// readWebhookBody reads the whole body, failing with *http.MaxBytesError past maxWebhookBody.
func readWebhookBody(c *gin.Context) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
}
