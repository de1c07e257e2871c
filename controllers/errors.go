package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"formautofill/coordinator"
	"formautofill/parsers"
	"formautofill/store"
	"formautofill/utils"
)

// statusFor maps pipeline and storage errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, coordinator.ErrProfileNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, coordinator.ErrNoActiveProfile),
		errors.Is(err, coordinator.ErrRestrictedURL),
		errors.Is(err, coordinator.ErrUnknownCommand),
		errors.Is(err, parsers.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, coordinator.ErrChallengeDetected),
		errors.Is(err, coordinator.ErrNoForms),
		errors.Is(err, store.ErrInvalidProfile):
		return http.StatusUnprocessableEntity
	case errors.Is(err, coordinator.ErrFillTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, coordinator.ErrPageUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, store.ErrQuotaExceeded):
		return http.StatusInsufficientStorage
	}
	return http.StatusInternalServerError
}

// respondError sends the human readable message for err. Raw error text
// never reaches the client.
func respondError(ctx *gin.Context, err error) {
	msg := coordinator.Message(err)
	switch status := statusFor(err); status {
	case http.StatusInternalServerError:
		utils.InternalServerError(ctx, msg, err)
	case http.StatusNotFound:
		utils.NotFoundError(ctx, msg)
	case http.StatusUnprocessableEntity:
		utils.UnprocessableError(ctx, msg)
	case http.StatusInsufficientStorage:
		utils.InsufficientStorageError(ctx, msg)
	default:
		utils.ErrorResponseWithCode(ctx, status, msg, nil)
	}
}
