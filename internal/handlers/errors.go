package handlers

import (
	"errors"
	"net/http"

	"github.com/ArowuTest/jraffle-backend/internal/services"
	"github.com/gin-gonic/gin"
	"golang.org/x/exp/slog"
)

// statusFor maps service errors onto HTTP statuses
func statusFor(err error) int {
	var (
		validation   *services.ValidationError
		upload       *services.UploadError
		insufficient *services.InsufficientTicketsError
		unavailable  *services.TicketsUnavailableError
		stale        *services.IndexInvalidationError
		remote       *services.RemoteStoreError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrRaffleNotFound), errors.Is(err, services.ErrPurchaseNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.As(err, &insufficient), errors.As(err, &unavailable), errors.As(err, &stale),
		errors.Is(err, services.ErrRaffleNotActive),
		errors.Is(err, services.ErrInvalidStatusTransition),
		errors.Is(err, services.ErrPremiumNumberLocked),
		errors.Is(err, services.ErrDrawInProgress),
		errors.Is(err, services.ErrConcurrentUpdate):
		return http.StatusConflict
	case errors.Is(err, services.ErrNoParticipants):
		return http.StatusUnprocessableEntity
	case errors.As(err, &upload):
		return http.StatusBadGateway
	case errors.As(err, &remote):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error": "..."} with the mapped status
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}

	var validation *services.ValidationError
	if errors.As(err, &validation) {
		body["fields"] = validation.Fields
	}
	var insufficient *services.InsufficientTicketsError
	if errors.As(err, &insufficient) {
		body["available"] = insufficient.Available
	}
	var unavailable *services.TicketsUnavailableError
	if errors.As(err, &unavailable) {
		body["numbers"] = unavailable.Numbers
	}

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		slog.Error("Request failed", "path", c.FullPath(), "status", status, "error", err)
		if status == http.StatusInternalServerError {
			body["error"] = "internal server error"
		}
	}
	c.AbortWithStatusJSON(status, body)
}
