package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ArowuTest/jraffle-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", services.NewValidationError("email", "bad"), http.StatusBadRequest},
		{"raffle missing", services.ErrRaffleNotFound, http.StatusNotFound},
		{"purchase missing", fmt.Errorf("lookup: %w", services.ErrPurchaseNotFound), http.StatusNotFound},
		{"bad credentials", services.ErrInvalidCredentials, http.StatusUnauthorized},
		{"sold out", &services.InsufficientTicketsError{Available: 1, Requested: 2}, http.StatusConflict},
		{"numbers taken", &services.TicketsUnavailableError{Numbers: []int{4}}, http.StatusConflict},
		{"stale index", &services.IndexInvalidationError{Index: 3}, http.StatusConflict},
		{"raffle closed", services.ErrRaffleNotActive, http.StatusConflict},
		{"bad transition", fmt.Errorf("%w: purchase is rejected", services.ErrInvalidStatusTransition), http.StatusConflict},
		{"premium locked", services.ErrPremiumNumberLocked, http.StatusConflict},
		{"draw spinning", services.ErrDrawInProgress, http.StatusConflict},
		{"retries exhausted", services.ErrConcurrentUpdate, http.StatusConflict},
		{"nobody to draw", services.ErrNoParticipants, http.StatusUnprocessableEntity},
		{"image host down", &services.UploadError{Err: errors.New("timeout")}, http.StatusBadGateway},
		{"database down", &services.RemoteStoreError{Op: "load raffles", Err: errors.New("no reachable servers")}, http.StatusServiceUnavailable},
		{"allocation bug", &services.InconsistentAllocationError{Reason: "duplicate"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestRespondErrorHidesInternalDetails(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	respondError(c, errors.New("nil pointer in allocator"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body["error"])
}
