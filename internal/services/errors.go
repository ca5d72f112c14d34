package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/exp/maps"
)

var (
	ErrRaffleNotFound          = errors.New("raffle not found")
	ErrPurchaseNotFound        = errors.New("purchase not found")
	ErrNoParticipants          = errors.New("no participants")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrPremiumNumberLocked     = errors.New("premium number already assigned to a participant")
	ErrConcurrentUpdate        = errors.New("raffle changed concurrently, retries exhausted")
	ErrInvalidCredentials      = errors.New("invalid username or password")
	ErrRaffleNotActive         = errors.New("raffle is not active")
	ErrDrawInProgress          = errors.New("a drawing is already spinning for this raffle")
)

// ValidationError reports missing or malformed input fields
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// Add records a field problem, allocating the map on first use
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[field] = msg
}

// OrNil returns nil when no field problems were recorded
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	fields := maps.Keys(e.Fields)
	sort.Strings(fields)
	for _, f := range fields {
		parts = append(parts, f+": "+e.Fields[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// UploadError reports an image host failure
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string {
	if e.Err == nil {
		return "upload failed"
	}
	return "upload failed: " + e.Err.Error()
}

func (e *UploadError) Unwrap() error { return e.Err }

// InsufficientTicketsError is returned when the free pool is smaller than the request
type InsufficientTicketsError struct {
	Available int
	Requested int
}

func (e *InsufficientTicketsError) Error() string {
	return fmt.Sprintf("not enough tickets remaining: %d available, %d requested", e.Available, e.Requested)
}

// TicketsUnavailableError is returned when specific numbers are already held or blocked
type TicketsUnavailableError struct {
	Numbers []int
}

func (e *TicketsUnavailableError) Error() string {
	return fmt.Sprintf("tickets no longer available: %v", e.Numbers)
}

// RemoteStoreError wraps a database failure
type RemoteStoreError struct {
	Op  string
	Err error
}

func (e *RemoteStoreError) Error() string {
	return fmt.Sprintf("remote store %s: %v", e.Op, e.Err)
}

func (e *RemoteStoreError) Unwrap() error { return e.Err }

// EmailFailureKind distinguishes email dispatch failures
type EmailFailureKind string

const (
	EmailFailureTimeout  EmailFailureKind = "timeout"
	EmailFailureProvider EmailFailureKind = "provider"
	EmailFailureRender   EmailFailureKind = "render"
)

// EmailDispatchError is non-fatal: the purchase it belongs to stands
type EmailDispatchError struct {
	Kind EmailFailureKind
	Err  error
}

func (e *EmailDispatchError) Error() string {
	return fmt.Sprintf("confirmation email not sent (%s): %v", e.Kind, e.Err)
}

func (e *EmailDispatchError) Unwrap() error { return e.Err }

// IndexInvalidationError is returned when a positional user reference no longer
// identifies the intended participant
type IndexInvalidationError struct {
	Index          int
	ExpectedUserID string
}

func (e *IndexInvalidationError) Error() string {
	return fmt.Sprintf("cannot identify record to delete (index %d)", e.Index)
}

// InconsistentAllocationError is returned when allocated numbers fail the post-allocation check
type InconsistentAllocationError struct {
	Numbers []int
	Reason  string
}

func (e *InconsistentAllocationError) Error() string {
	return fmt.Sprintf("internal allocation inconsistency: %s", e.Reason)
}
