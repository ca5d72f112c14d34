package repositories

import (
	"context"
	"errors"

	"github.com/ArowuTest/jraffle-backend/internal/models"
)

var (
	// ErrNotFound is returned when no document matches the requested key
	ErrNotFound = errors.New("document not found")
	// ErrVersionConflict is returned when a guarded write finds a newer document version
	ErrVersionConflict = errors.New("document version conflict")
	// ErrStatusConflict is returned when a purchase is no longer in the expected status
	ErrStatusConflict = errors.New("purchase status changed")
	// ErrDuplicateKey is returned when creating a document whose key already exists
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrMalformedDocument is returned when a stored document fails boundary validation
	ErrMalformedDocument = errors.New("malformed document")
)

// RaffleRepository defines the interface for raffle document operations.
// Every mutating call except Create and Delete is guarded by the document version.
type RaffleRepository interface {
	Create(ctx context.Context, raffle *models.Raffle) error
	FindByID(ctx context.Context, id string) (*models.Raffle, error)
	FindAll(ctx context.Context) ([]*models.Raffle, error)
	// Update merges the non-nil fields of update into the document at expectedVersion
	Update(ctx context.Context, id string, expectedVersion int64, update *models.RaffleUpdate) error
	// SetUsers replaces the embedded user sequence at expectedVersion
	SetUsers(ctx context.Context, id string, expectedVersion int64, users []models.User) error
	Delete(ctx context.Context, id string) error
}

// PurchaseRepository defines the interface for purchase document operations
type PurchaseRepository interface {
	Create(ctx context.Context, purchase *models.Purchase) error
	FindByID(ctx context.Context, id string) (*models.Purchase, error)
	FindAll(ctx context.Context, filter models.PurchaseFilter) ([]*models.Purchase, error)
	// Transition moves a purchase from one status to another and fails with
	// ErrStatusConflict when the stored status is no longer from
	Transition(ctx context.Context, id string, from, to models.PurchaseStatus, userID string) error
	Delete(ctx context.Context, id string) error
}

// AdminUserRepository defines the interface for admin user data operations
type AdminUserRepository interface {
	Create(ctx context.Context, adminUser *models.AdminUser) error
	FindByUsername(ctx context.Context, username string) (*models.AdminUser, error)
	FindByID(ctx context.Context, id string) (*models.AdminUser, error)
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
}
