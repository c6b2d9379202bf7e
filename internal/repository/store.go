// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"strings"

	"sun/internal/models"
)

// Store backend names.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMongo    = "mongo"
)

// UserMutator edits a working copy of a user. Returning an error discards the edit.
type UserMutator func(u *models.User) error

// DonationMutator edits a working copy of a donation. Returning an error discards the edit.
type DonationMutator func(d *models.Donation) error

// UserRepository defines persistence operations for users.
type UserRepository interface {
	// Create stores a new user, assigning ID and timestamps when empty.
	// Returns a DuplicateEmail error when the lower-cased email is taken.
	Create(ctx context.Context, user *models.User) error
	// GetByID returns (nil, nil) when no user has the id.
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByEmail matches case-insensitively and returns (nil, nil) when absent.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// List returns every user in insertion order.
	List(ctx context.Context) ([]*models.User, error)
	// Mutate applies fn to a copy of the user under the user's lock and persists the result.
	// Returns a NotFound error when the user is absent.
	Mutate(ctx context.Context, id string, fn UserMutator) (*models.User, error)
}

// DonationRepository defines persistence operations for donations.
type DonationRepository interface {
	// Create stores a new donation with status available.
	Create(ctx context.Context, donation *models.Donation) error
	// GetByID returns a NotFound error when absent.
	GetByID(ctx context.Context, id string) (*models.Donation, error)
	// List returns every donation in insertion order.
	List(ctx context.Context) ([]*models.Donation, error)
	// Mutate applies fn to a copy of the donation under the donation's lock and persists the result.
	Mutate(ctx context.Context, id string, fn DonationMutator) (*models.Donation, error)
}

// Store bundles the repositories of one storage backend.
type Store interface {
	Users() UserRepository
	Donations() DonationRepository
	Name() string
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "sqlstate 23505")
}
