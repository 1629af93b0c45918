package repository

import (
	"context"
	"errors"

	"github.com/attaboy/siteadmin/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrAdminExists is returned by Create when the slot is already taken.
	ErrAdminExists = errors.New("admin account already exists")
	// ErrAdminNotFound is returned by Update when the slot is empty.
	ErrAdminNotFound = errors.New("admin account not found")
	// ErrAdminIDChanged is returned by Update when the mutation touched the adminId.
	ErrAdminIDChanged = errors.New("admin ID is immutable")
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// AdminRepository is the single-slot store for the administrator record.
type AdminRepository interface {
	// Get returns the admin account, or nil when none exists.
	Get(ctx context.Context) (*domain.AdminAccount, error)

	// Create fills the empty slot. It returns ErrAdminExists when an account is present.
	Create(ctx context.Context, account domain.AdminAccount) error

	// Update applies fn to the stored account under a lock and persists the result.
	// Nothing is written when fn returns an error.
	Update(ctx context.Context, fn func(*domain.AdminAccount) error) (*domain.AdminAccount, error)
}

// applyUpdate runs fn on a copy and enforces the invariants every backend shares.
func applyUpdate(current domain.AdminAccount, fn func(*domain.AdminAccount) error) (domain.AdminAccount, error) {
	next := current
	if current.PINHash != nil {
		pin := *current.PINHash
		next.PINHash = &pin
	}
	if err := fn(&next); err != nil {
		return domain.AdminAccount{}, err
	}
	if next.AdminID != current.AdminID {
		return domain.AdminAccount{}, ErrAdminIDChanged
	}
	if err := next.Validate(); err != nil {
		return domain.AdminAccount{}, domain.ErrInternal("updated admin account is invalid", err)
	}
	return next, nil
}
