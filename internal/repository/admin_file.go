package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/attaboy/siteadmin/internal/domain"
	"github.com/attaboy/siteadmin/internal/store"
)

// FileAdminRepository keeps the admin account as a zero-or-one element JSON array.
type FileAdminRepository struct {
	coll *store.Collection[domain.AdminAccount]
}

// NewFileAdminRepository opens the admin collection at path.
func NewFileAdminRepository(path string, strict bool, logger *slog.Logger) (*FileAdminRepository, error) {
	coll, err := store.Open[domain.AdminAccount](path,
		store.WithMaxRecords(1),
		store.WithStrict(strict),
		store.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("open admin collection: %w", err)
	}
	return &FileAdminRepository{coll: coll}, nil
}

// Path returns the backing file.
func (r *FileAdminRepository) Path() string { return r.coll.Path() }

// Get returns the admin account, or nil if the collection is empty.
func (r *FileAdminRepository) Get(ctx context.Context) (*domain.AdminAccount, error) {
	records, err := r.coll.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	acct := records[0]
	return &acct, nil
}

// Create writes the account into the empty collection.
func (r *FileAdminRepository) Create(ctx context.Context, account domain.AdminAccount) error {
	if err := account.Validate(); err != nil {
		return domain.ErrInternal("new admin account is invalid", err)
	}
	_, err := r.coll.Update(ctx, func(records []domain.AdminAccount) ([]domain.AdminAccount, error) {
		if len(records) > 0 {
			return nil, ErrAdminExists
		}
		return []domain.AdminAccount{account}, nil
	})
	return err
}

// Update mutates the stored account under the collection lock.
func (r *FileAdminRepository) Update(ctx context.Context, fn func(*domain.AdminAccount) error) (*domain.AdminAccount, error) {
	var updated domain.AdminAccount
	_, err := r.coll.Update(ctx, func(records []domain.AdminAccount) ([]domain.AdminAccount, error) {
		if len(records) == 0 {
			return nil, ErrAdminNotFound
		}
		next, err := applyUpdate(records[0], fn)
		if err != nil {
			return nil, err
		}
		updated = next
		return []domain.AdminAccount{next}, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
