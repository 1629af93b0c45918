package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/attaboy/siteadmin/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgAdminRepository stores the admin account in the singleton admin_account row.
type PgAdminRepository struct {
	pool *pgxpool.Pool
}

// NewPgAdminRepository creates a new PgAdminRepository.
func NewPgAdminRepository(pool *pgxpool.Pool) *PgAdminRepository {
	return &PgAdminRepository{pool: pool}
}

const selectAdmin = `
	SELECT admin_name, admin_id, email, password_hash, is_2fa_enabled, pin_hash
	FROM admin_account WHERE slot`

// loadAdmin reads the singleton row through db, locking it when forUpdate is set.
func loadAdmin(ctx context.Context, db DBTX, forUpdate bool) (*domain.AdminAccount, error) {
	query := selectAdmin
	if forUpdate {
		query += ` FOR UPDATE`
	}
	a := &domain.AdminAccount{}
	err := db.QueryRow(ctx, query).Scan(&a.AdminName, &a.AdminID, &a.Email, &a.PasswordHash, &a.Is2FAEnabled, &a.PINHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select admin: %w", err)
	}
	return a, nil
}

// Get returns the admin account, or nil if the table is empty.
func (r *PgAdminRepository) Get(ctx context.Context) (*domain.AdminAccount, error) {
	return loadAdmin(ctx, r.pool, false)
}

// Create inserts the singleton row.
func (r *PgAdminRepository) Create(ctx context.Context, account domain.AdminAccount) error {
	if err := account.Validate(); err != nil {
		return domain.ErrInternal("new admin account is invalid", err)
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO admin_account (admin_name, admin_id, email, password_hash, is_2fa_enabled, pin_hash)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		account.AdminName, account.AdminID, account.Email, account.PasswordHash, account.Is2FAEnabled, account.PINHash)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAdminExists
	}
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	return nil
}

// Update locks the row with SELECT ... FOR UPDATE, applies fn and writes the result.
func (r *PgAdminRepository) Update(ctx context.Context, fn func(*domain.AdminAccount) error) (*domain.AdminAccount, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := loadAdmin(ctx, tx, true)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrAdminNotFound
	}

	next, err := applyUpdate(*current, fn)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE admin_account
		SET admin_name = $1, email = $2, password_hash = $3, is_2fa_enabled = $4, pin_hash = $5, updated_at = now()
		WHERE slot`,
		next.AdminName, next.Email, next.PasswordHash, next.Is2FAEnabled, next.PINHash)
	if err != nil {
		return nil, fmt.Errorf("update admin: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &next, nil
}
