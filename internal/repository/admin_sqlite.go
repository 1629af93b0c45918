package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/attaboy/siteadmin/internal/domain"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS admin_account (
	slot           INTEGER PRIMARY KEY CHECK (slot = 1),
	admin_name     TEXT    NOT NULL,
	admin_id       TEXT    NOT NULL,
	email          TEXT    NOT NULL,
	password_hash  TEXT    NOT NULL,
	is_2fa_enabled INTEGER NOT NULL DEFAULT 0,
	pin_hash       TEXT,
	updated_at     TEXT    NOT NULL DEFAULT (datetime('now')),
	CHECK ((is_2fa_enabled = 1) = (pin_hash IS NOT NULL))
)`

// sqliteConstraint is the primary result code for constraint violations.
const sqliteConstraint = 19

// adminRow maps 1:1 to the admin_account columns.
type adminRow struct {
	AdminName    string  `db:"admin_name"`
	AdminID      string  `db:"admin_id"`
	Email        string  `db:"email"`
	PasswordHash string  `db:"password_hash"`
	Is2FAEnabled bool    `db:"is_2fa_enabled"`
	PINHash      *string `db:"pin_hash"`
}

func rowFromAccount(a domain.AdminAccount) adminRow {
	return adminRow{
		AdminName:    a.AdminName,
		AdminID:      a.AdminID,
		Email:        a.Email,
		PasswordHash: a.PasswordHash,
		Is2FAEnabled: a.Is2FAEnabled,
		PINHash:      a.PINHash,
	}
}

func (r adminRow) toAccount() domain.AdminAccount {
	return domain.AdminAccount{
		AdminName:    r.AdminName,
		AdminID:      r.AdminID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Is2FAEnabled: r.Is2FAEnabled,
		PINHash:      r.PINHash,
	}
}

// SqliteAdminRepository stores the admin account as the single row of an
// embedded SQLite database.
type SqliteAdminRepository struct {
	db   *sqlx.DB
	path string
}

// NewSqliteAdminRepository opens (creating if needed) the database at path.
func NewSqliteAdminRepository(path string) (*SqliteAdminRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open admin database: %w", err)
	}
	// One connection serializes every read-modify-write in this process.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create admin table: %w", err)
	}
	return &SqliteAdminRepository{db: db, path: path}, nil
}

// Path returns the database file.
func (r *SqliteAdminRepository) Path() string { return r.path }

// Ping checks the database is reachable.
func (r *SqliteAdminRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database.
func (r *SqliteAdminRepository) Close() error {
	return r.db.Close()
}

const sqliteSelectAdmin = `
	SELECT admin_name, admin_id, email, password_hash, is_2fa_enabled, pin_hash
	FROM admin_account WHERE slot = 1`

// Get returns the admin account, or nil if the table is empty.
func (r *SqliteAdminRepository) Get(ctx context.Context) (*domain.AdminAccount, error) {
	var row adminRow
	if err := r.db.GetContext(ctx, &row, sqliteSelectAdmin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select admin: %w", err)
	}
	acct := row.toAccount()
	return &acct, nil
}

// Create inserts the singleton row.
func (r *SqliteAdminRepository) Create(ctx context.Context, account domain.AdminAccount) error {
	if err := account.Validate(); err != nil {
		return domain.ErrInternal("new admin account is invalid", err)
	}
	const q = `INSERT INTO admin_account
		(slot, admin_name, admin_id, email, password_hash, is_2fa_enabled, pin_hash)
		VALUES
		(1, :admin_name, :admin_id, :email, :password_hash, :is_2fa_enabled, :pin_hash)`

	_, err := r.db.NamedExecContext(ctx, q, rowFromAccount(account))
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqliteConstraint {
		return ErrAdminExists
	}
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	return nil
}

// Update applies fn to the row inside an immediate transaction.
func (r *SqliteAdminRepository) Update(ctx context.Context, fn func(*domain.AdminAccount) error) (*domain.AdminAccount, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var row adminRow
	if err := tx.GetContext(ctx, &row, sqliteSelectAdmin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("select admin: %w", err)
	}

	next, err := applyUpdate(row.toAccount(), fn)
	if err != nil {
		return nil, err
	}

	const q = `UPDATE admin_account
		SET admin_name = :admin_name, email = :email, password_hash = :password_hash,
			is_2fa_enabled = :is_2fa_enabled, pin_hash = :pin_hash, updated_at = datetime('now')
		WHERE slot = 1`
	if _, err := tx.NamedExecContext(ctx, q, rowFromAccount(next)); err != nil {
		return nil, fmt.Errorf("update admin: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &next, nil
}
