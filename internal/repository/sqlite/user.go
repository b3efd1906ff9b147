package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kamiapp/kami/internal/apperror"
	"github.com/kamiapp/kami/internal/model"
	"github.com/kamiapp/kami/internal/repository"
	"github.com/rs/xid"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, email, password_hash, profile_image, bio,
	is_admin, is_super_admin, saisen_balance, created_at`

// Create inserts a new account. ID, CreatedAt and the initial balance are
// assigned here; a UNIQUE violation on username or email surfaces as
// apperror.ErrConflict so the handler can answer 409.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.CreatedAt = time.Now()
	if user.SaisenBalance == 0 {
		user.SaisenBalance = model.InitialBalance
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, profile_image, bio,
			is_admin, is_super_admin, saisen_balance, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.ProfileImage,
		user.Bio,
		user.IsAdmin,
		user.IsSuperAdmin,
		user.SaisenBalance,
		user.CreatedAt,
	)
	if err != nil {
		// modernc's driver has no typed constraint error; the message is
		// the only signal ("UNIQUE constraint failed: users.email").
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperror.Conflict("user", "email or username is already taken")
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Username, err)
	}
	return nil
}

// GetByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return db.scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id), id)
}

// GetByEmail is a case-sensitive exact match on the stored email.
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email), email)
}

// FindByUsernameOrEmail returns any account matching either field.
func (db *DB) FindByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error) {
	return db.scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ? OR email = ?`,
		username, email), username)
}

// UpdateBalance overwrites the balance unconditionally. No bounds check —
// callers pre-validate. Returns apperror.ErrNotFound for an unknown ID.
func (db *DB) UpdateBalance(ctx context.Context, id string, newBalance int) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET saisen_balance = ? WHERE id = ?`, newBalance, id)
	if err != nil {
		return fmt.Errorf("sqlite: updating balance for %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: updating balance for %s: %w", id, err)
	}
	if n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// DebitBalance atomically subtracts amount from the user's balance.
//
// THE LOST-UPDATE FIX:
// The naive sequence — read balance, check it, write balance-amount — lets
// two concurrent debits both read the same pre-debit value and both
// "succeed". A single conditional UPDATE closes the window: the check and
// the decrement are one statement, and SQLite serializes writers, so of two
// racing 600-saisen debits against a 1000-saisen account exactly one
// succeeds.
func (db *DB) DebitBalance(ctx context.Context, id string, amount int) (int, error) {
	if amount < 0 {
		return 0, apperror.ValidationFailed("amount", "debit amount must not be negative")
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: beginning debit tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET saisen_balance = saisen_balance - ?
		 WHERE id = ? AND saisen_balance >= ?`,
		amount, id, amount)
	if err != nil {
		return 0, fmt.Errorf("sqlite: debiting %d from %s: %w", amount, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: debiting %d from %s: %w", amount, id, err)
	}

	if n == 0 {
		// Rejected: either no such user or the floor check failed.
		// Distinguish inside the same transaction.
		var balance int
		err := tx.QueryRowContext(ctx,
			`SELECT saisen_balance FROM users WHERE id = ?`, id).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperror.NotFound("user", id)
		}
		if err != nil {
			return 0, fmt.Errorf("sqlite: checking balance for %s: %w", id, err)
		}
		return balance, apperror.InsufficientFunds(amount, balance)
	}

	var newBalance int
	if err := tx.QueryRowContext(ctx,
		`SELECT saisen_balance FROM users WHERE id = ?`, id).Scan(&newBalance); err != nil {
		return 0, fmt.Errorf("sqlite: reading balance for %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: committing debit for %s: %w", id, err)
	}
	return newBalance, nil
}

func (db *DB) scanUser(row *sql.Row, key string) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.ProfileImage,
		&u.Bio,
		&u.IsAdmin,
		&u.IsSuperAdmin,
		&u.SaisenBalance,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", key)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", key, err)
	}
	return &u, nil
}
