package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/zamanix/dailycoins/internal/apperror"
	"github.com/zamanix/dailycoins/internal/model"
	"github.com/zamanix/dailycoins/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// errBelowFloor is returned when a write would store fewer coins than the
// schema allows. The reward engine never produces such a balance.
var errBelowFloor = errors.New("sqlite: coin balance below floor")

const userColumns = `id, name, email, phone, password_hash, coins, login_streak,
	last_login_date, is_admin, version, created_at, updated_at`

// Create inserts a new user. ID, Version and timestamps are set in place.
// Returns apperror.ErrDuplicate if the email is already registered.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.ID = xid.New().String()
	user.Email = normalizeEmail(user.Email)
	user.Version = 1
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		user.Phone,
		user.PasswordHash,
		user.Coins,
		user.LoginStreak,
		nullDate(user.LastLoginDate),
		user.IsAdmin,
		user.Version,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return apperror.Duplicate("email")
		case isCheckViolation(err):
			return fmt.Errorf("%w: creating user %s", errBelowFloor, user.ID)
		}
		return fmt.Errorf("sqlite: creating user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetByEmail retrieves a user by email, case-insensitively.
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = normalizeEmail(email)

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

// Update writes the profile fields (name, email, phone, password hash,
// admin flag) if user.Version still matches the stored row.
func (db *DB) Update(ctx context.Context, user *model.User) error {
	now := time.Now()
	email := normalizeEmail(user.Email)

	result, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET name = ?, email = ?, phone = ?, password_hash = ?, is_admin = ?,
		     version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		user.Name,
		email,
		user.Phone,
		user.PasswordHash,
		user.IsAdmin,
		now,
		user.ID,
		user.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Duplicate("email")
		}
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	if err := db.checkVersionedWrite(ctx, result, user.ID); err != nil {
		return err
	}

	user.Email = email
	user.Version++
	user.UpdatedAt = now
	return nil
}

// UpdateStanding writes coins, streak and last login date if user.Version
// still matches the stored row. This is the compare-and-swap that keeps two
// concurrent logins from losing one of the rewards.
func (db *DB) UpdateStanding(ctx context.Context, user *model.User) error {
	now := time.Now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET coins = ?, login_streak = ?, last_login_date = ?,
		     version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		user.Coins,
		user.LoginStreak,
		nullDate(user.LastLoginDate),
		now,
		user.ID,
		user.Version,
	)
	if err != nil {
		if isCheckViolation(err) {
			return fmt.Errorf("%w: updating user %s", errBelowFloor, user.ID)
		}
		return fmt.Errorf("sqlite: updating standing of user %s: %w", user.ID, err)
	}

	if err := db.checkVersionedWrite(ctx, result, user.ID); err != nil {
		return err
	}

	user.Version++
	user.UpdatedAt = now
	return nil
}

// List returns users ordered by registration time.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := max(opts.Offset, 0)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+`
		 FROM users
		 ORDER BY created_at ASC, id ASC
		 LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}

	return users, nil
}

// checkVersionedWrite turns "0 rows affected" into NotFound or Conflict.
func (db *DB) checkVersionedWrite(ctx context.Context, result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	var count int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE id = ?`, id,
	).Scan(&count); err != nil {
		return fmt.Errorf("sqlite: checking user %s exists: %w", id, err)
	}
	if count == 0 {
		return apperror.NotFound("user", id)
	}
	return apperror.Conflict("user", id)
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*model.User, error) {
	var (
		u         model.User
		lastLogin sql.NullString
	)

	if err := s.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Phone,
		&u.PasswordHash,
		&u.Coins,
		&u.LoginStreak,
		&lastLogin,
		&u.IsAdmin,
		&u.Version,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if lastLogin.Valid {
		d, err := parseDate(lastLogin.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_login_date %q: %w", lastLogin.String, err)
		}
		u.LastLoginDate = &d
	}

	return &u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
