package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/adamscao/certvault/internal/models"
)

var (
	// ErrUserNotFound is returned when no user matches a lookup
	ErrUserNotFound = errors.New("user not found")

	// ErrUsernameTaken is returned when creating a user whose name exists
	ErrUsernameTaken = errors.New("username already exists")
)

// UserRepository handles issuer and admin account data access
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
	id, username, password_hash, totp_secret, role, enabled, max_certs_per_day, created_at, updated_at`

// Create stores a new account and fills in its ID and timestamps
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, password_hash, totp_secret, role, enabled, max_certs_per_day)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		user.Username,
		user.PasswordHash,
		user.TOTPSecret,
		string(user.Role),
		boolInt(user.Enabled),
		user.MaxCertsPerDay,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrUsernameTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	now := time.Now()
	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now

	return nil
}

// GetByUsername retrieves an account by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT` + userColumns + `
		FROM users
		WHERE username = ?
	`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// Update writes back the mutable account fields
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET password_hash = ?, totp_secret = ?, role = ?, enabled = ?, max_certs_per_day = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		user.PasswordHash,
		user.TOTPSecret,
		string(user.Role),
		boolInt(user.Enabled),
		user.MaxCertsPerDay,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	return requireAffected(result)
}

// List returns every account, newest first. A non-empty role narrows the
// listing to that role.
func (r *UserRepository) List(ctx context.Context, role models.Role) ([]*models.User, error) {
	query := `SELECT` + userColumns + `
		FROM users
	`
	var args []any
	if role != "" {
		query += " WHERE role = ?"
		args = append(args, string(role))
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// Delete removes an account
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return requireAffected(result)
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var enabled int
	var role string

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.TOTPSecret,
		&role,
		&enabled,
		&user.MaxCertsPerDay,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.Enabled = enabled == 1
	user.Role = models.Role(role)
	return user, nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
