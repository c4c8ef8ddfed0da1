package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
)

const pqUniqueViolation = "23505"

// UserRepository provides database access for user accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user. Duplicate emails surface as ErrDuplicateEmail.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, email, password_hash, full_name, role, token_version, created_at, updated_at)
        VALUES (:id, :email, :password_hash, :full_name, :role, :token_version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return appErrors.ErrDuplicateEmail
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `SELECT id, email, password_hash, full_name, role, reset_token, token_version, created_at, updated_at FROM users WHERE email = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT id, email, password_hash, full_name, role, reset_token, token_version, created_at, updated_at FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// SetResetToken stores the single currently-valid reset token, overwriting
// any previous one.
func (r *UserRepository) SetResetToken(ctx context.Context, id, token string, updatedAt time.Time) error {
	const query = `UPDATE users SET reset_token = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, token, updatedAt); err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	return nil
}

// ResetPassword swaps the password hash, clears the reset token and bumps the
// token version in one statement so presented tokens cannot be replayed.
// It reports whether the presented token still matched the stored one.
func (r *UserRepository) ResetPassword(ctx context.Context, id, presentedToken, passwordHash string, updatedAt time.Time) (bool, error) {
	const query = `UPDATE users SET password_hash = $3, reset_token = NULL, token_version = token_version + 1, updated_at = $4
        WHERE id = $1 AND reset_token = $2`
	res, err := r.db.ExecContext(ctx, query, id, presentedToken, passwordHash, updatedAt)
	if err != nil {
		return false, fmt.Errorf("reset password: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reset password rows affected: %w", err)
	}
	return affected == 1, nil
}

// UpdateProfile applies a partial update of name and/or password hash. A
// password change bumps token_version, revoking previously issued tokens.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, name, passwordHash *string, updatedAt time.Time) error {
	switch {
	case name != nil && passwordHash != nil:
		const query = `UPDATE users SET full_name = $2, password_hash = $3, token_version = token_version + 1, updated_at = $4 WHERE id = $1`
		if _, err := r.db.ExecContext(ctx, query, id, *name, *passwordHash, updatedAt); err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
	case name != nil:
		const query = `UPDATE users SET full_name = $2, updated_at = $3 WHERE id = $1`
		if _, err := r.db.ExecContext(ctx, query, id, *name, updatedAt); err != nil {
			return fmt.Errorf("update profile name: %w", err)
		}
	case passwordHash != nil:
		const query = `UPDATE users SET password_hash = $2, token_version = token_version + 1, updated_at = $3 WHERE id = $1`
		if _, err := r.db.ExecContext(ctx, query, id, *passwordHash, updatedAt); err != nil {
			return fmt.Errorf("update profile password: %w", err)
		}
	}
	return nil
}
