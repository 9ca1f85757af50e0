// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carterperez-dev/templates/account-service/internal/core"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	Save(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByVerificationTokenHash(ctx context.Context, hash string) (*User, error)
	FindByResetTokenHash(ctx context.Context, hash string) (*User, error)
	Counts(ctx context.Context) (Counts, error)
}

// Counts is an aggregate over the users table for the ops surface.
type Counts struct {
	Total          int64 `db:"total"          json:"total"`
	Verified       int64 `db:"verified"       json:"verified"`
	ActiveSessions int64 `db:"active_sessions" json:"activeSessions"`
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const userColumns = `
	id, email, username, full_name, avatar_url, password_hash,
	is_email_verified, role,
	email_verification_token, email_verification_expiry,
	forgot_password_token, forgot_password_expiry,
	refresh_token, refresh_token_expiry,
	created_at, updated_at`

func (r *repository) Create(ctx context.Context, user *User) error {
	if !core.IsPasswordHash(user.PasswordHash) {
		return fmt.Errorf("create user: password is not hashed: %w", core.ErrInvalidInput)
	}

	query := `
		INSERT INTO users (
			id, email, username, full_name, avatar_url, password_hash,
			is_email_verified, role,
			email_verification_token, email_verification_expiry,
			forgot_password_token, forgot_password_expiry,
			refresh_token, refresh_token_expiry
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
		RETURNING created_at, updated_at`

	row := r.db.QueryRowxContext(ctx, query,
		user.ID,
		user.Email,
		user.Username,
		user.FullName,
		user.AvatarURL,
		user.PasswordHash,
		user.IsEmailVerified,
		user.Role,
		user.EmailVerificationToken,
		user.EmailVerificationExpiry,
		user.ForgotPasswordToken,
		user.ForgotPasswordExpiry,
		user.RefreshToken,
		user.RefreshTokenExpiry,
	)
	if err := row.Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

// Save writes every mutable column of the record. Last write wins.
func (r *repository) Save(ctx context.Context, user *User) error {
	if !core.IsPasswordHash(user.PasswordHash) {
		return fmt.Errorf("save user: password is not hashed: %w", core.ErrInvalidInput)
	}

	query := `
		UPDATE users
		SET email = $2,
		    username = $3,
		    full_name = $4,
		    avatar_url = $5,
		    password_hash = $6,
		    is_email_verified = $7,
		    role = $8,
		    email_verification_token = $9,
		    email_verification_expiry = $10,
		    forgot_password_token = $11,
		    forgot_password_expiry = $12,
		    refresh_token = $13,
		    refresh_token_expiry = $14,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &user.UpdatedAt, query,
		user.ID,
		user.Email,
		user.Username,
		user.FullName,
		user.AvatarURL,
		user.PasswordHash,
		user.IsEmailVerified,
		user.Role,
		user.EmailVerificationToken,
		user.EmailVerificationExpiry,
		user.ForgotPasswordToken,
		user.ForgotPasswordExpiry,
		user.RefreshToken,
		user.RefreshTokenExpiry,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("save user: %w", core.ErrNotFound)
	}
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("save user: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("save user: %w", err)
	}

	return nil
}

func (r *repository) FindByID(ctx context.Context, id string) (*User, error) {
	return r.findOne(ctx, "find user by id", "id = $1", id)
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, "find user by email", "email = $1", email)
}

func (r *repository) FindByUsername(
	ctx context.Context,
	username string,
) (*User, error) {
	return r.findOne(ctx, "find user by username", "username = $1", username)
}

func (r *repository) FindByVerificationTokenHash(
	ctx context.Context,
	hash string,
) (*User, error) {
	return r.findOne(
		ctx,
		"find user by verification token",
		"email_verification_token = $1",
		hash,
	)
}

func (r *repository) FindByResetTokenHash(
	ctx context.Context,
	hash string,
) (*User, error) {
	return r.findOne(
		ctx,
		"find user by reset token",
		"forgot_password_token = $1",
		hash,
	)
}

func (r *repository) findOne(
	ctx context.Context,
	op, where string,
	arg any,
) (*User, error) {
	query := "SELECT" + userColumns + "\n\t\tFROM users\n\t\tWHERE " + where

	var user User
	err := r.db.GetContext(ctx, &user, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &user, nil
}

func (r *repository) Counts(ctx context.Context) (Counts, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE is_email_verified) AS verified,
			COUNT(*) FILTER (
				WHERE refresh_token IS NOT NULL AND refresh_token_expiry > NOW()
			) AS active_sessions
		FROM users`

	var c Counts
	if err := r.db.GetContext(ctx, &c, query); err != nil {
		return Counts{}, fmt.Errorf("count users: %w", err)
	}
	return c, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	return false
}
