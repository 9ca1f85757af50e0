// AngelaMos | 2026
// credentials.go

package auth

import (
	"fmt"
	"log/slog"

	"github.com/carterperez-dev/templates/account-service/internal/core"
	"github.com/carterperez-dev/templates/account-service/internal/user"
)

// Credentials owns the password hash on a user record. SetPassword is the
// only place a plaintext password is turned into a hash.
type Credentials struct {
	logger *slog.Logger
}

func NewCredentials(logger *slog.Logger) *Credentials {
	if logger == nil {
		logger = slog.Default()
	}
	return &Credentials{logger: logger}
}

func (c *Credentials) SetPassword(u *user.User, plaintext string) error {
	if plaintext == "" {
		return core.ValidationError("password is required")
	}

	hash, err := core.HashPassword(plaintext)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}

	u.PasswordHash = hash
	return nil
}

// VerifyPassword never returns an error for a wrong password. A stored hash
// that cannot be decoded counts as a mismatch.
func (c *Credentials) VerifyPassword(u *user.User, plaintext string) bool {
	ok, err := core.VerifyPassword(plaintext, u.PasswordHash)
	if err != nil {
		c.logger.Warn("stored password hash is malformed",
			"user_id", u.ID,
			"error", err,
		)
		return false
	}
	return ok
}
