// AngelaMos | 2026
// session.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/carterperez-dev/templates/account-service/internal/config"
	"github.com/carterperez-dev/templates/account-service/internal/core"
	"github.com/carterperez-dev/templates/account-service/internal/user"
)

// SessionIssuer decides at login whether the stored session token can be
// reused or must be re-minted, and binds it to the outbound cookie.
type SessionIssuer struct {
	users  user.Repository
	minter *TokenMinter
	cache  SessionCache
	logger *slog.Logger

	cookieName   string
	cookieMaxAge time.Duration
	secure       bool

	now func() time.Time
}

func NewSessionIssuer(
	users user.Repository,
	minter *TokenMinter,
	cache SessionCache,
	cfg config.SessionConfig,
	secure bool,
	logger *slog.Logger,
) *SessionIssuer {
	if cache == nil {
		cache = NoopSessionCache()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionIssuer{
		users:        users,
		minter:       minter,
		cache:        cache,
		logger:       logger,
		cookieName:   cfg.CookieName,
		cookieMaxAge: cfg.CookieMaxAge,
		secure:       secure,
		now:          time.Now,
	}
}

// Issue returns the session token to hand out and whether it was re-minted.
// A token that is absent or past its expiry is replaced and persisted; a
// valid one is reused without a write.
func (s *SessionIssuer) Issue(
	ctx context.Context,
	u *user.User,
) (string, bool, error) {
	gen, genErr := s.cache.Generation(ctx, u.ID)

	current, ok := u.Session()
	if ok && !current.IsExpired(s.now()) {
		s.prime(ctx, u.ID, current, gen, genErr)
		return current.Value, false, nil
	}

	minted, err := s.minter.MintSession(u)
	if err != nil {
		return "", false, fmt.Errorf("issue session: %w: %w", core.ErrUnauthorized, err)
	}

	u.SetSession(minted)
	if err := s.users.Save(ctx, u); err != nil {
		return "", false, fmt.Errorf("issue session: %w: %w", core.ErrUnauthorized, err)
	}

	s.prime(ctx, u.ID, minted, gen, genErr)
	return minted.Value, true, nil
}

// Revoke clears the stored session pair and persists the record with any
// other pending changes. The cache is invalidated before the write so an
// unreachable cache aborts without changing anything, and again after it to
// drop entries primed by requests that read the record in between.
func (s *SessionIssuer) Revoke(ctx context.Context, u *user.User) error {
	if err := s.invalidate(ctx, u.ID); err != nil {
		return err
	}

	u.ClearSession()
	if err := s.users.Save(ctx, u); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	return s.invalidate(ctx, u.ID)
}

func (s *SessionIssuer) invalidate(ctx context.Context, userID string) error {
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		return core.NewAppError(
			fmt.Errorf("%w: %w", core.ErrUpstream, err),
			"failed to end session",
			http.StatusBadGateway,
			"UPSTREAM_ERROR",
		)
	}
	return nil
}

// prime caches the token hash unless the generation could not be read or
// has moved on since it was read.
func (s *SessionIssuer) prime(
	ctx context.Context,
	userID string,
	p user.TokenPair,
	gen int64,
	genErr error,
) {
	if genErr != nil {
		s.logger.Warn("session cache generation read failed", "user_id", userID, "error", genErr)
		return
	}

	ttl := p.ExpiresAt.Sub(s.now())
	err := s.cache.Remember(ctx, userID, core.HashToken(p.Value), gen, ttl)
	switch {
	case err == nil:
	case errors.Is(err, ErrStaleGeneration):
		s.logger.Debug("session cache prime skipped", "user_id", userID)
	default:
		s.logger.Warn("session cache prime failed", "user_id", userID, "error", err)
	}
}

// Resolve maps a presented session token to its user id. The token must
// carry a valid signature and equal the session currently stored for the
// user, so a token cleared at logout stops working even before it expires.
func (s *SessionIssuer) Resolve(ctx context.Context, token string) (string, error) {
	claims, err := s.minter.VerifySession(token)
	if err != nil {
		return "", err
	}

	hash := core.HashToken(token)
	cached, ok, err := s.cache.Lookup(ctx, claims.UserID)
	if err != nil {
		s.logger.Warn("session cache lookup failed", "user_id", claims.UserID, "error", err)
	}
	if ok && cached == hash {
		return claims.UserID, nil
	}

	gen, genErr := s.cache.Generation(ctx, claims.UserID)

	u, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return "", fmt.Errorf("resolve session: %w", core.ErrTokenRevoked)
		}
		return "", fmt.Errorf("resolve session: %w", err)
	}

	current, ok := u.Session()
	if !ok || current.IsExpired(s.now()) || !core.CompareTokenHash(current.Value, hash) {
		return "", fmt.Errorf("resolve session: %w", core.ErrTokenRevoked)
	}

	s.prime(ctx, u.ID, current, gen, genErr)
	return u.ID, nil
}

// Cookie lifetime is fixed and independent of the token's remaining validity.
func (s *SessionIssuer) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.cookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (s *SessionIssuer) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (s *SessionIssuer) CookieName() string {
	return s.cookieName
}
