// AngelaMos | 2026
// tokens.go

package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/templates/account-service/internal/config"
	"github.com/carterperez-dev/templates/account-service/internal/core"
	"github.com/carterperez-dev/templates/account-service/internal/user"
)

const sessionTokenType = "refresh"

// OpaqueToken is a single-use token. Raw goes to the user, Hash and
// ExpiresAt go to the store.
type OpaqueToken struct {
	Raw       string
	Hash      string
	ExpiresAt time.Time
}

func (t OpaqueToken) Pair() user.TokenPair {
	return user.TokenPair{Value: t.Hash, ExpiresAt: t.ExpiresAt}
}

type SessionClaims struct {
	UserID    string
	Email     string
	Username  string
	ExpiresAt time.Time
}

type TokenMinter struct {
	key          []byte
	issuer       string
	sessionTTL   time.Duration
	opaqueBytes  int
	opaqueExpire time.Duration
	now          func() time.Time
}

func NewTokenMinter(
	session config.SessionConfig,
	tokens config.TokensConfig,
) *TokenMinter {
	return &TokenMinter{
		key:          []byte(session.Secret),
		issuer:       session.Issuer,
		sessionTTL:   session.TokenExpire,
		opaqueBytes:  tokens.OpaqueBytes,
		opaqueExpire: tokens.OpaqueExpire,
		now:          time.Now,
	}
}

func (m *TokenMinter) MintOpaque() (*OpaqueToken, error) {
	raw, err := core.GenerateSecureToken(m.opaqueBytes)
	if err != nil {
		return nil, fmt.Errorf("mint opaque token: %w", err)
	}

	return &OpaqueToken{
		Raw:       raw,
		Hash:      core.HashToken(raw),
		ExpiresAt: m.now().Add(m.opaqueExpire),
	}, nil
}

// HashOpaque returns the stored form of a presented raw token.
func (m *TokenMinter) HashOpaque(raw string) string {
	return core.HashToken(raw)
}

func (m *TokenMinter) MintSession(u *user.User) (user.TokenPair, error) {
	now := m.now()
	expiresAt := now.Add(m.sessionTTL)

	token, err := jwt.NewBuilder().
		JwtID(uuid.New().String()).
		Issuer(m.issuer).
		Subject(u.ID).
		IssuedAt(now).
		Expiration(expiresAt).
		Claim("email", u.Email).
		Claim("username", u.Username).
		Claim("type", sessionTokenType).
		Build()
	if err != nil {
		return user.TokenPair{}, fmt.Errorf("build session token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), m.key))
	if err != nil {
		return user.TokenPair{}, fmt.Errorf("sign session token: %w", err)
	}

	return user.TokenPair{Value: string(signed), ExpiresAt: expiresAt}, nil
}

func (m *TokenMinter) VerifySession(tokenString string) (*SessionClaims, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.HS256(), m.key),
		jwt.WithValidate(true),
		jwt.WithIssuer(m.issuer),
	)
	if err != nil {
		if isTokenExpiredError(err) {
			return nil, fmt.Errorf("verify session: %w", core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("verify session: %w", core.ErrTokenInvalid)
	}

	var tokenType string
	if err := token.Get("type", &tokenType); err != nil ||
		tokenType != sessionTokenType {
		return nil, fmt.Errorf(
			"verify session: invalid token type: %w",
			core.ErrTokenInvalid,
		)
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf(
			"verify session: missing subject: %w",
			core.ErrTokenInvalid,
		)
	}

	claims := &SessionClaims{UserID: subject}
	//nolint:errcheck // optional claims
	_ = token.Get("email", &claims.Email)
	//nolint:errcheck // optional claims
	_ = token.Get("username", &claims.Username)
	if exp, ok := token.Expiration(); ok {
		claims.ExpiresAt = exp
	}

	return claims, nil
}

func isTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "exp") &&
		strings.Contains(errStr, "not satisfied")
}
