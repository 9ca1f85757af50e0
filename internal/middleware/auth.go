// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/carterperez-dev/templates/account-service/internal/core"
)

const UserIDKey contextKey = "user_id"

// SessionVerifier resolves a session cookie value to a user id. It fails for
// a bad signature, an expired token, or a token that is no longer the one
// stored for the user.
type SessionVerifier interface {
	VerifySession(ctx context.Context, token string) (string, error)
}

func Authenticator(
	verifier SessionVerifier,
	cookieName string,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r, cookieName)
			if token == "" {
				core.JSONError(w, core.SessionInvalidError())
				return
			}

			userID, err := verifier.VerifySession(r.Context(), token)
			if err != nil {
				slog.DebugContext(r.Context(), "session rejected",
					"request_id", GetRequestID(r.Context()),
					"error", err,
				)
				core.JSONError(w, core.SessionInvalidError())
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ExtractToken(r *http.Request, cookieName string) string {
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}
