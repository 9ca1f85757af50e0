// AngelaMos | 2026
// recoverer.go

package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/carterperez-dev/templates/account-service/internal/core"
)

// Recoverer turns a panic into the standard 500 envelope so that no request
// goes unanswered.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				//nolint:errorlint,err113 // re-panic the sentinel net/http relies on
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.ErrorContext(r.Context(), "panic recovered",
					"panic", fmt.Sprint(rec),
					"request_id", GetRequestID(r.Context()),
					"stack", string(debug.Stack()),
				)
				core.SetSpanError(r.Context(), fmt.Errorf("panic: %v", rec))
				core.JSONError(w, core.InternalError())
			}()

			next.ServeHTTP(w, r)
		})
	}
}
