// Package admin guards service-to-service routes such as the conversion
// callback with a shared token.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	request "vouch/pkg/platform/middleware/request"
)

const HeaderServiceToken = "X-Service-Token"

// RequireServiceToken rejects requests whose X-Service-Token does not match.
// An empty expected token disables the routes entirely.
func RequireServiceToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(HeaderServiceToken)
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "service token mismatch",
					"request_id", request.GetRequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"service token required"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
