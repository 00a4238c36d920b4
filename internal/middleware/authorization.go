package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"pos-backoffice/internal/session"
)

// RequireCapability rejects requests whose session may not exercise c.
// It must run after AuthMiddleware.
func RequireCapability(c session.Capability, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := GetSession(r.Context())
			if !ok {
				logger.Warn("Session not found in context")
				RespondWithError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			if !sess.Allows(c) {
				logger.Warn("Role not authorized",
					zap.String("role", string(sess.User.Role)),
					zap.String("capability", string(c)),
				)
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
