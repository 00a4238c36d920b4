package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"pos-backoffice/internal/session"
)

type contextKey string

const SessionKey contextKey = "session"

// AuthMiddleware admits requests whose bearer token belongs to the current
// session. Tokens of a session that was logged out or replaced by another
// login are rejected.
func AuthMiddleware(tokens *session.TokenIssuer, sessions *session.Context, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := BearerToken(r)
			if !ok {
				logger.Debug("Missing or malformed authorization header")
				RespondWithError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			sess, err := tokens.Validate(tokenString, sessions)
			if err != nil {
				logger.Debug("Token validation failed", zap.Error(err))
				if errors.Is(err, session.ErrSessionEnded) {
					RespondWithError(w, http.StatusUnauthorized, "session has ended")
				} else {
					RespondWithError(w, http.StatusUnauthorized, "invalid token")
				}
				return
			}

			logger.Debug("Session authenticated",
				zap.Int64("user_id", sess.User.ID),
				zap.String("role", string(sess.User.Role)),
			)

			ctx := context.WithValue(r.Context(), SessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	parts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// GetSession returns the session AuthMiddleware attached to ctx.
func GetSession(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(SessionKey).(*session.Session)
	return sess, ok
}
