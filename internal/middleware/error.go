package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"pos-backoffice/internal/apperr"
	"pos-backoffice/internal/auth"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Kind      string                 `json:"kind,omitempty"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// RespondWithError sends a structured error response
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithErrorDetails(w, statusCode, "", message, nil)
}

func respondWithErrorDetails(w http.ResponseWriter, statusCode int, kind, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: ErrorDetail{
			Code:      http.StatusText(statusCode),
			Kind:      kind,
			Message:   message,
			Details:   details,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	json.NewEncoder(w).Encode(response)
}

// StatusFor maps an error to the HTTP status the API answers with.
func StatusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuth:
		if errors.Is(err, auth.ErrForbidden) {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindQuery:
		if errors.Is(err, apperr.ErrDuplicate) || errors.Is(err, apperr.ErrForeignKey) || errors.Is(err, apperr.ErrCheck) {
			return http.StatusConflict
		}
		return http.StatusInternalServerError
	case apperr.KindConnection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithAppError answers with the status matching err's kind. Server
// side failures are logged and their details withheld from the client.
func RespondWithAppError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := StatusFor(err)
	kind := apperr.KindOf(err)

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", zap.String("kind", kind.String()), zap.Error(err))
		message := "internal server error"
		if kind == apperr.KindConnection {
			message = "database unavailable"
		}
		respondWithErrorDetails(w, status, kind.String(), message, nil)
		return
	}

	var details map[string]interface{}
	if fields := apperr.FieldsOf(err); len(fields) > 0 {
		details = map[string]interface{}{"validation_errors": fields}
	}

	message := err.Error()
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	respondWithErrorDetails(w, status, kind.String(), message, details)
}

// ErrorHandlingMiddleware catches panics and converts them to 500 errors
func ErrorHandlingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)

					RespondWithError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
