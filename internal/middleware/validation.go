package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"go.uber.org/zap"

	"pos-backoffice/internal/apperr"
	"pos-backoffice/internal/domain"
)

const maxBodyBytes = 1 << 20

// RequireJSON rejects request bodies that are not declared as JSON.
func RequireJSON(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength != 0 && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
				mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
				if err != nil || mediaType != "application/json" {
					logger.Debug("Rejected non-JSON body", zap.String("content_type", r.Header.Get("Content-Type")))
					RespondWithError(w, http.StatusUnsupportedMediaType, "content type must be application/json")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// DecodeAndValidate decodes the JSON body into v and validates its struct
// tags. Both failures are validation errors.
func DecodeAndValidate(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required", apperr.FieldError{Field: "body", Message: "This field is required"})
		}
		return apperr.Validation("malformed request body", apperr.FieldError{Field: "body", Message: err.Error()})
	}
	return domain.ValidateStruct("request", v)
}
