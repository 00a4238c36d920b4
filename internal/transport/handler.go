package transport

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pos-backoffice/internal/apperr"
	"pos-backoffice/internal/middleware"
)

const dateLayout = "2006-01-02"

// Route groups handed to RegisterRoutes by the server.
type Routes struct {
	Auth    func(http.Handler) http.Handler
	Limiter func(http.Handler) http.Handler
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid "+name, apperr.FieldError{Field: name, Message: "must be a positive integer"})
	}
	return id, nil
}

func queryInt(r *http.Request, name string, fallback int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.Validation("invalid "+name, apperr.FieldError{Field: name, Message: "must be an integer"})
	}
	return n, nil
}

func queryDecimal(r *http.Request, name string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(r.URL.Query().Get(name))
	if err != nil {
		return decimal.Zero, apperr.Validation("invalid "+name, apperr.FieldError{Field: name, Message: "must be a decimal amount"})
	}
	return d, nil
}

// queryDate parses a YYYY-MM-DD parameter as midnight in loc.
func queryDate(r *http.Request, name string, loc *time.Location, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return time.Time{}, apperr.Validation("invalid "+name, apperr.FieldError{Field: name, Message: "must be a date formatted YYYY-MM-DD"})
	}
	return t, nil
}

func fail(w http.ResponseWriter, logger *zap.Logger, msg string, err error) {
	logger.Debug(msg, zap.Error(err))
	middleware.RespondWithAppError(w, logger, err)
}
