package transport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pos-backoffice/internal/middleware"
	"pos-backoffice/internal/service"
	"pos-backoffice/internal/session"
)

const defaultTopSellers = 10

// ReportHandler serves the administrator's sales reports.
type ReportHandler struct {
	reports service.ReportService
	loc     *time.Location
	logger  *zap.Logger
}

func NewReportHandler(reports service.ReportService, loc *time.Location, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, loc: loc, logger: logger}
}

func (h *ReportHandler) RegisterRoutes(r chi.Router, routes Routes) {
	r.Route("/api/reports", func(r chi.Router) {
		r.Use(routes.Auth)
		r.Use(middleware.RequireCapability(session.ViewReports, h.logger))

		r.Get("/daily-total", h.DailyTotal)
		r.Get("/top-products", h.TopSellers)
		r.Get("/products/{id}/sold", h.TotalSold)
		r.Get("/products/{id}/sales", h.SalesContainingProduct)
	})
}

// DailyTotal sums the sales of ?date=YYYY-MM-DD, today by default.
func (h *ReportHandler) DailyTotal(w http.ResponseWriter, r *http.Request) {
	day, err := queryDate(r, "date", h.loc, time.Now().In(h.loc))
	if err != nil {
		fail(w, h.logger, "Invalid date", err)
		return
	}
	total, err := h.reports.DailyTotal(r.Context(), day)
	if err != nil {
		fail(w, h.logger, "Failed to compute daily total", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"date":  day.Format(dateLayout),
		"total": total.StringFixed(2),
	})
}

func (h *ReportHandler) TopSellers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultTopSellers)
	if err != nil {
		fail(w, h.logger, "Invalid limit", err)
		return
	}
	ranking, err := h.reports.TopSellers(r.Context(), int(limit))
	if err != nil {
		fail(w, h.logger, "Failed to rank products", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, ranking)
}

func (h *ReportHandler) TotalSold(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, h.logger, "Invalid product id", err)
		return
	}
	quantity, err := h.reports.TotalSold(r.Context(), id)
	if err != nil {
		fail(w, h.logger, "Failed to total product sales", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string]int64{"product_id": id, "quantity": quantity})
}

func (h *ReportHandler) SalesContainingProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, h.logger, "Invalid product id", err)
		return
	}
	lines, err := h.reports.SalesContainingProduct(r.Context(), id)
	if err != nil {
		fail(w, h.logger, "Failed to list product sales", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, lines)
}
