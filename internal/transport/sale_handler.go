package transport

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pos-backoffice/internal/domain"
	"pos-backoffice/internal/middleware"
	"pos-backoffice/internal/service"
	"pos-backoffice/internal/session"
)

// CheckoutRequest is the cart being paid.
type CheckoutRequest struct {
	Items []domain.CartItem `json:"items"`
}

type CheckoutResponse struct {
	SaleID int64 `json:"sale_id"`
}

// SaleHandler serves checkout, sale history and receipts.
type SaleHandler struct {
	sales   service.SaleService
	reports service.ReportService
	loc     *time.Location
	logger  *zap.Logger
}

func NewSaleHandler(sales service.SaleService, reports service.ReportService, loc *time.Location, logger *zap.Logger) *SaleHandler {
	return &SaleHandler{sales: sales, reports: reports, loc: loc, logger: logger}
}

func (h *SaleHandler) RegisterRoutes(r chi.Router, routes Routes) {
	r.Route("/api/sales", func(r chi.Router) {
		r.Use(routes.Auth)
		r.With(middleware.RequireCapability(session.ProcessSales, h.logger)).Post("/", h.Checkout)
		r.Get("/", h.List)
		r.Get("/today", h.Today)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/receipt", h.Receipt)
		r.Get("/{id}/receipt.pdf", h.ReceiptPDF)
		r.With(middleware.RequireCapability(session.ManageInventory, h.logger)).Delete("/{id}", h.Delete)
	})
}

func (h *SaleHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		fail(w, h.logger, "Checkout validation failed", err)
		return
	}

	id, err := h.sales.Checkout(r.Context(), req.Items)
	if err != nil {
		fail(w, h.logger, "Checkout failed", err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/sales/%d", id))
	middleware.RespondWithJSON(w, http.StatusCreated, CheckoutResponse{SaleID: id})
}

// List returns every sale, or narrows by user_id, or by a from/to date
// range in store time.
func (h *SaleHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		sales []*domain.Sale
		err   error
	)
	switch {
	case q.Get("user_id") != "":
		var userID int64
		if userID, err = queryInt(r, "user_id", 0); err == nil {
			sales, err = h.reports.SalesByUser(r.Context(), userID)
		}
	case q.Get("from") != "" || q.Get("to") != "":
		sales, err = h.byRange(r)
	default:
		sales, err = h.reports.ListSales(r.Context())
	}
	if err != nil {
		fail(w, h.logger, "Failed to list sales", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, sales)
}

func (h *SaleHandler) byRange(r *http.Request) ([]*domain.Sale, error) {
	today := time.Now().In(h.loc)
	midnight := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, h.loc)

	from, err := queryDate(r, "from", h.loc, midnight)
	if err != nil {
		return nil, err
	}
	to, err := queryDate(r, "to", h.loc, midnight)
	if err != nil {
		return nil, err
	}
	// to names a whole day
	return h.reports.SalesByRange(r.Context(), from, to.AddDate(0, 0, 1).Add(-time.Nanosecond))
}

func (h *SaleHandler) Today(w http.ResponseWriter, r *http.Request) {
	sales, err := h.reports.SalesToday(r.Context())
	if err != nil {
		fail(w, h.logger, "Failed to list today's sales", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, sales)
}

func (h *SaleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, h.logger, "Invalid sale id", err)
		return
	}
	sale, err := h.sales.GetSale(r.Context(), id)
	if err != nil {
		fail(w, h.logger, "Failed to get sale", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, sale)
}

func (h *SaleHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, h.logger, "Invalid sale id", err)
		return
	}
	text, err := h.sales.Receipt(r.Context(), id)
	if err != nil {
		fail(w, h.logger, "Failed to render receipt", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

// ReceiptPDF renders into a buffer first so a failure can still answer
// with a JSON error.
func (h *SaleHandler) ReceiptPDF(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, h.logger, "Invalid sale id", err)
		return
	}
	var buf bytes.Buffer
	if err := h.sales.ReceiptPDF(r.Context(), id, &buf); err != nil {
		fail(w, h.logger, "Failed to render receipt", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="venta_%d.pdf"`, id))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *SaleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, h.logger, "Invalid sale id", err)
		return
	}
	if err := h.sales.DeleteSale(r.Context(), id); err != nil {
		fail(w, h.logger, "Failed to delete sale", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
