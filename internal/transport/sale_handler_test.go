package transport

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-backoffice/internal/domain"
)

func TestProperty_CheckoutPassesCartThrough(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("checkout forwards every item and answers with the sale id", prop.ForAll(
		func(quantities []int) bool {
			api := newTestAPI(t)
			token := api.loginAs(t, domain.RoleCashier, 2)

			items := make([]domain.CartItem, len(quantities))
			for i, q := range quantities {
				items[i] = domain.CartItem{ProductID: int64(i + 1), Quantity: q}
			}

			w := api.do("POST", "/api/sales", token, CheckoutRequest{Items: items})
			if w.Code != http.StatusCreated || w.Header().Get("Location") != "/api/sales/42" {
				return false
			}
			var resp CheckoutResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.SaleID != 42 {
				return false
			}
			if len(api.sales.items) != len(items) {
				return false
			}
			for i := range items {
				if api.sales.items[i] != items[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(1, 50)).SuchThat(func(q []int) bool { return len(q) > 0 }),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestSaleHandler_EmptyCartIsBadRequest(t *testing.T) {
	api := newTestAPI(t)
	token := api.loginAs(t, domain.RoleCashier, 2)

	w := api.do("POST", "/api/sales", token, CheckoutRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "cart is empty", decodeError(t, w).Message)
}

func TestSaleHandler_RequiresSession(t *testing.T) {
	api := newTestAPI(t)
	assert.Equal(t, http.StatusUnauthorized, api.do("POST", "/api/sales", "", CheckoutRequest{}).Code)
}

func TestSaleHandler_GetAndReceipts(t *testing.T) {
	api := newTestAPI(t)
	token := api.loginAs(t, domain.RoleCashier, 2)

	w := api.do("GET", "/api/sales/42", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":"85"`)

	assert.Equal(t, http.StatusNotFound, api.do("GET", "/api/sales/7", token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, api.do("GET", "/api/sales/abc", token, nil).Code)

	text := api.do("GET", "/api/sales/42/receipt", token, nil)
	assert.Equal(t, "text/plain; charset=utf-8", text.Header().Get("Content-Type"))
	assert.Contains(t, text.Body.String(), "TOTAL: $85.00")

	pdf := api.do("GET", "/api/sales/42/receipt.pdf", token, nil)
	assert.Equal(t, "application/pdf", pdf.Header().Get("Content-Type"))
	assert.Contains(t, pdf.Header().Get("Content-Disposition"), "venta_42.pdf")
	assert.True(t, len(pdf.Body.Bytes()) > 4 && string(pdf.Body.Bytes()[:5]) == "%PDF-")
}

func TestSaleHandler_DeleteIsAdministratorOnly(t *testing.T) {
	api := newTestAPI(t)

	cashier := api.loginAs(t, domain.RoleCashier, 2)
	assert.Equal(t, http.StatusForbidden, api.do("DELETE", "/api/sales/42", cashier, nil).Code)

	admin := api.loginAs(t, domain.RoleAdmin, 1)
	assert.Equal(t, http.StatusNoContent, api.do("DELETE", "/api/sales/42", admin, nil).Code)
}

func TestSaleHandler_RangeCoversWholeDays(t *testing.T) {
	api := newTestAPI(t)
	token := api.loginAs(t, domain.RoleAdmin, 1)

	w := api.do("GET", "/api/sales?from=2024-03-01&to=2024-03-02", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.True(t, api.reports.from.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, storeLoc)))
	assert.True(t, api.reports.to.Equal(time.Date(2024, 3, 2, 23, 59, 59, 999999999, storeLoc)))

	assert.Equal(t, http.StatusBadRequest, api.do("GET", "/api/sales?from=01/03/2024", token, nil).Code)
}
