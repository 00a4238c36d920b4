package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pos-backoffice/internal/apperr"
	"pos-backoffice/internal/auth"
	"pos-backoffice/internal/domain"
	"pos-backoffice/internal/middleware"
	"pos-backoffice/internal/repository"
	"pos-backoffice/internal/service"
	"pos-backoffice/internal/session"
)

var storeLoc = time.FixedZone("CST", -6*60*60)

// Each fake embeds its service interface, so an unexpected call panics.

type fakeUserService struct {
	service.UserService
	sessions  *session.Context
	tokens    *session.TokenIssuer
	passwords map[string]string
	accounts  map[string]*domain.User
	created   *domain.User
}

func (f *fakeUserService) Login(_ context.Context, email, password string) (*session.Session, string, error) {
	user, ok := f.accounts[email]
	if !ok || f.passwords[email] != password {
		return nil, "", auth.ErrInvalidCredentials
	}
	sess := f.sessions.Login(user)
	token, err := f.tokens.Issue(sess)
	return sess, token, err
}

func (f *fakeUserService) Logout(_ context.Context, id uuid.UUID) bool {
	return f.sessions.End(id)
}

func (f *fakeUserService) Register(_ context.Context, user *domain.User) (*domain.User, error) {
	user.ID = 10
	user.Role = domain.RoleCashier
	user.Password = ""
	user.PasswordHash = "$2a$10$hidden"
	f.created = user
	return user, nil
}

func (f *fakeUserService) DeleteUser(_ context.Context, id int64) error {
	if sess, ok := f.sessions.Current(); ok && sess.User.ID == id {
		return service.ErrCannotDeleteSelf
	}
	return nil
}

type fakeCatalogService struct {
	service.CatalogService
	updated *domain.Product
	lo, hi  decimal.Decimal
}

func (f *fakeCatalogService) UpdateProduct(_ context.Context, p *domain.Product) (*domain.Product, error) {
	f.updated = p
	return p, nil
}

func (f *fakeCatalogService) ProductsByPriceRange(_ context.Context, lo, hi decimal.Decimal) ([]*domain.Product, error) {
	f.lo, f.hi = lo, hi
	return []*domain.Product{}, nil
}

func (f *fakeCatalogService) DeleteProduct(_ context.Context, id int64) error {
	return repository.ErrProductHasSales
}

type fakeSaleService struct {
	service.SaleService
	items []domain.CartItem
}

func (f *fakeSaleService) Checkout(_ context.Context, items []domain.CartItem) (int64, error) {
	if len(items) == 0 {
		return 0, service.ErrEmptyCart
	}
	f.items = items
	return 42, nil
}

func (f *fakeSaleService) GetSale(_ context.Context, id int64) (*domain.Sale, error) {
	if id != 42 {
		return nil, repository.ErrSaleNotFound
	}
	return &domain.Sale{ID: 42, UserID: 2, Total: decimal.RequireFromString("85.00")}, nil
}

func (f *fakeSaleService) Receipt(_ context.Context, id int64) (string, error) {
	return "CAFETERIA\nTOTAL: $85.00\n", nil
}

func (f *fakeSaleService) ReceiptPDF(_ context.Context, id int64, w io.Writer) error {
	_, err := w.Write([]byte("%PDF-1.3\n"))
	return err
}

func (f *fakeSaleService) DeleteSale(_ context.Context, id int64) error { return nil }

type fakeReportService struct {
	service.ReportService
	day      time.Time
	from, to time.Time
	limit    int
}

func (f *fakeReportService) DailyTotal(_ context.Context, day time.Time) (decimal.Decimal, error) {
	f.day = day
	return decimal.RequireFromString("85"), nil
}

func (f *fakeReportService) SalesByRange(_ context.Context, from, to time.Time) ([]*domain.Sale, error) {
	f.from, f.to = from, to
	return []*domain.Sale{}, nil
}

func (f *fakeReportService) TopSellers(_ context.Context, limit int) ([]*domain.ProductSales, error) {
	if limit <= 0 {
		return nil, apperr.Validation("invalid limit", apperr.FieldError{Field: "limit", Message: "must be positive"})
	}
	f.limit = limit
	return []*domain.ProductSales{}, nil
}

type testAPI struct {
	router   http.Handler
	sessions *session.Context
	tokens   *session.TokenIssuer
	users    *fakeUserService
	catalog  *fakeCatalogService
	sales    *fakeSaleService
	reports  *fakeReportService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := zap.NewNop()

	api := &testAPI{
		sessions: session.New(),
		tokens:   session.NewTokenIssuer("test-secret", time.Hour),
		catalog:  &fakeCatalogService{},
		sales:    &fakeSaleService{},
		reports:  &fakeReportService{},
	}
	api.users = &fakeUserService{
		sessions:  api.sessions,
		tokens:    api.tokens,
		passwords: map[string]string{"cajero@pos.local": "cajero123"},
		accounts: map[string]*domain.User{
			"cajero@pos.local": {ID: 2, Role: domain.RoleCashier, GivenNames: "Cajero", Email: "cajero@pos.local"},
		},
	}

	routes := Routes{Auth: middleware.AuthMiddleware(api.tokens, api.sessions, logger)}
	r := chi.NewRouter()
	NewSessionHandler(api.users, logger).RegisterRoutes(r, routes)
	NewUserHandler(api.users, logger).RegisterRoutes(r, routes)
	NewCatalogHandler(api.catalog, logger).RegisterRoutes(r, routes)
	NewSaleHandler(api.sales, api.reports, storeLoc, logger).RegisterRoutes(r, routes)
	NewReportHandler(api.reports, storeLoc, logger).RegisterRoutes(r, routes)
	api.router = r
	return api
}

// loginAs replaces the process session and returns a token for it.
func (a *testAPI) loginAs(t *testing.T, role domain.Role, id int64) string {
	t.Helper()
	token, err := a.tokens.Issue(a.sessions.Login(&domain.User{ID: id, Role: role}))
	require.NoError(t, err)
	return token
}

func (a *testAPI) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorDetail {
	t.Helper()
	var resp middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}
