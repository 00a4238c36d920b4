package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pos-backoffice/internal/apperr"
	"pos-backoffice/internal/auth"
	"pos-backoffice/internal/domain"
	"pos-backoffice/internal/repository"
	"pos-backoffice/internal/session"
)

type saleFixture struct {
	tx       *stubTx
	sales    *mockSaleRepository
	lines    *mockSaleLineRepository
	users    *mockUserRepository
	sessions *session.Context
	svc      *saleService
}

func newSaleFixture(role domain.Role) *saleFixture {
	products := map[int64]*domain.Product{
		1: {ID: 1, Name: "Café Americano", Price: decimal.RequireFromString("25.00")},
		2: {ID: 2, Name: "Cappuccino", Price: decimal.RequireFromString("35.00")},
		3: {ID: 3, Name: "Cheesecake", Price: decimal.RequireFromString("55.50")},
	}
	prices := make(map[int64]decimal.Decimal)
	for id, p := range products {
		prices[id] = p.Price
	}

	f := &saleFixture{
		tx:       &stubTx{},
		sales:    newMockSaleRepository(),
		lines:    &mockSaleLineRepository{products: products},
		users:    newMockUserRepository(),
		sessions: session.New(),
	}
	cashier := newUser("cajero@pos.local", "cajero123", role)
	_, _ = f.users.Insert(context.Background(), cashier)
	if role != "" {
		f.sessions.Login(cashier)
	}

	f.svc = NewSaleService(
		f.tx,
		SaleRepositories{
			Sales:    f.sales,
			Lines:    f.lines,
			Products: &mockProductRepository{prices: prices},
			Users:    f.users,
		},
		f.sessions,
		SaleOptions{StoreName: "Cobra Te"},
		nil,
		zap.NewNop(),
	).(*saleService)
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func TestCheckout_TotalsLiveCatalogPrices(t *testing.T) {
	f := newSaleFixture(domain.RoleCashier)

	id, err := f.svc.Checkout(context.Background(), []domain.CartItem{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 1},
	})
	require.NoError(t, err)

	sale := f.sales.sales[id]
	require.NotNil(t, sale)
	assert.True(t, sale.Total.Equal(decimal.RequireFromString("85.00")), "got %s", sale.Total)
	user, _ := f.sessions.CurrentUser()
	assert.Equal(t, user.ID, sale.UserID)
	assert.True(t, sale.Timestamp.Equal(fixedNow))
	assert.Len(t, f.lines.lines, 2)
	assert.Equal(t, 1, f.tx.calls)
}

func TestCheckout_MergesRepeatedProducts(t *testing.T) {
	f := newSaleFixture(domain.RoleAdmin)

	id, err := f.svc.Checkout(context.Background(), []domain.CartItem{
		{ProductID: 1, Quantity: 1},
		{ProductID: 1, Quantity: 2},
	})
	require.NoError(t, err)

	require.Len(t, f.lines.lines, 1)
	assert.Equal(t, 3, f.lines.lines[0].Quantity)
	assert.True(t, f.sales.sales[id].Total.Equal(decimal.RequireFromString("75.00")))
}

func TestCheckout_RejectsBeforeAnyWrite(t *testing.T) {
	tests := []struct {
		name  string
		role  domain.Role
		items []domain.CartItem
		want  error
	}{
		{"no session", "", []domain.CartItem{{ProductID: 1, Quantity: 1}}, auth.ErrNotAuthenticated},
		{"empty cart", domain.RoleCashier, nil, ErrEmptyCart},
		{"zero quantity", domain.RoleCashier, []domain.CartItem{{ProductID: 1, Quantity: 0}}, apperr.ErrValidation},
		{"invalid product id", domain.RoleCashier, []domain.CartItem{{ProductID: 0, Quantity: 1}}, apperr.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSaleFixture(tt.role)
			_, err := f.svc.Checkout(context.Background(), tt.items)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, f.tx.calls, "no transaction is opened")
			assert.Empty(t, f.sales.sales)
		})
	}
}

func TestCheckout_MissingProductIsNotFound(t *testing.T) {
	f := newSaleFixture(domain.RoleCashier)

	_, err := f.svc.Checkout(context.Background(), []domain.CartItem{
		{ProductID: 1, Quantity: 1},
		{ProductID: 77, Quantity: 1},
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, 1, f.tx.rolledBack)
	assert.Empty(t, f.sales.sales)
}

func TestCheckout_LineFailureRollsBack(t *testing.T) {
	f := newSaleFixture(domain.RoleCashier)
	f.lines.failOn = 2

	_, err := f.svc.Checkout(context.Background(), []domain.CartItem{
		{ProductID: 1, Quantity: 1},
		{ProductID: 2, Quantity: 1},
	})
	assert.ErrorIs(t, err, apperr.ErrQuery)
	assert.Equal(t, 1, f.tx.rolledBack)
}

func TestProperty_CheckoutTotalIsSumOfLineSubtotals(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("total equals Σ quantity × price", prop.ForAll(
		func(quantities []int) bool {
			f := newSaleFixture(domain.RoleCashier)
			items := make([]domain.CartItem, len(quantities))
			for i, q := range quantities {
				items[i] = domain.CartItem{ProductID: int64(i%3 + 1), Quantity: q}
			}

			id, err := f.svc.Checkout(context.Background(), items)
			if err != nil {
				return false
			}

			sale, err := f.svc.GetSale(context.Background(), id)
			if err != nil {
				return false
			}
			sum := decimal.Zero
			units := 0
			for i := range sale.Lines {
				sum = sum.Add(sale.Lines[i].Subtotal())
				units += sale.Lines[i].Quantity
			}
			want := 0
			for _, q := range quantities {
				want += q
			}
			return sale.Total.Equal(sum) && units == want && len(sale.Lines) <= 3
		},
		gen.SliceOfN(6, gen.IntRange(1, 50)).SuchThat(func(v []int) bool { return len(v) > 0 }),
	))

	properties.TestingRun(t)
}

func TestGetSaleReceiptAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newSaleFixture(domain.RoleCashier)

	id, err := f.svc.Checkout(ctx, []domain.CartItem{{ProductID: 3, Quantity: 2}})
	require.NoError(t, err)

	sale, err := f.svc.GetSale(ctx, id)
	require.NoError(t, err)
	require.Len(t, sale.Lines, 1)
	assert.Equal(t, "Cheesecake", sale.Lines[0].Product.Name)

	text, err := f.svc.Receipt(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, text, "COBRA TE")
	assert.Contains(t, text, "Cajero: Ana Pérez")
	assert.Contains(t, text, "TOTAL: $111.00")

	var pdf bytes.Buffer
	require.NoError(t, f.svc.ReceiptPDF(ctx, id, &pdf))
	assert.True(t, bytes.HasPrefix(pdf.Bytes(), []byte("%PDF-")))

	_, err = f.svc.GetSale(ctx, id+1)
	assert.ErrorIs(t, err, repository.ErrSaleNotFound)

	assert.ErrorIs(t, f.svc.DeleteSale(ctx, id), auth.ErrForbidden, "cashiers cannot delete sales")

	f.sessions.Login(&domain.User{ID: 50, Role: domain.RoleAdmin})
	require.NoError(t, f.svc.DeleteSale(ctx, id))
	assert.ErrorIs(t, f.svc.DeleteSale(ctx, id), repository.ErrSaleNotFound)
}

func TestCheckout_ArchivesReceipt(t *testing.T) {
	f := newSaleFixture(domain.RoleCashier)
	f.svc.opts.ReceiptDir = t.TempDir()

	id, err := f.svc.Checkout(context.Background(), []domain.CartItem{{ProductID: 1, Quantity: 1}})
	require.NoError(t, err)
	assert.FileExists(t, f.svc.opts.ReceiptDir+"/venta_"+decimal.NewFromInt(id).String()+".pdf")
}
