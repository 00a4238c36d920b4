package repository

import (
	"context"
	"testing"

	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-backoffice/internal/apperr"
	"pos-backoffice/internal/domain"
)

func insertSale(t *testing.T, userID int64, total string) *domain.Sale {
	t.Helper()
	s := &domain.Sale{UserID: userID, Total: price(total)}
	if _, err := NewSaleRepository(testManager, storeLoc).Insert(context.Background(), s); err != nil {
		t.Fatalf("failed to insert sale: %v", err)
	}
	return s
}

// Inserting the same (sale, product) key repeatedly keeps one row whose
// quantity is the sum of every insert.
func TestProperty_SaleLineUpsertMerges(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	repo := NewSaleLineRepository(testManager)
	u := mustInsertUser(t, "cajero@pos.local", domain.RoleCashier)
	p := mustInsertProduct(t, "Café Americano", "25.00")

	properties := dbProperties()
	properties.Property("upsert accumulates quantities", prop.ForAll(
		func(quantities []int) bool {
			sale := insertSale(t, u.ID, "0")
			sum := 0
			for _, q := range quantities {
				line := &domain.SaleLine{SaleID: sale.ID, ProductID: p.ID, Quantity: q}
				key, err := repo.Insert(ctx, line)
				if err != nil {
					return false
				}
				sum += q
				if key != (domain.SaleLineKey{SaleID: sale.ID, ProductID: p.ID}) || line.Quantity != sum {
					return false
				}
			}

			if countRows(t, `SELECT COUNT(*) FROM venta_producto WHERE id_venta = $1`, sale.ID) != 1 {
				return false
			}
			got, err := repo.FindByID(ctx, domain.SaleLineKey{SaleID: sale.ID, ProductID: p.ID})
			return err == nil && got.Quantity == sum
		},
		gen.SliceOfN(3, gen.IntRange(1, 20)).SuchThat(func(v []int) bool { return len(v) > 0 }),
	))

	properties.TestingRun(t)
}

func TestSaleLineRepository_RejectsInvalidLines(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	repo := NewSaleLineRepository(testManager)
	u := mustInsertUser(t, "cajero@pos.local", domain.RoleCashier)
	sale := insertSale(t, u.ID, "0")

	_, err := repo.Insert(ctx, &domain.SaleLine{SaleID: sale.ID, ProductID: 1, Quantity: 0})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = repo.Insert(ctx, &domain.SaleLine{SaleID: sale.ID, ProductID: 999, Quantity: 1})
	assert.ErrorIs(t, err, ErrSaleOrProductNotFound)

	_, err = repo.Insert(ctx, &domain.SaleLine{SaleID: sale.ID, ProductID: 1, Quantity: 3_000_000_000})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSaleLineRepository_MergedQuantityOverflowIsValidationError(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	repo := NewSaleLineRepository(testManager)
	u := mustInsertUser(t, "cajero@pos.local", domain.RoleCashier)
	p := mustInsertProduct(t, "Café Americano", "0.00")
	sale := insertSale(t, u.ID, "0")

	_, err := repo.Insert(ctx, &domain.SaleLine{SaleID: sale.ID, ProductID: p.ID, Quantity: domain.MaxQuantity})
	require.NoError(t, err)

	_, err = repo.Insert(ctx, &domain.SaleLine{SaleID: sale.ID, ProductID: p.ID, Quantity: 1})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.ErrorIs(t, err, apperr.ErrOutOfRange)

	got, err := repo.FindByID(ctx, domain.SaleLineKey{SaleID: sale.ID, ProductID: p.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.MaxQuantity, got.Quantity)

	_, err = repo.UpdateQuantity(ctx, got.Key(), domain.MaxQuantity+1)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSaleLineRepository_FindBySaleResolvesProducts(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	repo := NewSaleLineRepository(testManager)
	u := mustInsertUser(t, "cajero@pos.local", domain.RoleCashier)
	hot := mustInsertCategory(t, "Bebidas Calientes")
	coffee := mustInsertProduct(t, "Café Americano", "25.00")
	latte := mustInsertProduct(t, "Cappuccino", "35.00")
	require.NoError(t, NewProductRepository(testManager).AssignCategory(ctx, coffee.ID, hot.ID))

	sale := insertSale(t, u.ID, "85.00")
	_, err := repo.Insert(ctx, &domain.SaleLine{SaleID: sale.ID, ProductID: coffee.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = repo.Insert(ctx, &domain.SaleLine{SaleID: sale.ID, ProductID: latte.ID, Quantity: 1})
	require.NoError(t, err)

	lines, err := repo.FindBySale(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, coffee.ID, lines[0].ProductID)
	assert.Equal(t, 2, lines[0].Quantity)
	require.NotNil(t, lines[0].Product)
	assert.Equal(t, "Café Americano", lines[0].Product.Name)
	assert.Equal(t, []domain.Category{*hot}, lines[0].Product.Categories)
	assert.True(t, lines[0].Subtotal().Equal(price("50.00")))
	assert.Empty(t, lines[1].Product.Categories)
}

func TestSaleLineRepository_RankingAndTotals(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	repo := NewSaleLineRepository(testManager)
	u := mustInsertUser(t, "cajero@pos.local", domain.RoleCashier)
	coffee := mustInsertProduct(t, "Café Americano", "25.00")
	latte := mustInsertProduct(t, "Cappuccino", "35.00")
	cake := mustInsertProduct(t, "Cheesecake", "55.00")
	mustInsertProduct(t, "Croissant", "20.00")

	first := insertSale(t, u.ID, "0")
	second := insertSale(t, u.ID, "0")
	for _, l := range []*domain.SaleLine{
		{SaleID: first.ID, ProductID: coffee.ID, Quantity: 2},
		{SaleID: first.ID, ProductID: latte.ID, Quantity: 5},
		{SaleID: second.ID, ProductID: coffee.ID, Quantity: 4},
		{SaleID: second.ID, ProductID: cake.ID, Quantity: 1},
	} {
		_, err := repo.Insert(ctx, l)
		require.NoError(t, err)
	}

	top, err := repo.TopSellers(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, coffee.ID, top[0].Product.ID)
	assert.EqualValues(t, 6, top[0].Quantity)
	assert.Equal(t, latte.ID, top[1].Product.ID)
	assert.NotNil(t, top[0].Product.Categories)

	_, err = repo.TopSellers(ctx, 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	sold, err := repo.TotalSold(ctx, coffee.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 6, sold)

	sold, err = repo.TotalSold(ctx, coffee.ID+1000)
	require.NoError(t, err)
	assert.Zero(t, sold)

	withCoffee, err := repo.FindByProduct(ctx, coffee.ID)
	require.NoError(t, err)
	assert.Len(t, withCoffee, 2)

	ok, err := repo.UpdateQuantity(ctx, domain.SaleLineKey{SaleID: first.ID, ProductID: latte.ID}, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Delete(ctx, domain.SaleLineKey{SaleID: second.ID, ProductID: cake.ID})
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := repo.DeleteBySale(ctx, first.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, second.ID, all[0].SaleID)
}
