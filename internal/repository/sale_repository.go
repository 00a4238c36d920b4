package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"pos-backoffice/internal/apperr"
	"pos-backoffice/internal/database"
	"pos-backoffice/internal/domain"
)

var (
	ErrSaleNotFound  = &apperr.Error{Kind: apperr.KindNotFound, Message: "sale not found"}
	ErrSaleImmutable = &apperr.Error{Kind: apperr.KindValidation, Message: "sales cannot be modified after checkout"}
	ErrUnknownUser   = &apperr.Error{Kind: apperr.KindNotFound, Message: "sale user not found", Err: apperr.ErrForeignKey}
)

// SaleRepository defines the interface for sale data access. Calendar days
// are those of the store's time zone.
type SaleRepository interface {
	Repository[domain.Sale, int64]
	FindByUser(ctx context.Context, userID int64) ([]*domain.Sale, error)
	FindByDateRange(ctx context.Context, from, to time.Time) ([]*domain.Sale, error)
	FindToday(ctx context.Context) ([]*domain.Sale, error)
	TotalForDay(ctx context.Context, day time.Time) (decimal.Decimal, error)
	WithTx(tx *sql.Tx) SaleRepository
}

type saleRepository struct {
	src database.Source
	loc *time.Location
	now func() time.Time
}

// NewSaleRepository creates a sale repository for a store in loc.
func NewSaleRepository(src database.Source, loc *time.Location) SaleRepository {
	if loc == nil {
		loc = time.Local
	}
	return &saleRepository{src: src, loc: loc, now: time.Now}
}

func (r *saleRepository) WithTx(tx *sql.Tx) SaleRepository {
	return &saleRepository{src: database.TxSource(tx), loc: r.loc, now: r.now}
}

const saleColumns = `id_venta, fecha, id_usuario, total`

// Insert stores the sale header. A zero Timestamp is set to the current
// time. Timestamps are kept at microsecond precision in the store zone.
func (r *saleRepository) Insert(ctx context.Context, sale *domain.Sale) (int64, error) {
	if err := domain.ValidateStruct("sale", sale); err != nil {
		return 0, err
	}
	if sale.Total.IsNegative() {
		return 0, apperr.Validation("invalid sale", apperr.FieldError{Field: "total", Message: "must not be negative"})
	}
	if sale.Total.GreaterThan(domain.MaxPrice) {
		return 0, apperr.Validation("invalid sale", apperr.FieldError{Field: "total", Message: "must be " + domain.MaxPrice.StringFixed(2) + " or less"})
	}

	if sale.Timestamp.IsZero() {
		sale.Timestamp = r.now()
	}
	sale.Timestamp = sale.Timestamp.Truncate(time.Microsecond).In(r.loc)

	q, err := r.src.Querier(ctx)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO venta (fecha, id_usuario, total)
		VALUES ($1, $2, $3)
		RETURNING id_venta
	`

	if err := q.QueryRowContext(ctx, query, sale.Timestamp, sale.UserID, sale.Total).Scan(&sale.ID); err != nil {
		err = apperr.FromSQL("failed to insert sale", err)
		if errors.Is(err, apperr.ErrForeignKey) {
			return 0, ErrUnknownUser
		}
		return 0, err
	}
	return sale.ID, nil
}

func (r *saleRepository) FindByID(ctx context.Context, id int64) (*domain.Sale, error) {
	q, err := r.src.Querier(ctx)
	if err != nil {
		return nil, err
	}

	sale, err := r.scanSale(q.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM venta WHERE id_venta = $1`, id))
	if err == sql.ErrNoRows {
		return nil, ErrSaleNotFound
	}
	if err != nil {
		return nil, apperr.FromSQL("failed to find sale by id", err)
	}
	return sale, nil
}

func (r *saleRepository) FindAll(ctx context.Context) ([]*domain.Sale, error) {
	return r.list(ctx, "failed to list sales", `
		SELECT `+saleColumns+`
		FROM venta
		ORDER BY fecha DESC, id_venta DESC
	`)
}

// Update always fails: a sale is immutable once committed.
func (r *saleRepository) Update(context.Context, *domain.Sale) (bool, error) {
	return false, ErrSaleImmutable
}

// Delete removes the sale and, by cascade, all of its lines.
func (r *saleRepository) Delete(ctx context.Context, id int64) (bool, error) {
	q, err := r.src.Querier(ctx)
	if err != nil {
		return false, err
	}

	res, err := q.ExecContext(ctx, `DELETE FROM venta WHERE id_venta = $1`, id)
	if err != nil {
		return false, apperr.FromSQL("failed to delete sale", err)
	}
	return changed(res, "sale delete")
}

func (r *saleRepository) FindByUser(ctx context.Context, userID int64) ([]*domain.Sale, error) {
	return r.list(ctx, "failed to find sales by user", `
		SELECT `+saleColumns+`
		FROM venta
		WHERE id_usuario = $1
		ORDER BY fecha DESC, id_venta DESC
	`, userID)
}

// FindByDateRange returns sales with from <= fecha <= to.
func (r *saleRepository) FindByDateRange(ctx context.Context, from, to time.Time) ([]*domain.Sale, error) {
	if from.After(to) {
		return nil, apperr.Validation("invalid date range", apperr.FieldError{Field: "from", Message: "must not be after to"})
	}
	return r.list(ctx, "failed to find sales by date range", `
		SELECT `+saleColumns+`
		FROM venta
		WHERE fecha BETWEEN $1 AND $2
		ORDER BY fecha DESC, id_venta DESC
	`, from, to)
}

func (r *saleRepository) FindToday(ctx context.Context) ([]*domain.Sale, error) {
	start, end := r.dayBounds(r.now())
	return r.list(ctx, "failed to find today's sales", `
		SELECT `+saleColumns+`
		FROM venta
		WHERE fecha >= $1 AND fecha < $2
		ORDER BY fecha DESC, id_venta DESC
	`, start, end)
}

// TotalForDay sums the totals of the sales on day's calendar date, zero
// when there are none.
func (r *saleRepository) TotalForDay(ctx context.Context, day time.Time) (decimal.Decimal, error) {
	q, err := r.src.Querier(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	start, end := r.dayBounds(day)
	var total decimal.Decimal
	err = q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total), 0)
		FROM venta
		WHERE fecha >= $1 AND fecha < $2
	`, start, end).Scan(&total)
	if err != nil {
		return decimal.Zero, apperr.FromSQL("failed to total sales for day", err)
	}
	return total, nil
}

// dayBounds returns [midnight, next midnight) of t's date in the store zone.
func (r *saleRepository) dayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.In(r.loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, r.loc)
	return start, start.AddDate(0, 0, 1)
}

func (r *saleRepository) list(ctx context.Context, op, query string, args ...any) ([]*domain.Sale, error) {
	q, err := r.src.Querier(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.FromSQL(op, err)
	}
	defer rows.Close()

	sales := []*domain.Sale{}
	for rows.Next() {
		sale, err := r.scanSale(rows)
		if err != nil {
			return nil, apperr.FromSQL("failed to scan sale", err)
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromSQL(op, err)
	}
	rows.Close()

	if err := loadSaleLines(ctx, q, sales); err != nil {
		return nil, err
	}
	return sales, nil
}

// loadSaleLines fills Lines of every sale, products and their categories
// resolved, with one query per level.
func loadSaleLines(ctx context.Context, q database.Querier, sales []*domain.Sale) error {
	if len(sales) == 0 {
		return nil
	}

	byID := make(map[int64]*domain.Sale, len(sales))
	ids := make([]int64, 0, len(sales))
	for _, s := range sales {
		byID[s.ID] = s
		ids = append(ids, s.ID)
	}

	lines, err := scanLinesWithProducts(ctx, q, "failed to load sale lines", `
		SELECT vp.id_venta, vp.cantidad, `+productColumns+`
		FROM venta_producto vp
		JOIN producto p ON p.id_producto = vp.id_producto
		WHERE vp.id_venta = ANY($1)
		ORDER BY vp.id_venta, p.nombre, p.id_producto
	`, ids)
	if err != nil {
		return err
	}

	products := make([]*domain.Product, len(lines))
	for i, line := range lines {
		products[i] = line.Product
	}
	if err := loadCategories(ctx, q, products); err != nil {
		return err
	}

	for _, line := range lines {
		sale := byID[line.SaleID]
		sale.Lines = append(sale.Lines, *line)
	}
	return nil
}

func (r *saleRepository) scanSale(row rowScanner) (*domain.Sale, error) {
	s := &domain.Sale{}
	if err := row.Scan(&s.ID, &s.Timestamp, &s.UserID, &s.Total); err != nil {
		return nil, err
	}
	s.Timestamp = s.Timestamp.In(r.loc)
	return s, nil
}
