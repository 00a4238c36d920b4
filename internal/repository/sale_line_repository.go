package repository

import (
	"context"
	"database/sql"
	"errors"

	"pos-backoffice/internal/apperr"
	"pos-backoffice/internal/database"
	"pos-backoffice/internal/domain"
)

var (
	ErrSaleLineNotFound      = &apperr.Error{Kind: apperr.KindNotFound, Message: "sale line not found"}
	ErrSaleOrProductNotFound = &apperr.Error{Kind: apperr.KindNotFound, Message: "sale or product not found", Err: apperr.ErrForeignKey}
)

// SaleLineRepository defines the interface for sale line data access.
// Lines are keyed by (sale, product); inserting an existing key adds to its
// quantity.
type SaleLineRepository interface {
	Repository[domain.SaleLine, domain.SaleLineKey]
	UpdateQuantity(ctx context.Context, key domain.SaleLineKey, quantity int) (bool, error)
	DeleteBySale(ctx context.Context, saleID int64) (int64, error)
	FindBySale(ctx context.Context, saleID int64) ([]*domain.SaleLine, error)
	FindByProduct(ctx context.Context, productID int64) ([]*domain.SaleLine, error)
	TopSellers(ctx context.Context, limit int) ([]*domain.ProductSales, error)
	TotalSold(ctx context.Context, productID int64) (int64, error)
	WithTx(tx *sql.Tx) SaleLineRepository
}

type saleLineRepository struct {
	src database.Source
}

// NewSaleLineRepository creates a new instance of SaleLineRepository
func NewSaleLineRepository(src database.Source) SaleLineRepository {
	return &saleLineRepository{src: src}
}

func (r *saleLineRepository) WithTx(tx *sql.Tx) SaleLineRepository {
	return &saleLineRepository{src: database.TxSource(tx)}
}

// Insert upserts line. When the key already exists the quantities are
// added; line.Quantity is set to the stored total. A merged total past the
// column range is a validation error.
func (r *saleLineRepository) Insert(ctx context.Context, line *domain.SaleLine) (domain.SaleLineKey, error) {
	if err := domain.ValidateStruct("sale line", line); err != nil {
		return domain.SaleLineKey{}, err
	}
	q, err := r.src.Querier(ctx)
	if err != nil {
		return domain.SaleLineKey{}, err
	}

	query := `
		INSERT INTO venta_producto (id_venta, id_producto, cantidad)
		VALUES ($1, $2, $3)
		ON CONFLICT (id_venta, id_producto)
		DO UPDATE SET cantidad = venta_producto.cantidad + EXCLUDED.cantidad
		RETURNING cantidad
	`

	if err := q.QueryRowContext(ctx, query, line.SaleID, line.ProductID, line.Quantity).Scan(&line.Quantity); err != nil {
		err = apperr.FromSQL("failed to insert sale line", err)
		if errors.Is(err, apperr.ErrForeignKey) {
			return domain.SaleLineKey{}, ErrSaleOrProductNotFound
		}
		return domain.SaleLineKey{}, err
	}
	return line.Key(), nil
}

func (r *saleLineRepository) FindByID(ctx context.Context, key domain.SaleLineKey) (*domain.SaleLine, error) {
	q, err := r.src.Querier(ctx)
	if err != nil {
		return nil, err
	}

	line := &domain.SaleLine{}
	err = q.QueryRowContext(ctx, `
		SELECT id_venta, id_producto, cantidad
		FROM venta_producto
		WHERE id_venta = $1 AND id_producto = $2
	`, key.SaleID, key.ProductID).Scan(&line.SaleID, &line.ProductID, &line.Quantity)
	if err == sql.ErrNoRows {
		return nil, ErrSaleLineNotFound
	}
	if err != nil {
		return nil, apperr.FromSQL("failed to find sale line", err)
	}
	return line, nil
}

func (r *saleLineRepository) FindAll(ctx context.Context) ([]*domain.SaleLine, error) {
	q, err := r.src.Querier(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id_venta, id_producto, cantidad
		FROM venta_producto
		ORDER BY id_venta, id_producto
	`)
	if err != nil {
		return nil, apperr.FromSQL("failed to list sale lines", err)
	}
	defer rows.Close()

	lines := []*domain.SaleLine{}
	for rows.Next() {
		line := &domain.SaleLine{}
		if err := rows.Scan(&line.SaleID, &line.ProductID, &line.Quantity); err != nil {
			return nil, apperr.FromSQL("failed to scan sale line", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromSQL("failed to list sale lines", err)
	}
	return lines, nil
}

// Update sets the quantity of an existing line.
func (r *saleLineRepository) Update(ctx context.Context, line *domain.SaleLine) (bool, error) {
	if err := domain.ValidateStruct("sale line", line); err != nil {
		return false, err
	}
	return r.UpdateQuantity(ctx, line.Key(), line.Quantity)
}

func (r *saleLineRepository) UpdateQuantity(ctx context.Context, key domain.SaleLineKey, quantity int) (bool, error) {
	if quantity < 1 {
		return false, apperr.Validation("invalid sale line", apperr.FieldError{Field: "quantity", Message: "Value must be greater than or equal to 1"})
	}
	if quantity > domain.MaxQuantity {
		return false, apperr.Validation("invalid sale line", apperr.FieldError{Field: "quantity", Message: "Value must be less than or equal to 2147483647"})
	}
	q, err := r.src.Querier(ctx)
	if err != nil {
		return false, err
	}

	res, err := q.ExecContext(ctx, `
		UPDATE venta_producto
		SET cantidad = $3
		WHERE id_venta = $1 AND id_producto = $2
	`, key.SaleID, key.ProductID, quantity)
	if err != nil {
		return false, apperr.FromSQL("failed to update sale line", err)
	}
	return changed(res, "sale line update")
}

func (r *saleLineRepository) Delete(ctx context.Context, key domain.SaleLineKey) (bool, error) {
	q, err := r.src.Querier(ctx)
	if err != nil {
		return false, err
	}

	res, err := q.ExecContext(ctx, `
		DELETE FROM venta_producto
		WHERE id_venta = $1 AND id_producto = $2
	`, key.SaleID, key.ProductID)
	if err != nil {
		return false, apperr.FromSQL("failed to delete sale line", err)
	}
	return changed(res, "sale line delete")
}

// DeleteBySale removes every line of a sale and returns how many there were.
func (r *saleLineRepository) DeleteBySale(ctx context.Context, saleID int64) (int64, error) {
	q, err := r.src.Querier(ctx)
	if err != nil {
		return 0, err
	}

	res, err := q.ExecContext(ctx, `DELETE FROM venta_producto WHERE id_venta = $1`, saleID)
	if err != nil {
		return 0, apperr.FromSQL("failed to delete sale lines", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Query("failed to read deleted sale lines", err)
	}
	return n, nil
}

// FindBySale returns the lines of a sale with their products resolved.
func (r *saleLineRepository) FindBySale(ctx context.Context, saleID int64) ([]*domain.SaleLine, error) {
	return r.listWithProducts(ctx, "failed to find lines of sale", `
		SELECT vp.id_venta, vp.cantidad, `+productColumns+`
		FROM venta_producto vp
		JOIN producto p ON p.id_producto = vp.id_producto
		WHERE vp.id_venta = $1
		ORDER BY p.nombre, p.id_producto
	`, saleID)
}

// FindByProduct returns every line that sold productID, newest sale first.
func (r *saleLineRepository) FindByProduct(ctx context.Context, productID int64) ([]*domain.SaleLine, error) {
	return r.listWithProducts(ctx, "failed to find sales of product", `
		SELECT vp.id_venta, vp.cantidad, `+productColumns+`
		FROM venta_producto vp
		JOIN producto p ON p.id_producto = vp.id_producto
		JOIN venta v ON v.id_venta = vp.id_venta
		WHERE vp.id_producto = $1
		ORDER BY v.fecha DESC, vp.id_venta DESC
	`, productID)
}

// TopSellers returns up to limit products ordered by total quantity sold.
func (r *saleLineRepository) TopSellers(ctx context.Context, limit int) ([]*domain.ProductSales, error) {
	if limit < 1 {
		return nil, apperr.Validation("invalid limit", apperr.FieldError{Field: "limit", Message: "Value must be greater than or equal to 1"})
	}
	q, err := r.src.Querier(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT `+productColumns+`, SUM(vp.cantidad) AS vendidos
		FROM venta_producto vp
		JOIN producto p ON p.id_producto = vp.id_producto
		GROUP BY p.id_producto
		ORDER BY vendidos DESC, p.nombre, p.id_producto
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, apperr.FromSQL("failed to rank products", err)
	}
	defer rows.Close()

	ranking := []*domain.ProductSales{}
	for rows.Next() {
		entry := &domain.ProductSales{Product: domain.Product{Categories: []domain.Category{}}}
		p := &entry.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Size, &p.Price, &entry.Quantity); err != nil {
			return nil, apperr.FromSQL("failed to scan product ranking", err)
		}
		ranking = append(ranking, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromSQL("failed to rank products", err)
	}
	rows.Close()

	products := make([]*domain.Product, len(ranking))
	for i, entry := range ranking {
		products[i] = &entry.Product
	}
	if err := loadCategories(ctx, q, products); err != nil {
		return nil, err
	}
	return ranking, nil
}

// TotalSold is the quantity of productID across all sales, zero if never sold.
func (r *saleLineRepository) TotalSold(ctx context.Context, productID int64) (int64, error) {
	q, err := r.src.Querier(ctx)
	if err != nil {
		return 0, err
	}

	var total int64
	err = q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(cantidad), 0)
		FROM venta_producto
		WHERE id_producto = $1
	`, productID).Scan(&total)
	if err != nil {
		return 0, apperr.FromSQL("failed to total product sales", err)
	}
	return total, nil
}

func (r *saleLineRepository) listWithProducts(ctx context.Context, op, query string, args ...any) ([]*domain.SaleLine, error) {
	q, err := r.src.Querier(ctx)
	if err != nil {
		return nil, err
	}

	lines, err := scanLinesWithProducts(ctx, q, op, query, args...)
	if err != nil {
		return nil, err
	}

	products := make([]*domain.Product, len(lines))
	for i, line := range lines {
		products[i] = line.Product
	}
	if err := loadCategories(ctx, q, products); err != nil {
		return nil, err
	}
	return lines, nil
}

func scanLinesWithProducts(ctx context.Context, q database.Querier, op, query string, args ...any) ([]*domain.SaleLine, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.FromSQL(op, err)
	}
	defer rows.Close()

	lines := []*domain.SaleLine{}
	for rows.Next() {
		line := &domain.SaleLine{Product: &domain.Product{Categories: []domain.Category{}}}
		p := line.Product
		if err := rows.Scan(&line.SaleID, &line.Quantity, &p.ID, &p.Name, &p.Description, &p.Size, &p.Price); err != nil {
			return nil, apperr.FromSQL("failed to scan sale line", err)
		}
		line.ProductID = p.ID
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromSQL(op, err)
	}
	return lines, nil
}
