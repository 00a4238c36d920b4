package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"pos-backoffice/internal/apperr"
	"pos-backoffice/internal/database"
	"pos-backoffice/internal/domain"
)

var (
	ErrProductNotFound           = &apperr.Error{Kind: apperr.KindNotFound, Message: "product not found"}
	ErrProductOrCategoryNotFound = &apperr.Error{Kind: apperr.KindNotFound, Message: "product or category not found"}
	ErrProductHasSales           = &apperr.Error{Kind: apperr.KindQuery, Message: "product is referenced by recorded sales", Err: apperr.ErrForeignKey}
	ErrInvalidPriceRange         = &apperr.Error{Kind: apperr.KindValidation, Message: "minimum price must not exceed maximum price"}
)

// ProductRepository defines the interface for product data access.
// Every product it returns carries its current categories.
type ProductRepository interface {
	Repository[domain.Product, int64]
	SearchByName(ctx context.Context, name string) ([]*domain.Product, error)
	FindByPriceRange(ctx context.Context, min, max decimal.Decimal) ([]*domain.Product, error)
	FindByCategory(ctx context.Context, categoryID int64) ([]*domain.Product, error)
	AssignCategory(ctx context.Context, productID, categoryID int64) error
	UnassignCategory(ctx context.Context, productID, categoryID int64) (bool, error)
	PricesByID(ctx context.Context, ids []int64) (map[int64]decimal.Decimal, error)
	WithTx(tx *sql.Tx) ProductRepository
}

type productRepository struct {
	src database.Source
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(src database.Source) ProductRepository {
	return &productRepository{src: src}
}

func (r *productRepository) WithTx(tx *sql.Tx) ProductRepository {
	return &productRepository{src: database.TxSource(tx)}
}

const productColumns = `p.id_producto, p.nombre, p.descripcion, COALESCE(p.tamano, ''), p.precio`

// Insert stores the product together with assignments to the ids in
// product.Categories, in one statement. Categories is then reloaded from the
// store, so duplicates collapse and names are filled in.
func (r *productRepository) Insert(ctx context.Context, product *domain.Product) (int64, error) {
	if err := product.Validate(); err != nil {
		return 0, err
	}
	q, err := r.src.Querier(ctx)
	if err != nil {
		return 0, err
	}

	categoryIDs := make([]int64, 0, len(product.Categories))
	for _, c := range product.Categories {
		categoryIDs = append(categoryIDs, c.ID)
	}

	query := `
		WITH p AS (
			INSERT INTO producto (nombre, descripcion, tamano, precio)
			VALUES ($1, $2, $3, $4)
			RETURNING id_producto
		), links AS (
			INSERT INTO producto_categoria (id_producto, id_categoria)
			SELECT DISTINCT p.id_producto, c.id FROM p, unnest($5::bigint[]) AS c(id)
			ON CONFLICT DO NOTHING
		)
		SELECT id_producto FROM p
	`

	err = q.QueryRowContext(ctx, query,
		product.Name,
		product.Description,
		nullable(product.Size),
		product.Price,
		categoryIDs,
	).Scan(&product.ID)
	if err != nil {
		err = apperr.FromSQL("failed to insert product", err)
		if errors.Is(err, apperr.ErrForeignKey) {
			return 0, ErrProductOrCategoryNotFound
		}
		return 0, err
	}

	product.Categories = []domain.Category{}
	if len(categoryIDs) > 0 {
		if err := loadCategories(ctx, q, []*domain.Product{product}); err != nil {
			return 0, err
		}
	}
	return product.ID, nil
}

func (r *productRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	products, err := r.list(ctx, "failed to find product by id", `
		SELECT `+productColumns+`
		FROM producto p
		WHERE p.id_producto = $1
	`, id)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, ErrProductNotFound
	}
	return products[0], nil
}

func (r *productRepository) FindAll(ctx context.Context) ([]*domain.Product, error) {
	return r.list(ctx, "failed to list products", `
		SELECT `+productColumns+`
		FROM producto p
		ORDER BY p.nombre, p.id_producto
	`)
}

// SearchByName matches name anywhere in the product name, ignoring case.
func (r *productRepository) SearchByName(ctx context.Context, name string) ([]*domain.Product, error) {
	return r.list(ctx, "failed to search products", `
		SELECT `+productColumns+`
		FROM producto p
		WHERE p.nombre ILIKE $1
		ORDER BY p.nombre, p.id_producto
	`, containsPattern(name))
}

// FindByPriceRange returns products priced within [min, max], cheapest first.
func (r *productRepository) FindByPriceRange(ctx context.Context, min, max decimal.Decimal) ([]*domain.Product, error) {
	if min.GreaterThan(max) {
		return nil, ErrInvalidPriceRange
	}
	return r.list(ctx, "failed to find products by price range", `
		SELECT `+productColumns+`
		FROM producto p
		WHERE p.precio BETWEEN $1 AND $2
		ORDER BY p.precio, p.nombre, p.id_producto
	`, min, max)
}

func (r *productRepository) FindByCategory(ctx context.Context, categoryID int64) ([]*domain.Product, error) {
	return r.list(ctx, "failed to find products by category", `
		SELECT `+productColumns+`
		FROM producto p
		JOIN producto_categoria pc ON pc.id_producto = p.id_producto
		WHERE pc.id_categoria = $1
		ORDER BY p.nombre, p.id_producto
	`, categoryID)
}

// Update replaces the product's own columns. Category assignments are
// changed through AssignCategory and UnassignCategory.
func (r *productRepository) Update(ctx context.Context, product *domain.Product) (bool, error) {
	if err := product.Validate(); err != nil {
		return false, err
	}
	q, err := r.src.Querier(ctx)
	if err != nil {
		return false, err
	}

	res, err := q.ExecContext(ctx, `
		UPDATE producto
		SET nombre = $2, descripcion = $3, tamano = $4, precio = $5
		WHERE id_producto = $1
	`, product.ID, product.Name, product.Description, nullable(product.Size), product.Price)
	if err != nil {
		return false, apperr.FromSQL("failed to update product", err)
	}
	return changed(res, "product update")
}

// Delete removes the product and its category assignments. Products that
// appear on a recorded sale cannot be deleted.
func (r *productRepository) Delete(ctx context.Context, id int64) (bool, error) {
	q, err := r.src.Querier(ctx)
	if err != nil {
		return false, err
	}

	res, err := q.ExecContext(ctx, `DELETE FROM producto WHERE id_producto = $1`, id)
	if err != nil {
		err = apperr.FromSQL("failed to delete product", err)
		if errors.Is(err, apperr.ErrForeignKey) {
			return false, ErrProductHasSales
		}
		return false, err
	}
	return changed(res, "product delete")
}

// AssignCategory links a product to a category. Assigning an existing pair
// is a no-op.
func (r *productRepository) AssignCategory(ctx context.Context, productID, categoryID int64) error {
	q, err := r.src.Querier(ctx)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO producto_categoria (id_producto, id_categoria)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, productID, categoryID)
	if err != nil {
		err = apperr.FromSQL("failed to assign category", err)
		if errors.Is(err, apperr.ErrForeignKey) {
			return ErrProductOrCategoryNotFound
		}
		return err
	}
	return nil
}

func (r *productRepository) UnassignCategory(ctx context.Context, productID, categoryID int64) (bool, error) {
	q, err := r.src.Querier(ctx)
	if err != nil {
		return false, err
	}

	res, err := q.ExecContext(ctx, `
		DELETE FROM producto_categoria
		WHERE id_producto = $1 AND id_categoria = $2
	`, productID, categoryID)
	if err != nil {
		return false, apperr.FromSQL("failed to unassign category", err)
	}
	return changed(res, "category unassignment")
}

// PricesByID returns the current price of each existing product in ids.
// Missing products are absent from the map.
func (r *productRepository) PricesByID(ctx context.Context, ids []int64) (map[int64]decimal.Decimal, error) {
	q, err := r.src.Querier(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id_producto, precio
		FROM producto
		WHERE id_producto = ANY($1)
	`, ids)
	if err != nil {
		return nil, apperr.FromSQL("failed to read product prices", err)
	}
	defer rows.Close()

	prices := make(map[int64]decimal.Decimal, len(ids))
	for rows.Next() {
		var id int64
		var price decimal.Decimal
		if err := rows.Scan(&id, &price); err != nil {
			return nil, apperr.FromSQL("failed to scan product price", err)
		}
		prices[id] = price
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromSQL("failed to read product prices", err)
	}
	return prices, nil
}

func (r *productRepository) list(ctx context.Context, op, query string, args ...any) ([]*domain.Product, error) {
	q, err := r.src.Querier(ctx)
	if err != nil {
		return nil, err
	}

	products, err := queryProducts(ctx, q, op, query, args...)
	if err != nil {
		return nil, err
	}
	if err := loadCategories(ctx, q, products); err != nil {
		return nil, err
	}
	return products, nil
}

func queryProducts(ctx context.Context, q database.Querier, op, query string, args ...any) ([]*domain.Product, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.FromSQL(op, err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, apperr.FromSQL("failed to scan product", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromSQL(op, err)
	}
	return products, nil
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	p := &domain.Product{Categories: []domain.Category{}}
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Size, &p.Price); err != nil {
		return nil, err
	}
	return p, nil
}

// loadCategories fills Categories of every product with one query. It must
// run after the product rows are closed: the store has a single connection.
func loadCategories(ctx context.Context, q database.Querier, products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	byID := make(map[int64][]*domain.Product, len(products))
	ids := make([]int64, 0, len(products))
	for _, p := range products {
		if _, seen := byID[p.ID]; !seen {
			ids = append(ids, p.ID)
		}
		byID[p.ID] = append(byID[p.ID], p)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT pc.id_producto, c.id_categoria, c.nombre, c.descripcion
		FROM producto_categoria pc
		JOIN categoria c ON c.id_categoria = pc.id_categoria
		WHERE pc.id_producto = ANY($1)
		ORDER BY c.nombre, c.id_categoria
	`, ids)
	if err != nil {
		return apperr.FromSQL("failed to load product categories", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID int64
		var c domain.Category
		if err := rows.Scan(&productID, &c.ID, &c.Name, &c.Description); err != nil {
			return apperr.FromSQL("failed to scan product category", err)
		}
		for _, p := range byID[productID] {
			p.Categories = append(p.Categories, c)
		}
	}
	if err := rows.Err(); err != nil {
		return apperr.FromSQL("failed to load product categories", err)
	}
	return nil
}
