package repository

import (
	"context"
	"database/sql"

	"pos-backoffice/internal/apperr"
	"pos-backoffice/internal/database"
	"pos-backoffice/internal/domain"
)

var ErrCategoryNotFound = &apperr.Error{Kind: apperr.KindNotFound, Message: "category not found"}

// CategoryRepository defines the interface for category data access
type CategoryRepository interface {
	Repository[domain.Category, int64]
	SearchByName(ctx context.Context, name string) ([]*domain.Category, error)
	FindByProduct(ctx context.Context, productID int64) ([]*domain.Category, error)
	WithTx(tx *sql.Tx) CategoryRepository
}

type categoryRepository struct {
	src database.Source
}

// NewCategoryRepository creates a new instance of CategoryRepository
func NewCategoryRepository(src database.Source) CategoryRepository {
	return &categoryRepository{src: src}
}

func (r *categoryRepository) WithTx(tx *sql.Tx) CategoryRepository {
	return &categoryRepository{src: database.TxSource(tx)}
}

func (r *categoryRepository) Insert(ctx context.Context, category *domain.Category) (int64, error) {
	if err := category.Validate(); err != nil {
		return 0, err
	}
	q, err := r.src.Querier(ctx)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO categoria (nombre, descripcion)
		VALUES ($1, $2)
		RETURNING id_categoria
	`

	if err := q.QueryRowContext(ctx, query, category.Name, category.Description).Scan(&category.ID); err != nil {
		return 0, apperr.FromSQL("failed to insert category", err)
	}
	return category.ID, nil
}

func (r *categoryRepository) FindByID(ctx context.Context, id int64) (*domain.Category, error) {
	q, err := r.src.Querier(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id_categoria, nombre, descripcion
		FROM categoria
		WHERE id_categoria = $1
	`

	category, err := scanCategory(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, apperr.FromSQL("failed to find category by id", err)
	}
	return category, nil
}

func (r *categoryRepository) FindAll(ctx context.Context) ([]*domain.Category, error) {
	return r.list(ctx, "failed to list categories", `
		SELECT id_categoria, nombre, descripcion
		FROM categoria
		ORDER BY nombre, id_categoria
	`)
}

// SearchByName matches name anywhere in the category name, ignoring case.
func (r *categoryRepository) SearchByName(ctx context.Context, name string) ([]*domain.Category, error) {
	return r.list(ctx, "failed to search categories", `
		SELECT id_categoria, nombre, descripcion
		FROM categoria
		WHERE nombre ILIKE $1
		ORDER BY nombre, id_categoria
	`, containsPattern(name))
}

func (r *categoryRepository) FindByProduct(ctx context.Context, productID int64) ([]*domain.Category, error) {
	return r.list(ctx, "failed to list categories of product", `
		SELECT c.id_categoria, c.nombre, c.descripcion
		FROM categoria c
		JOIN producto_categoria pc ON pc.id_categoria = c.id_categoria
		WHERE pc.id_producto = $1
		ORDER BY c.nombre, c.id_categoria
	`, productID)
}

func (r *categoryRepository) Update(ctx context.Context, category *domain.Category) (bool, error) {
	if err := category.Validate(); err != nil {
		return false, err
	}
	q, err := r.src.Querier(ctx)
	if err != nil {
		return false, err
	}

	res, err := q.ExecContext(ctx, `
		UPDATE categoria
		SET nombre = $2, descripcion = $3
		WHERE id_categoria = $1
	`, category.ID, category.Name, category.Description)
	if err != nil {
		return false, apperr.FromSQL("failed to update category", err)
	}
	return changed(res, "category update")
}

// Delete removes the category and, by cascade, its product assignments.
func (r *categoryRepository) Delete(ctx context.Context, id int64) (bool, error) {
	q, err := r.src.Querier(ctx)
	if err != nil {
		return false, err
	}

	res, err := q.ExecContext(ctx, `DELETE FROM categoria WHERE id_categoria = $1`, id)
	if err != nil {
		return false, apperr.FromSQL("failed to delete category", err)
	}
	return changed(res, "category delete")
}

func (r *categoryRepository) list(ctx context.Context, op, query string, args ...any) ([]*domain.Category, error) {
	q, err := r.src.Querier(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.FromSQL(op, err)
	}
	defer rows.Close()

	categories := []*domain.Category{}
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, apperr.FromSQL("failed to scan category", err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromSQL(op, err)
	}
	return categories, nil
}

func scanCategory(row rowScanner) (*domain.Category, error) {
	category := &domain.Category{}
	if err := row.Scan(&category.ID, &category.Name, &category.Description); err != nil {
		return nil, err
	}
	return category, nil
}
