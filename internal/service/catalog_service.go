package service

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pos-backoffice/internal/domain"
	"pos-backoffice/internal/repository"
	"pos-backoffice/internal/session"
)

// CatalogService manages categories and products. Any logged in role may
// read the catalog; only administrators change it.
type CatalogService interface {
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	GetCategory(ctx context.Context, id int64) (*domain.Category, error)
	SearchCategories(ctx context.Context, name string) ([]*domain.Category, error)
	CategoriesOfProduct(ctx context.Context, productID int64) ([]*domain.Category, error)
	CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error)
	UpdateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	ListProducts(ctx context.Context) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	SearchProducts(ctx context.Context, name string) ([]*domain.Product, error)
	ProductsByPriceRange(ctx context.Context, min, max decimal.Decimal) ([]*domain.Product, error)
	ProductsByCategory(ctx context.Context, categoryID int64) ([]*domain.Product, error)
	CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	AssignCategory(ctx context.Context, productID, categoryID int64) error
	UnassignCategory(ctx context.Context, productID, categoryID int64) error
}

type catalogService struct {
	tx         Transactor
	categories repository.CategoryRepository
	products   repository.ProductRepository
	sessions   *session.Context
	logger     *zap.Logger
}

func NewCatalogService(
	tx Transactor,
	categories repository.CategoryRepository,
	products repository.ProductRepository,
	sessions *session.Context,
	logger *zap.Logger,
) CatalogService {
	return &catalogService{
		tx:         tx,
		categories: categories,
		products:   products,
		sessions:   sessions,
		logger:     logger,
	}
}

func (s *catalogService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	if _, err := s.sessions.Require(session.ViewProducts); err != nil {
		return nil, err
	}
	return s.categories.FindAll(ctx)
}

func (s *catalogService) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	if _, err := s.sessions.Require(session.ViewProducts); err != nil {
		return nil, err
	}
	return s.categories.FindByID(ctx, id)
}

func (s *catalogService) SearchCategories(ctx context.Context, name string) ([]*domain.Category, error) {
	if _, err := s.sessions.Require(session.ViewProducts); err != nil {
		return nil, err
	}
	return s.categories.SearchByName(ctx, name)
}

func (s *catalogService) CategoriesOfProduct(ctx context.Context, productID int64) ([]*domain.Category, error) {
	if _, err := s.sessions.Require(session.ViewProducts); err != nil {
		return nil, err
	}
	return s.categories.FindByProduct(ctx, productID)
}

func (s *catalogService) CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	if _, err := s.sessions.Require(session.ManageCategories); err != nil {
		return nil, err
	}
	if _, err := s.categories.Insert(ctx, category); err != nil {
		return nil, err
	}
	s.logger.Info("Category created", zap.Int64("category_id", category.ID), zap.String("name", category.Name))
	return category, nil
}

func (s *catalogService) UpdateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	if _, err := s.sessions.Require(session.ManageCategories); err != nil {
		return nil, err
	}
	ok, err := s.categories.Update(ctx, category)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	return category, nil
}

// DeleteCategory removes the category and its product links; the products
// themselves stay.
func (s *catalogService) DeleteCategory(ctx context.Context, id int64) error {
	if _, err := s.sessions.Require(session.ManageCategories); err != nil {
		return err
	}
	ok, err := s.categories.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrCategoryNotFound
	}
	s.logger.Info("Category deleted", zap.Int64("category_id", id))
	return nil
}

func (s *catalogService) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	if _, err := s.sessions.Require(session.ViewProducts); err != nil {
		return nil, err
	}
	return s.products.FindAll(ctx)
}

func (s *catalogService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if _, err := s.sessions.Require(session.ViewProducts); err != nil {
		return nil, err
	}
	return s.products.FindByID(ctx, id)
}

func (s *catalogService) SearchProducts(ctx context.Context, name string) ([]*domain.Product, error) {
	if _, err := s.sessions.Require(session.ViewProducts); err != nil {
		return nil, err
	}
	return s.products.SearchByName(ctx, name)
}

func (s *catalogService) ProductsByPriceRange(ctx context.Context, min, max decimal.Decimal) ([]*domain.Product, error) {
	if _, err := s.sessions.Require(session.ViewProducts); err != nil {
		return nil, err
	}
	return s.products.FindByPriceRange(ctx, min, max)
}

func (s *catalogService) ProductsByCategory(ctx context.Context, categoryID int64) ([]*domain.Product, error) {
	if _, err := s.sessions.Require(session.ViewProducts); err != nil {
		return nil, err
	}
	return s.products.FindByCategory(ctx, categoryID)
}

// CreateProduct stores the product linked to the ids in product.Categories.
func (s *catalogService) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	if _, err := s.sessions.Require(session.ManageProducts); err != nil {
		return nil, err
	}
	if _, err := s.products.Insert(ctx, product); err != nil {
		return nil, err
	}
	s.logger.Info("Product created", zap.Int64("product_id", product.ID), zap.String("name", product.Name))
	return product, nil
}

// UpdateProduct saves the product columns. When product.Categories is
// non-nil the product's links are replaced by exactly those categories, in
// the same transaction.
func (s *catalogService) UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	if _, err := s.sessions.Require(session.ManageProducts); err != nil {
		return nil, err
	}

	var updated *domain.Product
	err := s.tx.WithTransaction(ctx, func(tx *sql.Tx) error {
		products := s.products.WithTx(tx)

		ok, err := products.Update(ctx, product)
		if err != nil {
			return err
		}
		if !ok {
			return repository.ErrProductNotFound
		}

		if product.Categories != nil {
			current, err := products.FindByID(ctx, product.ID)
			if err != nil {
				return err
			}
			if err := syncCategories(ctx, products, current, product.Categories); err != nil {
				return err
			}
		}

		updated, err = products.FindByID(ctx, product.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteProduct fails with repository.ErrProductHasSales when the product
// appears in a recorded sale.
func (s *catalogService) DeleteProduct(ctx context.Context, id int64) error {
	if _, err := s.sessions.Require(session.ManageProducts); err != nil {
		return err
	}
	ok, err := s.products.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrProductNotFound
	}
	s.logger.Info("Product deleted", zap.Int64("product_id", id))
	return nil
}

func (s *catalogService) AssignCategory(ctx context.Context, productID, categoryID int64) error {
	if _, err := s.sessions.Require(session.ManageProducts); err != nil {
		return err
	}
	return s.products.AssignCategory(ctx, productID, categoryID)
}

func (s *catalogService) UnassignCategory(ctx context.Context, productID, categoryID int64) error {
	if _, err := s.sessions.Require(session.ManageProducts); err != nil {
		return err
	}
	_, err := s.products.UnassignCategory(ctx, productID, categoryID)
	return err
}

func syncCategories(ctx context.Context, products repository.ProductRepository, current *domain.Product, want []domain.Category) error {
	keep := make(map[int64]bool, len(want))
	for _, c := range want {
		keep[c.ID] = true
		if !current.HasCategory(c.ID) {
			if err := products.AssignCategory(ctx, current.ID, c.ID); err != nil {
				return err
			}
		}
	}
	for _, c := range current.Categories {
		if !keep[c.ID] {
			if _, err := products.UnassignCategory(ctx, current.ID, c.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
