package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pos-backoffice/internal/domain"
	"pos-backoffice/internal/middleware"
	"pos-backoffice/internal/service"
	"pos-backoffice/internal/session"
)

type CategoryRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// ProductRequest creates or updates a product. On update, a present
// category_ids replaces the product's categories; an absent one leaves
// them alone.
type ProductRequest struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Size        string          `json:"size"`
	Price       decimal.Decimal `json:"price"`
	CategoryIDs *[]int64        `json:"category_ids"`
}

func (r ProductRequest) product(id int64) *domain.Product {
	p := &domain.Product{
		ID:          id,
		Name:        r.Name,
		Description: r.Description,
		Size:        r.Size,
		Price:       r.Price,
	}
	if r.CategoryIDs != nil {
		p.Categories = make([]domain.Category, 0, len(*r.CategoryIDs))
		for _, cid := range *r.CategoryIDs {
			p.Categories = append(p.Categories, domain.Category{ID: cid})
		}
	}
	return p
}

// CatalogHandler serves categories and products.
type CatalogHandler struct {
	catalog service.CatalogService
	logger  *zap.Logger
}

func NewCatalogHandler(catalog service.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

func (h *CatalogHandler) RegisterRoutes(r chi.Router, routes Routes) {
	admin := func(c session.Capability) func(http.Handler) http.Handler {
		return middleware.RequireCapability(c, h.logger)
	}

	r.Route("/api/categories", func(r chi.Router) {
		r.Use(routes.Auth)
		r.Get("/", h.ListCategories)
		r.Get("/{id}", h.GetCategory)
		r.Get("/{id}/products", h.ProductsByCategory)
		r.With(admin(session.ManageCategories)).Post("/", h.CreateCategory)
		r.With(admin(session.ManageCategories)).Put("/{id}", h.UpdateCategory)
		r.With(admin(session.ManageCategories)).Delete("/{id}", h.DeleteCategory)
	})

	r.Route("/api/products", func(r chi.Router) {
		r.Use(routes.Auth)
		r.Get("/", h.ListProducts)
		r.Get("/{id}", h.GetProduct)
		r.Get("/{id}/categories", h.CategoriesOfProduct)
		r.Group(func(r chi.Router) {
			r.Use(admin(session.ManageProducts))
			r.Post("/", h.CreateProduct)
			r.Put("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
			r.Put("/{id}/categories/{categoryID}", h.AssignCategory)
			r.Delete("/{id}/categories/{categoryID}", h.UnassignCategory)
		})
	})
}

// ListCategories accepts an optional name search.
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	var (
		categories []*domain.Category
		err        error
	)
	if name := r.URL.Query().Get("name"); name != "" {
		categories, err = h.catalog.SearchCategories(r.Context(), name)
	} else {
		categories, err = h.catalog.ListCategories(r.Context())
	}
	if err != nil {
		fail(w, h.logger, "Failed to list categories", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, categories)
}

func (h *CatalogHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, h.logger, "Invalid category id", err)
		return
	}
	category, err := h.catalog.GetCategory(r.Context(), id)
	if err != nil {
		fail(w, h.logger, "Failed to get category", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, category)
}

func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		fail(w, h.logger, "Category validation failed", err)
		return
	}
	category, err := h.catalog.CreateCategory(r.Context(), &domain.Category{Name: req.Name, Description: req.Description})
	if err != nil {
		fail(w, h.logger, "Failed to create category", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, category)
}

func (h *CatalogHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, h.logger, "Invalid category id", err)
		return
	}
	var req CategoryRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		fail(w, h.logger, "Category validation failed", err)
		return
	}
	category, err := h.catalog.UpdateCategory(r.Context(), &domain.Category{ID: id, Name: req.Name, Description: req.Description})
	if err != nil {
		fail(w, h.logger, "Failed to update category", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, category)
}

func (h *CatalogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, h.logger, "Invalid category id", err)
		return
	}
	if err := h.catalog.DeleteCategory(r.Context(), id); err != nil {
		fail(w, h.logger, "Failed to delete category", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) ProductsByCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, h.logger, "Invalid category id", err)
		return
	}
	products, err := h.catalog.ProductsByCategory(r.Context(), id)
	if err != nil {
		fail(w, h.logger, "Failed to list category products", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// ListProducts accepts either a name search or a min and max price range.
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		products []*domain.Product
		err      error
	)
	switch {
	case q.Get("name") != "":
		products, err = h.catalog.SearchProducts(r.Context(), q.Get("name"))
	case q.Get("min") != "" || q.Get("max") != "":
		var lo, hi decimal.Decimal
		if lo, err = queryDecimal(r, "min"); err != nil {
			break
		}
		if hi, err = queryDecimal(r, "max"); err != nil {
			break
		}
		products, err = h.catalog.ProductsByPriceRange(r.Context(), lo, hi)
	default:
		products, err = h.catalog.ListProducts(r.Context())
	}
	if err != nil {
		fail(w, h.logger, "Failed to list products", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, products)
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, h.logger, "Invalid product id", err)
		return
	}
	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		fail(w, h.logger, "Failed to get product", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

func (h *CatalogHandler) CategoriesOfProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, h.logger, "Invalid product id", err)
		return
	}
	categories, err := h.catalog.CategoriesOfProduct(r.Context(), id)
	if err != nil {
		fail(w, h.logger, "Failed to list product categories", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, categories)
}

func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		fail(w, h.logger, "Product validation failed", err)
		return
	}
	product, err := h.catalog.CreateProduct(r.Context(), req.product(0))
	if err != nil {
		fail(w, h.logger, "Failed to create product", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, h.logger, "Invalid product id", err)
		return
	}
	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		fail(w, h.logger, "Product validation failed", err)
		return
	}
	product, err := h.catalog.UpdateProduct(r.Context(), req.product(id))
	if err != nil {
		fail(w, h.logger, "Failed to update product", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

func (h *CatalogHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, h.logger, "Invalid product id", err)
		return
	}
	if err := h.catalog.DeleteProduct(r.Context(), id); err != nil {
		fail(w, h.logger, "Failed to delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) AssignCategory(w http.ResponseWriter, r *http.Request) {
	productID, categoryID, err := productCategoryIDs(r)
	if err != nil {
		fail(w, h.logger, "Invalid ids", err)
		return
	}
	if err := h.catalog.AssignCategory(r.Context(), productID, categoryID); err != nil {
		fail(w, h.logger, "Failed to assign category", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) UnassignCategory(w http.ResponseWriter, r *http.Request) {
	productID, categoryID, err := productCategoryIDs(r)
	if err != nil {
		fail(w, h.logger, "Invalid ids", err)
		return
	}
	if err := h.catalog.UnassignCategory(r.Context(), productID, categoryID); err != nil {
		fail(w, h.logger, "Failed to unassign category", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func productCategoryIDs(r *http.Request) (int64, int64, error) {
	productID, err := pathID(r, "id")
	if err != nil {
		return 0, 0, err
	}
	categoryID, err := pathID(r, "categoryID")
	if err != nil {
		return 0, 0, err
	}
	return productID, categoryID, nil
}
