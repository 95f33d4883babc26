package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopzone/shopzone-backend/pkg/db"
	"github.com/shopzone/shopzone-backend/pkg/db/models"
	pkgerrors "github.com/shopzone/shopzone-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CatalogRepository exposes persistence operations for categories and products.
type CatalogRepository interface {
	WithTx(tx *gorm.DB) CatalogRepository
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, category *models.Category) (*models.Category, error)
	FindCategory(ctx context.Context, id uuid.UUID) (*models.Category, error)
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	CreateProducts(ctx context.Context, products []models.Product) error
	DeleteProductsInCategory(ctx context.Context, categoryID uuid.UUID, ids []uuid.UUID) (int64, error)
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
}

// Service exposes catalog browse and bulk administration operations.
type Service interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, name string) (*models.Category, error)
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	BulkCreate(ctx context.Context, categoryID uuid.UUID, inputs []ProductInput) ([]ProductView, error)
	BulkDelete(ctx context.Context, categoryID uuid.UUID, ids []uuid.UUID) (int64, error)
}

type service struct {
	repo CatalogRepository
	tx   txRunner
}

// NewService builds a catalog service backed by the provided stack.
func NewService(repo CatalogRepository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

// ListCategories returns all categories.
func (s *service) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	return rows, nil
}

// CreateCategory inserts a category, rejecting duplicate names.
func (s *service) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name is required")
	}

	category := &models.Category{Name: name}
	created, err := s.repo.CreateCategory(ctx, category)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "category already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
	}
	return created, nil
}

// ListProducts returns one filtered catalog page.
func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	if input.Filters.PriceMin != nil && input.Filters.PriceMax != nil &&
		input.Filters.PriceMin.GreaterThan(*input.Filters.PriceMax) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price_min cannot exceed price_max")
	}

	result, err := s.repo.ListProducts(ctx, input)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		if strings.Contains(err.Error(), "cursor") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return result, nil
}

// FindProduct loads one product by id.
func (s *service) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindProduct(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

// BulkCreate inserts every product into the category, or none of them.
func (s *service) BulkCreate(ctx context.Context, categoryID uuid.UUID, inputs []ProductInput) ([]ProductView, error) {
	if categoryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category id is required")
	}
	if len(inputs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one product is required")
	}
	for _, input := range inputs {
		if strings.TrimSpace(input.Name) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
		}
		if input.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product price cannot be negative")
		}
		if input.Stock < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product stock cannot be negative")
		}
	}

	var created []models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindCategory(ctx, categoryID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "Category not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
		}

		rows := make([]models.Product, 0, len(inputs))
		for _, input := range inputs {
			rows = append(rows, models.Product{
				CategoryID:  categoryID,
				Name:        strings.TrimSpace(input.Name),
				Description: input.Description,
				Price:       input.Price.Round(2),
				Stock:       input.Stock,
			})
		}
		if err := repo.CreateProducts(ctx, rows); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert products")
		}
		created = rows
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bulk create products")
	}

	views := make([]ProductView, 0, len(created))
	for _, row := range created {
		views = append(views, NewProductView(row))
	}
	return views, nil
}

// BulkDelete removes the ids that actually live in the category.
func (s *service) BulkDelete(ctx context.Context, categoryID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if categoryID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "category id is required")
	}
	if len(ids) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "at least one product id is required")
	}

	var deleted int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindCategory(ctx, categoryID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "Category not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
		}

		count, err := repo.DeleteProductsInCategory(ctx, categoryID, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete products")
		}
		if count == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no products found for the given ids in this category")
		}
		deleted = count
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return 0, typed
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bulk delete products")
	}
	return deleted, nil
}
