package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shopzone/shopzone-backend/pkg/db/models"
	pkgerrors "github.com/shopzone/shopzone-backend/pkg/errors"
)

func TestCreateCategoryRejectsEmptyName(t *testing.T) {
	svc := newTestService(t, newFakeCatalogRepo())

	_, err := svc.CreateCategory(context.Background(), "   ")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateCategoryMapsDuplicateToConflict(t *testing.T) {
	repo := newFakeCatalogRepo()
	svc := newTestService(t, repo)

	if _, err := svc.CreateCategory(context.Background(), "Groceries"); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	_, err := svc.CreateCategory(context.Background(), "Groceries")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestBulkCreateUnknownCategory(t *testing.T) {
	svc := newTestService(t, newFakeCatalogRepo())

	_, err := svc.BulkCreate(context.Background(), uuid.New(), []ProductInput{
		{Name: "Tea", Price: decimal.RequireFromString("3.50"), Stock: 10},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
	if typed := pkgerrors.As(err); typed.Message() != "Category not found" {
		t.Fatalf("unexpected message %q", typed.Message())
	}
}

func TestBulkCreateAllOrNothing(t *testing.T) {
	repo := newFakeCatalogRepo()
	svc := newTestService(t, repo)
	categoryID := repo.addCategory("Drinks")

	_, err := svc.BulkCreate(context.Background(), categoryID, []ProductInput{
		{Name: "Juice", Price: decimal.RequireFromString("4.00"), Stock: 5},
		{Name: "", Price: decimal.RequireFromString("2.00"), Stock: 1},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := len(repo.products); got != 0 {
		t.Fatalf("expected no products persisted, got %d", got)
	}
}

func TestBulkCreatePersistsWholeBatch(t *testing.T) {
	repo := newFakeCatalogRepo()
	svc := newTestService(t, repo)
	categoryID := repo.addCategory("Drinks")

	views, err := svc.BulkCreate(context.Background(), categoryID, []ProductInput{
		{Name: "Juice", Price: decimal.RequireFromString("4.00"), Stock: 5},
		{Name: "Water", Price: decimal.RequireFromString("1.25"), Stock: 50},
	})
	if err != nil {
		t.Fatalf("bulk create failed: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 views, got %d", len(views))
	}
	if got := len(repo.products); got != 2 {
		t.Fatalf("expected 2 products persisted, got %d", got)
	}
	for _, view := range views {
		if view.CategoryID != categoryID {
			t.Fatalf("expected category %s, got %s", categoryID, view.CategoryID)
		}
	}
}

func TestBulkDeleteScopesToCategory(t *testing.T) {
	repo := newFakeCatalogRepo()
	svc := newTestService(t, repo)
	drinks := repo.addCategory("Drinks")
	snacks := repo.addCategory("Snacks")
	inDrinks := repo.addProduct(drinks, "Juice", "4.00", 5)
	inSnacks := repo.addProduct(snacks, "Chips", "2.00", 8)

	count, err := svc.BulkDelete(context.Background(), drinks, []uuid.UUID{inDrinks, inSnacks})
	if err != nil {
		t.Fatalf("bulk delete failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 deleted, got %d", count)
	}
	if _, ok := repo.products[inSnacks]; !ok {
		t.Fatal("product outside category must survive")
	}
}

func TestBulkDeleteEmptyIntersection(t *testing.T) {
	repo := newFakeCatalogRepo()
	svc := newTestService(t, repo)
	drinks := repo.addCategory("Drinks")

	_, err := svc.BulkDelete(context.Background(), drinks, []uuid.UUID{uuid.New()})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
	if typed.Message() != "no products found for the given ids in this category" {
		t.Fatalf("unexpected message %q", typed.Message())
	}
}

func TestBulkDeleteUnknownCategory(t *testing.T) {
	svc := newTestService(t, newFakeCatalogRepo())

	_, err := svc.BulkDelete(context.Background(), uuid.New(), []uuid.UUID{uuid.New()})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestFindProductUnknownID(t *testing.T) {
	svc := newTestService(t, newFakeCatalogRepo())

	_, err := svc.FindProduct(context.Background(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestListProductsRejectsInvertedPriceRange(t *testing.T) {
	svc := newTestService(t, newFakeCatalogRepo())

	low := decimal.RequireFromString("1.00")
	high := decimal.RequireFromString("9.00")
	_, err := svc.ListProducts(context.Background(), ListProductsInput{
		Filters: ProductListFilters{PriceMin: &high, PriceMax: &low},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func newTestService(t *testing.T, repo *fakeCatalogRepo) Service {
	t.Helper()
	svc, err := NewService(repo, fakeTxRunner{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeCatalogRepo struct {
	categories map[uuid.UUID]models.Category
	products   map[uuid.UUID]models.Product
}

func newFakeCatalogRepo() *fakeCatalogRepo {
	return &fakeCatalogRepo{
		categories: map[uuid.UUID]models.Category{},
		products:   map[uuid.UUID]models.Product{},
	}
}

func (f *fakeCatalogRepo) addCategory(name string) uuid.UUID {
	id := uuid.New()
	f.categories[id] = models.Category{ID: id, Name: name}
	return id
}

func (f *fakeCatalogRepo) addProduct(categoryID uuid.UUID, name, price string, stock int) uuid.UUID {
	id := uuid.New()
	f.products[id] = models.Product{
		ID:         id,
		CategoryID: categoryID,
		Name:       name,
		Price:      decimal.RequireFromString(price),
		Stock:      stock,
	}
	return id
}

func (f *fakeCatalogRepo) WithTx(tx *gorm.DB) CatalogRepository { return f }

func (f *fakeCatalogRepo) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows := make([]models.Category, 0, len(f.categories))
	for _, c := range f.categories {
		rows = append(rows, c)
	}
	return rows, nil
}

func (f *fakeCatalogRepo) CreateCategory(ctx context.Context, category *models.Category) (*models.Category, error) {
	for _, c := range f.categories {
		if c.Name == category.Name {
			return nil, errDuplicate
		}
	}
	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}
	f.categories[category.ID] = *category
	return category, nil
}

func (f *fakeCatalogRepo) FindCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	if c, ok := f.categories[id]; ok {
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCatalogRepo) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if p, ok := f.products[id]; ok {
		return &p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCatalogRepo) FindProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			rows = append(rows, p)
		}
	}
	return rows, nil
}

func (f *fakeCatalogRepo) CreateProducts(ctx context.Context, products []models.Product) error {
	for i := range products {
		if products[i].ID == uuid.Nil {
			products[i].ID = uuid.New()
		}
		f.products[products[i].ID] = products[i]
	}
	return nil
}

func (f *fakeCatalogRepo) DeleteProductsInCategory(ctx context.Context, categoryID uuid.UUID, ids []uuid.UUID) (int64, error) {
	var count int64
	for _, id := range ids {
		if p, ok := f.products[id]; ok && p.CategoryID == categoryID {
			delete(f.products, id)
			count++
		}
	}
	return count, nil
}

func (f *fakeCatalogRepo) ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	views := make([]ProductView, 0, len(f.products))
	for _, p := range f.products {
		views = append(views, NewProductView(p))
	}
	return &ProductListResult{Products: views}, nil
}

var errDuplicate = &duplicateErr{}

type duplicateErr struct{}

func (*duplicateErr) Error() string { return `duplicate key value violates unique constraint "uq_categories_name"` }
