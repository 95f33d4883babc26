package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopzone/shopzone-backend/pkg/db/models"
	pkgerrors "github.com/shopzone/shopzone-backend/pkg/errors"
	"github.com/shopzone/shopzone-backend/pkg/logger"
	pkgredis "github.com/shopzone/shopzone-backend/pkg/redis"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Cache is the snapshot store in front of cart reads. pkg/redis satisfies
// it in production; tests plug an in-memory fake.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(userID string) string
}

// CartRepository exposes persistence operations for carts and line items.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	GetOrCreateCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	FindCartByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	FindCartRowByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	UpsertItemQuantity(ctx context.Context, cartID, productID uuid.UUID, quantity int) error
	FindItem(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error)
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	ClearItems(ctx context.Context, cartID uuid.UUID) error
}

// AddItemInput is one line of an add-to-cart batch.
type AddItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// Service exposes cart read and mutation operations.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*CartView, error)
	AddItems(ctx context.Context, userID uuid.UUID, items []AddItemInput) (*CartView, error)
	UpdateOrRemoveItem(ctx context.Context, userID, productID uuid.UUID, quantity *int) (*CartView, error)
	Invalidate(ctx context.Context, userID uuid.UUID)
}

type service struct {
	repo     CartRepository
	tx       txRunner
	products productLoader
	cache    Cache
	cacheTTL time.Duration
	logg     *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, products productLoader, cache Cache, cacheTTL time.Duration, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if cache == nil {
		return nil, fmt.Errorf("cache required")
	}
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Minute
	}
	return &service{
		repo:     repo,
		tx:       tx,
		products: products,
		cache:    cache,
		cacheTTL: cacheTTL,
		logg:     logg,
	}, nil
}

// Get returns the user's cart, creating an empty one on first access. Reads
// go through the cache; any cache failure is treated as a miss.
func (s *service) Get(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	key := s.cache.CartKey(userID.String())
	if cached, err := s.cache.Get(ctx, key); err == nil {
		var view CartView
		if err := json.Unmarshal([]byte(cached), &view); err == nil {
			return &view, nil
		}
		s.warnCache(ctx, "cart.cache.decode_failed", err)
	} else if !isCacheMiss(err) {
		s.warnCache(ctx, "cart.cache.read_failed", err)
	}

	record, err := s.repo.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	view := NewCartView(record)
	s.populate(ctx, key, view)
	return view, nil
}

// AddItems merges the batch into the cart. Every product is resolved before
// any write so an unknown id aborts the whole batch; the writes then share
// one transaction.
func (s *service) AddItems(ctx context.Context, userID uuid.UUID, items []AddItemInput) (*CartView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
	}

	for _, item := range items {
		if _, err := s.products.FindProduct(ctx, item.ProductID); err != nil {
			return nil, err
		}
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		record, err := repo.GetOrCreateCart(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		for _, item := range items {
			if err := repo.UpsertItemQuantity(ctx, record.ID, item.ProductID, item.Quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert cart item")
			}
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add cart items")
	}

	s.Invalidate(ctx, userID)
	return s.freshView(ctx, userID)
}

// UpdateOrRemoveItem decrements a line or removes it. A nil quantity removes
// the line outright; a decrement that reaches zero removes it too.
func (s *service) UpdateOrRemoveItem(ctx context.Context, userID, productID uuid.UUID, quantity *int) (*CartView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if quantity != nil && *quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	record, err := s.repo.FindCartRowByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	item, err := s.repo.FindItem(ctx, record.ID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Item not found in cart")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}

	switch {
	case quantity == nil:
		err = s.repo.DeleteItem(ctx, item.ID)
	case item.Quantity-*quantity <= 0:
		err = s.repo.DeleteItem(ctx, item.ID)
	default:
		err = s.repo.UpdateItemQuantity(ctx, item.ID, item.Quantity-*quantity)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
	}

	s.Invalidate(ctx, userID)
	return s.freshView(ctx, userID)
}

// Invalidate drops the cached snapshot. Failures are logged and swallowed;
// the TTL bounds how stale a lost delete can leave the cache.
func (s *service) Invalidate(ctx context.Context, userID uuid.UUID) {
	key := s.cache.CartKey(userID.String())
	if err := s.cache.Del(ctx, key); err != nil {
		s.warnCache(ctx, "cart.cache.invalidate_failed", err)
	}
}

// freshView reloads the cart for the mutation response without touching the
// cache. Writing here could race a concurrent mutation's invalidation and pin
// a stale snapshot; only the read path repopulates.
func (s *service) freshView(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	record, err := s.repo.FindCartByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
	}
	return NewCartView(record), nil
}

func (s *service) populate(ctx context.Context, key string, view *CartView) {
	payload, err := json.Marshal(view)
	if err != nil {
		s.warnCache(ctx, "cart.cache.encode_failed", err)
		return
	}
	if err := s.cache.Set(ctx, key, string(payload), s.cacheTTL); err != nil {
		s.warnCache(ctx, "cart.cache.write_failed", err)
	}
}

func (s *service) warnCache(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithField(ctx, "error", err.Error())
	s.logg.Warn(ctx, msg)
}

func isCacheMiss(err error) bool {
	return errors.Is(err, pkgredis.ErrCacheMiss)
}
