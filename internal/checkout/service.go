package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shopzone/shopzone-backend/internal/cart"
	"github.com/shopzone/shopzone-backend/pkg/db/models"
	"github.com/shopzone/shopzone-backend/pkg/enums"
	pkgerrors "github.com/shopzone/shopzone-backend/pkg/errors"
	"github.com/shopzone/shopzone-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PaymentRepository persists payment records.
type PaymentRepository interface {
	WithTx(tx *gorm.DB) PaymentRepository
	CreatePayment(ctx context.Context, payment *models.Payment) error
}

// Authorizer decides the status of a payment before it is recorded. The
// stub implementation stands in for a gateway integration.
type Authorizer interface {
	Authorize(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, method string) (enums.PaymentStatus, error)
}

// StubAuthorizer approves everything. Payments are recorded, not processed.
type StubAuthorizer struct{}

func (StubAuthorizer) Authorize(context.Context, uuid.UUID, decimal.Decimal, string) (enums.PaymentStatus, error) {
	return enums.PaymentStatusProcessed, nil
}

// Cache mirrors the redis operations checkout touches after commit.
type Cache interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(userID string) string
	PaymentKey(userID string) string
}

// CheckoutInput carries the payment request fields.
type CheckoutInput struct {
	Amount        decimal.Decimal
	PaymentMethod string
	Details       map[string]any
}

// Service records payments and clears the paying user's cart.
type Service interface {
	Checkout(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*PaymentView, error)
}

type service struct {
	payments    PaymentRepository
	carts       cart.CartRepository
	tx          txRunner
	authorizer  Authorizer
	cache       Cache
	rejectEmpty bool
	refTTL      time.Duration
	logg        *logger.Logger
}

// NewService builds a checkout service backed by the provided stack.
func NewService(payments PaymentRepository, carts cart.CartRepository, tx txRunner, authorizer Authorizer, cache Cache, rejectEmpty bool, logg *logger.Logger) (Service, error) {
	if payments == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if authorizer == nil {
		return nil, fmt.Errorf("authorizer required")
	}
	if cache == nil {
		return nil, fmt.Errorf("cache required")
	}
	return &service{
		payments:    payments,
		carts:       carts,
		tx:          tx,
		authorizer:  authorizer,
		cache:       cache,
		rejectEmpty: rejectEmpty,
		refTTL:      15 * time.Minute,
		logg:        logg,
	}, nil
}

// Checkout records the payment and clears the cart in one transaction. The
// cart must already exist; checkout never creates one.
func (s *service) Checkout(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*PaymentView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if input.PaymentMethod == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method is required")
	}
	if len(input.Details) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment details are required")
	}

	record, err := s.carts.FindCartByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if s.rejectEmpty && len(record.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	status, err := s.authorizer.Authorize(ctx, userID, input.Amount, input.PaymentMethod)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "authorize payment")
	}

	payment := &models.Payment{
		UserID:        userID,
		Amount:        input.Amount.Round(2),
		PaymentMethod: input.PaymentMethod,
		Status:        status,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.payments.WithTx(tx).CreatePayment(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}
		if err := s.carts.WithTx(tx).ClearItems(ctx, record.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checkout")
	}

	s.afterCommit(ctx, userID, payment)
	return NewPaymentView(payment), nil
}

// afterCommit drops the stale cart snapshot and records an informational
// pointer to the last payment. Both are best effort.
func (s *service) afterCommit(ctx context.Context, userID uuid.UUID, payment *models.Payment) {
	if err := s.cache.Del(ctx, s.cache.CartKey(userID.String())); err != nil {
		s.warnCache(ctx, "checkout.cache.invalidate_failed", err)
	}
	if err := s.cache.Set(ctx, s.cache.PaymentKey(userID.String()), payment.ID.String(), s.refTTL); err != nil {
		s.warnCache(ctx, "checkout.cache.reference_failed", err)
	}
}

func (s *service) warnCache(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithField(ctx, "error", err.Error())
	s.logg.Warn(ctx, msg)
}
