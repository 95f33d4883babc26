package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopzone/shopzone-backend/pkg/db/models"
)

// Repository persists users and OTP challenges.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an auth repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) UserRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindUserByPhone loads a user by phone number.
func (r *Repository) FindUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	var record models.User
	err := r.db.WithContext(ctx).
		Where("phone = ?", phone).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindUserByID loads a user by primary key.
func (r *Repository) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var record models.User
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// CreateUser inserts a new user row.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// UpdateUser persists changed user columns.
func (r *Repository) UpdateUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// CreateOTP inserts a new OTP challenge.
func (r *Repository) CreateOTP(ctx context.Context, otp *models.OTP) error {
	return r.db.WithContext(ctx).Create(otp).Error
}

// FindOTPByKey loads a challenge by its public key.
func (r *Repository) FindOTPByKey(ctx context.Context, key uuid.UUID) (*models.OTP, error) {
	var record models.OTP
	err := r.db.WithContext(ctx).
		Where("key = ?", key).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindOTPByToken loads a challenge by its post-verification token.
func (r *Repository) FindOTPByToken(ctx context.Context, token uuid.UUID) (*models.OTP, error) {
	var record models.OTP
	err := r.db.WithContext(ctx).
		Where("token = ?", token).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// IncrementOTPAttempts bumps the failed-verification counter.
func (r *Repository) IncrementOTPAttempts(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.OTP{}).
		Where("id = ?", id).
		Update("attempts", gorm.Expr("attempts + 1")).Error
}

// DeleteOTPsForUser removes every challenge issued to the user.
func (r *Repository) DeleteOTPsForUser(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.OTP{}).Error
}

// CountOTPsIssuedSince counts challenges created for the user after the cutoff.
func (r *Repository) CountOTPsIssuedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OTP{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Count(&count).Error
	return count, err
}
