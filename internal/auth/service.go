package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgauth "github.com/shopzone/shopzone-backend/pkg/auth"
	"github.com/shopzone/shopzone-backend/pkg/config"
	"github.com/shopzone/shopzone-backend/pkg/db/models"
	"github.com/shopzone/shopzone-backend/pkg/enums"
	pkgerrors "github.com/shopzone/shopzone-backend/pkg/errors"
	"github.com/shopzone/shopzone-backend/pkg/logger"
	pkgredis "github.com/shopzone/shopzone-backend/pkg/redis"
	"github.com/shopzone/shopzone-backend/pkg/security"
)

const (
	otpCodeLength     = 6
	minPasswordLength = 8
)

var phonePattern = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// UserRepository persists users and their OTP challenges.
type UserRepository interface {
	WithTx(tx *gorm.DB) UserRepository
	FindUserByPhone(ctx context.Context, phone string) (*models.User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error
	CreateOTP(ctx context.Context, otp *models.OTP) error
	FindOTPByKey(ctx context.Context, key uuid.UUID) (*models.OTP, error)
	FindOTPByToken(ctx context.Context, token uuid.UUID) (*models.OTP, error)
	IncrementOTPAttempts(ctx context.Context, id uuid.UUID) error
	DeleteOTPsForUser(ctx context.Context, userID uuid.UUID) error
	CountOTPsIssuedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error)
}

// SessionStore keeps refresh token sessions. pkg/redis satisfies it.
type SessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	RefreshKey(token string) string
}

// Service covers the account lifecycle: registration, OTP verification,
// login, token refresh and password management.
type Service interface {
	Register(ctx context.Context, phone, password string) (*OTPChallenge, error)
	VerifyOTP(ctx context.Context, otpKey uuid.UUID, code string) error
	Login(ctx context.Context, phone, password string) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error
	RequestPasswordReset(ctx context.Context, phone string) (*OTPChallenge, error)
	VerifyPasswordResetOTP(ctx context.Context, otpKey uuid.UUID, code string) (uuid.UUID, error)
	ResetPassword(ctx context.Context, otpToken uuid.UUID, newPassword string) error
	ResendOTP(ctx context.Context, otpKey uuid.UUID) (*OTPChallenge, error)
}

type service struct {
	repo     UserRepository
	tx       txRunner
	sender   OTPSender
	sessions SessionStore
	jwtCfg   config.JWTConfig
	pwCfg    config.PasswordConfig
	otpCfg   config.OTPConfig
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the auth service backed by the provided stack.
func NewService(repo UserRepository, tx txRunner, sender OTPSender, sessions SessionStore, jwtCfg config.JWTConfig, pwCfg config.PasswordConfig, otpCfg config.OTPConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if sender == nil {
		return nil, fmt.Errorf("otp sender required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		sender:   sender,
		sessions: sessions,
		jwtCfg:   jwtCfg,
		pwCfg:    pwCfg,
		otpCfg:   otpCfg,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// Register creates or refreshes an unverified account and issues an OTP.
// A phone already bound to a verified account is rejected.
func (s *service) Register(ctx context.Context, phone, password string) (*OTPChallenge, error) {
	if err := validatePhone(phone); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := security.HashPassword(password, s.pwCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user, err := s.repo.FindUserByPhone(ctx, phone)
	switch {
	case err == nil && user.IsVerified:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user already exists")
	case err == nil:
		// Unverified re-registration replaces the pending credentials.
		user.PasswordHash = hash
		if err := s.repo.UpdateUser(ctx, user); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user")
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = &models.User{
			Phone:        phone,
			PasswordHash: hash,
			Role:         enums.UserRoleUser,
		}
		if err := s.repo.CreateUser(ctx, user); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
		}
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	otp, err := s.issueOTP(ctx, user)
	if err != nil {
		return nil, err
	}
	return &OTPChallenge{OTPKey: otp.Key}, nil
}

// VerifyOTP checks the registration code and marks the account verified.
func (s *service) VerifyOTP(ctx context.Context, otpKey uuid.UUID, code string) error {
	otp, err := s.loadChallenge(ctx, otpKey)
	if err != nil {
		return err
	}
	if err := s.checkCode(ctx, otp, code); err != nil {
		return err
	}

	user, err := s.repo.FindUserByID(ctx, otp.UserID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		user.IsVerified = true
		if err := repo.UpdateUser(ctx, user); err != nil {
			return fmt.Errorf("mark verified: %w", err)
		}
		if err := repo.DeleteOTPsForUser(ctx, user.ID); err != nil {
			return fmt.Errorf("clear otps: %w", err)
		}
		return nil
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify otp")
	}
	return nil
}

// Login checks credentials against a verified account and issues tokens.
// Unknown and unverified phones are indistinguishable to the caller.
func (s *service) Login(ctx context.Context, phone, password string) (*TokenPair, error) {
	if phone == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phone and password are required")
	}

	user, err := s.repo.FindUserByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "User not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if !user.IsVerified {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "User not found")
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid credentials")
	}

	return s.issueTokens(ctx, user)
}

// Refresh rotates a refresh token for a new token pair.
func (s *service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refresh token is required")
	}

	key := s.sessions.RefreshKey(refreshToken)
	stored, err := s.sessions.Get(ctx, key)
	if err != nil {
		if errors.Is(err, pkgredis.ErrCacheMiss) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session")
	}
	userID, err := uuid.Parse(stored)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
	}

	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	// Rotation: the old token is gone before the new pair is handed out.
	if err := s.sessions.Del(ctx, key); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return s.issueTokens(ctx, user)
}

// ChangePassword swaps the password for an authenticated user.
func (s *service) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "User not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	ok, err := security.VerifyPassword(oldPassword, user.PasswordHash)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid credentials")
	}

	hash, err := security.HashPassword(newPassword, s.pwCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	user.PasswordHash = hash
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user")
	}
	return nil
}

// RequestPasswordReset issues an OTP challenge for a verified account.
func (s *service) RequestPasswordReset(ctx context.Context, phone string) (*OTPChallenge, error) {
	if err := validatePhone(phone); err != nil {
		return nil, err
	}

	user, err := s.repo.FindUserByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "User not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if !user.IsVerified {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "User not found")
	}

	otp, err := s.issueOTP(ctx, user)
	if err != nil {
		return nil, err
	}
	return &OTPChallenge{OTPKey: otp.Key}, nil
}

// VerifyPasswordResetOTP checks the reset code and releases the one-time
// token that authorizes the actual password change.
func (s *service) VerifyPasswordResetOTP(ctx context.Context, otpKey uuid.UUID, code string) (uuid.UUID, error) {
	otp, err := s.loadChallenge(ctx, otpKey)
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.checkCode(ctx, otp, code); err != nil {
		return uuid.Nil, err
	}
	return otp.Token, nil
}

// ResetPassword consumes a reset token and replaces the password.
func (s *service) ResetPassword(ctx context.Context, otpToken uuid.UUID, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	otp, err := s.repo.FindOTPByToken(ctx, otpToken)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid otp token")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load otp")
	}
	if s.expired(otp) {
		return pkgerrors.New(pkgerrors.CodeValidation, "otp expired")
	}

	user, err := s.repo.FindUserByID(ctx, otp.UserID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	hash, err := security.HashPassword(newPassword, s.pwCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		user.PasswordHash = hash
		if err := repo.UpdateUser(ctx, user); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if err := repo.DeleteOTPsForUser(ctx, user.ID); err != nil {
			return fmt.Errorf("clear otps: %w", err)
		}
		return nil
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset password")
	}
	return nil
}

// ResendOTP issues a fresh challenge for a still-pending one. The issue
// window limit applies across the original and every resend.
func (s *service) ResendOTP(ctx context.Context, otpKey uuid.UUID) (*OTPChallenge, error) {
	otp, err := s.repo.FindOTPByKey(ctx, otpKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid otp key")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load otp")
	}

	user, err := s.repo.FindUserByID(ctx, otp.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	fresh, err := s.issueOTP(ctx, user)
	if err != nil {
		return nil, err
	}
	return &OTPChallenge{OTPKey: fresh.Key}, nil
}

func (s *service) issueOTP(ctx context.Context, user *models.User) (*models.OTP, error) {
	since := s.now().Add(-s.otpCfg.IssueWindow)
	issued, err := s.repo.CountOTPsIssuedSince(ctx, user.ID, since)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count otps")
	}
	if issued >= int64(s.otpCfg.MaxIssued) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "too many attempts")
	}

	code, err := security.GenerateNumericCode(otpCodeLength)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate otp code")
	}
	otp := &models.OTP{UserID: user.ID, Code: code}
	if err := s.repo.CreateOTP(ctx, otp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create otp")
	}

	if err := s.sender.SendOTP(ctx, user.Phone, code); err != nil {
		// Delivery is best effort; the challenge stays valid for a resend.
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "otp.send_failed")
		}
	}
	return otp, nil
}

func (s *service) loadChallenge(ctx context.Context, otpKey uuid.UUID) (*models.OTP, error) {
	otp, err := s.repo.FindOTPByKey(ctx, otpKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid otp key")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load otp")
	}
	if s.expired(otp) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "otp expired")
	}
	if otp.Attempts >= s.otpCfg.MaxVerifyTries {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "too many attempts")
	}
	return otp, nil
}

func (s *service) checkCode(ctx context.Context, otp *models.OTP, code string) error {
	if subtle.ConstantTimeCompare([]byte(otp.Code), []byte(code)) == 1 {
		return nil
	}
	if err := s.repo.IncrementOTPAttempts(ctx, otp.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record otp attempt")
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid otp code")
}

func (s *service) expired(otp *models.OTP) bool {
	return s.now().After(otp.CreatedAt.Add(s.otpCfg.TTL))
}

func (s *service) issueTokens(ctx context.Context, user *models.User) (*TokenPair, error) {
	access, err := pkgauth.MintAccessToken(s.jwtCfg, s.now(), pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	refresh := uuid.NewString()
	key := s.sessions.RefreshKey(refresh)
	if err := s.sessions.Set(ctx, key, user.ID.String(), s.jwtCfg.RefreshTokenTTL()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store session")
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.jwtCfg.ExpirationMinutes) * 60,
	}, nil
}

func validatePhone(phone string) error {
	if phone == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "phone is required")
	}
	if !phonePattern.MatchString(phone) {
		return pkgerrors.New(pkgerrors.CodeValidation, "phone must be in E.164 format")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}
	return nil
}
