package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopzone/shopzone-backend/pkg/config"
	"github.com/shopzone/shopzone-backend/pkg/db/models"
	pkgerrors "github.com/shopzone/shopzone-backend/pkg/errors"
	pkgredis "github.com/shopzone/shopzone-backend/pkg/redis"
)

const testPhone = "+15550001111"

func TestRegisterIssuesChallenge(t *testing.T) {
	env := newAuthEnv(t)

	challenge, err := env.svc.Register(context.Background(), testPhone, "hunter2hunter2")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if challenge.OTPKey == uuid.Nil {
		t.Fatal("expected otp key")
	}
	if len(env.sender.sent) != 1 {
		t.Fatalf("expected 1 otp sent, got %d", len(env.sender.sent))
	}
	if got := len(env.sender.sent[0].code); got != otpCodeLength {
		t.Fatalf("expected %d-digit code, got %d", otpCodeLength, got)
	}

	user := env.repo.userByPhone(testPhone)
	if user == nil || user.IsVerified {
		t.Fatalf("expected unverified user, got %+v", user)
	}
}

func TestRegisterRejectsMalformedInput(t *testing.T) {
	env := newAuthEnv(t)

	if _, err := env.svc.Register(context.Background(), "555-0111", "hunter2hunter2"); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for phone, got %v", err)
	}
	if _, err := env.svc.Register(context.Background(), testPhone, "short"); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for password, got %v", err)
	}
}

func TestRegisterRejectsVerifiedPhone(t *testing.T) {
	env := newAuthEnv(t)
	env.registerVerified(t, testPhone, "hunter2hunter2")

	_, err := env.svc.Register(context.Background(), testPhone, "another-password")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if typed.Message() != "user already exists" {
		t.Fatalf("unexpected message %q", typed.Message())
	}
}

func TestOTPIssueWindowLimit(t *testing.T) {
	env := newAuthEnv(t)

	challenge, err := env.svc.Register(context.Background(), testPhone, "hunter2hunter2")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if challenge, err = env.svc.ResendOTP(context.Background(), challenge.OTPKey); err != nil {
			t.Fatalf("resend %d failed: %v", i, err)
		}
	}

	_, err = env.svc.ResendOTP(context.Background(), challenge.OTPKey)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if typed.Message() != "too many attempts" {
		t.Fatalf("unexpected message %q", typed.Message())
	}

	// Outside the window the issue limit resets.
	env.advance(13 * time.Hour)
	if _, err := env.svc.ResendOTP(context.Background(), challenge.OTPKey); err != nil {
		t.Fatalf("expected resend after window, got %v", err)
	}
}

func TestVerifyOTPMarksUserVerified(t *testing.T) {
	env := newAuthEnv(t)
	challenge, err := env.svc.Register(context.Background(), testPhone, "hunter2hunter2")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if err := env.svc.VerifyOTP(context.Background(), challenge.OTPKey, env.sender.lastCode()); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	user := env.repo.userByPhone(testPhone)
	if user == nil || !user.IsVerified {
		t.Fatalf("expected verified user, got %+v", user)
	}
	if got := env.repo.otpCountForUser(user.ID); got != 0 {
		t.Fatalf("expected challenges cleared, got %d", got)
	}
}

func TestVerifyOTPWrongCodeBurnsAttempts(t *testing.T) {
	env := newAuthEnv(t)
	challenge, err := env.svc.Register(context.Background(), testPhone, "hunter2hunter2")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		err := env.svc.VerifyOTP(context.Background(), challenge.OTPKey, "000000")
		typed := pkgerrors.As(err)
		if typed == nil || typed.Message() != "invalid otp code" {
			t.Fatalf("attempt %d: expected invalid code, got %v", i, err)
		}
	}

	// The correct code no longer helps once the attempts are spent.
	err = env.svc.VerifyOTP(context.Background(), challenge.OTPKey, env.sender.lastCode())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Message() != "too many attempts" {
		t.Fatalf("expected attempts exhausted, got %v", err)
	}
}

func TestVerifyOTPExpires(t *testing.T) {
	env := newAuthEnv(t)
	challenge, err := env.svc.Register(context.Background(), testPhone, "hunter2hunter2")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	env.advance(4 * time.Minute)
	err = env.svc.VerifyOTP(context.Background(), challenge.OTPKey, env.sender.lastCode())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Message() != "otp expired" {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestLoginUnknownAndUnverifiedLookAlike(t *testing.T) {
	env := newAuthEnv(t)
	if _, err := env.svc.Register(context.Background(), testPhone, "hunter2hunter2"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	for _, phone := range []string{testPhone, "+15559998888"} {
		_, err := env.svc.Login(context.Background(), phone, "hunter2hunter2")
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
			t.Fatalf("phone %s: expected not found, got %v", phone, err)
		}
		if typed.Message() != "User not found" {
			t.Fatalf("unexpected message %q", typed.Message())
		}
	}
}

func TestLoginIssuesTokenPair(t *testing.T) {
	env := newAuthEnv(t)
	env.registerVerified(t, testPhone, "hunter2hunter2")

	pair, err := env.svc.Login(context.Background(), testPhone, "hunter2hunter2")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", pair)
	}
	if pair.ExpiresIn != 30*60 {
		t.Fatalf("expected 1800s expiry, got %d", pair.ExpiresIn)
	}
	if _, ok := env.sessions.values["refresh_"+pair.RefreshToken]; !ok {
		t.Fatal("expected refresh session stored")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newAuthEnv(t)
	env.registerVerified(t, testPhone, "hunter2hunter2")

	_, err := env.svc.Login(context.Background(), testPhone, "not-the-password")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if typed.Message() != "invalid credentials" {
		t.Fatalf("unexpected message %q", typed.Message())
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	env := newAuthEnv(t)
	env.registerVerified(t, testPhone, "hunter2hunter2")
	pair, err := env.svc.Login(context.Background(), testPhone, "hunter2hunter2")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	next, err := env.svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatal("expected a rotated refresh token")
	}

	_, err = env.svc.Refresh(context.Background(), pair.RefreshToken)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected spent token rejected, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	env := newAuthEnv(t)
	env.registerVerified(t, testPhone, "hunter2hunter2")
	user := env.repo.userByPhone(testPhone)

	if err := env.svc.ChangePassword(context.Background(), user.ID, "wrong-old-pass", "a-new-password"); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatal("expected wrong old password rejected")
	}
	if err := env.svc.ChangePassword(context.Background(), user.ID, "hunter2hunter2", "a-new-password"); err != nil {
		t.Fatalf("change password failed: %v", err)
	}
	if _, err := env.svc.Login(context.Background(), testPhone, "a-new-password"); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	env := newAuthEnv(t)
	env.registerVerified(t, testPhone, "hunter2hunter2")

	challenge, err := env.svc.RequestPasswordReset(context.Background(), testPhone)
	if err != nil {
		t.Fatalf("request reset failed: %v", err)
	}

	token, err := env.svc.VerifyPasswordResetOTP(context.Background(), challenge.OTPKey, env.sender.lastCode())
	if err != nil {
		t.Fatalf("verify reset otp failed: %v", err)
	}
	if token == uuid.Nil {
		t.Fatal("expected reset token")
	}

	if err := env.svc.ResetPassword(context.Background(), token, "a-new-password"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if _, err := env.svc.Login(context.Background(), testPhone, "a-new-password"); err != nil {
		t.Fatalf("login with reset password failed: %v", err)
	}

	// Token is single use.
	if err := env.svc.ResetPassword(context.Background(), token, "yet-another-pass"); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatal("expected spent reset token rejected")
	}
}

func TestRequestPasswordResetUnknownPhone(t *testing.T) {
	env := newAuthEnv(t)

	_, err := env.svc.RequestPasswordReset(context.Background(), testPhone)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

type authEnv struct {
	svc      Service
	repo     *fakeUserRepo
	sender   *recordingSender
	sessions *fakeSessionStore
	clock    *time.Time
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()
	repo := newFakeUserRepo()
	sender := &recordingSender{}
	sessions := newFakeSessionStore()

	jwtCfg := config.JWTConfig{
		Secret:                 "test-secret-test-secret-test-secret",
		Issuer:                 "shopzone-test",
		ExpirationMinutes:      30,
		RefreshTokenTTLMinutes: 60,
	}
	otpCfg := config.OTPConfig{
		TTL:            3 * time.Minute,
		MaxVerifyTries: 3,
		MaxIssued:      3,
		IssueWindow:    12 * time.Hour,
	}

	svc, err := NewService(repo, fakeTxRunner{}, sender, sessions, jwtCfg, config.PasswordConfig{}, otpCfg, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	now := time.Now()
	impl := svc.(*service)
	impl.now = func() time.Time { return now }
	env := &authEnv{svc: svc, repo: repo, sender: sender, sessions: sessions, clock: &now}
	repo.now = func() time.Time { return *env.clock }
	return env
}

func (e *authEnv) advance(d time.Duration) {
	*e.clock = e.clock.Add(d)
}

func (e *authEnv) registerVerified(t *testing.T, phone, password string) {
	t.Helper()
	challenge, err := e.svc.Register(context.Background(), phone, password)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := e.svc.VerifyOTP(context.Background(), challenge.OTPKey, e.sender.lastCode()); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type sentOTP struct {
	phone string
	code  string
}

type recordingSender struct {
	sent []sentOTP
}

func (r *recordingSender) SendOTP(ctx context.Context, phone, code string) error {
	r.sent = append(r.sent, sentOTP{phone: phone, code: code})
	return nil
}

func (r *recordingSender) lastCode() string {
	if len(r.sent) == 0 {
		return ""
	}
	return r.sent[len(r.sent)-1].code
}

type fakeUserRepo struct {
	users map[uuid.UUID]*models.User
	otps  map[uuid.UUID]*models.OTP
	now   func() time.Time
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users: map[uuid.UUID]*models.User{},
		otps:  map[uuid.UUID]*models.OTP{},
		now:   time.Now,
	}
}

func (f *fakeUserRepo) userByPhone(phone string) *models.User {
	for _, u := range f.users {
		if u.Phone == phone {
			return u
		}
	}
	return nil
}

func (f *fakeUserRepo) otpCountForUser(userID uuid.UUID) int {
	count := 0
	for _, otp := range f.otps {
		if otp.UserID == userID {
			count++
		}
	}
	return count
}

func (f *fakeUserRepo) WithTx(tx *gorm.DB) UserRepository { return f }

func (f *fakeUserRepo) FindUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	if u := f.userByPhone(phone); u != nil {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) UpdateUser(ctx context.Context, user *models.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) CreateOTP(ctx context.Context, otp *models.OTP) error {
	if otp.ID == uuid.Nil {
		otp.ID = uuid.New()
	}
	if otp.Key == uuid.Nil {
		otp.Key = uuid.New()
	}
	if otp.Token == uuid.Nil {
		otp.Token = uuid.New()
	}
	otp.CreatedAt = f.now()
	f.otps[otp.ID] = otp
	return nil
}

func (f *fakeUserRepo) FindOTPByKey(ctx context.Context, key uuid.UUID) (*models.OTP, error) {
	for _, otp := range f.otps {
		if otp.Key == key {
			return otp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) FindOTPByToken(ctx context.Context, token uuid.UUID) (*models.OTP, error) {
	for _, otp := range f.otps {
		if otp.Token == token {
			return otp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) IncrementOTPAttempts(ctx context.Context, id uuid.UUID) error {
	if otp, ok := f.otps[id]; ok {
		otp.Attempts++
	}
	return nil
}

func (f *fakeUserRepo) DeleteOTPsForUser(ctx context.Context, userID uuid.UUID) error {
	for id, otp := range f.otps {
		if otp.UserID == userID {
			delete(f.otps, id)
		}
	}
	return nil
}

func (f *fakeUserRepo) CountOTPsIssuedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	for _, otp := range f.otps {
		if otp.UserID == userID && !otp.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

type fakeSessionStore struct {
	values map[string]string
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{values: map[string]string{}}
}

func (f *fakeSessionStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	f.values[key] = value.(string)
	return nil
}

func (f *fakeSessionStore) Get(ctx context.Context, key string) (string, error) {
	if v, ok := f.values[key]; ok {
		return v, nil
	}
	return "", pkgredis.ErrCacheMiss
}

func (f *fakeSessionStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func (f *fakeSessionStore) RefreshKey(token string) string { return "refresh_" + token }
