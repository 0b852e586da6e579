package usecase

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expensetrack/expensetrack/application/port/inbound"
	"github.com/expensetrack/expensetrack/application/port/outbound"
	"github.com/expensetrack/expensetrack/domain/entity"
	domainerr "github.com/expensetrack/expensetrack/domain/error"
	"github.com/expensetrack/expensetrack/infrastructure/adapter/memory"
	"github.com/expensetrack/expensetrack/infrastructure/config"
	"github.com/expensetrack/expensetrack/infrastructure/service/jwt"
	"github.com/expensetrack/expensetrack/infrastructure/service/logger"
	"github.com/expensetrack/expensetrack/infrastructure/service/password"
	"github.com/expensetrack/expensetrack/infrastructure/service/ratelimit"
)

const testPassword = "Secr3t!pass"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testLogger struct{}

func (l *testLogger) Info(ctx context.Context, message string, fields map[string]interface{}) {}
func (l *testLogger) Error(ctx context.Context, message string, err error, fields map[string]interface{}) {
}
func (l *testLogger) Warn(ctx context.Context, message string, fields map[string]interface{})  {}
func (l *testLogger) Debug(ctx context.Context, message string, fields map[string]interface{}) {}
func (l *testLogger) WithFields(fields map[string]interface{}) logger.Logger                   { return l }

type captureNotifier struct {
	mu    sync.Mutex
	links []string
	err   error
}

func (n *captureNotifier) SendPasswordReset(ctx context.Context, email, link string, expiresAt time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.links = append(n.links, link)
	return n.err
}

func (n *captureNotifier) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.links) == 0 {
		return ""
	}
	return n.links[len(n.links)-1]
}

type failingRegistry struct{}

func (failingRegistry) Revoke(ctx context.Context, token *entity.RevokedToken) error {
	return errors.New("registry down")
}
func (failingRegistry) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	return false, errors.New("registry down")
}
func (failingRegistry) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, errors.New("registry down")
}

type fixture struct {
	clock    *testClock
	db       *memory.DB
	tokens   *jwt.JWTService
	auth     *AuthUseCase
	reset    *PasswordResetUseCase
	notifier *captureNotifier
	user     *entity.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithRegistry(t, nil)
}

func newFixtureWithRegistry(t *testing.T, registry outbound.RevocationRegistry) *fixture {
	t.Helper()

	clock := newTestClock()
	db := memory.NewWithClock(clock.Now)
	if registry == nil {
		registry = db.Revocations()
	}

	tokens, err := jwt.NewJWTService(&config.Config{
		JWTSecret:      "0123456789abcdef0123456789abcdef",
		JWTIssuer:      "expensetrack",
		AccessTokenTTL: 15 * time.Minute,
	}, jwt.WithClock(clock.Now))
	require.NoError(t, err)

	passwords := password.NewBcryptPasswordService(4)
	hash, err := passwords.HashPassword(testPassword)
	require.NoError(t, err)

	user := entity.NewUser("Ann Lee", "ann@example.com", "ann", "5550100", hash, entity.RoleUser)
	require.NoError(t, db.Users().Create(context.Background(), user))

	log := &testLogger{}
	notifier := &captureNotifier{}

	auth := NewAuthUseCase(
		db.Users(),
		db.RefreshTokens(),
		registry,
		tokens,
		passwords,
		ratelimit.NewNoopRateLimitService(),
		log,
		AuthConfig{
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 30 * 24 * time.Hour,
			Now:             clock.Now,
		},
	)
	reset := NewPasswordResetUseCase(
		db.Users(),
		db.ResetTokens(),
		db.RefreshTokens(),
		tokens,
		passwords,
		notifier,
		log,
		PasswordResetConfig{
			TokenTTL:    entity.PasswordResetTTL,
			LinkBaseURL: "https://app.example.com/reset",
			Now:         clock.Now,
		},
	)

	return &fixture{
		clock:    clock,
		db:       db,
		tokens:   tokens,
		auth:     auth,
		reset:    reset,
		notifier: notifier,
		user:     user,
	}
}

func (f *fixture) login(t *testing.T) *inbound.LoginResponse {
	t.Helper()
	resp, err := f.auth.Login(context.Background(), inbound.LoginRequest{Identifier: "ann@example.com", Password: testPassword})
	require.NoError(t, err)
	return resp
}

func assertCode(t *testing.T, err error, code domainerr.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	appErr := domainerr.AsAppError(err)
	assert.Equal(t, code, appErr.Code, "unexpected error: %v", err)
}

func TestLogin_IdentifierKinds(t *testing.T) {
	f := newFixture(t)

	for _, identifier := range []string{"ann@example.com", "ANN@example.com", "ann", "5550100"} {
		t.Run(identifier, func(t *testing.T) {
			resp, err := f.auth.Login(context.Background(), inbound.LoginRequest{Identifier: identifier, Password: testPassword})
			require.NoError(t, err)
			assert.NotEmpty(t, resp.AccessToken)
			assert.NotEmpty(t, resp.RefreshToken)
			assert.Equal(t, "Bearer", resp.TokenType)
			assert.Equal(t, 900, resp.ExpiresIn)
			assert.Equal(t, 30*24*3600, resp.RefreshExpiresIn)
			assert.Equal(t, f.user.ID, resp.User.ID)
			assert.Equal(t, "USER", resp.User.Role)
		})
	}
}

func TestLogin_EmailAlias(t *testing.T) {
	f := newFixture(t)

	resp, err := f.auth.Login(context.Background(), inbound.LoginRequest{Email: "ann@example.com", Password: testPassword})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, unknownErr := f.auth.Login(ctx, inbound.LoginRequest{Identifier: "nobody@example.com", Password: testPassword})
	_, wrongErr := f.auth.Login(ctx, inbound.LoginRequest{Identifier: "ann@example.com", Password: "Wrong!pass1"})

	assertCode(t, unknownErr, domainerr.ErrCodeInvalidCredentials)
	assertCode(t, wrongErr, domainerr.ErrCodeInvalidCredentials)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
}

func TestLogin_MissingFields(t *testing.T) {
	f := newFixture(t)

	_, err := f.auth.Login(context.Background(), inbound.LoginRequest{Password: testPassword})
	assertCode(t, err, domainerr.ErrCodeMissingField)

	_, err = f.auth.Login(context.Background(), inbound.LoginRequest{Identifier: "ann"})
	assertCode(t, err, domainerr.ErrCodeMissingField)
}

func TestLogin_ReplacesPreviousRefreshToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.login(t)
	f.clock.Advance(time.Second)
	second := f.login(t)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err := f.auth.Refresh(ctx, inbound.RefreshRequest{RefreshToken: first.RefreshToken})
	assertCode(t, err, domainerr.ErrCodeInvalidRefreshToken)

	_, err = f.auth.Refresh(ctx, inbound.RefreshRequest{RefreshToken: second.RefreshToken})
	assert.NoError(t, err)
}

func TestRefresh_IssuesNewAccessTokenWithoutRotation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.login(t)

	f.clock.Advance(time.Minute)
	resp, err := f.auth.Refresh(ctx, inbound.RefreshRequest{RefreshToken: session.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, session.AccessToken, resp.AccessToken)
	assert.Equal(t, 900, resp.ExpiresIn)

	claims, err := f.tokens.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, claims.UserID)

	_, err = f.auth.Refresh(ctx, inbound.RefreshRequest{RefreshToken: session.RefreshToken})
	assert.NoError(t, err, "refresh token stays valid after use")
}

func TestRefresh_Expiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.login(t)

	f.clock.Advance(30*24*time.Hour - time.Second)
	_, err := f.auth.Refresh(ctx, inbound.RefreshRequest{RefreshToken: session.RefreshToken})
	require.NoError(t, err)

	f.clock.Advance(time.Second)
	_, err = f.auth.Refresh(ctx, inbound.RefreshRequest{RefreshToken: session.RefreshToken})
	assertCode(t, err, domainerr.ErrCodeInvalidRefreshToken)
}

func TestRefresh_UnknownAndEmpty(t *testing.T) {
	f := newFixture(t)

	_, err := f.auth.Refresh(context.Background(), inbound.RefreshRequest{RefreshToken: "nope"})
	assertCode(t, err, domainerr.ErrCodeInvalidRefreshToken)

	_, err = f.auth.Refresh(context.Background(), inbound.RefreshRequest{})
	assertCode(t, err, domainerr.ErrCodeMissingField)
}

func TestLogout_RevokesAccessAndRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.login(t)

	identity, err := f.auth.Authenticate(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, identity.UserID)
	assert.Equal(t, "ann@example.com", identity.Email)
	assert.Equal(t, "USER", identity.Role)

	require.NoError(t, f.auth.Logout(ctx, inbound.LogoutRequest{AccessToken: session.AccessToken}))

	_, err = f.auth.Authenticate(ctx, session.AccessToken)
	assertCode(t, err, domainerr.ErrCodeTokenRevoked)
	assert.Equal(t, http.StatusUnauthorized, domainerr.GetHTTPStatusCode(err))

	_, err = f.auth.Refresh(ctx, inbound.RefreshRequest{RefreshToken: session.RefreshToken})
	assertCode(t, err, domainerr.ErrCodeInvalidRefreshToken)
}

func TestLogout_RevokedUntilNaturalExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.login(t)
	require.NoError(t, f.auth.Logout(ctx, inbound.LogoutRequest{AccessToken: session.AccessToken}))

	tokenID, err := f.tokens.PeekTokenID(session.AccessToken)
	require.NoError(t, err)

	f.clock.Advance(15*time.Minute - time.Second)
	revoked, err := f.db.Revocations().IsRevoked(ctx, tokenID)
	require.NoError(t, err)
	assert.True(t, revoked)

	f.clock.Advance(time.Second)
	revoked, err = f.db.Revocations().IsRevoked(ctx, tokenID)
	require.NoError(t, err)
	assert.False(t, revoked)

	_, err = f.auth.Authenticate(ctx, session.AccessToken)
	assertCode(t, err, domainerr.ErrCodeTokenExpired)
}

func TestLogout_InvalidToken(t *testing.T) {
	f := newFixture(t)

	err := f.auth.Logout(context.Background(), inbound.LogoutRequest{AccessToken: "garbage"})
	assertCode(t, err, domainerr.ErrCodeInvalidToken)

	err = f.auth.Logout(context.Background(), inbound.LogoutRequest{})
	assertCode(t, err, domainerr.ErrCodeAuthenticationRequired)
}

func TestLogout_IsIdempotentForTheRegistry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.login(t)

	require.NoError(t, f.auth.Logout(ctx, inbound.LogoutRequest{AccessToken: session.AccessToken}))
	require.NoError(t, f.auth.Logout(ctx, inbound.LogoutRequest{AccessToken: session.AccessToken}))
}

func TestAuthenticate_ExpiryWins(t *testing.T) {
	f := newFixture(t)
	session := f.login(t)

	f.clock.Advance(15 * time.Minute)
	_, err := f.auth.Authenticate(context.Background(), session.AccessToken)
	assertCode(t, err, domainerr.ErrCodeTokenExpired)
}

func TestAuthenticate_Malformed(t *testing.T) {
	f := newFixture(t)

	_, err := f.auth.Authenticate(context.Background(), "not.a.token")
	assertCode(t, err, domainerr.ErrCodeInvalidToken)
}

func TestAuthenticate_RegistryFailureIsNotSwallowed(t *testing.T) {
	f := newFixtureWithRegistry(t, failingRegistry{})
	session := f.login(t)

	_, err := f.auth.Authenticate(context.Background(), session.AccessToken)
	assertCode(t, err, domainerr.ErrCodeDatabaseError)
	assert.Equal(t, http.StatusServiceUnavailable, domainerr.GetHTTPStatusCode(err))
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.auth.Register(ctx, inbound.RegisterRequest{
		Name:     "Bo Chan",
		Email:    "Bo@Example.com",
		Username: "bo",
		Password: testPassword,
	})
	require.NoError(t, err)
	assert.Equal(t, "bo@example.com", resp.User.Email)
	assert.Equal(t, "USER", resp.User.Role)
	assert.NotEmpty(t, resp.RefreshToken)

	_, err = f.auth.Login(ctx, inbound.LoginRequest{Identifier: "bo", Password: testPassword})
	require.NoError(t, err)

	_, err = f.auth.Register(ctx, inbound.RegisterRequest{Name: "Dup", Email: "bo@example.com", Password: testPassword})
	assertCode(t, err, domainerr.ErrCodeAccountExists)
	assert.Equal(t, http.StatusConflict, domainerr.GetHTTPStatusCode(err))
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.Register(ctx, inbound.RegisterRequest{Email: "x@example.com", Password: testPassword})
	assertCode(t, err, domainerr.ErrCodeMissingField)

	_, err = f.auth.Register(ctx, inbound.RegisterRequest{Name: "X", Email: "not-an-email", Password: testPassword})
	assertCode(t, err, domainerr.ErrCodeInvalidEmail)

	_, err = f.auth.Register(ctx, inbound.RegisterRequest{Name: "X", Email: "x@example.com", Password: "weakpass"})
	assertCode(t, err, domainerr.ErrCodeInvalidPassword)
}

func TestMe(t *testing.T) {
	f := newFixture(t)

	summary, err := f.auth.Me(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee", summary.Name)
	assert.Equal(t, "ann", summary.Username)

	_, err = f.auth.Me(context.Background(), 999)
	assertCode(t, err, domainerr.ErrCodeUserNotFound)
}

func TestCheckEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.auth.CheckEmail(ctx, "ANN@example.com")
	require.NoError(t, err)
	assert.True(t, resp.Exists)

	resp, err = f.auth.CheckEmail(ctx, "other@example.com")
	require.NoError(t, err)
	assert.False(t, resp.Exists)

	_, err = f.auth.CheckEmail(ctx, "nope")
	assertCode(t, err, domainerr.ErrCodeInvalidEmail)
}

type countingLimiter struct {
	inbound.RateLimitService
	mu       sync.Mutex
	attempts map[string]int
	blocked  map[string]bool
}

func newCountingLimiter() *countingLimiter {
	return &countingLimiter{attempts: map[string]int{}, blocked: map[string]bool{}}
}

func (l *countingLimiter) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts[key] < limit, nil
}

func (l *countingLimiter) Increment(ctx context.Context, key string, window time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts[key]++
	return nil
}

func (l *countingLimiter) Block(ctx context.Context, key string, duration time.Duration, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.blocked[key] = true
	return nil
}

func (l *countingLimiter) IsBlocked(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.blocked[key], nil
}

func (l *countingLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, key)
	return nil
}

func TestLogin_ThrottlesRepeatedFailures(t *testing.T) {
	f := newFixture(t)
	limiter := newCountingLimiter()
	f.auth.rateLimitService = limiter
	f.auth.cfg.IPAttempts = 3

	ctx := inbound.WithClientIP(context.Background(), "10.0.0.1")
	for i := 0; i < 3; i++ {
		_, err := f.auth.Login(ctx, inbound.LoginRequest{Identifier: "ann", Password: "Wrong!pass1"})
		assertCode(t, err, domainerr.ErrCodeInvalidCredentials)
	}

	_, err := f.auth.Login(ctx, inbound.LoginRequest{Identifier: "ann", Password: testPassword})
	assertCode(t, err, domainerr.ErrCodeTooManyAttempts)
	assert.Equal(t, http.StatusTooManyRequests, domainerr.GetHTTPStatusCode(err))

	other := inbound.WithClientIP(context.Background(), "10.0.0.2")
	_, err = f.auth.Login(other, inbound.LoginRequest{Identifier: "ann", Password: testPassword})
	assert.NoError(t, err)
}

func TestConcurrentLoginsLeaveOneRefreshToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		sessions []string
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.auth.Login(ctx, inbound.LoginRequest{Identifier: "ann", Password: testPassword})
			if err != nil {
				return
			}
			mu.Lock()
			sessions = append(sessions, resp.RefreshToken)
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, sessions, 8)

	valid := 0
	for _, token := range sessions {
		if _, err := f.auth.Refresh(ctx, inbound.RefreshRequest{RefreshToken: token}); err == nil {
			valid++
		}
	}
	assert.Equal(t, 1, valid)
}

// racingRefreshRepo reports the first n writes as superseded by a
// concurrent issue, then stores normally.
type racingRefreshRepo struct {
	outbound.RefreshTokenRepository
	mu    sync.Mutex
	lose  int
	calls int
}

func (r *racingRefreshRepo) IssueFor(ctx context.Context, token *entity.RefreshToken) error {
	r.mu.Lock()
	r.calls++
	lost := r.calls <= r.lose
	r.mu.Unlock()
	if lost {
		return outbound.ErrRefreshTokenSuperseded
	}
	return r.RefreshTokenRepository.IssueFor(ctx, token)
}

func TestLogin_RetriesSupersededIssue(t *testing.T) {
	f := newFixture(t)
	repo := &racingRefreshRepo{RefreshTokenRepository: f.db.RefreshTokens(), lose: 1}
	f.auth.refreshTokenRepository = repo
	ctx := context.Background()

	resp, err := f.auth.Login(ctx, inbound.LoginRequest{Identifier: "ann", Password: testPassword})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)

	_, err = f.auth.Refresh(ctx, inbound.RefreshRequest{RefreshToken: resp.RefreshToken})
	assert.NoError(t, err)
}

func TestLogin_SupersededTwiceSurfacesConflict(t *testing.T) {
	f := newFixture(t)
	repo := &racingRefreshRepo{RefreshTokenRepository: f.db.RefreshTokens(), lose: 2}
	f.auth.refreshTokenRepository = repo

	_, err := f.auth.Login(context.Background(), inbound.LoginRequest{Identifier: "ann", Password: testPassword})
	assertCode(t, err, domainerr.ErrCodeSessionSuperseded)
	assert.Equal(t, maxIssueAttempts, repo.calls)
}
