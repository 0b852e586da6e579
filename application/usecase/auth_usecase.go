package usecase

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/expensetrack/expensetrack/application/port/inbound"
	"github.com/expensetrack/expensetrack/application/port/outbound"
	"github.com/expensetrack/expensetrack/domain/entity"
	domainerr "github.com/expensetrack/expensetrack/domain/error"
	"github.com/expensetrack/expensetrack/domain/valueobject"
	"github.com/expensetrack/expensetrack/infrastructure/service/logger"
)

// maxIssueAttempts bounds how often a superseded refresh token write is tried.
const maxIssueAttempts = 2

// AuthConfig holds the session lifetimes and login throttling limits.
type AuthConfig struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	IPAttempts      int
	IPWindow        time.Duration
	UserAttempts    int
	UserWindow      time.Duration
	BlockDuration   time.Duration
	Now             func() time.Time
}

func (c AuthConfig) withDefaults() AuthConfig {
	if c.AccessTokenTTL <= 0 {
		c.AccessTokenTTL = 15 * time.Minute
	}
	if c.RefreshTokenTTL <= 0 {
		c.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.IPAttempts <= 0 {
		c.IPAttempts = 5
	}
	if c.IPWindow <= 0 {
		c.IPWindow = 15 * time.Minute
	}
	if c.UserAttempts <= 0 {
		c.UserAttempts = 10
	}
	if c.UserWindow <= 0 {
		c.UserWindow = time.Hour
	}
	if c.BlockDuration <= 0 {
		c.BlockDuration = 30 * time.Minute
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

type AuthUseCase struct {
	userRepository         outbound.UserRepository
	refreshTokenRepository outbound.RefreshTokenRepository
	revocationRegistry     outbound.RevocationRegistry
	tokenService           outbound.TokenService
	passwordService        outbound.PasswordService
	rateLimitService       inbound.RateLimitService
	logger                 logger.Logger
	cfg                    AuthConfig
}

var _ inbound.AuthUseCase = (*AuthUseCase)(nil)

func NewAuthUseCase(
	userRepo outbound.UserRepository,
	refreshTokenRepo outbound.RefreshTokenRepository,
	revocationRegistry outbound.RevocationRegistry,
	tokenService outbound.TokenService,
	passwordService outbound.PasswordService,
	rateLimitService inbound.RateLimitService,
	log logger.Logger,
	cfg AuthConfig,
) *AuthUseCase {
	return &AuthUseCase{
		userRepository:         userRepo,
		refreshTokenRepository: refreshTokenRepo,
		revocationRegistry:     revocationRegistry,
		tokenService:           tokenService,
		passwordService:        passwordService,
		rateLimitService:       rateLimitService,
		logger:                 log,
		cfg:                    cfg.withDefaults(),
	}
}

func (uc *AuthUseCase) Register(ctx context.Context, req inbound.RegisterRequest) (*inbound.LoginResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domainerr.ErrMissingField("name")
	}
	email, err := valueobject.NormalizeEmail(req.Email)
	if err != nil {
		return nil, domainerr.ErrInvalidEmail(req.Email)
	}
	if err := valueobject.ValidateNewPassword(req.Password); err != nil {
		return nil, domainerr.ErrInvalidPassword(err.Error())
	}

	hash, err := uc.passwordService.HashPassword(req.Password)
	if err != nil {
		uc.logger.Error(ctx, "Failed to hash password", err, nil)
		return nil, domainerr.ErrInternalServerError("", err)
	}

	user := entity.NewUser(name, email, strings.TrimSpace(req.Username), strings.TrimSpace(req.Phone), hash, entity.RoleUser)
	if err := uc.userRepository.Create(ctx, user); err != nil {
		if errors.Is(err, outbound.ErrUserAlreadyExists) {
			logger.LogAuthEvent(ctx, uc.logger, "register_duplicate", 0, inbound.ClientIP(ctx), false, map[string]interface{}{
				"email": email,
			})
			return nil, domainerr.ErrAccountExists(email)
		}
		uc.logger.Error(ctx, "Failed to create user", err, map[string]interface{}{"email": email})
		return nil, domainerr.ErrUserCreationFailed(err)
	}

	resp, err := uc.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}

	logger.LogAuthEvent(ctx, uc.logger, "register_successful", user.ID, inbound.ClientIP(ctx), true, nil)
	return resp, nil
}

// Login accepts an email, username or phone number as identifier. Unknown
// identifiers and wrong passwords produce the same error.
func (uc *AuthUseCase) Login(ctx context.Context, req inbound.LoginRequest) (*inbound.LoginResponse, error) {
	creds, err := valueobject.NewCredentials(req.LoginIdentifier(), req.Password)
	if err != nil {
		logger.LogAuthEvent(ctx, uc.logger, "login_validation_failed", 0, "", false, map[string]interface{}{
			"error": err.Error(),
		})
		if errors.Is(err, valueobject.ErrMissingPassword) {
			return nil, domainerr.ErrMissingField("password")
		}
		return nil, domainerr.ErrMissingField("identifier")
	}

	ip := inbound.ClientIP(ctx)
	ipKey := "ip:" + ip
	if err := uc.checkThrottle(ctx, ipKey, uc.cfg.IPAttempts, uc.cfg.IPWindow); err != nil {
		return nil, err
	}

	user, err := uc.userRepository.FindByIdentifier(ctx, creds.Identifier())
	if err != nil {
		if errors.Is(err, outbound.ErrUserNotFound) {
			uc.recordFailure(ctx, ipKey, uc.cfg.IPWindow)
			logger.LogAuthEvent(ctx, uc.logger, "login_failed_user_not_found", 0, ip, false, map[string]interface{}{
				"identifier": creds.Identifier(),
			})
			return nil, domainerr.ErrInvalidCredentials("")
		}
		uc.logger.Error(ctx, "Failed to find user", err, map[string]interface{}{
			"identifier": creds.Identifier(),
		})
		return nil, domainerr.ErrDatabaseError("find user", err)
	}

	userKey := "user:" + strconv.FormatInt(user.ID, 10)
	if err := uc.checkThrottle(ctx, userKey, uc.cfg.UserAttempts, uc.cfg.UserWindow); err != nil {
		return nil, err
	}

	start := time.Now()
	valid, err := uc.passwordService.VerifyPassword(creds.Password(), user.Password)
	logger.LogPerformance(ctx, uc.logger, "password_verification", time.Since(start), map[string]interface{}{
		"user_id": user.ID,
	})
	if err != nil {
		uc.logger.Error(ctx, "Password verification error", err, map[string]interface{}{"user_id": user.ID})
		return nil, domainerr.ErrInvalidCredentials("")
	}
	if !valid {
		uc.recordFailure(ctx, ipKey, uc.cfg.IPWindow)
		uc.recordFailure(ctx, userKey, uc.cfg.UserWindow)
		logger.LogAuthEvent(ctx, uc.logger, "login_failed_invalid_password", user.ID, ip, false, nil)
		return nil, domainerr.ErrInvalidCredentials("")
	}

	resp, err := uc.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}

	uc.resetThrottle(ctx, ipKey)
	uc.resetThrottle(ctx, userKey)
	logger.LogAuthEvent(ctx, uc.logger, "login_successful", user.ID, ip, true, nil)
	return resp, nil
}

// Refresh issues a new access token. The refresh token itself is not rotated.
func (uc *AuthUseCase) Refresh(ctx context.Context, req inbound.RefreshRequest) (*inbound.RefreshResponse, error) {
	if req.RefreshToken == "" {
		return nil, domainerr.ErrMissingField("refresh_token")
	}

	refreshToken, err := uc.refreshTokenRepository.FindByToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, outbound.ErrRefreshTokenNotFound) {
			logger.LogSecurityEvent(ctx, uc.logger, "refresh_token_not_found", "MEDIUM", map[string]interface{}{
				"token": logger.Redacted,
			})
			return nil, domainerr.ErrInvalidRefreshToken("")
		}
		uc.logger.Error(ctx, "Failed to find refresh token", err, map[string]interface{}{"token": logger.Redacted})
		return nil, domainerr.ErrDatabaseError("find refresh token", err)
	}

	if refreshToken.IsRevoked() {
		logger.LogSecurityEvent(ctx, uc.logger, "refresh_token_revoked", "HIGH", map[string]interface{}{
			"user_id": refreshToken.UserID,
		})
		return nil, domainerr.ErrInvalidRefreshToken("")
	}
	if refreshToken.IsExpired(uc.cfg.Now()) {
		logger.LogSecurityEvent(ctx, uc.logger, "refresh_token_expired", "LOW", map[string]interface{}{
			"user_id": refreshToken.UserID,
		})
		return nil, domainerr.ErrInvalidRefreshToken("")
	}

	user, err := uc.userRepository.FindByID(ctx, refreshToken.UserID)
	if err != nil {
		if errors.Is(err, outbound.ErrUserNotFound) {
			logger.LogSecurityEvent(ctx, uc.logger, "refresh_user_not_found", "HIGH", map[string]interface{}{
				"user_id": refreshToken.UserID,
			})
			return nil, domainerr.ErrInvalidRefreshToken("")
		}
		uc.logger.Error(ctx, "Failed to find user", err, map[string]interface{}{"user_id": refreshToken.UserID})
		return nil, domainerr.ErrDatabaseError("find user", err)
	}

	accessToken, claims, err := uc.tokenService.GenerateAccessToken(outbound.TokenClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
	})
	if err != nil {
		uc.logger.Error(ctx, "Failed to generate access token", err, map[string]interface{}{"user_id": user.ID})
		return nil, domainerr.ErrInternalServerError("", err)
	}

	logger.LogAuthEvent(ctx, uc.logger, "token_refresh_successful", user.ID, inbound.ClientIP(ctx), true, nil)

	return &inbound.RefreshResponse{
		AccessToken: accessToken,
		TokenType:   valueobject.TokenTypeBearer,
		ExpiresIn:   int(claims.ExpiresAt.Sub(claims.IssuedAt) / time.Second),
	}, nil
}

// Logout revokes every refresh token of the subject and denylists the
// presented access token until it would have expired.
func (uc *AuthUseCase) Logout(ctx context.Context, req inbound.LogoutRequest) error {
	if req.AccessToken == "" {
		return domainerr.ErrAuthenticationRequired()
	}

	claims, err := uc.tokenService.ValidateAccessToken(req.AccessToken)
	if err != nil {
		logger.LogAuthEvent(ctx, uc.logger, "logout_invalid_token", 0, inbound.ClientIP(ctx), false, map[string]interface{}{
			"error": err.Error(),
		})
		return domainerr.ErrInvalidToken("")
	}

	now := uc.cfg.Now()
	revokedCount, err := uc.refreshTokenRepository.RevokeAllForUser(ctx, claims.UserID, now)
	if err != nil {
		uc.logger.Error(ctx, "Failed to revoke refresh tokens by user", err, map[string]interface{}{"user_id": claims.UserID})
		return domainerr.ErrDatabaseError("revoke refresh tokens", err)
	}

	entry := entity.NewRevokedToken(claims.TokenID, claims.UserID, claims.ExpiresAt, now)
	if err := uc.revocationRegistry.Revoke(ctx, entry); err != nil {
		uc.logger.Error(ctx, "Failed to revoke access token", err, map[string]interface{}{"user_id": claims.UserID})
		return domainerr.ErrDatabaseError("revoke access token", err)
	}

	logger.LogAuthEvent(ctx, uc.logger, "logout_successful", claims.UserID, inbound.ClientIP(ctx), true, map[string]interface{}{
		"refresh_tokens_revoked": revokedCount,
	})
	return nil
}

func (uc *AuthUseCase) Me(ctx context.Context, userID int64) (*inbound.UserSummary, error) {
	if userID <= 0 {
		return nil, domainerr.ErrAuthenticationRequired()
	}

	user, err := uc.userRepository.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, outbound.ErrUserNotFound) {
			return nil, domainerr.ErrUserNotFound(strconv.FormatInt(userID, 10))
		}
		uc.logger.Error(ctx, "Failed to find user", err, map[string]interface{}{"user_id": userID})
		return nil, domainerr.ErrDatabaseError("find user", err)
	}

	summary := toUserSummary(user)
	return &summary, nil
}

// Authenticate checks the revocation registry before trusting anything in
// the token: the jti is read unverified, looked up, and only then is the
// signature and expiry verified.
func (uc *AuthUseCase) Authenticate(ctx context.Context, rawToken string) (*inbound.Identity, error) {
	tokenID, err := uc.tokenService.PeekTokenID(rawToken)
	if err != nil {
		return nil, domainerr.ErrInvalidToken("malformed")
	}

	revoked, err := uc.revocationRegistry.IsRevoked(ctx, tokenID)
	if err != nil {
		uc.logger.Error(ctx, "Failed to check revocation registry", err, nil)
		return nil, domainerr.ErrDatabaseError("check revoked token", err)
	}
	if revoked {
		logger.LogSecurityEvent(ctx, uc.logger, "revoked_token_presented", "MEDIUM", map[string]interface{}{
			"token_id": tokenID,
			"ip":       inbound.ClientIP(ctx),
		})
		return nil, domainerr.ErrTokenRevoked("")
	}

	claims, err := uc.tokenService.ValidateAccessToken(rawToken)
	if err != nil {
		if errors.Is(err, outbound.ErrTokenExpired) {
			return nil, domainerr.ErrTokenExpired("")
		}
		return nil, domainerr.ErrInvalidToken(err.Error())
	}

	user, err := uc.userRepository.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, outbound.ErrUserNotFound) {
			return nil, domainerr.ErrInvalidToken("unknown subject")
		}
		uc.logger.Error(ctx, "Failed to resolve token subject", err, map[string]interface{}{"user_id": claims.UserID})
		return nil, domainerr.ErrDatabaseError("find user", err)
	}

	return &inbound.Identity{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      string(user.Role),
		TokenID:   claims.TokenID,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

func (uc *AuthUseCase) CheckEmail(ctx context.Context, email string) (*inbound.CheckEmailResponse, error) {
	normalized, err := valueobject.NormalizeEmail(email)
	if err != nil {
		return nil, domainerr.ErrInvalidEmail(email)
	}

	exists, err := uc.userRepository.ExistsByEmail(ctx, normalized)
	if err != nil {
		uc.logger.Error(ctx, "Failed to check email", err, nil)
		return nil, domainerr.ErrDatabaseError("check email", err)
	}
	return &inbound.CheckEmailResponse{Exists: exists}, nil
}

// issueSession creates an access token and replaces the user's refresh token.
func (uc *AuthUseCase) issueSession(ctx context.Context, user *entity.User) (*inbound.LoginResponse, error) {
	start := time.Now()
	accessToken, claims, err := uc.tokenService.GenerateAccessToken(outbound.TokenClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
	})
	logger.LogPerformance(ctx, uc.logger, "access_token_generation", time.Since(start), map[string]interface{}{
		"user_id": user.ID,
	})
	if err != nil {
		uc.logger.Error(ctx, "Failed to generate access token", err, map[string]interface{}{"user_id": user.ID})
		return nil, domainerr.ErrInternalServerError("", err)
	}

	rawRefresh, err := uc.tokenService.GenerateRefreshToken()
	if err != nil {
		uc.logger.Error(ctx, "Failed to generate refresh token", err, map[string]interface{}{"user_id": user.ID})
		return nil, domainerr.ErrInternalServerError("", err)
	}

	now, refreshToken, err := uc.storeRefreshToken(ctx, user.ID, rawRefresh)
	if err != nil {
		return nil, err
	}

	pair := valueobject.NewTokenPair(accessToken, rawRefresh, claims.ExpiresAt, refreshToken.ExpiresAt)
	return &inbound.LoginResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        valueobject.TokenTypeBearer,
		ExpiresIn:        pair.ExpiresIn(claims.IssuedAt),
		RefreshExpiresIn: pair.RefreshExpiresIn(now),
		User:             toUserSummary(user),
	}, nil
}

// storeRefreshToken replaces the user's refresh token. A write superseded
// by a concurrent issue is retried once with a fresh issued_at.
func (uc *AuthUseCase) storeRefreshToken(ctx context.Context, userID int64, rawRefresh string) (time.Time, *entity.RefreshToken, error) {
	for attempt := 1; ; attempt++ {
		now := uc.cfg.Now()
		refreshToken := entity.NewRefreshToken(uuid.NewString(), userID, rawRefresh, now, uc.cfg.RefreshTokenTTL)
		err := uc.refreshTokenRepository.IssueFor(ctx, refreshToken)
		if err == nil {
			return now, refreshToken, nil
		}
		if !errors.Is(err, outbound.ErrRefreshTokenSuperseded) {
			uc.logger.Error(ctx, "Failed to store refresh token", err, map[string]interface{}{"user_id": userID})
			return time.Time{}, nil, domainerr.ErrTokenCreationFailed(err)
		}
		logger.LogSecurityEvent(ctx, uc.logger, "refresh_token_superseded", "LOW", map[string]interface{}{
			"user_id": userID,
			"attempt": attempt,
		})
		if attempt >= maxIssueAttempts {
			return time.Time{}, nil, domainerr.ErrSessionSuperseded("")
		}
	}
}

// checkThrottle fails open when the limiter itself is unavailable.
func (uc *AuthUseCase) checkThrottle(ctx context.Context, key string, limit int, window time.Duration) error {
	if uc.rateLimitService == nil {
		return nil
	}

	blocked, err := uc.rateLimitService.IsBlocked(ctx, key)
	if err != nil {
		uc.logger.Error(ctx, "Failed to check block status", err, map[string]interface{}{"key": key})
		return nil
	}
	if blocked {
		logger.LogSecurityEvent(ctx, uc.logger, "blocked_login_attempt", "MEDIUM", map[string]interface{}{"key": key})
		return domainerr.ErrTooManyAttempts(key, uc.cfg.BlockDuration.String())
	}

	allowed, err := uc.rateLimitService.CheckLimit(ctx, key, limit, window)
	if err != nil {
		uc.logger.Error(ctx, "Failed to check rate limit", err, map[string]interface{}{"key": key})
		return nil
	}
	if !allowed {
		if err := uc.rateLimitService.Block(ctx, key, uc.cfg.BlockDuration, "too many failed logins"); err != nil {
			uc.logger.Error(ctx, "Failed to block key", err, map[string]interface{}{"key": key})
		}
		logger.LogSecurityEvent(ctx, uc.logger, "login_rate_limit_exceeded", "HIGH", map[string]interface{}{"key": key})
		return domainerr.ErrTooManyAttempts(key, uc.cfg.BlockDuration.String())
	}
	return nil
}

func (uc *AuthUseCase) recordFailure(ctx context.Context, key string, window time.Duration) {
	if uc.rateLimitService == nil {
		return
	}
	if err := uc.rateLimitService.Increment(ctx, key, window); err != nil {
		uc.logger.Error(ctx, "Failed to record failed attempt", err, map[string]interface{}{"key": key})
	}
}

func (uc *AuthUseCase) resetThrottle(ctx context.Context, key string) {
	if uc.rateLimitService == nil {
		return
	}
	if err := uc.rateLimitService.Reset(ctx, key); err != nil {
		uc.logger.Warn(ctx, "Failed to reset rate limit counter", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

func toUserSummary(user *entity.User) inbound.UserSummary {
	return inbound.UserSummary{
		ID:       user.ID,
		Name:     user.Name,
		Email:    user.Email,
		Username: user.Username,
		Phone:    user.Phone,
		Role:     string(user.Role),
	}
}
