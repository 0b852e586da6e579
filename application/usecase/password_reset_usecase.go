package usecase

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/expensetrack/expensetrack/application/port/inbound"
	"github.com/expensetrack/expensetrack/application/port/outbound"
	"github.com/expensetrack/expensetrack/domain/entity"
	domainerr "github.com/expensetrack/expensetrack/domain/error"
	"github.com/expensetrack/expensetrack/domain/valueobject"
	"github.com/expensetrack/expensetrack/infrastructure/service/logger"
)

type PasswordResetConfig struct {
	TokenTTL    time.Duration
	LinkBaseURL string
	Now         func() time.Time
}

type PasswordResetUseCase struct {
	userRepository         outbound.UserRepository
	resetRepository        outbound.PasswordResetRepository
	refreshTokenRepository outbound.RefreshTokenRepository
	tokenService           outbound.TokenService
	passwordService        outbound.PasswordService
	notifier               outbound.ResetNotifier
	logger                 logger.Logger
	cfg                    PasswordResetConfig
}

var _ inbound.PasswordResetUseCase = (*PasswordResetUseCase)(nil)

func NewPasswordResetUseCase(
	userRepo outbound.UserRepository,
	resetRepo outbound.PasswordResetRepository,
	refreshTokenRepo outbound.RefreshTokenRepository,
	tokenService outbound.TokenService,
	passwordService outbound.PasswordService,
	notifier outbound.ResetNotifier,
	log logger.Logger,
	cfg PasswordResetConfig,
) *PasswordResetUseCase {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = entity.PasswordResetTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &PasswordResetUseCase{
		userRepository:         userRepo,
		resetRepository:        resetRepo,
		refreshTokenRepository: refreshTokenRepo,
		tokenService:           tokenService,
		passwordService:        passwordService,
		notifier:               notifier,
		logger:                 log,
		cfg:                    cfg,
	}
}

// ForgotPassword only reports malformed input. Unknown accounts and delivery
// failures look the same to the caller as a sent link.
func (uc *PasswordResetUseCase) ForgotPassword(ctx context.Context, req inbound.ForgotPasswordRequest) error {
	email, err := valueobject.NormalizeEmail(req.Email)
	if err != nil {
		return domainerr.ErrInvalidEmail(req.Email)
	}

	user, err := uc.userRepository.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, outbound.ErrUserNotFound) {
			logger.LogSecurityEvent(ctx, uc.logger, "password_reset_unknown_email", "LOW", map[string]interface{}{
				"email": email,
				"ip":    inbound.ClientIP(ctx),
			})
			return nil
		}
		uc.logger.Error(ctx, "Failed to find user for password reset", err, map[string]interface{}{"email": email})
		return domainerr.ErrDatabaseError("find user", err)
	}

	raw, err := uc.tokenService.GenerateRefreshToken()
	if err != nil {
		uc.logger.Error(ctx, "Failed to generate reset token", err, map[string]interface{}{"user_id": user.ID})
		return domainerr.ErrInternalServerError("", err)
	}

	token := entity.NewPasswordResetToken(user.Email, raw, uc.cfg.Now(), uc.cfg.TokenTTL)
	if err := uc.resetRepository.Save(ctx, token); err != nil {
		uc.logger.Error(ctx, "Failed to store reset token", err, map[string]interface{}{"user_id": user.ID})
		return domainerr.ErrTokenCreationFailed(err)
	}

	if err := uc.notifier.SendPasswordReset(ctx, user.Email, uc.resetLink(raw), token.ExpiresAt); err != nil {
		uc.logger.Error(ctx, "Failed to deliver password reset link", err, map[string]interface{}{"user_id": user.ID})
		return nil
	}

	logger.LogAuthEvent(ctx, uc.logger, "password_reset_requested", user.ID, inbound.ClientIP(ctx), true, nil)
	return nil
}

// ResetPassword redeems a reset token. The token is consumed before the
// expiry check, so an expired token cannot be retried either.
func (uc *PasswordResetUseCase) ResetPassword(ctx context.Context, req inbound.ResetPasswordRequest) error {
	if req.Token == "" {
		return domainerr.ErrMissingField("token")
	}
	if err := valueobject.ValidateNewPassword(req.NewPassword); err != nil {
		return domainerr.ErrInvalidPassword(err.Error())
	}

	token, err := uc.resetRepository.Consume(ctx, req.Token)
	if err != nil {
		if errors.Is(err, outbound.ErrResetTokenNotFound) {
			logger.LogSecurityEvent(ctx, uc.logger, "password_reset_token_not_found", "MEDIUM", map[string]interface{}{
				"token": logger.Redacted,
				"ip":    inbound.ClientIP(ctx),
			})
			return domainerr.ErrInvalidResetToken("")
		}
		uc.logger.Error(ctx, "Failed to consume reset token", err, nil)
		return domainerr.ErrDatabaseError("consume reset token", err)
	}

	now := uc.cfg.Now()
	if token.IsExpired(now) {
		logger.LogSecurityEvent(ctx, uc.logger, "password_reset_token_expired", "LOW", map[string]interface{}{
			"email": token.Email,
		})
		return domainerr.ErrInvalidResetToken("")
	}

	user, err := uc.userRepository.FindByEmail(ctx, token.Email)
	if err != nil {
		if errors.Is(err, outbound.ErrUserNotFound) {
			return domainerr.ErrInvalidResetToken("")
		}
		uc.logger.Error(ctx, "Failed to find user for password reset", err, nil)
		return domainerr.ErrDatabaseError("find user", err)
	}

	hash, err := uc.passwordService.HashPassword(req.NewPassword)
	if err != nil {
		uc.logger.Error(ctx, "Failed to hash password", err, map[string]interface{}{"user_id": user.ID})
		return domainerr.ErrInternalServerError("", err)
	}

	if err := uc.userRepository.UpdatePassword(ctx, user.ID, hash); err != nil {
		uc.logger.Error(ctx, "Failed to update password", err, map[string]interface{}{"user_id": user.ID})
		return domainerr.ErrDatabaseError("update password", err)
	}

	revoked, err := uc.refreshTokenRepository.RevokeAllForUser(ctx, user.ID, now)
	if err != nil {
		uc.logger.Error(ctx, "Failed to revoke refresh tokens after password reset", err, map[string]interface{}{"user_id": user.ID})
		return domainerr.ErrDatabaseError("revoke refresh tokens", err)
	}

	logger.LogAuthEvent(ctx, uc.logger, "password_reset_completed", user.ID, inbound.ClientIP(ctx), true, map[string]interface{}{
		"refresh_tokens_revoked": revoked,
	})
	return nil
}

func (uc *PasswordResetUseCase) resetLink(raw string) string {
	base := uc.cfg.LinkBaseURL
	if base == "" {
		return "?token=" + url.QueryEscape(raw)
	}
	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(raw)
	}
	q := u.Query()
	q.Set("token", raw)
	u.RawQuery = q.Encode()
	return u.String()
}
