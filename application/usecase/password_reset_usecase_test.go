package usecase

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expensetrack/expensetrack/application/port/inbound"
	domainerr "github.com/expensetrack/expensetrack/domain/error"
)

const newPassword = "N3w!password"

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	token := u.Query().Get("token")
	require.NotEmpty(t, token)
	return token
}

func TestForgotThenReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.login(t)

	require.NoError(t, f.reset.ForgotPassword(ctx, inbound.ForgotPasswordRequest{Email: "Ann@Example.com"}))
	link := f.notifier.last()
	assert.Contains(t, link, "https://app.example.com/reset?token=")
	token := tokenFromLink(t, link)

	require.NoError(t, f.reset.ResetPassword(ctx, inbound.ResetPasswordRequest{Token: token, NewPassword: newPassword}))

	_, err := f.auth.Login(ctx, inbound.LoginRequest{Identifier: "ann", Password: testPassword})
	assertCode(t, err, domainerr.ErrCodeInvalidCredentials)
	_, err = f.auth.Login(ctx, inbound.LoginRequest{Identifier: "ann", Password: newPassword})
	require.NoError(t, err)

	_, err = f.auth.Refresh(ctx, inbound.RefreshRequest{RefreshToken: session.RefreshToken})
	assertCode(t, err, domainerr.ErrCodeInvalidRefreshToken)

	err = f.reset.ResetPassword(ctx, inbound.ResetPasswordRequest{Token: token, NewPassword: "An0ther!pass"})
	assertCode(t, err, domainerr.ErrCodeInvalidResetToken)
}

func TestForgotPassword_UnknownEmailLooksLikeSuccess(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.reset.ForgotPassword(context.Background(), inbound.ForgotPasswordRequest{Email: "ghost@example.com"}))
	assert.Empty(t, f.notifier.last())
}

func TestForgotPassword_InvalidEmail(t *testing.T) {
	f := newFixture(t)

	err := f.reset.ForgotPassword(context.Background(), inbound.ForgotPasswordRequest{Email: "nope"})
	assertCode(t, err, domainerr.ErrCodeInvalidEmail)
}

func TestForgotPassword_NotifierFailureIsHidden(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("smtp down")

	assert.NoError(t, f.reset.ForgotPassword(context.Background(), inbound.ForgotPasswordRequest{Email: "ann@example.com"}))
}

func TestForgotPassword_NewRequestReplacesOldToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.reset.ForgotPassword(ctx, inbound.ForgotPasswordRequest{Email: "ann@example.com"}))
	first := tokenFromLink(t, f.notifier.last())
	require.NoError(t, f.reset.ForgotPassword(ctx, inbound.ForgotPasswordRequest{Email: "ann@example.com"}))
	second := tokenFromLink(t, f.notifier.last())

	err := f.reset.ResetPassword(ctx, inbound.ResetPasswordRequest{Token: first, NewPassword: newPassword})
	assertCode(t, err, domainerr.ErrCodeInvalidResetToken)
	require.NoError(t, f.reset.ResetPassword(ctx, inbound.ResetPasswordRequest{Token: second, NewPassword: newPassword}))
}

func TestResetPassword_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.reset.ForgotPassword(ctx, inbound.ForgotPasswordRequest{Email: "ann@example.com"}))
	token := tokenFromLink(t, f.notifier.last())

	f.clock.Advance(15 * time.Minute)
	err := f.reset.ResetPassword(ctx, inbound.ResetPasswordRequest{Token: token, NewPassword: newPassword})
	assertCode(t, err, domainerr.ErrCodeInvalidResetToken)

	_, err = f.auth.Login(ctx, inbound.LoginRequest{Identifier: "ann", Password: testPassword})
	assert.NoError(t, err, "old password still works")
}

func TestResetPassword_WeakPasswordKeepsToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.reset.ForgotPassword(ctx, inbound.ForgotPasswordRequest{Email: "ann@example.com"}))
	token := tokenFromLink(t, f.notifier.last())

	err := f.reset.ResetPassword(ctx, inbound.ResetPasswordRequest{Token: token, NewPassword: "short"})
	assertCode(t, err, domainerr.ErrCodeInvalidPassword)

	require.NoError(t, f.reset.ResetPassword(ctx, inbound.ResetPasswordRequest{Token: token, NewPassword: newPassword}))
}

func TestResetPassword_MissingToken(t *testing.T) {
	f := newFixture(t)

	err := f.reset.ResetPassword(context.Background(), inbound.ResetPasswordRequest{NewPassword: newPassword})
	assertCode(t, err, domainerr.ErrCodeMissingField)
}
