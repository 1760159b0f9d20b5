// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth_test

import (
	"context"
	"net/url"
	"testing"
	"time"

	"codeberg.org/oliverandrich/go-accounts/internal/services/auth"
	"codeberg.org/oliverandrich/go-accounts/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *env) requestRecovery(t *testing.T, addr string) string {
	t.Helper()
	require.NoError(t, e.svc.RequestPasswordRecovery(context.Background(), addr))
	return lastKey(t, e.outbox, recoveryKeyRe)
}

func resetParams(key string) auth.ResetPasswordParams {
	return auth.ResetPasswordParams{
		Email:           testEmail,
		Key:             key,
		Password:        newPassword,
		PasswordConfirm: newPassword,
	}
}

func TestRequestPasswordRecovery(t *testing.T) {
	e := newEnv(t)
	testutil.NewTestUser(t, e.repo, testEmail, true)

	require.NoError(t, e.svc.RequestPasswordRecovery(context.Background(), "user@EXAMPLE.com"))

	msg := e.outbox.Last()
	require.NotNil(t, msg)
	assert.Equal(t, []string{testEmail}, msg.To)
	assert.Equal(t, "Reset your password on example.com", msg.Subject)
	assert.Equal(t, "recovery", msg.Tag)
	assert.Contains(t, msg.Body, "1 hours")
	assert.Contains(t, msg.Body, "email="+url.QueryEscape(testEmail))
}

func TestRequestPasswordRecovery_Silent(t *testing.T) {
	e := newEnv(t)
	testutil.NewTestUser(t, e.repo, "inactive@example.com", false)

	require.NoError(t, e.svc.RequestPasswordRecovery(context.Background(), "nobody@example.com"))
	require.NoError(t, e.svc.RequestPasswordRecovery(context.Background(), "inactive@example.com"))

	assert.Empty(t, e.outbox.Messages())
}

func TestRequestPasswordRecovery_InvalidEmail(t *testing.T) {
	e := newEnv(t)

	err := e.svc.RequestPasswordRecovery(context.Background(), "no-at-sign")

	assert.ErrorIs(t, err, auth.ErrInvalidEmail)
}

func TestResetPassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.NewTestUser(t, e.repo, testEmail, true)
	key := e.requestRecovery(t, testEmail)

	user, err := e.svc.ResetPassword(ctx, resetParams(key))
	require.NoError(t, err)
	assert.Equal(t, testEmail, user.Email)

	_, err = e.svc.Login(ctx, testEmail, newPassword)
	assert.NoError(t, err)
	_, err = e.svc.Login(ctx, testEmail, testutil.TestPassword)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestResetPassword_KeyIsSingleUse(t *testing.T) {
	e := newEnv(t)
	testutil.NewTestUser(t, e.repo, testEmail, true)
	key := e.requestRecovery(t, testEmail)

	_, err := e.svc.ResetPassword(context.Background(), resetParams(key))
	require.NoError(t, err)

	params := resetParams(key)
	params.Password, params.PasswordConfirm = "another-long-phrase", "another-long-phrase"
	_, err = e.svc.ResetPassword(context.Background(), params)
	assert.ErrorIs(t, err, auth.ErrInvalidKey)
}

func TestResetPassword_StaleAfterPasswordChange(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, e.repo, testEmail, true)
	key := e.requestRecovery(t, testEmail)

	require.NoError(t, e.svc.ChangePassword(ctx, user.ID, testutil.TestPassword, "violet-lantern-orbit-7", "violet-lantern-orbit-7"))

	_, err := e.svc.ResetPassword(ctx, resetParams(key))
	assert.ErrorIs(t, err, auth.ErrInvalidKey)
}

func TestResetPassword_WrongAccount(t *testing.T) {
	e := newEnv(t)
	testutil.NewTestUser(t, e.repo, testEmail, true)
	testutil.NewTestUser(t, e.repo, "other@example.com", true)
	key := e.requestRecovery(t, "other@example.com")

	_, err := e.svc.ResetPassword(context.Background(), resetParams(key))

	assert.ErrorIs(t, err, auth.ErrInvalidKey)
}

func TestResetPassword_Expired(t *testing.T) {
	e := newEnv(t)
	testutil.NewTestUser(t, e.repo, testEmail, true)
	key := e.requestRecovery(t, testEmail)

	e.clock.now = e.clock.now.Add(time.Hour + time.Second)

	_, err := e.svc.ResetPassword(context.Background(), resetParams(key))
	assert.ErrorIs(t, err, auth.ErrKeyExpired)
}

func TestResetPassword_RegistrationKeyRejected(t *testing.T) {
	e := newEnv(t)
	e.register(t, testEmail)
	key := lastKey(t, e.outbox, activationKeyRe)

	_, err := e.svc.ResetPassword(context.Background(), resetParams(key))
	assert.ErrorIs(t, err, auth.ErrInvalidKey)
}

func TestActivate_RecoveryKeyRejected(t *testing.T) {
	e := newEnv(t)
	testutil.NewTestUser(t, e.repo, testEmail, true)
	key := e.requestRecovery(t, testEmail)

	_, err := e.svc.Activate(context.Background(), key)
	assert.ErrorIs(t, err, auth.ErrInvalidKey)
}

func TestResetPassword_Validation(t *testing.T) {
	e := newEnv(t)
	testutil.NewTestUser(t, e.repo, testEmail, true)
	key := e.requestRecovery(t, testEmail)

	params := resetParams(key)
	params.PasswordConfirm = "does-not-match"
	_, err := e.svc.ResetPassword(context.Background(), params)
	assert.ErrorIs(t, err, auth.ErrPasswordMismatch)

	params = resetParams(key)
	params.Password, params.PasswordConfirm = "qwerty", "qwerty"
	_, err = e.svc.ResetPassword(context.Background(), params)
	var pvErr *auth.PasswordValidationError
	assert.ErrorAs(t, err, &pvErr)

	// Failed attempts leave the key usable
	_, err = e.svc.ResetPassword(context.Background(), resetParams(key))
	assert.NoError(t, err)
}
