// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"codeberg.org/oliverandrich/go-accounts/internal/models"
	"codeberg.org/oliverandrich/go-accounts/internal/repository"
	"codeberg.org/oliverandrich/go-accounts/internal/signing"
)

// RequestPasswordRecovery mails a recovery key to an active account.
// Unknown and inactive addresses succeed silently so the response does not
// reveal which accounts exist.
func (s *Service) RequestPasswordRecovery(ctx context.Context, addr string) error {
	addr = NormalizeEmail(addr)
	if err := ValidateEmail(addr); err != nil {
		return err
	}

	user, err := s.repo.GetUserByEmailAndActive(ctx, addr, true)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.InfoContext(ctx, "recovery_skipped", "email", addr)
			return nil
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	err = s.sendKey(ctx, recoveryDigest(user), user.Email, recoveryPolicy(s.cfg), RecoveryTemplates,
		s.cfg.Recovery.MaxAgeDuration().Hours(), "recovery")
	if err != nil {
		slog.ErrorContext(ctx, "recovery_email_failed", "user_id", user.ID, "error", err)
		return err
	}

	slog.InfoContext(ctx, "recovery_email_sent", "user_id", user.ID)
	return nil
}

// ResetPasswordParams holds the parameters for a password reset.
type ResetPasswordParams struct {
	Email           string
	Key             string
	Password        string
	PasswordConfirm string
}

// ResetPassword sets a new password using a recovery key. A key only
// matches the password it was issued for, so every outstanding key stops
// working once the password changes.
func (s *Service) ResetPassword(ctx context.Context, params ResetPasswordParams) (*models.User, error) {
	addr := NormalizeEmail(params.Email)

	digest, err := s.recovery.Check(params.Key)
	if err != nil {
		if errors.Is(err, signing.ErrExpired) {
			return nil, ErrKeyExpired
		}
		return nil, ErrInvalidKey
	}

	user, err := s.repo.GetUserByEmailAndActive(ctx, addr, true)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.InfoContext(ctx, "password_reset_failed", "reason", "no_active_user", "email", addr)
			return nil, ErrInvalidKey
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(digest), []byte(recoveryDigest(user))) != 1 {
		slog.InfoContext(ctx, "password_reset_failed", "reason", "stale_key", "user_id", user.ID)
		return nil, ErrInvalidKey
	}

	if params.Password != params.PasswordConfirm {
		return nil, ErrPasswordMismatch
	}
	if err := s.setPassword(ctx, user, params.Password); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "password_reset_success", "user_id", user.ID)
	return user, nil
}

// recoveryDigest binds a recovery key to the account and its current
// password hash.
func recoveryDigest(user *models.User) string {
	h := sha256.New()
	h.Write([]byte(strconv.FormatInt(user.ID, 10)))
	h.Write([]byte{0})
	h.Write([]byte(user.Email))
	h.Write([]byte{0})
	h.Write([]byte(user.PasswordHash))
	return hex.EncodeToString(h.Sum(nil))
}
