// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth implements registration, email activation, login and
// password recovery for email-keyed accounts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"codeberg.org/oliverandrich/go-accounts/internal/activator"
	"codeberg.org/oliverandrich/go-accounts/internal/config"
	"codeberg.org/oliverandrich/go-accounts/internal/models"
	"codeberg.org/oliverandrich/go-accounts/internal/repository"
	"codeberg.org/oliverandrich/go-accounts/internal/services/email"
	"codeberg.org/oliverandrich/go-accounts/internal/signing"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrRegistrationClosed = errors.New("registration is closed")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidKey         = errors.New("invalid activation key")
	ErrKeyExpired         = errors.New("activation key expired")
	ErrSendFailed         = errors.New("failed to send email")
)

// Message ids of the mail templates.
var (
	RegistrationTemplates = activator.Templates{
		Subject: "registration_email_subject",
		Body:    "registration_email_body",
		Link:    "registration_email_link",
	}
	RecoveryTemplates = activator.Templates{
		Subject: "recovery_email_subject",
		Body:    "recovery_email_body",
		Link:    "recovery_email_link",
	}
)

// dummyHash is used for constant-time login to prevent timing attacks
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

type Service struct { //nolint:govet // fieldalignment: readability over optimization
	repo              *repository.Repository
	signer            activator.TokenSigner
	renderer          activator.Renderer
	mailer            activator.Mailer
	cfg               *config.Config
	registration      *activator.Activator
	recovery          *activator.Activator
	passwordValidator *PasswordValidator
	hashCost          int
}

// Option configures a Service.
type Option func(*Service)

// WithHashCost sets the bcrypt cost for new password hashes.
func WithHashCost(cost int) Option {
	return func(s *Service) {
		s.hashCost = cost
	}
}

// WithPasswordValidator replaces the default password validator.
func WithPasswordValidator(v *PasswordValidator) Option {
	return func(s *Service) {
		s.passwordValidator = v
	}
}

func NewService(
	repo *repository.Repository,
	signer activator.TokenSigner,
	renderer activator.Renderer,
	mailer activator.Mailer,
	cfg *config.Config,
	opts ...Option,
) (*Service, error) {
	registration, err := activator.New(signer, registrationPolicy(cfg))
	if err != nil {
		return nil, fmt.Errorf("registration activator: %w", err)
	}
	recovery, err := activator.New(signer, recoveryPolicy(cfg))
	if err != nil {
		return nil, fmt.Errorf("recovery activator: %w", err)
	}

	s := &Service{
		repo:              repo,
		signer:            signer,
		renderer:          renderer,
		mailer:            mailer,
		cfg:               cfg,
		registration:      registration,
		recovery:          recovery,
		passwordValidator: DefaultPasswordValidator(),
		hashCost:          bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func registrationPolicy(cfg *config.Config) activator.Policy {
	return activator.Policy{Name: "registration", Salt: cfg.Registration.Salt, MaxAge: cfg.Registration.MaxAgeDuration()}
}

func recoveryPolicy(cfg *config.Config) activator.Policy {
	return activator.Policy{Name: "recovery", Salt: cfg.Recovery.Salt, MaxAge: cfg.Recovery.MaxAgeDuration()}
}

// PasswordValidator returns the password validator for use in handlers
func (s *Service) PasswordValidator() *PasswordValidator {
	return s.passwordValidator
}

// RegistrationOpen reports whether new accounts may be created.
func (s *Service) RegistrationOpen() bool {
	return s.cfg.Registration.Open
}

// RegisterParams holds the parameters for user registration
type RegisterParams struct {
	Email           string
	Password        string
	PasswordConfirm string
}

// Register creates an inactive account and mails it an activation key.
// When only the mail fails, the created user is returned together with an
// error wrapping ErrSendFailed.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*models.User, error) {
	if !s.RegistrationOpen() {
		return nil, ErrRegistrationClosed
	}

	addr := NormalizeEmail(params.Email)
	if err := ValidateEmail(addr); err != nil {
		return nil, err
	}
	if params.Password != params.PasswordConfirm {
		return nil, ErrPasswordMismatch
	}
	if err := s.checkPassword(params.Password, addr); err != nil {
		return nil, err
	}

	exists, err := s.repo.UserExists(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	hash, err := s.hashPassword(params.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{Email: addr, PasswordHash: hash}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.InfoContext(ctx, "register_success", "user_id", user.ID, "email", addr)

	if err := s.sendActivation(ctx, user); err != nil {
		return user, err
	}
	return user, nil
}

// ResendActivation mails a fresh activation key to an inactive account.
// Unknown and already active addresses succeed silently.
func (s *Service) ResendActivation(ctx context.Context, addr string) error {
	addr = NormalizeEmail(addr)
	user, err := s.repo.GetUserByEmailAndActive(ctx, addr, false)
	if errors.Is(err, repository.ErrNotFound) {
		slog.InfoContext(ctx, "activation_resend_skipped", "email", addr)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	return s.sendActivation(ctx, user)
}

func (s *Service) sendActivation(ctx context.Context, user *models.User) error {
	err := s.sendKey(ctx, user.Email, user.Email, registrationPolicy(s.cfg), RegistrationTemplates,
		s.cfg.Registration.MaxAgeDuration().Hours(), "registration")
	if err != nil {
		slog.ErrorContext(ctx, "activation_email_failed", "user_id", user.ID, "error", err)
		return err
	}
	slog.InfoContext(ctx, "activation_email_sent", "user_id", user.ID)
	return nil
}

// sendKey mails a key signing value to the recipient.
func (s *Service) sendKey(ctx context.Context, value, to string, policy activator.Policy, templates activator.Templates, validHours float64, tag string) error {
	site, protocol := s.site()
	ea, err := activator.NewEmail(s.signer, s.renderer, s.mailer, activator.EmailConfig{
		ValueToSign: value,
		From:        email.FromAddress(&s.cfg.Mail),
		To:          to,
		Policy:      policy,
		Templates:   templates,
		Context: map[string]any{
			"site":        site,
			"protocol":    protocol,
			"email":       to,
			"valid_hours": int(validHours),
		},
	})
	if err != nil {
		return err
	}

	opts := []email.Option{email.WithTag(tag)}
	if s.cfg.Mail.ReplyTo != "" {
		opts = append(opts, email.WithReplyTo(s.cfg.Mail.ReplyTo))
	}
	if err := ea.Send(ctx, opts...); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	return nil
}

// site splits the public base URL into host and scheme.
func (s *Service) site() (string, string) {
	u, err := url.Parse(s.cfg.Server.BaseURL)
	if err != nil || u.Host == "" {
		return "localhost", "http"
	}
	return u.Host, u.Scheme
}

// Activate validates a registration key and activates the matching
// inactive account. A key for an account that is already active fails
// with ErrUserNotFound.
func (s *Service) Activate(ctx context.Context, key string) (*models.User, error) {
	addr, err := s.registration.Check(key)
	if err != nil {
		if errors.Is(err, signing.ErrExpired) {
			slog.InfoContext(ctx, "activation_failed", "reason", "expired")
			return nil, ErrKeyExpired
		}
		slog.InfoContext(ctx, "activation_failed", "reason", "invalid_key")
		return nil, ErrInvalidKey
	}

	user, err := s.repo.ActivateInactiveUser(ctx, addr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.InfoContext(ctx, "activation_failed", "reason", "no_inactive_user", "email", addr)
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to activate user: %w", err)
	}

	slog.InfoContext(ctx, "activation_success", "user_id", user.ID, "email", addr)
	return user, nil
}

// Login authenticates an active user and returns the user if successful
func (s *Service) Login(ctx context.Context, addr, password string) (*models.User, error) {
	addr = NormalizeEmail(addr)
	user, err := s.repo.GetUserByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Constant-time: always perform bcrypt comparison to prevent timing attacks
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			slog.WarnContext(ctx, "login_failed", "email", addr, "reason", "user_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.WarnContext(ctx, "login_failed", "email", addr, "reason", "invalid_password")
		return nil, ErrInvalidCredentials
	}

	if !user.CanLogIn() {
		slog.WarnContext(ctx, "login_failed", "email", addr, "reason", "inactive")
		return nil, ErrInvalidCredentials
	}

	slog.InfoContext(ctx, "login_success", "user_id", user.ID, "email", addr)
	return user, nil
}

// ChangePassword changes a user's password (when they know their current password)
func (s *Service) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword, newPasswordConfirm string) error {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	// Verify current password
	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	if newPassword != newPasswordConfirm {
		return ErrPasswordMismatch
	}

	return s.setPassword(ctx, user, newPassword)
}

// CreateSuperuser creates an active staff superuser. Only the email format
// and the password confirmation are checked.
func (s *Service) CreateSuperuser(ctx context.Context, addr, password string) (*models.User, error) {
	addr = NormalizeEmail(addr)
	if err := ValidateEmail(addr); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, &PasswordValidationError{Errors: []ValidationError{{Code: "required", Message: "Password is required."}}}
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        addr,
		PasswordHash: hash,
		IsActive:     true,
		IsStaff:      true,
		IsSuperuser:  true,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create superuser: %w", err)
	}

	slog.InfoContext(ctx, "superuser_created", "user_id", user.ID, "email", addr)
	return user, nil
}

// GetUser returns the user with the given ID.
func (s *Service) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *Service) checkPassword(password, addr string) error {
	validation := s.passwordValidator.Validate(password, addr)
	if !validation.Valid {
		return &PasswordValidationError{Errors: validation.Errors}
	}
	return nil
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func (s *Service) setPassword(ctx context.Context, user *models.User, password string) error {
	if err := s.checkPassword(password, user.Email); err != nil {
		return err
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateUserPassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	slog.InfoContext(ctx, "password_changed", "user_id", user.ID)
	return nil
}
