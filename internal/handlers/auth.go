// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/go-accounts/internal/auth"
	"codeberg.org/oliverandrich/go-accounts/internal/i18n"
	authsvc "codeberg.org/oliverandrich/go-accounts/internal/services/auth"
	"codeberg.org/oliverandrich/go-accounts/internal/services/session"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/labstack/echo/v4"
)

// AuthHandlers contains handlers for registration, activation, login and
// password management.
type AuthHandlers struct {
	svc      *authsvc.Service
	sessions *session.Manager
}

// NewAuth creates a new AuthHandlers instance.
func NewAuth(svc *authsvc.Service, sessions *session.Manager) *AuthHandlers {
	return &AuthHandlers{
		svc:      svc,
		sessions: sessions,
	}
}

// UserResponse wraps a user with a message.
type UserResponse struct {
	Message string     `json:"message,omitempty"`
	User    *auth.User `json:"user"`
}

// RegisterRequest is the request body for registration.
type RegisterRequest struct {
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	PasswordConfirm string `json:"password_confirm" form:"password_confirm"`
}

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.EmailFormat),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 256)),
		validation.Field(&r.PasswordConfirm, validation.Required),
	)
}

// Register creates an inactive account and mails the activation link.
func (h *AuthHandlers) Register(c echo.Context) error {
	if !h.svc.RegistrationOpen() {
		return NewError(http.StatusForbidden, CodeRegistrationClosed)
	}

	var req RegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	user, err := h.svc.Register(ctx, authsvc.RegisterParams{
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	switch {
	case err == nil:
		return c.JSON(http.StatusCreated, UserResponse{
			Message: i18n.T(ctx, "message_registered"),
			User:    auth.FromModel(user),
		})
	case errors.Is(err, authsvc.ErrSendFailed) && user != nil:
		return c.JSON(http.StatusCreated, UserResponse{
			Message: i18n.T(ctx, "message_registered_no_email"),
			User:    auth.FromModel(user),
		})
	case errors.Is(err, authsvc.ErrRegistrationClosed):
		return NewError(http.StatusForbidden, CodeRegistrationClosed)
	case errors.Is(err, authsvc.ErrUserExists):
		return NewError(http.StatusConflict, CodeUserExists)
	}
	return passwordFormError(c, err, "password")
}

// EmailRequest is the request body for endpoints that only take an email.
type EmailRequest struct {
	Email string `json:"email" form:"email"`
}

func (r EmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.EmailFormat),
	)
}

// ResendActivation mails a new activation link. The response is the same
// whether or not an inactive account exists.
func (h *AuthHandlers) ResendActivation(c echo.Context) error {
	var req EmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if err := h.svc.ResendActivation(c.Request().Context(), req.Email); err != nil {
		if !errors.Is(err, authsvc.ErrSendFailed) {
			return err
		}
		slog.ErrorContext(c.Request().Context(), "activation_resend_failed", "error", err)
	}
	return reply(c, http.StatusAccepted, "message_activation_sent")
}

// Activate activates the account an activation key was issued for.
func (h *AuthHandlers) Activate(c echo.Context) error {
	ctx := c.Request().Context()
	user, err := h.svc.Activate(ctx, c.Param("key"))
	switch {
	case errors.Is(err, authsvc.ErrKeyExpired):
		return NewError(http.StatusGone, CodeKeyExpired)
	case errors.Is(err, authsvc.ErrInvalidKey):
		return NewError(http.StatusBadRequest, CodeInvalidKey)
	case errors.Is(err, authsvc.ErrUserNotFound):
		return NewError(http.StatusNotFound, CodeUserNotFound)
	case err != nil:
		return err
	}

	return c.JSON(http.StatusOK, UserResponse{
		Message: i18n.T(ctx, "message_activated"),
		User:    auth.FromModel(user),
	})
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// Login authenticates an active user and starts a session.
func (h *AuthHandlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	user, err := h.svc.Login(ctx, req.Email, req.Password)
	if errors.Is(err, authsvc.ErrInvalidCredentials) {
		return NewError(http.StatusUnauthorized, CodeInvalidCredentials)
	}
	if err != nil {
		return err
	}

	cookie, err := h.sessions.Create(user.ID, user.Email)
	if err != nil {
		return err
	}
	c.SetCookie(cookie)

	return c.JSON(http.StatusOK, UserResponse{
		Message: i18n.T(ctx, "message_logged_in"),
		User:    auth.FromModel(user),
	})
}

// Logout clears the session cookie.
func (h *AuthHandlers) Logout(c echo.Context) error {
	if user := auth.GetUser(c.Request().Context()); user != nil {
		slog.InfoContext(c.Request().Context(), "logout", "user_id", user.ID)
	}
	c.SetCookie(h.sessions.Clear())
	return reply(c, http.StatusOK, "message_logged_out")
}

// Me returns the logged-in user.
func (h *AuthHandlers) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, UserResponse{User: auth.GetUser(c.Request().Context())})
}

// RecoverPassword mails a recovery key. The response is the same whether
// or not an active account exists.
func (h *AuthHandlers) RecoverPassword(c echo.Context) error {
	var req EmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	err := h.svc.RequestPasswordRecovery(c.Request().Context(), req.Email)
	switch {
	case errors.Is(err, authsvc.ErrInvalidEmail) || errors.Is(err, authsvc.ErrConfusableEmail):
		return Invalid(map[string]string{"email": message(c.Request().Context(), CodeInvalidEmail, err.Error())})
	case errors.Is(err, authsvc.ErrSendFailed):
		slog.ErrorContext(c.Request().Context(), "recovery_send_failed", "error", err)
	case err != nil:
		return err
	}
	return reply(c, http.StatusAccepted, "message_recovery_sent")
}

// ResetPasswordRequest is the request body for a password reset.
type ResetPasswordRequest struct {
	Email           string `json:"email" form:"email"`
	Key             string `json:"key" form:"key"`
	Password        string `json:"password" form:"password"`
	PasswordConfirm string `json:"password_confirm" form:"password_confirm"`
}

func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Key, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 256)),
		validation.Field(&r.PasswordConfirm, validation.Required),
	)
}

// ResetPassword sets a new password with a recovery key.
func (h *AuthHandlers) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	_, err := h.svc.ResetPassword(c.Request().Context(), authsvc.ResetPasswordParams{
		Email:           req.Email,
		Key:             strings.TrimSpace(req.Key),
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	switch {
	case err == nil:
		return reply(c, http.StatusOK, "message_password_reset")
	case errors.Is(err, authsvc.ErrKeyExpired):
		return NewError(http.StatusGone, CodeKeyExpired)
	case errors.Is(err, authsvc.ErrInvalidKey):
		return NewError(http.StatusBadRequest, CodeInvalidKey)
	}
	return passwordFormError(c, err, "password")
}

// ChangePasswordRequest is the request body for a password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" form:"current_password"`
	Password        string `json:"password" form:"password"`
	PasswordConfirm string `json:"password_confirm" form:"password_confirm"`
}

func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 256)),
		validation.Field(&r.PasswordConfirm, validation.Required),
	)
}

// ChangePassword changes the password of the logged-in user.
func (h *AuthHandlers) ChangePassword(c echo.Context) error {
	user := auth.GetUser(c.Request().Context())
	if user == nil {
		return NewError(http.StatusUnauthorized, CodeUnauthorized)
	}

	var req ChangePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	err := h.svc.ChangePassword(c.Request().Context(), user.ID, req.CurrentPassword, req.Password, req.PasswordConfirm)
	switch {
	case err == nil:
		return reply(c, http.StatusOK, "message_password_changed")
	case errors.Is(err, authsvc.ErrInvalidCredentials):
		return Invalid(map[string]string{
			"current_password": message(c.Request().Context(), CodeInvalidPassword, err.Error()),
		})
	case errors.Is(err, authsvc.ErrUserNotFound):
		c.SetCookie(h.sessions.Clear())
		return NewError(http.StatusUnauthorized, CodeUnauthorized)
	}
	return passwordFormError(c, err, "password")
}

// passwordFormError maps the validation errors shared by the forms that set
// a password. Other errors are returned unchanged.
func passwordFormError(c echo.Context, err error, field string) error {
	ctx := c.Request().Context()

	var pvErr *authsvc.PasswordValidationError
	switch {
	case errors.As(err, &pvErr):
		return Invalid(map[string]string{field: strings.Join(pvErr.Messages(), " ")})
	case errors.Is(err, authsvc.ErrPasswordMismatch):
		return Invalid(map[string]string{"password_confirm": message(ctx, CodePasswordMismatch, err.Error())})
	case errors.Is(err, authsvc.ErrInvalidEmail) || errors.Is(err, authsvc.ErrConfusableEmail):
		return Invalid(map[string]string{"email": message(ctx, CodeInvalidEmail, err.Error())})
	}
	return err
}
