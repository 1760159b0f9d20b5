// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/go-accounts/internal/i18n"
	"github.com/labstack/echo/v4"
)

// Error codes used in API responses. The message shown to the client is
// the catalog entry "error_<code>".
const (
	CodeBadRequest         = "bad_request"
	CodeInvalidInput       = "invalid_input"
	CodeInvalidEmail       = "invalid_email"
	CodePasswordMismatch   = "password_mismatch"
	CodeRegistrationClosed = "registration_closed"
	CodeUserExists         = "user_exists"
	CodeInvalidKey         = "invalid_key"
	CodeKeyExpired         = "key_expired"
	CodeUserNotFound       = "user_not_found"
	CodeInvalidCredentials = "invalid_credentials"
	CodeInvalidPassword    = "invalid_password"
	CodeUnauthorized       = "unauthorized"
	CodeInternal           = "internal"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// APIError is an error with an HTTP status and a stable code.
type APIError struct {
	Status int
	Code   string
	Fields map[string]string
	Err    error
}

// NewError creates an APIError.
func NewError(status int, code string) *APIError {
	return &APIError{Status: status, Code: code}
}

// Invalid creates a 422 APIError with per-field messages.
func Invalid(fields map[string]string) *APIError {
	return &APIError{Status: http.StatusUnprocessableEntity, Code: CodeInvalidInput, Fields: fields}
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Code, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Code)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ErrorHandler renders errors returned by handlers and middleware as JSON.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, resp := errorResponse(c.Request().Context(), err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request().Context(), "request_failed",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"error", err,
		)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, resp)
	}
	if err != nil {
		slog.ErrorContext(c.Request().Context(), "error_response_failed", "error", err)
	}
}

func errorResponse(ctx context.Context, err error) (int, ErrorResponse) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status, ErrorResponse{
			Error:   apiErr.Code,
			Message: message(ctx, apiErr.Code, http.StatusText(apiErr.Status)),
			Fields:  apiErr.Fields,
		}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) && he.Code < http.StatusInternalServerError {
		text := fmt.Sprint(he.Message)
		code := strings.ToLower(strings.ReplaceAll(text, " ", "_"))
		return he.Code, ErrorResponse{
			Error:   code,
			Message: message(ctx, code, text),
		}
	}

	return http.StatusInternalServerError, ErrorResponse{
		Error:   CodeInternal,
		Message: message(ctx, CodeInternal, http.StatusText(http.StatusInternalServerError)),
	}
}

// message translates an error code, using fallback for codes without a
// catalog entry.
func message(ctx context.Context, code, fallback string) string {
	id := "error_" + code
	if msg := i18n.T(ctx, id); msg != id {
		return msg
	}
	return fallback
}
