// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package middleware provides echo middleware for sessions, locale and logging.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/go-accounts/internal/auth"
	"codeberg.org/oliverandrich/go-accounts/internal/ctxkeys"
	"codeberg.org/oliverandrich/go-accounts/internal/models"
	"codeberg.org/oliverandrich/go-accounts/internal/repository"
	"codeberg.org/oliverandrich/go-accounts/internal/services/session"
	"github.com/labstack/echo/v4"
)

// Error codes returned by the access middleware.
const (
	CodeUnauthorized    = "unauthorized"
	CodeAlreadyLoggedIn = "already_logged_in"
)

// UserLoader is an interface for loading full user data
type UserLoader interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// LoadUser puts the session user into the request context. Sessions of
// deleted or deactivated users are cleared.
func LoadUser(sm *session.Manager, loader UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := c.Request()
			data, err := sm.Parse(r)
			if err != nil {
				return err
			}
			if data == nil {
				return next(c)
			}

			dbUser, err := loader.GetUserByID(r.Context(), data.UserID)
			switch {
			case errors.Is(err, repository.ErrNotFound) || (err == nil && !dbUser.CanLogIn()):
				slog.InfoContext(r.Context(), "session_dropped", "user_id", data.UserID)
				c.SetCookie(sm.Clear())
				return next(c)
			case err != nil:
				return err
			}

			ctx := context.WithValue(r.Context(), ctxkeys.Session{}, data)
			ctx = auth.SetUser(ctx, auth.FromModel(dbUser))
			c.SetRequest(r.WithContext(ctx))
			return next(c)
		}
	}
}

// SessionFromContext returns the session loaded by LoadUser, or nil.
func SessionFromContext(ctx context.Context) *session.Data {
	if data, ok := ctx.Value(ctxkeys.Session{}).(*session.Data); ok {
		return data
	}
	return nil
}

// RequireAuth rejects requests without a logged-in user.
func RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !auth.IsAuthenticated(c.Request().Context()) {
			return echo.NewHTTPError(http.StatusUnauthorized, CodeUnauthorized)
		}
		return next(c)
	}
}

// RequireAnonymous rejects requests from logged-in users.
func RequireAnonymous(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if auth.IsAuthenticated(c.Request().Context()) {
			return echo.NewHTTPError(http.StatusForbidden, CodeAlreadyLoggedIn)
		}
		return next(c)
	}
}

// RequireStaff rejects requests from users without staff status.
func RequireStaff(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := auth.GetUser(c.Request().Context())
		if user == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, CodeUnauthorized)
		}
		if !user.IsStaff {
			return echo.NewHTTPError(http.StatusForbidden, http.StatusText(http.StatusForbidden))
		}
		return next(c)
	}
}
