// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth provides authentication context helpers.
package auth

import (
	"context"

	"codeberg.org/oliverandrich/go-accounts/internal/ctxkeys"
	"codeberg.org/oliverandrich/go-accounts/internal/models"
)

// User is the authenticated user as seen by request handlers.
type User struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
}

// FromModel converts a stored user.
func FromModel(u *models.User) *User {
	return &User{
		ID:          u.ID,
		Email:       u.Email,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
	}
}

// SetUser returns a copy of ctx carrying user.
func SetUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, ctxkeys.User{}, user)
}

// GetUser returns the authenticated user from the context, or nil if not authenticated.
func GetUser(ctx context.Context) *User {
	if user, ok := ctx.Value(ctxkeys.User{}).(*User); ok {
		return user
	}
	return nil
}

// IsAuthenticated returns true if the context has an authenticated user.
func IsAuthenticated(ctx context.Context) bool {
	return GetUser(ctx) != nil
}
