// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// User is an account identified by its email address. New users are
// inactive until they confirm their address.
type User struct { //nolint:govet // fieldalignment: readability over optimization
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	IsStaff      bool      `db:"is_staff" json:"is_staff"`
	IsSuperuser  bool      `db:"is_superuser" json:"is_superuser"`
	DateJoined   time.Time `db:"date_joined" json:"date_joined"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// HasPerm reports whether the user holds a permission. Only superusers hold
// permissions; there are no groups.
func (u *User) HasPerm(string) bool {
	return u.IsSuperuser
}

// HasPerms reports whether the user holds every perm in perms.
func (u *User) HasPerms(perms ...string) bool {
	for _, p := range perms {
		if !u.HasPerm(p) {
			return false
		}
	}
	return true
}

// HasModulePerms reports whether the user may access the given module.
func (u *User) HasModulePerms(module string) bool {
	return u.HasPerm(module)
}

// CanLogIn reports whether the account may authenticate.
func (u *User) CanLogIn() bool {
	return u.IsActive
}
