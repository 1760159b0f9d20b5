// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package session keeps the logged-in user in a signed cookie.
package session

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/go-accounts/internal/config"
	"codeberg.org/oliverandrich/go-accounts/internal/signing"
	"github.com/gorilla/securecookie"
)

// DefaultCookieName is used when the configuration leaves the name empty.
const DefaultCookieName = "_accounts_session"

// Data is the payload stored in the session cookie.
type Data struct {
	UserID    int64     `json:"uid"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"exp"`
}

// Manager creates and parses session cookies.
type Manager struct {
	codec  *securecookie.SecureCookie
	name   string
	maxAge int
	secure bool
	now    func() time.Time
}

// NewManager creates a Manager. An empty hash key generates a random one,
// so sessions do not survive a restart.
func NewManager(cfg *config.SessionConfig, secure bool) (*Manager, error) {
	var hashKey []byte
	if cfg.HashKey == "" {
		slog.Warn("session_hash_key_missing", "hint", "sessions are lost on restart")
		hashKey = signing.GenerateKey()
	} else {
		key, err := signing.ParseKey(cfg.HashKey, "session hash key")
		if err != nil {
			return nil, err
		}
		hashKey = key
	}

	var blockKey []byte
	if cfg.BlockKey != "" {
		key, err := signing.ParseKey(cfg.BlockKey, "session block key")
		if err != nil {
			return nil, err
		}
		blockKey = key
	}

	name := cfg.CookieName
	if name == "" {
		name = DefaultCookieName
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 86400
	}

	codec := securecookie.New(hashKey, blockKey).
		MaxAge(maxAge).
		SetSerializer(securecookie.JSONEncoder{})

	return &Manager{
		codec:  codec,
		name:   name,
		maxAge: maxAge,
		secure: secure,
		now:    time.Now,
	}, nil
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string {
	return m.name
}

// Create returns a cookie holding a new session for the user.
func (m *Manager) Create(userID int64, email string) (*http.Cookie, error) {
	data := Data{
		UserID:    userID,
		Email:     email,
		ExpiresAt: m.now().Add(time.Duration(m.maxAge) * time.Second).UTC(),
	}

	value, err := m.codec.Encode(m.name, data)
	if err != nil {
		return nil, err
	}

	return m.cookie(value, m.maxAge), nil
}

// Parse returns the session carried by r. Missing, invalid and expired
// cookies yield nil without an error.
func (m *Manager) Parse(r *http.Request) (*Data, error) {
	c, err := r.Cookie(m.name)
	if errors.Is(err, http.ErrNoCookie) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var data Data
	if err := m.codec.Decode(m.name, c.Value, &data); err != nil {
		slog.Debug("session_rejected", "error", err)
		return nil, nil
	}
	if data.UserID == 0 || m.now().After(data.ExpiresAt) {
		return nil, nil
	}
	return &data, nil
}

// Clear returns a cookie that removes the session.
func (m *Manager) Clear() *http.Cookie {
	return m.cookie("", -1)
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
