// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package signing produces and verifies tamper-evident, timestamped tokens.
//
// A token carries a string value and the time it was issued. The salt given
// to Sign and Verify is authenticated together with the payload, so a token
// issued for one purpose never verifies for another.
package signing

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/securecookie"
)

// KeyLength is the required length of hex-encoded signing keys, in bytes.
const KeyLength = 32

var (
	// ErrBadSignature is returned for tampered, corrupted or foreign tokens.
	ErrBadSignature = errors.New("bad signature")
	// ErrExpired is returned for authentic tokens older than the allowed age.
	ErrExpired = errors.New("signature expired")
	// ErrEncode is returned when a value cannot be turned into a token.
	ErrEncode = errors.New("cannot encode value")
	// ErrInvalidKey is returned for unusable key material.
	ErrInvalidKey = errors.New("invalid signing key")
)

// envelope is the signed payload.
type envelope struct {
	Value    string `json:"v"`
	IssuedAt int64  `json:"t"` // unix nanoseconds
}

// Signer signs and verifies tokens with a server-held secret.
type Signer struct {
	codec *securecookie.SecureCookie
	now   func() time.Time
}

// Option configures a Signer.
type Option func(*Signer)

// WithClock replaces the time source used for issuing and checking tokens.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}

// New creates a Signer. hashKey authenticates tokens and must be at least
// 32 bytes. blockKey is optional; when set (16, 24 or 32 bytes) the payload
// is encrypted as well.
func New(hashKey, blockKey []byte, opts ...Option) (*Signer, error) {
	if len(hashKey) < KeyLength {
		return nil, fmt.Errorf("%w: hash key must be at least %d bytes", ErrInvalidKey, KeyLength)
	}
	switch len(blockKey) {
	case 0, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: block key must be 16, 24 or 32 bytes", ErrInvalidKey)
	}

	var block []byte
	if len(blockKey) > 0 {
		block = blockKey
	}

	// Age is checked against the envelope timestamp, not the cookie one.
	codec := securecookie.New(hashKey, block).
		MaxAge(0).
		MaxLength(0).
		SetSerializer(securecookie.JSONEncoder{})

	s := &Signer{
		codec: codec,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sign returns a token for value, bound to salt.
func (s *Signer) Sign(value, salt string) (string, error) {
	token, err := s.codec.Encode(salt, envelope{
		Value:    value,
		IssuedAt: s.now().UnixNano(),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return token, nil
}

// Verify returns the value carried by token. It fails with ErrBadSignature
// when the token was not produced by this secret and salt, and with
// ErrExpired when it is older than maxAge. A non-positive maxAge disables
// the age check.
func (s *Signer) Verify(token, salt string, maxAge time.Duration) (string, error) {
	var env envelope
	if err := s.codec.Decode(salt, token, &env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	if maxAge > 0 {
		age := s.now().Sub(time.Unix(0, env.IssuedAt))
		if age > maxAge {
			return "", fmt.Errorf("%w: age %s exceeds %s", ErrExpired, age.Round(time.Millisecond), maxAge)
		}
	}

	return env.Value, nil
}

// ParseKey decodes a hex-encoded key of KeyLength bytes. label names the key
// in error messages.
func ParseKey(hexKey, label string) ([]byte, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", label, err)
	}
	if len(key) != KeyLength {
		return nil, fmt.Errorf("invalid %s: must be %d bytes, got %d", label, KeyLength, len(key))
	}
	return key, nil
}

// GenerateKey returns fresh random key material of KeyLength bytes.
func GenerateKey() []byte {
	return securecookie.GenerateRandomKey(KeyLength)
}
