// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package activator issues and checks signed, time-limited keys bound to a
// single use case such as account activation or password recovery.
package activator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/go-accounts/internal/signing"
)

var (
	ErrSaltRequired   = errors.New("activator: salt is required")
	ErrMaxAgeRequired = errors.New("activator: max age must be positive")
	ErrNoSigner       = errors.New("activator: signer is required")
)

// TokenSigner signs and verifies values under a salt.
type TokenSigner interface {
	Sign(value, salt string) (string, error)
	Verify(token, salt string, maxAge time.Duration) (string, error)
}

// Policy namespaces and bounds the lifetime of a family of keys. Name is
// a label for logs; Salt is never logged.
type Policy struct {
	Name   string
	Salt   string
	MaxAge time.Duration
}

// Validate rejects a policy without a salt or a positive max age.
func (p Policy) Validate() error {
	if p.Salt == "" {
		return ErrSaltRequired
	}
	if p.MaxAge <= 0 {
		return ErrMaxAgeRequired
	}
	return nil
}

// Activator generates and validates keys for one Policy.
type Activator struct {
	signer TokenSigner
	policy Policy
}

// New creates an Activator.
func New(signer TokenSigner, policy Policy) (*Activator, error) {
	if signer == nil {
		return nil, ErrNoSigner
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Activator{signer: signer, policy: policy}, nil
}

// Policy returns the policy the activator was created with.
func (a *Activator) Policy() Policy {
	return a.policy
}

// GenerateKey signs value under the activator's salt.
func (a *Activator) GenerateKey(value string) (string, error) {
	key, err := a.signer.Sign(value, a.policy.Salt)
	if err != nil {
		return "", fmt.Errorf("generating activation key: %w", err)
	}
	return key, nil
}

// ValidateKey returns the signed value and true if key is authentic and
// not older than the max age. Every failure, including input that is not
// a key at all, yields "", false.
func (a *Activator) ValidateKey(key string) (string, bool) {
	value, err := a.Check(key)
	if err != nil {
		return "", false
	}
	return value, true
}

// Check is ValidateKey with the reason for rejection. The error is
// signing.ErrExpired for authentic keys past their max age and
// signing.ErrBadSignature for everything else.
func (a *Activator) Check(key string) (string, error) {
	value, err := a.signer.Verify(key, a.policy.Salt, a.policy.MaxAge)
	if err == nil {
		return value, nil
	}

	reason := "bad_signature"
	if errors.Is(err, signing.ErrExpired) {
		reason = "expired"
	} else if !errors.Is(err, signing.ErrBadSignature) {
		err = fmt.Errorf("%w: %w", signing.ErrBadSignature, err)
	}
	slog.Debug("activation_key_rejected", "policy", a.policy.Name, "reason", reason)

	return "", err
}

// Renderer renders the template with the given id against data.
type Renderer interface {
	Render(ctx context.Context, templateID string, data map[string]any) (string, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, templateID string, data map[string]any) (string, error)

// Render implements Renderer.
func (f RendererFunc) Render(ctx context.Context, templateID string, data map[string]any) (string, error) {
	return f(ctx, templateID, data)
}
