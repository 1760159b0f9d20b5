// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email delivers outgoing mail through a configurable backend.
package email

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"codeberg.org/oliverandrich/go-accounts/internal/config"
)

var (
	// ErrSendFailed wraps every transport failure.
	ErrSendFailed = errors.New("failed to send email")
	// ErrInvalidMessage is returned for messages that cannot be sent.
	ErrInvalidMessage = errors.New("invalid email message")
	// ErrInvalidConfig is returned when a backend is misconfigured.
	ErrInvalidConfig = errors.New("invalid mail configuration")
)

// Message is a single outgoing email.
type Message struct { //nolint:govet // fieldalignment: readability over optimization
	From     string
	To       []string
	Subject  string
	Body     string // text/plain
	HTMLBody string // optional text/html alternative
	ReplyTo  string
	Tag      string
	Headers  map[string]string
}

// Validate checks that the message has a sender and valid recipients.
func (m *Message) Validate() error {
	if m.From == "" {
		return fmt.Errorf("%w: from address is required", ErrInvalidMessage)
	}
	if len(m.To) == 0 {
		return fmt.Errorf("%w: at least one recipient is required", ErrInvalidMessage)
	}
	for _, to := range m.To {
		if _, err := mail.ParseAddress(to); err != nil {
			return fmt.Errorf("%w: recipient %q: %v", ErrInvalidMessage, to, err)
		}
	}
	return nil
}

// Option customizes a Message before it is sent.
type Option func(*Message)

// WithHTMLBody adds an HTML alternative body.
func WithHTMLBody(html string) Option {
	return func(m *Message) {
		m.HTMLBody = html
	}
}

// WithReplyTo sets the Reply-To address.
func WithReplyTo(addr string) Option {
	return func(m *Message) {
		m.ReplyTo = addr
	}
}

// WithTag labels the message for backends that support tagging.
func WithTag(tag string) Option {
	return func(m *Message) {
		m.Tag = tag
	}
}

// WithHeader adds a custom header.
func WithHeader(name, value string) Option {
	return func(m *Message) {
		if m.Headers == nil {
			m.Headers = make(map[string]string)
		}
		m.Headers[name] = value
	}
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// NewSender builds the Sender selected by cfg.Backend.
func NewSender(cfg *config.MailConfig) (Sender, error) {
	switch cfg.Backend {
	case config.MailBackendSMTP:
		return NewSMTPSender(&cfg.SMTP)
	case config.MailBackendPostmark:
		return NewPostmarkSender(&cfg.Postmark)
	case config.MailBackendConsole:
		return NewConsoleSender(nil), nil
	case config.MailBackendMemory:
		return NewOutbox(), nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, cfg.Backend)
	}
}

// FromAddress formats the configured sender, with display name if present.
func FromAddress(cfg *config.MailConfig) string {
	if cfg.FromName == "" {
		return cfg.From
	}
	addr := mail.Address{Name: cfg.FromName, Address: cfg.From}
	return addr.String()
}
