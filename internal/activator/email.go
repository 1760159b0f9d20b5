// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package activator

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"codeberg.org/oliverandrich/go-accounts/internal/services/email"
)

// ContextKeyActivationKey is the email context entry holding the key.
const ContextKeyActivationKey = "activation_key"

var (
	ErrNoRenderer        = errors.New("activator: renderer is required")
	ErrNoMailer          = errors.New("activator: mailer is required")
	ErrTemplatesRequired = errors.New("activator: subject and body templates are required")
	ErrAddressRequired   = errors.New("activator: from and to addresses are required")
)

// Mailer delivers a composed message.
type Mailer interface {
	Send(ctx context.Context, msg *email.Message) error
}

// Templates names the templates an EmailActivator renders. Link is
// optional; when set, its rendering becomes the button of an HTML
// alternative body.
type Templates struct {
	Subject string
	Body    string
	Link    string
}

// EmailConfig binds an EmailActivator to one value and one recipient.
type EmailConfig struct { //nolint:govet // fieldalignment: readability over optimization
	ValueToSign string
	From        string
	To          string
	Policy      Policy
	Templates   Templates
	// Context is merged into every email context after the activation key.
	Context map[string]any
}

// EmailActivator mails a freshly generated key for a bound value.
type EmailActivator struct {
	*Activator
	renderer Renderer
	mailer   Mailer
	cfg      EmailConfig
}

// NewEmail creates an EmailActivator.
func NewEmail(signer TokenSigner, renderer Renderer, mailer Mailer, cfg EmailConfig) (*EmailActivator, error) {
	a, err := New(signer, cfg.Policy)
	if err != nil {
		return nil, err
	}
	if renderer == nil {
		return nil, ErrNoRenderer
	}
	if mailer == nil {
		return nil, ErrNoMailer
	}
	if cfg.Templates.Subject == "" || cfg.Templates.Body == "" {
		return nil, ErrTemplatesRequired
	}
	if cfg.From == "" || cfg.To == "" {
		return nil, ErrAddressRequired
	}
	cfg.Context = maps.Clone(cfg.Context)

	return &EmailActivator{
		Activator: a,
		renderer:  renderer,
		mailer:    mailer,
		cfg:       cfg,
	}, nil
}

// EmailContext returns a fresh context holding a new activation key, the
// bound context and extra, later entries overriding earlier ones.
func (e *EmailActivator) EmailContext(extra map[string]any) (map[string]any, error) {
	key, err := e.GenerateKey(e.cfg.ValueToSign)
	if err != nil {
		return nil, err
	}

	data := make(map[string]any, 1+len(e.cfg.Context)+len(extra))
	data[ContextKeyActivationKey] = key
	maps.Copy(data, e.cfg.Context)
	maps.Copy(data, extra)
	return data, nil
}

// SubjectAndMessage renders subject and body against one email context.
// The subject is always a single line.
func (e *EmailActivator) SubjectAndMessage(ctx context.Context) (string, string, error) {
	data, err := e.EmailContext(nil)
	if err != nil {
		return "", "", err
	}
	subject, body, _, err := e.render(ctx, data)
	return subject, body, err
}

// Message composes the activation mail. Options are applied first so they
// can never replace the subject, body or addresses.
func (e *EmailActivator) Message(ctx context.Context, opts ...email.Option) (*email.Message, error) {
	data, err := e.EmailContext(nil)
	if err != nil {
		return nil, err
	}
	subject, body, link, err := e.render(ctx, data)
	if err != nil {
		return nil, err
	}

	msg := &email.Message{}
	for _, opt := range opts {
		opt(msg)
	}
	msg.From = e.cfg.From
	msg.To = []string{e.cfg.To}
	msg.Subject = subject
	msg.Body = body

	if link != "" {
		html, err := email.RenderHTML(ctx, email.ActivationHTML(subject, body, link))
		if err != nil {
			return nil, fmt.Errorf("rendering html body: %w", err)
		}
		msg.HTMLBody = html
	}

	return msg, nil
}

// Send composes the activation mail and hands it to the mailer. Mailer
// errors are returned as is.
func (e *EmailActivator) Send(ctx context.Context, opts ...email.Option) error {
	msg, err := e.Message(ctx, opts...)
	if err != nil {
		return err
	}
	return e.mailer.Send(ctx, msg)
}

func (e *EmailActivator) render(ctx context.Context, data map[string]any) (subject, body, link string, err error) {
	subject, err = e.renderer.Render(ctx, e.cfg.Templates.Subject, data)
	if err != nil {
		return "", "", "", fmt.Errorf("rendering subject %q: %w", e.cfg.Templates.Subject, err)
	}
	body, err = e.renderer.Render(ctx, e.cfg.Templates.Body, data)
	if err != nil {
		return "", "", "", fmt.Errorf("rendering body %q: %w", e.cfg.Templates.Body, err)
	}
	if e.cfg.Templates.Link != "" {
		link, err = e.renderer.Render(ctx, e.cfg.Templates.Link, data)
		if err != nil {
			return "", "", "", fmt.Errorf("rendering link %q: %w", e.cfg.Templates.Link, err)
		}
		link = strings.TrimSpace(link)
	}
	return SingleLine(subject), body, link, nil
}

// SingleLine removes every line break from s.
func SingleLine(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
			return -1
		}
		return r
	}, s)
}
