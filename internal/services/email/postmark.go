// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"codeberg.org/oliverandrich/go-accounts/internal/config"
	"github.com/mrz1836/postmark"
)

// postmarkClient is the subset of the Postmark API we use.
type postmarkClient interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// PostmarkSender sends mail through Postmark's transactional API.
type PostmarkSender struct {
	client postmarkClient
}

// NewPostmarkSender creates a Postmark-backed Sender.
func NewPostmarkSender(cfg *config.PostmarkConfig) (*PostmarkSender, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("%w: Postmark server token is required", ErrInvalidConfig)
	}
	return &PostmarkSender{
		client: postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
	}, nil
}

// Send implements Sender.
func (s *PostmarkSender) Send(ctx context.Context, m *Message) error {
	if err := m.Validate(); err != nil {
		return err
	}

	resp, err := s.client.SendEmail(ctx, toPostmark(m))
	if err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(
			ErrSendFailed,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}
	return nil
}

func toPostmark(m *Message) postmark.Email {
	// Activation links must stay clickable as sent.
	return postmark.Email{
		From:       m.From,
		To:         strings.Join(m.To, ","),
		ReplyTo:    m.ReplyTo,
		Subject:    m.Subject,
		Tag:        m.Tag,
		TextBody:   m.Body,
		HTMLBody:   m.HTMLBody,
		Headers:    postmarkHeaders(m.Headers),
		TrackOpens: false,
	}
}

func postmarkHeaders(headers map[string]string) []postmark.Header {
	if len(headers) == 0 {
		return nil
	}
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]postmark.Header, 0, len(names))
	for _, name := range names {
		out = append(out, postmark.Header{Name: name, Value: headers[name]})
	}
	return out
}
