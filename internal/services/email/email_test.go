// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"codeberg.org/oliverandrich/go-accounts/internal/config"
	"github.com/mrz1836/postmark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

func testMessage() *Message {
	return &Message{
		From:    "noreply@example.com",
		To:      []string{"user@example.com"},
		Subject: "Activate your account",
		Body:    "Click the link.",
	}
}

func TestMessageValidate(t *testing.T) {
	require.NoError(t, testMessage().Validate())

	tests := []struct {
		name   string
		mutate func(*Message)
	}{
		{"missing from", func(m *Message) { m.From = "" }},
		{"no recipients", func(m *Message) { m.To = nil }},
		{"bad recipient", func(m *Message) { m.To = []string{"not-an-address"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testMessage()
			tt.mutate(m)
			assert.ErrorIs(t, m.Validate(), ErrInvalidMessage)
		})
	}
}

func TestOptions(t *testing.T) {
	m := testMessage()
	for _, opt := range []Option{
		WithHTMLBody("<p>hi</p>"),
		WithReplyTo("support@example.com"),
		WithTag("activation"),
		WithHeader("X-Campaign", "welcome"),
	} {
		opt(m)
	}

	assert.Equal(t, "<p>hi</p>", m.HTMLBody)
	assert.Equal(t, "support@example.com", m.ReplyTo)
	assert.Equal(t, "activation", m.Tag)
	assert.Equal(t, map[string]string{"X-Campaign": "welcome"}, m.Headers)
}

func TestNewSender(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.MailConfig
		want    any
		wantErr bool
	}{
		{"console", config.MailConfig{Backend: config.MailBackendConsole}, &ConsoleSender{}, false},
		{"memory", config.MailConfig{Backend: config.MailBackendMemory}, &Outbox{}, false},
		{"smtp", config.MailConfig{Backend: config.MailBackendSMTP, SMTP: config.SMTPConfig{Host: "mail.example.com", Port: 587}}, &SMTPSender{}, false},
		{"smtp without host", config.MailConfig{Backend: config.MailBackendSMTP, SMTP: config.SMTPConfig{Port: 587}}, nil, true},
		{"postmark", config.MailConfig{Backend: config.MailBackendPostmark, Postmark: config.PostmarkConfig{ServerToken: "tok"}}, &PostmarkSender{}, false},
		{"postmark without token", config.MailConfig{Backend: config.MailBackendPostmark}, nil, true},
		{"unknown", config.MailConfig{Backend: "pigeon"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, err := NewSender(&tt.cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, sender)
		})
	}
}

func TestNewSMTPSender_InvalidPort(t *testing.T) {
	_, err := NewSMTPSender(&config.SMTPConfig{Host: "mail.example.com", Port: 70000})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestFromAddress(t *testing.T) {
	assert.Equal(t, "noreply@example.com", FromAddress(&config.MailConfig{From: "noreply@example.com"}))
	assert.Equal(t, `"Accounts" <noreply@example.com>`,
		FromAddress(&config.MailConfig{From: "noreply@example.com", FromName: "Accounts"}))
}

func TestBuildMsg(t *testing.T) {
	m := testMessage()
	WithHTMLBody("<p>Click the link.</p>")(m)
	WithReplyTo("support@example.com")(m)
	WithTag("activation")(m)
	WithHeader("X-Campaign", "welcome")(m)

	msg, err := buildMsg(m)
	require.NoError(t, err)

	assert.Equal(t, []string{"Activate your account"}, msg.GetGenHeader(mail.HeaderSubject))
	assert.Equal(t, []string{"activation"}, msg.GetGenHeader(mail.Header("X-Tag")))
	assert.Equal(t, []string{"welcome"}, msg.GetGenHeader(mail.Header("X-Campaign")))
	assert.Len(t, msg.GetParts(), 2)

	to := msg.GetTo()
	require.Len(t, to, 1)
	assert.Equal(t, "user@example.com", to[0].Address)
}

func TestBuildMsg_InvalidFrom(t *testing.T) {
	m := testMessage()
	m.From = "not an address"

	_, err := buildMsg(m)
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

type fakePostmark struct {
	sent []postmark.Email
	resp postmark.EmailResponse
	err  error
}

func (f *fakePostmark) SendEmail(_ context.Context, e postmark.Email) (postmark.EmailResponse, error) {
	f.sent = append(f.sent, e)
	return f.resp, f.err
}

func TestPostmarkSender_Send(t *testing.T) {
	fake := &fakePostmark{}
	sender := &PostmarkSender{client: fake}

	m := testMessage()
	m.To = append(m.To, "other@example.com")
	WithTag("activation")(m)

	require.NoError(t, sender.Send(context.Background(), m))
	require.Len(t, fake.sent, 1)

	sent := fake.sent[0]
	assert.Equal(t, "noreply@example.com", sent.From)
	assert.Equal(t, "user@example.com,other@example.com", sent.To)
	assert.Equal(t, "Activate your account", sent.Subject)
	assert.Equal(t, "Click the link.", sent.TextBody)
	assert.Equal(t, "activation", sent.Tag)
}

func TestToPostmark_Headers(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    []postmark.Header
	}{
		{
			name: "none",
		},
		{
			name:    "single",
			headers: map[string]string{"X-Campaign": "welcome"},
			want:    []postmark.Header{{Name: "X-Campaign", Value: "welcome"}},
		},
		{
			name:    "sorted by name",
			headers: map[string]string{"X-Tenant": "acme", "List-Unsubscribe": "<mailto:u@example.com>"},
			want: []postmark.Header{
				{Name: "List-Unsubscribe", Value: "<mailto:u@example.com>"},
				{Name: "X-Tenant", Value: "acme"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testMessage()
			for name, value := range tt.headers {
				WithHeader(name, value)(m)
			}

			assert.Equal(t, tt.want, toPostmark(m).Headers)
		})
	}
}

func TestPostmarkSender_Errors(t *testing.T) {
	t.Run("transport error", func(t *testing.T) {
		sender := &PostmarkSender{client: &fakePostmark{err: errors.New("connection refused")}}
		err := sender.Send(context.Background(), testMessage())
		assert.ErrorIs(t, err, ErrSendFailed)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("api error", func(t *testing.T) {
		sender := &PostmarkSender{client: &fakePostmark{resp: postmark.EmailResponse{ErrorCode: 300, Message: "Invalid email request"}}}
		err := sender.Send(context.Background(), testMessage())
		assert.ErrorIs(t, err, ErrSendFailed)
		assert.Contains(t, err.Error(), "300")
	})

	t.Run("invalid message", func(t *testing.T) {
		fake := &fakePostmark{}
		sender := &PostmarkSender{client: fake}
		m := testMessage()
		m.To = nil
		assert.ErrorIs(t, sender.Send(context.Background(), m), ErrInvalidMessage)
		assert.Empty(t, fake.sent)
	})
}

func TestConsoleSender(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	sender := NewConsoleSender(logger)
	require.NoError(t, sender.Send(context.Background(), testMessage()))

	out := buf.String()
	assert.Contains(t, out, `"msg":"email_sent"`)
	assert.Contains(t, out, "Activate your account")
	assert.Contains(t, out, "user@example.com")
}

func TestOutbox(t *testing.T) {
	outbox := NewOutbox()
	assert.Nil(t, outbox.Last())

	m := testMessage()
	require.NoError(t, outbox.Send(context.Background(), m))

	// Stored messages are copies
	m.Subject = "changed"
	m.To[0] = "changed@example.com"

	last := outbox.Last()
	require.NotNil(t, last)
	assert.Equal(t, "Activate your account", last.Subject)
	assert.Equal(t, []string{"user@example.com"}, last.To)
	assert.Len(t, outbox.Messages(), 1)

	outbox.Reset()
	assert.Empty(t, outbox.Messages())
}

func TestOutbox_FailWith(t *testing.T) {
	outbox := NewOutbox()
	boom := errors.New("boom")

	outbox.FailWith(boom)
	assert.ErrorIs(t, outbox.Send(context.Background(), testMessage()), boom)
	assert.Empty(t, outbox.Messages())

	outbox.FailWith(nil)
	assert.NoError(t, outbox.Send(context.Background(), testMessage()))
}

func TestActivationHTML(t *testing.T) {
	html, err := RenderHTML(context.Background(),
		ActivationHTML("Welcome <friend>", "Hello & welcome.\nLine two\n\nBye", "https://example.com/auth/activate/abc"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(html, "<!doctype html>"))
	assert.Contains(t, html, "<title>Welcome &lt;friend&gt;</title>")
	assert.Regexp(t, `<p>Hello &amp; welcome\.<br>\s?Line two</p>`, html)
	assert.Contains(t, html, "<p>Bye</p>")
	assert.Contains(t, html, `href="https://example.com/auth/activate/abc"`)
	assert.True(t, strings.HasSuffix(html, "</body></html>"))
}

func TestActivationHTML_UnsafeLink(t *testing.T) {
	html, err := RenderHTML(context.Background(), ActivationHTML("s", "b", "javascript:alert(1)"))
	require.NoError(t, err)

	assert.NotContains(t, html, `href="javascript:`)
	assert.Contains(t, html, `href="about:invalid#TemplFailedSanitizationURL"`)
}

func TestActivationHTML_NoLink(t *testing.T) {
	html, err := RenderHTML(context.Background(), ActivationHTML("s", "Only text", ""))
	require.NoError(t, err)

	assert.Contains(t, html, "<p>Only text</p>")
	assert.NotContains(t, html, "<a ")
}

func TestActivationHTML_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RenderHTML(ctx, ActivationHTML("s", "b", ""))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestParagraphs(t *testing.T) {
	tests := []struct {
		name string
		body string
		want [][]string
	}{
		{"empty", "  \n", nil},
		{"single line", "Hello", [][]string{{"Hello"}}},
		{"lines and paragraphs", "\nA\nB\n\nC\n", [][]string{{"A", "B"}, {"C"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, paragraphs(tt.body))
		})
	}
}
