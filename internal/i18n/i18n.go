// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package i18n

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed translations/*.toml
var translationFS embed.FS

// ErrUnknownMessage is returned by Renderer for ids missing from every catalog.
var ErrUnknownMessage = errors.New("unknown message")

// Supported lists the languages with a catalog, default first.
var Supported = []language.Tag{
	language.English,
	language.Polish,
}

var (
	bundle   *i18n.Bundle
	initOnce sync.Once
	initErr  error
)

type localeContextKey struct{}
type localizerContextKey struct{}

// Init initializes the i18n bundle with embedded translations. It is safe
// to call more than once.
func Init() error {
	initOnce.Do(func() {
		b := i18n.NewBundle(language.English)
		b.RegisterUnmarshalFunc("toml", toml.Unmarshal)

		files := []string{
			"translations/active.en.toml",
			"translations/active.pl.toml",
		}

		for _, file := range files {
			if _, err := b.LoadMessageFileFS(translationFS, file); err != nil {
				initErr = fmt.Errorf("loading %s: %w", file, err)
				return
			}
		}
		bundle = b
	})
	return initErr
}

// WithLocale adds the locale to the context.
func WithLocale(ctx context.Context, lang language.Tag) context.Context {
	base, _ := lang.Base()
	locale := base.String()
	ctx = context.WithValue(ctx, localeContextKey{}, locale)
	localizer := i18n.NewLocalizer(bundle, locale)
	return context.WithValue(ctx, localizerContextKey{}, localizer)
}

// GetLocale returns the current locale from context.
func GetLocale(ctx context.Context) string {
	if locale, ok := ctx.Value(localeContextKey{}).(string); ok {
		return locale
	}
	return "en"
}

// T translates a message by ID.
func T(ctx context.Context, messageID string) string {
	return TData(ctx, messageID, nil)
}

// TData translates a message with template data. Unknown ids are returned
// as they are.
func TData(ctx context.Context, messageID string, data map[string]any) string {
	msg, err := localize(ctx, messageID, data)
	if err != nil {
		return messageID
	}
	return msg
}

// MatchLanguage matches the best language from Accept-Language header.
func MatchLanguage(acceptLanguage string) language.Tag {
	matcher := language.NewMatcher(Supported)
	tag, _ := language.MatchStrings(matcher, acceptLanguage)
	return tag
}

// Renderer renders catalog messages as templates. The template id is the
// message id; the data is passed to the message template.
type Renderer struct{}

// NewRenderer returns a Renderer backed by the embedded catalogs.
func NewRenderer() (*Renderer, error) {
	if err := Init(); err != nil {
		return nil, err
	}
	return &Renderer{}, nil
}

// Render renders the message with id templateID in the locale carried by
// ctx, falling back to English.
func (Renderer) Render(ctx context.Context, templateID string, data map[string]any) (string, error) {
	msg, err := localize(ctx, templateID, data)
	if err != nil {
		return "", err
	}
	return msg, nil
}

func localize(ctx context.Context, messageID string, data map[string]any) (string, error) {
	if bundle == nil {
		return "", errors.New("i18n: not initialized")
	}
	msg, err := getLocalizer(ctx).Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		var notFound *i18n.MessageNotFoundErr
		if errors.As(err, &notFound) {
			// Found in the default language only
			if msg != "" {
				return msg, nil
			}
			return "", fmt.Errorf("%w: %q", ErrUnknownMessage, messageID)
		}
		return "", fmt.Errorf("rendering %q: %w", messageID, err)
	}
	return msg, nil
}

func getLocalizer(ctx context.Context) *i18n.Localizer {
	if localizer, ok := ctx.Value(localizerContextKey{}).(*i18n.Localizer); ok {
		return localizer
	}
	return i18n.NewLocalizer(bundle, "en")
}
