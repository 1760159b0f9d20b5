// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"strings"

	"github.com/a-h/templ"
)

// paragraphs splits a plain text body on blank lines, then each paragraph
// into its lines.
func paragraphs(body string) [][]string {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}
	var out [][]string
	for _, para := range strings.Split(body, "\n\n") {
		out = append(out, strings.Split(para, "\n"))
	}
	return out
}

// RenderHTML renders a component to a string.
func RenderHTML(ctx context.Context, c templ.Component) (string, error) {
	var sb strings.Builder
	if err := c.Render(ctx, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}
