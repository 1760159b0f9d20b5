// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"codeberg.org/oliverandrich/go-accounts/internal/i18n"
	"github.com/labstack/echo/v4"
)

// Locale detects the preferred language from the Accept-Language header
// and stores it in the request context.
func Locale() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := c.Request()
			lang := i18n.MatchLanguage(r.Header.Get("Accept-Language"))
			c.SetRequest(r.WithContext(i18n.WithLocale(r.Context(), lang)))
			c.Response().Header().Set("Content-Language", i18n.GetLocale(c.Request().Context()))
			return next(c)
		}
	}
}
