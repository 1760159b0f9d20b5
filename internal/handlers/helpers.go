// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"net/http"

	"codeberg.org/oliverandrich/go-accounts/internal/i18n"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/labstack/echo/v4"
)

// MessageResponse is the JSON body of successful requests without a
// payload of their own.
type MessageResponse struct {
	Message string `json:"message"`
}

// bind decodes the request body into dst and validates it.
func bind(c echo.Context, dst validation.Validatable) error {
	if err := c.Bind(dst); err != nil {
		return &APIError{Status: http.StatusBadRequest, Code: CodeBadRequest, Err: err}
	}
	if err := dst.Validate(); err != nil {
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for name, fieldErr := range verrs {
				fields[name] = fieldErr.Error()
			}
			return Invalid(fields)
		}
		return err
	}
	return nil
}

// reply writes a translated message.
func reply(c echo.Context, status int, messageID string) error {
	return c.JSON(status, MessageResponse{Message: i18n.T(c.Request().Context(), messageID)})
}
