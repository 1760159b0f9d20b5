// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"codeberg.org/oliverandrich/go-accounts/internal/handlers"
	"codeberg.org/oliverandrich/go-accounts/internal/middleware"
	"github.com/labstack/echo/v4"
)

func setupRoutes(e *echo.Echo, h *handlers.Handlers, a *handlers.AuthHandlers) {
	e.GET("/health", h.Health)

	g := e.Group("/auth")

	// Anonymous only
	g.POST("/register", a.Register, middleware.RequireAnonymous)
	g.POST("/login", a.Login, middleware.RequireAnonymous)

	// Public
	g.POST("/activate/resend", a.ResendActivation)
	g.GET("/activate/:key", a.Activate)
	g.POST("/logout", a.Logout)
	g.POST("/password/recover", a.RecoverPassword)
	g.POST("/password/reset", a.ResetPassword)

	// Session required
	g.GET("/me", a.Me, middleware.RequireAuth)
	g.POST("/password/change", a.ChangePassword, middleware.RequireAuth)
}
