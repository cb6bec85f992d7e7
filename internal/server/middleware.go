// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"github.com/labstack/echo/v4"
)

// securityHeaders adds the usual hardening headers. The page only loads
// its own script and talks to its own WebSocket.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			// Prevent MIME type sniffing
			h.Set("X-Content-Type-Options", "nosniff")

			// Prevent clickjacking
			h.Set("X-Frame-Options", "DENY")

			h.Set("Content-Security-Policy", "default-src 'self'; connect-src 'self' ws: wss:; style-src 'self' 'unsafe-inline'")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")

			// Transcripts are per session, never cache them
			if c.Request().URL.Path != "/" {
				h.Set("Cache-Control", "no-store")
			}
			return next(c)
		}
	}
}
