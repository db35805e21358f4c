package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/user-account-service/internal/auth" // session verification
)

// Context keys populated by JWTAuth for downstream middleware and handlers.
const (
	CtxUserID = "user_id"
	CtxRole   = "role"
)

// JWTAuth returns an Echo middleware that validates a Bearer session token
// and injects the authenticated user's id and role into the request context.
// The provided secret must match the one used when issuing sessions.
// Handlers behind this middleware read the identity via c.Get(CtxUserID) and
// c.Get(CtxRole).  Any parse, signature or expiry failure yields 401 with a
// generic message.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			sess, err := auth.VerifySession(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			c.Set(CtxUserID, sess.UserID)
			c.Set(CtxRole, sess.Role)
			return next(c)
		}
	}
}

// UserID extracts the authenticated user id stored by JWTAuth. The second
// return value is false when the middleware did not run.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(CtxUserID).(uint64)
	return id, ok
}
