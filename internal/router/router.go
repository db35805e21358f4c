package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/user-account-service/internal/config"
	"github.com/iliyamo/user-account-service/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/user-account-service/internal/middleware" // import middleware for JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance. Currently it exposes only a health check used by
// load balancers and monitoring to verify the service is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth wires the credential lifecycle under /v1/auth. Register,
// login and the token-gated flows are public; logout requires a session.
// The rate limiter only guards the endpoints that accept credentials or
// probe for account existence.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, rl config.RateLimitConfig, rdb *redis.Client) {
	limited := middleware.RateLimit(rl, rdb)

	g := e.Group("/v1/auth")
	g.POST("/register", a.Register, limited)
	// Verification links arrive by email, so this is a GET a browser can follow.
	g.GET("/verify-email/:token", a.VerifyEmail)
	g.POST("/login", a.Login, limited)
	g.POST("/forgot-password", a.ForgotPassword, limited)
	g.POST("/reset-password/:token", a.ResetPassword, limited)
	g.POST("/logout", a.Logout, middleware.JWTAuth(jwtSecret))
}

// RegisterUsers wires the self-service account endpoints under /v1/users.
// Everything here requires a valid session except the email-change
// confirmation, which is reached from a link sent to the new address and
// therefore authenticates by token alone.
func RegisterUsers(e *echo.Echo, u *handler.UserHandler, jwtSecret string) {
	e.GET("/v1/users/email/confirm/:token", u.ConfirmEmailChange)

	g := e.Group("/v1/users")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.GET("/profile", u.Profile)
	g.PUT("/username", u.UpdateUsername)
	g.PUT("/password", u.ChangePassword)
	g.POST("/email", u.RequestEmailChange)
	g.POST("/phone", u.RequestPhoneChange)
	g.POST("/phone/confirm", u.ConfirmPhoneChange)
}

// RegisterAdmin wires the reporting endpoints under /v1/admin. Every route
// in the group requires a session with the admin role.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireAdmin())
	g.GET("/users", a.ListUsers)
	g.GET("/users/:id", a.GetUser)
	g.GET("/logs", a.ListLogs)
	g.GET("/logs/user/:id", a.ListUserLogs)
	g.GET("/stats", a.Stats)
}
