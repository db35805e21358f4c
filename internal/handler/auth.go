package handler

import (
	"context"  // provides context with cancellation for service calls
	"errors"   // sentinel comparisons for outcome mapping
	"net/http" // HTTP status codes and primitives
	"strings"  // string normalization utilities
	"time"     // timeouts for service calls

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/user-account-service/internal/middleware"
	"github.com/iliyamo/user-account-service/internal/repository"
	"github.com/iliyamo/user-account-service/internal/service"
)

// AuthHandler adapts the credential lifecycle flows to HTTP. All business
// rules live in the account service; this layer binds requests, bounds
// timeouts, and maps outcomes to statuses and deliberately generic messages.
type AuthHandler struct {
	Accounts *service.AccountService
}

func NewAuthHandler(accounts *service.AccountService) *AuthHandler {
	return &AuthHandler{Accounts: accounts}
}

// ----- DTOs -----

type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type forgotReq struct {
	Email string `json:"email"`
}
type resetReq struct {
	Password string `json:"password"`
}

type userPart struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}
type loginResp struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
	User    userPart  `json:"user"`
}

// forgotPasswordMsg is returned whether or not the address exists; the two
// paths must stay byte-identical.
const forgotPasswordMsg = "if your email is registered, you will receive a reset link"

func requestMeta(c echo.Context) service.RequestMeta {
	return service.RequestMeta{
		IP:        c.RealIP(),
		UserAgent: c.Request().Header.Get("User-Agent"),
	}
}

func opCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

// Register: create an unverified account and send the verification email.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/email/password required"})
	}
	if len(req.Password) < 6 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 6 characters"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	err := h.Accounts.Register(ctx, req.Username, req.Email, req.Password, strings.TrimSpace(req.Phone), requestMeta(c))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		case errors.Is(err, repository.ErrUsernameExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "username already exists"})
		}
		c.Logger().Errorf("register: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "registration successful, please check your email to verify your account",
	})
}

// VerifyEmail: consume a verification token from the emailed link.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	if err := h.Accounts.VerifyEmail(ctx, token, requestMeta(c)); err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			// Expired and wrong tokens get the same response on purpose.
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired token"})
		}
		c.Logger().Errorf("verify email: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "verification failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "email verified successfully, you can now log in"})
}

// Login: check credentials and return a session token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	sess, u, err := h.Accounts.Login(ctx, req.Email, req.Password, requestMeta(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid email or password"})
		case errors.Is(err, service.ErrUnverified):
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "please verify your email before logging in"})
		}
		c.Logger().Errorf("login: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}
	return c.JSON(http.StatusOK, loginResp{
		Token:   sess.Token,
		Expires: sess.ExpiresAt,
		User:    userPart{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role},
	})
}

// Logout: record the logout event; the client discards its token (protected).
func (h *AuthHandler) Logout(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := opCtx(c)
	defer cancel()

	h.Accounts.Logout(ctx, uid, requestMeta(c))
	return c.NoContent(http.StatusNoContent)
}

// ForgotPassword: issue a reset token when the address exists. The response
// is the same either way so the endpoint cannot be used to enumerate
// accounts.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	if err := h.Accounts.ForgotPassword(ctx, req.Email, requestMeta(c)); err != nil {
		c.Logger().Errorf("forgot password: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "request failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": forgotPasswordMsg})
}

// ResetPassword: consume a reset token and install the new password.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	token := strings.TrimSpace(c.Param("token"))
	var req resetReq
	if err := c.Bind(&req); err != nil || token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if len(req.Password) < 6 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 6 characters"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	if err := h.Accounts.ResetPassword(ctx, token, req.Password, requestMeta(c)); err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired token"})
		}
		c.Logger().Errorf("reset password: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password reset successfully"})
}
