package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/user-account-service/internal/middleware"
	"github.com/iliyamo/user-account-service/internal/model"
	"github.com/iliyamo/user-account-service/internal/repository"
	"github.com/iliyamo/user-account-service/internal/service"
)

// UserHandler exposes the self-service profile endpoints. Except for
// ConfirmEmailChange (reached from an email link, token-gated) every route
// here sits behind JWTAuth.
type UserHandler struct {
	Accounts *service.AccountService
}

func NewUserHandler(accounts *service.AccountService) *UserHandler {
	return &UserHandler{Accounts: accounts}
}

type updateUsernameReq struct {
	Username string `json:"username"`
}
type emailChangeReq struct {
	NewEmail string `json:"new_email"`
}
type changePasswordReq struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}
type phoneChangeReq struct {
	Phone string `json:"phone"`
}
type phoneConfirmReq struct {
	Code string `json:"code"`
}

// profileResp is the user's own view of their record. Password hash and all
// token values stay out of it.
type profileResp struct {
	ID           uint64     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone,omitempty"`
	Role         string     `json:"role"`
	IsVerified   bool       `json:"is_verified"`
	PendingEmail *string    `json:"pending_email,omitempty"`
	PendingPhone *string    `json:"pending_phone,omitempty"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func toProfile(u model.User) profileResp {
	return profileResp{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Phone:        u.Phone,
		Role:         u.Role,
		IsVerified:   u.IsVerified,
		PendingEmail: u.PendingEmail,
		PendingPhone: u.PendingPhone,
		LastLogin:    u.LastLogin,
		CreatedAt:    u.CreatedAt,
	}
}

// Profile returns the authenticated user's record without secrets.
func (h *UserHandler) Profile(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := opCtx(c)
	defer cancel()

	u, err := h.Accounts.Profile(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		c.Logger().Errorf("profile: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toProfile(u))
}

// UpdateUsername renames the account in a single step.
func (h *UserHandler) UpdateUsername(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req updateUsernameReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username required"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	if err := h.Accounts.UpdateUsername(ctx, uid, req.Username, requestMeta(c)); err != nil {
		if errors.Is(err, repository.ErrUsernameExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "username already exists"})
		}
		c.Logger().Errorf("update username: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "username updated successfully", "username": req.Username})
}

// RequestEmailChange stores the pending address and mails a confirmation
// link to it.
func (h *UserHandler) RequestEmailChange(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req emailChangeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.NewEmail = strings.ToLower(strings.TrimSpace(req.NewEmail))
	if req.NewEmail == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "new_email required"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	if err := h.Accounts.RequestEmailChange(ctx, uid, req.NewEmail, requestMeta(c)); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		c.Logger().Errorf("request email change: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "request failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "a confirmation email has been sent to your new address"})
}

// ConfirmEmailChange swaps in the pending address (public, token-gated).
func (h *UserHandler) ConfirmEmailChange(c echo.Context) error {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	if err := h.Accounts.ConfirmEmailChange(ctx, token, requestMeta(c)); err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			// Someone claimed the pending address between request and confirm.
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		case errors.Is(err, service.ErrInvalidToken):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired token"})
		}
		c.Logger().Errorf("confirm email change: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "confirmation failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "email address updated successfully"})
}

// ChangePassword replaces the password after checking the current one.
func (h *UserHandler) ChangePassword(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "current_password/new_password required"})
	}
	if len(req.NewPassword) < 6 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 6 characters"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	if err := h.Accounts.ChangePassword(ctx, uid, req.CurrentPassword, req.NewPassword, requestMeta(c)); err != nil {
		if errors.Is(err, service.ErrWrongPassword) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "current password is incorrect"})
		}
		c.Logger().Errorf("change password: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated successfully"})
}

// RequestPhoneChange stores the pending number and sends a 6-digit code to it.
func (h *UserHandler) RequestPhoneChange(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req phoneChangeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Phone == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "phone required"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	if err := h.Accounts.RequestPhoneChange(ctx, uid, req.Phone, requestMeta(c)); err != nil {
		c.Logger().Errorf("request phone change: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "request failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "a verification code has been sent to your new number"})
}

// ConfirmPhoneChange consumes the OTP sent to the pending number.
func (h *UserHandler) ConfirmPhoneChange(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req phoneConfirmReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Code) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code required"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	if err := h.Accounts.ConfirmPhoneChange(ctx, uid, strings.TrimSpace(req.Code), requestMeta(c)); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidToken), errors.Is(err, service.ErrNoPendingChange):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired code"})
		}
		c.Logger().Errorf("confirm phone change: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "confirmation failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "phone number updated successfully"})
}
