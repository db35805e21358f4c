package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/user-account-service/internal/model"
	"github.com/iliyamo/user-account-service/internal/repository"
)

// AdminHandler serves the reporting endpoints behind RequireAdmin. This is
// read-only plumbing over the repositories; it never exposes password hashes
// or token values.
type AdminHandler struct {
	Users *repository.UserRepo
	Logs  *repository.UserLogRepo
}

func NewAdminHandler(users *repository.UserRepo, logs *repository.UserLogRepo) *AdminHandler {
	return &AdminHandler{Users: users, Logs: logs}
}

type pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Pages int   `json:"pages"`
}

type logPart struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `json:"user_id"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

func pageParams(c echo.Context, defLimit int) (page, limit, offset int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 100 {
		limit = defLimit
	}
	return page, limit, (page - 1) * limit
}

func pages(total int64, limit int) int {
	return int(math.Ceil(float64(total) / float64(limit)))
}

func toLogParts(logs []model.UserLog) []logPart {
	out := make([]logPart, 0, len(logs))
	for _, l := range logs {
		out = append(out, logPart{
			ID: l.ID, UserID: l.UserID, Action: l.Action, Details: l.Details,
			IPAddress: l.IPAddress, UserAgent: l.UserAgent, CreatedAt: l.CreatedAt,
		})
	}
	return out
}

// ListUsers returns a page of users with secrets stripped.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	page, limit, offset := pageParams(c, 10)

	ctx, cancel := opCtx(c)
	defer cancel()

	users, err := h.Users.List(ctx, offset, limit)
	if err != nil {
		c.Logger().Errorf("list users: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	total, err := h.Users.Count(ctx)
	if err != nil {
		c.Logger().Errorf("count users: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	out := make([]profileResp, 0, len(users))
	for _, u := range users {
		out = append(out, toProfile(u))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"users":      out,
		"pagination": pagination{Total: total, Page: page, Pages: pages(total, limit)},
	})
}

// GetUser returns one user by id, secrets stripped.
func (h *AdminHandler) GetUser(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		c.Logger().Errorf("get user: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toProfile(u))
}

// ListLogs returns a page of audit events, optionally filtered by action.
func (h *AdminHandler) ListLogs(c echo.Context) error {
	page, limit, offset := pageParams(c, 20)
	action := c.QueryParam("action")

	ctx, cancel := opCtx(c)
	defer cancel()

	logs, total, err := h.Logs.List(ctx, action, offset, limit)
	if err != nil {
		c.Logger().Errorf("list logs: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"logs":       toLogParts(logs),
		"pagination": pagination{Total: total, Page: page, Pages: pages(total, limit)},
	})
}

// ListUserLogs returns a page of one user's audit trail.
func (h *AdminHandler) ListUserLogs(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	page, limit, offset := pageParams(c, 20)

	ctx, cancel := opCtx(c)
	defer cancel()

	logs, total, err := h.Logs.ListByUser(ctx, id, offset, limit)
	if err != nil {
		c.Logger().Errorf("list user logs: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"logs":       toLogParts(logs),
		"pagination": pagination{Total: total, Page: page, Pages: pages(total, limit)},
	})
}

// Stats returns dashboard counters plus a 7-day registration series.
func (h *AdminHandler) Stats(c echo.Context) error {
	ctx, cancel := opCtx(c)
	defer cancel()

	stats, err := h.Users.GetStats(ctx)
	if err != nil {
		c.Logger().Errorf("stats: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	since := time.Now().UTC().AddDate(0, 0, -7)
	byDay, err := h.Users.RegistrationsByDay(ctx, since)
	if err != nil {
		c.Logger().Errorf("stats registrations: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"total_users":          stats.TotalUsers,
		"verified_users":       stats.VerifiedUsers,
		"admin_users":          stats.AdminUsers,
		"registrations_by_day": byDay,
	})
}
