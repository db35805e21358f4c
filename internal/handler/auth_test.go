package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/user-account-service/internal/auth"
	"github.com/iliyamo/user-account-service/internal/model"
	"github.com/iliyamo/user-account-service/internal/queue"
	"github.com/iliyamo/user-account-service/internal/repository"
	"github.com/iliyamo/user-account-service/internal/service"
)

// stubStore backs the handler tests with a couple of fixed accounts. Writes
// are accepted and dropped; the assertions here are about the HTTP surface,
// not persistence.
type stubStore struct {
	byEmail map[string]model.User
}

func (s *stubStore) Create(_ context.Context, u *model.User) (uint64, error) {
	if _, ok := s.byEmail[strings.ToLower(u.Email)]; ok {
		return 0, repository.ErrEmailExists
	}
	return 99, nil
}

func (s *stubStore) GetByEmail(_ context.Context, email string) (model.User, error) {
	if u, ok := s.byEmail[strings.ToLower(email)]; ok {
		return u, nil
	}
	return model.User{}, repository.ErrNotFound
}

func (s *stubStore) GetByID(_ context.Context, id uint64) (model.User, error) {
	for _, u := range s.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (s *stubStore) GetByVerificationToken(context.Context, string) (model.User, error) {
	return model.User{}, repository.ErrNotFound
}
func (s *stubStore) GetByResetToken(context.Context, string) (model.User, error) {
	return model.User{}, repository.ErrNotFound
}
func (s *stubStore) GetByEmailChangeToken(context.Context, string) (model.User, error) {
	return model.User{}, repository.ErrNotFound
}
func (s *stubStore) ConsumeVerification(context.Context, uint64, string, time.Time) error {
	return repository.ErrConflict
}
func (s *stubStore) SetResetToken(context.Context, uint64, string, time.Time) error { return nil }
func (s *stubStore) ConsumeReset(context.Context, uint64, string, string, time.Time) error {
	return repository.ErrConflict
}
func (s *stubStore) SetEmailChange(context.Context, uint64, string, string, time.Time) error {
	return nil
}
func (s *stubStore) ConsumeEmailChange(context.Context, uint64, string, string, time.Time) error {
	return repository.ErrConflict
}
func (s *stubStore) SetPhoneChange(context.Context, uint64, string, string, time.Time) error {
	return nil
}
func (s *stubStore) ConsumePhoneChange(context.Context, uint64, string, string, time.Time) error {
	return repository.ErrConflict
}
func (s *stubStore) UpdateUsername(context.Context, uint64, string) error  { return nil }
func (s *stubStore) UpdatePassword(context.Context, uint64, string) error  { return nil }
func (s *stubStore) TouchLastLogin(context.Context, uint64, time.Time) error { return nil }

type nopAuditor struct{}

func (nopAuditor) Record(context.Context, uint64, string, string, service.RequestMeta) {}

type nopMailer struct{}

func (nopMailer) Publish(context.Context, queue.EmailEvent) error { return nil }

func newTestHandler(t *testing.T) *AuthHandler {
	t.Helper()
	hash, err := auth.HashPassword("Passw0rd!", 4)
	require.NoError(t, err)
	store := &stubStore{byEmail: map[string]model.User{
		"alice@x.com": {
			ID: 1, Username: "alice", Email: "alice@x.com",
			PasswordHash: hash, Role: model.RoleUser, IsVerified: true,
		},
	}}
	svc := service.NewAccountService(store, nopAuditor{}, nopMailer{}, "test-secret", 24*time.Hour, 4)
	return NewAuthHandler(svc)
}

func doJSON(t *testing.T, h echo.HandlerFunc, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))
	return rec
}

// The forgot-password response must not reveal whether the address exists:
// same status, byte-identical body.
func TestForgotPassword_IdenticalResponses(t *testing.T) {
	h := newTestHandler(t)

	known := doJSON(t, h.ForgotPassword, http.MethodPost, "/v1/auth/forgot-password", `{"email":"alice@x.com"}`)
	unknown := doJSON(t, h.ForgotPassword, http.MethodPost, "/v1/auth/forgot-password", `{"email":"ghost@x.com"}`)

	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, http.StatusOK, unknown.Code)
	assert.Equal(t, known.Body.Bytes(), unknown.Body.Bytes())
}

// Wrong password and unknown account must be indistinguishable: same status
// code, same message.
func TestLogin_IdenticalFailureResponses(t *testing.T) {
	h := newTestHandler(t)

	wrongPass := doJSON(t, h.Login, http.MethodPost, "/v1/auth/login", `{"email":"alice@x.com","password":"nope"}`)
	noUser := doJSON(t, h.Login, http.MethodPost, "/v1/auth/login", `{"email":"ghost@x.com","password":"Passw0rd!"}`)

	assert.Equal(t, http.StatusUnauthorized, wrongPass.Code)
	assert.Equal(t, http.StatusUnauthorized, noUser.Code)
	assert.Equal(t, wrongPass.Body.Bytes(), noUser.Body.Bytes())
}

func TestLogin_Success(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h.Login, http.MethodPost, "/v1/auth/login", `{"email":"Alice@X.com","password":"Passw0rd!"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"token"`)
	assert.Contains(t, rec.Body.String(), `"role":"user"`)
}

func TestRegister_DuplicateEmailConflict(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h.Register, http.MethodPost, "/v1/auth/register",
		`{"username":"alice2","email":"alice@x.com","password":"Passw0rd!"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegister_RejectsShortPassword(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h.Register, http.MethodPost, "/v1/auth/register",
		`{"username":"bob","email":"bob@x.com","password":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyEmail_GenericInvalidTokenResponse(t *testing.T) {
	h := newTestHandler(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/auth/verify-email/bogus", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("token")
	c.SetParamValues("bogus")

	require.NoError(t, h.VerifyEmail(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid or expired token")
}
