package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/user-account-service/internal/auth"
	"github.com/iliyamo/user-account-service/internal/model"
	"github.com/iliyamo/user-account-service/internal/queue"
	"github.com/iliyamo/user-account-service/internal/repository"
)

// Expected outcomes of the account flows. These are results, not faults:
// handlers map them to HTTP statuses and generic messages.
var (
	// ErrInvalidCredentials covers both "no such account" and "wrong
	// password" so responses cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnverified is the one deliberate exception to the rule above: a
	// correct login on an unverified account tells the user to verify first.
	ErrUnverified = errors.New("please verify your email before logging in")
	// ErrInvalidToken covers wrong, expired, superseded and already-consumed
	// single-use tokens without distinguishing them.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrWrongPassword is returned when an authenticated password change
	// supplies an incorrect current password.
	ErrWrongPassword = errors.New("current password is incorrect")
	// ErrNoPendingChange is returned when a confirmation arrives but no
	// change was requested.
	ErrNoPendingChange = errors.New("no pending change")
)

// UserStore is the slice of the credential store the orchestrator needs.
// *repository.UserRepo satisfies it; tests substitute fakes.
type UserStore interface {
	Create(ctx context.Context, u *model.User) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByVerificationToken(ctx context.Context, token string) (model.User, error)
	GetByResetToken(ctx context.Context, token string) (model.User, error)
	GetByEmailChangeToken(ctx context.Context, token string) (model.User, error)
	ConsumeVerification(ctx context.Context, userID uint64, token string, now time.Time) error
	SetResetToken(ctx context.Context, userID uint64, token string, expires time.Time) error
	ConsumeReset(ctx context.Context, userID uint64, token, newHash string, now time.Time) error
	SetEmailChange(ctx context.Context, userID uint64, pendingEmail, token string, expires time.Time) error
	ConsumeEmailChange(ctx context.Context, userID uint64, token, newEmail string, now time.Time) error
	SetPhoneChange(ctx context.Context, userID uint64, pendingPhone, code string, expires time.Time) error
	ConsumePhoneChange(ctx context.Context, userID uint64, code, newPhone string, now time.Time) error
	UpdateUsername(ctx context.Context, userID uint64, username string) error
	UpdatePassword(ctx context.Context, userID uint64, newHash string) error
	TouchLastLogin(ctx context.Context, userID uint64, at time.Time) error
}

// Mailer queues an outbound email or SMS. Failures are logged by the caller
// and never fail the triggering flow.
type Mailer interface {
	Publish(ctx context.Context, ev queue.EmailEvent) error
}

// AccountService orchestrates every credential lifecycle flow: it reads and
// writes the credential store, mints and checks single-use tokens, hashes
// passwords, and issues sessions. All guard failures short-circuit with no
// side effects beyond an audit entry where the flow specifies one.
type AccountService struct {
	store      UserStore
	audit      Auditor
	mailer     Mailer
	jwtSecret  string
	sessionTTL time.Duration
	bcryptCost int
}

func NewAccountService(store UserStore, audit Auditor, mailer Mailer, jwtSecret string, sessionTTL time.Duration, bcryptCost int) *AccountService {
	return &AccountService{
		store:      store,
		audit:      audit,
		mailer:     mailer,
		jwtSecret:  jwtSecret,
		sessionTTL: sessionTTL,
		bcryptCost: bcryptCost,
	}
}

// Register creates an unverified account and queues the verification email.
// Duplicate email or username surfaces as repository.ErrEmailExists /
// ErrUsernameExists from the store's unique indexes; there is no pre-check,
// so two concurrent registrations cannot both succeed.
func (s *AccountService) Register(ctx context.Context, username, email, password, phone string, meta RequestMeta) error {
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return err
	}
	tok, err := auth.NewToken(auth.PurposeVerification)
	if err != nil {
		return err
	}
	u := &model.User{
		Username:            username,
		Email:               email,
		PasswordHash:        hash,
		Phone:               phone,
		Role:                model.RoleUser,
		IsVerified:          false,
		VerificationToken:   &tok.Value,
		VerificationExpires: &tok.ExpiresAt,
	}
	id, err := s.store.Create(ctx, u)
	if err != nil {
		return err
	}
	s.audit.Record(ctx, id, model.ActionRegister, "user registration", meta)
	s.sendMail(ctx, queue.KindVerification, u.Email, username, tok)
	return nil
}

// VerifyEmail consumes a verification token. The membership lookup, the
// constant-time check, and the atomic consume each independently reject a
// spent or expired token; the caller only ever sees ErrInvalidToken.
func (s *AccountService) VerifyEmail(ctx context.Context, token string, meta RequestMeta) error {
	u, err := s.store.GetByVerificationToken(ctx, token)
	if err != nil {
		return invalidTokenOr(err)
	}
	now := time.Now().UTC()
	if auth.CheckToken(u.VerificationToken, u.VerificationExpires, token, now) != auth.TokenOK {
		return ErrInvalidToken
	}
	if err := s.store.ConsumeVerification(ctx, u.ID, token, now); err != nil {
		return invalidTokenOr(err)
	}
	s.audit.Record(ctx, u.ID, model.ActionVerifyEmail, "email verified", meta)
	return nil
}

// Login checks credentials and the verification gate, stamps last_login, and
// issues a session. Unknown email and wrong password return the same error.
func (s *AccountService) Login(ctx context.Context, email, password string, meta RequestMeta) (auth.SignedSession, model.User, error) {
	u, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return auth.SignedSession{}, model.User{}, ErrInvalidCredentials
		}
		return auth.SignedSession{}, model.User{}, err
	}
	if !auth.VerifyPassword(u.PasswordHash, password) {
		return auth.SignedSession{}, model.User{}, ErrInvalidCredentials
	}
	if !u.IsVerified {
		return auth.SignedSession{}, model.User{}, ErrUnverified
	}
	sess, err := auth.NewSession(s.jwtSecret, u.ID, u.Role, s.sessionTTL)
	if err != nil {
		return auth.SignedSession{}, model.User{}, err
	}
	if err := s.store.TouchLastLogin(ctx, u.ID, time.Now().UTC()); err != nil {
		log.Printf("login: stamping last_login for user %d failed: %v", u.ID, err)
	}
	s.audit.Record(ctx, u.ID, model.ActionLogin, "user login", meta)
	return sess, u, nil
}

// Logout records the logout event. Sessions are stateless JWTs, so there is
// nothing to revoke server-side; the client discards the token.
func (s *AccountService) Logout(ctx context.Context, userID uint64, meta RequestMeta) {
	s.audit.Record(ctx, userID, model.ActionLogout, "user logout", meta)
}

// ForgotPassword issues a reset token when the address exists and does
// nothing otherwise. Callers must return an identical response in both
// cases; only store failures propagate.
func (s *AccountService) ForgotPassword(ctx context.Context, email string, meta RequestMeta) error {
	u, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil // indistinguishable from success by design of the flow
		}
		return err
	}
	tok, err := auth.NewToken(auth.PurposeReset)
	if err != nil {
		return err
	}
	if err := s.store.SetResetToken(ctx, u.ID, tok.Value, tok.ExpiresAt); err != nil {
		return err
	}
	s.audit.Record(ctx, u.ID, model.ActionForgotPassword, "password reset requested", meta)
	s.sendMail(ctx, queue.KindPasswordReset, u.Email, u.Username, tok)
	return nil
}

// ResetPassword consumes a reset token and installs the new password hash in
// the same atomic store update, so a double-submitted link succeeds at most
// once.
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string, meta RequestMeta) error {
	u, err := s.store.GetByResetToken(ctx, token)
	if err != nil {
		return invalidTokenOr(err)
	}
	now := time.Now().UTC()
	if auth.CheckToken(u.ResetToken, u.ResetExpires, token, now) != auth.TokenOK {
		return ErrInvalidToken
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.store.ConsumeReset(ctx, u.ID, token, hash, now); err != nil {
		return invalidTokenOr(err)
	}
	s.audit.Record(ctx, u.ID, model.ActionResetPassword, "password reset", meta)
	return nil
}

// RequestEmailChange stores the pending address with a confirmation token and
// queues mail to the new address. The early uniqueness check gives a prompt
// Conflict; the decisive check happens again at confirmation time.
func (s *AccountService) RequestEmailChange(ctx context.Context, userID uint64, newEmail string, meta RequestMeta) error {
	if other, err := s.store.GetByEmail(ctx, newEmail); err == nil && other.ID != userID {
		return repository.ErrEmailExists
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	tok, err := auth.NewToken(auth.PurposeEmailChange)
	if err != nil {
		return err
	}
	if err := s.store.SetEmailChange(ctx, userID, newEmail, tok.Value, tok.ExpiresAt); err != nil {
		return err
	}
	s.audit.Record(ctx, userID, model.ActionRequestEmailChange,
		fmt.Sprintf("email change requested: %s -> %s", u.Email, newEmail), meta)
	s.sendMail(ctx, queue.KindEmailChange, newEmail, u.Username, tok) // confirmation goes to the NEW address
	return nil
}

// ConfirmEmailChange consumes the change token and swaps in the pending
// address. If another account claimed the address between request and
// confirm, the store's unique index reports repository.ErrEmailExists.
func (s *AccountService) ConfirmEmailChange(ctx context.Context, token string, meta RequestMeta) error {
	u, err := s.store.GetByEmailChangeToken(ctx, token)
	if err != nil {
		return invalidTokenOr(err)
	}
	now := time.Now().UTC()
	if auth.CheckToken(u.EmailChangeToken, u.EmailChangeExpires, token, now) != auth.TokenOK {
		return ErrInvalidToken
	}
	if u.PendingEmail == nil || *u.PendingEmail == "" {
		return ErrInvalidToken
	}
	if err := s.store.ConsumeEmailChange(ctx, u.ID, token, *u.PendingEmail, now); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return err
		}
		return invalidTokenOr(err)
	}
	s.audit.Record(ctx, u.ID, model.ActionConfirmEmailChange,
		fmt.Sprintf("email changed: %s -> %s", u.Email, *u.PendingEmail), meta)
	return nil
}

// UpdateUsername renames the account in a single step. Uniqueness is
// enforced by the store's unique index.
func (s *AccountService) UpdateUsername(ctx context.Context, userID uint64, username string, meta RequestMeta) error {
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.store.UpdateUsername(ctx, userID, username); err != nil {
		return err
	}
	s.audit.Record(ctx, userID, model.ActionUpdateUsername,
		fmt.Sprintf("username changed: %s -> %s", u.Username, username), meta)
	return nil
}

// ChangePassword replaces the password of an authenticated user after
// verifying the current one.
func (s *AccountService) ChangePassword(ctx context.Context, userID uint64, current, newPassword string, meta RequestMeta) error {
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.VerifyPassword(u.PasswordHash, current) {
		return ErrWrongPassword
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	s.audit.Record(ctx, userID, model.ActionChangePassword, "password changed", meta)
	return nil
}

// RequestPhoneChange stores the pending number with a short-lived 6-digit
// OTP and queues it for SMS delivery.
func (s *AccountService) RequestPhoneChange(ctx context.Context, userID uint64, newPhone string, meta RequestMeta) error {
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	tok, err := auth.NewToken(auth.PurposePhoneChange)
	if err != nil {
		return err
	}
	if err := s.store.SetPhoneChange(ctx, userID, newPhone, tok.Value, tok.ExpiresAt); err != nil {
		return err
	}
	s.audit.Record(ctx, userID, model.ActionRequestPhoneChange,
		fmt.Sprintf("phone change requested: %s -> %s", u.Phone, newPhone), meta)
	s.sendMail(ctx, queue.KindPhoneCode, newPhone, u.Username, tok)
	return nil
}

// ConfirmPhoneChange consumes the OTP and swaps in the pending number. The
// code is bound to the authenticated user, not looked up globally.
func (s *AccountService) ConfirmPhoneChange(ctx context.Context, userID uint64, code string, meta RequestMeta) error {
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if auth.CheckToken(u.PhoneChangeCode, u.PhoneChangeExpires, code, now) != auth.TokenOK {
		return ErrInvalidToken
	}
	if u.PendingPhone == nil || *u.PendingPhone == "" {
		return ErrNoPendingChange
	}
	if err := s.store.ConsumePhoneChange(ctx, userID, code, *u.PendingPhone, now); err != nil {
		return invalidTokenOr(err)
	}
	s.audit.Record(ctx, userID, model.ActionConfirmPhoneChange,
		fmt.Sprintf("phone changed: %s -> %s", u.Phone, *u.PendingPhone), meta)
	return nil
}

// Profile returns the account record for the authenticated user. The handler
// is responsible for excluding the hash and token fields from the response.
func (s *AccountService) Profile(ctx context.Context, userID uint64) (model.User, error) {
	return s.store.GetByID(ctx, userID)
}

// sendMail queues an outbound message and logs (but tolerates) failure: the
// credential state is already committed and must not be rolled back because
// a notification could not be queued.
func (s *AccountService) sendMail(ctx context.Context, kind, to, name string, tok auth.Token) {
	ev := queue.EmailEvent{
		Kind:      kind,
		To:        to,
		Name:      name,
		Token:     tok.Value,
		IssuedAt:  time.Now().UTC().Format(time.RFC3339),
		ExpiresAt: tok.ExpiresAt.Format(time.RFC3339),
	}
	if err := s.mailer.Publish(ctx, ev); err != nil {
		log.Printf("mail: queueing %s to %s failed: %v", kind, to, err)
	}
}

// invalidTokenOr keeps expected lookup/consume outcomes behind the generic
// invalid-token result while letting store failures escape as internal.
func invalidTokenOr(err error) error {
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrConflict) {
		return ErrInvalidToken
	}
	return err
}
