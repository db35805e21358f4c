package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/user-account-service/internal/model"
)

// UserRepo persists account records in the 'users' table.  Uniqueness of
// email and username is enforced by UNIQUE indexes, not application
// pre-checks, so concurrent inserts cannot slip through a check-then-act
// window.  Token consumption uses conditional UPDATEs that match and clear
// the token in one statement; under a double-submit exactly one statement
// reports an affected row.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `id,username,email,password_hash,phone,role,is_verified,
verification_token,verification_expires,reset_token,reset_expires,
email_change_token,email_change_expires,pending_email,
phone_change_code,phone_change_expires,pending_phone,
last_login,created_at,updated_at`

// Create inserts a new unverified user together with its verification token
// and returns the new ID. Duplicate email or username surfaces as
// ErrEmailExists / ErrUsernameExists.
func (r *UserRepo) Create(ctx context.Context, u *model.User) (uint64, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, phone, role, is_verified,
		 verification_token, verification_expires) VALUES (?,?,?,?,?,?,?,?)`,
		u.Username, u.Email, u.PasswordHash, u.Phone, u.Role, u.IsVerified,
		u.VerificationToken, u.VerificationExpires)
	if err != nil {
		return 0, mapDuplicate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.getWhere(ctx, "email=?", email)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.getWhere(ctx, "id=?", id)
}

// GetByVerificationToken fetches the user holding the given verification
// token. The caller still has to check the value and expiry; this lookup is
// only how the owning row is located.
func (r *UserRepo) GetByVerificationToken(ctx context.Context, token string) (model.User, error) {
	return r.getWhere(ctx, "verification_token=?", token)
}

// GetByResetToken fetches the user holding the given password-reset token.
func (r *UserRepo) GetByResetToken(ctx context.Context, token string) (model.User, error) {
	return r.getWhere(ctx, "reset_token=?", token)
}

// GetByEmailChangeToken fetches the user holding the given email-change token.
func (r *UserRepo) GetByEmailChangeToken(ctx context.Context, token string) (model.User, error) {
	return r.getWhere(ctx, "email_change_token=?", token)
}

func (r *UserRepo) getWhere(ctx context.Context, where string, arg any) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+where+" LIMIT 1", arg).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Phone, &u.Role, &u.IsVerified,
			&u.VerificationToken, &u.VerificationExpires, &u.ResetToken, &u.ResetExpires,
			&u.EmailChangeToken, &u.EmailChangeExpires, &u.PendingEmail,
			&u.PhoneChangeCode, &u.PhoneChangeExpires, &u.PendingPhone,
			&u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// ConsumeVerification marks the account verified and clears the token pair in
// one conditional UPDATE. ErrConflict means the token was already consumed,
// superseded or expired by the time the statement ran.
func (r *UserRepo) ConsumeVerification(ctx context.Context, userID uint64, token string, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET is_verified=1, verification_token=NULL, verification_expires=NULL
		 WHERE id=? AND verification_token=? AND verification_expires > ?`,
		userID, token, now)
	return oneRowOrConflict(res, err)
}

// SetResetToken stores a new password-reset token pair, superseding any
// previous one for this user.
func (r *UserRepo) SetResetToken(ctx context.Context, userID uint64, token string, expires time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET reset_token=?, reset_expires=? WHERE id=?",
		token, expires, userID)
	return err
}

// ConsumeReset swaps in the new password hash and clears the reset token pair
// in one conditional UPDATE. Under concurrent submits of the same link,
// exactly one caller gets nil; the rest get ErrConflict.
func (r *UserRepo) ConsumeReset(ctx context.Context, userID uint64, token, newHash string, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET password_hash=?, reset_token=NULL, reset_expires=NULL
		 WHERE id=? AND reset_token=? AND reset_expires > ?`,
		newHash, userID, token, now)
	return oneRowOrConflict(res, err)
}

// SetEmailChange records the pending address and its confirmation token.
func (r *UserRepo) SetEmailChange(ctx context.Context, userID uint64, pendingEmail, token string, expires time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET pending_email=?, email_change_token=?, email_change_expires=? WHERE id=?",
		strings.ToLower(strings.TrimSpace(pendingEmail)), token, expires, userID)
	return err
}

// ConsumeEmailChange swaps email for the pending address and clears the
// pending fields in one conditional UPDATE. The UNIQUE index on email
// re-checks uniqueness at consumption time: if another account claimed the
// address between request and confirm, MySQL reports a duplicate key and the
// caller sees ErrEmailExists.
func (r *UserRepo) ConsumeEmailChange(ctx context.Context, userID uint64, token, newEmail string, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET email=?, pending_email=NULL, email_change_token=NULL, email_change_expires=NULL
		 WHERE id=? AND email_change_token=? AND email_change_expires > ?`,
		strings.ToLower(strings.TrimSpace(newEmail)), userID, token, now)
	if err != nil {
		return mapDuplicate(err)
	}
	return oneRowOrConflict(res, nil)
}

// SetPhoneChange records the pending phone number and its OTP code.
func (r *UserRepo) SetPhoneChange(ctx context.Context, userID uint64, pendingPhone, code string, expires time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET pending_phone=?, phone_change_code=?, phone_change_expires=? WHERE id=?",
		strings.TrimSpace(pendingPhone), code, expires, userID)
	return err
}

// ConsumePhoneChange swaps phone for the pending number and clears the OTP
// fields in one conditional UPDATE.
func (r *UserRepo) ConsumePhoneChange(ctx context.Context, userID uint64, code, newPhone string, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET phone=?, pending_phone=NULL, phone_change_code=NULL, phone_change_expires=NULL
		 WHERE id=? AND phone_change_code=? AND phone_change_expires > ?`,
		strings.TrimSpace(newPhone), userID, code, now)
	return oneRowOrConflict(res, err)
}

// UpdateUsername renames the account. The UNIQUE index on username turns a
// concurrent claim of the same name into ErrUsernameExists.
func (r *UserRepo) UpdateUsername(ctx context.Context, userID uint64, username string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET username=? WHERE id=?", username, userID)
	return mapDuplicate(err)
}

// UpdatePassword stores a new password hash for an authenticated change.
func (r *UserRepo) UpdatePassword(ctx context.Context, userID uint64, newHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=? WHERE id=?", newHash, userID)
	return err
}

// TouchLastLogin stamps a successful login.
func (r *UserRepo) TouchLastLogin(ctx context.Context, userID uint64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET last_login=? WHERE id=?", at, userID)
	return err
}

// List returns a page of users ordered by id. Offset/limit paging matches the
// admin listing contract; callers strip secrets before serializing.
func (r *UserRepo) List(ctx context.Context, offset, limit int) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY id LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Phone, &u.Role, &u.IsVerified,
			&u.VerificationToken, &u.VerificationExpires, &u.ResetToken, &u.ResetExpires,
			&u.EmailChangeToken, &u.EmailChangeExpires, &u.PendingEmail,
			&u.PhoneChangeCode, &u.PhoneChangeExpires, &u.PendingPhone,
			&u.LastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Count returns the total number of users.
func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}

// Stats aggregates the counters shown on the admin dashboard.
type Stats struct {
	TotalUsers    int64
	VerifiedUsers int64
	AdminUsers    int64
}

// GetStats returns user totals in a single query.
func (r *UserRepo) GetStats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(is_verified=1),0),
		        COALESCE(SUM(role='admin'),0) FROM users`).
		Scan(&s.TotalUsers, &s.VerifiedUsers, &s.AdminUsers)
	return s, err
}

// RegistrationsByDay counts signups per calendar day since the given instant,
// oldest day first. Days without signups are absent from the result.
func (r *UserRepo) RegistrationsByDay(ctx context.Context, since time.Time) (map[string]int64, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT DATE_FORMAT(created_at, '%Y-%m-%d'), COUNT(*)
		 FROM users WHERE created_at >= ?
		 GROUP BY 1 ORDER BY 1`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var day string
		var n int64
		if err := rows.Scan(&day, &n); err != nil {
			return nil, err
		}
		out[day] = n
	}
	return out, rows.Err()
}

// oneRowOrConflict translates "no row matched the guard" into ErrConflict so
// the service layer can report a spent or superseded token.
func oneRowOrConflict(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// mapDuplicate converts MySQL duplicate-key errors (1062) into the matching
// sentinel based on which unique index was hit. Non-duplicate errors pass
// through unchanged.
func mapDuplicate(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "1062") && !strings.Contains(msg, "duplicate entry") {
		return err
	}
	if strings.Contains(msg, "username") {
		return ErrUsernameExists
	}
	return ErrEmailExists
}
