package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/user-account-service/internal/model"
)

func newUserRepoWithMock(t *testing.T) (*UserRepo, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewUserRepo(db), mock, db
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "username", "email", "password_hash", "phone", "role", "is_verified",
		"verification_token", "verification_expires", "reset_token", "reset_expires",
		"email_change_token", "email_change_expires", "pending_email",
		"phone_change_code", "phone_change_expires", "pending_phone",
		"last_login", "created_at", "updated_at",
	})
}

func TestUserRepoCreate_NormalizesEmailAndReturnsID(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	tok := "deadbeef"
	exp := time.Now().Add(24 * time.Hour)
	u := &model.User{
		Username: "alice", Email: "  Alice@X.com ", PasswordHash: "$2a$hash",
		Role: model.RoleUser, VerificationToken: &tok, VerificationExpires: &exp,
	}

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs("alice", "alice@x.com", "$2a$hash", "", model.RoleUser, false, tok, exp).
		WillReturnResult(sqlmock.NewResult(7, 1))

	id, err := repo.Create(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoCreate_DuplicateKeyMapping(t *testing.T) {
	tests := []struct {
		name    string
		dbErr   error
		wantErr error
	}{
		{"email taken", errors.New("Error 1062 (23000): Duplicate entry 'a@x.com' for key 'users.uq_users_email'"), ErrEmailExists},
		{"username taken", errors.New("Error 1062 (23000): Duplicate entry 'alice' for key 'users.uq_users_username'"), ErrUsernameExists},
		{"other error passes through", errors.New("connection refused"), nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock, db := newUserRepoWithMock(t)
			defer db.Close()

			mock.ExpectExec(`INSERT INTO users`).WillReturnError(tc.dbErr)

			_, err := repo.Create(context.Background(), &model.User{Username: "alice", Email: "a@x.com"})
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.EqualError(t, err, tc.dbErr.Error())
			}
		})
	}
}

func TestUserRepoGetByEmail_NotFound(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM users WHERE email=\?`).
		WithArgs("nobody@x.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "Nobody@X.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepoGetByVerificationToken(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .+ FROM users WHERE verification_token=\?`).
		WithArgs("cafe").
		WillReturnRows(userRows().AddRow(
			3, "alice", "alice@x.com", "$2a$h", "", "user", false,
			"cafe", now.Add(time.Hour), nil, nil,
			nil, nil, nil,
			nil, nil, nil,
			nil, now, now))

	u, err := repo.GetByVerificationToken(context.Background(), "cafe")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), u.ID)
	require.NotNil(t, u.VerificationToken)
	assert.Equal(t, "cafe", *u.VerificationToken)
	assert.False(t, u.IsVerified)
}

// The consume statements guard on the token still being present and fresh;
// zero affected rows means another request already spent it.
func TestUserRepoConsumeVerification_SecondCallerLoses(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	q := `UPDATE users SET is_verified=1, verification_token=NULL, verification_expires=NULL\s+WHERE id=\? AND verification_token=\? AND verification_expires > \?`

	mock.ExpectExec(q).WithArgs(uint64(3), "cafe", now).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(uint64(3), "cafe", now).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.ConsumeVerification(context.Background(), 3, "cafe", now))
	assert.ErrorIs(t, repo.ConsumeVerification(context.Background(), 3, "cafe", now), ErrConflict)
}

func TestUserRepoConsumeReset(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	q := `UPDATE users SET password_hash=\?, reset_token=NULL, reset_expires=NULL\s+WHERE id=\? AND reset_token=\? AND reset_expires > \?`

	mock.ExpectExec(q).WithArgs("$2a$new", uint64(5), "feed", now).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("$2a$new", uint64(5), "feed", now).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.ConsumeReset(context.Background(), 5, "feed", "$2a$new", now))
	assert.ErrorIs(t, repo.ConsumeReset(context.Background(), 5, "feed", "$2a$new", now), ErrConflict)
}

// Uniqueness is re-checked at confirmation time by the UNIQUE index: if
// another account claimed the pending address after the request, the swap
// fails with ErrEmailExists rather than silently duplicating.
func TestUserRepoConsumeEmailChange_AddressClaimedMeanwhile(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE users SET email=\?`).
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry 'new@x.com' for key 'users.uq_users_email'"))

	err := repo.ConsumeEmailChange(context.Background(), 5, "tok", "New@X.com", time.Now())
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUserRepoConsumePhoneChange_WrongCode(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectExec(`UPDATE users SET phone=\?`).
		WithArgs("+33600000000", uint64(9), "123456", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ConsumePhoneChange(context.Background(), 9, "123456", "+33600000000", now)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUserRepoUpdateUsername_Duplicate(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE users SET username=\? WHERE id=\?`).
		WithArgs("bob", uint64(3)).
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry 'bob' for key 'users.uq_users_username'"))

	assert.ErrorIs(t, repo.UpdateUsername(context.Background(), 3, "bob"), ErrUsernameExists)
}

func TestUserRepoGetStats(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\),`).
		WillReturnRows(sqlmock.NewRows([]string{"total", "verified", "admins"}).AddRow(10, 7, 2))

	s, err := repo.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{TotalUsers: 10, VerifiedUsers: 7, AdminUsers: 2}, s)
}
