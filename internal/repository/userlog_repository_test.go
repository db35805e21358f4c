package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/user-account-service/internal/model"
)

func newLogRepoWithMock(t *testing.T) (*UserLogRepo, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewUserLogRepo(db), mock, db
}

func TestUserLogInsert(t *testing.T) {
	repo, mock, db := newLogRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO user_logs`).
		WithArgs(uint64(3), model.ActionLogin, "user login", "10.0.0.1", "curl/8").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Insert(context.Background(), &model.UserLog{
		UserID: 3, Action: model.ActionLogin, Details: "user login",
		IPAddress: "10.0.0.1", UserAgent: "curl/8",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserLogList_ActionFilterAndPagination(t *testing.T) {
	repo, mock, db := newLogRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM user_logs WHERE action=\?`).
		WithArgs(model.ActionLogin).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(41))
	mock.ExpectQuery(`SELECT id,user_id,action,details,ip_address,user_agent,created_at\s+FROM user_logs WHERE action=\? ORDER BY created_at DESC, id DESC LIMIT \? OFFSET \?`).
		WithArgs(model.ActionLogin, 20, 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "action", "details", "ip_address", "user_agent", "created_at"}).
			AddRow(2, 3, model.ActionLogin, "user login", "10.0.0.1", "curl/8", now).
			AddRow(1, 4, model.ActionLogin, "user login", "10.0.0.2", "curl/8", now.Add(-time.Minute)))

	logs, total, err := repo.List(context.Background(), model.ActionLogin, 20, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(41), total)
	require.Len(t, logs, 2)
	assert.Equal(t, uint64(3), logs[0].UserID)
}

func TestUserLogList_NoFilter(t *testing.T) {
	repo, mock, db := newLogRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM user_logs$`).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectQuery(`FROM user_logs ORDER BY created_at DESC`).
		WithArgs(20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "action", "details", "ip_address", "user_agent", "created_at"}))

	logs, total, err := repo.List(context.Background(), "", 0, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, logs)
}

func TestUserLogListByUser(t *testing.T) {
	repo, mock, db := newLogRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM user_logs WHERE user_id=\?`).
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectQuery(`FROM user_logs WHERE user_id=\?`).
		WithArgs(uint64(3), 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "action", "details", "ip_address", "user_agent", "created_at"}).
			AddRow(9, 3, model.ActionRegister, "user registration", "10.0.0.1", "curl/8", now))

	logs, total, err := repo.ListByUser(context.Background(), 3, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, logs, 1)
	assert.Equal(t, model.ActionRegister, logs[0].Action)
}
