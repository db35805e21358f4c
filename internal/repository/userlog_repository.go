package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/user-account-service/internal/model"
)

// UserLogRepo appends and lists audit events in the 'user_logs' table. The
// table is append-only; nothing here updates or deletes rows.
type UserLogRepo struct{ DB *sql.DB }

func NewUserLogRepo(db *sql.DB) *UserLogRepo { return &UserLogRepo{DB: db} }

// Insert appends one audit event.
func (r *UserLogRepo) Insert(ctx context.Context, l *model.UserLog) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO user_logs (user_id, action, details, ip_address, user_agent) VALUES (?,?,?,?,?)",
		l.UserID, l.Action, l.Details, l.IPAddress, l.UserAgent)
	return err
}

// ListByUser returns one page of a user's audit trail, newest first, plus the
// total count for pagination.
func (r *UserLogRepo) ListByUser(ctx context.Context, userID uint64, offset, limit int) ([]model.UserLog, int64, error) {
	var total int64
	if err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM user_logs WHERE user_id=?", userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,user_id,action,details,ip_address,user_agent,created_at
		 FROM user_logs WHERE user_id=? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	logs, err := scanLogs(rows)
	return logs, total, err
}

// List returns one page of all audit events, newest first, optionally
// filtered by action. An empty action means no filter.
func (r *UserLogRepo) List(ctx context.Context, action string, offset, limit int) ([]model.UserLog, int64, error) {
	where, args := "", []any{}
	if action != "" {
		where = " WHERE action=?"
		args = append(args, action)
	}

	var total int64
	if err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM user_logs"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,user_id,action,details,ip_address,user_agent,created_at
		 FROM user_logs`+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, err
	}
	logs, err := scanLogs(rows)
	return logs, total, err
}

func scanLogs(rows *sql.Rows) ([]model.UserLog, error) {
	defer rows.Close()
	var logs []model.UserLog
	for rows.Next() {
		var l model.UserLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.Action, &l.Details, &l.IPAddress, &l.UserAgent, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
