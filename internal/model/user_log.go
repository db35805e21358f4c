package model

import "time"

// UserLog models an entry in the append-only `user_logs` audit table.  Rows
// are written once per account state transition and are never updated or
// deleted by the application.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – the account the event belongs to.
//  Action    – one of the Action* constants below.
//  Details   – human-readable description of the transition.
//  IPAddress – client IP captured from the triggering request.
//  UserAgent – client User-Agent captured from the triggering request.
//  CreatedAt – timestamp of the event.
type UserLog struct {
	ID        uint64    // user_logs.id
	UserID    uint64    // user_logs.user_id
	Action    string    // user_logs.action
	Details   string    // user_logs.details
	IPAddress string    // user_logs.ip_address
	UserAgent string    // user_logs.user_agent
	CreatedAt time.Time // user_logs.created_at
}

// Audit actions.  The set is fixed; user_logs.action is an ENUM of exactly
// these values.
const (
	ActionRegister           = "register"
	ActionLogin              = "login"
	ActionLogout             = "logout"
	ActionVerifyEmail        = "verify_email"
	ActionForgotPassword     = "forgot_password"
	ActionResetPassword      = "reset_password"
	ActionUpdateUsername     = "update_username"
	ActionRequestEmailChange = "request_email_change"
	ActionConfirmEmailChange = "confirm_email_change"
	ActionRequestPhoneChange = "request_phone_change"
	ActionConfirmPhoneChange = "confirm_phone_change"
	ActionChangePassword     = "change_password"
)
