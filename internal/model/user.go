package model

import "time"

// User represents an account record as stored in the `users` table.  Each
// field corresponds to a column in the database.  The json tags are omitted
// here because these structs are used internally by the repository layer;
// handlers define separate response types with appropriate JSON tags so that
// the password hash and token values never leak into API responses.
//
// Every single-use token purpose owns its own value/expiry column pair.  A
// pair is populated when the token is issued, overwritten if a new token for
// the same purpose is issued, and set back to NULL once consumed.  At most
// one token per purpose is therefore active at any time.
//
// Fields:
//  ID                – primary key identifier of the user.
//  Username          – unique display name.
//  Email             – unique email address, stored lowercase.
//  PasswordHash      – bcrypt hashed password.  Never the plaintext.
//  Phone             – optional phone number.
//  Role              – "user" or "admin".
//  IsVerified        – whether the email address has been confirmed.
//  VerificationToken – pending email-verification token (nullable).
//  VerificationExpires – expiry of the verification token (nullable).
//  ResetToken        – pending password-reset token (nullable).
//  ResetExpires      – expiry of the reset token (nullable).
//  EmailChangeToken  – pending email-change confirmation token (nullable).
//  EmailChangeExpires – expiry of the email-change token (nullable).
//  PendingEmail      – new address awaiting confirmation (nullable).
//  PhoneChangeCode   – pending 6-digit phone OTP (nullable).
//  PhoneChangeExpires – expiry of the phone OTP (nullable).
//  PendingPhone      – new phone number awaiting confirmation (nullable).
//  LastLogin         – timestamp of the most recent successful login (nullable).
//  CreatedAt         – timestamp of creation.
//  UpdatedAt         – timestamp of last update.
type User struct {
	ID                  uint64     // users.id
	Username            string     // users.username
	Email               string     // users.email
	PasswordHash        string     // users.password_hash
	Phone               string     // users.phone
	Role                string     // users.role
	IsVerified          bool       // users.is_verified
	VerificationToken   *string    // users.verification_token
	VerificationExpires *time.Time // users.verification_expires
	ResetToken          *string    // users.reset_token
	ResetExpires        *time.Time // users.reset_expires
	EmailChangeToken    *string    // users.email_change_token
	EmailChangeExpires  *time.Time // users.email_change_expires
	PendingEmail        *string    // users.pending_email
	PhoneChangeCode     *string    // users.phone_change_code
	PhoneChangeExpires  *time.Time // users.phone_change_expires
	PendingPhone        *string    // users.pending_phone
	LastLogin           *time.Time // users.last_login
	CreatedAt           time.Time  // users.created_at
	UpdatedAt           time.Time  // users.updated_at
}

// Roles stored in users.role and carried in the session token's "role" claim.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
