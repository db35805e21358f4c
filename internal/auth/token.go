package auth // package auth provides hashing, single-use tokens and session JWTs

import (
    "crypto/rand"      // secure random number generation
    "crypto/subtle"    // constant-time comparison of token values
    "encoding/binary"  // converts random bytes into an integer for OTP codes
    "encoding/hex"     // hex encoding of token bytes
    "fmt"              // formatting of OTP codes
    "time"             // expiry computation
)

// Purpose identifies what a single-use token is issued for.  Each purpose
// has its own TTL and its own column pair in the users table, so issuing a
// new token for a purpose supersedes the previous one.
type Purpose string

const (
    PurposeVerification Purpose = "verification" // email verification link
    PurposeReset        Purpose = "reset"        // password reset link
    PurposeEmailChange  Purpose = "email_change" // email change confirmation link
    PurposePhoneChange  Purpose = "phone_change" // phone change OTP (SMS)
)

// Token lifetimes per purpose.  Link-delivered tokens live long enough for a
// user to read their mail; the phone OTP is short because a 6-digit code has
// far less entropy and is expected to be typed in right away.
const (
    VerificationTTL = 24 * time.Hour
    ResetTTL        = time.Hour
    EmailChangeTTL  = 24 * time.Hour
    PhoneChangeTTL  = 10 * time.Minute
)

// Token is a freshly issued single-use credential.  Value is opaque to the
// server logic: a 64-char hex string (256 bits) for link-delivered purposes,
// or a 6-digit numeric code for the phone purpose.
type Token struct {
    Value     string    // the secret handed to the user
    ExpiresAt time.Time // UTC expiry; the token is valid strictly before this instant
}

// TokenStatus is the outcome of checking a supplied token against a stored one.
// Validation failures are expected results, not errors; callers must handle
// every variant.
type TokenStatus int

const (
    TokenOK       TokenStatus = iota // match and not expired
    TokenExpired                     // value matches but the expiry has passed
    TokenMismatch                    // no stored token or the values differ
)

// NewToken issues a token for the given purpose with the purpose's TTL
// applied to the current UTC time.  Phone-change tokens are 6-digit numeric
// codes suitable for SMS delivery; every other purpose gets a 32-byte
// hex-encoded random value.
func NewToken(purpose Purpose) (Token, error) {
    return newTokenAt(purpose, time.Now().UTC())
}

func newTokenAt(purpose Purpose, now time.Time) (Token, error) {
    if purpose == PurposePhoneChange {
        code, err := randomCode()
        if err != nil {
            return Token{}, err
        }
        return Token{Value: code, ExpiresAt: now.Add(PhoneChangeTTL)}, nil
    }
    value, err := randomHex(32)
    if err != nil {
        return Token{}, err
    }
    return Token{Value: value, ExpiresAt: now.Add(ttl(purpose))}, nil
}

func ttl(purpose Purpose) time.Duration {
    switch purpose {
    case PurposeReset:
        return ResetTTL
    case PurposeEmailChange:
        return EmailChangeTTL
    case PurposePhoneChange:
        return PhoneChangeTTL
    default:
        return VerificationTTL
    }
}

// CheckToken compares a supplied value against the stored token pair.  The
// comparison is constant-time with respect to the supplied value so the
// response latency does not reveal how much of a guess matched.  A nil
// stored value means no token is outstanding for the purpose.  Expiry is
// exclusive: at now == expiresAt the token is already expired.
//
// CheckToken never mutates anything; clearing a consumed token is a separate
// store operation performed only after the dependent state change succeeded.
func CheckToken(stored *string, expiresAt *time.Time, supplied string, now time.Time) TokenStatus {
    if stored == nil || expiresAt == nil || *stored == "" {
        // Burn a comparison anyway so the absent-token path costs the same.
        subtle.ConstantTimeCompare([]byte(supplied), []byte(supplied))
        return TokenMismatch
    }
    if subtle.ConstantTimeCompare([]byte(*stored), []byte(supplied)) != 1 {
        return TokenMismatch
    }
    if !now.Before(*expiresAt) {
        return TokenExpired
    }
    return TokenOK
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}

// randomCode returns a uniformly distributed 6-digit numeric code drawn from
// crypto/rand, zero-padded ("042137" is a valid code).
func randomCode() (string, error) {
    var buf [8]byte
    if _, err := rand.Read(buf[:]); err != nil {
        return "", err
    }
    n := binary.BigEndian.Uint64(buf[:]) % 1000000
    return fmt.Sprintf("%06d", n), nil
}
