package auth

import (
    "errors"
    "time"

    "github.com/golang-jwt/jwt/v5" // JWT library for creating and parsing signed tokens
)

// Session carries the identity extracted from a verified session token.
type Session struct {
    UserID uint64 // the "sub" claim
    Role   string // the "role" claim
}

// SignedSession is a signed JWT plus its expiry, returned to the client after
// a successful login.
type SignedSession struct {
    Token     string    // the serialized JWT
    ExpiresAt time.Time // UTC expiration time
}

// ErrInvalidSession is returned for any session token that fails signature,
// algorithm, claim-shape or expiry checks.  Callers treat it as Unauthorized;
// the reason is deliberately not differentiated.
var ErrInvalidSession = errors.New("invalid session token")

// NewSession builds and signs an HS256 JWT for the given user.  Claims are
// sub (user ID), role, exp and iat.  The orchestrator only calls this for
// verified accounts; unverified users never receive a session.
func NewSession(secret string, userID uint64, role string, ttl time.Duration) (SignedSession, error) {
    now := time.Now().UTC()
    exp := now.Add(ttl)
    claims := jwt.MapClaims{
        "sub":  userID,
        "role": role,
        "exp":  exp.Unix(),
        "iat":  now.Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return SignedSession{}, err
    }
    return SignedSession{Token: signed, ExpiresAt: exp}, nil
}

// VerifySession parses and validates a session token.  Tokens signed with a
// different algorithm, a wrong secret, or past their expiry all yield
// ErrInvalidSession.
func VerifySession(secret, token string) (Session, error) {
    tok, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
        // Reject tokens using anything other than HMAC signing.
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrInvalidSession
        }
        return []byte(secret), nil
    })
    if err != nil || !tok.Valid {
        return Session{}, ErrInvalidSession
    }
    claims, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return Session{}, ErrInvalidSession
    }
    sub, ok := claims["sub"].(float64) // numeric claims decode as float64
    if !ok || sub < 0 {
        return Session{}, ErrInvalidSession
    }
    role, ok := claims["role"].(string)
    if !ok || role == "" {
        return Session{}, ErrInvalidSession
    }
    return Session{UserID: uint64(sub), Role: role}, nil
}
