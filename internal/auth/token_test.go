package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewToken_LinkPurposes(t *testing.T) {
	now := time.Now().UTC()
	tests := []struct {
		name    string
		purpose Purpose
		ttl     time.Duration
	}{
		{"verification", PurposeVerification, VerificationTTL},
		{"reset", PurposeReset, ResetTTL},
		{"email change", PurposeEmailChange, EmailChangeTTL},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tok, err := NewToken(tc.purpose)
			require.NoError(t, err)
			assert.Len(t, tok.Value, 64) // 32 random bytes, hex encoded
			assert.WithinDuration(t, now.Add(tc.ttl), tok.ExpiresAt, 2*time.Second)
		})
	}
}

func TestNewToken_PhoneOTP(t *testing.T) {
	tok, err := NewToken(PurposePhoneChange)
	require.NoError(t, err)
	require.Len(t, tok.Value, 6)
	for _, r := range tok.Value {
		assert.True(t, r >= '0' && r <= '9', "OTP must be numeric, got %q", tok.Value)
	}
	assert.WithinDuration(t, time.Now().UTC().Add(PhoneChangeTTL), tok.ExpiresAt, 2*time.Second)
}

func TestNewToken_ValuesDiffer(t *testing.T) {
	a, err := NewToken(PurposeVerification)
	require.NoError(t, err)
	b, err := NewToken(PurposeVerification)
	require.NoError(t, err)
	assert.NotEqual(t, a.Value, b.Value)
}

func TestCheckToken(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	value := "a3f1"
	future := now.Add(time.Hour)
	past := now.Add(-time.Minute)
	empty := ""

	tests := []struct {
		name      string
		stored    *string
		expiresAt *time.Time
		supplied  string
		want      TokenStatus
	}{
		{"match before expiry", &value, &future, "a3f1", TokenOK},
		{"wrong value", &value, &future, "beef", TokenMismatch},
		{"expired", &value, &past, "a3f1", TokenExpired},
		{"no stored token", nil, nil, "a3f1", TokenMismatch},
		{"empty stored token", &empty, &future, "", TokenMismatch},
		{"expired and wrong reports mismatch", &value, &past, "beef", TokenMismatch},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CheckToken(tc.stored, tc.expiresAt, tc.supplied, now))
		})
	}
}

// The boundary is exclusive: a token checked at exactly its expiry instant is
// already expired.
func TestCheckToken_ExpiryBoundary(t *testing.T) {
	value := "a3f1"
	exp := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, TokenExpired, CheckToken(&value, &exp, "a3f1", exp))
	assert.Equal(t, TokenOK, CheckToken(&value, &exp, "a3f1", exp.Add(-time.Nanosecond)))
}
