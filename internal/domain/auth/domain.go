package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"time"
)

const (
	TokenMinLen = 10
	TokenMaxLen = 512
)

// RefreshToken is a persisted session handle. TokenHash is HashToken of the
// bearer value; the raw token is never stored.
type RefreshToken struct {
	ID        int64
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Active reports whether the token is neither revoked nor expired at now.
func (t *RefreshToken) Active(now time.Time) bool {
	return !t.Revoked && t.ExpiresAt.After(now)
}

func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(h[:])
}
