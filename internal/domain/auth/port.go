package auth

import (
	"context"
	"time"
)

// RefreshTokenRepo is the registry of issued refresh tokens. Every method
// takes the raw bearer value and hashes it before touching storage.
type RefreshTokenRepo interface {
	// Create stores a new active token. ErrDuplicateToken if it exists.
	Create(ctx context.Context, userID int64, token string, expiresAt time.Time) (*RefreshToken, error)
	// FindByToken returns ErrTokenNotFound on absence, ErrMalformedToken
	// for a value no issued token can have.
	FindByToken(ctx context.Context, token string) (*RefreshToken, error)
	// IsValid fails closed: lookup errors read as false.
	IsValid(ctx context.Context, token string) bool
	// Revoke is idempotent. It reports whether the token exists.
	// ErrMalformedToken for a value no issued token can have.
	Revoke(ctx context.Context, token string) (bool, error)
	// EndSession revokes the token and reports, in the same step, whether
	// it was active just before. Absent tokens report false.
	// ErrMalformedToken as for Revoke.
	EndSession(ctx context.Context, token string) (bool, error)
	// RevokeAllForUser returns how many active tokens were revoked.
	RevokeAllForUser(ctx context.Context, userID int64) (int64, error)
	// Consume atomically revokes an active token and returns its owner.
	// ErrTokenInactive if the token is absent, revoked or expired.
	Consume(ctx context.Context, token string) (int64, error)
	// PurgeExpired deletes rows expired at or before now.
	PurgeExpired(ctx context.Context) (int64, error)
}
