package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/Reelpass/internal/domain/auth"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var _ auth.RefreshTokenRepo = (*RefreshTokenRepo)(nil)

type RefreshTokenRepo struct {
	db  *DB
	log *zap.Logger
}

func NewRefreshTokenRepo(db *DB, log *zap.Logger) *RefreshTokenRepo {
	if log == nil {
		log = zap.NewNop()
	}
	return &RefreshTokenRepo{db: db, log: log}
}

const (
	qRTCreate = `
INSERT INTO refresh_tokens (user_id, token, expires_at, is_revoked)
VALUES ($1, $2, $3, FALSE)
RETURNING id, user_id, token, expires_at, is_revoked, created_at;`

	qRTByToken = `
SELECT id, user_id, token, expires_at, is_revoked, created_at
FROM refresh_tokens
WHERE token = $1;`

	qRTIsValid = `
SELECT EXISTS (
    SELECT 1 FROM refresh_tokens
    WHERE token = $1 AND is_revoked = FALSE AND expires_at > NOW()
);`

	qRTRevoke = `
UPDATE refresh_tokens SET is_revoked = TRUE
WHERE token = $1
RETURNING id;`

	// prev sees the row before the update, so active is the state the
	// caller's session was in when it was closed.
	qRTEndSession = `
WITH prev AS (
    SELECT id, (is_revoked = FALSE AND expires_at > NOW()) AS active
    FROM refresh_tokens
    WHERE token = $1
    FOR UPDATE
), upd AS (
    UPDATE refresh_tokens t SET is_revoked = TRUE
    FROM prev
    WHERE t.id = prev.id
)
SELECT active FROM prev;`

	qRTRevokeAll = `
UPDATE refresh_tokens SET is_revoked = TRUE
WHERE user_id = $1 AND is_revoked = FALSE AND expires_at > NOW();`

	// single statement: only one concurrent caller can flip the flag
	qRTConsume = `
UPDATE refresh_tokens SET is_revoked = TRUE
WHERE token = $1 AND is_revoked = FALSE AND expires_at > NOW()
RETURNING user_id;`

	qRTPurge = `DELETE FROM refresh_tokens WHERE expires_at <= NOW();`
)

const constraintRefreshTokensToken = "refresh_tokens_token_key"

func checkTokenLen(token string) error {
	if n := len(token); n < auth.TokenMinLen || n > auth.TokenMaxLen {
		return auth.ErrMalformedToken
	}
	return nil
}

func (r *RefreshTokenRepo) Create(ctx context.Context, userID int64, token string, expiresAt time.Time) (*auth.RefreshToken, error) {
	if err := checkTokenLen(token); err != nil {
		return nil, err
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var t auth.RefreshToken
	row := r.db.conn(ctx).QueryRow(ctx, qRTCreate, userID, auth.HashToken(token), expiresAt.UTC())
	if err := scanRefreshToken(row, &t); err != nil {
		if c, ok := uniqueViolation(err); ok && c == constraintRefreshTokensToken {
			return nil, auth.ErrDuplicateToken
		}
		return nil, fmt.Errorf("refresh token insert: %w", err)
	}
	return &t, nil
}

func (r *RefreshTokenRepo) FindByToken(ctx context.Context, token string) (*auth.RefreshToken, error) {
	if err := checkTokenLen(token); err != nil {
		return nil, err
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var t auth.RefreshToken
	if err := scanRefreshToken(r.db.conn(ctx).QueryRow(ctx, qRTByToken, auth.HashToken(token)), &t); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrTokenNotFound
		}
		return nil, fmt.Errorf("refresh token select: %w", err)
	}
	return &t, nil
}

func (r *RefreshTokenRepo) IsValid(ctx context.Context, token string) bool {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var ok bool
	if err := r.db.conn(ctx).QueryRow(ctx, qRTIsValid, auth.HashToken(token)).Scan(&ok); err != nil {
		r.log.Warn("refresh token validity check failed", zap.Error(err))
		return false
	}
	return ok
}

func (r *RefreshTokenRepo) Revoke(ctx context.Context, token string) (bool, error) {
	if err := checkTokenLen(token); err != nil {
		return false, err
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var id int64
	if err := r.db.conn(ctx).QueryRow(ctx, qRTRevoke, auth.HashToken(token)).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("refresh token revoke: %w", err)
	}
	return true, nil
}

func (r *RefreshTokenRepo) EndSession(ctx context.Context, token string) (bool, error) {
	if err := checkTokenLen(token); err != nil {
		return false, err
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var active bool
	if err := r.db.conn(ctx).QueryRow(ctx, qRTEndSession, auth.HashToken(token)).Scan(&active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("refresh token end session: %w", err)
	}
	return active, nil
}

func (r *RefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.conn(ctx).Exec(ctx, qRTRevokeAll, userID)
	if err != nil {
		return 0, fmt.Errorf("refresh token revoke all: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *RefreshTokenRepo) Consume(ctx context.Context, token string) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var userID int64
	if err := r.db.conn(ctx).QueryRow(ctx, qRTConsume, auth.HashToken(token)).Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, auth.ErrTokenInactive
		}
		return 0, fmt.Errorf("refresh token consume: %w", err)
	}
	return userID, nil
}

func (r *RefreshTokenRepo) PurgeExpired(ctx context.Context) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.conn(ctx).Exec(ctx, qRTPurge)
	if err != nil {
		return 0, fmt.Errorf("refresh token purge: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRefreshToken(row pgx.Row, t *auth.RefreshToken) error {
	return row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.Revoked, &t.CreatedAt)
}
