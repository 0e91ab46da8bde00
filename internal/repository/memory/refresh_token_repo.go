package memory

import (
	"context"
	"time"

	"github.com/NordCoder/Reelpass/internal/domain/auth"
)

var _ auth.RefreshTokenRepo = (*RefreshTokenRepo)(nil)

type RefreshTokenRepo struct{ s *Store }

func NewRefreshTokenRepo(s *Store) *RefreshTokenRepo { return &RefreshTokenRepo{s: s} }

func (r *RefreshTokenRepo) Create(ctx context.Context, userID int64, token string, expiresAt time.Time) (*auth.RefreshToken, error) {
	if err := checkTokenLen(token); err != nil {
		return nil, err
	}
	defer r.s.lock(ctx)()

	hash := auth.HashToken(token)
	if _, exists := r.s.tokens[hash]; exists {
		return nil, auth.ErrDuplicateToken
	}
	r.s.nextTokenID++
	t := &auth.RefreshToken{
		ID:        r.s.nextTokenID,
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: r.s.now(),
	}
	r.s.tokens[hash] = t
	cp := *t
	return &cp, nil
}

func (r *RefreshTokenRepo) FindByToken(_ context.Context, token string) (*auth.RefreshToken, error) {
	if err := checkTokenLen(token); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.tokens[auth.HashToken(token)]
	if !ok {
		return nil, auth.ErrTokenNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *RefreshTokenRepo) IsValid(_ context.Context, token string) bool {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.tokens[auth.HashToken(token)]
	return ok && t.Active(r.s.now())
}

func checkTokenLen(token string) error {
	if n := len(token); n < auth.TokenMinLen || n > auth.TokenMaxLen {
		return auth.ErrMalformedToken
	}
	return nil
}

func (r *RefreshTokenRepo) Revoke(ctx context.Context, token string) (bool, error) {
	if err := checkTokenLen(token); err != nil {
		return false, err
	}
	defer r.s.lock(ctx)()

	t, ok := r.s.tokens[auth.HashToken(token)]
	if !ok {
		return false, nil
	}
	t.Revoked = true
	return true, nil
}

func (r *RefreshTokenRepo) EndSession(ctx context.Context, token string) (bool, error) {
	if err := checkTokenLen(token); err != nil {
		return false, err
	}
	defer r.s.lock(ctx)()

	t, ok := r.s.tokens[auth.HashToken(token)]
	if !ok {
		return false, nil
	}
	wasActive := t.Active(r.s.now())
	t.Revoked = true
	return wasActive, nil
}

func (r *RefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	defer r.s.lock(ctx)()

	now := r.s.now()
	var n int64
	for _, t := range r.s.tokens {
		if t.UserID == userID && t.Active(now) {
			t.Revoked = true
			n++
		}
	}
	return n, nil
}

func (r *RefreshTokenRepo) Consume(ctx context.Context, token string) (int64, error) {
	defer r.s.lock(ctx)()

	t, ok := r.s.tokens[auth.HashToken(token)]
	if !ok || !t.Active(r.s.now()) {
		return 0, auth.ErrTokenInactive
	}
	t.Revoked = true
	return t.UserID, nil
}

func (r *RefreshTokenRepo) PurgeExpired(ctx context.Context) (int64, error) {
	defer r.s.lock(ctx)()

	now := r.s.now()
	var n int64
	for k, t := range r.s.tokens {
		if !t.ExpiresAt.After(now) {
			delete(r.s.tokens, k)
			n++
		}
	}
	return n, nil
}

// ActiveForUser counts live tokens of a user.
func (r *RefreshTokenRepo) ActiveForUser(userID int64) int {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	now := r.s.now()
	n := 0
	for _, t := range r.s.tokens {
		if t.UserID == userID && t.Active(now) {
			n++
		}
	}
	return n
}
