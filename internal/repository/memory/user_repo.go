package memory

import (
	"context"

	"github.com/NordCoder/Reelpass/internal/domain/user"
)

var _ user.Repo = (*UserRepo)(nil)

type UserRepo struct{ s *Store }

func NewUserRepo(s *Store) *UserRepo { return &UserRepo{s: s} }

func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	defer r.s.lock(ctx)()

	if err := r.uniqueLocked(u); err != nil {
		return err
	}
	r.s.nextUserID++
	now := r.s.now()
	u.ID = r.s.nextUserID
	u.IsActive = true
	u.CreatedAt = now
	u.UpdatedAt = now

	r.s.users[u.ID] = cloneUser(u)
	return nil
}

func (r *UserRepo) GetByID(_ context.Context, id int64) (*user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	return r.find(func(u *user.User) bool { return u.Email == email })
}

func (r *UserRepo) GetByUsername(_ context.Context, username string) (*user.User, error) {
	return r.find(func(u *user.User) bool { return u.Username == username })
}

func (r *UserRepo) Update(ctx context.Context, u *user.User) error {
	defer r.s.lock(ctx)()

	cur, ok := r.s.users[u.ID]
	if !ok {
		return user.ErrNotFound
	}
	if err := r.uniqueLocked(u); err != nil {
		return err
	}
	u.IsActive = cur.IsActive
	u.CreatedAt = cur.CreatedAt
	u.UpdatedAt = r.s.now()
	r.s.users[u.ID] = cloneUser(u)
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, id int64) (bool, error) {
	defer r.s.lock(ctx)()

	if _, ok := r.s.users[id]; !ok {
		return false, nil
	}
	delete(r.s.users, id)
	for k, t := range r.s.tokens {
		if t.UserID == id {
			delete(r.s.tokens, k)
		}
	}
	return true, nil
}

func (r *UserRepo) find(match func(*user.User) bool) (*user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, user.ErrNotFound
}

func (r *UserRepo) uniqueLocked(u *user.User) error {
	for _, other := range r.s.users {
		if other.ID == u.ID {
			continue
		}
		if other.Email == u.Email {
			return user.ErrDuplicateEmail
		}
		if other.Username == u.Username {
			return user.ErrDuplicateUsername
		}
	}
	return nil
}

func cloneUser(u *user.User) *user.User {
	cp := *u
	cp.PasswordHash = append([]byte(nil), u.PasswordHash...)
	return &cp
}
