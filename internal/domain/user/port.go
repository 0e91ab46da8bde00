package user

import "context"

// Repo persists users. Lookups return ErrNotFound on absence; Create and
// Update return ErrDuplicateEmail or ErrDuplicateUsername when a unique
// field is taken.
type Repo interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id int64) (bool, error)
}

// Cache holds public profiles keyed by id. Entries never carry the password
// hash. A miss is (nil, nil).
type Cache interface {
	Get(ctx context.Context, id int64) (*User, error)
	Set(ctx context.Context, u *User) error
	Del(ctx context.Context, id int64) error
}
