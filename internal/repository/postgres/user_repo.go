package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/NordCoder/Reelpass/internal/domain/user"
	"github.com/jackc/pgx/v5"
)

var _ user.Repo = (*UserRepo)(nil)

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const (
	userColumns = `id, username, email, hashed_password, is_active, created_at, updated_at`

	qUserInsert = `
INSERT INTO users (username, email, hashed_password, is_active)
VALUES ($1, $2, $3, TRUE)
RETURNING ` + userColumns + `;`

	qUserByID = `
SELECT ` + userColumns + `
FROM users
WHERE id = $1;`

	qUserByEmail = `
SELECT ` + userColumns + `
FROM users
WHERE email = $1;`

	qUserByUsername = `
SELECT ` + userColumns + `
FROM users
WHERE username = $1;`

	qUserUpdate = `
UPDATE users
SET username        = $2,
    email           = $3,
    hashed_password = $4,
    updated_at      = NOW()
WHERE id = $1
RETURNING ` + userColumns + `;`

	qUserDelete = `DELETE FROM users WHERE id = $1;`
)

const (
	constraintUsersEmail    = "users_email_key"
	constraintUsersUsername = "users_username_key"
)

func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	row := r.db.conn(ctx).QueryRow(ctx, qUserInsert, u.Username, u.Email, u.PasswordHash)
	if err := scanUser(row, u); err != nil {
		if dup := duplicateUserErr(err); dup != nil {
			return dup
		}
		return fmt.Errorf("user insert: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	return r.getOne(ctx, qUserByID, id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.getOne(ctx, qUserByEmail, email)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	return r.getOne(ctx, qUserByUsername, username)
}

func (r *UserRepo) getOne(ctx context.Context, q string, arg any) (*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.User
	if err := scanUser(r.db.conn(ctx).QueryRow(ctx, q, arg), &u); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("user select: %w", err)
	}
	return &u, nil
}

func (r *UserRepo) Update(ctx context.Context, u *user.User) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	row := r.db.conn(ctx).QueryRow(ctx, qUserUpdate, u.ID, u.Username, u.Email, u.PasswordHash)
	if err := scanUser(row, u); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return err
		}
		if dup := duplicateUserErr(err); dup != nil {
			return dup
		}
		return fmt.Errorf("user update: %w", err)
	}
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.conn(ctx).Exec(ctx, qUserDelete, id)
	if err != nil {
		return false, fmt.Errorf("user delete: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanUser(row pgx.Row, out *user.User) error {
	if err := row.Scan(&out.ID, &out.Username, &out.Email, &out.PasswordHash,
		&out.IsActive, &out.CreatedAt, &out.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.ErrNotFound
		}
		return err
	}
	return nil
}

func duplicateUserErr(err error) error {
	constraint, ok := uniqueViolation(err)
	if !ok {
		return nil
	}
	switch constraint {
	case constraintUsersUsername:
		return user.ErrDuplicateUsername
	default:
		return user.ErrDuplicateEmail
	}
}
