// Package users owns account records: registration, credential checks,
// password changes and profile edits.
package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/NordCoder/Reelpass/internal/apperr"
	"github.com/NordCoder/Reelpass/internal/domain/outbox"
	"github.com/NordCoder/Reelpass/internal/domain/user"
)

var (
	ErrWrongPassword = apperr.InvalidArg("current password is incorrect")
	ErrPasswordReuse = apperr.InvalidArg("new password must differ from the current one")
)

// dummyPassword backs the hash verified when a login names an unknown user,
// so both branches pay one bcrypt comparison.
const dummyPassword = "Dummy-Passw0rd-never-matches"

type Transactor interface {
	WithTx(ctx context.Context, function func(ctx context.Context) error) error
}

type PasswordHasher interface {
	Hash(password string) ([]byte, error)
	Verify(candidate string, stored []byte) bool
}

type CreateInput struct {
	Username string
	Email    string
	Password string
}

type Credentials struct {
	Username string
	Password string
}

// PasswordChange is cleared by ChangePassword once the change is decided.
type PasswordChange struct {
	Current string `json:"current_password"`
	New     string `json:"new_password"`
}

func (p *PasswordChange) scrub() {
	p.Current = ""
	p.New = ""
}

type Directory struct {
	log    *zap.Logger
	repo   user.Repo
	hasher PasswordHasher
	tx     Transactor
	events outbox.Enqueuer
	cache  user.Cache
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

// NewDirectory wires the account service. events and cache may be nil.
func NewDirectory(log *zap.Logger, repo user.Repo, hasher PasswordHasher, tx Transactor, events outbox.Enqueuer, cache user.Cache) *Directory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Directory{
		log:    log,
		repo:   repo,
		hasher: hasher,
		tx:     tx,
		events: events,
		cache:  cache,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// FindByID returns user.ErrNotFound when the account does not exist. With a
// cache configured, hits skip the repository; the cached copy has no
// password hash. Delete evicts the entry. A row removed behind the
// directory's back stays resolvable until the entry's TTL runs out.
func (d *Directory) FindByID(ctx context.Context, id int64) (*user.User, error) {
	if d.cache != nil {
		u, err := d.cache.Get(ctx, id)
		switch {
		case err != nil:
			d.log.Warn("profile cache get", zap.Int64("user_id", id), zap.Error(err))
		case u != nil:
			return u, nil
		}
	}

	u, err := d.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.cache != nil {
		if err := d.cache.Set(ctx, u); err != nil {
			d.log.Warn("profile cache set", zap.Int64("user_id", id), zap.Error(err))
		}
	}
	return u, nil
}

func (d *Directory) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	return d.repo.GetByEmail(ctx, user.NormalizeEmail(email))
}

func (d *Directory) FindByUsername(ctx context.Context, username string) (*user.User, error) {
	return d.repo.GetByUsername(ctx, user.NormalizeUsername(username))
}

// Create registers an account. Email is checked for duplicates before
// username; the password strength check runs last.
func (d *Directory) Create(ctx context.Context, in CreateInput) (*user.User, error) {
	ctx, span := otel.Tracer("users.directory").Start(ctx, "users.create")
	defer span.End()

	username := user.NormalizeUsername(in.Username)
	email := user.NormalizeEmail(in.Email)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	if err := d.ensureFree(ctx, d.repo.GetByEmail, email, user.ErrDuplicateEmail); err != nil {
		return nil, err
	}
	if err := d.ensureFree(ctx, d.repo.GetByUsername, username, user.ErrDuplicateUsername); err != nil {
		return nil, err
	}

	hash, err := d.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	u := &user.User{Username: username, Email: email, PasswordHash: hash, IsActive: true}
	err = d.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := d.repo.Create(ctx, u); err != nil {
			return err
		}
		return outbox.Emit(ctx, d.events, outbox.KindUserRegistered, outbox.UserEvent{
			UserID: u.ID, Username: u.Username, Email: u.Email, At: d.now(),
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int64("user.id", u.ID))
	d.log.Info("user registered", zap.Int64("user_id", u.ID))
	return u, nil
}

// Authenticate returns (nil, nil) when the username is unknown or the
// password does not match. Only infrastructure faults produce an error.
func (d *Directory) Authenticate(ctx context.Context, c Credentials) (*user.User, error) {
	u, err := d.repo.GetByUsername(ctx, user.NormalizeUsername(c.Username))
	if errors.Is(err, user.ErrNotFound) {
		d.hasher.Verify(c.Password, d.dummy())
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !d.hasher.Verify(c.Password, u.PasswordHash) {
		return nil, nil
	}
	return u, nil
}

// ChangePassword replaces the stored hash after verifying the current
// password. The new password must pass the strength check and differ from
// the old one.
func (d *Directory) ChangePassword(ctx context.Context, id int64, in *PasswordChange) (*user.User, error) {
	defer in.scrub()

	ctx, span := otel.Tracer("users.directory").Start(ctx, "users.change_password")
	defer span.End()

	u, err := d.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.hasher.Verify(in.Current, u.PasswordHash) {
		return nil, ErrWrongPassword
	}
	if d.hasher.Verify(in.New, u.PasswordHash) {
		return nil, ErrPasswordReuse
	}
	hash, err := d.hasher.Hash(in.New)
	if err != nil {
		return nil, err
	}

	u.PasswordHash = hash
	err = d.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := d.repo.Update(ctx, u); err != nil {
			return err
		}
		return outbox.Emit(ctx, d.events, outbox.KindPasswordChanged, outbox.UserEvent{
			UserID: u.ID, Username: u.Username, At: d.now(),
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	d.evict(ctx, u.ID)
	d.log.Info("password changed", zap.Int64("user_id", u.ID))
	return u, nil
}

// Update applies the non-nil fields of p. Uniqueness is only checked for
// fields whose value actually changes.
func (d *Directory) Update(ctx context.Context, id int64, p user.Patch) (*user.User, error) {
	u, err := d.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Username != nil {
		name := user.NormalizeUsername(*p.Username)
		if err := validateUsername(name); err != nil {
			return nil, err
		}
		if name != u.Username {
			if err := d.ensureFree(ctx, d.repo.GetByUsername, name, user.ErrDuplicateUsername); err != nil {
				return nil, err
			}
			u.Username = name
		}
	}
	if p.Email != nil {
		email := user.NormalizeEmail(*p.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		if email != u.Email {
			if err := d.ensureFree(ctx, d.repo.GetByEmail, email, user.ErrDuplicateEmail); err != nil {
				return nil, err
			}
			u.Email = email
		}
	}

	if err := d.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	d.evict(ctx, u.ID)
	return u, nil
}

// Delete removes the account and, through the storage cascade, its refresh
// tokens. It reports whether the account existed.
func (d *Directory) Delete(ctx context.Context, id int64) (bool, error) {
	ok, err := d.repo.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	d.evict(ctx, id)
	return ok, nil
}

func (d *Directory) ensureFree(ctx context.Context, lookup func(context.Context, string) (*user.User, error), value string, taken error) error {
	_, err := lookup(ctx, value)
	switch {
	case err == nil:
		return taken
	case errors.Is(err, user.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("uniqueness check: %w", err)
	}
}

func (d *Directory) evict(ctx context.Context, id int64) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Del(ctx, id); err != nil {
		d.log.Warn("profile cache del", zap.Int64("user_id", id), zap.Error(err))
	}
}

func (d *Directory) dummy() []byte {
	d.dummyOnce.Do(func() {
		h, err := d.hasher.Hash(dummyPassword)
		if err != nil {
			d.log.Error("dummy hash", zap.Error(err))
			return
		}
		d.dummyHash = h
	})
	return d.dummyHash
}

func validateUsername(s string) error {
	if n := utf8.RuneCountInString(s); n < user.UsernameMinLen || n > user.UsernameMaxLen {
		return user.ErrInvalidUsername
	}
	return nil
}

func validateEmail(s string) error {
	if s == "" || len(s) > user.EmailMaxLen {
		return user.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return user.ErrInvalidEmail
	}
	return nil
}
