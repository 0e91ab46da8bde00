// Package auth issues, rotates and revokes login sessions and serves them
// over HTTP.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NordCoder/Reelpass/internal/apperr"
	sec "github.com/NordCoder/Reelpass/internal/auth"
	domainauth "github.com/NordCoder/Reelpass/internal/domain/auth"
	"github.com/NordCoder/Reelpass/internal/domain/outbox"
	"github.com/NordCoder/Reelpass/internal/domain/user"
	"github.com/NordCoder/Reelpass/internal/services/api/users"
)

var (
	ErrInvalidCredentials = apperr.Unauthorized("invalid username or password")
	ErrInvalidToken       = apperr.Unauthorized("invalid or expired token")
)

type Transactor interface {
	WithTx(ctx context.Context, function func(ctx context.Context) error) error
}

// Directory is the part of the account service sessions depend on.
type Directory interface {
	Create(ctx context.Context, in users.CreateInput) (*user.User, error)
	Authenticate(ctx context.Context, c users.Credentials) (*user.User, error)
	FindByID(ctx context.Context, id int64) (*user.User, error)
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Session is a freshly issued token pair together with its owner.
type Session struct {
	TokenPair
	UserID   int64
	Username string
}

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Usecase struct {
	log    *zap.Logger
	users  Directory
	tokens domainauth.RefreshTokenRepo
	codec  *sec.Codec
	tx     Transactor
	events outbox.Enqueuer
	now    func() time.Time
	tr     trace.Tracer
}

// NewUsecase wires the session orchestrator. events may be nil.
func NewUsecase(log *zap.Logger, dir Directory, tokens domainauth.RefreshTokenRepo, codec *sec.Codec, tx Transactor, events outbox.Enqueuer) *Usecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &Usecase{
		log:    log,
		users:  dir,
		tokens: tokens,
		codec:  codec,
		tx:     tx,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
		tr:     otel.Tracer("auth.uc"),
	}
}

func (u *Usecase) AccessTTL() time.Duration  { return u.codec.AccessTTL() }
func (u *Usecase) RefreshTTL() time.Duration { return u.codec.RefreshTTL() }

// Register creates the account and logs it in with the same password.
func (u *Usecase) Register(ctx context.Context, in RegisterInput) (_ *Session, err error) {
	defer observe("register", &err)
	ctx, span := u.tr.Start(ctx, "auth.register")
	defer span.End()

	created, err := u.users.Create(ctx, users.CreateInput{
		Username: in.Username,
		Email:    in.Email,
		Password: in.Password,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return u.login(ctx, users.Credentials{Username: created.Username, Password: in.Password})
}

// Login returns ErrInvalidCredentials for an unknown user or a wrong
// password, without telling the two apart.
func (u *Usecase) Login(ctx context.Context, c users.Credentials) (_ *Session, err error) {
	defer observe("login", &err)
	ctx, span := u.tr.Start(ctx, "auth.login")
	defer span.End()

	s, err := u.login(ctx, c)
	if err != nil {
		span.RecordError(err)
	}
	return s, err
}

func (u *Usecase) login(ctx context.Context, c users.Credentials) (*Session, error) {
	usr, err := u.users.Authenticate(ctx, c)
	if err != nil {
		return nil, err
	}
	if usr == nil {
		return nil, ErrInvalidCredentials
	}

	pair, err := u.issuePair(ctx, usr.ID)
	if err != nil {
		return nil, err
	}
	u.log.Info("session opened", zap.Int64("user_id", usr.ID))
	return &Session{TokenPair: *pair, UserID: usr.ID, Username: usr.Username}, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued in one transaction. Of concurrent calls with the same token
// at most one succeeds. Every rejection is ErrInvalidToken; storage faults
// are returned as they are.
func (u *Usecase) Refresh(ctx context.Context, raw string) (_ *Session, err error) {
	defer observe("refresh", &err)
	ctx, span := u.tr.Start(ctx, "auth.refresh")
	defer span.End()

	payload, ok := u.codec.Verify(raw, sec.TokenRefresh)
	if !ok {
		return nil, ErrInvalidToken
	}
	userID, err := strconv.ParseInt(payload.Subject, 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}
	span.SetAttributes(attribute.Int64("user.id", userID))

	rec, err := u.tokens.FindByToken(ctx, raw)
	switch {
	case errors.Is(err, domainauth.ErrTokenNotFound), errors.Is(err, domainauth.ErrMalformedToken):
		return nil, ErrInvalidToken
	case err != nil:
		span.RecordError(err)
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}
	if !rec.Active(u.now()) || rec.UserID != userID {
		return nil, ErrInvalidToken
	}

	usr, err := u.users.FindByID(ctx, userID)
	switch {
	case errors.Is(err, user.ErrNotFound):
		return nil, ErrInvalidToken
	case err != nil:
		span.RecordError(err)
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	var pair *TokenPair
	err = u.tx.WithTx(ctx, func(ctx context.Context) error {
		owner, err := u.tokens.Consume(ctx, raw)
		if errors.Is(err, domainauth.ErrTokenInactive) {
			return ErrInvalidToken
		}
		if err != nil {
			return fmt.Errorf("consume refresh token: %w", err)
		}
		if owner != userID {
			return ErrInvalidToken
		}
		pair, err = u.issuePair(ctx, userID)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrInvalidToken) {
			span.RecordError(err)
		}
		return nil, err
	}
	return &Session{TokenPair: *pair, UserID: usr.ID, Username: usr.Username}, nil
}

// Logout revokes one refresh token. It reports whether the token was an
// active session; an empty or unknown token is not an error.
func (u *Usecase) Logout(ctx context.Context, raw string) (_ bool, err error) {
	defer observe("logout", &err)
	if raw == "" {
		return false, nil
	}
	ctx, span := u.tr.Start(ctx, "auth.logout")
	defer span.End()

	active, err := u.tokens.EndSession(ctx, raw)
	if errors.Is(err, domainauth.ErrMalformedToken) {
		return false, nil
	}
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("end session: %w", err)
	}
	return active, nil
}

// LogoutAll revokes every active refresh token of the user and returns how
// many there were. Access tokens already issued stay valid until they expire.
func (u *Usecase) LogoutAll(ctx context.Context, userID int64) (_ int64, err error) {
	defer observe("logout_all", &err)
	ctx, span := u.tr.Start(ctx, "auth.logout_all", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	var n int64
	err = u.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		n, err = u.tokens.RevokeAllForUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("revoke all: %w", err)
		}
		return outbox.Emit(ctx, u.events, outbox.KindSessionsRevoked, outbox.UserEvent{
			UserID: userID, Revoked: n, At: u.now(),
		})
	})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	u.log.Info("sessions revoked", zap.Int64("user_id", userID), zap.Int64("count", n))
	return n, nil
}

// ValidateAccessToken resolves the user an access token was issued to.
func (u *Usecase) ValidateAccessToken(ctx context.Context, token string) (*user.User, error) {
	payload, ok := u.codec.Verify(token, sec.TokenAccess)
	if !ok {
		return nil, ErrInvalidToken
	}
	userID, err := strconv.ParseInt(payload.Subject, 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}
	usr, err := u.users.FindByID(ctx, userID)
	if errors.Is(err, user.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return usr, nil
}

// issuePair signs both tokens and records the refresh token with the expiry
// it carries.
func (u *Usecase) issuePair(ctx context.Context, userID int64) (*TokenPair, error) {
	subject := strconv.FormatInt(userID, 10)
	access, err := u.codec.IssueAccess(subject, 0)
	if err != nil {
		return nil, err
	}
	refresh, err := u.codec.IssueRefresh(subject, 0)
	if err != nil {
		return nil, err
	}
	claims, ok := u.codec.DecodeUnverified(refresh)
	if !ok {
		return nil, errors.New("decode issued refresh token")
	}
	if _, err := u.tokens.Create(ctx, userID, refresh, claims.ExpiresAt); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
