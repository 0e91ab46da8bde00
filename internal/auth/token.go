package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

type Claims struct {
	Type TokenType `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// Payload is the decoded, typed view of a token's claims.
type Payload struct {
	Subject   string
	Type      TokenType
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type CodecConfig struct {
	Secret     []byte
	Algorithm  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
}

// Codec signs and verifies HMAC JWTs for both token types. It holds no
// mutable state and is safe for concurrent use.
type Codec struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewCodec(cfg CodecConfig) (*Codec, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("signing secret is empty")
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(cfg.Algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 30 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Codec{
		secret:     cfg.Secret,
		method:     method,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        cfg.Now,
	}, nil
}

func (c *Codec) AccessTTL() time.Duration  { return c.accessTTL }
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// IssueAccess signs an access token for subject. A non-positive ttl means the
// configured default.
func (c *Codec) IssueAccess(subject string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = c.accessTTL
	}
	return c.issue(subject, TokenAccess, ttl)
}

func (c *Codec) IssueRefresh(subject string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = c.refreshTTL
	}
	return c.issue(subject, TokenRefresh, ttl)
}

func (c *Codec) issue(subject string, typ TokenType, ttl time.Duration) (string, error) {
	now := c.now()
	claims := &Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

// Verify checks signature, expiry and type. Any failure yields (nil, false).
func (c *Codec) Verify(token string, expected TokenType) (*Payload, bool) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.now),
	)

	var claims Claims
	parsed, err := parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, false
	}
	if claims.Type != expected || claims.Subject == "" {
		return nil, false
	}
	return claims.payload(), true
}

// DecodeUnverified reads the claims without checking the signature. The
// result must never back a trust decision.
func (c *Codec) DecodeUnverified(token string) (*Payload, bool) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, false
	}
	return claims.payload(), true
}

// IsExpired is true when the token cannot be decoded, carries no exp, or exp
// is in the past.
func (c *Codec) IsExpired(token string) bool {
	p, ok := c.DecodeUnverified(token)
	if !ok || p.ExpiresAt.IsZero() {
		return true
	}
	return c.now().After(p.ExpiresAt)
}

func (cl *Claims) payload() *Payload {
	p := &Payload{Subject: cl.Subject, Type: cl.Type, ID: cl.ID}
	if cl.IssuedAt != nil {
		p.IssuedAt = cl.IssuedAt.Time
	}
	if cl.ExpiresAt != nil {
		p.ExpiresAt = cl.ExpiresAt.Time
	}
	return p
}
