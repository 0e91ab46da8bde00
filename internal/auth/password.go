package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/NordCoder/Reelpass/internal/apperr"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 8

var ErrWeakPassword = apperr.InvalidArg("password is too weak")

// ValidatePasswordStrength enforces the complexity rules: at least 8
// characters with an uppercase letter, a lowercase letter and a digit.
func ValidatePasswordStrength(password string) error {
	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	var failures []string
	if utf8.RuneCountInString(password) < minPasswordLen {
		failures = append(failures, "at least 8 characters")
	}
	if !hasUpper {
		failures = append(failures, "an uppercase letter")
	}
	if !hasLower {
		failures = append(failures, "a lowercase letter")
	}
	if !hasDigit {
		failures = append(failures, "a digit")
	}

	if len(failures) > 0 {
		return fmt.Errorf("%w: must contain %s", ErrWeakPassword, strings.Join(failures, ", "))
	}
	return nil
}

// Hasher peppers a password with HMAC-SHA-256 under a server secret, then
// runs bcrypt over the base64 digest. The digest keeps bcrypt input at a
// fixed 44 bytes, below its 72 byte limit.
type Hasher struct {
	secret []byte
	cost   int
}

func NewHasher(pepper []byte, cost int) (*Hasher, error) {
	if len(pepper) == 0 {
		return nil, errors.New("pepper secret is empty")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Hasher{secret: append([]byte(nil), pepper...), cost: cost}, nil
}

func (h *Hasher) Hash(password string) ([]byte, error) {
	if err := ValidatePasswordStrength(password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword(h.peppered(password), h.cost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt: %w", err)
	}
	return hash, nil
}

// Verify reports whether candidate matches stored. A mismatch or a malformed
// stored hash is a plain false.
func (h *Hasher) Verify(candidate string, stored []byte) bool {
	return bcrypt.CompareHashAndPassword(stored, h.peppered(candidate)) == nil
}

func (h *Hasher) peppered(password string) []byte {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(password))
	sum := mac.Sum(nil)

	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum)
	return out
}
