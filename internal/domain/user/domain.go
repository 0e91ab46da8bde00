package user

import (
	"strings"
	"time"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Patch carries the optional fields of a profile update. Nil means unchanged.
type Patch struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
}

const (
	UsernameMinLen = 2
	UsernameMaxLen = 50
	EmailMaxLen    = 255
)

func NormalizeUsername(s string) string { return strings.TrimSpace(s) }

func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
