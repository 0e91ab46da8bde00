package user

import "github.com/NordCoder/Reelpass/internal/apperr"

var (
	ErrNotFound          = apperr.NotFound("user not found")
	ErrDuplicateEmail    = apperr.AlreadyExists("email already registered")
	ErrDuplicateUsername = apperr.AlreadyExists("username already taken")
	ErrInvalidUsername   = apperr.InvalidArg("username must be 2-50 characters")
	ErrInvalidEmail      = apperr.InvalidArg("email must be a valid address of at most 255 characters")
)
