package auth

import "github.com/NordCoder/Reelpass/internal/apperr"

var (
	ErrTokenNotFound  = apperr.NotFound("refresh token not found")
	ErrDuplicateToken = apperr.AlreadyExists("refresh token already exists")
	ErrTokenInactive  = apperr.Unauthorized("refresh token is revoked or expired")
	ErrMalformedToken = apperr.InvalidArg("refresh token must be 10-512 characters")
)
