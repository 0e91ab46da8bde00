package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	errTaken := AlreadyExists("email already registered")

	assert.Equal(t, Code(""), CodeOf(nil))
	assert.Equal(t, CodeAlreadyExists, CodeOf(errTaken))
	assert.Equal(t, CodeAlreadyExists, CodeOf(fmt.Errorf("create user: %w", errTaken)))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("connection refused")))
	assert.Equal(t, CodeUnauthenticated, CodeOf(Wrap(CodeUnauthenticated, "login failed", errors.New("boom"))))
}

func TestMessageHidesInternals(t *testing.T) {
	assert.Equal(t, "internal server error", Message(errors.New("dial tcp 10.0.0.1:5432: i/o timeout")))
	assert.Equal(t, "internal server error", Message(Wrap(CodeInternal, "query", errors.New("secret detail"))))

	weak := fmt.Errorf("%w: must contain a digit", InvalidArg("password is too weak"))
	assert.Equal(t, "password is too weak: must contain a digit", Message(weak))
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("root")
	err := Wrap(CodeInvalidArgument, "bad input", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "bad input: root", err.Error())
}
