package apperr

import (
	"errors"
	"fmt"
)

// AppError carries a client-facing code next to the message. Errors without
// one are infrastructure faults.
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func InvalidArg(msg string) error {
	return New(CodeInvalidArgument, msg)
}

func NotFound(msg string) error {
	return New(CodeNotFound, msg)
}

func AlreadyExists(msg string) error {
	return New(CodeAlreadyExists, msg)
}

func Unauthorized(msg string) error {
	return New(CodeUnauthenticated, msg)
}

func Internal(msg string) error {
	return New(CodeInternal, msg)
}

// CodeOf returns the code of the first AppError in err's chain, CodeInternal
// when there is none.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// Message returns the client-safe text for err. Internal faults get a generic
// message so causes never leave the process.
func Message(err error) string {
	var ae *AppError
	if !errors.As(err, &ae) || ae.Code == CodeInternal || ae.Code == CodeUnknown {
		return "internal server error"
	}
	return err.Error()
}
