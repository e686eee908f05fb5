package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeUnknownUser       = "unknown_user"
	ErrCodeUnknownGroup      = "unknown_group"
	ErrCodeNotAMember        = "not_a_member"
	ErrCodePersistenceFailed = "persistence_failed"
	ErrCodeBadRequest        = "bad_request"
	ErrCodeNotRegistered     = "not_registered"
	ErrCodeAlreadyRegistered = "already_registered"
)

var (
	ErrUnknownUser       = coreError(ErrCodeUnknownUser, "unknown user")
	ErrUnknownGroup      = coreError(ErrCodeUnknownGroup, "unknown group")
	ErrNotAMember        = coreError(ErrCodeNotAMember, "not a member of this group")
	ErrPersistence       = coreError(ErrCodePersistenceFailed, "message was not stored")
	ErrBadRequest        = coreError(ErrCodeBadRequest, "bad request")
	ErrNotRegistered     = coreError(ErrCodeNotRegistered, "connection is not registered")
	ErrAlreadyRegistered = coreError(ErrCodeAlreadyRegistered, "connection is already registered")
)

// CoreError wraps a code and human-readable message.
// Two CoreErrors match under errors.Is when their codes are equal.
type CoreError struct {
	Code    string
	Message string
	Err     error
}

func (e *CoreError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a CoreError with the same code.
func (e *CoreError) Is(target error) bool {
	var t *CoreError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

func wrapError(code, msg string, err error) *CoreError {
	return &CoreError{Code: code, Message: msg, Err: err}
}

// ErrorCode extracts the domain code from err, or "" if it carries none.
func ErrorCode(err error) string {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
