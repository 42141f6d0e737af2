package credential

import "errors"

// Sentinel error kinds (stable for errors.Is and for mapping to API status codes).
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrNotFound     = errors.New("not_found")
	ErrConflict     = errors.New("conflict")
	ErrPolicy       = errors.New("password_policy")
)

// ErrPasswordTooLong is returned before hashing when a password exceeds the
// policy's MaxLength.
var ErrPasswordTooLong = errors.New("password_too_long")
