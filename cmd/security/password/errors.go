package password

import (
	"errors"
	"fmt"
)

// Public, stable errors for callers.
var (
	ErrInvalidParams = errors.New("invalid argon2id parameters")
	ErrInvalidSalt   = errors.New("invalid salt")
	ErrEntropy       = errors.New("secure random source unavailable")
	ErrInvalidHash   = errors.New("invalid password hash")
)

// HashingError reports a fatal failure while producing a hash.
// It is an environment problem, not a user error: callers should log it and
// answer with a generic server error.
type HashingError struct {
	Op  string
	Err error
}

func (e *HashingError) Error() string {
	return fmt.Sprintf("password.%s: %v", e.Op, e.Err)
}

func (e *HashingError) Unwrap() error { return e.Err }

// IsHashingError reports whether err is (or wraps) a *HashingError.
func IsHashingError(err error) bool {
	var he *HashingError
	return errors.As(err, &he)
}
