package credential

import (
	"errors"
	"fmt"
	"strings"

	"warden/cmd/security/password"
)

// OpError is a typed operation error with a stable Op + Kind contract for callers/tests.
// Msg may include human-readable context; it never includes secrets.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e OpError) Unwrap() error { return e.Kind }

// ConflictError reports a uniqueness violation for a logical field ("subject", "id").
type ConflictError struct {
	Op    string
	Field string
}

func (e ConflictError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", e.Op, ErrConflict)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrConflict, e.Field)
}

func (e ConflictError) Unwrap() error { return ErrConflict }

// PolicyError carries the full validation report of a rejected password so
// callers can render every violation.
type PolicyError struct {
	Op     string
	Report password.Report
}

func (e PolicyError) Error() string {
	kinds := make([]string, 0, len(e.Report.Violations))
	for _, v := range e.Report.Violations {
		kinds = append(kinds, string(v))
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrPolicy, strings.Join(kinds, ","))
}

func (e PolicyError) Unwrap() error { return ErrPolicy }

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce ConflictError
	return errors.As(err, &ce)
}

// IsNotFound reports whether err represents ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidInput reports whether err represents ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// AsPolicyError extracts the PolicyError from err, if any.
func AsPolicyError(err error) (PolicyError, bool) {
	var pe PolicyError
	ok := errors.As(err, &pe)
	return pe, ok
}
