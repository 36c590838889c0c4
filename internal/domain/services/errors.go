package services

import (
	"errors"
	"fmt"

	"github.com/devilmonastery/idlink/internal/auth"
	"github.com/devilmonastery/idlink/internal/domain/repositories"
)

// ErrInvalidProfile is returned when a profile update fails validation
var ErrInvalidProfile = errors.New("invalid profile")

// PersistenceError wraps a gateway failure that reconciliation could not recover from
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// FailureReason returns a short reason label for a login failure.
// Used for metrics and for the error code passed back to the frontend.
func FailureReason(err error) string {
	var upe *auth.UnsupportedProviderError
	var pe *PersistenceError
	switch {
	case errors.As(err, &upe):
		return "unsupported_provider"
	case errors.Is(err, auth.ErrEmailUnavailable):
		return "email_unavailable"
	case errors.Is(err, auth.ErrMissingSubject):
		return "missing_subject"
	case errors.As(err, &pe):
		return "persistence"
	default:
		return "login_failed"
	}
}

// IsUserNotFound checks if the error indicates user not found.
func IsUserNotFound(err error) bool {
	return errors.Is(err, repositories.ErrUserNotFound)
}

// isUniqueViolation reports whether err came from losing a concurrent insert
func isUniqueViolation(err error) bool {
	return errors.Is(err, repositories.ErrDuplicateEmail) || errors.Is(err, repositories.ErrDuplicateLink)
}
