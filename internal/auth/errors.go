package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrEmailUnavailable is returned when no usable email could be determined for an assertion
	ErrEmailUnavailable = errors.New("email unavailable from identity provider")

	// ErrMissingSubject is returned when a provider assertion carries no subject/user id
	ErrMissingSubject = errors.New("provider assertion has no subject")
)

// UnsupportedProviderError is returned for provider identifiers outside the registered set
type UnsupportedProviderError struct {
	Provider string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported identity provider: %q", e.Provider)
}
