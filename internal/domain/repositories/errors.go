package repositories

import "errors"

// Domain-specific repository errors
var (
	// ErrUserNotFound is returned when a user cannot be found
	ErrUserNotFound = errors.New("user not found")

	// ErrLinkNotFound is returned when a provider link cannot be found
	ErrLinkNotFound = errors.New("provider link not found")

	// ErrDuplicateEmail is returned when a user with the same email already exists
	ErrDuplicateEmail = errors.New("user with this email already exists")

	// ErrDuplicateLink is returned when the provider identity is already linked
	ErrDuplicateLink = errors.New("provider identity already linked")
)
