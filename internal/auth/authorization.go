package auth

import (
	"context"
	"errors"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
)

// SessionUser contains the identity attached to an authenticated browser session
type SessionUser struct {
	Email      string
	Provider   string
	Attributes map[string]any // Raw provider attributes captured at login
}

// StringAttribute returns a non-empty string attribute, or "" when absent
func (u *SessionUser) StringAttribute(key string) string {
	if u == nil || u.Attributes == nil {
		return ""
	}
	s, _ := u.Attributes[key].(string)
	return s
}

// contextKey is the key for storing user info in context
type contextKey string

const userContextKey contextKey = "user"

// GetUserFromContext extracts the authenticated user from the context
func GetUserFromContext(ctx context.Context) (*SessionUser, error) {
	user, ok := ctx.Value(userContextKey).(*SessionUser)
	if !ok || user == nil || user.Email == "" {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// SetUserInContext stores the authenticated user in the context
func SetUserInContext(ctx context.Context, user *SessionUser) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
