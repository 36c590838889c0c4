package oidc

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Claims wraps the raw attribute map a provider returned for the logged-in user
// (ID token / userinfo claims for OIDC providers, REST attributes otherwise)
type Claims map[string]any

// String returns the attribute as a trimmed string, or nil when absent or empty
func (c Claims) String(key string) *string {
	s, ok := c[key].(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Identifier returns the attribute rendered as an identifier string.
// JSON numbers decode as float64 and are rendered without exponent or fraction.
func (c Claims) Identifier(key string) string {
	switch v := c[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

// Email returns the normalized email attribute, or nil when absent or empty
func (c Claims) Email(key string) *string {
	email := c.String(key)
	if email == nil {
		return nil
	}
	normalized := strings.ToLower(*email)
	return &normalized
}
