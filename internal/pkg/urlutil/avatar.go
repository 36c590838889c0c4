package urlutil

import (
	"net/url"
	"strings"
)

// SafeAvatarURL returns the avatar URL when it is an absolute http(s) URL with a host,
// and nil otherwise. Provider attributes end up in the frontend's <img src>, so
// javascript: and data: URLs are dropped rather than stored.
func SafeAvatarURL(raw *string) *string {
	if raw == nil {
		return nil
	}
	u, err := url.Parse(strings.TrimSpace(*raw))
	if err != nil || u.Host == "" {
		return nil
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		s := u.String()
		return &s
	default:
		return nil
	}
}
