package urlutil

import (
	"net/url"
)

// BuildFrontendErrorURL builds the URL the browser is sent to after a failed login.
// Returns a URL like: {baseURL}?error={code}, keeping any query already on baseURL.
func BuildFrontendErrorURL(baseURL, code string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("error", code)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
