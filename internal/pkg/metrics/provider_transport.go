package metrics

import (
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// providerTransport wraps an http.RoundTripper to collect metrics on identity provider calls
type providerTransport struct {
	provider string
	base     http.RoundTripper
}

// NewProviderTransport creates a transport wrapper that records every call made through it
// under the given provider label. Install it on the HTTP client used for token exchange,
// user info and email lookups.
func NewProviderTransport(provider string, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &providerTransport{provider: provider, base: base}
}

// RoundTrip implements http.RoundTripper
func (t *providerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	duration := time.Since(start)

	route := normalizeProviderRoute(req.URL.Path)
	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
		trackRateLimit(t.provider, resp)
	}

	ProviderAPICalls.WithLabelValues(t.provider, req.Method, route, strconv.Itoa(statusCode)).Inc()
	ProviderAPIDuration.WithLabelValues(t.provider, req.Method, route).Observe(float64(duration.Milliseconds()))

	if err != nil || statusCode >= 400 {
		ProviderAPIErrors.WithLabelValues(t.provider, route, classifyProviderError(statusCode, err)).Inc()
	}

	return resp, err
}

// trackRateLimit records GitHub-style X-RateLimit-Remaining headers
func trackRateLimit(provider string, resp *http.Response) {
	if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining != "" {
		if r, err := strconv.Atoi(remaining); err == nil {
			ProviderRateLimitRemaining.WithLabelValues(provider).Set(float64(r))
		}
	}
}

var numericSegment = regexp.MustCompile(`/\d+(/|$)`)

// normalizeProviderRoute replaces numeric path segments so user ids don't become labels
func normalizeProviderRoute(path string) string {
	if path == "" {
		return "/"
	}
	// Applied twice because adjacent matches share a slash
	normalized := numericSegment.ReplaceAllString(path, "/:id$1")
	return numericSegment.ReplaceAllString(normalized, "/:id$1")
}

// classifyProviderError categorizes provider API errors for metrics
func classifyProviderError(statusCode int, err error) string {
	if err != nil {
		var netErr net.Error
		switch {
		case errors.As(err, &netErr) && netErr.Timeout():
			return "timeout"
		case strings.Contains(err.Error(), "connection"):
			return "connection"
		case strings.Contains(err.Error(), "tls"):
			return "tls"
		default:
			return "network"
		}
	}

	switch {
	case statusCode == http.StatusBadRequest:
		return "bad_request"
	case statusCode == http.StatusUnauthorized:
		return "unauthorized"
	case statusCode == http.StatusForbidden:
		return "forbidden"
	case statusCode == http.StatusNotFound:
		return "not_found"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 500:
		return "server_error"
	case statusCode >= 400:
		return "client_error"
	default:
		return "unknown"
	}
}
