package emails

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/devilmonastery/idlink/internal/domain/entities"
	"github.com/devilmonastery/idlink/internal/pkg/metrics"
)

// DefaultGitHubEmailsURL lists the authenticated user's addresses; needs the user:email scope
const DefaultGitHubEmailsURL = "https://api.github.com/user/emails"

// GitHubSource reads GitHub's /user/emails endpoint
type GitHubSource struct {
	url     string
	timeout time.Duration
	base    *http.Client
}

// NewGitHubSource creates a source for the given emails URL (DefaultGitHubEmailsURL when empty)
func NewGitHubSource(emailsURL string, timeout time.Duration) *GitHubSource {
	if emailsURL == "" {
		emailsURL = DefaultGitHubEmailsURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &GitHubSource{
		url:     emailsURL,
		timeout: timeout,
		base: &http.Client{
			Timeout:   timeout,
			Transport: metrics.NewProviderTransport(entities.ProviderGitHub.String(), nil),
		},
	}
}

// Fetch retrieves the user's email addresses using the access token as a bearer credential
func (s *GitHubSource) Fetch(ctx context.Context, accessToken string) ([]Email, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	client.Timeout = s.timeout

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user emails request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute user emails request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("failed to get user emails: status %d, body: %s", resp.StatusCode, string(body))
	}

	var found []Email
	if err := json.NewDecoder(resp.Body).Decode(&found); err != nil {
		return nil, fmt.Errorf("failed to decode user emails response: %w", err)
	}
	return found, nil
}
