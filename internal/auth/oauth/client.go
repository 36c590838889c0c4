// Package oauth drives the provider side of the authorization-code flow
// through golang.org/x/oauth2 and fetches the user's attributes afterwards.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"golang.org/x/oauth2/github"

	"github.com/devilmonastery/idlink/internal/config"
	"github.com/devilmonastery/idlink/internal/domain/entities"
	"github.com/devilmonastery/idlink/internal/pkg/metrics"
)

// Well-known user attribute endpoints
const (
	GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	GitHubUserURL     = "https://api.github.com/user"
)

// userInfoTimeout bounds each call to the provider
const userInfoTimeout = 10 * time.Second

// Client is one configured identity provider
type Client interface {
	// Provider returns the provider this client talks to
	Provider() entities.Provider

	// AuthCodeURL returns the provider consent URL carrying state
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for a token
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)

	// FetchAttributes returns the raw user attributes for the token's owner
	FetchAttributes(ctx context.Context, token *oauth2.Token) (map[string]any, error)
}

type providerDefaults struct {
	endpoint    oauth2.Endpoint
	userInfoURL string
	scopes      []string
	accept      string
}

var defaults = map[entities.Provider]providerDefaults{
	entities.ProviderGoogle: {
		endpoint:    endpoints.Google,
		userInfoURL: GoogleUserInfoURL,
		scopes:      []string{"openid", "email", "profile"},
		accept:      "application/json",
	},
	entities.ProviderGitHub: {
		endpoint:    github.Endpoint,
		userInfoURL: GitHubUserURL,
		scopes:      []string{"read:user", "user:email"},
		accept:      "application/vnd.github+json",
	},
}

// ProviderClient implements Client on an oauth2.Config
type ProviderClient struct {
	provider    entities.Provider
	config      *oauth2.Config
	userInfoURL string
	accept      string
	httpClient  *http.Client
}

// NewClient builds a client from provider configuration, filling in well-known defaults
func NewClient(pc config.ProviderConfig) (*ProviderClient, error) {
	provider, err := entities.ParseProvider(pc.Name)
	if err != nil {
		return nil, err
	}
	d := defaults[provider]

	endpoint := d.endpoint
	if pc.AuthURL != "" {
		endpoint.AuthURL = pc.AuthURL
	}
	if pc.TokenURL != "" {
		endpoint.TokenURL = pc.TokenURL
	}

	scopes := pc.Scopes
	if len(scopes) == 0 {
		scopes = d.scopes
	}

	userInfoURL := pc.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = d.userInfoURL
	}

	return &ProviderClient{
		provider: provider,
		config: &oauth2.Config{
			ClientID:     pc.ClientID,
			ClientSecret: pc.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  pc.RedirectURL,
			Scopes:       scopes,
		},
		userInfoURL: userInfoURL,
		accept:      d.accept,
		httpClient: &http.Client{
			Timeout:   userInfoTimeout,
			Transport: metrics.NewProviderTransport(provider.String(), nil),
		},
	}, nil
}

// NewClients builds a client for every configured provider
func NewClients(providers []config.ProviderConfig) (map[entities.Provider]Client, error) {
	clients := make(map[entities.Provider]Client, len(providers))
	for _, pc := range providers {
		c, err := NewClient(pc)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
		}
		clients[c.Provider()] = c
	}
	return clients, nil
}

func (c *ProviderClient) Provider() entities.Provider {
	return c.provider
}

func (c *ProviderClient) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state)
}

func (c *ProviderClient) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code for token: %w", err)
	}
	if !token.Valid() {
		return nil, fmt.Errorf("received invalid token from provider")
	}
	return token, nil
}

func (c *ProviderClient) FetchAttributes(ctx context.Context, token *oauth2.Token) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, userInfoTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set("Accept", c.accept)

	resp, err := c.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute user info request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("failed to get user info: status %d, body: %s", resp.StatusCode, string(body))
	}

	var attrs map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&attrs); err != nil {
		return nil, fmt.Errorf("failed to decode user info response: %w", err)
	}
	return attrs, nil
}

var _ Client = (*ProviderClient)(nil)
