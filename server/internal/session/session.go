package session

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/gob"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"github.com/devilmonastery/idlink/internal/auth"
)

const (
	// SessionName is the name of the session cookie
	SessionName = "idlink_session"

	stateKey      = "oauth_state"
	providerKey   = "oauth_provider"
	emailKey      = "email"
	userProvKey   = "provider"
	attributesKey = "attributes"
)

// Attributes kept in the cookie. The full provider payload does not fit in 4KB.
var keptAttributes = []string{"name", "login", "picture", "avatar_url"}

// ErrNoLoginState is returned when a callback arrives without a pending login
var ErrNoLoginState = errors.New("no pending login in session")

func init() {
	gob.Register(map[string]string{})
}

// Manager wraps gorilla/sessions for the login flow
type Manager struct {
	store *sessions.CookieStore
}

// NewManager creates a session manager.
// A 64 byte secret is split into an HMAC key and an AES-256 key, shorter secrets only sign.
func NewManager(secret []byte, maxAge time.Duration, secure bool) *Manager {
	var store *sessions.CookieStore
	if len(secret) >= 64 {
		store = sessions.NewCookieStore(secret[:32], secret[32:64])
	} else {
		store = sessions.NewCookieStore(secret)
	}

	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &Manager{store: store}
}

// DecodeSecret decodes a base64 secret, generating a random one when empty.
// The second return value reports whether the secret was generated.
func DecodeSecret(encoded string) ([]byte, bool, error) {
	if encoded == "" {
		secret := make([]byte, 64)
		if _, err := rand.Read(secret); err != nil {
			return nil, false, fmt.Errorf("failed to generate session secret: %w", err)
		}
		return secret, true, nil
	}
	secret, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode session secret: %w", err)
	}
	return secret, false, nil
}

// get returns the request's session, starting a fresh one when the cookie is unreadable
func (m *Manager) get(r *http.Request) *sessions.Session {
	s, err := m.store.Get(r, SessionName)
	if err != nil {
		s, _ = m.store.New(r, SessionName)
	}
	return s
}

// BeginLogin stores a fresh state value for provider and returns it
func (m *Manager) BeginLogin(r *http.Request, w http.ResponseWriter, provider string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(buf)

	s := m.get(r)
	s.Values[stateKey] = state
	s.Values[providerKey] = provider
	if err := s.Save(r, w); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}
	return state, nil
}

// LoginState returns the pending state and provider
func (m *Manager) LoginState(r *http.Request) (string, string, error) {
	s := m.get(r)
	state, _ := s.Values[stateKey].(string)
	provider, _ := s.Values[providerKey].(string)
	if state == "" {
		return "", "", ErrNoLoginState
	}
	return state, provider, nil
}

// SetUser establishes the authenticated session and drops the pending login
func (m *Manager) SetUser(r *http.Request, w http.ResponseWriter, user *auth.SessionUser) error {
	kept := make(map[string]string, len(keptAttributes))
	for _, key := range keptAttributes {
		if v := user.StringAttribute(key); v != "" {
			kept[key] = v
		}
	}

	s := m.get(r)
	delete(s.Values, stateKey)
	delete(s.Values, providerKey)
	s.Values[emailKey] = user.Email
	s.Values[userProvKey] = user.Provider
	s.Values[attributesKey] = kept
	return s.Save(r, w)
}

// GetUser returns the session's user or auth.ErrUnauthorized
func (m *Manager) GetUser(r *http.Request) (*auth.SessionUser, error) {
	s, err := m.store.Get(r, SessionName)
	if err != nil {
		return nil, auth.ErrUnauthorized
	}
	email, _ := s.Values[emailKey].(string)
	if email == "" {
		return nil, auth.ErrUnauthorized
	}
	provider, _ := s.Values[userProvKey].(string)
	kept, _ := s.Values[attributesKey].(map[string]string)

	attrs := make(map[string]any, len(kept))
	for k, v := range kept {
		attrs[k] = v
	}
	return &auth.SessionUser{Email: email, Provider: provider, Attributes: attrs}, nil
}

// Clear removes the session (logout)
func (m *Manager) Clear(r *http.Request, w http.ResponseWriter) error {
	s := m.get(r)
	s.Values = map[interface{}]interface{}{}
	s.Options.MaxAge = -1
	return s.Save(r, w)
}
