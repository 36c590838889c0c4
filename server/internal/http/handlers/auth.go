package handlers

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/devilmonastery/idlink/internal/auth"
	"github.com/devilmonastery/idlink/internal/auth/oauth"
	"github.com/devilmonastery/idlink/internal/domain/entities"
	"github.com/devilmonastery/idlink/internal/domain/services"
	"github.com/devilmonastery/idlink/internal/pkg/logger"
	"github.com/devilmonastery/idlink/internal/pkg/urlutil"
)

// Error codes passed to the frontend on a failed login
const (
	ErrorUnsupportedProvider = "unsupported_provider"
	ErrorEmailUnavailable    = "email_unavailable"
	ErrorLoginFailed         = "login_failed"
)

// errorCode maps a login failure to the code shown to the frontend
func errorCode(err error) string {
	var upe *auth.UnsupportedProviderError
	switch {
	case errors.As(err, &upe):
		return ErrorUnsupportedProvider
	case errors.Is(err, auth.ErrEmailUnavailable):
		return ErrorEmailUnavailable
	default:
		return ErrorLoginFailed
	}
}

// client resolves the {provider} path variable to a configured client
func (h *Handler) client(r *http.Request) (oauth.Client, error) {
	name := mux.Vars(r)["provider"]
	provider, err := entities.ParseProvider(name)
	if err != nil {
		return nil, err
	}
	c, ok := h.clients[provider]
	if !ok {
		return nil, &auth.UnsupportedProviderError{Provider: name}
	}
	return c, nil
}

// Login starts the authorization code flow
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	c, err := h.client(r)
	if err != nil {
		h.log.Warn("login requested for unknown provider", slog.String("provider", mux.Vars(r)["provider"]))
		h.failLogin(w, r, err)
		return
	}

	state, err := h.sessions.BeginLogin(r, w, c.Provider().Slug())
	if err != nil {
		h.log.Error("failed to start login", slog.String("error", err.Error()))
		h.failLogin(w, r, err)
		return
	}

	http.Redirect(w, r, c.AuthCodeURL(state), http.StatusFound)
}

// Callback completes the authorization code flow and establishes the session
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	c, err := h.client(r)
	if err != nil {
		h.failLogin(w, r, err)
		return
	}
	log := logger.WithProvider(h.log, c.Provider().String())

	if providerErr := r.URL.Query().Get("error"); providerErr != "" {
		log.Warn("provider returned an error", slog.String("error", providerErr))
		h.failLogin(w, r, errors.New(providerErr))
		return
	}

	expected, provider, err := h.sessions.LoginState(r)
	if err != nil {
		log.Warn("callback without pending login")
		h.failLogin(w, r, err)
		return
	}
	state := r.URL.Query().Get("state")
	if provider != c.Provider().Slug() || subtle.ConstantTimeCompare([]byte(state), []byte(expected)) != 1 {
		log.Warn("state mismatch on callback")
		h.failLogin(w, r, errors.New("state mismatch"))
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.failLogin(w, r, errors.New("missing authorization code"))
		return
	}

	token, err := c.Exchange(r.Context(), code)
	if err != nil {
		log.Error("token exchange failed", slog.String("error", err.Error()))
		h.failLogin(w, r, err)
		return
	}

	raw, err := c.FetchAttributes(r.Context(), token)
	if err != nil {
		log.Error("failed to fetch user attributes", slog.String("error", err.Error()))
		h.failLogin(w, r, err)
		return
	}

	profile, err := h.logins.Complete(r.Context(), c.Provider(), raw, token.AccessToken)
	if err != nil {
		log.Warn("login rejected",
			slog.String("reason", services.FailureReason(err)),
			slog.String("error", err.Error()))
		h.failLogin(w, r, err)
		return
	}

	if err := h.sessions.SetUser(r, w, &auth.SessionUser{
		Email:      profile.Email,
		Provider:   c.Provider().String(),
		Attributes: raw,
	}); err != nil {
		log.Error("failed to save session", slog.String("error", err.Error()))
		h.failLogin(w, r, err)
		return
	}

	h.recordAudit(r, entities.NewAuditEvent(entities.ActionUserLogin).
		WithEmail(profile.Email).
		WithProvider(c.Provider()))

	http.Redirect(w, r, h.frontendURL, http.StatusFound)
}

// failLogin clears the session and sends the browser back with an error code
func (h *Handler) failLogin(w http.ResponseWriter, r *http.Request, err error) {
	h.recordAudit(r, entities.NewAuditEvent(entities.ActionUserLoginFailed).
		WithFailure(services.FailureReason(err)).
		WithMetadata("provider", mux.Vars(r)["provider"]))

	if clearErr := h.sessions.Clear(r, w); clearErr != nil {
		h.log.Error("failed to clear session", slog.String("error", clearErr.Error()))
	}

	target, urlErr := urlutil.BuildFrontendErrorURL(h.frontendURL, errorCode(err))
	if urlErr != nil {
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, target, http.StatusFound)
}

// Logout clears the session
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if user, err := auth.GetUserFromContext(r.Context()); err == nil {
		h.recordAudit(r, entities.NewAuditEvent(entities.ActionUserLogout).WithEmail(user.Email))
	}

	if err := h.sessions.Clear(r, w); err != nil {
		h.log.Error("failed to clear session", slog.String("error", err.Error()))
		h.writeError(w, http.StatusInternalServerError, "failed to log out")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
