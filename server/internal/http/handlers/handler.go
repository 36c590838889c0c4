package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/devilmonastery/idlink/internal/auth/oauth"
	"github.com/devilmonastery/idlink/internal/domain/entities"
	"github.com/devilmonastery/idlink/internal/domain/repositories"
	"github.com/devilmonastery/idlink/internal/domain/services"
	"github.com/devilmonastery/idlink/server/internal/http/middleware"
	"github.com/devilmonastery/idlink/server/internal/session"
)

// LoginCompleter turns a finished provider login into a canonical profile
type LoginCompleter interface {
	Complete(ctx context.Context, provider entities.Provider, raw map[string]any, accessToken string) (entities.CanonicalProfile, error)
}

// ProfileStore reads and edits the logged-in user's profile
type ProfileStore interface {
	Get(ctx context.Context, email string, fallback services.ProfileFallback) (services.ProfileView, error)
	Update(ctx context.Context, email string, update services.ProfileUpdate) (*entities.User, error)
}

// Handler holds dependencies for all HTTP handlers
type Handler struct {
	clients     map[entities.Provider]oauth.Client
	logins      LoginCompleter
	profiles    ProfileStore
	sessions    *session.Manager
	health      repositories.HealthChecker
	audit       repositories.AuditRepository
	frontendURL string
	log         *slog.Logger
}

// Options configures a Handler
type Options struct {
	Clients     map[entities.Provider]oauth.Client
	Logins      LoginCompleter
	Profiles    ProfileStore
	Sessions    *session.Manager
	Health      repositories.HealthChecker  // optional
	Audit       repositories.AuditRepository // optional
	FrontendURL string
}

// New creates a new handler with dependencies
func New(opts Options, logger *slog.Logger) *Handler {
	return &Handler{
		clients:     opts.Clients,
		logins:      opts.Logins,
		profiles:    opts.Profiles,
		sessions:    opts.Sessions,
		health:      opts.Health,
		audit:       opts.Audit,
		frontendURL: opts.FrontendURL,
		log:         logger.With(slog.String("component", "http_handler")),
	}
}

// Health reports liveness, and database reachability when a checker is set
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if h.health != nil {
		if err := h.health.HealthCheck(r.Context()); err != nil {
			h.log.Warn("health check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// recordAudit stores an audit event for the request; failures are logged, never returned
func (h *Handler) recordAudit(r *http.Request, event *entities.AuditEvent) {
	if h.audit == nil {
		return
	}
	event.WithRequest(middleware.ClientIP(r), r.UserAgent())
	if err := h.audit.Create(r.Context(), event); err != nil {
		h.log.Error("failed to record audit event",
			slog.String("action", string(event.Action)),
			slog.String("error", err.Error()))
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError writes a JSON error body
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]any{"error": message})
}
