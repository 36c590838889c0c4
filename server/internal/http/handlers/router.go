package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devilmonastery/idlink/server/internal/http/middleware"
)

// NewRouter sets up the HTTP router with all routes and middleware
func NewRouter(h *Handler, log *slog.Logger) http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.LoadUser(h.sessions), middleware.LogRequest(log))

	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.HandleFunc("/login/{provider}", h.Login).Methods(http.MethodGet)
	router.HandleFunc("/login/oauth2/code/{provider}", h.Callback).Methods(http.MethodGet)
	router.HandleFunc("/logout", h.Logout).Methods(http.MethodPost)

	router.HandleFunc("/api/me", h.Me).Methods(http.MethodGet)
	router.HandleFunc("/api/profile", h.UpdateProfile).Methods(http.MethodPost)

	return router
}
