package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/devilmonastery/idlink/internal/auth"
	"github.com/devilmonastery/idlink/internal/domain/entities"
	"github.com/devilmonastery/idlink/internal/domain/repositories"
	"github.com/devilmonastery/idlink/internal/domain/services"
	"github.com/devilmonastery/idlink/internal/pkg/urlutil"
)

// maxProfileBody bounds POST /api/profile payloads
const maxProfileBody = 16 << 10

// Me returns the current user's profile, or {authenticated:false}
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	view, err := h.profiles.Get(r.Context(), user.Email, fallbackFor(user))
	if err != nil {
		h.log.Error("failed to load profile", slog.String("error", err.Error()))
		h.writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// fallbackFor picks the session attributes shown when no user row exists
func fallbackFor(user *auth.SessionUser) services.ProfileFallback {
	fallback := services.ProfileFallback{DisplayName: user.StringAttribute("name")}
	if fallback.DisplayName == "" {
		fallback.DisplayName = user.StringAttribute("login")
	}

	avatarKey := "picture"
	if user.Provider == entities.ProviderGitHub.String() {
		avatarKey = "avatar_url"
	}
	if avatar := user.StringAttribute(avatarKey); avatar != "" {
		fallback.AvatarURL = urlutil.SafeAvatarURL(&avatar)
	}
	return fallback
}

// UpdateProfile stores a new display name and bio
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var update services.ProfileUpdate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxProfileBody)).Decode(&update); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := h.profiles.Update(r.Context(), user.Email, update); err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidProfile):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repositories.ErrUserNotFound):
			h.writeError(w, http.StatusNotFound, "user not found")
		default:
			h.log.Error("failed to update profile", slog.String("error", err.Error()))
			h.writeError(w, http.StatusInternalServerError, "failed to update profile")
		}
		return
	}

	h.recordAudit(r, entities.NewAuditEvent(entities.ActionUserProfileUpdated).WithEmail(user.Email))

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Profile updated successfully",
	})
}
