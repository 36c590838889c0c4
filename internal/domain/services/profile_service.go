package services

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/devilmonastery/idlink/internal/domain/entities"
	"github.com/devilmonastery/idlink/internal/domain/repositories"
)

// Profile field limits, in characters
const (
	MaxDisplayNameLength = 100
	MaxBioLength         = 500
)

// ProfileView is what the frontend sees for the logged-in user
type ProfileView struct {
	Authenticated bool    `json:"authenticated"`
	Email         string  `json:"email,omitempty"`
	DisplayName   string  `json:"displayName,omitempty"`
	AvatarURL     *string `json:"avatarUrl,omitempty"`
	Bio           string  `json:"bio"`
}

// ProfileFallback carries session attributes shown before a user row exists
type ProfileFallback struct {
	DisplayName string
	AvatarURL   *string
}

// ProfileUpdate is a user-submitted profile change
type ProfileUpdate struct {
	DisplayName string `json:"displayName"`
	Bio         string `json:"bio"`
}

// ProfileService reads and edits the logged-in user's profile
type ProfileService struct {
	users  repositories.UserRepository
	policy *bluemonday.Policy
	log    *slog.Logger
}

// NewProfileService creates a new profile service
func NewProfileService(users repositories.UserRepository) *ProfileService {
	return &ProfileService{
		users:  users,
		policy: bluemonday.StrictPolicy(),
		log:    slog.Default().With(slog.String("service", "profile")),
	}
}

// Get returns the stored profile for email, or the fallback when no user row exists
func (s *ProfileService) Get(ctx context.Context, email string, fallback ProfileFallback) (ProfileView, error) {
	user, err := s.users.GetByEmail(ctx, entities.NormalizeEmail(email))
	if err != nil {
		if IsUserNotFound(err) {
			return ProfileView{
				Authenticated: true,
				Email:         email,
				DisplayName:   fallback.DisplayName,
				AvatarURL:     fallback.AvatarURL,
			}, nil
		}
		return ProfileView{}, fmt.Errorf("failed to load profile: %w", err)
	}

	profile := Project(user)
	view := ProfileView{
		Authenticated: true,
		Email:         profile.Email,
		DisplayName:   profile.DisplayName,
		AvatarURL:     profile.AvatarURL,
	}
	if profile.Bio != nil {
		view.Bio = *profile.Bio
	}
	return view, nil
}

// Update sanitizes and stores a new display name and bio.
// Returns repositories.ErrUserNotFound when email has no user row.
func (s *ProfileService) Update(ctx context.Context, email string, update ProfileUpdate) (*entities.User, error) {
	displayName := s.sanitize(update.DisplayName)
	bio := s.sanitize(update.Bio)

	if displayName == "" {
		return nil, fmt.Errorf("%w: display name is required", ErrInvalidProfile)
	}
	if utf8.RuneCountInString(displayName) > MaxDisplayNameLength {
		return nil, fmt.Errorf("%w: display name must be at most %d characters", ErrInvalidProfile, MaxDisplayNameLength)
	}
	if utf8.RuneCountInString(bio) > MaxBioLength {
		return nil, fmt.Errorf("%w: bio must be at most %d characters", ErrInvalidProfile, MaxBioLength)
	}

	user, err := s.users.GetByEmail(ctx, entities.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}

	user.DisplayName = displayName
	if bio == "" {
		user.Bio = nil
	} else {
		user.Bio = &bio
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	s.log.Info("profile updated", slog.String("user_id", user.ID))
	return user, nil
}

// sanitize strips markup, keeping the literal text
func (s *ProfileService) sanitize(value string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(value)))
}
