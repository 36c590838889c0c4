package entities

import (
	"time"
)

// DefaultDisplayName is stored when a new user's provider supplies no name
const DefaultDisplayName = "Unknown"

// User represents a locally stored user profile, unique by email
type User struct {
	ID          string    `json:"id" db:"id"`
	Email       string    `json:"email" db:"email"`
	DisplayName string    `json:"display_name" db:"display_name"`
	AvatarURL   *string   `json:"avatar_url,omitempty" db:"avatar_url"` // profile picture from most recent login
	Bio         *string   `json:"bio,omitempty" db:"bio"`               // only ever set by the user
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// MergeProfile copies non-nil provider values over the stored ones.
// Nil values never erase what is stored. Returns true when anything changed.
func (u *User) MergeProfile(displayName, avatarURL *string) bool {
	changed := false
	if displayName != nil && *displayName != u.DisplayName {
		u.DisplayName = *displayName
		changed = true
	}
	if avatarURL != nil && (u.AvatarURL == nil || *u.AvatarURL != *avatarURL) {
		v := *avatarURL
		u.AvatarURL = &v
		changed = true
	}
	return changed
}
