package entities

import "time"

// ProviderLink binds one provider identity to one local user.
// A user can have several links (e.g., Google + GitHub) sharing one email.
type ProviderLink struct {
	ID             string    `json:"id" db:"id"`
	UserID         string    `json:"user_id" db:"user_id"`
	Provider       Provider  `json:"provider" db:"provider"`
	ProviderUserID string    `json:"provider_user_id" db:"provider_user_id"` // 'sub' for Google, numeric id for GitHub
	ProviderEmail  string    `json:"provider_email" db:"provider_email"`     // email asserted when the link was created
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// ProviderKey returns a formatted provider+subject string for logging
func (l *ProviderLink) ProviderKey() string {
	return string(l.Provider) + ":" + l.ProviderUserID
}
