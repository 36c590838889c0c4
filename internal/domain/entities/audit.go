package entities

import (
	"encoding/json"
	"time"
)

// AuditEvent is one entry in the security audit trail
type AuditEvent struct {
	ID        string         `json:"id" db:"id"`
	Action    AuditAction    `json:"action" db:"action"`
	Email     *string        `json:"email,omitempty" db:"email"`       // null when the login failed before an email was known
	Provider  *string        `json:"provider,omitempty" db:"provider"` // GOOGLE, GITHUB
	IPAddress *string        `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent *string        `json:"user_agent,omitempty" db:"user_agent"`
	Success   bool           `json:"success" db:"success"`
	Reason    *string        `json:"reason,omitempty" db:"reason"`     // failure reason code
	Metadata  map[string]any `json:"metadata,omitempty" db:"metadata"` // stored as JSON in DB
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// AuditAction represents the type of action being audited
type AuditAction string

const (
	ActionUserLogin          AuditAction = "user.login"
	ActionUserLoginFailed    AuditAction = "user.login_failed"
	ActionUserLogout         AuditAction = "user.logout"
	ActionUserProfileUpdated AuditAction = "user.profile_updated"
)

// NewAuditEvent creates a new successful audit event
func NewAuditEvent(action AuditAction) *AuditEvent {
	return &AuditEvent{
		Action:    action,
		Success:   true,
		CreatedAt: time.Now().UTC(),
		Metadata:  make(map[string]any),
	}
}

// WithEmail sets the account email
func (a *AuditEvent) WithEmail(email string) *AuditEvent {
	if email != "" {
		a.Email = &email
	}
	return a
}

// WithProvider sets the identity provider
func (a *AuditEvent) WithProvider(provider Provider) *AuditEvent {
	p := provider.String()
	a.Provider = &p
	return a
}

// WithRequest sets the client address and user agent
func (a *AuditEvent) WithRequest(ip, userAgent string) *AuditEvent {
	if ip != "" {
		a.IPAddress = &ip
	}
	if userAgent != "" {
		a.UserAgent = &userAgent
	}
	return a
}

// WithFailure marks the event as failed with a reason code
func (a *AuditEvent) WithFailure(reason string) *AuditEvent {
	a.Success = false
	a.Reason = &reason
	return a
}

// WithMetadata adds metadata to the event
func (a *AuditEvent) WithMetadata(key string, value any) *AuditEvent {
	if a.Metadata == nil {
		a.Metadata = make(map[string]any)
	}
	a.Metadata[key] = value
	return a
}

// MarshalMetadataToJSON converts metadata map to JSON string for database storage
func (a *AuditEvent) MarshalMetadataToJSON() (string, error) {
	if a.Metadata == nil {
		return "{}", nil
	}
	data, err := json.Marshal(a.Metadata)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UnmarshalMetadataFromJSON converts JSON string from database to metadata map
func (a *AuditEvent) UnmarshalMetadataFromJSON(data string) error {
	if data == "" || data == "{}" {
		a.Metadata = make(map[string]any)
		return nil
	}
	return json.Unmarshal([]byte(data), &a.Metadata)
}

// IsAuthentication returns true if this is a login or logout event
func (a *AuditEvent) IsAuthentication() bool {
	switch a.Action {
	case ActionUserLogin, ActionUserLoginFailed, ActionUserLogout:
		return true
	default:
		return false
	}
}
