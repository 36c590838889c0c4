package entities

// CanonicalProfile is the provider-independent view of a reconciled user
type CanonicalProfile struct {
	Email       string  `json:"email"`
	DisplayName string  `json:"displayName"`
	AvatarURL   *string `json:"avatarUrl"`
	Bio         *string `json:"bio"`
}
