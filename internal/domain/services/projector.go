package services

import "github.com/devilmonastery/idlink/internal/domain/entities"

// Project builds the provider-independent profile for a reconciled user
func Project(user *entities.User) entities.CanonicalProfile {
	return entities.CanonicalProfile{
		Email:       user.Email,
		DisplayName: user.DisplayName,
		AvatarURL:   copyString(user.AvatarURL),
		Bio:         copyString(user.Bio),
	}
}
