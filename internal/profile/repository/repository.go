package repository

import (
	"context"

	"edu-admin-console/internal/profile/domain"
)

// Store resolves a profile record by identity id.
type Store interface {
	// GetProfileByID returns the profile for id, or nil if no record exists.
	// It returns an error only for transport or service failures, not for
	// missing rows; callers treat both cases identically (fail-closed).
	GetProfileByID(ctx context.Context, id string) (*domain.Profile, error)
}
