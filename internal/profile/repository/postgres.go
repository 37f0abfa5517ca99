package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"edu-admin-console/internal/profile/domain"
)

// PostgresStore resolves profiles from the relational profiles table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns a profile store backed by the given db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetProfileByID returns the profile for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (s *PostgresStore) GetProfileByID(ctx context.Context, id string) (*domain.Profile, error) {
	query := `
		SELECT id, email, display_name, role, points, level, subjects, subscribed, created_at, updated_at
		FROM profiles WHERE id = $1`

	var (
		p           domain.Profile
		email       sql.NullString
		displayName sql.NullString
		role        sql.NullString
		subjects    []byte
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &email, &displayName, &role, &p.Points, &p.Level,
		&subjects, &p.Subscribed, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.Email = email.String
	p.DisplayName = displayName.String
	p.Role = domain.RoleFromString(role.String)
	if len(subjects) > 0 {
		if err := json.Unmarshal(subjects, &p.Subjects); err != nil {
			return nil, fmt.Errorf("decode subjects for %s: %w", id, err)
		}
	}
	return &p, nil
}
