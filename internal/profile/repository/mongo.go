package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"edu-admin-console/internal/profile/domain"
)

// profilesCollection is the document collection holding profile records.
const profilesCollection = "profiles"

// MongoStore resolves profiles from a document store.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore returns a profile store backed by the profiles collection of db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(profilesCollection)}
}

type profileDoc struct {
	ID          string    `bson:"_id"`
	Email       string    `bson:"email,omitempty"`
	DisplayName string    `bson:"display_name,omitempty"`
	Role        string    `bson:"role,omitempty"`
	Points      int       `bson:"points,omitempty"`
	Level       int       `bson:"level,omitempty"`
	Subjects    []string  `bson:"subjects,omitempty"`
	Subscribed  bool      `bson:"subscribed,omitempty"`
	CreatedAt   time.Time `bson:"created_at,omitempty"`
	UpdatedAt   time.Time `bson:"updated_at,omitempty"`
}

// GetProfileByID returns the profile for id, or nil if no document exists.
// It returns an error only for driver or server failures.
func (s *MongoStore) GetProfileByID(ctx context.Context, id string) (*domain.Profile, error) {
	var doc profileDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return docToDomain(&doc), nil
}

func docToDomain(d *profileDoc) *domain.Profile {
	if d == nil {
		return nil
	}
	return &domain.Profile{
		ID:          d.ID,
		Email:       d.Email,
		DisplayName: d.DisplayName,
		Role:        domain.RoleFromString(d.Role),
		Points:      d.Points,
		Level:       d.Level,
		Subjects:    d.Subjects,
		Subscribed:  d.Subscribed,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}
