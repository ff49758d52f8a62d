package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mes-platform/production-service/pkg/mongodb"
)

const usersCollection = "users"

// UserRepository resolves actor capabilities from the shared users
// collection. It implements domain.RoleResolver.
type UserRepository struct {
	collection *mongo.Collection
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(client *mongodb.Client) *UserRepository {
	return &UserRepository{collection: client.Collection(usersCollection)}
}

// HasCapability reports whether the actor carries the named capability.
// An unknown actor simply has no capabilities.
func (r *UserRepository) HasCapability(ctx context.Context, actorID, capability string) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{
		"userId":       actorID,
		"capabilities": capability,
	})
	if err != nil {
		return false, fmt.Errorf("failed to resolve capabilities for %s: %w", actorID, err)
	}
	return count > 0, nil
}
