package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mes-platform/production-service/internal/domain"
	"github.com/mes-platform/production-service/pkg/mongodb"
)

const stagesCollection = "stages"

// StageRepository is the MongoDB implementation of
// domain.StageRepository
type StageRepository struct {
	collection *mongo.Collection
}

// NewStageRepository creates a new StageRepository
func NewStageRepository(client *mongodb.Client) *StageRepository {
	return &StageRepository{collection: client.Collection(stagesCollection)}
}

// EnsureIndexes creates the indexes the stage queries depend on
func (r *StageRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "stageId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "orderId", Value: 1}, {Key: "sequence", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "execStatus", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create stage indexes: %w", err)
	}
	return nil
}

// Save inserts a new stage or updates an existing one with an
// optimistic version check. A lost version race returns
// domain.ErrVersionConflict.
func (r *StageRepository) Save(ctx context.Context, stage *domain.Stage) error {
	if stage.Version == 0 {
		stage.Version = 1
		if _, err := r.collection.InsertOne(ctx, stage); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("stage %s already exists: %w", stage.StageID, err)
			}
			return fmt.Errorf("failed to insert stage: %w", err)
		}
		return nil
	}

	previousVersion := stage.Version
	stage.Version++

	result, err := r.collection.ReplaceOne(ctx,
		bson.M{"stageId": stage.StageID, "version": previousVersion},
		stage,
	)
	if err != nil {
		stage.Version = previousVersion
		return fmt.Errorf("failed to update stage: %w", err)
	}
	if result.MatchedCount == 0 {
		stage.Version = previousVersion
		return domain.ErrVersionConflict
	}
	return nil
}

// FindByID retrieves a stage by its business identifier
func (r *StageRepository) FindByID(ctx context.Context, stageID string) (*domain.Stage, error) {
	var stage domain.Stage
	err := r.collection.FindOne(ctx, bson.M{"stageId": stageID}).Decode(&stage)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find stage: %w", err)
	}
	return &stage, nil
}

// FindByOrderID lists the stages of an order in sequence order
func (r *StageRepository) FindByOrderID(ctx context.Context, orderID string) ([]*domain.Stage, error) {
	cursor, err := r.collection.Find(ctx,
		bson.M{"orderId": orderID},
		options.Find().SetSort(bson.D{{Key: "sequence", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}
	defer cursor.Close(ctx)

	var stages []*domain.Stage
	if err := cursor.All(ctx, &stages); err != nil {
		return nil, fmt.Errorf("failed to decode stages: %w", err)
	}
	return stages, nil
}

// FindByExecStatus lists stages in a given execution status
func (r *StageRepository) FindByExecStatus(ctx context.Context, status domain.ExecStatus) ([]*domain.Stage, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"execStatus": status})
	if err != nil {
		return nil, fmt.Errorf("failed to list stages by status: %w", err)
	}
	defer cursor.Close(ctx)

	var stages []*domain.Stage
	if err := cursor.All(ctx, &stages); err != nil {
		return nil, fmt.Errorf("failed to decode stages: %w", err)
	}
	return stages, nil
}
