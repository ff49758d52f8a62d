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

const requisitionsCollection = "requisitions"

// RequisitionRepository is the MongoDB implementation of
// domain.RequisitionRepository
type RequisitionRepository struct {
	collection *mongo.Collection
}

// NewRequisitionRepository creates a new RequisitionRepository
func NewRequisitionRepository(client *mongodb.Client) *RequisitionRepository {
	return &RequisitionRepository{collection: client.Collection(requisitionsCollection)}
}

// EnsureIndexes creates the indexes the requisition queries depend on
func (r *RequisitionRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "requisitionId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "audit.createdAt", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create requisition indexes: %w", err)
	}
	return nil
}

// Save upserts a requisition by its business identifier
func (r *RequisitionRepository) Save(ctx context.Context, requisition *domain.MaterialRequisition) error {
	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"requisitionId": requisition.RequisitionID},
		requisition,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save requisition: %w", err)
	}
	return nil
}

// FindByID retrieves a requisition by its business identifier
func (r *RequisitionRepository) FindByID(ctx context.Context, requisitionID string) (*domain.MaterialRequisition, error) {
	var requisition domain.MaterialRequisition
	err := r.collection.FindOne(ctx, bson.M{"requisitionId": requisitionID}).Decode(&requisition)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find requisition: %w", err)
	}
	return &requisition, nil
}

// FindPending lists requisitions awaiting a decision, oldest first
func (r *RequisitionRepository) FindPending(ctx context.Context, pagination domain.Pagination) ([]*domain.MaterialRequisition, error) {
	cursor, err := r.collection.Find(ctx,
		bson.M{"status": domain.RequisitionPending},
		options.Find().
			SetSort(bson.D{{Key: "audit.createdAt", Value: 1}}).
			SetSkip(pagination.Skip()).
			SetLimit(pagination.Limit()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requisitions: %w", err)
	}
	defer cursor.Close(ctx)

	var requisitions []*domain.MaterialRequisition
	if err := cursor.All(ctx, &requisitions); err != nil {
		return nil, fmt.Errorf("failed to decode requisitions: %w", err)
	}
	return requisitions, nil
}
