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

const machinesCollection = "machines"

// MachineRepository is the MongoDB implementation of
// domain.MachineRepository
type MachineRepository struct {
	collection *mongo.Collection
}

// NewMachineRepository creates a new MachineRepository
func NewMachineRepository(client *mongodb.Client) *MachineRepository {
	return &MachineRepository{collection: client.Collection(machinesCollection)}
}

// EnsureIndexes creates the indexes the machine queries depend on
func (r *MachineRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "machineId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "type", Value: 1}, {Key: "status", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create machine indexes: %w", err)
	}
	return nil
}

// Save upserts a machine by its business identifier
func (r *MachineRepository) Save(ctx context.Context, machine *domain.Machine) error {
	if machine.Version == 0 {
		machine.Version = 1
	} else {
		machine.Version++
	}

	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"machineId": machine.MachineID},
		machine,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save machine: %w", err)
	}
	return nil
}

// FindByID retrieves a machine by its business identifier
func (r *MachineRepository) FindByID(ctx context.Context, machineID string) (*domain.Machine, error) {
	var machine domain.Machine
	err := r.collection.FindOne(ctx, bson.M{"machineId": machineID}).Decode(&machine)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find machine: %w", err)
	}
	return &machine, nil
}

// FindByType lists machines of one process type
func (r *MachineRepository) FindByType(ctx context.Context, processType domain.ProcessType) ([]*domain.Machine, error) {
	cursor, err := r.collection.Find(ctx,
		bson.M{"type": processType},
		options.Find().SetSort(bson.D{{Key: "machineId", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list machines by type: %w", err)
	}
	defer cursor.Close(ctx)

	var machines []*domain.Machine
	if err := cursor.All(ctx, &machines); err != nil {
		return nil, fmt.Errorf("failed to decode machines: %w", err)
	}
	return machines, nil
}

// FindAll lists machines with pagination
func (r *MachineRepository) FindAll(ctx context.Context, pagination domain.Pagination) ([]*domain.Machine, error) {
	cursor, err := r.collection.Find(ctx,
		bson.M{},
		options.Find().
			SetSort(bson.D{{Key: "machineId", Value: 1}}).
			SetSkip(pagination.Skip()).
			SetLimit(pagination.Limit()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}
	defer cursor.Close(ctx)

	var machines []*domain.Machine
	if err := cursor.All(ctx, &machines); err != nil {
		return nil, fmt.Errorf("failed to decode machines: %w", err)
	}
	return machines, nil
}
