package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mes-platform/production-service/internal/domain"
	"github.com/mes-platform/production-service/pkg/mongodb"
)

const reservationsCollection = "reservations"

// ReservationRepository is the MongoDB implementation of
// domain.ReservationRepository. The no-overlap constraint is enforced
// here with a check-then-insert inside the caller's transaction; the
// serialized transaction makes the check race-safe.
type ReservationRepository struct {
	collection *mongo.Collection
}

// NewReservationRepository creates a new ReservationRepository
func NewReservationRepository(client *mongodb.Client) *ReservationRepository {
	return &ReservationRepository{collection: client.Collection(reservationsCollection)}
}

// EnsureIndexes creates the indexes the ledger queries depend on
func (r *ReservationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "reservationId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "machineId", Value: 1}, {Key: "status", Value: 1}, {Key: "windowStart", Value: 1}},
		},
		{
			// One active reservation per stage.
			Keys: bson.D{{Key: "stageId", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{
					"status":  domain.ReservationActive,
					"stageId": bson.M{"$type": "string"},
				}),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create reservation indexes: %w", err)
	}
	return nil
}

// Commit inserts a reservation after verifying no active reservation on
// the same machine overlaps the requested window. Windows are half-open:
// a reservation ending exactly when another starts does not collide.
func (r *ReservationRepository) Commit(ctx context.Context, reservation *domain.Reservation) error {
	overlapFilter := bson.M{
		"machineId":   reservation.MachineID,
		"status":      domain.ReservationActive,
		"windowStart": bson.M{"$lt": reservation.WindowEnd},
		"windowEnd":   bson.M{"$gt": reservation.WindowStart},
	}

	count, err := r.collection.CountDocuments(ctx, overlapFilter)
	if err != nil {
		return fmt.Errorf("failed to check reservation overlap: %w", err)
	}
	if count > 0 {
		return domain.ErrOverlappingReservation
	}

	if _, err := r.collection.InsertOne(ctx, reservation); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrOverlappingReservation
		}
		return fmt.Errorf("failed to commit reservation: %w", err)
	}
	return nil
}

// Release flips an active reservation to released
func (r *ReservationRepository) Release(ctx context.Context, reservationID, actorID string) error {
	now := time.Now().UTC()
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"reservationId": reservationID, "status": domain.ReservationActive},
		bson.M{"$set": bson.M{
			"status":          domain.ReservationReleased,
			"releasedAt":      now,
			"audit.updatedAt": now,
			"audit.updatedBy": actorID,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to release reservation: %w", err)
	}
	if result.MatchedCount == 0 {
		// Distinguish a missing reservation from one already released.
		count, err := r.collection.CountDocuments(ctx, bson.M{"reservationId": reservationID})
		if err != nil {
			return fmt.Errorf("failed to look up reservation: %w", err)
		}
		if count == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrReservationReleased
	}
	return nil
}

// FindByID retrieves a reservation by its business identifier
func (r *ReservationRepository) FindByID(ctx context.Context, reservationID string) (*domain.Reservation, error) {
	var reservation domain.Reservation
	err := r.collection.FindOne(ctx, bson.M{"reservationId": reservationID}).Decode(&reservation)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}
	return &reservation, nil
}

// FindActiveByMachine lists the active reservations of one machine
func (r *ReservationRepository) FindActiveByMachine(ctx context.Context, machineID string) ([]*domain.Reservation, error) {
	return r.findActive(ctx, bson.M{"machineId": machineID})
}

// FindActiveByMachines loads active reservations for a set of machines,
// keyed by machine id
func (r *ReservationRepository) FindActiveByMachines(ctx context.Context, machineIDs []string) (map[string][]*domain.Reservation, error) {
	if len(machineIDs) == 0 {
		return map[string][]*domain.Reservation{}, nil
	}

	reservations, err := r.findActive(ctx, bson.M{"machineId": bson.M{"$in": machineIDs}})
	if err != nil {
		return nil, err
	}

	byMachine := make(map[string][]*domain.Reservation)
	for _, reservation := range reservations {
		byMachine[reservation.MachineID] = append(byMachine[reservation.MachineID], reservation)
	}
	return byMachine, nil
}

// FindActiveByStage returns the active reservation held by a stage
func (r *ReservationRepository) FindActiveByStage(ctx context.Context, stageID string) (*domain.Reservation, error) {
	var reservation domain.Reservation
	err := r.collection.FindOne(ctx, bson.M{
		"stageId": stageID,
		"status":  domain.ReservationActive,
	}).Decode(&reservation)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}
	return &reservation, nil
}

// FindAllActive lists every active reservation in the ledger
func (r *ReservationRepository) FindAllActive(ctx context.Context) ([]*domain.Reservation, error) {
	return r.findActive(ctx, bson.M{})
}

func (r *ReservationRepository) findActive(ctx context.Context, filter bson.M) ([]*domain.Reservation, error) {
	filter["status"] = domain.ReservationActive
	cursor, err := r.collection.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "windowStart", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*domain.Reservation
	if err := cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}
	return reservations, nil
}
