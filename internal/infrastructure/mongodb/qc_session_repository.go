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

const qcSessionsCollection = "qc_sessions"

// QCSessionRepository is the MongoDB implementation of
// domain.QCSessionRepository
type QCSessionRepository struct {
	collection *mongo.Collection
}

// NewQCSessionRepository creates a new QCSessionRepository
func NewQCSessionRepository(client *mongodb.Client) *QCSessionRepository {
	return &QCSessionRepository{collection: client.Collection(qcSessionsCollection)}
}

// EnsureIndexes creates the indexes the session queries depend on. The
// partial unique index backs the one-open-session-per-stage rule.
func (r *QCSessionRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "sessionId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "stageId", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": domain.SessionInProgress}),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create QC session indexes: %w", err)
	}
	return nil
}

// Create inserts a new session; a second in-progress session for the
// same stage is rejected
func (r *QCSessionRepository) Create(ctx context.Context, session *domain.QCSession) error {
	if _, err := r.collection.InsertOne(ctx, session); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrSessionAlreadyOpen
		}
		return fmt.Errorf("failed to create QC session: %w", err)
	}
	return nil
}

// Save replaces a session document
func (r *QCSessionRepository) Save(ctx context.Context, session *domain.QCSession) error {
	result, err := r.collection.ReplaceOne(ctx, bson.M{"sessionId": session.SessionID}, session)
	if err != nil {
		return fmt.Errorf("failed to save QC session: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// FindByID retrieves a session by its business identifier
func (r *QCSessionRepository) FindByID(ctx context.Context, sessionID string) (*domain.QCSession, error) {
	var session domain.QCSession
	err := r.collection.FindOne(ctx, bson.M{"sessionId": sessionID}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find QC session: %w", err)
	}
	return &session, nil
}

// FindInProgressByStage returns the open session of a stage
func (r *QCSessionRepository) FindInProgressByStage(ctx context.Context, stageID string) (*domain.QCSession, error) {
	var session domain.QCSession
	err := r.collection.FindOne(ctx, bson.M{
		"stageId": stageID,
		"status":  domain.SessionInProgress,
	}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find QC session: %w", err)
	}
	return &session, nil
}

// FindByStage lists all sessions of a stage, newest first
func (r *QCSessionRepository) FindByStage(ctx context.Context, stageID string) ([]*domain.QCSession, error) {
	cursor, err := r.collection.Find(ctx,
		bson.M{"stageId": stageID},
		options.Find().SetSort(bson.D{{Key: "audit.createdAt", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list QC sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []*domain.QCSession
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode QC sessions: %w", err)
	}
	return sessions, nil
}
