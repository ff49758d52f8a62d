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

const qualityIssuesCollection = "quality_issues"

// QualityIssueRepository is the MongoDB implementation of
// domain.QualityIssueRepository
type QualityIssueRepository struct {
	collection *mongo.Collection
}

// NewQualityIssueRepository creates a new QualityIssueRepository
func NewQualityIssueRepository(client *mongodb.Client) *QualityIssueRepository {
	return &QualityIssueRepository{collection: client.Collection(qualityIssuesCollection)}
}

// EnsureIndexes creates the indexes the issue queries depend on
func (r *QualityIssueRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "issueId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "stageId", Value: 1}, {Key: "status", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create quality issue indexes: %w", err)
	}
	return nil
}

// Save upserts a quality issue by its business identifier
func (r *QualityIssueRepository) Save(ctx context.Context, issue *domain.QualityIssue) error {
	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"issueId": issue.IssueID},
		issue,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save quality issue: %w", err)
	}
	return nil
}

// FindByID retrieves a quality issue by its business identifier
func (r *QualityIssueRepository) FindByID(ctx context.Context, issueID string) (*domain.QualityIssue, error) {
	var issue domain.QualityIssue
	err := r.collection.FindOne(ctx, bson.M{"issueId": issueID}).Decode(&issue)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find quality issue: %w", err)
	}
	return &issue, nil
}

// FindOpenByStage returns the unprocessed issue of a stage
func (r *QualityIssueRepository) FindOpenByStage(ctx context.Context, stageID string) (*domain.QualityIssue, error) {
	var issue domain.QualityIssue
	err := r.collection.FindOne(ctx, bson.M{
		"stageId": stageID,
		"status":  domain.IssueOpen,
	}).Decode(&issue)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find open quality issue: %w", err)
	}
	return &issue, nil
}

// FindByStage lists all issues of a stage, newest first
func (r *QualityIssueRepository) FindByStage(ctx context.Context, stageID string) ([]*domain.QualityIssue, error) {
	cursor, err := r.collection.Find(ctx,
		bson.M{"stageId": stageID},
		options.Find().SetSort(bson.D{{Key: "audit.createdAt", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list quality issues: %w", err)
	}
	defer cursor.Close(ctx)

	var issues []*domain.QualityIssue
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, fmt.Errorf("failed to decode quality issues: %w", err)
	}
	return issues, nil
}
