package domain

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Errors for QC entities
var (
	ErrSessionAlreadyOpen   = errors.New("a QC session is already in progress for this stage")
	ErrSessionSubmitted     = errors.New("QC session has already been submitted")
	ErrInvalidQCResult      = errors.New("overall result must be PASS or FAIL")
	ErrIssueAlreadyHandled  = errors.New("quality issue has already been processed")
	ErrSeverityTooLowForMat = errors.New("material request requires a MAJOR defect")
)

// QCResult represents a quality inspection verdict
type QCResult string

const (
	QCPass QCResult = "PASS"
	QCFail QCResult = "FAIL"
)

// IsValid checks if the result is valid
func (r QCResult) IsValid() bool {
	return r == QCPass || r == QCFail
}

// SessionStatus represents the status of a QC session
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionSubmitted  SessionStatus = "submitted"
)

// CheckpointResult records one inspection criterion outcome. Checkpoints
// are audit data only; the overall verdict is asserted by the inspector,
// not derived from them.
type CheckpointResult struct {
	Criterion string `bson:"criterion" json:"criterion"`
	Passed    bool   `bson:"passed" json:"passed"`
	Note      string `bson:"note,omitempty" json:"note,omitempty"`
}

// QCSession is one quality-inspection pass over a stage's output. At
// most one session may be in progress per stage at any time.
type QCSession struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	SessionID   string             `bson:"sessionId" json:"sessionId"`
	StageID     string             `bson:"stageId" json:"stageId"`
	InspectorID string             `bson:"inspectorId" json:"inspectorId"`

	Status        SessionStatus      `bson:"status" json:"status"`
	Checkpoints   []CheckpointResult `bson:"checkpoints,omitempty" json:"checkpoints,omitempty"`
	OverallResult QCResult           `bson:"overallResult,omitempty" json:"overallResult,omitempty"`
	Notes         string             `bson:"notes,omitempty" json:"notes,omitempty"`
	SubmittedAt   *time.Time         `bson:"submittedAt,omitempty" json:"submittedAt,omitempty"`

	Audit AuditInfo `bson:"audit" json:"audit"`
}

// NewQCSession opens a QC session for a stage
func NewQCSession(sessionID, stageID, inspectorID string) *QCSession {
	now := time.Now().UTC()
	return &QCSession{
		ID:          primitive.NewObjectID(),
		SessionID:   sessionID,
		StageID:     stageID,
		InspectorID: inspectorID,
		Status:      SessionInProgress,
		Audit: AuditInfo{
			CreatedAt: now,
			CreatedBy: inspectorID,
			UpdatedAt: now,
		},
	}
}

// Submit freezes the session with the asserted overall verdict and the
// checkpoint results as recorded at submit time
func (s *QCSession) Submit(overallResult QCResult, checkpoints []CheckpointResult, notes, actorID string) error {
	if s.Status == SessionSubmitted {
		return ErrSessionSubmitted
	}
	if !overallResult.IsValid() {
		return ErrInvalidQCResult
	}

	now := time.Now().UTC()
	s.Status = SessionSubmitted
	s.OverallResult = overallResult
	s.Checkpoints = checkpoints
	s.Notes = notes
	s.SubmittedAt = &now
	s.Audit.Touch(actorID)
	return nil
}

// IssueKind distinguishes the processing route of a quality issue
type IssueKind string

const (
	IssueRework          IssueKind = "rework"
	IssueMaterialRequest IssueKind = "material_request"
	IssueAccepted        IssueKind = "accepted"
)

// IssueStatus represents the processing status of a quality issue
type IssueStatus string

const (
	IssueOpen      IssueStatus = "open"
	IssueProcessed IssueStatus = "processed"
)

// QualityIssue is a recorded defect requiring rework or material
// escalation. Issues are append-only audit records: once processed,
// only the audit fields may change.
type QualityIssue struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	IssueID   string             `bson:"issueId" json:"issueId"`
	StageID   string             `bson:"stageId" json:"stageId"`
	SessionID string             `bson:"sessionId,omitempty" json:"sessionId,omitempty"`

	Severity    DefectSeverity `bson:"severity" json:"severity"`
	Kind        IssueKind      `bson:"kind,omitempty" json:"kind,omitempty"`
	Status      IssueStatus    `bson:"status" json:"status"`
	Description string         `bson:"description,omitempty" json:"description,omitempty"`

	ProcessedBy string     `bson:"processedBy,omitempty" json:"processedBy,omitempty"`
	ProcessedAt *time.Time `bson:"processedAt,omitempty" json:"processedAt,omitempty"`

	Audit AuditInfo `bson:"audit" json:"audit"`
}

// NewQualityIssue records a defect raised against a stage
func NewQualityIssue(issueID, stageID, sessionID string, severity DefectSeverity, description, actorID string) *QualityIssue {
	now := time.Now().UTC()
	return &QualityIssue{
		ID:          primitive.NewObjectID(),
		IssueID:     issueID,
		StageID:     stageID,
		SessionID:   sessionID,
		Severity:    severity,
		Status:      IssueOpen,
		Description: description,
		Audit: AuditInfo{
			CreatedAt: now,
			CreatedBy: actorID,
			UpdatedAt: now,
		},
	}
}

// Process closes the issue with the chosen route
func (i *QualityIssue) Process(kind IssueKind, actorID string) error {
	if i.Status == IssueProcessed {
		return ErrIssueAlreadyHandled
	}
	if kind == IssueMaterialRequest && i.Severity != SeverityMajor {
		return ErrSeverityTooLowForMat
	}

	now := time.Now().UTC()
	i.Kind = kind
	i.Status = IssueProcessed
	i.ProcessedBy = actorID
	i.ProcessedAt = &now
	i.Audit.Touch(actorID)
	return nil
}
