package domain

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Errors for the MaterialRequisition entity
var (
	ErrRequisitionDecided = errors.New("requisition has already been decided")
)

// RequisitionStatus represents the approval state of a material
// requisition
type RequisitionStatus string

const (
	RequisitionPending  RequisitionStatus = "pending"
	RequisitionApproved RequisitionStatus = "approved"
	RequisitionRejected RequisitionStatus = "rejected"
)

// MaterialRequisition is an approval-gated request for extra input
// material triggered by a major defect
type MaterialRequisition struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	RequisitionID string             `bson:"requisitionId" json:"requisitionId"`
	IssueID       string             `bson:"issueId" json:"issueId"`
	StageID       string             `bson:"stageId" json:"stageId"`

	Quantity float64           `bson:"quantity" json:"quantity"`
	Status   RequisitionStatus `bson:"status" json:"status"`
	Notes    string            `bson:"notes,omitempty" json:"notes,omitempty"`

	RequestedBy string     `bson:"requestedBy" json:"requestedBy"`
	DecidedBy   string     `bson:"decidedBy,omitempty" json:"decidedBy,omitempty"`
	DecidedAt   *time.Time `bson:"decidedAt,omitempty" json:"decidedAt,omitempty"`

	Audit AuditInfo `bson:"audit" json:"audit"`
}

// NewMaterialRequisition creates a pending requisition from a quality
// issue
func NewMaterialRequisition(requisitionID, issueID, stageID string, quantity float64, notes, actorID string) *MaterialRequisition {
	now := time.Now().UTC()
	return &MaterialRequisition{
		ID:            primitive.NewObjectID(),
		RequisitionID: requisitionID,
		IssueID:       issueID,
		StageID:       stageID,
		Quantity:      quantity,
		Status:        RequisitionPending,
		Notes:         notes,
		RequestedBy:   actorID,
		Audit: AuditInfo{
			CreatedAt: now,
			CreatedBy: actorID,
			UpdatedAt: now,
		},
	}
}

// Approve grants the requisition. Only a pending requisition can be
// decided.
func (r *MaterialRequisition) Approve(approverID string) error {
	return r.decide(RequisitionApproved, approverID)
}

// Reject denies the requisition. The stage stays on material hold;
// approval of a new requisition is the only clearing path.
func (r *MaterialRequisition) Reject(approverID string) error {
	return r.decide(RequisitionRejected, approverID)
}

func (r *MaterialRequisition) decide(status RequisitionStatus, actorID string) error {
	if r.Status != RequisitionPending {
		return ErrRequisitionDecided
	}

	now := time.Now().UTC()
	r.Status = status
	r.DecidedBy = actorID
	r.DecidedAt = &now
	r.Audit.Touch(actorID)
	return nil
}
