package application

import (
	"time"
)

// ReleaseOrderCommand batch-creates the stages of a production order in
// sequence order
type ReleaseOrderCommand struct {
	OrderID string
	ActorID string
	Stages  []StageInput
}

// StageInput describes one stage to release
type StageInput struct {
	ProcessType      string
	ProductID        string
	RequiredQuantity float64
	PlannedStart     *time.Time
	PlannedEnd       *time.Time
	LeaderID         string
	OperatorID       string
	QCAssigneeID     string
}

// StartStageCommand begins execution of a stage
type StartStageCommand struct {
	StageID string
	ActorID string
}

// PauseStageCommand suspends a running stage
type PauseStageCommand struct {
	StageID string
	ActorID string
	Reason  string
}

// ResumeStageCommand resumes a paused stage
type ResumeStageCommand struct {
	StageID string
	ActorID string
}

// UpdateProgressCommand records floor-reported progress
type UpdateProgressCommand struct {
	StageID string
	ActorID string
	Percent float64
}

// CompleteStageCommand finishes a QC-passed stage
type CompleteStageCommand struct {
	StageID        string
	ActorID        string
	OutputQuantity float64
}

// CancelStageCommand terminates a stage
type CancelStageCommand struct {
	StageID string
	ActorID string
	Reason  string
}

// StartReworkCommand begins a rework attempt
type StartReworkCommand struct {
	StageID string
	ActorID string
}

// GetStageQuery retrieves a single stage
type GetStageQuery struct {
	StageID string
}

// ListStagesQuery lists the stages of an order
type ListStagesQuery struct {
	OrderID string
}

// StartQCSessionCommand opens a QC inspection for a stage
type StartQCSessionCommand struct {
	StageID string
	ActorID string
}

// SubmitQCSessionCommand submits a QC verdict
type SubmitQCSessionCommand struct {
	SessionID     string
	ActorID       string
	OverallResult string
	Checkpoints   []CheckpointInput
	Notes         string

	// Severity and description are used when the verdict is FAIL
	DefectSeverity    string
	DefectDescription string
}

// CheckpointInput is one inspection criterion outcome
type CheckpointInput struct {
	Criterion string
	Passed    bool
	Note      string
}

// HandleDefectCommand routes a recorded defect
type HandleDefectCommand struct {
	StageID  string
	ActorID  string
	Decision string // REWORK, MATERIAL_REQUEST or ACCEPT
	Notes    string
	Quantity float64
}

// DecideRequisitionCommand approves or rejects a material requisition
type DecideRequisitionCommand struct {
	RequisitionID string
	ActorID       string
}

// SuggestMachinesQuery asks the scheduler for ranked candidates
type SuggestMachinesQuery struct {
	ProcessType      string
	ProductID        string
	RequiredQuantity float64
	WindowStart      time.Time
	WindowEnd        time.Time
}

// AutoAssignCommand commits a reservation for the top-ranked available
// candidate
type AutoAssignCommand struct {
	StageID     string
	ActorID     string
	WindowStart time.Time
	WindowEnd   time.Time
}

// CheckConflictsQuery lists conflicts for a stage's planned window
// without mutating state
type CheckConflictsQuery struct {
	StageID     string
	WindowStart time.Time
	WindowEnd   time.Time
}

// EstimateCapacityQuery runs the bottleneck calculator
type EstimateCapacityQuery struct {
	ProductID     string
	TotalWeightKg float64
	CutCount      float64
	SewCount      float64
	PackCount     float64
}

// ListMachinesQuery lists registry machines
type ListMachinesQuery struct {
	ProcessType string
	Page        int64
	PageSize    int64
}

// GetMachineQuery retrieves a single machine
type GetMachineQuery struct {
	MachineID string
}
