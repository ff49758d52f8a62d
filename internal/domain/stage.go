package domain

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Errors for the Stage aggregate
var (
	ErrPauseReasonRequired = errors.New("pause reason is required")
	ErrInvalidProgress     = errors.New("progress percent must be between 0 and 100")
	ErrStageNotPaused      = errors.New("stage is not paused")
	ErrActorNotAssigned    = errors.New("actor is not assigned to this stage")
	ErrVersionConflict     = errors.New("stage was modified concurrently")
)

// TransitionError is returned when the state machine rejects a move
type TransitionError struct {
	StageID string
	From    ExecStatus
	To      ExecStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition for stage %s: %s -> %s", e.StageID, e.From, e.To)
}

// ProcessType represents a manufacturing process step
type ProcessType string

const (
	ProcessWarping   ProcessType = "WARPING"
	ProcessWeaving   ProcessType = "WEAVING"
	ProcessDyeing    ProcessType = "DYEING"
	ProcessCutting   ProcessType = "CUTTING"
	ProcessSewing    ProcessType = "SEWING"
	ProcessPackaging ProcessType = "PACKAGING"
)

// AllProcessTypes lists process types in production sequence order.
// The order is load-bearing: the capacity estimator breaks bottleneck
// ties by this declaration order.
var AllProcessTypes = []ProcessType{
	ProcessWarping,
	ProcessWeaving,
	ProcessDyeing,
	ProcessCutting,
	ProcessSewing,
	ProcessPackaging,
}

// IsValid checks if the process type is valid
func (p ProcessType) IsValid() bool {
	switch p {
	case ProcessWarping, ProcessWeaving, ProcessDyeing, ProcessCutting, ProcessSewing, ProcessPackaging:
		return true
	default:
		return false
	}
}

// IsVirtual returns true for process types that never bind a machine:
// dyeing is outsourced to a vendor and packaging is manual work.
func (p ProcessType) IsVirtual() bool {
	return p == ProcessDyeing || p == ProcessPackaging
}

// Status represents the coarse lifecycle status of a stage
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCanceled   Status = "canceled"
)

// ExecStatus represents the fine-grained execution phase of a stage
type ExecStatus string

const (
	ExecWaiting                 ExecStatus = "waiting"
	ExecInProgress              ExecStatus = "in_progress"
	ExecPaused                  ExecStatus = "paused"
	ExecWaitingQC               ExecStatus = "waiting_qc"
	ExecQCInProgress            ExecStatus = "qc_in_progress"
	ExecQCPassed                ExecStatus = "qc_passed"
	ExecQCFailed                ExecStatus = "qc_failed"
	ExecWaitingRework           ExecStatus = "waiting_rework"
	ExecReworkInProgress        ExecStatus = "rework_in_progress"
	ExecWaitingMaterialApproval ExecStatus = "waiting_material_approval"
	ExecCompleted               ExecStatus = "completed"
	ExecCanceled                ExecStatus = "canceled"
)

// IsTerminal returns true for terminal execution statuses
func (s ExecStatus) IsTerminal() bool {
	return s == ExecCompleted || s == ExecCanceled
}

// LifecycleStatus derives the coarse lifecycle status from the execution
// phase. Keeping the derivation in one place makes the consistency
// invariant hold by construction.
func (s ExecStatus) LifecycleStatus() Status {
	switch s {
	case ExecWaiting:
		return StatusPending
	case ExecCompleted:
		return StatusCompleted
	case ExecCanceled:
		return StatusCanceled
	default:
		return StatusInProgress
	}
}

// stageTransitions defines the legal execution status graph. CANCELED is
// reachable from every non-terminal state and handled separately.
var stageTransitions = map[ExecStatus][]ExecStatus{
	ExecWaiting:                 {ExecInProgress},
	ExecInProgress:              {ExecPaused, ExecWaitingQC},
	ExecPaused:                  {ExecInProgress, ExecReworkInProgress},
	ExecWaitingQC:               {ExecQCInProgress},
	ExecQCInProgress:            {ExecQCPassed, ExecQCFailed},
	ExecQCPassed:                {ExecCompleted},
	ExecQCFailed:                {ExecWaitingRework},
	ExecWaitingRework:           {ExecReworkInProgress, ExecQCPassed, ExecWaitingMaterialApproval},
	ExecReworkInProgress:        {ExecPaused, ExecWaitingQC, ExecWaitingMaterialApproval},
	ExecWaitingMaterialApproval: {ExecReworkInProgress},
	ExecCompleted:               {},
	ExecCanceled:                {},
}

// CanTransition reports whether moving from one execution status to
// another is legal
func CanTransition(from, to ExecStatus) bool {
	if to == ExecCanceled {
		return !from.IsTerminal()
	}
	for _, allowed := range stageTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// DefectSeverity classifies a recorded defect
type DefectSeverity string

const (
	SeverityMinor DefectSeverity = "MINOR"
	SeverityMajor DefectSeverity = "MAJOR"
)

// IsValid checks if the severity is valid
func (s DefectSeverity) IsValid() bool {
	return s == SeverityMinor || s == SeverityMajor
}

// AuditInfo holds common audit fields embedded in each entity
type AuditInfo struct {
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	CreatedBy string    `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
	UpdatedBy string    `bson:"updatedBy,omitempty" json:"updatedBy,omitempty"`
}

// Touch updates the audit fields for a mutation by the given actor
func (a *AuditInfo) Touch(actorID string) {
	a.UpdatedAt = time.Now().UTC()
	a.UpdatedBy = actorID
}

// PauseEntry records one pause/resume cycle for audit
type PauseEntry struct {
	PausedBy   string     `bson:"pausedBy" json:"pausedBy"`
	PausedAt   time.Time  `bson:"pausedAt" json:"pausedAt"`
	Reason     string     `bson:"reason" json:"reason"`
	PausedFrom ExecStatus `bson:"pausedFrom" json:"pausedFrom"`
	ResumedBy  string     `bson:"resumedBy,omitempty" json:"resumedBy,omitempty"`
	ResumedAt  *time.Time `bson:"resumedAt,omitempty" json:"resumedAt,omitempty"`
}

// Stage is the aggregate root for one process step of a production order
type Stage struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	StageID     string             `bson:"stageId" json:"stageId"`
	OrderID     string             `bson:"orderId" json:"orderId"`
	Sequence    int                `bson:"sequence" json:"sequence"`
	ProcessType ProcessType        `bson:"processType" json:"processType"`
	ProductID   string             `bson:"productId,omitempty" json:"productId,omitempty"`

	Status      Status     `bson:"status" json:"status"`
	ExecStatus  ExecStatus `bson:"execStatus" json:"execStatus"`
	ProgressPct float64    `bson:"progressPct" json:"progressPct"`

	RequiredQuantity float64 `bson:"requiredQuantity" json:"requiredQuantity"`
	OutputQuantity   float64 `bson:"outputQuantity" json:"outputQuantity"`

	PlannedStart *time.Time `bson:"plannedStart,omitempty" json:"plannedStart,omitempty"`
	PlannedEnd   *time.Time `bson:"plannedEnd,omitempty" json:"plannedEnd,omitempty"`
	ActualStart  *time.Time `bson:"actualStart,omitempty" json:"actualStart,omitempty"`
	ActualEnd    *time.Time `bson:"actualEnd,omitempty" json:"actualEnd,omitempty"`

	MachineID    string `bson:"machineId,omitempty" json:"machineId,omitempty"`
	LeaderID     string `bson:"leaderId,omitempty" json:"leaderId,omitempty"`
	OperatorID   string `bson:"operatorId,omitempty" json:"operatorId,omitempty"`
	QCAssigneeID string `bson:"qcAssigneeId,omitempty" json:"qcAssigneeId,omitempty"`

	IsRework          bool           `bson:"isRework" json:"isRework"`
	DefectSeverity    DefectSeverity `bson:"defectSeverity,omitempty" json:"defectSeverity,omitempty"`
	DefectDescription string         `bson:"defectDescription,omitempty" json:"defectDescription,omitempty"`

	PauseLog     []PauseEntry `bson:"pauseLog,omitempty" json:"pauseLog,omitempty"`
	CancelReason string       `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`

	Audit   AuditInfo `bson:"audit" json:"audit"`
	Version int64     `bson:"version" json:"version"`

	// Domain events - transient, not persisted
	domainEvents []DomainEvent `bson:"-" json:"-"`
}

// NewStage creates a new Stage in WAITING state
func NewStage(stageID, orderID string, sequence int, processType ProcessType, productID string, requiredQuantity float64) (*Stage, error) {
	if !processType.IsValid() {
		return nil, fmt.Errorf("invalid process type: %s", processType)
	}

	now := time.Now().UTC()
	stage := &Stage{
		ID:               primitive.NewObjectID(),
		StageID:          stageID,
		OrderID:          orderID,
		Sequence:         sequence,
		ProcessType:      processType,
		ProductID:        productID,
		RequiredQuantity: requiredQuantity,
		Status:           StatusPending,
		ExecStatus:       ExecWaiting,
		Audit: AuditInfo{
			CreatedAt: now,
			UpdatedAt: now,
		},
		domainEvents: make([]DomainEvent, 0),
	}

	return stage, nil
}

// transitionTo applies a validated execution status move and keeps the
// lifecycle status in sync
func (s *Stage) transitionTo(to ExecStatus, actorID string) error {
	if !CanTransition(s.ExecStatus, to) {
		return &TransitionError{StageID: s.StageID, From: s.ExecStatus, To: to}
	}
	from := s.ExecStatus
	s.ExecStatus = to
	s.Status = to.LifecycleStatus()
	s.Audit.Touch(actorID)
	s.addDomainEvent(NewStageTransitionedEvent(s, from, to, actorID))
	return nil
}

// Start begins execution. Allowed from WAITING, or from WAITING_REWORK
// for a rework attempt.
func (s *Stage) Start(actorID string) error {
	if s.ExecStatus == ExecWaitingRework {
		return s.StartRework(actorID)
	}

	if err := s.transitionTo(ExecInProgress, actorID); err != nil {
		return err
	}

	if s.ActualStart == nil {
		now := time.Now().UTC()
		s.ActualStart = &now
	}
	return nil
}

// StartRework begins a rework attempt on the same stage. The stage row is
// reused so reservation and QC history stay attached to one identity.
func (s *Stage) StartRework(actorID string) error {
	if err := s.transitionTo(ExecReworkInProgress, actorID); err != nil {
		return err
	}
	s.IsRework = true
	return nil
}

// Pause suspends execution, recording who paused, when and why
func (s *Stage) Pause(actorID, reason string) error {
	if reason == "" {
		return ErrPauseReasonRequired
	}
	if s.ExecStatus != ExecInProgress && s.ExecStatus != ExecReworkInProgress {
		return &TransitionError{StageID: s.StageID, From: s.ExecStatus, To: ExecPaused}
	}

	pausedFrom := s.ExecStatus
	if err := s.transitionTo(ExecPaused, actorID); err != nil {
		return err
	}

	s.PauseLog = append(s.PauseLog, PauseEntry{
		PausedBy:   actorID,
		PausedAt:   time.Now().UTC(),
		Reason:     reason,
		PausedFrom: pausedFrom,
	})
	return nil
}

// Resume restores the phase the stage was in before pausing
func (s *Stage) Resume(actorID string) error {
	if s.ExecStatus != ExecPaused {
		return ErrStageNotPaused
	}
	if len(s.PauseLog) == 0 {
		return ErrStageNotPaused
	}

	entry := &s.PauseLog[len(s.PauseLog)-1]
	if err := s.transitionTo(entry.PausedFrom, actorID); err != nil {
		return err
	}

	now := time.Now().UTC()
	entry.ResumedBy = actorID
	entry.ResumedAt = &now
	return nil
}

// UpdateProgress records floor-reported progress. Decreases are allowed
// (floor corrections); reaching 100 hands the stage over to QC.
func (s *Stage) UpdateProgress(actorID string, percent float64) error {
	if percent < 0 || percent > 100 {
		return ErrInvalidProgress
	}
	if s.ExecStatus != ExecInProgress && s.ExecStatus != ExecReworkInProgress {
		return &TransitionError{StageID: s.StageID, From: s.ExecStatus, To: s.ExecStatus}
	}

	s.ProgressPct = percent
	s.Audit.Touch(actorID)

	if percent == 100 {
		return s.transitionTo(ExecWaitingQC, actorID)
	}
	return nil
}

// BeginQC moves the stage into QC inspection
func (s *Stage) BeginQC(actorID string) error {
	return s.transitionTo(ExecQCInProgress, actorID)
}

// PassQC records a passing QC verdict
func (s *Stage) PassQC(actorID string) error {
	return s.transitionTo(ExecQCPassed, actorID)
}

// FailQC records a failing QC verdict and queues the stage for rework.
// Both edges (QC_IN_PROGRESS -> QC_FAILED -> WAITING_REWORK) are applied
// in one call so a failed stage never rests in QC_FAILED.
func (s *Stage) FailQC(actorID string, severity DefectSeverity, description string) error {
	if !severity.IsValid() {
		return fmt.Errorf("invalid defect severity: %s", severity)
	}
	if err := s.transitionTo(ExecQCFailed, actorID); err != nil {
		return err
	}
	if err := s.transitionTo(ExecWaitingRework, actorID); err != nil {
		return err
	}
	s.DefectSeverity = severity
	s.DefectDescription = description
	return nil
}

// AcceptDefect tolerates the recorded defect and treats the stage output
// as passed
func (s *Stage) AcceptDefect(actorID string) error {
	if s.ExecStatus != ExecWaitingRework {
		return &TransitionError{StageID: s.StageID, From: s.ExecStatus, To: ExecQCPassed}
	}
	return s.transitionTo(ExecQCPassed, actorID)
}

// EnterMaterialHold blocks the stage on a pending material requisition
func (s *Stage) EnterMaterialHold(actorID string) error {
	return s.transitionTo(ExecWaitingMaterialApproval, actorID)
}

// ClearMaterialHold releases the material hold back into rework.
// Requisition approval is the only path here.
func (s *Stage) ClearMaterialHold(actorID string) error {
	if s.ExecStatus != ExecWaitingMaterialApproval {
		return &TransitionError{StageID: s.StageID, From: s.ExecStatus, To: ExecReworkInProgress}
	}
	return s.transitionTo(ExecReworkInProgress, actorID)
}

// Complete finishes the stage after QC passed, recording the final output
// quantity
func (s *Stage) Complete(actorID string, outputQuantity float64) error {
	if err := s.transitionTo(ExecCompleted, actorID); err != nil {
		return err
	}

	now := time.Now().UTC()
	s.ActualEnd = &now
	s.OutputQuantity = outputQuantity
	s.ProgressPct = 100
	return nil
}

// Cancel terminates the stage from any non-terminal state
func (s *Stage) Cancel(actorID, reason string) error {
	if err := s.transitionTo(ExecCanceled, actorID); err != nil {
		return err
	}
	s.CancelReason = reason
	return nil
}

// AssignMachine binds a machine to the stage
func (s *Stage) AssignMachine(machineID, actorID string) {
	s.MachineID = machineID
	s.Audit.Touch(actorID)
}

// AssignRoles sets the assigned leader, operator and QC inspector
func (s *Stage) AssignRoles(leaderID, operatorID, qcAssigneeID string) {
	if leaderID != "" {
		s.LeaderID = leaderID
	}
	if operatorID != "" {
		s.OperatorID = operatorID
	}
	if qcAssigneeID != "" {
		s.QCAssigneeID = qcAssigneeID
	}
}

// RequireLeader checks that the actor is the assigned leader
func (s *Stage) RequireLeader(actorID string) error {
	if s.LeaderID != "" && s.LeaderID != actorID {
		return ErrActorNotAssigned
	}
	return nil
}

// IsTerminal returns true if the stage reached a terminal state
func (s *Stage) IsTerminal() bool {
	return s.ExecStatus.IsTerminal()
}

// addDomainEvent adds a domain event to the stage
func (s *Stage) addDomainEvent(event DomainEvent) {
	s.domainEvents = append(s.domainEvents, event)
}

// DomainEvents returns all pending domain events
func (s *Stage) DomainEvents() []DomainEvent {
	return s.domainEvents
}

// ClearDomainEvents clears all pending domain events
func (s *Stage) ClearDomainEvents() {
	s.domainEvents = make([]DomainEvent, 0)
}
