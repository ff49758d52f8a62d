package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by repositories when an entity id does not
// resolve
var ErrNotFound = errors.New("entity not found")

// StageRepository defines the interface for stage persistence.
// Save performs an optimistic-concurrency write: it fails with
// ErrVersionConflict when the stored version no longer matches the one
// the aggregate was loaded with.
type StageRepository interface {
	Save(ctx context.Context, stage *Stage) error
	FindByID(ctx context.Context, stageID string) (*Stage, error)
	FindByOrderID(ctx context.Context, orderID string) ([]*Stage, error)
	FindByExecStatus(ctx context.Context, status ExecStatus) ([]*Stage, error)
}

// MachineRepository defines the interface for machine registry access
type MachineRepository interface {
	Save(ctx context.Context, machine *Machine) error
	FindByID(ctx context.Context, machineID string) (*Machine, error)
	FindByType(ctx context.Context, processType ProcessType) ([]*Machine, error)
	FindAll(ctx context.Context, pagination Pagination) ([]*Machine, error)
}

// ReservationRepository defines the interface for the reservation
// ledger. Commit must enforce the no-overlap invariant at the storage
// layer: inserting a reservation that overlaps an existing ACTIVE
// reservation for the same machine fails with
// ErrOverlappingReservation, even under concurrent commits.
type ReservationRepository interface {
	Commit(ctx context.Context, reservation *Reservation) error
	Release(ctx context.Context, reservationID, actorID string) error
	FindByID(ctx context.Context, reservationID string) (*Reservation, error)
	FindActiveByMachine(ctx context.Context, machineID string) ([]*Reservation, error)
	FindActiveByMachines(ctx context.Context, machineIDs []string) (map[string][]*Reservation, error)
	FindActiveByStage(ctx context.Context, stageID string) (*Reservation, error)
	FindAllActive(ctx context.Context) ([]*Reservation, error)
}

// QCSessionRepository defines the interface for QC session persistence.
// Create must reject a second in-progress session for the same stage
// with ErrSessionAlreadyOpen.
type QCSessionRepository interface {
	Create(ctx context.Context, session *QCSession) error
	Save(ctx context.Context, session *QCSession) error
	FindByID(ctx context.Context, sessionID string) (*QCSession, error)
	FindInProgressByStage(ctx context.Context, stageID string) (*QCSession, error)
	FindByStage(ctx context.Context, stageID string) ([]*QCSession, error)
}

// QualityIssueRepository defines the interface for quality issue
// persistence
type QualityIssueRepository interface {
	Save(ctx context.Context, issue *QualityIssue) error
	FindByID(ctx context.Context, issueID string) (*QualityIssue, error)
	FindOpenByStage(ctx context.Context, stageID string) (*QualityIssue, error)
	FindByStage(ctx context.Context, stageID string) ([]*QualityIssue, error)
}

// RequisitionRepository defines the interface for material requisition
// persistence
type RequisitionRepository interface {
	Save(ctx context.Context, requisition *MaterialRequisition) error
	FindByID(ctx context.Context, requisitionID string) (*MaterialRequisition, error)
	FindPending(ctx context.Context, pagination Pagination) ([]*MaterialRequisition, error)
}

// Pagination represents pagination options
type Pagination struct {
	Page     int64
	PageSize int64
}

// DefaultPagination returns default pagination options
func DefaultPagination() Pagination {
	return Pagination{
		Page:     1,
		PageSize: 20,
	}
}

// Skip returns the number of documents to skip
func (p Pagination) Skip() int64 {
	return (p.Page - 1) * p.PageSize
}

// Limit returns the maximum number of documents to return
func (p Pagination) Limit() int64 {
	return p.PageSize
}

// UnitOfWork runs a function inside a single transaction. Every
// repository call made with the context passed to fn joins the
// transaction.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier dispatches notifications to the external notification
// collaborator. Dispatch is fire-and-forget: implementations must never
// return delivery failures to the caller, only log them.
type Notifier interface {
	Notify(ctx context.Context, recipient, kind, subjectID string, payload interface{}) error
}

// Notification template kinds
const (
	NotifyStageStarted       = "stage_started"
	NotifyStagePaused        = "stage_paused"
	NotifyStageResumed       = "stage_resumed"
	NotifyStageAwaitingQC    = "stage_awaiting_qc"
	NotifyStageCompleted     = "stage_completed"
	NotifyStageCanceled      = "stage_canceled"
	NotifyReworkRequested    = "rework_requested"
	NotifyQCFailed           = "qc_failed"
	NotifyMaterialRequested  = "material_requested"
	NotifyRequisitionDecided = "requisition_decided"
)

// EventPublisher broadcasts domain events collected on aggregates to
// the platform event bus. Publication happens after commit and is
// best-effort: implementations log failures and never return them.
type EventPublisher interface {
	PublishEvents(ctx context.Context, events ...DomainEvent) error
}

// RoleResolver checks actor capabilities against the external identity
// collaborator
type RoleResolver interface {
	HasCapability(ctx context.Context, actorID, capability string) (bool, error)
}

// Capabilities checked by the core
const (
	CapabilityProductionManager = "production_manager"
	CapabilityQCInspector       = "qc_inspector"
)

// OrderNotifier signals the external production order aggregate
type OrderNotifier interface {
	OrderCompleted(ctx context.Context, orderID string, completedAt time.Time) error
}
