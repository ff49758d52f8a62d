package domain

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent represents a domain event
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
	AggregateID() string
}

// BaseDomainEvent contains common event fields
type BaseDomainEvent struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	AggregateId string    `json:"aggregateId"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e BaseDomainEvent) EventType() string     { return e.Type }
func (e BaseDomainEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseDomainEvent) AggregateID() string   { return e.AggregateId }

func newBaseEvent(eventType, aggregateID string) BaseDomainEvent {
	return BaseDomainEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		AggregateId: aggregateID,
		Timestamp:   time.Now().UTC(),
	}
}

// StageTransitionedEvent is raised for every execution status move
type StageTransitionedEvent struct {
	BaseDomainEvent
	StageID string     `json:"stageId"`
	OrderID string     `json:"orderId"`
	From    ExecStatus `json:"from"`
	To      ExecStatus `json:"to"`
	ActorID string     `json:"actorId,omitempty"`
}

// NewStageTransitionedEvent creates a new StageTransitionedEvent
func NewStageTransitionedEvent(stage *Stage, from, to ExecStatus, actorID string) *StageTransitionedEvent {
	return &StageTransitionedEvent{
		BaseDomainEvent: newBaseEvent("mes.stage.transitioned", stage.StageID),
		StageID:         stage.StageID,
		OrderID:         stage.OrderID,
		From:            from,
		To:              to,
		ActorID:         actorID,
	}
}

// ReservationCommittedEvent is raised when a reservation is committed
type ReservationCommittedEvent struct {
	BaseDomainEvent
	ReservationID string    `json:"reservationId"`
	MachineID     string    `json:"machineId"`
	StageID       string    `json:"stageId"`
	WindowStart   time.Time `json:"windowStart"`
	WindowEnd     time.Time `json:"windowEnd"`
}

// NewReservationCommittedEvent creates a new ReservationCommittedEvent
func NewReservationCommittedEvent(reservation *Reservation) *ReservationCommittedEvent {
	return &ReservationCommittedEvent{
		BaseDomainEvent: newBaseEvent("mes.machine.reserved", reservation.ReservationID),
		ReservationID:   reservation.ReservationID,
		MachineID:       reservation.MachineID,
		StageID:         reservation.StageID,
		WindowStart:     reservation.WindowStart,
		WindowEnd:       reservation.WindowEnd,
	}
}

// QualityIssueRaisedEvent is raised when a QC failure records a defect
type QualityIssueRaisedEvent struct {
	BaseDomainEvent
	IssueID  string         `json:"issueId"`
	StageID  string         `json:"stageId"`
	Severity DefectSeverity `json:"severity"`
}

// NewQualityIssueRaisedEvent creates a new QualityIssueRaisedEvent
func NewQualityIssueRaisedEvent(issue *QualityIssue) *QualityIssueRaisedEvent {
	return &QualityIssueRaisedEvent{
		BaseDomainEvent: newBaseEvent("mes.qc.issue-raised", issue.IssueID),
		IssueID:         issue.IssueID,
		StageID:         issue.StageID,
		Severity:        issue.Severity,
	}
}
