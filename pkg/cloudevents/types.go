package cloudevents

import (
	"time"
)

// EventType constants for MES domain events
const (
	// Stage lifecycle events
	StageReleased        = "mes.stage.released"
	StageStarted         = "mes.stage.started"
	StagePaused          = "mes.stage.paused"
	StageResumed         = "mes.stage.resumed"
	StageProgressUpdated = "mes.stage.progress-updated"
	StageAwaitingQC      = "mes.stage.awaiting-qc"
	StageCompleted       = "mes.stage.completed"
	StageCanceled        = "mes.stage.canceled"
	ReworkStarted        = "mes.stage.rework-started"

	// Quality control events
	QCSessionStarted   = "mes.qc.session-started"
	QCSessionSubmitted = "mes.qc.session-submitted"
	QualityIssueRaised = "mes.qc.issue-raised"

	// Material escalation events
	RequisitionCreated = "mes.material.requisition-created"
	RequisitionDecided = "mes.material.requisition-decided"

	// Scheduling events
	MachineReserved = "mes.machine.reserved"
	MachineReleased = "mes.machine.released"

	// Order events
	OrderCompleted = "mes.order.completed"

	// Notification delivery requests for the external notification service
	NotificationRequested = "mes.notification.requested"
)

// MESCloudEvent represents a CloudEvents v1.0 compliant event for the MES platform
type MESCloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`

	// MES-specific extensions
	CorrelationID string `json:"mescorrelationid,omitempty"`
	OrderID       string `json:"mesorderid,omitempty"`
	StageID       string `json:"messtageid,omitempty"`
}

// NotificationData is the payload for NotificationRequested events
type NotificationData struct {
	Recipient string      `json:"recipient"`
	Kind      string      `json:"kind"`
	SubjectID string      `json:"subjectId"`
	Payload   interface{} `json:"payload,omitempty"`
}

// OrderCompletedData is the payload for OrderCompleted events
type OrderCompletedData struct {
	OrderID     string    `json:"orderId"`
	CompletedAt time.Time `json:"completedAt"`
}

// StageTransitionData is the payload for stage lifecycle events
type StageTransitionData struct {
	StageID    string `json:"stageId"`
	OrderID    string `json:"orderId"`
	ActorID    string `json:"actorId,omitempty"`
	FromStatus string `json:"fromStatus,omitempty"`
	ToStatus   string `json:"toStatus"`
	Reason     string `json:"reason,omitempty"`
}

// MachineReservedData is the payload for MachineReserved events
type MachineReservedData struct {
	ReservationID string    `json:"reservationId"`
	MachineID     string    `json:"machineId"`
	StageID       string    `json:"stageId"`
	WindowStart   time.Time `json:"windowStart"`
	WindowEnd     time.Time `json:"windowEnd"`
}
