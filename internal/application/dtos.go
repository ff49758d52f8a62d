package application

import "time"

// StageDTO represents a stage in application layer responses
type StageDTO struct {
	StageID     string  `json:"stageId"`
	OrderID     string  `json:"orderId"`
	Sequence    int     `json:"sequence"`
	ProcessType string  `json:"processType"`
	ProductID   string  `json:"productId,omitempty"`
	Status      string  `json:"status"`
	ExecStatus  string  `json:"execStatus"`
	ProgressPct float64 `json:"progressPct"`

	RequiredQuantity float64 `json:"requiredQuantity"`
	OutputQuantity   float64 `json:"outputQuantity"`

	PlannedStart *time.Time `json:"plannedStart,omitempty"`
	PlannedEnd   *time.Time `json:"plannedEnd,omitempty"`
	ActualStart  *time.Time `json:"actualStart,omitempty"`
	ActualEnd    *time.Time `json:"actualEnd,omitempty"`

	MachineID    string `json:"machineId,omitempty"`
	LeaderID     string `json:"leaderId,omitempty"`
	OperatorID   string `json:"operatorId,omitempty"`
	QCAssigneeID string `json:"qcAssigneeId,omitempty"`

	IsRework          bool   `json:"isRework"`
	DefectSeverity    string `json:"defectSeverity,omitempty"`
	DefectDescription string `json:"defectDescription,omitempty"`

	PauseLog []PauseEntryDTO `json:"pauseLog,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PauseEntryDTO represents one pause/resume cycle in responses
type PauseEntryDTO struct {
	PausedBy  string     `json:"pausedBy"`
	PausedAt  time.Time  `json:"pausedAt"`
	Reason    string     `json:"reason"`
	ResumedBy string     `json:"resumedBy,omitempty"`
	ResumedAt *time.Time `json:"resumedAt,omitempty"`
}

// MachineDTO represents a machine in responses
type MachineDTO struct {
	MachineID    string            `json:"machineId"`
	Name         string            `json:"name"`
	Type         string            `json:"type"`
	Status       string            `json:"status"`
	CapacitySpec map[string]string `json:"capacitySpec,omitempty"`
}

// ReservationDTO represents a reservation in responses
type ReservationDTO struct {
	ReservationID string     `json:"reservationId"`
	MachineID     string     `json:"machineId"`
	StageID       string     `json:"stageId,omitempty"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	WindowStart   time.Time  `json:"windowStart"`
	WindowEnd     time.Time  `json:"windowEnd"`
	AssignedAt    time.Time  `json:"assignedAt"`
	ReleasedAt    *time.Time `json:"releasedAt,omitempty"`
}

// QCSessionDTO represents a QC session in responses
type QCSessionDTO struct {
	SessionID     string          `json:"sessionId"`
	StageID       string          `json:"stageId"`
	InspectorID   string          `json:"inspectorId"`
	Status        string          `json:"status"`
	OverallResult string          `json:"overallResult,omitempty"`
	Checkpoints   []CheckpointDTO `json:"checkpoints,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	SubmittedAt   *time.Time      `json:"submittedAt,omitempty"`
}

// CheckpointDTO is one inspection criterion outcome in responses
type CheckpointDTO struct {
	Criterion string `json:"criterion"`
	Passed    bool   `json:"passed"`
	Note      string `json:"note,omitempty"`
}

// QualityIssueDTO represents a quality issue in responses
type QualityIssueDTO struct {
	IssueID     string     `json:"issueId"`
	StageID     string     `json:"stageId"`
	SessionID   string     `json:"sessionId,omitempty"`
	Severity    string     `json:"severity"`
	Kind        string     `json:"kind,omitempty"`
	Status      string     `json:"status"`
	Description string     `json:"description,omitempty"`
	ProcessedBy string     `json:"processedBy,omitempty"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
}

// RequisitionDTO represents a material requisition in responses
type RequisitionDTO struct {
	RequisitionID string     `json:"requisitionId"`
	IssueID       string     `json:"issueId"`
	StageID       string     `json:"stageId"`
	Quantity      float64    `json:"quantity"`
	Status        string     `json:"status"`
	Notes         string     `json:"notes,omitempty"`
	RequestedBy   string     `json:"requestedBy"`
	DecidedBy     string     `json:"decidedBy,omitempty"`
	DecidedAt     *time.Time `json:"decidedAt,omitempty"`
}

// SuggestionDTO is one ranked scheduling candidate in responses
type SuggestionDTO struct {
	MachineID              string   `json:"machineId,omitempty"`
	MachineName            string   `json:"machineName,omitempty"`
	ProcessType            string   `json:"processType"`
	Virtual                bool     `json:"virtual"`
	CapacityPerHour        string   `json:"capacityPerHour"`
	EstimatedDurationHours string   `json:"estimatedDurationHours"`
	Available              bool     `json:"available"`
	Conflicts              []string `json:"conflicts,omitempty"`
}

// AutoAssignResponse is the result of committing a reservation
type AutoAssignResponse struct {
	Stage       StageDTO       `json:"stage"`
	Reservation ReservationDTO `json:"reservation"`
}

// QCSubmitResponse is the result of submitting a QC session
type QCSubmitResponse struct {
	Session QCSessionDTO     `json:"session"`
	Stage   StageDTO         `json:"stage"`
	Issue   *QualityIssueDTO `json:"issue,omitempty"`
}

// DefectDecisionResponse is the result of handling a defect
type DefectDecisionResponse struct {
	Stage       StageDTO         `json:"stage"`
	Issue       *QualityIssueDTO `json:"issue,omitempty"`
	Requisition *RequisitionDTO  `json:"requisition,omitempty"`
}

// CapacityEstimateDTO is the bottleneck calculator result in responses
type CapacityEstimateDTO struct {
	PerProcess []ProcessDaysDTO `json:"perProcess"`
	Bottleneck string           `json:"bottleneck"`
	TotalDays  string           `json:"totalDays"`
}

// ProcessDaysDTO is one per-process estimate in responses
type ProcessDaysDTO struct {
	ProcessType string `json:"processType"`
	Days        string `json:"days"`
}

// PagedMachinesResult represents a paginated machine list
type PagedMachinesResult struct {
	Data     []MachineDTO `json:"data"`
	Page     int64        `json:"page"`
	PageSize int64        `json:"pageSize"`
}
