package application

import (
	"github.com/mes-platform/production-service/internal/domain"
)

// ToStageDTO converts a domain Stage to a StageDTO
func ToStageDTO(stage *domain.Stage) *StageDTO {
	pauseLog := make([]PauseEntryDTO, 0, len(stage.PauseLog))
	for _, entry := range stage.PauseLog {
		pauseLog = append(pauseLog, PauseEntryDTO{
			PausedBy:  entry.PausedBy,
			PausedAt:  entry.PausedAt,
			Reason:    entry.Reason,
			ResumedBy: entry.ResumedBy,
			ResumedAt: entry.ResumedAt,
		})
	}

	return &StageDTO{
		StageID:           stage.StageID,
		OrderID:           stage.OrderID,
		Sequence:          stage.Sequence,
		ProcessType:       string(stage.ProcessType),
		ProductID:         stage.ProductID,
		Status:            string(stage.Status),
		ExecStatus:        string(stage.ExecStatus),
		ProgressPct:       stage.ProgressPct,
		RequiredQuantity:  stage.RequiredQuantity,
		OutputQuantity:    stage.OutputQuantity,
		PlannedStart:      stage.PlannedStart,
		PlannedEnd:        stage.PlannedEnd,
		ActualStart:       stage.ActualStart,
		ActualEnd:         stage.ActualEnd,
		MachineID:         stage.MachineID,
		LeaderID:          stage.LeaderID,
		OperatorID:        stage.OperatorID,
		QCAssigneeID:      stage.QCAssigneeID,
		IsRework:          stage.IsRework,
		DefectSeverity:    string(stage.DefectSeverity),
		DefectDescription: stage.DefectDescription,
		PauseLog:          pauseLog,
		Version:           stage.Version,
		CreatedAt:         stage.Audit.CreatedAt,
		UpdatedAt:         stage.Audit.UpdatedAt,
	}
}

// ToStageDTOs converts a slice of stages
func ToStageDTOs(stages []*domain.Stage) []StageDTO {
	dtos := make([]StageDTO, 0, len(stages))
	for _, stage := range stages {
		dtos = append(dtos, *ToStageDTO(stage))
	}
	return dtos
}

// ToMachineDTO converts a domain Machine to a MachineDTO
func ToMachineDTO(machine *domain.Machine) *MachineDTO {
	return &MachineDTO{
		MachineID:    machine.MachineID,
		Name:         machine.Name,
		Type:         string(machine.Type),
		Status:       string(machine.Status),
		CapacitySpec: machine.CapacitySpec,
	}
}

// ToReservationDTO converts a domain Reservation to a ReservationDTO
func ToReservationDTO(reservation *domain.Reservation) *ReservationDTO {
	return &ReservationDTO{
		ReservationID: reservation.ReservationID,
		MachineID:     reservation.MachineID,
		StageID:       reservation.StageID,
		Type:          string(reservation.Type),
		Status:        string(reservation.Status),
		WindowStart:   reservation.WindowStart,
		WindowEnd:     reservation.WindowEnd,
		AssignedAt:    reservation.AssignedAt,
		ReleasedAt:    reservation.ReleasedAt,
	}
}

// ToQCSessionDTO converts a domain QCSession to a QCSessionDTO
func ToQCSessionDTO(session *domain.QCSession) *QCSessionDTO {
	checkpoints := make([]CheckpointDTO, 0, len(session.Checkpoints))
	for _, c := range session.Checkpoints {
		checkpoints = append(checkpoints, CheckpointDTO{
			Criterion: c.Criterion,
			Passed:    c.Passed,
			Note:      c.Note,
		})
	}

	return &QCSessionDTO{
		SessionID:     session.SessionID,
		StageID:       session.StageID,
		InspectorID:   session.InspectorID,
		Status:        string(session.Status),
		OverallResult: string(session.OverallResult),
		Checkpoints:   checkpoints,
		Notes:         session.Notes,
		SubmittedAt:   session.SubmittedAt,
	}
}

// ToQualityIssueDTO converts a domain QualityIssue to a QualityIssueDTO
func ToQualityIssueDTO(issue *domain.QualityIssue) *QualityIssueDTO {
	return &QualityIssueDTO{
		IssueID:     issue.IssueID,
		StageID:     issue.StageID,
		SessionID:   issue.SessionID,
		Severity:    string(issue.Severity),
		Kind:        string(issue.Kind),
		Status:      string(issue.Status),
		Description: issue.Description,
		ProcessedBy: issue.ProcessedBy,
		ProcessedAt: issue.ProcessedAt,
	}
}

// ToRequisitionDTO converts a domain MaterialRequisition to a
// RequisitionDTO
func ToRequisitionDTO(requisition *domain.MaterialRequisition) *RequisitionDTO {
	return &RequisitionDTO{
		RequisitionID: requisition.RequisitionID,
		IssueID:       requisition.IssueID,
		StageID:       requisition.StageID,
		Quantity:      requisition.Quantity,
		Status:        string(requisition.Status),
		Notes:         requisition.Notes,
		RequestedBy:   requisition.RequestedBy,
		DecidedBy:     requisition.DecidedBy,
		DecidedAt:     requisition.DecidedAt,
	}
}

// ToSuggestionDTOs converts scheduler suggestions
func ToSuggestionDTOs(suggestions []domain.Suggestion) []SuggestionDTO {
	dtos := make([]SuggestionDTO, 0, len(suggestions))
	for _, s := range suggestions {
		dtos = append(dtos, SuggestionDTO{
			MachineID:              s.MachineID,
			MachineName:            s.MachineName,
			ProcessType:            string(s.ProcessType),
			Virtual:                s.Virtual,
			CapacityPerHour:        s.CapacityPerHour.String(),
			EstimatedDurationHours: s.EstimatedDurationHours.String(),
			Available:              s.Available,
			Conflicts:              s.Conflicts,
		})
	}
	return dtos
}

// ToCapacityEstimateDTO converts a capacity estimate
func ToCapacityEstimateDTO(estimate domain.CapacityEstimate) *CapacityEstimateDTO {
	perProcess := make([]ProcessDaysDTO, 0, len(estimate.PerProcess))
	for _, p := range estimate.PerProcess {
		perProcess = append(perProcess, ProcessDaysDTO{
			ProcessType: string(p.ProcessType),
			Days:        p.Days.String(),
		})
	}

	return &CapacityEstimateDTO{
		PerProcess: perProcess,
		Bottleneck: string(estimate.Bottleneck),
		TotalDays:  estimate.TotalDays.String(),
	}
}
