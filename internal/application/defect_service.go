package application

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/mes-platform/production-service/internal/domain"
	"github.com/mes-platform/production-service/pkg/errors"
	"github.com/mes-platform/production-service/pkg/logging"
)

// DefectApplicationService routes recorded defects into rework,
// material escalation or acceptance
type DefectApplicationService struct {
	stageRepo       domain.StageRepository
	issueRepo       domain.QualityIssueRepository
	requisitionRepo domain.RequisitionRepository
	uow             domain.UnitOfWork
	notifier        domain.Notifier
	roles           domain.RoleResolver
	events          domain.EventPublisher
	logger          *logging.Logger
}

// NewDefectApplicationService creates a new DefectApplicationService
func NewDefectApplicationService(
	stageRepo domain.StageRepository,
	issueRepo domain.QualityIssueRepository,
	requisitionRepo domain.RequisitionRepository,
	uow domain.UnitOfWork,
	notifier domain.Notifier,
	roles domain.RoleResolver,
	events domain.EventPublisher,
	logger *logging.Logger,
) *DefectApplicationService {
	return &DefectApplicationService{
		stageRepo:       stageRepo,
		issueRepo:       issueRepo,
		requisitionRepo: requisitionRepo,
		uow:             uow,
		notifier:        notifier,
		roles:           roles,
		events:          events,
		logger:          logger,
	}
}

// HandleDefect processes the open quality issue of a stage.
// REWORK keeps the stage queued for a rework attempt. MATERIAL_REQUEST
// creates a pending requisition and puts the stage on material hold.
// ACCEPT tolerates the defect and treats the output as passed.
func (s *DefectApplicationService) HandleDefect(ctx context.Context, cmd HandleDefectCommand) (*DefectDecisionResponse, error) {
	var stage *domain.Stage
	var issue *domain.QualityIssue
	var requisition *domain.MaterialRequisition

	decision := strings.ToUpper(cmd.Decision)

	err := s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		stage, err = s.stageRepo.FindByID(txCtx, cmd.StageID)
		if err != nil {
			return err
		}
		issue, err = s.issueRepo.FindOpenByStage(txCtx, cmd.StageID)
		if err != nil {
			return err
		}

		switch decision {
		case "REWORK":
			if err := issue.Process(domain.IssueRework, cmd.ActorID); err != nil {
				return err
			}
			// The stage stays in WAITING_REWORK; the floor leader
			// starts the attempt explicitly.

		case "MATERIAL_REQUEST":
			if err := issue.Process(domain.IssueMaterialRequest, cmd.ActorID); err != nil {
				return err
			}
			if err := stage.EnterMaterialHold(cmd.ActorID); err != nil {
				return err
			}
			requisition = domain.NewMaterialRequisition(
				"MR-"+uuid.New().String()[:8],
				issue.IssueID, stage.StageID,
				cmd.Quantity, cmd.Notes, cmd.ActorID,
			)
			if err := s.requisitionRepo.Save(txCtx, requisition); err != nil {
				return err
			}

		case "ACCEPT":
			if err := issue.Process(domain.IssueAccepted, cmd.ActorID); err != nil {
				return err
			}
			if err := stage.AcceptDefect(cmd.ActorID); err != nil {
				return err
			}

		default:
			return errors.ErrValidation("decision must be one of: REWORK, MATERIAL_REQUEST, ACCEPT")
		}

		if err := s.issueRepo.Save(txCtx, issue); err != nil {
			return err
		}
		return s.stageRepo.Save(txCtx, stage)
	})
	if err != nil {
		return nil, toAppError(err, "quality issue")
	}

	flushEvents(ctx, s.events, stage)
	response := &DefectDecisionResponse{
		Stage: *ToStageDTO(stage),
		Issue: ToQualityIssueDTO(issue),
	}
	if requisition != nil {
		response.Requisition = ToRequisitionDTO(requisition)
		_ = s.notifier.Notify(ctx, domain.CapabilityProductionManager, domain.NotifyMaterialRequested, requisition.RequisitionID, response.Requisition)
	}

	s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "quality.defect-handled",
		EntityType: "quality_issue",
		EntityID:   issue.IssueID,
		Action:     strings.ToLower(decision),
		ActorID:    cmd.ActorID,
		RelatedIDs: map[string]string{"stageId": stage.StageID},
	})

	return response, nil
}

// ApproveRequisition grants a pending material requisition and clears
// the stage's material hold. The approver must hold the
// production-manager capability.
func (s *DefectApplicationService) ApproveRequisition(ctx context.Context, cmd DecideRequisitionCommand) (*DefectDecisionResponse, error) {
	if err := s.requireManager(ctx, cmd.ActorID); err != nil {
		return nil, err
	}

	var stage *domain.Stage
	var requisition *domain.MaterialRequisition

	err := s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		requisition, err = s.requisitionRepo.FindByID(txCtx, cmd.RequisitionID)
		if err != nil {
			return err
		}
		if err := requisition.Approve(cmd.ActorID); err != nil {
			return err
		}

		stage, err = s.stageRepo.FindByID(txCtx, requisition.StageID)
		if err != nil {
			return err
		}
		if err := stage.ClearMaterialHold(cmd.ActorID); err != nil {
			return err
		}

		if err := s.requisitionRepo.Save(txCtx, requisition); err != nil {
			return err
		}
		return s.stageRepo.Save(txCtx, stage)
	})
	if err != nil {
		return nil, toAppError(err, "requisition")
	}

	flushEvents(ctx, s.events, stage)
	response := &DefectDecisionResponse{
		Stage:       *ToStageDTO(stage),
		Requisition: ToRequisitionDTO(requisition),
	}
	_ = s.notifier.Notify(ctx, requisition.RequestedBy, domain.NotifyRequisitionDecided, requisition.RequisitionID, response.Requisition)

	s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "material.requisition-approved",
		EntityType: "requisition",
		EntityID:   requisition.RequisitionID,
		Action:     "approved",
		ActorID:    cmd.ActorID,
		RelatedIDs: map[string]string{"stageId": requisition.StageID},
	})

	return response, nil
}

// RejectRequisition denies a pending material requisition. The stage
// stays on material hold: only an approval clears it.
func (s *DefectApplicationService) RejectRequisition(ctx context.Context, cmd DecideRequisitionCommand) (*RequisitionDTO, error) {
	if err := s.requireManager(ctx, cmd.ActorID); err != nil {
		return nil, err
	}

	var requisition *domain.MaterialRequisition

	err := s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		requisition, err = s.requisitionRepo.FindByID(txCtx, cmd.RequisitionID)
		if err != nil {
			return err
		}
		if err := requisition.Reject(cmd.ActorID); err != nil {
			return err
		}
		return s.requisitionRepo.Save(txCtx, requisition)
	})
	if err != nil {
		return nil, toAppError(err, "requisition")
	}

	dto := ToRequisitionDTO(requisition)
	_ = s.notifier.Notify(ctx, requisition.RequestedBy, domain.NotifyRequisitionDecided, requisition.RequisitionID, dto)
	return dto, nil
}

// ListPendingRequisitions lists requisitions awaiting a decision
func (s *DefectApplicationService) ListPendingRequisitions(ctx context.Context, pagination domain.Pagination) ([]RequisitionDTO, error) {
	requisitions, err := s.requisitionRepo.FindPending(ctx, pagination)
	if err != nil {
		return nil, toAppError(err, "requisition")
	}

	dtos := make([]RequisitionDTO, 0, len(requisitions))
	for _, requisition := range requisitions {
		dtos = append(dtos, *ToRequisitionDTO(requisition))
	}
	return dtos, nil
}

func (s *DefectApplicationService) requireManager(ctx context.Context, actorID string) error {
	ok, err := s.roles.HasCapability(ctx, actorID, domain.CapabilityProductionManager)
	if err != nil {
		s.logger.WithError(err).Error("Failed to resolve actor capabilities", "actorId", actorID)
		return errors.ErrInternal("could not resolve actor capabilities").Wrap(err)
	}
	if !ok {
		return errors.ErrForbidden("production manager capability required")
	}
	return nil
}
