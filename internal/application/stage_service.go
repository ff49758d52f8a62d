package application

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mes-platform/production-service/internal/domain"
	"github.com/mes-platform/production-service/pkg/errors"
	"github.com/mes-platform/production-service/pkg/logging"
	"github.com/mes-platform/production-service/pkg/metrics"
)

// StageApplicationService drives the stage execution state machine
type StageApplicationService struct {
	stageRepo       domain.StageRepository
	reservationRepo domain.ReservationRepository
	machineRepo     domain.MachineRepository
	uow             domain.UnitOfWork
	notifier        domain.Notifier
	orderNotifier   domain.OrderNotifier
	events          domain.EventPublisher
	logger          *logging.Logger
	metrics         *metrics.Metrics
}

// NewStageApplicationService creates a new StageApplicationService
func NewStageApplicationService(
	stageRepo domain.StageRepository,
	reservationRepo domain.ReservationRepository,
	machineRepo domain.MachineRepository,
	uow domain.UnitOfWork,
	notifier domain.Notifier,
	orderNotifier domain.OrderNotifier,
	events domain.EventPublisher,
	logger *logging.Logger,
	m *metrics.Metrics,
) *StageApplicationService {
	return &StageApplicationService{
		stageRepo:       stageRepo,
		reservationRepo: reservationRepo,
		machineRepo:     machineRepo,
		uow:             uow,
		notifier:        notifier,
		orderNotifier:   orderNotifier,
		events:          events,
		logger:          logger,
		metrics:         m,
	}
}

// ReleaseOrder batch-creates the stages of a production order in
// sequence order. Stages start in WAITING.
func (s *StageApplicationService) ReleaseOrder(ctx context.Context, cmd ReleaseOrderCommand) ([]StageDTO, error) {
	if len(cmd.Stages) == 0 {
		return nil, errors.ErrValidation("an order release needs at least one stage")
	}

	existing, err := s.stageRepo.FindByOrderID(ctx, cmd.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing stages: %w", err)
	}
	if len(existing) > 0 {
		return nil, errors.ErrConflict("order has already been released to the floor")
	}

	stages := make([]*domain.Stage, 0, len(cmd.Stages))
	for i, input := range cmd.Stages {
		stageID := "STG-" + uuid.New().String()[:8]
		stage, err := domain.NewStage(stageID, cmd.OrderID, i+1, domain.ProcessType(input.ProcessType), input.ProductID, input.RequiredQuantity)
		if err != nil {
			return nil, errors.ErrValidation(err.Error())
		}
		stage.PlannedStart = input.PlannedStart
		stage.PlannedEnd = input.PlannedEnd
		stage.AssignRoles(input.LeaderID, input.OperatorID, input.QCAssigneeID)
		stage.Audit.CreatedBy = cmd.ActorID
		stages = append(stages, stage)
	}

	err = s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		for _, stage := range stages {
			if err := s.stageRepo.Save(txCtx, stage); err != nil {
				return fmt.Errorf("failed to save stage %s: %w", stage.StageID, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.WithError(err).Error("Failed to release order", "orderId", cmd.OrderID)
		return nil, toAppError(err, "stage")
	}

	s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "stage.released",
		EntityType: "order",
		EntityID:   cmd.OrderID,
		Action:     "released",
		ActorID:    cmd.ActorID,
		RelatedIDs: map[string]string{"stageCount": fmt.Sprintf("%d", len(stages))},
	})

	return ToStageDTOs(stages), nil
}

// transition loads a stage, applies a domain mutation inside one
// transaction and saves it with an optimistic version check
func (s *StageApplicationService) transition(ctx context.Context, stageID string, mutate func(*domain.Stage) error) (*domain.Stage, error) {
	var stage *domain.Stage

	err := s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		stage, err = s.stageRepo.FindByID(txCtx, stageID)
		if err != nil {
			return err
		}

		from := stage.ExecStatus
		if err := mutate(stage); err != nil {
			return err
		}

		if err := s.stageRepo.Save(txCtx, stage); err != nil {
			return err
		}

		if from != stage.ExecStatus {
			s.metrics.RecordStageTransition(string(from), string(stage.ExecStatus))
		}
		return nil
	})
	if err != nil {
		return nil, toAppError(err, "stage")
	}

	flushEvents(ctx, s.events, stage)
	return stage, nil
}

// notify dispatches a best-effort notification; delivery failures are
// logged by the notifier and never surfaced here
func (s *StageApplicationService) notify(ctx context.Context, stage *domain.Stage, recipient, kind string) {
	if recipient == "" {
		recipient = stage.LeaderID
	}
	_ = s.notifier.Notify(ctx, recipient, kind, stage.StageID, ToStageDTO(stage))
}

// StartStage begins execution of a stage (or a rework attempt)
func (s *StageApplicationService) StartStage(ctx context.Context, cmd StartStageCommand) (*StageDTO, error) {
	stage, err := s.transition(ctx, cmd.StageID, func(stage *domain.Stage) error {
		if err := stage.RequireLeader(cmd.ActorID); err != nil {
			return err
		}
		return stage.Start(cmd.ActorID)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, stage, stage.OperatorID, domain.NotifyStageStarted)
	s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "stage.started",
		EntityType: "stage",
		EntityID:   stage.StageID,
		Action:     "started",
		ActorID:    cmd.ActorID,
		RelatedIDs: map[string]string{"orderId": stage.OrderID},
	})

	return ToStageDTO(stage), nil
}

// PauseStage suspends a running stage with a mandatory reason
func (s *StageApplicationService) PauseStage(ctx context.Context, cmd PauseStageCommand) (*StageDTO, error) {
	stage, err := s.transition(ctx, cmd.StageID, func(stage *domain.Stage) error {
		return stage.Pause(cmd.ActorID, cmd.Reason)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, stage, "", domain.NotifyStagePaused)
	s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "stage.paused",
		EntityType: "stage",
		EntityID:   stage.StageID,
		Action:     "paused",
		ActorID:    cmd.ActorID,
		RelatedIDs: map[string]string{"orderId": stage.OrderID, "reason": cmd.Reason},
	})

	return ToStageDTO(stage), nil
}

// ResumeStage resumes a paused stage into its prior active phase
func (s *StageApplicationService) ResumeStage(ctx context.Context, cmd ResumeStageCommand) (*StageDTO, error) {
	stage, err := s.transition(ctx, cmd.StageID, func(stage *domain.Stage) error {
		return stage.Resume(cmd.ActorID)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, stage, "", domain.NotifyStageResumed)
	return ToStageDTO(stage), nil
}

// UpdateProgress records floor-reported progress; reaching 100 hands
// the stage over to QC
func (s *StageApplicationService) UpdateProgress(ctx context.Context, cmd UpdateProgressCommand) (*StageDTO, error) {
	stage, err := s.transition(ctx, cmd.StageID, func(stage *domain.Stage) error {
		return stage.UpdateProgress(cmd.ActorID, cmd.Percent)
	})
	if err != nil {
		return nil, err
	}

	if stage.ExecStatus == domain.ExecWaitingQC {
		s.notify(ctx, stage, stage.QCAssigneeID, domain.NotifyStageAwaitingQC)
	}

	return ToStageDTO(stage), nil
}

// CompleteStage finishes a QC-passed stage: it records the output
// quantity, releases the stage's active reservation and, when this was
// the order's last open stage, signals order completion
func (s *StageApplicationService) CompleteStage(ctx context.Context, cmd CompleteStageCommand) (*StageDTO, error) {
	var stage *domain.Stage
	var orderDone bool

	err := s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		stage, err = s.stageRepo.FindByID(txCtx, cmd.StageID)
		if err != nil {
			return err
		}
		if err := stage.RequireLeader(cmd.ActorID); err != nil {
			return err
		}

		from := stage.ExecStatus
		if err := stage.Complete(cmd.ActorID, cmd.OutputQuantity); err != nil {
			return err
		}
		if err := s.stageRepo.Save(txCtx, stage); err != nil {
			return err
		}
		s.metrics.RecordStageTransition(string(from), string(stage.ExecStatus))

		if err := s.releaseActiveReservation(txCtx, stage, cmd.ActorID); err != nil {
			return err
		}

		siblings, err := s.stageRepo.FindByOrderID(txCtx, stage.OrderID)
		if err != nil {
			return err
		}
		orderDone = true
		for _, sibling := range siblings {
			if !sibling.IsTerminal() {
				orderDone = false
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, toAppError(err, "stage")
	}

	flushEvents(ctx, s.events, stage)
	s.notify(ctx, stage, "", domain.NotifyStageCompleted)
	s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "stage.completed",
		EntityType: "stage",
		EntityID:   stage.StageID,
		Action:     "completed",
		ActorID:    cmd.ActorID,
		RelatedIDs: map[string]string{"orderId": stage.OrderID},
	})

	if orderDone {
		if err := s.orderNotifier.OrderCompleted(ctx, stage.OrderID, *stage.ActualEnd); err != nil {
			s.logger.WithError(err).Error("Failed to signal order completion", "orderId", stage.OrderID)
		}
	}

	return ToStageDTO(stage), nil
}

// CancelStage terminates a stage from any non-terminal state and frees
// its machine
func (s *StageApplicationService) CancelStage(ctx context.Context, cmd CancelStageCommand) (*StageDTO, error) {
	var stage *domain.Stage

	err := s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		stage, err = s.stageRepo.FindByID(txCtx, cmd.StageID)
		if err != nil {
			return err
		}

		from := stage.ExecStatus
		if err := stage.Cancel(cmd.ActorID, cmd.Reason); err != nil {
			return err
		}
		if err := s.stageRepo.Save(txCtx, stage); err != nil {
			return err
		}
		s.metrics.RecordStageTransition(string(from), string(stage.ExecStatus))

		return s.releaseActiveReservation(txCtx, stage, cmd.ActorID)
	})
	if err != nil {
		return nil, toAppError(err, "stage")
	}

	flushEvents(ctx, s.events, stage)
	s.notify(ctx, stage, "", domain.NotifyStageCanceled)
	return ToStageDTO(stage), nil
}

// StartRework begins a rework attempt on a stage waiting for rework
func (s *StageApplicationService) StartRework(ctx context.Context, cmd StartReworkCommand) (*StageDTO, error) {
	stage, err := s.transition(ctx, cmd.StageID, func(stage *domain.Stage) error {
		if err := stage.RequireLeader(cmd.ActorID); err != nil {
			return err
		}
		return stage.StartRework(cmd.ActorID)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, stage, stage.OperatorID, domain.NotifyReworkRequested)
	s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "stage.rework-started",
		EntityType: "stage",
		EntityID:   stage.StageID,
		Action:     "rework_started",
		ActorID:    cmd.ActorID,
		RelatedIDs: map[string]string{"orderId": stage.OrderID},
	})

	return ToStageDTO(stage), nil
}

// GetStage retrieves a stage by id
func (s *StageApplicationService) GetStage(ctx context.Context, query GetStageQuery) (*StageDTO, error) {
	stage, err := s.stageRepo.FindByID(ctx, query.StageID)
	if err != nil {
		return nil, toAppError(err, "stage")
	}
	return ToStageDTO(stage), nil
}

// ListStages lists the stages of an order in sequence order
func (s *StageApplicationService) ListStages(ctx context.Context, query ListStagesQuery) ([]StageDTO, error) {
	stages, err := s.stageRepo.FindByOrderID(ctx, query.OrderID)
	if err != nil {
		return nil, toAppError(err, "stage")
	}
	return ToStageDTOs(stages), nil
}

// releaseActiveReservation releases the stage's active reservation, if
// any, and flips the machine back to available
func (s *StageApplicationService) releaseActiveReservation(ctx context.Context, stage *domain.Stage, actorID string) error {
	reservation, err := s.reservationRepo.FindActiveByStage(ctx, stage.StageID)
	if err != nil {
		if stderrors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}

	if err := s.reservationRepo.Release(ctx, reservation.ReservationID, actorID); err != nil {
		return err
	}
	s.metrics.RecordReservationReleased()

	machine, err := s.machineRepo.FindByID(ctx, reservation.MachineID)
	if err != nil {
		if stderrors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	machine.MarkAvailable(actorID)
	return s.machineRepo.Save(ctx, machine)
}
