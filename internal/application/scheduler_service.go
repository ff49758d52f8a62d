package application

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mes-platform/production-service/internal/domain"
	"github.com/mes-platform/production-service/pkg/errors"
	"github.com/mes-platform/production-service/pkg/logging"
	"github.com/mes-platform/production-service/pkg/metrics"
)

// SchedulerApplicationService produces ranked machine candidates and
// commits reservations
type SchedulerApplicationService struct {
	stageRepo       domain.StageRepository
	machineRepo     domain.MachineRepository
	reservationRepo domain.ReservationRepository
	uow             domain.UnitOfWork
	events          domain.EventPublisher
	logger          *logging.Logger
	metrics         *metrics.Metrics
}

// NewSchedulerApplicationService creates a new
// SchedulerApplicationService
func NewSchedulerApplicationService(
	stageRepo domain.StageRepository,
	machineRepo domain.MachineRepository,
	reservationRepo domain.ReservationRepository,
	uow domain.UnitOfWork,
	events domain.EventPublisher,
	logger *logging.Logger,
	m *metrics.Metrics,
) *SchedulerApplicationService {
	return &SchedulerApplicationService{
		stageRepo:       stageRepo,
		machineRepo:     machineRepo,
		reservationRepo: reservationRepo,
		uow:             uow,
		events:          events,
		logger:          logger,
		metrics:         m,
	}
}

// Suggest returns ranked scheduling candidates for a request
func (s *SchedulerApplicationService) Suggest(ctx context.Context, query SuggestMachinesQuery) ([]SuggestionDTO, error) {
	processType := domain.ProcessType(query.ProcessType)
	if !processType.IsValid() {
		return nil, errors.ErrValidation(fmt.Sprintf("invalid process type: %s", query.ProcessType))
	}

	req := domain.SuggestionRequest{
		ProcessType:      processType,
		ProductID:        query.ProductID,
		RequiredQuantity: decimal.NewFromFloat(query.RequiredQuantity),
		WindowStart:      query.WindowStart,
		WindowEnd:        query.WindowEnd,
	}

	suggestions, err := s.suggest(ctx, req)
	if err != nil {
		return nil, err
	}
	return ToSuggestionDTOs(suggestions), nil
}

func (s *SchedulerApplicationService) suggest(ctx context.Context, req domain.SuggestionRequest) ([]domain.Suggestion, error) {
	if req.ProcessType.IsVirtual() {
		return domain.SuggestCandidates(req, nil, nil), nil
	}

	machines, err := s.machineRepo.FindByType(ctx, req.ProcessType)
	if err != nil {
		return nil, fmt.Errorf("failed to load machines: %w", err)
	}

	machineIDs := make([]string, 0, len(machines))
	for _, machine := range machines {
		machineIDs = append(machineIDs, machine.MachineID)
	}

	reservations, err := s.reservationRepo.FindActiveByMachines(ctx, machineIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load reservations: %w", err)
	}

	return domain.SuggestCandidates(req, machines, reservations), nil
}

// AutoAssign commits a reservation for the top-ranked available
// candidate of a stage. Virtual process types never reserve a machine.
// The ledger's no-overlap constraint resolves racing assigns: the loser
// surfaces a conflict.
func (s *SchedulerApplicationService) AutoAssign(ctx context.Context, cmd AutoAssignCommand) (*AutoAssignResponse, error) {
	stage, err := s.stageRepo.FindByID(ctx, cmd.StageID)
	if err != nil {
		return nil, toAppError(err, "stage")
	}

	if stage.ProcessType.IsVirtual() {
		return nil, errors.ErrValidation(fmt.Sprintf("%s stages do not use machines", stage.ProcessType))
	}

	req := domain.SuggestionRequest{
		ProcessType:      stage.ProcessType,
		ProductID:        stage.ProductID,
		RequiredQuantity: decimal.NewFromFloat(stage.RequiredQuantity),
		WindowStart:      cmd.WindowStart,
		WindowEnd:        cmd.WindowEnd,
	}

	suggestions, err := s.suggest(ctx, req)
	if err != nil {
		return nil, err
	}

	var pick *domain.Suggestion
	for i := range suggestions {
		if suggestions[i].Available {
			pick = &suggestions[i]
			break
		}
	}
	if pick == nil {
		return nil, errors.ErrNoCapacity("")
	}

	reservation := domain.NewReservation(
		"RES-"+uuid.New().String()[:8],
		pick.MachineID, stage.StageID,
		domain.ReservationProduction,
		cmd.WindowStart, cmd.WindowEnd,
		cmd.ActorID,
	)

	err = s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		if err := s.reservationRepo.Commit(txCtx, reservation); err != nil {
			return err
		}

		stage.AssignMachine(pick.MachineID, cmd.ActorID)
		if err := s.stageRepo.Save(txCtx, stage); err != nil {
			return err
		}

		machine, err := s.machineRepo.FindByID(txCtx, pick.MachineID)
		if err != nil {
			return err
		}
		machine.MarkBusy(cmd.ActorID)
		return s.machineRepo.Save(txCtx, machine)
	})
	if err != nil {
		if stderrors.Is(err, domain.ErrOverlappingReservation) {
			return nil, errors.ErrNoCapacity("machine was reserved by a concurrent assignment").Wrap(err)
		}
		return nil, toAppError(err, "reservation")
	}

	s.metrics.RecordReservationCommitted()
	flushEvents(ctx, s.events, stage, domain.NewReservationCommittedEvent(reservation))
	s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "scheduler.auto-assigned",
		EntityType: "reservation",
		EntityID:   reservation.ReservationID,
		Action:     "committed",
		ActorID:    cmd.ActorID,
		RelatedIDs: map[string]string{
			"stageId":   stage.StageID,
			"machineId": pick.MachineID,
		},
	})

	return &AutoAssignResponse{
		Stage:       *ToStageDTO(stage),
		Reservation: *ToReservationDTO(reservation),
	}, nil
}

// CheckConflicts returns human-readable conflict descriptions for a
// stage's planned window without mutating state
func (s *SchedulerApplicationService) CheckConflicts(ctx context.Context, query CheckConflictsQuery) ([]string, error) {
	stage, err := s.stageRepo.FindByID(ctx, query.StageID)
	if err != nil {
		return nil, toAppError(err, "stage")
	}

	if stage.ProcessType.IsVirtual() {
		return []string{}, nil
	}

	req := domain.SuggestionRequest{
		ProcessType:      stage.ProcessType,
		ProductID:        stage.ProductID,
		RequiredQuantity: decimal.NewFromFloat(stage.RequiredQuantity),
		WindowStart:      query.WindowStart,
		WindowEnd:        query.WindowEnd,
	}

	suggestions, err := s.suggest(ctx, req)
	if err != nil {
		return nil, err
	}

	conflicts := make([]string, 0)
	for _, suggestion := range suggestions {
		// When the stage already has a machine, only that machine's
		// conflicts matter
		if stage.MachineID != "" && suggestion.MachineID != stage.MachineID {
			continue
		}
		conflicts = append(conflicts, suggestion.Conflicts...)
	}
	return conflicts, nil
}

// ListMachines lists registry machines, optionally filtered by type
func (s *SchedulerApplicationService) ListMachines(ctx context.Context, query ListMachinesQuery) (*PagedMachinesResult, error) {
	var machines []*domain.Machine
	var err error

	pagination := domain.Pagination{Page: query.Page, PageSize: query.PageSize}
	if pagination.Page < 1 {
		pagination = domain.DefaultPagination()
	}

	if query.ProcessType != "" {
		processType := domain.ProcessType(query.ProcessType)
		if !processType.IsValid() {
			return nil, errors.ErrValidation(fmt.Sprintf("invalid process type: %s", query.ProcessType))
		}
		machines, err = s.machineRepo.FindByType(ctx, processType)
	} else {
		machines, err = s.machineRepo.FindAll(ctx, pagination)
	}
	if err != nil {
		return nil, toAppError(err, "machine")
	}

	dtos := make([]MachineDTO, 0, len(machines))
	for _, machine := range machines {
		dtos = append(dtos, *ToMachineDTO(machine))
	}

	return &PagedMachinesResult{
		Data:     dtos,
		Page:     pagination.Page,
		PageSize: pagination.PageSize,
	}, nil
}

// GetMachine retrieves a machine by id
func (s *SchedulerApplicationService) GetMachine(ctx context.Context, query GetMachineQuery) (*MachineDTO, error) {
	machine, err := s.machineRepo.FindByID(ctx, query.MachineID)
	if err != nil {
		return nil, toAppError(err, "machine")
	}
	return ToMachineDTO(machine), nil
}
