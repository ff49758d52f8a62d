package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mes-platform/production-service/internal/domain"
	"github.com/mes-platform/production-service/pkg/errors"
)

type schedulerServiceFixture struct {
	service         *SchedulerApplicationService
	stageRepo       *fakeStageRepo
	machineRepo     *fakeMachineRepo
	reservationRepo *fakeReservationRepo
	events          *fakeEventPublisher
}

func newSchedulerServiceFixture(machines ...*domain.Machine) *schedulerServiceFixture {
	f := &schedulerServiceFixture{
		stageRepo:       newFakeStageRepo(),
		machineRepo:     newFakeMachineRepo(machines...),
		reservationRepo: newFakeReservationRepo(),
		events:          &fakeEventPublisher{},
	}
	f.service = NewSchedulerApplicationService(
		f.stageRepo, f.machineRepo, f.reservationRepo,
		fakeUnitOfWork{}, f.events, testLogger(), testMetrics(),
	)
	return f
}

func weavingMachines() []*domain.Machine {
	return []*domain.Machine{
		{
			MachineID: "M-001", Name: "Loom 1", Type: domain.ProcessWeaving,
			Status: domain.MachineAvailable, CapacitySpec: map[string]string{"default": "40"},
		},
		{
			MachineID: "M-002", Name: "Loom 2", Type: domain.ProcessWeaving,
			Status: domain.MachineAvailable, CapacitySpec: map[string]string{"default": "60"},
		},
	}
}

func (f *schedulerServiceFixture) seedStage(t *testing.T, stageID string, processType domain.ProcessType) *domain.Stage {
	t.Helper()
	stage, err := domain.NewStage(stageID, "ORD-001", 1, processType, "PRD-001", 120)
	require.NoError(t, err)
	stage.ClearDomainEvents()
	require.NoError(t, f.stageRepo.Save(context.Background(), stage))
	return stage
}

func TestSuggestRanksByCapacity(t *testing.T) {
	f := newSchedulerServiceFixture(weavingMachines()...)

	windowStart := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	suggestions, err := f.service.Suggest(context.Background(), SuggestMachinesQuery{
		ProcessType:      "WEAVING",
		ProductID:        "PRD-001",
		RequiredQuantity: 120,
		WindowStart:      windowStart,
		WindowEnd:        windowStart.Add(8 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, suggestions, 2)

	assert.Equal(t, "M-002", suggestions[0].MachineID)
	assert.Equal(t, "2", suggestions[0].EstimatedDurationHours)
	assert.Equal(t, "M-001", suggestions[1].MachineID)
	assert.Equal(t, "3", suggestions[1].EstimatedDurationHours)
	assert.True(t, suggestions[0].Available)
}

func TestSuggestVirtualProcessType(t *testing.T) {
	f := newSchedulerServiceFixture()

	windowStart := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	suggestions, err := f.service.Suggest(context.Background(), SuggestMachinesQuery{
		ProcessType:      "DYEING",
		ProductID:        "PRD-001",
		RequiredQuantity: 500,
		WindowStart:      windowStart,
		WindowEnd:        windowStart.Add(48 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.True(t, suggestions[0].Virtual)
	assert.Equal(t, "48", suggestions[0].EstimatedDurationHours)
}

func TestSuggestRejectsUnknownProcessType(t *testing.T) {
	f := newSchedulerServiceFixture()

	_, err := f.service.Suggest(context.Background(), SuggestMachinesQuery{ProcessType: "SPINNING"})
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeValidationError, appErr.Code)
}

func TestAutoAssignCommitsReservation(t *testing.T) {
	f := newSchedulerServiceFixture(weavingMachines()...)
	f.seedStage(t, "STG-001", domain.ProcessWeaving)

	windowStart := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	response, err := f.service.AutoAssign(context.Background(), AutoAssignCommand{
		StageID:     "STG-001",
		ActorID:     "leader-1",
		WindowStart: windowStart,
		WindowEnd:   windowStart.Add(4 * time.Hour),
	})
	require.NoError(t, err)

	assert.Equal(t, "M-002", response.Reservation.MachineID)
	assert.Equal(t, "M-002", response.Stage.MachineID)
	assert.Equal(t, string(domain.ReservationActive), response.Reservation.Status)

	machine, err := f.machineRepo.FindByID(context.Background(), "M-002")
	require.NoError(t, err)
	assert.Equal(t, domain.MachineBusy, machine.Status)

	active, err := f.reservationRepo.FindActiveByStage(context.Background(), "STG-001")
	require.NoError(t, err)
	assert.Equal(t, response.Reservation.ReservationID, active.ReservationID)

	assert.Contains(t, f.events.eventTypes(), "mes.machine.reserved")
}

func TestAutoAssignSkipsConflictedMachine(t *testing.T) {
	f := newSchedulerServiceFixture(weavingMachines()...)
	f.seedStage(t, "STG-001", domain.ProcessWeaving)

	windowStart := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	blocking := domain.NewReservation("RES-000", "M-002", "STG-000", domain.ReservationProduction, windowStart, windowStart.Add(8*time.Hour), "leader-0")
	require.NoError(t, f.reservationRepo.Commit(context.Background(), blocking))

	response, err := f.service.AutoAssign(context.Background(), AutoAssignCommand{
		StageID:     "STG-001",
		ActorID:     "leader-1",
		WindowStart: windowStart,
		WindowEnd:   windowStart.Add(4 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "M-001", response.Reservation.MachineID)
}

func TestAutoAssignNoCapacity(t *testing.T) {
	f := newSchedulerServiceFixture(weavingMachines()...)
	f.seedStage(t, "STG-001", domain.ProcessWeaving)

	windowStart := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	windowEnd := windowStart.Add(8 * time.Hour)
	for i, machineID := range []string{"M-001", "M-002"} {
		blocking := domain.NewReservation("RES-00"+string(rune('1'+i)), machineID, "STG-000", domain.ReservationProduction, windowStart, windowEnd, "leader-0")
		require.NoError(t, f.reservationRepo.Commit(context.Background(), blocking))
	}

	_, err := f.service.AutoAssign(context.Background(), AutoAssignCommand{
		StageID:     "STG-001",
		ActorID:     "leader-1",
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
	})
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeNoCapacity, appErr.Code)
}

func TestAutoAssignRejectsVirtualStage(t *testing.T) {
	f := newSchedulerServiceFixture()
	f.seedStage(t, "STG-001", domain.ProcessDyeing)

	_, err := f.service.AutoAssign(context.Background(), AutoAssignCommand{
		StageID:     "STG-001",
		ActorID:     "leader-1",
		WindowStart: time.Now(),
		WindowEnd:   time.Now().Add(time.Hour),
	})
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeValidationError, appErr.Code)
}

// Racing assigns against a registry with a single machine: the ledger's
// overlap check must let exactly one reservation through.
func TestAutoAssignConcurrentSingleWinner(t *testing.T) {
	machine := &domain.Machine{
		MachineID: "M-001", Name: "Loom 1", Type: domain.ProcessWeaving,
		Status: domain.MachineAvailable, CapacitySpec: map[string]string{"default": "40"},
	}
	f := newSchedulerServiceFixture(machine)

	const racers = 8
	stageIDs := make([]string, racers)
	for i := 0; i < racers; i++ {
		stageID := "STG-00" + string(rune('1'+i))
		f.seedStage(t, stageID, domain.ProcessWeaving)
		stageIDs[i] = stageID
	}

	windowStart := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	var wg sync.WaitGroup
	results := make(chan error, racers)
	for _, stageID := range stageIDs {
		wg.Add(1)
		go func(stageID string) {
			defer wg.Done()
			_, err := f.service.AutoAssign(context.Background(), AutoAssignCommand{
				StageID:     stageID,
				ActorID:     "leader-1",
				WindowStart: windowStart,
				WindowEnd:   windowStart.Add(4 * time.Hour),
			})
			results <- err
		}(stageID)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		appErr, ok := errors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, errors.CodeNoCapacity, appErr.Code)
	}
	assert.Equal(t, 1, succeeded)

	active, err := f.reservationRepo.FindActiveByMachine(context.Background(), "M-001")
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestCheckConflictsReportsBlockingReservation(t *testing.T) {
	f := newSchedulerServiceFixture(weavingMachines()...)
	stage := f.seedStage(t, "STG-001", domain.ProcessWeaving)
	stage.AssignMachine("M-002", "leader-1")
	require.NoError(t, f.stageRepo.Save(context.Background(), stage))

	windowStart := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	blocking := domain.NewReservation("RES-000", "M-002", "STG-000", domain.ReservationProduction, windowStart, windowStart.Add(8*time.Hour), "leader-0")
	require.NoError(t, f.reservationRepo.Commit(context.Background(), blocking))

	conflicts, err := f.service.CheckConflicts(context.Background(), CheckConflictsQuery{
		StageID:     "STG-001",
		WindowStart: windowStart.Add(2 * time.Hour),
		WindowEnd:   windowStart.Add(6 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Contains(t, conflicts[0], "STG-000")
}

func TestCheckConflictsCleanWindow(t *testing.T) {
	f := newSchedulerServiceFixture(weavingMachines()...)
	f.seedStage(t, "STG-001", domain.ProcessWeaving)

	windowStart := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	conflicts, err := f.service.CheckConflicts(context.Background(), CheckConflictsQuery{
		StageID:     "STG-001",
		WindowStart: windowStart,
		WindowEnd:   windowStart.Add(4 * time.Hour),
	})
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestListMachinesFiltersByType(t *testing.T) {
	machines := append(weavingMachines(), &domain.Machine{
		MachineID: "C-001", Name: "Cutter 1", Type: domain.ProcessCutting,
		Status: domain.MachineAvailable,
	})
	f := newSchedulerServiceFixture(machines...)

	result, err := f.service.ListMachines(context.Background(), ListMachinesQuery{ProcessType: "WEAVING"})
	require.NoError(t, err)
	require.Len(t, result.Data, 2)

	result, err = f.service.ListMachines(context.Background(), ListMachinesQuery{})
	require.NoError(t, err)
	assert.Len(t, result.Data, 3)
}

func TestGetMachine(t *testing.T) {
	f := newSchedulerServiceFixture(weavingMachines()...)

	dto, err := f.service.GetMachine(context.Background(), GetMachineQuery{MachineID: "M-001"})
	require.NoError(t, err)
	assert.Equal(t, "Loom 1", dto.Name)

	_, err = f.service.GetMachine(context.Background(), GetMachineQuery{MachineID: "M-404"})
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeNotFound, appErr.Code)
}
