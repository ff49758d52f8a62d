package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mes-platform/production-service/internal/domain"
	"github.com/mes-platform/production-service/pkg/errors"
)

type stageServiceFixture struct {
	service         *StageApplicationService
	stageRepo       *fakeStageRepo
	reservationRepo *fakeReservationRepo
	machineRepo     *fakeMachineRepo
	notifier        *fakeNotifier
	orderNotifier   *fakeOrderNotifier
	events          *fakeEventPublisher
}

func newStageServiceFixture(machines ...*domain.Machine) *stageServiceFixture {
	f := &stageServiceFixture{
		stageRepo:       newFakeStageRepo(),
		reservationRepo: newFakeReservationRepo(),
		machineRepo:     newFakeMachineRepo(machines...),
		notifier:        &fakeNotifier{},
		orderNotifier:   &fakeOrderNotifier{},
		events:          &fakeEventPublisher{},
	}
	f.service = NewStageApplicationService(
		f.stageRepo, f.reservationRepo, f.machineRepo,
		fakeUnitOfWork{}, f.notifier, f.orderNotifier, f.events,
		testLogger(), testMetrics(),
	)
	return f
}

func (f *stageServiceFixture) seedStage(t *testing.T, stageID string, mutations ...func(*domain.Stage) error) *domain.Stage {
	t.Helper()
	stage, err := domain.NewStage(stageID, "ORD-001", 1, domain.ProcessWeaving, "PRD-001", 100)
	require.NoError(t, err)
	stage.AssignRoles("leader-1", "op-1", "qc-1")
	for _, mutate := range mutations {
		require.NoError(t, mutate(stage))
	}
	stage.ClearDomainEvents()
	require.NoError(t, f.stageRepo.Save(context.Background(), stage))
	return stage
}

func started(stage *domain.Stage) error  { return stage.Start("leader-1") }
func finished(stage *domain.Stage) error { return stage.UpdateProgress("op-1", 100) }
func passed(stage *domain.Stage) error {
	if err := stage.BeginQC("qc-1"); err != nil {
		return err
	}
	return stage.PassQC("qc-1")
}

func TestReleaseOrderCreatesWaitingStages(t *testing.T) {
	f := newStageServiceFixture()

	dtos, err := f.service.ReleaseOrder(context.Background(), ReleaseOrderCommand{
		OrderID: "ORD-100",
		ActorID: "planner-1",
		Stages: []StageInput{
			{ProcessType: "WARPING", ProductID: "PRD-001", RequiredQuantity: 500, LeaderID: "leader-1"},
			{ProcessType: "WEAVING", ProductID: "PRD-001", RequiredQuantity: 500, LeaderID: "leader-1"},
		},
	})
	require.NoError(t, err)
	require.Len(t, dtos, 2)

	assert.Equal(t, 1, dtos[0].Sequence)
	assert.Equal(t, "WARPING", dtos[0].ProcessType)
	assert.Equal(t, 2, dtos[1].Sequence)
	assert.Equal(t, string(domain.ExecWaiting), dtos[0].ExecStatus)
	assert.Equal(t, string(domain.ExecWaiting), dtos[1].ExecStatus)
}

func TestReleaseOrderRejectsEmptyAndDuplicate(t *testing.T) {
	f := newStageServiceFixture()

	_, err := f.service.ReleaseOrder(context.Background(), ReleaseOrderCommand{OrderID: "ORD-100", ActorID: "planner-1"})
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeValidationError, appErr.Code)

	_, err = f.service.ReleaseOrder(context.Background(), ReleaseOrderCommand{
		OrderID: "ORD-100",
		ActorID: "planner-1",
		Stages:  []StageInput{{ProcessType: "WARPING", ProductID: "PRD-001", RequiredQuantity: 500}},
	})
	require.NoError(t, err)

	_, err = f.service.ReleaseOrder(context.Background(), ReleaseOrderCommand{
		OrderID: "ORD-100",
		ActorID: "planner-1",
		Stages:  []StageInput{{ProcessType: "WARPING", ProductID: "PRD-001", RequiredQuantity: 500}},
	})
	appErr, ok = errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeConflict, appErr.Code)
}

func TestStartStageRequiresLeader(t *testing.T) {
	f := newStageServiceFixture()
	f.seedStage(t, "STG-001")

	_, err := f.service.StartStage(context.Background(), StartStageCommand{StageID: "STG-001", ActorID: "intruder"})
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeForbidden, appErr.Code)

	dto, err := f.service.StartStage(context.Background(), StartStageCommand{StageID: "STG-001", ActorID: "leader-1"})
	require.NoError(t, err)
	assert.Equal(t, string(domain.ExecInProgress), dto.ExecStatus)
	assert.Contains(t, f.notifier.kinds(), domain.NotifyStageStarted)
	assert.Contains(t, f.events.eventTypes(), "mes.stage.transitioned")

	// Published events are drained from the aggregate
	stage, err := f.stageRepo.FindByID(context.Background(), "STG-001")
	require.NoError(t, err)
	assert.Empty(t, stage.DomainEvents())
}

func TestStartStageNotFound(t *testing.T) {
	f := newStageServiceFixture()

	_, err := f.service.StartStage(context.Background(), StartStageCommand{StageID: "STG-404", ActorID: "leader-1"})
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeNotFound, appErr.Code)
}

func TestPauseAndResumeStage(t *testing.T) {
	f := newStageServiceFixture()
	f.seedStage(t, "STG-001", started)

	_, err := f.service.PauseStage(context.Background(), PauseStageCommand{StageID: "STG-001", ActorID: "op-1"})
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeValidationError, appErr.Code)

	dto, err := f.service.PauseStage(context.Background(), PauseStageCommand{StageID: "STG-001", ActorID: "op-1", Reason: "yarn break"})
	require.NoError(t, err)
	assert.Equal(t, string(domain.ExecPaused), dto.ExecStatus)

	dto, err = f.service.ResumeStage(context.Background(), ResumeStageCommand{StageID: "STG-001", ActorID: "op-1"})
	require.NoError(t, err)
	assert.Equal(t, string(domain.ExecInProgress), dto.ExecStatus)
}

func TestUpdateProgressHandsOverToQC(t *testing.T) {
	f := newStageServiceFixture()
	f.seedStage(t, "STG-001", started)

	dto, err := f.service.UpdateProgress(context.Background(), UpdateProgressCommand{StageID: "STG-001", ActorID: "op-1", Percent: 40})
	require.NoError(t, err)
	assert.Equal(t, string(domain.ExecInProgress), dto.ExecStatus)
	assert.Equal(t, 40.0, dto.ProgressPct)

	dto, err = f.service.UpdateProgress(context.Background(), UpdateProgressCommand{StageID: "STG-001", ActorID: "op-1", Percent: 100})
	require.NoError(t, err)
	assert.Equal(t, string(domain.ExecWaitingQC), dto.ExecStatus)

	var awaiting *notification
	for i := range f.notifier.sent {
		if f.notifier.sent[i].Kind == domain.NotifyStageAwaitingQC {
			awaiting = &f.notifier.sent[i]
		}
	}
	require.NotNil(t, awaiting)
	assert.Equal(t, "qc-1", awaiting.Recipient)
}

func TestCompleteStageReleasesReservationAndMachine(t *testing.T) {
	machine := &domain.Machine{
		MachineID: "M-001", Name: "Loom 1",
		Type: domain.ProcessWeaving, Status: domain.MachineBusy,
	}
	f := newStageServiceFixture(machine)
	stage := f.seedStage(t, "STG-001", started, finished, passed)

	windowStart := time.Now()
	reservation := domain.NewReservation("RES-001", "M-001", stage.StageID, domain.ReservationProduction, windowStart, windowStart.Add(4*time.Hour), "leader-1")
	require.NoError(t, f.reservationRepo.Commit(context.Background(), reservation))

	dto, err := f.service.CompleteStage(context.Background(), CompleteStageCommand{StageID: "STG-001", ActorID: "leader-1", OutputQuantity: 98})
	require.NoError(t, err)
	assert.Equal(t, string(domain.ExecCompleted), dto.ExecStatus)
	assert.Equal(t, 98.0, dto.OutputQuantity)

	released, err := f.reservationRepo.FindByID(context.Background(), "RES-001")
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationReleased, released.Status)

	freed, err := f.machineRepo.FindByID(context.Background(), "M-001")
	require.NoError(t, err)
	assert.Equal(t, domain.MachineAvailable, freed.Status)

	// STG-001 was the order's only stage, so completion closes the order
	assert.Equal(t, []string{"ORD-001"}, f.orderNotifier.completed)
}

func TestCompleteStageWaitsForSiblings(t *testing.T) {
	f := newStageServiceFixture()
	f.seedStage(t, "STG-001", started, finished, passed)

	sibling, err := domain.NewStage("STG-002", "ORD-001", 2, domain.ProcessCutting, "PRD-001", 100)
	require.NoError(t, err)
	require.NoError(t, f.stageRepo.Save(context.Background(), sibling))

	_, err = f.service.CompleteStage(context.Background(), CompleteStageCommand{StageID: "STG-001", ActorID: "leader-1", OutputQuantity: 100})
	require.NoError(t, err)
	assert.Empty(t, f.orderNotifier.completed)
}

func TestCompleteStageRejectsUnpassedStage(t *testing.T) {
	f := newStageServiceFixture()
	f.seedStage(t, "STG-001", started)

	_, err := f.service.CompleteStage(context.Background(), CompleteStageCommand{StageID: "STG-001", ActorID: "leader-1", OutputQuantity: 100})
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeInvalidTransition, appErr.Code)
}

func TestCancelStageReleasesReservation(t *testing.T) {
	machine := &domain.Machine{
		MachineID: "M-001", Name: "Loom 1",
		Type: domain.ProcessWeaving, Status: domain.MachineBusy,
	}
	f := newStageServiceFixture(machine)
	stage := f.seedStage(t, "STG-001", started)

	windowStart := time.Now()
	reservation := domain.NewReservation("RES-001", "M-001", stage.StageID, domain.ReservationProduction, windowStart, windowStart.Add(4*time.Hour), "leader-1")
	require.NoError(t, f.reservationRepo.Commit(context.Background(), reservation))

	dto, err := f.service.CancelStage(context.Background(), CancelStageCommand{StageID: "STG-001", ActorID: "leader-1", Reason: "order withdrawn"})
	require.NoError(t, err)
	assert.Equal(t, string(domain.ExecCanceled), dto.ExecStatus)

	released, err := f.reservationRepo.FindByID(context.Background(), "RES-001")
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationReleased, released.Status)

	freed, err := f.machineRepo.FindByID(context.Background(), "M-001")
	require.NoError(t, err)
	assert.Equal(t, domain.MachineAvailable, freed.Status)
}

func TestStartReworkFromWaitingRework(t *testing.T) {
	f := newStageServiceFixture()
	f.seedStage(t, "STG-001", started, finished, func(stage *domain.Stage) error {
		if err := stage.BeginQC("qc-1"); err != nil {
			return err
		}
		return stage.FailQC("qc-1", domain.SeverityMinor, "skipped stitch")
	})

	dto, err := f.service.StartRework(context.Background(), StartReworkCommand{StageID: "STG-001", ActorID: "leader-1"})
	require.NoError(t, err)
	assert.Equal(t, string(domain.ExecReworkInProgress), dto.ExecStatus)
	assert.True(t, dto.IsRework)
	assert.Contains(t, f.notifier.kinds(), domain.NotifyReworkRequested)
}

func TestListStagesOrderedBySequence(t *testing.T) {
	f := newStageServiceFixture()

	_, err := f.service.ReleaseOrder(context.Background(), ReleaseOrderCommand{
		OrderID: "ORD-100",
		ActorID: "planner-1",
		Stages: []StageInput{
			{ProcessType: "WARPING", ProductID: "PRD-001", RequiredQuantity: 500},
			{ProcessType: "WEAVING", ProductID: "PRD-001", RequiredQuantity: 500},
			{ProcessType: "CUTTING", ProductID: "PRD-001", RequiredQuantity: 200},
		},
	})
	require.NoError(t, err)

	dtos, err := f.service.ListStages(context.Background(), ListStagesQuery{OrderID: "ORD-100"})
	require.NoError(t, err)
	require.Len(t, dtos, 3)
	assert.Equal(t, "WARPING", dtos[0].ProcessType)
	assert.Equal(t, "WEAVING", dtos[1].ProcessType)
	assert.Equal(t, "CUTTING", dtos[2].ProcessType)
}
