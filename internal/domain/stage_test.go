package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStage(t *testing.T) *Stage {
	t.Helper()
	stage, err := NewStage("STG-001", "PO-001", 1, ProcessWeaving, "PROD-001", 100)
	require.NoError(t, err)
	stage.AssignRoles("leader-1", "op-1", "qc-1")
	return stage
}

// advance drives a stage to the requested execution status through the
// legal path
func advance(t *testing.T, stage *Stage, target ExecStatus) {
	t.Helper()

	steps := map[ExecStatus]func() error{
		ExecInProgress:   func() error { return stage.Start("leader-1") },
		ExecWaitingQC:    func() error { return stage.UpdateProgress("op-1", 100) },
		ExecQCInProgress: func() error { return stage.BeginQC("qc-1") },
		ExecQCPassed:     func() error { return stage.PassQC("qc-1") },
		ExecWaitingRework: func() error {
			return stage.FailQC("qc-1", SeverityMinor, "loose thread")
		},
		ExecReworkInProgress: func() error { return stage.StartRework("leader-1") },
		ExecCompleted:        func() error { return stage.Complete("leader-1", 98) },
	}

	order := []ExecStatus{
		ExecInProgress, ExecWaitingQC, ExecQCInProgress,
		ExecQCPassed, ExecWaitingRework, ExecReworkInProgress, ExecCompleted,
	}

	for _, status := range order {
		if stage.ExecStatus == target {
			return
		}
		if status == ExecQCPassed && target != ExecQCPassed && target != ExecCompleted {
			continue
		}
		if status == ExecWaitingRework && (target == ExecQCPassed || target == ExecCompleted) {
			continue
		}
		if status == ExecReworkInProgress && target != ExecReworkInProgress {
			continue
		}
		require.NoError(t, steps[status](), "advancing to %s", status)
	}
	require.Equal(t, target, stage.ExecStatus)
}

func TestNewStage(t *testing.T) {
	stage, err := NewStage("STG-001", "PO-001", 1, ProcessWeaving, "PROD-001", 100)
	require.NoError(t, err)

	assert.Equal(t, ExecWaiting, stage.ExecStatus)
	assert.Equal(t, StatusPending, stage.Status)
	assert.False(t, stage.IsRework)
	assert.NotZero(t, stage.Audit.CreatedAt)

	_, err = NewStage("STG-002", "PO-001", 2, ProcessType("SMELTING"), "", 10)
	assert.Error(t, err)
}

func TestStageStart(t *testing.T) {
	stage := createTestStage(t)

	err := stage.Start("leader-1")
	require.NoError(t, err)
	assert.Equal(t, ExecInProgress, stage.ExecStatus)
	assert.Equal(t, StatusInProgress, stage.Status)
	assert.NotNil(t, stage.ActualStart)

	// Starting again is an invalid transition
	err = stage.Start("leader-1")
	var transErr *TransitionError
	assert.ErrorAs(t, err, &transErr)
	assert.Equal(t, ExecInProgress, transErr.From)
}

func TestStageStartFromWaitingRework(t *testing.T) {
	stage := createTestStage(t)
	advance(t, stage, ExecWaitingRework)

	err := stage.Start("leader-1")
	require.NoError(t, err)
	assert.Equal(t, ExecReworkInProgress, stage.ExecStatus)
	assert.True(t, stage.IsRework)
}

func TestStagePauseResume(t *testing.T) {
	stage := createTestStage(t)
	advance(t, stage, ExecInProgress)

	err := stage.Pause("leader-1", "")
	assert.ErrorIs(t, err, ErrPauseReasonRequired)

	err = stage.Pause("leader-1", "yarn shortage")
	require.NoError(t, err)
	assert.Equal(t, ExecPaused, stage.ExecStatus)
	require.Len(t, stage.PauseLog, 1)
	assert.Equal(t, ExecInProgress, stage.PauseLog[0].PausedFrom)
	assert.Equal(t, "yarn shortage", stage.PauseLog[0].Reason)

	err = stage.Resume("leader-1")
	require.NoError(t, err)
	assert.Equal(t, ExecInProgress, stage.ExecStatus)
	assert.NotNil(t, stage.PauseLog[0].ResumedAt)
	assert.Equal(t, "leader-1", stage.PauseLog[0].ResumedBy)
}

func TestStagePauseResumeDuringRework(t *testing.T) {
	stage := createTestStage(t)
	advance(t, stage, ExecReworkInProgress)

	require.NoError(t, stage.Pause("leader-1", "waiting for spare part"))
	require.NoError(t, stage.Resume("leader-1"))

	// Resume restores the rework phase, not plain in_progress
	assert.Equal(t, ExecReworkInProgress, stage.ExecStatus)
}

func TestStageResumeNotPaused(t *testing.T) {
	stage := createTestStage(t)
	advance(t, stage, ExecInProgress)

	err := stage.Resume("leader-1")
	assert.ErrorIs(t, err, ErrStageNotPaused)
}

func TestStageUpdateProgress(t *testing.T) {
	stage := createTestStage(t)
	advance(t, stage, ExecInProgress)

	require.NoError(t, stage.UpdateProgress("op-1", 40))
	assert.Equal(t, 40.0, stage.ProgressPct)

	// Floor corrections may decrease progress
	require.NoError(t, stage.UpdateProgress("op-1", 35))
	assert.Equal(t, 35.0, stage.ProgressPct)

	assert.ErrorIs(t, stage.UpdateProgress("op-1", -1), ErrInvalidProgress)
	assert.ErrorIs(t, stage.UpdateProgress("op-1", 101), ErrInvalidProgress)

	// Reaching 100 hands the stage over to QC
	require.NoError(t, stage.UpdateProgress("op-1", 100))
	assert.Equal(t, ExecWaitingQC, stage.ExecStatus)

	err := stage.UpdateProgress("op-1", 50)
	assert.Error(t, err)
}

func TestStageQCPassAndComplete(t *testing.T) {
	stage := createTestStage(t)
	advance(t, stage, ExecQCInProgress)

	require.NoError(t, stage.PassQC("qc-1"))
	assert.Equal(t, ExecQCPassed, stage.ExecStatus)

	require.NoError(t, stage.Complete("leader-1", 98))
	assert.Equal(t, ExecCompleted, stage.ExecStatus)
	assert.Equal(t, StatusCompleted, stage.Status)
	assert.Equal(t, 98.0, stage.OutputQuantity)
	assert.NotNil(t, stage.ActualEnd)
	assert.True(t, stage.IsTerminal())
}

func TestStageCompleteRequiresQCPassed(t *testing.T) {
	stage := createTestStage(t)
	advance(t, stage, ExecInProgress)

	err := stage.Complete("leader-1", 98)
	var transErr *TransitionError
	assert.ErrorAs(t, err, &transErr)
}

func TestStageFailQC(t *testing.T) {
	stage := createTestStage(t)
	advance(t, stage, ExecQCInProgress)

	err := stage.FailQC("qc-1", SeverityMajor, "color mismatch")
	require.NoError(t, err)

	// Failed stages never rest in qc_failed
	assert.Equal(t, ExecWaitingRework, stage.ExecStatus)
	assert.Equal(t, SeverityMajor, stage.DefectSeverity)
	assert.Equal(t, "color mismatch", stage.DefectDescription)

	err = stage.FailQC("qc-1", DefectSeverity("FATAL"), "x")
	assert.Error(t, err)
}

func TestStageReworkLoop(t *testing.T) {
	stage := createTestStage(t)
	advance(t, stage, ExecWaitingRework)

	require.NoError(t, stage.StartRework("leader-1"))
	assert.Equal(t, ExecReworkInProgress, stage.ExecStatus)
	assert.True(t, stage.IsRework)

	// Rework loops back through QC
	require.NoError(t, stage.UpdateProgress("op-1", 100))
	assert.Equal(t, ExecWaitingQC, stage.ExecStatus)

	require.NoError(t, stage.BeginQC("qc-1"))
	require.NoError(t, stage.PassQC("qc-1"))
	require.NoError(t, stage.Complete("leader-1", 95))
}

func TestStageAcceptDefect(t *testing.T) {
	stage := createTestStage(t)
	advance(t, stage, ExecWaitingRework)

	require.NoError(t, stage.AcceptDefect("manager-1"))
	assert.Equal(t, ExecQCPassed, stage.ExecStatus)

	require.NoError(t, stage.Complete("leader-1", 90))
}

func TestStageMaterialHold(t *testing.T) {
	stage := createTestStage(t)
	advance(t, stage, ExecReworkInProgress)

	require.NoError(t, stage.EnterMaterialHold("leader-1"))
	assert.Equal(t, ExecWaitingMaterialApproval, stage.ExecStatus)

	// Only approval clears the hold; other moves are rejected
	var transErr *TransitionError
	assert.ErrorAs(t, stage.UpdateProgress("op-1", 50), &transErr)

	require.NoError(t, stage.ClearMaterialHold("manager-1"))
	assert.Equal(t, ExecReworkInProgress, stage.ExecStatus)
}

func TestStageCancel(t *testing.T) {
	tests := []struct {
		name   string
		target ExecStatus
	}{
		{"from waiting", ExecWaiting},
		{"from in_progress", ExecInProgress},
		{"from waiting_qc", ExecWaitingQC},
		{"from waiting_rework", ExecWaitingRework},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage := createTestStage(t)
			advance(t, stage, tt.target)

			require.NoError(t, stage.Cancel("manager-1", "order withdrawn"))
			assert.Equal(t, ExecCanceled, stage.ExecStatus)
			assert.Equal(t, StatusCanceled, stage.Status)
			assert.Equal(t, "order withdrawn", stage.CancelReason)
		})
	}

	t.Run("terminal stages cannot be canceled", func(t *testing.T) {
		stage := createTestStage(t)
		advance(t, stage, ExecCompleted)

		err := stage.Cancel("manager-1", "too late")
		var transErr *TransitionError
		assert.ErrorAs(t, err, &transErr)
	})
}

func TestStageRequireLeader(t *testing.T) {
	stage := createTestStage(t)

	assert.NoError(t, stage.RequireLeader("leader-1"))
	assert.ErrorIs(t, stage.RequireLeader("somebody-else"), ErrActorNotAssigned)

	// Stages without an assigned leader accept any actor
	stage.LeaderID = ""
	assert.NoError(t, stage.RequireLeader("somebody-else"))
}

func TestLifecycleStatusDerivation(t *testing.T) {
	assert.Equal(t, StatusPending, ExecWaiting.LifecycleStatus())
	assert.Equal(t, StatusInProgress, ExecWaitingQC.LifecycleStatus())
	assert.Equal(t, StatusInProgress, ExecWaitingMaterialApproval.LifecycleStatus())
	assert.Equal(t, StatusCompleted, ExecCompleted.LifecycleStatus())
	assert.Equal(t, StatusCanceled, ExecCanceled.LifecycleStatus())
}

func TestNoTransitionSkipsIntermediateStates(t *testing.T) {
	// A waiting stage cannot jump straight to QC or completion
	assert.False(t, CanTransition(ExecWaiting, ExecWaitingQC))
	assert.False(t, CanTransition(ExecWaiting, ExecCompleted))
	assert.False(t, CanTransition(ExecInProgress, ExecQCPassed))
	assert.False(t, CanTransition(ExecQCFailed, ExecReworkInProgress))

	// Terminal states have no exits
	for _, to := range []ExecStatus{
		ExecWaiting, ExecInProgress, ExecWaitingQC, ExecCanceled,
	} {
		assert.False(t, CanTransition(ExecCompleted, to))
		assert.False(t, CanTransition(ExecCanceled, to))
	}
}

func TestStageDomainEvents(t *testing.T) {
	stage := createTestStage(t)

	require.NoError(t, stage.Start("leader-1"))
	events := stage.DomainEvents()
	require.Len(t, events, 1)

	event, ok := events[0].(*StageTransitionedEvent)
	require.True(t, ok)
	assert.Equal(t, ExecWaiting, event.From)
	assert.Equal(t, ExecInProgress, event.To)
	assert.Equal(t, "STG-001", event.StageID)

	stage.ClearDomainEvents()
	assert.Empty(t, stage.DomainEvents())
}
