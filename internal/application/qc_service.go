package application

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"

	"github.com/mes-platform/production-service/internal/domain"
	"github.com/mes-platform/production-service/pkg/errors"
	"github.com/mes-platform/production-service/pkg/logging"
	"github.com/mes-platform/production-service/pkg/metrics"
)

// QCApplicationService governs one-at-a-time QC inspection per stage
type QCApplicationService struct {
	stageRepo   domain.StageRepository
	sessionRepo domain.QCSessionRepository
	issueRepo   domain.QualityIssueRepository
	uow         domain.UnitOfWork
	notifier    domain.Notifier
	roles       domain.RoleResolver
	events      domain.EventPublisher
	logger      *logging.Logger
	metrics     *metrics.Metrics
}

// NewQCApplicationService creates a new QCApplicationService
func NewQCApplicationService(
	stageRepo domain.StageRepository,
	sessionRepo domain.QCSessionRepository,
	issueRepo domain.QualityIssueRepository,
	uow domain.UnitOfWork,
	notifier domain.Notifier,
	roles domain.RoleResolver,
	events domain.EventPublisher,
	logger *logging.Logger,
	m *metrics.Metrics,
) *QCApplicationService {
	return &QCApplicationService{
		stageRepo:   stageRepo,
		sessionRepo: sessionRepo,
		issueRepo:   issueRepo,
		uow:         uow,
		notifier:    notifier,
		roles:       roles,
		events:      events,
		logger:      logger,
		metrics:     m,
	}
}

// requireInspector checks that the actor may inspect the stage: the
// assigned QC inspector always may, anyone else needs the qc-inspector
// capability
func (s *QCApplicationService) requireInspector(ctx context.Context, stage *domain.Stage, actorID string) error {
	if stage.QCAssigneeID != "" && stage.QCAssigneeID == actorID {
		return nil
	}

	ok, err := s.roles.HasCapability(ctx, actorID, domain.CapabilityQCInspector)
	if err != nil {
		s.logger.WithError(err).Error("Failed to resolve actor capabilities", "actorId", actorID)
		return errors.ErrInternal("could not resolve actor capabilities").Wrap(err)
	}
	if !ok {
		return errors.ErrForbidden("qc inspector capability required")
	}
	return nil
}

// StartSession opens a QC session and moves the stage into inspection.
// A second in-progress session for the same stage is rejected with a
// conflict before the state machine is consulted.
func (s *QCApplicationService) StartSession(ctx context.Context, cmd StartQCSessionCommand) (*QCSessionDTO, error) {
	session := domain.NewQCSession("QCS-"+uuid.New().String()[:8], cmd.StageID, cmd.ActorID)

	var stage *domain.Stage
	err := s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		stage, err = s.stageRepo.FindByID(txCtx, cmd.StageID)
		if err != nil {
			return err
		}
		if err := s.requireInspector(txCtx, stage, cmd.ActorID); err != nil {
			return err
		}

		if _, err := s.sessionRepo.FindInProgressByStage(txCtx, cmd.StageID); err == nil {
			return domain.ErrSessionAlreadyOpen
		} else if !stderrors.Is(err, domain.ErrNotFound) {
			return err
		}

		from := stage.ExecStatus
		if err := stage.BeginQC(cmd.ActorID); err != nil {
			return err
		}
		if err := s.sessionRepo.Create(txCtx, session); err != nil {
			return err
		}
		if err := s.stageRepo.Save(txCtx, stage); err != nil {
			return err
		}
		s.metrics.RecordStageTransition(string(from), string(stage.ExecStatus))
		return nil
	})
	if err != nil {
		return nil, toAppError(err, "stage")
	}

	flushEvents(ctx, s.events, stage)
	s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "qc.session-started",
		EntityType: "qc_session",
		EntityID:   session.SessionID,
		Action:     "started",
		ActorID:    cmd.ActorID,
		RelatedIDs: map[string]string{"stageId": cmd.StageID},
	})

	return ToQCSessionDTO(session), nil
}

// SubmitSession freezes the session with the asserted verdict. A PASS
// moves the stage to QC_PASSED; a FAIL records exactly one quality
// issue and queues the stage for rework.
func (s *QCApplicationService) SubmitSession(ctx context.Context, cmd SubmitQCSessionCommand) (*QCSubmitResponse, error) {
	var session *domain.QCSession
	var stage *domain.Stage
	var issue *domain.QualityIssue

	checkpoints := make([]domain.CheckpointResult, 0, len(cmd.Checkpoints))
	for _, c := range cmd.Checkpoints {
		checkpoints = append(checkpoints, domain.CheckpointResult{
			Criterion: c.Criterion,
			Passed:    c.Passed,
			Note:      c.Note,
		})
	}

	err := s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		session, err = s.sessionRepo.FindByID(txCtx, cmd.SessionID)
		if err != nil {
			return err
		}

		result := domain.QCResult(cmd.OverallResult)
		if err := session.Submit(result, checkpoints, cmd.Notes, cmd.ActorID); err != nil {
			return err
		}

		stage, err = s.stageRepo.FindByID(txCtx, session.StageID)
		if err != nil {
			return err
		}

		from := stage.ExecStatus
		if result == domain.QCPass {
			if err := stage.PassQC(cmd.ActorID); err != nil {
				return err
			}
		} else {
			severity := domain.DefectSeverity(cmd.DefectSeverity)
			if !severity.IsValid() {
				severity = domain.SeverityMinor
			}
			if err := stage.FailQC(cmd.ActorID, severity, cmd.DefectDescription); err != nil {
				return err
			}

			issue = domain.NewQualityIssue(
				"QI-"+uuid.New().String()[:8],
				stage.StageID, session.SessionID,
				severity, cmd.DefectDescription, cmd.ActorID,
			)
			if err := s.issueRepo.Save(txCtx, issue); err != nil {
				return err
			}
		}

		if err := s.sessionRepo.Save(txCtx, session); err != nil {
			return err
		}
		if err := s.stageRepo.Save(txCtx, stage); err != nil {
			return err
		}
		s.metrics.RecordStageTransition(string(from), string(stage.ExecStatus))
		return nil
	})
	if err != nil {
		return nil, toAppError(err, "qc session")
	}

	if issue != nil {
		flushEvents(ctx, s.events, stage, domain.NewQualityIssueRaisedEvent(issue))
	} else {
		flushEvents(ctx, s.events, stage)
	}
	s.metrics.RecordQCVerdict(string(session.OverallResult))

	response := &QCSubmitResponse{
		Session: *ToQCSessionDTO(session),
		Stage:   *ToStageDTO(stage),
	}

	if issue != nil {
		response.Issue = ToQualityIssueDTO(issue)
		_ = s.notifier.Notify(ctx, stage.LeaderID, domain.NotifyQCFailed, stage.StageID, response.Issue)
	}

	s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "qc.session-submitted",
		EntityType: "qc_session",
		EntityID:   session.SessionID,
		Action:     "submitted",
		ActorID:    cmd.ActorID,
		RelatedIDs: map[string]string{
			"stageId": session.StageID,
			"result":  string(session.OverallResult),
		},
	})

	return response, nil
}

// ListSessions lists QC sessions for a stage
func (s *QCApplicationService) ListSessions(ctx context.Context, stageID string) ([]QCSessionDTO, error) {
	sessions, err := s.sessionRepo.FindByStage(ctx, stageID)
	if err != nil {
		return nil, toAppError(err, "qc session")
	}

	dtos := make([]QCSessionDTO, 0, len(sessions))
	for _, session := range sessions {
		dtos = append(dtos, *ToQCSessionDTO(session))
	}
	return dtos, nil
}
