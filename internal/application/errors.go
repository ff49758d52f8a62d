package application

import (
	stderrors "errors"

	"github.com/mes-platform/production-service/internal/domain"
	"github.com/mes-platform/production-service/pkg/errors"
)

// toAppError maps domain errors to transport-level AppErrors
func toAppError(err error, resource string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr
	}

	var transErr *domain.TransitionError
	if stderrors.As(err, &transErr) {
		return errors.ErrInvalidTransition("stage", string(transErr.From), string(transErr.To)).Wrap(err)
	}

	switch {
	case stderrors.Is(err, domain.ErrNotFound):
		return errors.ErrNotFound(resource).Wrap(err)
	case stderrors.Is(err, domain.ErrVersionConflict):
		return errors.ErrConflict("the entity was modified concurrently, retry with fresh state").Wrap(err)
	case stderrors.Is(err, domain.ErrOverlappingReservation):
		return errors.ErrConflict("machine already has an overlapping active reservation").Wrap(err)
	case stderrors.Is(err, domain.ErrSessionAlreadyOpen):
		return errors.ErrConflict("a QC session is already in progress for this stage").Wrap(err)
	case stderrors.Is(err, domain.ErrActorNotAssigned):
		return errors.ErrForbidden("actor is not assigned to this stage").Wrap(err)
	case stderrors.Is(err, domain.ErrPauseReasonRequired),
		stderrors.Is(err, domain.ErrInvalidProgress),
		stderrors.Is(err, domain.ErrInvalidQCResult),
		stderrors.Is(err, domain.ErrSeverityTooLowForMat):
		return errors.ErrValidation(err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrStageNotPaused),
		stderrors.Is(err, domain.ErrSessionSubmitted),
		stderrors.Is(err, domain.ErrIssueAlreadyHandled),
		stderrors.Is(err, domain.ErrRequisitionDecided),
		stderrors.Is(err, domain.ErrReservationReleased):
		return errors.ErrConflict(err.Error()).Wrap(err)
	default:
		return err
	}
}
