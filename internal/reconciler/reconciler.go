package reconciler

import (
	"context"
	"time"

	"github.com/mes-platform/production-service/internal/domain"
	"github.com/mes-platform/production-service/pkg/logging"
	"github.com/mes-platform/production-service/pkg/metrics"
)

// DefaultInterval is how often the reconciler sweeps the ledger.
const DefaultInterval = 5 * time.Minute

// Reconciler is a background sweep that repairs drift between the
// reservation ledger, the machine registry and stage state:
//
//   - reservations whose stage has reached a terminal state are
//     released (covers crashes between stage save and release)
//   - machine busy/available status is re-derived from the set of
//     currently active reservations
//
// Every correction it makes is also reachable through the normal
// request path; the sweep only shortens how long drift can persist.
type Reconciler struct {
	stageRepo       domain.StageRepository
	machineRepo     domain.MachineRepository
	reservationRepo domain.ReservationRepository
	logger          *logging.Logger
	metrics         *metrics.Metrics

	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// New creates a Reconciler sweeping at the given interval
func New(
	stageRepo domain.StageRepository,
	machineRepo domain.MachineRepository,
	reservationRepo domain.ReservationRepository,
	logger *logging.Logger,
	m *metrics.Metrics,
	interval time.Duration,
) *Reconciler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reconciler{
		stageRepo:       stageRepo,
		machineRepo:     machineRepo,
		reservationRepo: reservationRepo,
		logger:          logger,
		metrics:         m,
		interval:        interval,
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called or the context ends
func (r *Reconciler) Start(ctx context.Context) {
	go func() {
		defer close(r.done)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.sweep(ctx)
			case <-r.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates the sweep loop and waits for the current pass
func (r *Reconciler) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Reconciler) sweep(ctx context.Context) {
	active, err := r.reservationRepo.FindAllActive(ctx)
	if err != nil {
		r.logger.WithError(err).Error("Reconciler failed to load active reservations")
		return
	}

	released := r.releaseOrphanedReservations(ctx, active)
	r.reconcileMachineStatus(ctx, active, released)
}

// releaseOrphanedReservations frees reservations whose stage already
// reached a terminal state. Returns the ids of released reservations.
func (r *Reconciler) releaseOrphanedReservations(ctx context.Context, active []*domain.Reservation) map[string]bool {
	released := make(map[string]bool)

	for _, reservation := range active {
		if reservation.StageID == "" {
			continue
		}

		stage, err := r.stageRepo.FindByID(ctx, reservation.StageID)
		if err != nil {
			if err != domain.ErrNotFound {
				r.logger.WithError(err).Error("Reconciler failed to load stage",
					"stageId", reservation.StageID)
			}
			continue
		}
		if !stage.IsTerminal() {
			continue
		}

		if err := r.reservationRepo.Release(ctx, reservation.ReservationID, "reconciler"); err != nil {
			r.logger.WithError(err).Error("Reconciler failed to release reservation",
				"reservationId", reservation.ReservationID)
			continue
		}

		released[reservation.ReservationID] = true
		r.metrics.RecordReservationReleased()
		r.logger.Info("Released orphaned reservation",
			"reservationId", reservation.ReservationID,
			"stageId", reservation.StageID,
			"execStatus", string(stage.ExecStatus),
		)
	}

	return released
}

// reconcileMachineStatus re-derives busy/available from the remaining
// active reservations. Machines in maintenance or retired are left
// alone.
func (r *Reconciler) reconcileMachineStatus(ctx context.Context, active []*domain.Reservation, released map[string]bool) {
	now := time.Now().UTC()

	busyMachines := make(map[string]bool)
	for _, reservation := range active {
		if released[reservation.ReservationID] {
			continue
		}
		if reservation.Overlaps(now, now.Add(time.Nanosecond)) {
			busyMachines[reservation.MachineID] = true
		}
	}

	machines, err := r.machineRepo.FindAll(ctx, domain.Pagination{Page: 1, PageSize: 1000})
	if err != nil {
		r.logger.WithError(err).Error("Reconciler failed to load machines")
		return
	}

	for _, machine := range machines {
		wantBusy := busyMachines[machine.MachineID]

		switch {
		case wantBusy && machine.Status == domain.MachineAvailable:
			machine.MarkBusy("reconciler")
		case !wantBusy && machine.Status == domain.MachineBusy:
			machine.MarkAvailable("reconciler")
		default:
			continue
		}

		if err := r.machineRepo.Save(ctx, machine); err != nil {
			r.logger.WithError(err).Error("Reconciler failed to save machine",
				"machineId", machine.MachineID)
			continue
		}
		r.logger.Info("Reconciled machine status",
			"machineId", machine.MachineID,
			"status", string(machine.Status),
		)
	}
}
