package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mes-platform/production-service/internal/domain"
	"github.com/mes-platform/production-service/pkg/logging"
	"github.com/mes-platform/production-service/pkg/metrics"
)

// In-memory repository fakes. They enforce the same storage-layer
// constraints the Mongo implementations do (version checks, overlap
// rejection, single open session) so service tests exercise the real
// conflict paths.

// Compile-time checks that the fakes stay aligned with the domain
// interfaces the services consume.
var (
	_ domain.StageRepository        = (*fakeStageRepo)(nil)
	_ domain.MachineRepository      = (*fakeMachineRepo)(nil)
	_ domain.ReservationRepository  = (*fakeReservationRepo)(nil)
	_ domain.QCSessionRepository    = (*fakeQCSessionRepo)(nil)
	_ domain.QualityIssueRepository = (*fakeIssueRepo)(nil)
	_ domain.RequisitionRepository  = (*fakeRequisitionRepo)(nil)
	_ domain.UnitOfWork             = fakeUnitOfWork{}
	_ domain.Notifier               = (*fakeNotifier)(nil)
	_ domain.OrderNotifier          = (*fakeOrderNotifier)(nil)
	_ domain.RoleResolver           = (*fakeRoleResolver)(nil)
	_ domain.EventPublisher         = (*fakeEventPublisher)(nil)
)

type fakeStageRepo struct {
	mu     sync.Mutex
	stages map[string]*domain.Stage
}

func newFakeStageRepo() *fakeStageRepo {
	return &fakeStageRepo{stages: make(map[string]*domain.Stage)}
}

func (r *fakeStageRepo) Save(_ context.Context, stage *domain.Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.stages[stage.StageID]
	if !ok {
		if stage.Version == 0 {
			stage.Version = 1
		}
		r.stages[stage.StageID] = stage
		return nil
	}
	if existing != stage && existing.Version != stage.Version {
		return domain.ErrVersionConflict
	}
	stage.Version++
	r.stages[stage.StageID] = stage
	return nil
}

func (r *fakeStageRepo) FindByID(_ context.Context, stageID string) (*domain.Stage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stage, ok := r.stages[stageID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return stage, nil
}

func (r *fakeStageRepo) FindByOrderID(_ context.Context, orderID string) ([]*domain.Stage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*domain.Stage, 0)
	for _, stage := range r.stages {
		if stage.OrderID == orderID {
			result = append(result, stage)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Sequence < result[j].Sequence })
	return result, nil
}

func (r *fakeStageRepo) FindByExecStatus(_ context.Context, status domain.ExecStatus) ([]*domain.Stage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*domain.Stage, 0)
	for _, stage := range r.stages {
		if stage.ExecStatus == status {
			result = append(result, stage)
		}
	}
	return result, nil
}

type fakeMachineRepo struct {
	mu       sync.Mutex
	machines map[string]*domain.Machine
}

func newFakeMachineRepo(machines ...*domain.Machine) *fakeMachineRepo {
	repo := &fakeMachineRepo{machines: make(map[string]*domain.Machine)}
	for _, machine := range machines {
		repo.machines[machine.MachineID] = machine
	}
	return repo
}

func (r *fakeMachineRepo) Save(_ context.Context, machine *domain.Machine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.machines[machine.MachineID] = machine
	return nil
}

func (r *fakeMachineRepo) FindByID(_ context.Context, machineID string) (*domain.Machine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	machine, ok := r.machines[machineID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return machine, nil
}

func (r *fakeMachineRepo) FindByType(_ context.Context, processType domain.ProcessType) ([]*domain.Machine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*domain.Machine, 0)
	for _, machine := range r.machines {
		if machine.Type == processType {
			result = append(result, machine)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].MachineID < result[j].MachineID })
	return result, nil
}

func (r *fakeMachineRepo) FindAll(_ context.Context, _ domain.Pagination) ([]*domain.Machine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*domain.Machine, 0, len(r.machines))
	for _, machine := range r.machines {
		result = append(result, machine)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].MachineID < result[j].MachineID })
	return result, nil
}

type fakeReservationRepo struct {
	mu           sync.Mutex
	reservations map[string]*domain.Reservation
}

func newFakeReservationRepo() *fakeReservationRepo {
	return &fakeReservationRepo{reservations: make(map[string]*domain.Reservation)}
}

func (r *fakeReservationRepo) Commit(_ context.Context, reservation *domain.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.reservations {
		if existing.MachineID != reservation.MachineID || existing.Status != domain.ReservationActive {
			continue
		}
		if domain.WindowsOverlap(existing.WindowStart, existing.WindowEnd, reservation.WindowStart, reservation.WindowEnd) {
			return domain.ErrOverlappingReservation
		}
	}
	r.reservations[reservation.ReservationID] = reservation
	return nil
}

func (r *fakeReservationRepo) Release(_ context.Context, reservationID, actorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reservation, ok := r.reservations[reservationID]
	if !ok {
		return domain.ErrNotFound
	}
	return reservation.Release(actorID)
}

func (r *fakeReservationRepo) FindByID(_ context.Context, reservationID string) (*domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reservation, ok := r.reservations[reservationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return reservation, nil
}

func (r *fakeReservationRepo) FindActiveByMachine(_ context.Context, machineID string) ([]*domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*domain.Reservation, 0)
	for _, reservation := range r.reservations {
		if reservation.MachineID == machineID && reservation.Status == domain.ReservationActive {
			result = append(result, reservation)
		}
	}
	return result, nil
}

func (r *fakeReservationRepo) FindActiveByMachines(_ context.Context, machineIDs []string) (map[string][]*domain.Reservation, error) {
	result := make(map[string][]*domain.Reservation)
	for _, machineID := range machineIDs {
		active, _ := r.FindActiveByMachine(context.Background(), machineID)
		if len(active) > 0 {
			result[machineID] = active
		}
	}
	return result, nil
}

func (r *fakeReservationRepo) FindActiveByStage(_ context.Context, stageID string) (*domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reservation := range r.reservations {
		if reservation.StageID == stageID && reservation.Status == domain.ReservationActive {
			return reservation, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeReservationRepo) FindAllActive(_ context.Context) ([]*domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*domain.Reservation, 0)
	for _, reservation := range r.reservations {
		if reservation.Status == domain.ReservationActive {
			result = append(result, reservation)
		}
	}
	return result, nil
}

type fakeQCSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.QCSession
}

func newFakeQCSessionRepo() *fakeQCSessionRepo {
	return &fakeQCSessionRepo{sessions: make(map[string]*domain.QCSession)}
}

func (r *fakeQCSessionRepo) Create(_ context.Context, session *domain.QCSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.sessions {
		if existing.StageID == session.StageID && existing.Status == domain.SessionInProgress {
			return domain.ErrSessionAlreadyOpen
		}
	}
	r.sessions[session.SessionID] = session
	return nil
}

func (r *fakeQCSessionRepo) Save(_ context.Context, session *domain.QCSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.SessionID] = session
	return nil
}

func (r *fakeQCSessionRepo) FindByID(_ context.Context, sessionID string) (*domain.QCSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return session, nil
}

func (r *fakeQCSessionRepo) FindInProgressByStage(_ context.Context, stageID string) (*domain.QCSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.StageID == stageID && session.Status == domain.SessionInProgress {
			return session, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeQCSessionRepo) FindByStage(_ context.Context, stageID string) ([]*domain.QCSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*domain.QCSession, 0)
	for _, session := range r.sessions {
		if session.StageID == stageID {
			result = append(result, session)
		}
	}
	return result, nil
}

type fakeIssueRepo struct {
	mu     sync.Mutex
	issues map[string]*domain.QualityIssue
}

func newFakeIssueRepo() *fakeIssueRepo {
	return &fakeIssueRepo{issues: make(map[string]*domain.QualityIssue)}
}

func (r *fakeIssueRepo) Save(_ context.Context, issue *domain.QualityIssue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issues[issue.IssueID] = issue
	return nil
}

func (r *fakeIssueRepo) FindByID(_ context.Context, issueID string) (*domain.QualityIssue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[issueID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return issue, nil
}

func (r *fakeIssueRepo) FindOpenByStage(_ context.Context, stageID string) (*domain.QualityIssue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, issue := range r.issues {
		if issue.StageID == stageID && issue.Status == domain.IssueOpen {
			return issue, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeIssueRepo) FindByStage(_ context.Context, stageID string) ([]*domain.QualityIssue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*domain.QualityIssue, 0)
	for _, issue := range r.issues {
		if issue.StageID == stageID {
			result = append(result, issue)
		}
	}
	return result, nil
}

type fakeRequisitionRepo struct {
	mu           sync.Mutex
	requisitions map[string]*domain.MaterialRequisition
}

func newFakeRequisitionRepo() *fakeRequisitionRepo {
	return &fakeRequisitionRepo{requisitions: make(map[string]*domain.MaterialRequisition)}
}

func (r *fakeRequisitionRepo) Save(_ context.Context, requisition *domain.MaterialRequisition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requisitions[requisition.RequisitionID] = requisition
	return nil
}

func (r *fakeRequisitionRepo) FindByID(_ context.Context, requisitionID string) (*domain.MaterialRequisition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	requisition, ok := r.requisitions[requisitionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return requisition, nil
}

func (r *fakeRequisitionRepo) FindPending(_ context.Context, _ domain.Pagination) ([]*domain.MaterialRequisition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*domain.MaterialRequisition, 0)
	for _, requisition := range r.requisitions {
		if requisition.Status == domain.RequisitionPending {
			result = append(result, requisition)
		}
	}
	return result, nil
}

// fakeUnitOfWork runs the function directly; the fakes above apply
// writes immediately, so rollback semantics are not simulated
type fakeUnitOfWork struct{}

func (fakeUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type notification struct {
	Recipient string
	Kind      string
	SubjectID string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *fakeNotifier) Notify(_ context.Context, recipient, kind, subjectID string, _ interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{Recipient: recipient, Kind: kind, SubjectID: subjectID})
	return nil
}

func (n *fakeNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]string, 0, len(n.sent))
	for _, sent := range n.sent {
		kinds = append(kinds, sent.Kind)
	}
	return kinds
}

type fakeOrderNotifier struct {
	mu        sync.Mutex
	completed []string
}

func (n *fakeOrderNotifier) OrderCompleted(_ context.Context, orderID string, _ time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, orderID)
	return nil
}

type fakeEventPublisher struct {
	mu        sync.Mutex
	published []domain.DomainEvent
}

func (p *fakeEventPublisher) PublishEvents(_ context.Context, events ...domain.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, events...)
	return nil
}

func (p *fakeEventPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.published))
	for _, event := range p.published {
		types = append(types, event.EventType())
	}
	return types
}

type fakeRoleResolver struct {
	capabilities map[string][]string
}

func (r *fakeRoleResolver) HasCapability(_ context.Context, actorID, capability string) (bool, error) {
	for _, c := range r.capabilities[actorID] {
		if c == capability {
			return true, nil
		}
	}
	return false, nil
}

func testLogger() *logging.Logger {
	return logging.New(logging.DefaultConfig("production-service-test"))
}

func testMetrics() *metrics.Metrics {
	return metrics.New("production-service-test")
}
