package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"intervention_backend/internal/events"
	"intervention_backend/internal/interventions/domain"
	"intervention_backend/internal/interventions/repository"
	"intervention_backend/internal/interventions/transport"
	"intervention_backend/platform/apperr"
	"intervention_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// memoryStore mirrors the repository's transactional semantics in memory.
type memoryStore struct {
	mu            sync.Mutex
	interventions map[uuid.UUID]*domain.Intervention
	slots         map[uuid.UUID][]domain.TimeSlot
	comments      map[uuid.UUID][]string
	failWrite     error
	writes        int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		interventions: map[uuid.UUID]*domain.Intervention{},
		slots:         map[uuid.UUID][]domain.TimeSlot{},
		comments:      map[uuid.UUID][]string{},
	}
}

func (m *memoryStore) add(i domain.Intervention) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interventions[i.ID] = &i
}

func (m *memoryStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Intervention, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.interventions[id]
	if !ok {
		return nil, apperr.NotFound("intervention not found")
	}
	copied := *i
	return &copied, nil
}

func (m *memoryStore) ApplyScheduling(_ context.Context, cmd repository.ScheduleCommand) (*repository.ScheduleResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++

	if m.failWrite != nil {
		return nil, apperr.TransientStore("failed to schedule intervention", m.failWrite)
	}
	current, ok := m.interventions[cmd.InterventionID]
	if !ok {
		return nil, apperr.NotFound("intervention not found")
	}
	if err := domain.EnsureSchedulable(current.Status); err != nil {
		return nil, err
	}
	if cmd.ReplaceSlots {
		kept := make([]domain.TimeSlot, 0)
		for _, s := range m.slots[cmd.InterventionID] {
			if s.Status == domain.SlotSelected {
				return nil, apperr.StateConflict("a time slot has already been confirmed for this intervention")
			}
		}
		kept = append(kept, cmd.Slots...)
		m.slots[cmd.InterventionID] = kept
	}
	previous := current.Status
	current.Status = domain.StatusScheduling
	current.UpdatedAt = cmd.Now
	if cmd.Comment != "" {
		m.comments[cmd.InterventionID] = append(m.comments[cmd.InterventionID], cmd.Comment)
	}
	return &repository.ScheduleResult{Intervention: *current, PreviousStatus: previous}, nil
}

func (m *memoryStore) slotsOf(id uuid.UUID) []domain.TimeSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.TimeSlot(nil), m.slots[id]...)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifySchedulingStarted(ctx context.Context, intervention domain.Intervention, actor domain.Caller, outcome domain.SchedulingOutcome) {
	m.Called(ctx, intervention, actor, outcome)
}

type recordingBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

type fixture struct {
	store    *memoryStore
	notifier *mockNotifier
	bus      *recordingBus
	svc      *Service
	teamID   uuid.UUID
	manager  domain.Caller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemoryStore()
	notifier := &mockNotifier{}
	bus := &recordingBus{}
	teamID := uuid.New()
	svc := New(store, notifier, bus, logger.Discard())
	svc.now = func() time.Time { return time.Date(2025, 11, 20, 9, 0, 0, 0, time.UTC) }
	return &fixture{
		store:    store,
		notifier: notifier,
		bus:      bus,
		svc:      svc,
		teamID:   teamID,
		manager:  domain.Caller{UserID: uuid.New(), TeamID: &teamID, DisplayName: "Mia Manager", IsManager: true},
	}
}

func (f *fixture) seed(status domain.Status) uuid.UUID {
	id := uuid.New()
	team := f.teamID
	f.store.add(domain.Intervention{ID: id, Title: "Leaking tap", Status: status, TeamID: &team})
	return id
}

func directRequest(date, start string) transport.ScheduleInterventionRequest {
	return transport.ScheduleInterventionRequest{
		PlanningType:   "direct",
		DirectSchedule: &transport.DirectScheduleRequest{Date: date, StartTime: start},
	}
}

func proposeRequest(n int) transport.ScheduleInterventionRequest {
	req := transport.ScheduleInterventionRequest{PlanningType: "propose"}
	for i := 0; i < n; i++ {
		req.ProposedSlots = append(req.ProposedSlots, transport.ProposedSlotRequest{
			Date: time.Date(2025, 12, 1+i, 0, 0, 0, 0, time.UTC).Format(time.DateOnly), StartTime: "09:00", EndTime: "11:00",
		})
	}
	return req
}

func TestScheduleDirectEndToEnd(t *testing.T) {
	f := newFixture(t)
	id := f.seed(domain.StatusApproved)
	f.notifier.On("NotifySchedulingStarted", mock.Anything, mock.Anything, f.manager, mock.MatchedBy(func(o domain.SchedulingOutcome) bool {
		return o.Mode == domain.PlanningDirect && len(o.CreatedSlots) == 1 && o.PreviousStatus == domain.StatusApproved
	})).Once()

	resp, err := f.svc.ScheduleIntervention(context.Background(), f.manager, id, directRequest("2025-12-01", "14:00"))
	require.NoError(t, err)

	require.True(t, resp.Success)
	require.Equal(t, "direct", resp.PlanningType)
	require.Equal(t, "scheduling", resp.Intervention.Status)
	require.Equal(t, "Leaking tap", resp.Intervention.Title)

	slots := f.store.slotsOf(id)
	require.Len(t, slots, 1)
	require.Equal(t, "2025-12-01", slots[0].DateString())
	require.Equal(t, "14:00", slots[0].Start.String())
	require.Equal(t, "15:00", slots[0].End.String())
	require.Equal(t, domain.SlotPending, slots[0].Status)
	require.Equal(t, f.manager.UserID, slots[0].ProposedBy)

	f.notifier.AssertExpectations(t)
	require.Len(t, f.bus.published, 1)
	started, ok := f.bus.published[0].(events.InterventionSchedulingStarted)
	require.True(t, ok)
	require.Equal(t, []uuid.UUID{slots[0].ID}, started.SlotIDs)
}

func TestScheduleDirectWrapsAroundMidnight(t *testing.T) {
	f := newFixture(t)
	id := f.seed(domain.StatusScheduling)
	f.notifier.On("NotifySchedulingStarted", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	_, err := f.svc.ScheduleIntervention(context.Background(), f.manager, id, directRequest("2025-12-01", "23:30"))
	require.NoError(t, err)
	require.Equal(t, "00:30", f.store.slotsOf(id)[0].End.String())
}

func TestStatusGuardRejectsWithoutMutation(t *testing.T) {
	for _, status := range []domain.Status{
		domain.StatusRequested, domain.StatusScheduled, domain.StatusRejected,
		domain.StatusInProgress, domain.StatusCompleted,
	} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			id := f.seed(status)

			_, err := f.svc.ScheduleIntervention(context.Background(), f.manager, id, directRequest("2025-12-01", "10:00"))
			require.True(t, apperr.Is(err, apperr.KindStateConflict), "got %v", err)

			var appErr *apperr.Error
			require.True(t, errors.As(err, &appErr))
			require.Equal(t, map[string]string{"currentStatus": string(status)}, appErr.Details)

			stored, _ := f.store.GetByID(context.Background(), id)
			require.Equal(t, status, stored.Status)
			require.Zero(t, f.store.writes)
			f.notifier.AssertNotCalled(t, "NotifySchedulingStarted", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestSelectedSlotLocksSlotMutation(t *testing.T) {
	for _, req := range []transport.ScheduleInterventionRequest{directRequest("2025-12-03", "08:00"), proposeRequest(2)} {
		t.Run(req.PlanningType, func(t *testing.T) {
			f := newFixture(t)
			id := f.seed(domain.StatusScheduling)
			selected := domain.TimeSlot{ID: uuid.New(), InterventionID: id, Status: domain.SlotSelected}
			pending := domain.TimeSlot{ID: uuid.New(), InterventionID: id, Status: domain.SlotPending}
			f.store.slots[id] = []domain.TimeSlot{selected, pending}

			_, err := f.svc.ScheduleIntervention(context.Background(), f.manager, id, req)
			require.True(t, apperr.Is(err, apperr.KindStateConflict), "got %v", err)
			require.Equal(t, []domain.TimeSlot{selected, pending}, f.store.slotsOf(id))
			f.notifier.AssertNotCalled(t, "NotifySchedulingStarted", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestReproposalReplacesUnconfirmedSlots(t *testing.T) {
	f := newFixture(t)
	id := f.seed(domain.StatusScheduling)
	f.notifier.On("NotifySchedulingStarted", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	_, err := f.svc.ScheduleIntervention(context.Background(), f.manager, id, proposeRequest(4))
	require.NoError(t, err)
	first := f.store.slotsOf(id)
	require.Len(t, first, 4)

	resp, err := f.svc.ScheduleIntervention(context.Background(), f.manager, id, proposeRequest(2))
	require.NoError(t, err)
	require.Equal(t, "2 time slots proposed", resp.Message)

	second := f.store.slotsOf(id)
	require.Len(t, second, 2)
	for _, s := range second {
		require.Equal(t, domain.SlotPending, s.Status)
		for _, old := range first {
			require.NotEqual(t, old.ID, s.ID)
		}
	}
}

func TestOrganizeKeepsSlotsAndMovesToScheduling(t *testing.T) {
	f := newFixture(t)
	id := f.seed(domain.StatusQuoteRequested)
	existing := domain.TimeSlot{ID: uuid.New(), InterventionID: id, Status: domain.SlotPending}
	f.store.slots[id] = []domain.TimeSlot{existing}
	f.notifier.On("NotifySchedulingStarted", mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(func(o domain.SchedulingOutcome) bool {
		return o.Mode == domain.PlanningOrganize && len(o.CreatedSlots) == 0
	})).Once()

	resp, err := f.svc.ScheduleIntervention(context.Background(), f.manager, id, transport.ScheduleInterventionRequest{
		PlanningType:    "organize",
		InternalComment: "  <b>Tenant prefers mornings</b> ",
	})
	require.NoError(t, err)
	require.Equal(t, "scheduling", resp.Intervention.Status)
	require.Empty(t, resp.Slots)
	require.Equal(t, []domain.TimeSlot{existing}, f.store.slotsOf(id))
	require.Equal(t, []string{"Tenant prefers mornings"}, f.store.comments[id])
	f.notifier.AssertExpectations(t)
}

func TestAuthorizationAndLookupErrors(t *testing.T) {
	f := newFixture(t)
	id := f.seed(domain.StatusApproved)
	otherTeam := uuid.New()

	tenant := domain.Caller{UserID: uuid.New(), TeamID: &f.teamID}
	_, err := f.svc.ScheduleIntervention(context.Background(), tenant, id, directRequest("2025-12-01", "10:00"))
	require.True(t, apperr.Is(err, apperr.KindForbidden))

	outsider := domain.Caller{UserID: uuid.New(), TeamID: &otherTeam, IsManager: true}
	_, err = f.svc.ScheduleIntervention(context.Background(), outsider, id, directRequest("2025-12-01", "10:00"))
	require.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.svc.ScheduleIntervention(context.Background(), f.manager, uuid.New(), directRequest("2025-12-01", "10:00"))
	require.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.svc.ScheduleIntervention(context.Background(), f.manager, id, transport.ScheduleInterventionRequest{PlanningType: "telepathy"})
	require.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.ScheduleIntervention(context.Background(), f.manager, id, transport.ScheduleInterventionRequest{PlanningType: "direct"})
	require.True(t, apperr.Is(err, apperr.KindValidation))

	require.Zero(t, f.store.writes)
}

func TestStoreFailureSurfacesAsTransientWithoutNotifications(t *testing.T) {
	f := newFixture(t)
	var logs bytes.Buffer
	f.svc.log = logger.NewWithWriter("production", &logs)
	id := f.seed(domain.StatusApproved)
	f.store.failWrite = errors.New("connection reset")

	_, err := f.svc.ScheduleIntervention(context.Background(), f.manager, id, proposeRequest(1))
	require.True(t, apperr.Is(err, apperr.KindTransientStore))

	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, 500, appErr.HTTPStatus())
	require.Empty(t, f.bus.published)
	f.notifier.AssertNotCalled(t, "NotifySchedulingStarted", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	require.True(t, strings.Contains(logs.String(), `"msg":"database_error"`), logs.String())
	require.True(t, strings.Contains(logs.String(), id.String()), logs.String())
}
