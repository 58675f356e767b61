package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// memTickets is an in-memory TicketRepository that honors the status
// compare-and-swap. Hooks let tests interleave concurrent writers.
type memTickets struct {
	mu      sync.Mutex
	tickets map[string]domain.Ticket
	history []domain.TicketHistory

	beforeTransition func(change repository.StatusChange) error
	beforeUpdate     func(ticketID string)
	getCalls         int
	transitionCalls  int
	lastFilter       repository.TicketFilter
}

func newMemTickets() *memTickets {
	return &memTickets{tickets: map[string]domain.Ticket{}}
}

func (m *memTickets) seed(attendantID string, status domain.TicketStatus) domain.Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().Add(-time.Hour)
	ticket := domain.Ticket{
		ID:          uuid.NewString(),
		Title:       "Printer jammed",
		Priority:    domain.TicketPriorityMedium,
		Status:      status,
		AttendantID: attendantID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.tickets[ticket.ID] = ticket
	return ticket
}

func (m *memTickets) setStatus(id string, status domain.TicketStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ticket := m.tickets[id]
	ticket.Status = status
	m.tickets[id] = ticket
}

func (m *memTickets) status(id string) domain.TicketStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tickets[id].Status
}

func (m *memTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	m.tickets[ticket.ID] = *ticket
	return nil
}

func (m *memTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	ticket, ok := m.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ticket, nil
}

func (m *memTickets) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter
	result := []domain.Ticket{}
	for _, ticket := range m.tickets {
		if filter.ScopeAttendantID != nil && ticket.AttendantID != *filter.ScopeAttendantID {
			continue
		}
		if filter.AttendantID != nil && ticket.AttendantID != *filter.AttendantID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		if filter.SearchTerm != nil && !strings.Contains(strings.ToLower(ticket.Title), strings.ToLower(*filter.SearchTerm)) {
			continue
		}
		result = append(result, ticket)
	}
	return result, len(result), nil
}

func (m *memTickets) TransitionStatus(_ context.Context, change repository.StatusChange) (*domain.Ticket, error) {
	m.mu.Lock()
	m.transitionCalls++
	hook := m.beforeTransition
	m.mu.Unlock()
	if hook != nil {
		if err := hook(change); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ticket, ok := m.tickets[change.TicketID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if ticket.Status != change.From {
		return nil, repository.ErrStatusConflict
	}
	ticket.Status = change.To
	ticket.UpdatedAt = time.Now()
	m.tickets[ticket.ID] = ticket
	m.appendHistory(change)
	return &ticket, nil
}

func (m *memTickets) Update(_ context.Context, ticket *domain.Ticket, expected domain.TicketStatus, changedBy string) error {
	if m.beforeUpdate != nil {
		m.beforeUpdate(ticket.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.tickets[ticket.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Status != expected {
		return repository.ErrStatusConflict
	}
	ticket.UpdatedAt = time.Now()
	m.tickets[ticket.ID] = *ticket
	if ticket.Status != expected {
		m.appendHistory(repository.StatusChange{
			TicketID:  ticket.ID,
			From:      expected,
			To:        ticket.Status,
			ChangedBy: changedBy,
			Source:    domain.ChangeSourceAdmin,
		})
	}
	return nil
}

func (m *memTickets) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tickets[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.tickets, id)
	return nil
}

func (m *memTickets) appendHistory(change repository.StatusChange) {
	m.history = append(m.history, domain.TicketHistory{
		ID:        uuid.NewString(),
		TicketID:  change.TicketID,
		ChangedBy: change.ChangedBy,
		OldStatus: change.From,
		NewStatus: change.To,
		Source:    change.Source,
		CreatedAt: time.Now(),
	})
}

func (m *memTickets) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.TicketHistory{}
	for _, entry := range m.history {
		if entry.TicketID == ticketID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func containsStatus(statuses []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

type fakeUserRepo struct {
	createFn     func(ctx context.Context, user *domain.User) error
	getByIDFn    func(ctx context.Context, id string) (*domain.User, error)
	getByEmailFn func(ctx context.Context, email string) (*domain.User, error)
	listFn       func(ctx context.Context) ([]domain.User, error)
}

func (f *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	return f.createFn(ctx, user)
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return f.getByIDFn(ctx, id)
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return f.getByEmailFn(ctx, email)
}

func (f *fakeUserRepo) List(ctx context.Context) ([]domain.User, error) {
	return f.listFn(ctx)
}

type fakePermissionRepo struct {
	grantFn func(ctx context.Context, userID string, perms []domain.Permission) error
}

func (f *fakePermissionRepo) Grant(ctx context.Context, userID string, perms []domain.Permission) error {
	return f.grantFn(ctx, userID, perms)
}

func (f *fakePermissionRepo) ListForUser(context.Context, string) ([]domain.Permission, error) {
	return nil, nil
}

type memRefreshStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newMemRefreshStore() *memRefreshStore {
	return &memRefreshStore{tokens: map[string]string{}}
}

func (s *memRefreshStore) Save(_ context.Context, jti, userID string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[jti] = userID
	return nil
}

func (s *memRefreshStore) Lookup(_ context.Context, jti string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.tokens[jti]
	if !ok {
		return "", auth.ErrRefreshTokenRevoked
	}
	return userID, nil
}

func (s *memRefreshStore) Revoke(_ context.Context, jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, jti)
	return nil
}

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordedEvents) handler(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordedEvents) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func attendantPrincipal(id string) *domain.Principal {
	return &domain.Principal{ID: id, Email: id + "@example.com", Role: domain.RoleAttendant, IsActive: true}
}

func technicianPrincipal(id string) *domain.Principal {
	return &domain.Principal{ID: id, Email: id + "@example.com", Role: domain.RoleTechnician, IsActive: true}
}

func newTicketServiceForTest(repo *memTickets) (*TicketService, *recordedEvents) {
	dispatcher := events.NewInMemoryDispatcher()
	recorder := &recordedEvents{}
	events.SubscribeAll(dispatcher, recorder.handler)
	svc := NewTicketService(TicketDependencies{
		TicketRepo:  repo,
		HistoryRepo: repo,
		Dispatcher:  dispatcher,
	})
	return svc, recorder
}
