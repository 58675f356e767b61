package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/access"
	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/service"
)

const testPassword = "correct-horse"

type memStore struct {
	mu      sync.Mutex
	users   map[string]*domain.User
	perms   map[string][]domain.Permission
	tickets map[string]domain.Ticket
	history []domain.TicketHistory
	refresh map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		users:   map[string]*domain.User{},
		perms:   map[string][]domain.Permission{},
		tickets: map[string]domain.Ticket{},
		refresh: map[string]string{},
	}
}

type storeUsers struct{ *memStore }

func (s storeUsers) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.ID = uuid.NewString()
	user.Email = domain.NormalizeEmail(user.Email)
	s.users[user.ID] = user
	return nil
}

func (s storeUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return nil, repository.ErrNotFound
}

func (s storeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == domain.NormalizeEmail(email) {
			return user, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s storeUsers) List(context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.User, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, *user)
	}
	return out, nil
}

type storePerms struct{ *memStore }

func (s storePerms) Grant(_ context.Context, userID string, perms []domain.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perms[userID] = append(s.perms[userID], perms...)
	return nil
}

func (s storePerms) ListForUser(_ context.Context, userID string) ([]domain.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.perms[userID], nil
}

type storeTickets struct{ *memStore }

func (s storeTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	s.tickets[ticket.ID] = *ticket
	return nil
}

func (s storeTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ticket, nil
}

func (s storeTickets) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Ticket{}
	for _, ticket := range s.tickets {
		if filter.ScopeAttendantID != nil && ticket.AttendantID != *filter.ScopeAttendantID {
			continue
		}
		out = append(out, ticket)
	}
	return out, len(out), nil
}

func (s storeTickets) TransitionStatus(_ context.Context, change repository.StatusChange) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[change.TicketID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if ticket.Status != change.From {
		return nil, repository.ErrStatusConflict
	}
	ticket.Status = change.To
	s.tickets[ticket.ID] = ticket
	s.history = append(s.history, domain.TicketHistory{
		ID:        uuid.NewString(),
		TicketID:  ticket.ID,
		ChangedBy: change.ChangedBy,
		OldStatus: change.From,
		NewStatus: change.To,
		Source:    change.Source,
		CreatedAt: time.Now(),
	})
	return &ticket, nil
}

func (s storeTickets) Update(_ context.Context, ticket *domain.Ticket, expected domain.TicketStatus, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tickets[ticket.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Status != expected {
		return repository.ErrStatusConflict
	}
	s.tickets[ticket.ID] = *ticket
	return nil
}

func (s storeTickets) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tickets, id)
	return nil
}

func (s storeTickets) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.TicketHistory{}
	for _, entry := range s.history {
		if entry.TicketID == ticketID {
			out = append(out, entry)
		}
	}
	return out, nil
}

type storeRefresh struct{ *memStore }

func (s storeRefresh) Save(_ context.Context, jti, userID string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh[jti] = userID
	return nil
}

func (s storeRefresh) Lookup(_ context.Context, jti string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if userID, ok := s.refresh[jti]; ok {
		return userID, nil
	}
	return "", auth.ErrRefreshTokenRevoked
}

func (s storeRefresh) Revoke(_ context.Context, jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refresh, jti)
	return nil
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type testEnv struct {
	app    *fiber.App
	store  *memStore
	tokens *auth.TokenManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMemStore()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	tokens := auth.NewTokenManager("test-secret", time.Hour, 24*time.Hour)

	users := storeUsers{store}
	perms := storePerms{store}
	tickets := storeTickets{store}

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  tickets,
		HistoryRepo: tickets,
		Dispatcher:  events.NewInMemoryDispatcher(),
		Metrics:     metrics,
		Logger:      logger,
	})
	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:     users,
		Granter:      access.NewPermissionGranter(users, perms, logger),
		Tokens:       tokens,
		RefreshStore: storeRefresh{store},
		BcryptCost:   4,
		Logger:       logger,
	})

	app := NewApp("helpdesk-test")
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("helpdesk", "test", okPinger{}, okPinger{}, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Admin:          handlers.NewAdminHandler(ticketService, authService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, users),
		Permissions:    perms,
	})
	return &testEnv{app: app, store: store, tokens: tokens}
}

func (e *testEnv) addUser(t *testing.T, role domain.Role, superuser bool, perms ...domain.Permission) *domain.User {
	t.Helper()
	hash, err := auth.HashPassword(testPassword, 4)
	require.NoError(t, err)
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        uuid.NewString()[:8] + "@example.com",
		PasswordHash: hash,
		Role:         role,
		IsSuperuser:  superuser,
		IsActive:     true,
	}
	e.store.mu.Lock()
	e.store.users[user.ID] = user
	e.store.perms[user.ID] = perms
	e.store.mu.Unlock()
	return user
}

func (e *testEnv) addTicket(owner *domain.User, status domain.TicketStatus) domain.Ticket {
	ticket := domain.Ticket{
		ID:          uuid.NewString(),
		Title:       "VPN down",
		Priority:    domain.TicketPriorityHigh,
		Status:      status,
		AttendantID: owner.ID,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	e.store.mu.Lock()
	e.store.tickets[ticket.ID] = ticket
	e.store.mu.Unlock()
	return ticket
}

func (e *testEnv) token(t *testing.T, user *domain.User) string {
	t.Helper()
	issued, err := e.tokens.GenerateAccessToken(user)
	require.NoError(t, err)
	return issued.Token
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	payload := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &payload), string(raw))
	}
	return resp.StatusCode, payload
}

func errorCode(payload map[string]any) string {
	body, _ := payload["error"].(map[string]any)
	code, _ := body["code"].(string)
	return code
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, fiber.MethodGet, "/health/live", "", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = env.do(t, fiber.MethodGet, "/health/ready", "", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	status, body = env.do(t, fiber.MethodGet, "/health/metrics", "", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, "data")
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, fiber.MethodGet, "/nope", "", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestTicketsRequireAuthentication(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, fiber.MethodGet, "/api/tickets", "", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))
}

func TestLoginThenListOwnTickets(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser(t, domain.RoleAttendant, false)
	bob := env.addUser(t, domain.RoleAttendant, false)
	env.addTicket(alice, domain.TicketStatusOpen)
	env.addTicket(bob, domain.TicketStatusOpen)

	status, body := env.do(t, fiber.MethodPost, "/api/auth/login", "",
		`{"email":"`+alice.Email+`","password":"`+testPassword+`"}`)
	require.Equal(t, fiber.StatusOK, status)
	data := body["data"].(map[string]any)
	access, _ := data["access_token"].(string)
	require.NotEmpty(t, access)

	status, body = env.do(t, fiber.MethodGet, "/api/tickets", access, "")
	require.Equal(t, fiber.StatusOK, status)
	meta := body["meta"].(map[string]any)
	assert.EqualValues(t, 1, meta["total"])
	items := body["data"].([]any)
	require.Len(t, items, 1)
	attendant := items[0].(map[string]any)["attendant"].(map[string]any)
	assert.Equal(t, alice.ID, attendant["id"])
}

func TestTechnicianSeesAllTickets(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser(t, domain.RoleAttendant, false)
	tech := env.addUser(t, domain.RoleTechnician, false)
	env.addTicket(alice, domain.TicketStatusOpen)
	env.addTicket(tech, domain.TicketStatusOpen)

	status, body := env.do(t, fiber.MethodGet, "/api/tickets", env.token(t, tech), "")
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 2, body["meta"].(map[string]any)["total"])
}

func TestListRejectsMalformedFilters(t *testing.T) {
	env := newTestEnv(t)
	tech := env.addUser(t, domain.RoleTechnician, false)
	token := env.token(t, tech)

	for _, query := range []string{"status=stuck", "priority=urgent", "attendant=42", "created_after=yesterday", "ordering=-secret"} {
		status, body := env.do(t, fiber.MethodGet, "/api/tickets?"+query, token, "")
		assert.Equal(t, fiber.StatusBadRequest, status, query)
		assert.Equal(t, "VALIDATION_FAILED", errorCode(body), query)
	}
}

func TestOutOfScopeTicketIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser(t, domain.RoleAttendant, false)
	bob := env.addUser(t, domain.RoleAttendant, false)
	ticket := env.addTicket(bob, domain.TicketStatusOpen)

	status, body := env.do(t, fiber.MethodGet, "/api/tickets/"+ticket.ID, env.token(t, alice), "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestSuperuserListsEveryTicket(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser(t, domain.RoleAttendant, false)
	bob := env.addUser(t, domain.RoleAttendant, false)
	root := env.addUser(t, domain.RoleAttendant, true)
	env.addTicket(alice, domain.TicketStatusOpen)
	env.addTicket(bob, domain.TicketStatusResolved)

	status, body := env.do(t, fiber.MethodGet, "/api/tickets", env.token(t, root), "")
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 2, body["meta"].(map[string]any)["total"])

	owners := map[string]bool{}
	for _, item := range body["data"].([]any) {
		owners[item.(map[string]any)["attendant"].(map[string]any)["id"].(string)] = true
	}
	assert.Equal(t, map[string]bool{alice.ID: true, bob.ID: true}, owners)
}

func TestAttendantStatusChangeForbiddenBeforeBodyChecks(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser(t, domain.RoleAttendant, false)
	ticket := env.addTicket(alice, domain.TicketStatusOpen)
	path := "/api/tickets/" + ticket.ID + "/update_status"

	for _, body := range []string{`{"status":5}`, `{"status":"stuck"}`, `{}`} {
		status, payload := env.do(t, fiber.MethodPatch, path, env.token(t, alice), body)
		assert.Equal(t, fiber.StatusForbidden, status, body)
		assert.Equal(t, "FORBIDDEN", errorCode(payload), body)
	}
}

func TestUpdateStatusOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser(t, domain.RoleAttendant, false)
	tech := env.addUser(t, domain.RoleTechnician, false)
	ticket := env.addTicket(alice, domain.TicketStatusOpen)
	path := "/api/tickets/" + ticket.ID + "/update_status"

	status, body := env.do(t, fiber.MethodPatch, path, env.token(t, alice), `{"status":"in_progress"}`)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	status, body = env.do(t, fiber.MethodPatch, path, env.token(t, tech), `{"status":"resolved"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(body))

	status, body = env.do(t, fiber.MethodPatch, path, env.token(t, tech), `{"status":"in_progress"}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "in_progress", body["data"].(map[string]any)["status"])

	status, body = env.do(t, fiber.MethodGet, "/api/tickets/"+ticket.ID+"/history", env.token(t, alice), "")
	require.Equal(t, fiber.StatusOK, status)
	entries := body["data"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "open", entries[0].(map[string]any)["old_status"])
}

func TestAdminRequiresPermission(t *testing.T) {
	env := newTestEnv(t)
	bare := env.addUser(t, domain.RoleAttendant, false)

	status, body := env.do(t, fiber.MethodGet, "/admin/tickets", env.token(t, bare), "")
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))
}

func TestAdminCreateForcesOwnerAndStatus(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser(t, domain.RoleAttendant, false,
		domain.PermissionViewTicket, domain.PermissionAddTicket, domain.PermissionChangeTicket)
	other := uuid.NewString()

	status, body := env.do(t, fiber.MethodPost, "/admin/tickets", env.token(t, alice),
		`{"title":"Monitor flickers","priority":"low","status":"resolved","attendant":"`+other+`"}`)
	require.Equal(t, fiber.StatusCreated, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, "open", data["status"])
	assert.Equal(t, alice.ID, data["attendant"].(map[string]any)["id"])
}

func TestAdminAttendantCannotResolve(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser(t, domain.RoleAttendant, false,
		domain.PermissionViewTicket, domain.PermissionAddTicket, domain.PermissionChangeTicket)
	ticket := env.addTicket(alice, domain.TicketStatusInProgress)

	status, body := env.do(t, fiber.MethodPut, "/admin/tickets/"+ticket.ID, env.token(t, alice), `{"status":"resolved"}`)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))
}

func TestAdminUsersRequiresSuperuser(t *testing.T) {
	env := newTestEnv(t)
	tech := env.addUser(t, domain.RoleTechnician, false, domain.PermissionViewTicket, domain.PermissionChangeTicket)
	root := env.addUser(t, domain.RoleTechnician, true)
	payload := `{"email":"new.hire@example.com","password":"long-enough","role":"attendant"}`

	status, _ := env.do(t, fiber.MethodPost, "/admin/users", env.token(t, tech), payload)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body := env.do(t, fiber.MethodPost, "/admin/users", env.token(t, root), payload)
	require.Equal(t, fiber.StatusCreated, status)
	created := body["data"].(map[string]any)
	assert.Equal(t, "attendant", created["role"])

	env.store.mu.Lock()
	granted := env.store.perms[created["id"].(string)]
	env.store.mu.Unlock()
	assert.ElementsMatch(t, []domain.Permission{
		domain.PermissionViewTicket, domain.PermissionAddTicket, domain.PermissionChangeTicket,
	}, granted)
}
