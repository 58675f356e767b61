package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/access"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/workflow"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// maxTransitionAttempts bounds re-validation after losing a status race.
	maxTransitionAttempts = 3
)

// TicketService coordinates ticket workflows for the API and admin surfaces.
type TicketService struct {
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	tracer     trace.Tracer
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// TicketQuery carries the user supplied list filters.
type TicketQuery struct {
	Statuses      []domain.TicketStatus
	Priorities    []domain.TicketPriority
	AttendantID   *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Search        *string
	// Ordering is a column name with an optional "-" prefix for descending.
	Ordering string
	Page     int
	PageSize int
}

// TicketPage is one page of a scoped ticket listing.
type TicketPage struct {
	Tickets  []domain.Ticket
	Total    int
	Page     int
	PageSize int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		tracer:     otel.Tracer("github.com/spec-kit/helpdesk/internal/service"),
	}
}

// List returns the page of tickets visible to principal that match query.
func (s *TicketService) List(ctx context.Context, principal *domain.Principal, query TicketQuery) (page TicketPage, err error) {
	ctx, span := s.tracer.Start(ctx, "TicketService.List")
	defer func() { endSpan(span, err) }()

	scope, err := access.VisibleTickets(principal)
	if err != nil {
		return TicketPage{}, err
	}
	filter, err := buildFilter(query)
	if err != nil {
		return TicketPage{}, err
	}
	scope.Apply(&filter)
	span.SetAttributes(attribute.Bool("scope.all", scope.All()))

	tickets, total, err := s.tickets.List(ctx, filter)
	if err != nil {
		return TicketPage{}, apperrors.MapError(err)
	}
	return TicketPage{
		Tickets:  tickets,
		Total:    total,
		Page:     filter.Offset/filter.Limit + 1,
		PageSize: filter.Limit,
	}, nil
}

// Get returns a ticket if it exists and is in the principal's scope. Anything
// else is reported as not found.
func (s *TicketService) Get(ctx context.Context, principal *domain.Principal, ticketID string) (*domain.Ticket, error) {
	scope, err := access.VisibleTickets(principal)
	if err != nil {
		return nil, err
	}
	return s.loadInScope(ctx, scope, ticketID)
}

// UpdateStatus moves a ticket along the transition table on behalf of principal.
func (s *TicketService) UpdateStatus(ctx context.Context, principal *domain.Principal, ticketID, requested string) (ticket *domain.Ticket, err error) {
	ctx, span := s.tracer.Start(ctx, "TicketService.UpdateStatus",
		trace.WithAttributes(attribute.String("ticket.id", ticketID), attribute.String("status.requested", requested)))
	defer func() { endSpan(span, err) }()

	if err := workflow.Authorize(principal); err != nil {
		return nil, err
	}
	next, err := parseRequestedStatus(requested)
	if err != nil {
		return nil, err
	}
	scope, err := access.VisibleTickets(principal)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		current, err := s.loadInScope(ctx, scope, ticketID)
		if err != nil {
			return nil, err
		}
		if err := workflow.Validate(current.Status, next); err != nil {
			return nil, err
		}

		updated, err := s.tickets.TransitionStatus(ctx, repository.StatusChange{
			TicketID:  current.ID,
			From:      current.Status,
			To:        next,
			ChangedBy: principal.ID,
			Source:    domain.ChangeSourceAPI,
		})
		switch {
		case errors.Is(err, repository.ErrStatusConflict) && attempt < maxTransitionAttempts:
			s.logger.Debug("status changed concurrently; re-validating",
				zap.String("ticket_id", current.ID),
				zap.Int("attempt", attempt))
			continue
		case errors.Is(err, repository.ErrStatusConflict):
			return nil, apperrors.NewConflict("ticket status is changing concurrently; retry", map[string]any{"ticket_id": current.ID})
		case err != nil:
			return nil, mapTicketError(err)
		}

		span.SetAttributes(attribute.String("status.from", string(current.Status)), attribute.Int("attempts", attempt))
		s.metrics.RecordTransition(string(current.Status), string(next))
		s.publishEvent(ctx, events.NewEvent(events.EventTicketStatusChanged, updated.ID, principal, events.TicketStatusChangedPayload{
			OldStatus: current.Status,
			NewStatus: next,
			Source:    domain.ChangeSourceAPI,
		}))
		return updated, nil
	}
}

// History returns the status audit trail of a ticket in the principal's scope.
func (s *TicketService) History(ctx context.Context, principal *domain.Principal, ticketID string) ([]domain.TicketHistory, error) {
	ticket, err := s.Get(ctx, principal, ticketID)
	if err != nil {
		return nil, err
	}
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	entries, err := s.history.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (s *TicketService) loadInScope(ctx context.Context, scope access.Scope, ticketID string) (*domain.Ticket, error) {
	if _, err := uuid.Parse(ticketID); err != nil {
		return nil, ticketNotFound(ticketID)
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapTicketError(err)
	}
	if !scope.Contains(ticket) {
		return nil, ticketNotFound(ticketID)
	}
	return ticket, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func parseRequestedStatus(raw string) (domain.TicketStatus, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperrors.NewValidationError("status is required", map[string]any{"field": "status"})
	}
	status, ok := domain.ParseTicketStatus(raw)
	if !ok {
		return "", apperrors.NewValidationError("unknown status", map[string]any{
			"field":   "status",
			"value":   raw,
			"allowed": statusStrings(domain.TicketStatuses()),
		})
	}
	return status, nil
}

func buildFilter(query TicketQuery) (repository.TicketFilter, error) {
	filter := repository.TicketFilter{
		AttendantID:   query.AttendantID,
		Statuses:      query.Statuses,
		Priorities:    query.Priorities,
		SearchTerm:    query.Search,
		CreatedAfter:  query.CreatedAfter,
		CreatedBefore: query.CreatedBefore,
	}

	ordering := strings.TrimSpace(query.Ordering)
	if ordering == "" {
		ordering = "-created_at"
	}
	column := strings.TrimPrefix(ordering, "-")
	if _, ok := repository.OrderableColumns[column]; !ok {
		return filter, apperrors.NewValidationError("unknown ordering field", map[string]any{
			"field":   "ordering",
			"value":   query.Ordering,
			"allowed": orderableKeys(),
		})
	}
	filter.OrderBy = column
	filter.Descending = strings.HasPrefix(ordering, "-")

	page := query.Page
	if page < 1 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	filter.Limit = size
	filter.Offset = (page - 1) * size
	return filter, nil
}

func mapTicketError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("ticket", nil)
	}
	return apperrors.MapError(err)
}

func ticketNotFound(id string) error {
	return apperrors.NewNotFound("ticket", map[string]any{"id": id})
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
