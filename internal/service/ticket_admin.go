package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/access"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/workflow"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// Choice is one option of an enumerated form field.
type Choice struct {
	Value string
	Label string
}

// FormField describes one editable admin field.
type FormField struct {
	Name      string
	Label     string
	Kind      string
	Required  bool
	MaxLength int
	Choices   []Choice
}

// CreateForm describes the admin creation form. Attendant and status are
// never part of it: both are set server side.
type CreateForm struct {
	Fields []FormField
}

// EditForm describes the admin edit form for one ticket.
type EditForm struct {
	Ticket    *domain.Ticket
	Fields    []FormField
	ReadOnly  []string
	CanChange bool
	CanDelete bool
}

// TicketInput is the admin creation payload.
type TicketInput struct {
	Title       string
	Description string
	Priority    string
}

// TicketUpdateInput is a partial admin edit. Nil fields are left unchanged.
type TicketUpdateInput struct {
	Title       *string
	Description *string
	Priority    *string
	Status      *string
}

var readOnlyFields = []string{"attendant", "created_at", "updated_at"}

// CreateForm returns the creation form descriptor.
func (s *TicketService) CreateForm(principal *domain.Principal) (CreateForm, error) {
	if !access.CanCreate(principal) {
		return CreateForm{}, apperrors.NewForbidden("inactive users cannot create tickets")
	}
	return CreateForm{Fields: baseFields()}, nil
}

// EditForm returns the edit descriptor of a ticket in scope.
func (s *TicketService) EditForm(ctx context.Context, principal *domain.Principal, ticketID string) (EditForm, error) {
	ticket, err := s.Get(ctx, principal, ticketID)
	if err != nil {
		return EditForm{}, err
	}
	if !access.CanRead(principal, ticket) {
		return EditForm{}, apperrors.NewForbidden("you can only open your own tickets")
	}

	fields := baseFields()
	fields = append(fields, FormField{
		Name:     "status",
		Label:    "Status",
		Kind:     "choice",
		Required: true,
		Choices:  statusChoices(access.StatusChoices(principal, ticket)),
	})
	return EditForm{
		Ticket:    ticket,
		Fields:    fields,
		ReadOnly:  append([]string(nil), readOnlyFields...),
		CanChange: access.CanUpdate(principal, ticket),
		CanDelete: access.CanDelete(principal, ticket),
	}, nil
}

// AdminCreate opens a ticket owned by principal with the initial status.
func (s *TicketService) AdminCreate(ctx context.Context, principal *domain.Principal, input TicketInput) (*domain.Ticket, error) {
	if !access.CanCreate(principal) {
		return nil, apperrors.NewForbidden("inactive users cannot create tickets")
	}

	title, err := validateTitle(input.Title)
	if err != nil {
		return nil, err
	}
	priority := domain.TicketPriorityMedium
	if strings.TrimSpace(input.Priority) != "" {
		if priority, err = parsePriority(input.Priority); err != nil {
			return nil, err
		}
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: normalizeDescription(input.Description),
		Priority:    priority,
		Status:      workflow.InitialStatus,
		AttendantID: principal.ID,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	ticket.Attendant = &domain.User{ID: principal.ID, Email: principal.Email, Role: principal.Role}

	s.publishEvent(ctx, events.NewEvent(events.EventTicketCreated, ticket.ID, principal, events.TicketCreatedPayload{
		AttendantID: ticket.AttendantID,
		Priority:    ticket.Priority,
		Title:       ticket.Title,
	}))
	return ticket, nil
}

// AdminUpdate applies an admin edit. Status changes pass the save-time guard and
// the transition table, and are written with a compare-and-swap on the status
// that was loaded.
func (s *TicketService) AdminUpdate(ctx context.Context, principal *domain.Principal, ticketID string, input TicketUpdateInput) (*domain.Ticket, error) {
	persisted, err := s.Get(ctx, principal, ticketID)
	if err != nil {
		return nil, err
	}
	if !access.CanUpdate(principal, persisted) {
		return nil, apperrors.NewForbidden("you can only change your own tickets")
	}

	updated := *persisted
	var changed []string

	if input.Title != nil {
		title, err := validateTitle(*input.Title)
		if err != nil {
			return nil, err
		}
		if title != persisted.Title {
			updated.Title = title
			changed = append(changed, "title")
		}
	}
	if input.Description != nil {
		description := normalizeDescription(*input.Description)
		if !sameDescription(description, persisted.Description) {
			updated.Description = description
			changed = append(changed, "description")
		}
	}
	if input.Priority != nil {
		priority, err := parsePriority(*input.Priority)
		if err != nil {
			return nil, err
		}
		if priority != persisted.Priority {
			updated.Priority = priority
			changed = append(changed, "priority")
		}
	}
	if input.Status != nil {
		status, err := parseRequestedStatus(*input.Status)
		if err != nil {
			return nil, err
		}
		if err := access.CheckSave(principal, persisted.Status, status); err != nil {
			return nil, err
		}
		if status != persisted.Status {
			if err := workflow.Validate(persisted.Status, status); err != nil {
				return nil, err
			}
			updated.Status = status
			changed = append(changed, "status")
		}
	}

	if err := s.tickets.Update(ctx, &updated, persisted.Status, principal.ID); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, apperrors.NewConflict("ticket status changed since it was loaded; reload and retry", map[string]any{"ticket_id": persisted.ID})
		}
		return nil, mapTicketError(err)
	}

	if len(changed) > 0 {
		s.publishEvent(ctx, events.NewEvent(events.EventTicketUpdated, updated.ID, principal, events.TicketUpdatedPayload{Fields: changed}))
	}
	if updated.Status != persisted.Status {
		s.metrics.RecordTransition(string(persisted.Status), string(updated.Status))
		s.publishEvent(ctx, events.NewEvent(events.EventTicketStatusChanged, updated.ID, principal, events.TicketStatusChangedPayload{
			OldStatus: persisted.Status,
			NewStatus: updated.Status,
			Source:    domain.ChangeSourceAdmin,
		}))
	}
	s.logger.Info("ticket updated from admin",
		zap.String("ticket_id", updated.ID),
		zap.String("actor_id", principal.ID),
		zap.Strings("fields", changed))
	return &updated, nil
}

// AdminDelete removes a ticket. Superusers only.
func (s *TicketService) AdminDelete(ctx context.Context, principal *domain.Principal, ticketID string) error {
	ticket, err := s.Get(ctx, principal, ticketID)
	if err != nil {
		return err
	}
	if !access.CanDelete(principal, ticket) {
		return apperrors.NewForbidden("only superusers can delete tickets")
	}
	if err := s.tickets.Delete(ctx, ticket.ID); err != nil {
		return mapTicketError(err)
	}
	s.publishEvent(ctx, events.NewEvent(events.EventTicketDeleted, ticket.ID, principal, events.TicketDeletedPayload{Title: ticket.Title}))
	return nil
}

func baseFields() []FormField {
	return []FormField{
		{Name: "title", Label: "Title", Kind: "text", Required: true, MaxLength: domain.MaxTitleLength},
		{Name: "description", Label: "Description", Kind: "textarea"},
		{Name: "priority", Label: "Priority", Kind: "choice", Required: true, Choices: priorityChoices()},
	}
}

func validateTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	if utf8.RuneCountInString(title) > domain.MaxTitleLength {
		return "", apperrors.NewValidationError("title is too long", map[string]any{
			"field":      "title",
			"max_length": domain.MaxTitleLength,
		})
	}
	return title, nil
}

func parsePriority(raw string) (domain.TicketPriority, error) {
	priority, ok := domain.ParseTicketPriority(strings.TrimSpace(raw))
	if !ok {
		return "", apperrors.NewValidationError("unknown priority", map[string]any{
			"field":   "priority",
			"value":   raw,
			"allowed": priorityStrings(domain.TicketPriorities()),
		})
	}
	return priority, nil
}

func normalizeDescription(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func sameDescription(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func statusChoices(statuses []domain.TicketStatus) []Choice {
	choices := make([]Choice, 0, len(statuses))
	for _, status := range statuses {
		choices = append(choices, Choice{Value: string(status), Label: status.Label()})
	}
	return choices
}

func priorityChoices() []Choice {
	priorities := domain.TicketPriorities()
	choices := make([]Choice, 0, len(priorities))
	for _, priority := range priorities {
		choices = append(choices, Choice{Value: string(priority), Label: priority.Label()})
	}
	return choices
}

func statusStrings(statuses []domain.TicketStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, string(status))
	}
	return out
}

func priorityStrings(priorities []domain.TicketPriority) []string {
	out := make([]string, 0, len(priorities))
	for _, priority := range priorities {
		out = append(out, string(priority))
	}
	return out
}

func orderableKeys() []string {
	keys := make([]string, 0, len(repository.OrderableColumns))
	for key := range repository.OrderableColumns {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
