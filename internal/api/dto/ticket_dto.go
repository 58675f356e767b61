package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// UpdateStatusRequest payload for PATCH /tickets/:id/update_status.
type UpdateStatusRequest struct {
	Status string `json:"status" form:"status"`
}

// AttendantResponse identifies the ticket creator.
type AttendantResponse struct {
	ID    string      `json:"id"`
	Email string      `json:"email,omitempty"`
	Role  domain.Role `json:"role,omitempty"`
}

// TicketResponse is the full ticket representation.
type TicketResponse struct {
	ID          string                `json:"id"`
	Title       string                `json:"title"`
	Description *string               `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	Status      domain.TicketStatus   `json:"status"`
	Attendant   AttendantResponse     `json:"attendant"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// TicketHistoryResponse is one status change entry.
type TicketHistoryResponse struct {
	ID        string              `json:"id"`
	ChangedBy string              `json:"changed_by"`
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Source    domain.ChangeSource `json:"source"`
	CreatedAt time.Time           `json:"created_at"`
}

// ListMeta describes pagination of a list response.
type ListMeta struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// AdminTicketRequest is the admin creation payload. Attendant and status are not accepted.
type AdminTicketRequest struct {
	Title       string `json:"title" form:"title"`
	Description string `json:"description" form:"description"`
	Priority    string `json:"priority" form:"priority"`
}

// AdminTicketUpdateRequest is a partial admin edit.
type AdminTicketUpdateRequest struct {
	Title       *string `json:"title" form:"title"`
	Description *string `json:"description" form:"description"`
	Priority    *string `json:"priority" form:"priority"`
	Status      *string `json:"status" form:"status"`
}

// ChoiceResponse is an option of an enumerated field.
type ChoiceResponse struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FormFieldResponse describes one admin form field.
type FormFieldResponse struct {
	Name      string           `json:"name"`
	Label     string           `json:"label"`
	Kind      string           `json:"kind"`
	Required  bool             `json:"required"`
	MaxLength int              `json:"max_length,omitempty"`
	Choices   []ChoiceResponse `json:"choices,omitempty"`
}

// CreateFormResponse is the admin creation form descriptor.
type CreateFormResponse struct {
	Fields []FormFieldResponse `json:"fields"`
}

// EditFormResponse is the admin edit form descriptor.
type EditFormResponse struct {
	Ticket    TicketResponse      `json:"ticket"`
	Fields    []FormFieldResponse `json:"fields"`
	ReadOnly  []string            `json:"read_only"`
	CanChange bool                `json:"can_change"`
	CanDelete bool                `json:"can_delete"`
}
