package handlers

import (
	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
)

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	attendant := dto.AttendantResponse{ID: ticket.AttendantID}
	if ticket.Attendant != nil {
		attendant.Email = ticket.Attendant.Email
		attendant.Role = ticket.Attendant.Role
	}
	return dto.TicketResponse{
		ID:          ticket.ID,
		Title:       ticket.Title,
		Description: ticket.Description,
		Priority:    ticket.Priority,
		Status:      ticket.Status,
		Attendant:   attendant,
		CreatedAt:   ticket.CreatedAt,
		UpdatedAt:   ticket.UpdatedAt,
	}
}

func ticketResponses(tickets []domain.Ticket) []dto.TicketResponse {
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return items
}

func historyResponses(entries []domain.TicketHistory) []dto.TicketHistoryResponse {
	resp := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.TicketHistoryResponse{
			ID:        entry.ID,
			ChangedBy: entry.ChangedBy,
			OldStatus: entry.OldStatus,
			NewStatus: entry.NewStatus,
			Source:    entry.Source,
			CreatedAt: entry.CreatedAt,
		})
	}
	return resp
}

func userResponse(user *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:          user.ID,
		Email:       user.Email,
		Role:        user.Role,
		IsStaff:     user.IsStaff,
		IsSuperuser: user.IsSuperuser,
	}
}

func formFields(fields []service.FormField) []dto.FormFieldResponse {
	out := make([]dto.FormFieldResponse, 0, len(fields))
	for _, field := range fields {
		resp := dto.FormFieldResponse{
			Name:      field.Name,
			Label:     field.Label,
			Kind:      field.Kind,
			Required:  field.Required,
			MaxLength: field.MaxLength,
		}
		for _, choice := range field.Choices {
			resp.Choices = append(resp.Choices, dto.ChoiceResponse{Value: choice.Value, Label: choice.Label})
		}
		out = append(out, resp)
	}
	return out
}

func pageMeta(page service.TicketPage) dto.ListMeta {
	return dto.ListMeta{Total: page.Total, Page: page.Page, PageSize: page.PageSize}
}
