package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// AdminHandler serves the administrative ticket surface.
type AdminHandler struct {
	tickets *service.TicketService
	users   *service.AuthService
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(tickets *service.TicketService, users *service.AuthService) *AdminHandler {
	return &AdminHandler{tickets: tickets, users: users}
}

// ListTickets GET /admin/tickets. Same scope and filters as the API.
func (h *AdminHandler) ListTickets(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	query, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	page, err := h.tickets.List(c.UserContext(), principal, query)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponses(page.Tickets), "meta": pageMeta(page)})
}

// NewTicketForm GET /admin/tickets/new.
func (h *AdminHandler) NewTicketForm(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	form, err := h.tickets.CreateForm(principal)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.CreateFormResponse{Fields: formFields(form.Fields)}})
}

// CreateTicket POST /admin/tickets.
func (h *AdminHandler) CreateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.AdminTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.AdminCreate(c.UserContext(), principal, service.TicketInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// EditTicketForm GET /admin/tickets/:id.
func (h *AdminHandler) EditTicketForm(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	form, err := h.tickets.EditForm(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.EditFormResponse{
		Ticket:    ticketResponse(form.Ticket),
		Fields:    formFields(form.Fields),
		ReadOnly:  form.ReadOnly,
		CanChange: form.CanChange,
		CanDelete: form.CanDelete,
	}})
}

// UpdateTicket PUT or POST /admin/tickets/:id.
func (h *AdminHandler) UpdateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.AdminTicketUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.AdminUpdate(c.UserContext(), principal, c.Params("id"), service.TicketUpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Status:      req.Status,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// DeleteTicket DELETE /admin/tickets/:id.
func (h *AdminHandler) DeleteTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.tickets.AdminDelete(c.UserContext(), principal, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// CreateUser POST /admin/users. Superuser only, enforced by the router.
func (h *AdminHandler) CreateUser(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, err := h.users.RegisterUser(c.UserContext(), service.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		Role:        req.Role,
		IsStaff:     req.IsStaff,
		IsSuperuser: req.IsSuperuser,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": userResponse(user)})
}
