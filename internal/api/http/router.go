package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
	Permissions    repository.PermissionRepository
}

// NewApp builds the fiber app. Values read from the request (params, query,
// body) are copied, so they stay valid after the handler returns; span
// attributes and events outlive the request buffer.
func NewApp(name string) *fiber.App {
	return fiber.New(fiber.Config{AppName: name, Immutable: true})
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/refresh", cfg.Auth.Refresh)
	authGroup.Post("/logout", cfg.Auth.Logout)

	tickets := api.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id/update_status", cfg.Tickets.UpdateStatus)
	tickets.Get("/:id/history", cfg.Tickets.History)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireAdminAccess(cfg.Permissions))
	admin.Get("/tickets", cfg.Admin.ListTickets)
	admin.Get("/tickets/new", cfg.Admin.NewTicketForm)
	admin.Post("/tickets", cfg.Admin.CreateTicket)
	admin.Get("/tickets/:id", cfg.Admin.EditTicketForm)
	admin.Put("/tickets/:id", cfg.Admin.UpdateTicket)
	admin.Post("/tickets/:id", cfg.Admin.UpdateTicket)
	admin.Delete("/tickets/:id", cfg.Admin.DeleteTicket)
	admin.Post("/users", auth.RequireSuperuser(), cfg.Admin.CreateUser)
}
