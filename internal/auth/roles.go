package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/access"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// RequireAuthenticated ensures a principal is present.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		return c.Next()
	}
}

// RequireSuperuser restricts a route to superusers.
func RequireSuperuser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if !principal.IsSuperuser {
			return fiber.NewError(http.StatusForbidden, "superuser required")
		}
		return c.Next()
	}
}

// RequireAdminAccess admits superusers and principals holding any ticket permission.
func RequireAdminAccess(perms repository.PermissionRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if principal.IsSuperuser {
			return c.Next()
		}
		granted, err := perms.ListForUser(c.UserContext(), principal.ID)
		if err != nil {
			return apperrors.MapError(err)
		}
		if !access.HasAdminAccess(principal, granted) {
			return fiber.NewError(http.StatusForbidden, "admin access requires a ticket permission")
		}
		return c.Next()
	}
}
