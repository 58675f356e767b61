package access

import (
	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// CanCreate reports whether principal may open tickets from the admin surface.
func CanCreate(principal *domain.Principal) bool {
	return principal != nil && principal.IsActive
}

// CanRead reports whether principal may open the admin form. A nil ticket means
// the module level question.
func CanRead(principal *domain.Principal, ticket *domain.Ticket) bool {
	return ownsOrSuperuser(principal, ticket)
}

// CanUpdate follows the same ownership rule as CanRead. Technicians are not exempt.
func CanUpdate(principal *domain.Principal, ticket *domain.Ticket) bool {
	return ownsOrSuperuser(principal, ticket)
}

// CanDelete is superuser only.
func CanDelete(principal *domain.Principal, ticket *domain.Ticket) bool {
	return principal != nil && principal.IsSuperuser && ticket != nil
}

func ownsOrSuperuser(principal *domain.Principal, ticket *domain.Ticket) bool {
	if principal == nil {
		return false
	}
	if principal.IsSuperuser || ticket == nil {
		return true
	}
	return ticket.AttendantID == principal.ID
}

// StatusChoices lists the statuses offered on the admin edit form. Only a display
// concern; CheckSave enforces the rule.
func StatusChoices(principal *domain.Principal, ticket *domain.Ticket) []domain.TicketStatus {
	choices := domain.TicketStatuses()
	if principal == nil || principal.IsSuperuser || ticket == nil {
		return choices
	}
	if policy, err := principal.Role.Policy(); err == nil && policy.MayChooseResolved {
		return choices
	}
	filtered := make([]domain.TicketStatus, 0, len(choices))
	for _, status := range choices {
		if status != domain.TicketStatusResolved {
			filtered = append(filtered, status)
		}
	}
	return filtered
}

// CheckSave rejects an admin save that would move a ticket into resolved when the
// actor's role may not choose it. The check looks at the role only.
func CheckSave(principal *domain.Principal, persisted, proposed domain.TicketStatus) error {
	if principal == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if proposed != domain.TicketStatusResolved || persisted == domain.TicketStatusResolved {
		return nil
	}
	policy, err := principal.Role.Policy()
	if err != nil || !policy.MayChooseResolved {
		return apperrors.NewForbidden("attendants cannot mark tickets as resolved")
	}
	return nil
}

// HasAdminAccess admits superusers and anyone holding at least one ticket permission.
func HasAdminAccess(principal *domain.Principal, perms []domain.Permission) bool {
	if principal == nil || !principal.IsActive {
		return false
	}
	return principal.IsSuperuser || len(perms) > 0
}
