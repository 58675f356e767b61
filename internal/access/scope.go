// Package access decides which tickets a principal can see and what it may do with them.
package access

import (
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// Scope is the set of tickets visible to one principal. It is used both as an
// in-memory predicate and as a restriction pushed down to the repository.
type Scope struct {
	all         bool
	attendantID string
}

// VisibleTickets resolves the scope for principal. Superusers and roles whose
// policy sees the whole queue get every ticket; everyone else only their own.
func VisibleTickets(principal *domain.Principal) (Scope, error) {
	if principal == nil {
		return Scope{}, apperrors.NewUnauthorized("authentication required")
	}
	if principal.IsSuperuser {
		return Scope{all: true}, nil
	}
	policy, err := principal.Role.Policy()
	if err != nil {
		return Scope{}, apperrors.NewForbidden("unknown role")
	}
	if policy.SeesAllTickets {
		return Scope{all: true}, nil
	}
	return Scope{attendantID: principal.ID}, nil
}

// All reports whether the scope is unrestricted.
func (s Scope) All() bool {
	return s.all
}

// Contains reports whether ticket belongs to the scope.
func (s Scope) Contains(ticket *domain.Ticket) bool {
	if ticket == nil {
		return false
	}
	return s.all || ticket.AttendantID == s.attendantID
}

// Apply narrows filter to the scope. User-supplied filters are kept and can only
// narrow the result further.
func (s Scope) Apply(filter *repository.TicketFilter) {
	if s.all {
		filter.ScopeAttendantID = nil
		return
	}
	id := s.attendantID
	filter.ScopeAttendantID = &id
}
