// Package workflow holds the fixed ticket status graph and the role gate for walking it.
package workflow

import (
	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// The graph is cyclic: canceled tickets reopen and resolved tickets go back to work.
// resolved -> canceled is deliberately absent.
var transitionTable = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:       {domain.TicketStatusInProgress, domain.TicketStatusCanceled},
	domain.TicketStatusInProgress: {domain.TicketStatusResolved, domain.TicketStatusCanceled},
	domain.TicketStatusResolved:   {domain.TicketStatusInProgress},
	domain.TicketStatusCanceled:   {domain.TicketStatusOpen},
}

// InitialStatus is the status every ticket is created with.
const InitialStatus = domain.TicketStatusOpen

// Allowed reports whether next is a legal successor of current.
func Allowed(current, next domain.TicketStatus) bool {
	for _, candidate := range transitionTable[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Successors returns a copy of the legal next states for current.
func Successors(current domain.TicketStatus) []domain.TicketStatus {
	return append([]domain.TicketStatus(nil), transitionTable[current]...)
}

// Table returns a copy of the full transition graph.
func Table() map[domain.TicketStatus][]domain.TicketStatus {
	out := make(map[domain.TicketStatus][]domain.TicketStatus, len(transitionTable))
	for from, next := range transitionTable {
		out[from] = append([]domain.TicketStatus(nil), next...)
	}
	return out
}

// Validate returns an INVALID_TRANSITION error when next is not reachable from current.
func Validate(current, next domain.TicketStatus) error {
	if Allowed(current, next) {
		return nil
	}
	successors := Successors(current)
	allowed := make([]string, 0, len(successors))
	for _, s := range successors {
		allowed = append(allowed, string(s))
	}
	return apperrors.NewInvalidTransition(string(current), string(next), allowed)
}

// Authorize decides whether the principal may invoke status transitions at all.
// Ownership is irrelevant here: the gate is the role.
func Authorize(principal *domain.Principal) error {
	if principal == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if principal.IsSuperuser {
		return nil
	}
	policy, err := principal.Role.Policy()
	if err != nil {
		return apperrors.NewForbidden("unknown role")
	}
	if !policy.MayTransitionStatus {
		return apperrors.NewForbidden("only technicians can change ticket status")
	}
	return nil
}
