package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role enumerates the helpdesk profiles a user can hold.
type Role string

const (
	RoleAttendant  Role = "attendant"
	RoleTechnician Role = "technician"
)

// Roles lists every known role.
func Roles() []Role {
	return []Role{RoleAttendant, RoleTechnician}
}

// ParseRole validates a raw role value.
func ParseRole(raw string) (Role, bool) {
	for _, r := range Roles() {
		if string(r) == raw {
			return r, true
		}
	}
	return "", false
}

// RolePolicy is the set of decisions that depend on a role. Every role must have one.
type RolePolicy struct {
	// SeesAllTickets widens the visible scope from owned tickets to the whole queue.
	SeesAllTickets bool
	// MayTransitionStatus allows the status update endpoint.
	MayTransitionStatus bool
	// MayChooseResolved keeps "resolved" among the admin edit choices.
	MayChooseResolved bool
}

var rolePolicies = map[Role]RolePolicy{
	RoleAttendant: {
		SeesAllTickets:      false,
		MayTransitionStatus: false,
		MayChooseResolved:   false,
	},
	RoleTechnician: {
		SeesAllTickets:      true,
		MayTransitionStatus: true,
		MayChooseResolved:   true,
	},
}

// Policy returns the decisions attached to the role.
func (r Role) Policy() (RolePolicy, error) {
	policy, ok := rolePolicies[r]
	if !ok {
		return RolePolicy{}, fmt.Errorf("no policy for role %q", r)
	}
	return policy, nil
}

// User is a helpdesk account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         Role
	IsStaff      bool
	IsSuperuser  bool
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeEmail lower-cases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
