package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusCanceled   TicketStatus = "canceled"
)

// TicketStatuses lists every status in display order.
func TicketStatuses() []TicketStatus {
	return []TicketStatus{
		TicketStatusOpen,
		TicketStatusInProgress,
		TicketStatusResolved,
		TicketStatusCanceled,
	}
}

// ParseTicketStatus validates a raw status value.
func ParseTicketStatus(raw string) (TicketStatus, bool) {
	for _, s := range TicketStatuses() {
		if string(s) == raw {
			return s, true
		}
	}
	return "", false
}

// Label returns the human readable name of the status.
func (s TicketStatus) Label() string {
	switch s {
	case TicketStatusOpen:
		return "Open"
	case TicketStatusInProgress:
		return "In progress"
	case TicketStatusResolved:
		return "Resolved"
	case TicketStatusCanceled:
		return "Canceled"
	default:
		return string(s)
	}
}

// TicketPriority enumerates ticket urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityCritical TicketPriority = "critical"
)

// TicketPriorities lists every priority from lowest to highest.
func TicketPriorities() []TicketPriority {
	return []TicketPriority{
		TicketPriorityLow,
		TicketPriorityMedium,
		TicketPriorityHigh,
		TicketPriorityCritical,
	}
}

// ParseTicketPriority validates a raw priority value.
func ParseTicketPriority(raw string) (TicketPriority, bool) {
	for _, p := range TicketPriorities() {
		if string(p) == raw {
			return p, true
		}
	}
	return "", false
}

// Label returns the human readable name of the priority.
func (p TicketPriority) Label() string {
	switch p {
	case TicketPriorityLow:
		return "Low"
	case TicketPriorityMedium:
		return "Medium"
	case TicketPriorityHigh:
		return "High"
	case TicketPriorityCritical:
		return "Critical"
	default:
		return string(p)
	}
}

// MaxTitleLength bounds Ticket.Title in characters.
const MaxTitleLength = 255

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID          string
	Title       string
	Description *string
	Priority    TicketPriority
	Status      TicketStatus
	AttendantID string
	Attendant   *User
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
