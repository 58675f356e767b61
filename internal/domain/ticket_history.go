package domain

import "time"

// ChangeSource records which surface produced a history entry.
type ChangeSource string

const (
	ChangeSourceAPI   ChangeSource = "api"
	ChangeSourceAdmin ChangeSource = "admin"
)

// TicketHistory is an immutable status change entry.
type TicketHistory struct {
	ID        string
	TicketID  string
	ChangedBy string
	OldStatus TicketStatus
	NewStatus TicketStatus
	Source    ChangeSource
	CreatedAt time.Time
}
