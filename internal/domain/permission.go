package domain

// Permission is a codename granted to a user for the ticket module.
type Permission string

const (
	PermissionViewTicket   Permission = "view_ticket"
	PermissionAddTicket    Permission = "add_ticket"
	PermissionChangeTicket Permission = "change_ticket"
	PermissionDeleteTicket Permission = "delete_ticket"
)
