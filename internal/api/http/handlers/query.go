package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// parseTicketQuery reads list filters. Malformed values are rejected rather than ignored.
func parseTicketQuery(c *fiber.Ctx) (service.TicketQuery, error) {
	query := service.TicketQuery{
		Ordering: strings.TrimSpace(c.Query("ordering")),
		Page:     parseInt(c.Query("page"), 1),
		PageSize: parseInt(c.Query("page_size"), service.DefaultPageSize),
	}

	for _, raw := range splitList(c.Query("status")) {
		status, ok := domain.ParseTicketStatus(raw)
		if !ok {
			return query, invalidParam("status", raw)
		}
		query.Statuses = append(query.Statuses, status)
	}
	for _, raw := range splitList(c.Query("priority")) {
		priority, ok := domain.ParseTicketPriority(raw)
		if !ok {
			return query, invalidParam("priority", raw)
		}
		query.Priorities = append(query.Priorities, priority)
	}
	if raw := strings.TrimSpace(c.Query("attendant")); raw != "" {
		if _, err := uuid.Parse(raw); err != nil {
			return query, invalidParam("attendant", raw)
		}
		query.AttendantID = &raw
	}

	var err error
	if query.CreatedAfter, err = parseTime("created_after", c.Query("created_after")); err != nil {
		return query, err
	}
	if query.CreatedBefore, err = parseTime("created_before", c.Query("created_before")); err != nil {
		return query, err
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		query.Search = &search
	}
	return query, nil
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseTime(field, val string) (*time.Time, error) {
	if val == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid timestamp, expected RFC3339", map[string]any{"field": field, "value": val})
	}
	return &t, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func invalidParam(field, value string) error {
	return apperrors.NewValidationError("invalid filter value", map[string]any{"field": field, "value": value})
}
