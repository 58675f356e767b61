package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TicketFilter captures list restrictions, user filters and ordering.
type TicketFilter struct {
	// ScopeAttendantID is the visibility restriction set by the access scope.
	ScopeAttendantID *string
	AttendantID      *string
	Statuses         []domain.TicketStatus
	Priorities       []domain.TicketPriority
	SearchTerm       *string
	CreatedAfter     *time.Time
	CreatedBefore    *time.Time
	OrderBy          string
	Descending       bool
	Limit            int
	Offset           int
}

// OrderableColumns maps public ordering keys to columns.
var OrderableColumns = map[string]string{
	"created_at": "t.created_at",
	"updated_at": "t.updated_at",
	"title":      "t.title",
	"priority":   "t.priority",
	"status":     "t.status",
}

// StatusChange describes a compare-and-swap on a ticket's status.
type StatusChange struct {
	TicketID  string
	From      domain.TicketStatus
	To        domain.TicketStatus
	ChangedBy string
	Source    domain.ChangeSource
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error)
	// TransitionStatus applies change only if the stored status still equals change.From.
	TransitionStatus(ctx context.Context, change StatusChange) (*domain.Ticket, error)
	// Update writes editable fields only if the stored status still equals expected.
	Update(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus, changedBy string) error
	Delete(ctx context.Context, id string) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `t.id, t.title, t.description, t.priority, t.status, t.attendant_id,
               t.created_at, t.updated_at, u.email, u.role`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, priority, status, attendant_id)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Priority,
		ticket.Status,
		ticket.AttendantID,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
        FROM tickets t JOIN users u ON u.id = t.attendant_id
        WHERE t.id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ScopeAttendantID != nil {
		args = append(args, *filter.ScopeAttendantID)
		clauses = append(clauses, fmt.Sprintf("t.attendant_id=$%d", len(args)))
	}
	if filter.AttendantID != nil {
		args = append(args, *filter.AttendantID)
		clauses = append(clauses, fmt.Sprintf("t.attendant_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedAfter != nil {
		args = append(args, *filter.CreatedAfter)
		clauses = append(clauses, fmt.Sprintf("t.created_at >= $%d", len(args)))
	}
	if filter.CreatedBefore != nil {
		args = append(args, *filter.CreatedBefore)
		clauses = append(clauses, fmt.Sprintf("t.created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + escapeLike(strings.ToLower(strings.TrimSpace(*filter.SearchTerm))) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(t.title) LIKE %s OR LOWER(COALESCE(t.description, '')) LIKE %s)", placeholder, placeholder))
	}
	where := strings.Join(clauses, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM tickets t WHERE ` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	column, ok := OrderableColumns[filter.OrderBy]
	if !ok {
		column = OrderableColumns["created_at"]
	}
	direction := "ASC"
	if filter.Descending {
		direction = "DESC"
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets t JOIN users u ON u.id = t.attendant_id
             WHERE %s ORDER BY %s %s, t.id %s LIMIT %d OFFSET %d`,
		ticketColumns, where, column, direction, direction, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, 0, err
	}
	return tickets, total, nil
}

func (r *ticketRepository) TransitionStatus(ctx context.Context, change StatusChange) (ticket *domain.Ticket, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	cmd, err := tx.Exec(ctx, `
        UPDATE tickets SET status=$1, updated_at=NOW()
        WHERE id=$2 AND status=$3`, change.To, change.TicketID, change.From)
	if err != nil {
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		err = missingOrConflict(ctx, tx, change.TicketID)
		return nil, err
	}
	if err = insertHistory(ctx, tx, change); err != nil {
		return nil, err
	}

	query := `SELECT ` + ticketColumns + `
        FROM tickets t JOIN users u ON u.id = t.attendant_id
        WHERE t.id=$1`
	ticket, err = scanTicket(tx.QueryRow(ctx, query, change.TicketID))
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus, changedBy string) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `
        UPDATE tickets SET title=$1, description=$2, priority=$3, status=$4, updated_at=NOW()
        WHERE id=$5 AND status=$6
        RETURNING updated_at`,
		ticket.Title,
		ticket.Description,
		ticket.Priority,
		ticket.Status,
		ticket.ID,
		expected,
	).Scan(&ticket.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = missingOrConflict(ctx, tx, ticket.ID)
		}
		return err
	}
	if ticket.Status != expected {
		err = insertHistory(ctx, tx, StatusChange{
			TicketID:  ticket.ID,
			From:      expected,
			To:        ticket.Status,
			ChangedBy: changedBy,
			Source:    domain.ChangeSourceAdmin,
		})
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func missingOrConflict(ctx context.Context, tx pgx.Tx, id string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStatusConflict
}

func insertHistory(ctx context.Context, tx pgx.Tx, change StatusChange) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO ticket_history (ticket_id, changed_by, old_status, new_status, source)
        VALUES ($1,$2,$3,$4,$5)`,
		change.TicketID, change.ChangedBy, change.From, change.To, change.Source)
	return err
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	attendant := domain.User{}
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Priority,
		&ticket.Status,
		&ticket.AttendantID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&attendant.Email,
		&attendant.Role,
	); err != nil {
		return nil, err
	}
	attendant.ID = ticket.AttendantID
	ticket.Attendant = &attendant
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}
