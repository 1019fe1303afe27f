package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"tessera/internal/apperrors"
	"tessera/internal/database"
	"tessera/internal/models"
)

const ticketColumns = `id, event_area_id, name, description, price, allocated,
	       quantity, reserved, sold, status, created_at, updated_at`

type TicketRepository struct {
	db *database.DB
}

func NewTicketRepository(db *database.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

func scanTicket(row interface{ Scan(...interface{}) error }, t *models.Ticket) error {
	return row.Scan(
		&t.ID,
		&t.EventAreaID,
		&t.Name,
		&t.Description,
		&t.Price,
		&t.Allocated,
		&t.Quantity,
		&t.Reserved,
		&t.Sold,
		&t.Status,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
}

// Create inserts a new ticket after re-checking the area capacity under a
// row lock on the area, so concurrent creates against the same area
// cannot both pass the check.
func (r *TicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	return r.db.RunInTx(ctx, func(tx *sql.Tx) error {
		capacity, err := lockAreaCapacity(ctx, tx, ticket.EventAreaID)
		if err != nil {
			return err
		}

		var existing int
		err = tx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(allocated), 0) FROM tickets WHERE event_area_id = $1`,
			ticket.EventAreaID,
		).Scan(&existing)
		if err != nil {
			return err
		}

		if err := models.ValidateAllocation(capacity, existing, ticket.Allocated); err != nil {
			return err
		}

		query := `
			INSERT INTO tickets (event_area_id, name, description, price, allocated, quantity, status)
			VALUES ($1, $2, $3, $4, $5, $5, $6)
			RETURNING id, created_at, updated_at`

		return tx.QueryRowContext(ctx, query,
			ticket.EventAreaID,
			ticket.Name,
			ticket.Description,
			ticket.Price,
			ticket.Allocated,
			ticket.Status,
		).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	})
}

// Update rewrites the catalog fields of a ticket. The capacity check
// excludes the ticket's own prior allocation; the remaining quantity is
// recomputed so that quantity + reserved + sold stays equal to the new
// allocation. Shrinking the allocation below reserved + sold is rejected.
func (r *TicketRepository) Update(ctx context.Context, ticket *models.Ticket) error {
	return r.db.RunInTx(ctx, func(tx *sql.Tx) error {
		var areaID int64
		var reserved, sold int
		err := tx.QueryRowContext(ctx,
			`SELECT event_area_id, reserved, sold FROM tickets WHERE id = $1 FOR UPDATE`,
			ticket.ID,
		).Scan(&areaID, &reserved, &sold)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("ticket %d: %w", ticket.ID, apperrors.ErrNotFound)
		}
		if err != nil {
			return err
		}

		capacity, err := lockAreaCapacity(ctx, tx, areaID)
		if err != nil {
			return err
		}

		var existing int
		err = tx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(allocated), 0) FROM tickets WHERE event_area_id = $1 AND id <> $2`,
			areaID, ticket.ID,
		).Scan(&existing)
		if err != nil {
			return err
		}

		if err := models.ValidateAllocation(capacity, existing, ticket.Allocated); err != nil {
			return err
		}
		if ticket.Allocated < reserved+sold {
			return fmt.Errorf("allocation %d is below the %d already reserved or sold: %w",
				ticket.Allocated, reserved+sold, apperrors.ErrInvalidQuantity)
		}

		ticket.EventAreaID = areaID
		ticket.Reserved = reserved
		ticket.Sold = sold
		ticket.Quantity = ticket.Allocated - reserved - sold

		query := `
			UPDATE tickets
			SET name = $1, description = $2, price = $3, allocated = $4,
			    quantity = $5, updated_at = NOW()
			WHERE id = $6
			RETURNING status, created_at, updated_at`

		return tx.QueryRowContext(ctx, query,
			ticket.Name,
			ticket.Description,
			ticket.Price,
			ticket.Allocated,
			ticket.Quantity,
			ticket.ID,
		).Scan(&ticket.Status, &ticket.CreatedAt, &ticket.UpdatedAt)
	})
}

// Delete removes a ticket. Tickets with live holds or completed sales are
// protected; deleting them would break the area accounting.
func (r *TicketRepository) Delete(ctx context.Context, id int64) error {
	err := r.db.RunInTx(ctx, func(tx *sql.Tx) error {
		var reserved, sold int
		err := tx.QueryRowContext(ctx,
			`SELECT reserved, sold FROM tickets WHERE id = $1 FOR UPDATE`,
			id,
		).Scan(&reserved, &sold)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("ticket %d: %w", id, apperrors.ErrNotFound)
		}
		if err != nil {
			return err
		}

		if reserved > 0 || sold > 0 {
			return fmt.Errorf("ticket %d has %d reserved and %d sold: %w",
				id, reserved, sold, apperrors.ErrConflict)
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM tickets WHERE id = $1`, id)
		return err
	})

	// Historical details of cancelled or expired registrations still
	// reference the row.
	if database.IsForeignKeyViolation(err) {
		return fmt.Errorf("ticket %d is referenced by past registrations: %w",
			id, apperrors.ErrConflict)
	}
	return err
}

// SetStatus toggles a ticket between AVAILABLE and UNAVAILABLE without
// touching its counters.
func (r *TicketRepository) SetStatus(ctx context.Context, id int64, status string) (*models.Ticket, error) {
	ticket := &models.Ticket{}
	query := `
		UPDATE tickets
		SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + ticketColumns

	err := scanTicket(r.db.QueryRowContext(ctx, query, status, id), ticket)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ticket %d: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *TicketRepository) GetByID(ctx context.Context, id int64) (*models.Ticket, error) {
	ticket := &models.Ticket{}
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`

	err := scanTicket(r.db.QueryRowContext(ctx, query, id), ticket)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ticket %d: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// GetByIDs fetches tickets preserving the order of ids, which matters
// when the ids come from a relevance-sorted search.
func (r *TicketRepository) GetByIDs(ctx context.Context, ids []int64) ([]models.Ticket, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[int64]models.Ticket, len(ids))
	for rows.Next() {
		var t models.Ticket
		if err := scanTicket(rows, &t); err != nil {
			return nil, err
		}
		byID[t.ID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tickets := make([]models.Ticket, 0, len(byID))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			tickets = append(tickets, t)
		}
	}
	return tickets, nil
}

func (r *TicketRepository) List(ctx context.Context, f models.TicketFilter) ([]models.Ticket, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	argIndex := 1

	if f.EventAreaID != nil {
		where += fmt.Sprintf(" AND event_area_id = $%d", argIndex)
		args = append(args, *f.EventAreaID)
		argIndex++
	}
	if f.Quantity != nil {
		where += fmt.Sprintf(" AND quantity >= $%d", argIndex)
		args = append(args, *f.Quantity)
		argIndex++
	}
	if f.Price != nil {
		where += fmt.Sprintf(" AND price <= $%d::numeric", argIndex)
		args = append(args, *f.Price)
		argIndex++
	}
	if f.Search != "" {
		where += fmt.Sprintf(" AND name ILIKE $%d", argIndex)
		args = append(args, "%"+f.Search+"%")
		argIndex++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + ticketColumns + ` FROM tickets` + where + ` ORDER BY id`
	if f.Page > 0 && f.PageSize > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
		args = append(args, f.PageSize, (f.Page-1)*f.PageSize)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		var t models.Ticket
		if err := scanTicket(rows, &t); err != nil {
			return nil, 0, err
		}
		tickets = append(tickets, t)
	}

	return tickets, total, rows.Err()
}

func lockAreaCapacity(ctx context.Context, tx *sql.Tx, areaID int64) (int, error) {
	var capacity int
	err := tx.QueryRowContext(ctx,
		`SELECT capacity FROM event_areas WHERE id = $1 FOR UPDATE`,
		areaID,
	).Scan(&capacity)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("event area %d: %w", areaID, apperrors.ErrNotFound)
	}
	return capacity, err
}
