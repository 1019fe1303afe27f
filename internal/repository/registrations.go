package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/lib/pq"

	"tessera/internal/apperrors"
	"tessera/internal/database"
	"tessera/internal/models"
)

const registrationColumns = `id, user_id, status, registration_date, payment_date,
	       payment_id, order_id, created_at, updated_at`

type RegistrationRepository struct {
	db *database.DB
}

func NewRegistrationRepository(db *database.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

func scanRegistration(row interface{ Scan(...interface{}) error }, reg *models.Registration) error {
	return row.Scan(
		&reg.ID,
		&reg.UserID,
		&reg.Status,
		&reg.RegistrationDate,
		&reg.PaymentDate,
		&reg.PaymentID,
		&reg.OrderID,
		&reg.CreatedAt,
		&reg.UpdatedAt,
	)
}

// CreateWithHolds validates availability and places an inventory hold for
// every line, then inserts the registration and its details — all in one
// transaction. Ticket rows are locked in ascending id order so concurrent
// multi-ticket registrations cannot deadlock.
func (r *RegistrationRepository) CreateWithHolds(ctx context.Context, reg *models.Registration, lines []models.RegistrationDetail) error {
	return r.db.RunInTx(ctx, func(tx *sql.Tx) error {
		for _, line := range sortedByTicketID(lines) {
			if err := reserveTicket(ctx, tx, line.TicketID, line.Quantity); err != nil {
				return err
			}
		}

		err := tx.QueryRowContext(ctx, `
			INSERT INTO registrations (user_id, status, registration_date)
			VALUES ($1, $2, $3)
			RETURNING id, created_at, updated_at`,
			reg.UserID,
			reg.Status,
			reg.RegistrationDate,
		).Scan(&reg.ID, &reg.CreatedAt, &reg.UpdatedAt)
		if err != nil {
			return err
		}

		reg.Details = reg.Details[:0]
		for _, line := range lines {
			line.RegistrationID = reg.ID
			err := tx.QueryRowContext(ctx, `
				INSERT INTO registration_details (registration_id, ticket_id, quantity)
				VALUES ($1, $2, $3)
				RETURNING id`,
				line.RegistrationID, line.TicketID, line.Quantity,
			).Scan(&line.ID)
			if err != nil {
				return err
			}
			reg.Details = append(reg.Details, line)
		}
		return nil
	})
}

// UpdateWithHolds replaces the line items of a pending registration,
// releasing the previous holds and placing new ones atomically. Lines
// absent from the new set are dropped; the whole operation re-validates
// against current availability.
func (r *RegistrationRepository) UpdateWithHolds(ctx context.Context, regID int64, lines []models.RegistrationDetail) (*models.Registration, error) {
	reg := &models.Registration{}
	err := r.db.RunInTx(ctx, func(tx *sql.Tx) error {
		err := scanRegistration(tx.QueryRowContext(ctx,
			`SELECT `+registrationColumns+` FROM registrations WHERE id = $1 FOR UPDATE`,
			regID), reg)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("registration %d: %w", regID, apperrors.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if reg.Status != models.RegistrationStatusPending {
			return fmt.Errorf("registration %d is %s: %w", regID, reg.Status, apperrors.ErrConflict)
		}

		oldLines, err := detailsInTx(ctx, tx, regID)
		if err != nil {
			return err
		}

		// Lock the union of old and new ticket rows up front, in id
		// order, before any counter moves.
		ids := unionTicketIDs(oldLines, lines)
		locked, err := lockTickets(ctx, tx, ids)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if !locked[line.TicketID] {
				return fmt.Errorf("ticket %d: %w", line.TicketID, apperrors.ErrNotFound)
			}
		}

		for _, line := range sortedByTicketID(oldLines) {
			if err := releaseTicket(ctx, tx, line.TicketID, line.Quantity); err != nil {
				return err
			}
		}
		for _, line := range sortedByTicketID(lines) {
			if err := reserveTicket(ctx, tx, line.TicketID, line.Quantity); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM registration_details WHERE registration_id = $1`, regID); err != nil {
			return err
		}

		reg.Details = nil
		for _, line := range lines {
			line.RegistrationID = regID
			err := tx.QueryRowContext(ctx, `
				INSERT INTO registration_details (registration_id, ticket_id, quantity)
				VALUES ($1, $2, $3)
				RETURNING id`,
				regID, line.TicketID, line.Quantity,
			).Scan(&line.ID)
			if err != nil {
				return err
			}
			reg.Details = append(reg.Details, line)
		}

		return tx.QueryRowContext(ctx,
			`UPDATE registrations SET updated_at = NOW() WHERE id = $1 RETURNING updated_at`,
			regID,
		).Scan(&reg.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// DeleteReleasingHolds removes a registration and its details. Holds of a
// still-pending registration go back to the sellable pool; quantities
// already converted to sold by a confirmed payment are never restored.
func (r *RegistrationRepository) DeleteReleasingHolds(ctx context.Context, regID int64) error {
	return r.db.RunInTx(ctx, func(tx *sql.Tx) error {
		reg := &models.Registration{}
		err := scanRegistration(tx.QueryRowContext(ctx,
			`SELECT `+registrationColumns+` FROM registrations WHERE id = $1 FOR UPDATE`,
			regID), reg)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("registration %d: %w", regID, apperrors.ErrNotFound)
		}
		if err != nil {
			return err
		}

		if reg.Status == models.RegistrationStatusPending {
			details, err := detailsInTx(ctx, tx, regID)
			if err != nil {
				return err
			}
			for _, line := range sortedByTicketID(details) {
				if err := releaseTicket(ctx, tx, line.TicketID, line.Quantity); err != nil {
					return err
				}
			}
		}

		// Details cascade.
		_, err = tx.ExecContext(ctx, `DELETE FROM registrations WHERE id = $1`, regID)
		return err
	})
}

// ConfirmPayment finalizes a registration: every held quantity is
// converted to sold and payment_date is set, all in one transaction.
// Re-delivery of the provider callback is a no-op once payment_date is
// set.
func (r *RegistrationRepository) ConfirmPayment(ctx context.Context, regID int64, paymentID string, now time.Time) (*models.PaymentConfirmation, error) {
	result := &models.PaymentConfirmation{}
	err := r.db.RunInTx(ctx, func(tx *sql.Tx) error {
		reg := &models.Registration{}
		err := scanRegistration(tx.QueryRowContext(ctx,
			`SELECT `+registrationColumns+` FROM registrations WHERE id = $1 FOR UPDATE`,
			regID), reg)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("registration %d: %w", regID, apperrors.ErrNotFound)
		}
		if err != nil {
			return err
		}
		result.Registration = reg

		if reg.PaymentDate != nil {
			result.AlreadyConfirmed = true
			return nil
		}
		if reg.Status != models.RegistrationStatusPending {
			return fmt.Errorf("registration %d is %s, holds are gone: %w",
				regID, reg.Status, apperrors.ErrConflict)
		}

		details, err := detailsInTx(ctx, tx, regID)
		if err != nil {
			return err
		}
		if len(details) == 0 {
			return fmt.Errorf("registration %d has no line items: %w", regID, apperrors.ErrNotFound)
		}
		reg.Details = details

		for _, line := range sortedByTicketID(details) {
			var quantity, reserved int
			var status string
			// The clamp keeps reserved at a floor of zero even if
			// counters drifted.
			err := tx.QueryRowContext(ctx, `
				UPDATE tickets
				SET sold = sold + LEAST(reserved, $1),
				    reserved = GREATEST(reserved - $1, 0),
				    updated_at = NOW()
				WHERE id = $2
				RETURNING quantity, reserved, status`,
				line.Quantity, line.TicketID,
			).Scan(&quantity, &reserved, &status)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("ticket %d: %w", line.TicketID, apperrors.ErrNotFound)
			}
			if err != nil {
				return err
			}

			if quantity == 0 && reserved == 0 && status != models.TicketStatusSoldOut {
				_, err := tx.ExecContext(ctx,
					`UPDATE tickets SET status = $1, updated_at = NOW() WHERE id = $2`,
					models.TicketStatusSoldOut, line.TicketID)
				if err != nil {
					return err
				}
				result.SoldOutTicketIDs = append(result.SoldOutTicketIDs, line.TicketID)
			}
		}

		reg.Status = models.RegistrationStatusConfirmed
		reg.PaymentDate = &now
		if paymentID != "" {
			reg.PaymentID = &paymentID
		}

		return tx.QueryRowContext(ctx, `
			UPDATE registrations
			SET status = $1, payment_date = $2,
			    payment_id = COALESCE($3, payment_id),
			    updated_at = NOW()
			WHERE id = $4
			RETURNING updated_at`,
			models.RegistrationStatusConfirmed,
			now,
			nullString(paymentID),
			regID,
		).Scan(&reg.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ExpireReleasingHolds releases the holds of a pending registration and
// marks it EXPIRED. Safe to race with payment confirmation: whoever locks
// the row first wins and the loser sees a non-pending status and backs
// off.
func (r *RegistrationRepository) ExpireReleasingHolds(ctx context.Context, regID int64) error {
	return r.db.RunInTx(ctx, func(tx *sql.Tx) error {
		var status string
		var paymentDate *time.Time
		err := tx.QueryRowContext(ctx,
			`SELECT status, payment_date FROM registrations WHERE id = $1 FOR UPDATE`,
			regID,
		).Scan(&status, &paymentDate)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if status != models.RegistrationStatusPending || paymentDate != nil {
			return nil
		}

		details, err := detailsInTx(ctx, tx, regID)
		if err != nil {
			return err
		}
		for _, line := range sortedByTicketID(details) {
			if err := releaseTicket(ctx, tx, line.TicketID, line.Quantity); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE registrations SET status = $1, updated_at = NOW() WHERE id = $2`,
			models.RegistrationStatusExpired, regID)
		return err
	})
}

func (r *RegistrationRepository) GetByID(ctx context.Context, id int64) (*models.Registration, error) {
	reg := &models.Registration{}
	err := scanRegistration(r.db.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id), reg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("registration %d: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (r *RegistrationRepository) FindByOrderID(ctx context.Context, orderID string) (*models.Registration, error) {
	reg := &models.Registration{}
	err := scanRegistration(r.db.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE order_id = $1`, orderID), reg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %q: %w", orderID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (r *RegistrationRepository) GetDetails(ctx context.Context, regID int64) ([]models.RegistrationDetail, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, registration_id, ticket_id, quantity
		FROM registration_details
		WHERE registration_id = $1
		ORDER BY ticket_id`, regID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDetails(rows)
}

func (r *RegistrationRepository) GetByUserID(ctx context.Context, userID int64) ([]models.Registration, error) {
	return r.list(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
}

func (r *RegistrationRepository) List(ctx context.Context) ([]models.Registration, error) {
	return r.list(ctx,
		`SELECT `+registrationColumns+` FROM registrations ORDER BY created_at DESC`)
}

// GetExpired retrieves pending registrations whose hold has outlived the
// timeout.
func (r *RegistrationRepository) GetExpired(ctx context.Context, olderThan time.Time) ([]models.Registration, error) {
	return r.list(ctx, `
		SELECT `+registrationColumns+`
		FROM registrations
		WHERE status = 'PENDING'
		  AND payment_date IS NULL
		  AND registration_date < $1
		ORDER BY registration_date ASC`, olderThan)
}

// SetPaymentInfo records the gateway session on a pending registration.
func (r *RegistrationRepository) SetPaymentInfo(ctx context.Context, regID int64, paymentID, orderID string) error {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		UPDATE registrations
		SET payment_id = $1, order_id = $2, updated_at = NOW()
		WHERE id = $3 AND status = 'PENDING'
		RETURNING id`,
		paymentID, orderID, regID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		var status string
		if lookupErr := r.db.QueryRowContext(ctx,
			`SELECT status FROM registrations WHERE id = $1`, regID,
		).Scan(&status); lookupErr != nil {
			return fmt.Errorf("registration %d: %w", regID, apperrors.ErrNotFound)
		}
		return fmt.Errorf("registration %d is %s: %w", regID, status, apperrors.ErrConflict)
	}
	return err
}

func (r *RegistrationRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.Registration, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []models.Registration
	for rows.Next() {
		var reg models.Registration
		if err := scanRegistration(rows, &reg); err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

// reserveTicket locks one ticket row, validates availability and moves
// the requested quantity from the sellable pool into reserved.
func reserveTicket(ctx context.Context, tx *sql.Tx, ticketID int64, qty int) error {
	var available int
	var status string
	err := tx.QueryRowContext(ctx,
		`SELECT quantity, status FROM tickets WHERE id = $1 FOR UPDATE`,
		ticketID,
	).Scan(&available, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("ticket %d: %w", ticketID, apperrors.ErrNotFound)
	}
	if err != nil {
		return err
	}

	if status != models.TicketStatusAvailable {
		return fmt.Errorf("ticket %d is %s: %w", ticketID, status, apperrors.ErrInsufficientInventory)
	}
	if qty > available {
		return fmt.Errorf("ticket %d: requested %d of %d remaining: %w",
			ticketID, qty, available, apperrors.ErrInsufficientInventory)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE tickets
		SET quantity = quantity - $1, reserved = reserved + $1, updated_at = NOW()
		WHERE id = $2`,
		qty, ticketID)
	return err
}

// releaseTicket moves a held quantity back into the sellable pool,
// clamped so reserved never goes negative.
func releaseTicket(ctx context.Context, tx *sql.Tx, ticketID int64, qty int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE tickets
		SET quantity = quantity + LEAST(reserved, $1),
		    reserved = GREATEST(reserved - $1, 0),
		    updated_at = NOW()
		WHERE id = $2`,
		qty, ticketID)
	return err
}

func lockTickets(ctx context.Context, tx *sql.Tx, ids []int64) (map[int64]bool, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM tickets WHERE id = ANY($1) ORDER BY id FOR UPDATE`,
		pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locked := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		locked[id] = true
	}
	return locked, rows.Err()
}

func detailsInTx(ctx context.Context, tx *sql.Tx, regID int64) ([]models.RegistrationDetail, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, registration_id, ticket_id, quantity
		FROM registration_details
		WHERE registration_id = $1
		ORDER BY ticket_id`, regID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDetails(rows)
}

func collectDetails(rows *sql.Rows) ([]models.RegistrationDetail, error) {
	var details []models.RegistrationDetail
	for rows.Next() {
		var d models.RegistrationDetail
		if err := rows.Scan(&d.ID, &d.RegistrationID, &d.TicketID, &d.Quantity); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

func sortedByTicketID(lines []models.RegistrationDetail) []models.RegistrationDetail {
	sorted := make([]models.RegistrationDetail, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TicketID < sorted[j].TicketID })
	return sorted
}

func unionTicketIDs(a, b []models.RegistrationDetail) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, set := range [][]models.RegistrationDetail{a, b} {
		for _, line := range set {
			if !seen[line.TicketID] {
				seen[line.TicketID] = true
				ids = append(ids, line.TicketID)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
