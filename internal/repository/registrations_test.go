package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tessera/internal/apperrors"
	"tessera/internal/models"
)

var regColumns = []string{
	"id", "user_id", "status", "registration_date", "payment_date",
	"payment_id", "order_id", "created_at", "updated_at",
}

func pendingRegRow(id, userID int64) *sqlmock.Rows {
	return sqlmock.NewRows(regColumns).
		AddRow(id, userID, models.RegistrationStatusPending, now(), nil, nil, nil, now(), now())
}

func TestCreateWithHolds_InsufficientInventory(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT quantity, status FROM tickets WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"quantity", "status"}).
			AddRow(2, models.TicketStatusAvailable))
	mock.ExpectRollback()

	reg := &models.Registration{UserID: 1, Status: models.RegistrationStatusPending, RegistrationDate: now()}
	err := repo.CreateWithHolds(context.Background(), reg, []models.RegistrationDetail{
		{TicketID: 3, Quantity: 5},
	})

	assert.ErrorIs(t, err, apperrors.ErrInsufficientInventory)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithHolds_UnavailableTicket(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT quantity, status FROM tickets WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"quantity", "status"}).
			AddRow(10, models.TicketStatusUnavailable))
	mock.ExpectRollback()

	reg := &models.Registration{UserID: 1, Status: models.RegistrationStatusPending, RegistrationDate: now()}
	err := repo.CreateWithHolds(context.Background(), reg, []models.RegistrationDetail{
		{TicketID: 3, Quantity: 1},
	})

	assert.ErrorIs(t, err, apperrors.ErrInsufficientInventory)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithHolds_LocksInTicketIDOrder(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	// Lines arrive as (9, 2) but the lower id must be locked first.
	mock.ExpectQuery(`SELECT quantity, status FROM tickets WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"quantity", "status"}).
			AddRow(10, models.TicketStatusAvailable))
	mock.ExpectExec(`UPDATE tickets\s+SET quantity = quantity - \$1, reserved = reserved \+ \$1`).
		WithArgs(1, int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT quantity, status FROM tickets WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"quantity", "status"}).
			AddRow(4, models.TicketStatusAvailable))
	mock.ExpectExec(`UPDATE tickets\s+SET quantity = quantity - \$1, reserved = reserved \+ \$1`).
		WithArgs(2, int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO registrations`).
		WithArgs(int64(1), models.RegistrationStatusPending, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(int64(40), now(), now()))
	mock.ExpectQuery(`INSERT INTO registration_details`).
		WithArgs(int64(40), int64(9), 2).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(100)))
	mock.ExpectQuery(`INSERT INTO registration_details`).
		WithArgs(int64(40), int64(2), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(101)))
	mock.ExpectCommit()

	reg := &models.Registration{UserID: 1, Status: models.RegistrationStatusPending, RegistrationDate: now()}
	err := repo.CreateWithHolds(context.Background(), reg, []models.RegistrationDetail{
		{TicketID: 9, Quantity: 2},
		{TicketID: 2, Quantity: 1},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(40), reg.ID)
	assert.Len(t, reg.Details, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPayment_Idempotent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRegistrationRepository(db)

	paidAt := time.Now().Add(-time.Minute)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM registrations WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(40)).
		WillReturnRows(sqlmock.NewRows(regColumns).
			AddRow(int64(40), int64(1), models.RegistrationStatusConfirmed,
				now(), paidAt, "pay-1", "order-1", now(), now()))
	mock.ExpectCommit()

	result, err := repo.ConfirmPayment(context.Background(), 40, "pay-1", time.Now())

	require.NoError(t, err)
	assert.True(t, result.AlreadyConfirmed)
	assert.Empty(t, result.SoldOutTicketIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPayment_CancelledRegistration(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM registrations WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(40)).
		WillReturnRows(sqlmock.NewRows(regColumns).
			AddRow(int64(40), int64(1), models.RegistrationStatusCancelled,
				now(), nil, nil, nil, now(), now()))
	mock.ExpectRollback()

	_, err := repo.ConfirmPayment(context.Background(), 40, "pay-1", time.Now())

	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPayment_MarksSoldOut(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRegistrationRepository(db)

	confirmedAt := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM registrations WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(40)).
		WillReturnRows(pendingRegRow(40, 1))
	mock.ExpectQuery(`SELECT id, registration_id, ticket_id, quantity\s+FROM registration_details`).
		WithArgs(int64(40)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "registration_id", "ticket_id", "quantity"}).
			AddRow(int64(100), int64(40), int64(3), 2))
	// Last two units convert to sold, nothing remains.
	mock.ExpectQuery(`UPDATE tickets\s+SET sold = sold \+ LEAST\(reserved, \$1\)`).
		WithArgs(2, int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"quantity", "reserved", "status"}).
			AddRow(0, 0, models.TicketStatusAvailable))
	mock.ExpectExec(`UPDATE tickets SET status = \$1, updated_at = NOW\(\) WHERE id = \$2`).
		WithArgs(models.TicketStatusSoldOut, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`UPDATE registrations\s+SET status = \$1, payment_date = \$2`).
		WithArgs(models.RegistrationStatusConfirmed, confirmedAt, sqlmock.AnyArg(), int64(40)).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now()))
	mock.ExpectCommit()

	result, err := repo.ConfirmPayment(context.Background(), 40, "pay-1", confirmedAt)

	require.NoError(t, err)
	assert.False(t, result.AlreadyConfirmed)
	assert.Equal(t, []int64{3}, result.SoldOutTicketIDs)
	assert.Equal(t, models.RegistrationStatusConfirmed, result.Registration.Status)
	require.NotNil(t, result.Registration.PaymentDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpireReleasingHolds_SkipsNonPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status, payment_date FROM registrations WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(40)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "payment_date"}).
			AddRow(models.RegistrationStatusConfirmed, time.Now()))
	mock.ExpectCommit()

	err := repo.ExpireReleasingHolds(context.Background(), 40)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpireReleasingHolds_ReleasesInventory(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status, payment_date FROM registrations WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(40)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "payment_date"}).
			AddRow(models.RegistrationStatusPending, nil))
	mock.ExpectQuery(`SELECT id, registration_id, ticket_id, quantity\s+FROM registration_details`).
		WithArgs(int64(40)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "registration_id", "ticket_id", "quantity"}).
			AddRow(int64(100), int64(40), int64(3), 2))
	mock.ExpectExec(`UPDATE tickets\s+SET quantity = quantity \+ LEAST\(reserved, \$1\)`).
		WithArgs(2, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE registrations SET status = \$1, updated_at = NOW\(\) WHERE id = \$2`).
		WithArgs(models.RegistrationStatusExpired, int64(40)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ExpireReleasingHolds(context.Background(), 40)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetPaymentInfo_NonPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRegistrationRepository(db)

	mock.ExpectQuery(`UPDATE registrations\s+SET payment_id = \$1, order_id = \$2`).
		WithArgs("pay-1", "order-1", int64(40)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT status FROM registrations WHERE id = \$1`).
		WithArgs(int64(40)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).
			AddRow(models.RegistrationStatusExpired))

	err := repo.SetPaymentInfo(context.Background(), 40, "pay-1", "order-1")

	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
