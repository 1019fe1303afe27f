package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tessera/internal/apperrors"
	"tessera/internal/auth"
	"tessera/internal/models"
)

func newRegistrationService(inv *fakeInventory, pub *fakePublisher, gw *fakeGateway, holdTimeout time.Duration) *RegistrationService {
	return NewRegistrationService(
		&fakeRegStore{inv: inv},
		&fakeTicketStore{inv: inv},
		gw,
		pub,
		auth.OwnerOrAdmin{},
		holdTimeout,
	)
}

func availableTicket(inv *fakeInventory, quantity int, price string) models.Ticket {
	return inv.addTicket(models.Ticket{
		EventAreaID: 1,
		Name:        "Standard",
		Price:       price,
		Allocated:   quantity,
		Quantity:    quantity,
		Status:      models.TicketStatusAvailable,
	})
}

func TestRegistrationCreate_HoldsInventory(t *testing.T) {
	inv := newFakeInventory()
	pub := &fakePublisher{}
	svc := newRegistrationService(inv, pub, &fakeGateway{}, 15*time.Minute)
	ticket := availableTicket(inv, 10, "25.00")

	actor := auth.Actor{ID: 1, Role: auth.RoleAttendee}
	reg, err := svc.Create(context.Background(), actor, &models.CreateRegistrationRequest{
		Lines: []models.RegistrationLine{{TicketID: ticket.ID, Quantity: 3}},
	})

	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusPending, reg.Status)
	assert.Equal(t, actor.ID, reg.UserID)

	after := inv.ticket(ticket.ID)
	assert.Equal(t, 7, after.Quantity)
	assert.Equal(t, 3, after.Reserved)
	assert.Equal(t, 0, after.Sold)
	assert.Equal(t, 1, pub.count(models.EventRegistrationCreated))
}

func TestRegistrationCreate_AllOrNothing(t *testing.T) {
	inv := newFakeInventory()
	svc := newRegistrationService(inv, &fakePublisher{}, &fakeGateway{}, 15*time.Minute)
	plenty := availableTicket(inv, 10, "25.00")
	scarce := availableTicket(inv, 1, "40.00")

	actor := auth.Actor{ID: 1, Role: auth.RoleAttendee}
	_, err := svc.Create(context.Background(), actor, &models.CreateRegistrationRequest{
		Lines: []models.RegistrationLine{
			{TicketID: plenty.ID, Quantity: 2},
			{TicketID: scarce.ID, Quantity: 5},
		},
	})

	assert.ErrorIs(t, err, apperrors.ErrInsufficientInventory)
	// The passing line must not keep its hold.
	assert.Equal(t, 10, inv.ticket(plenty.ID).Quantity)
	assert.Equal(t, 0, inv.ticket(plenty.ID).Reserved)
}

func TestRegistrationCreate_MergesDuplicateLines(t *testing.T) {
	inv := newFakeInventory()
	svc := newRegistrationService(inv, &fakePublisher{}, &fakeGateway{}, 15*time.Minute)
	ticket := availableTicket(inv, 10, "25.00")

	actor := auth.Actor{ID: 1, Role: auth.RoleAttendee}
	reg, err := svc.Create(context.Background(), actor, &models.CreateRegistrationRequest{
		Lines: []models.RegistrationLine{
			{TicketID: ticket.ID, Quantity: 2},
			{TicketID: ticket.ID, Quantity: 3},
		},
	})

	require.NoError(t, err)
	require.Len(t, reg.Details, 1)
	assert.Equal(t, 5, reg.Details[0].Quantity)
	assert.Equal(t, 5, inv.ticket(ticket.ID).Reserved)
}

func TestRegistrationCreate_RejectsNonPositiveQuantity(t *testing.T) {
	inv := newFakeInventory()
	svc := newRegistrationService(inv, &fakePublisher{}, &fakeGateway{}, 15*time.Minute)
	ticket := availableTicket(inv, 10, "25.00")

	actor := auth.Actor{ID: 1, Role: auth.RoleAttendee}
	_, err := svc.Create(context.Background(), actor, &models.CreateRegistrationRequest{
		Lines: []models.RegistrationLine{{TicketID: ticket.ID, Quantity: 0}},
	})

	assert.ErrorIs(t, err, apperrors.ErrInvalidQuantity)
}

func TestRegistrationCreate_ForOtherUserRequiresAdmin(t *testing.T) {
	inv := newFakeInventory()
	svc := newRegistrationService(inv, &fakePublisher{}, &fakeGateway{}, 15*time.Minute)
	ticket := availableTicket(inv, 10, "25.00")

	attendee := auth.Actor{ID: 1, Role: auth.RoleAttendee}
	_, err := svc.Create(context.Background(), attendee, &models.CreateRegistrationRequest{
		UserID: 2,
		Lines:  []models.RegistrationLine{{TicketID: ticket.ID, Quantity: 1}},
	})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	admin := auth.Actor{ID: 99, Role: auth.RoleAdmin}
	reg, err := svc.Create(context.Background(), admin, &models.CreateRegistrationRequest{
		UserID: 2,
		Lines:  []models.RegistrationLine{{TicketID: ticket.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), reg.UserID)
}

func TestRegistrationCreate_ConcurrentNoOversell(t *testing.T) {
	inv := newFakeInventory()
	svc := newRegistrationService(inv, &fakePublisher{}, &fakeGateway{}, 15*time.Minute)
	ticket := availableTicket(inv, 5, "25.00")

	const attempts = 20
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := svc.Create(context.Background(),
				auth.Actor{ID: userID, Role: auth.RoleAttendee},
				&models.CreateRegistrationRequest{
					Lines: []models.RegistrationLine{{TicketID: ticket.ID, Quantity: 1}},
				})
			results <- err
		}(int64(i + 1))
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, apperrors.ErrInsufficientInventory)
		}
	}

	assert.Equal(t, 5, succeeded)
	after := inv.ticket(ticket.ID)
	assert.Equal(t, 0, after.Quantity)
	assert.Equal(t, 5, after.Reserved)
	assert.Equal(t, 5, after.Allocated-after.Quantity-after.Sold)
}

func TestRegistrationUpdate_NonOwnerForbidden(t *testing.T) {
	inv := newFakeInventory()
	svc := newRegistrationService(inv, &fakePublisher{}, &fakeGateway{}, 15*time.Minute)
	ticket := availableTicket(inv, 10, "25.00")

	owner := auth.Actor{ID: 1, Role: auth.RoleAttendee}
	reg, err := svc.Create(context.Background(), owner, &models.CreateRegistrationRequest{
		Lines: []models.RegistrationLine{{TicketID: ticket.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	stranger := auth.Actor{ID: 2, Role: auth.RoleAttendee}
	_, err = svc.Update(context.Background(), stranger, reg.ID, &models.UpdateRegistrationRequest{
		Lines: []models.RegistrationLine{{TicketID: ticket.ID, Quantity: 2}},
	})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestRegistrationUpdate_SwapsHolds(t *testing.T) {
	inv := newFakeInventory()
	svc := newRegistrationService(inv, &fakePublisher{}, &fakeGateway{}, 15*time.Minute)
	first := availableTicket(inv, 10, "25.00")
	second := availableTicket(inv, 10, "40.00")

	owner := auth.Actor{ID: 1, Role: auth.RoleAttendee}
	reg, err := svc.Create(context.Background(), owner, &models.CreateRegistrationRequest{
		Lines: []models.RegistrationLine{{TicketID: first.ID, Quantity: 4}},
	})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), owner, reg.ID, &models.UpdateRegistrationRequest{
		Lines: []models.RegistrationLine{{TicketID: second.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, inv.ticket(first.ID).Reserved)
	assert.Equal(t, 10, inv.ticket(first.ID).Quantity)
	assert.Equal(t, 2, inv.ticket(second.ID).Reserved)
	assert.Equal(t, 8, inv.ticket(second.ID).Quantity)
}

func TestRegistrationDelete_ReleasesHoldsAndCancelsPayment(t *testing.T) {
	inv := newFakeInventory()
	pub := &fakePublisher{}
	gw := &fakeGateway{}
	svc := newRegistrationService(inv, pub, gw, 15*time.Minute)
	ticket := availableTicket(inv, 10, "25.00")

	owner := auth.Actor{ID: 1, Role: auth.RoleAttendee}
	reg, err := svc.Create(context.Background(), owner, &models.CreateRegistrationRequest{
		Lines: []models.RegistrationLine{{TicketID: ticket.ID, Quantity: 3}},
	})
	require.NoError(t, err)

	regStore := &fakeRegStore{inv: inv}
	require.NoError(t, regStore.SetPaymentInfo(context.Background(), reg.ID, "pay-7", "order-7"))

	require.NoError(t, svc.Delete(context.Background(), owner, reg.ID))

	assert.Equal(t, 10, inv.ticket(ticket.ID).Quantity)
	assert.Equal(t, 0, inv.ticket(ticket.ID).Reserved)
	assert.Equal(t, []string{"pay-7"}, gw.cancelled)
	assert.Equal(t, 1, pub.count(models.EventRegistrationCancelled))
}

func TestExpireOverdue_ReleasesOnlyOldPending(t *testing.T) {
	inv := newFakeInventory()
	pub := &fakePublisher{}
	svc := newRegistrationService(inv, pub, &fakeGateway{}, 15*time.Minute)
	ticket := availableTicket(inv, 10, "25.00")

	owner := auth.Actor{ID: 1, Role: auth.RoleAttendee}
	stale, err := svc.Create(context.Background(), owner, &models.CreateRegistrationRequest{
		Lines: []models.RegistrationLine{{TicketID: ticket.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	fresh, err := svc.Create(context.Background(), owner, &models.CreateRegistrationRequest{
		Lines: []models.RegistrationLine{{TicketID: ticket.ID, Quantity: 3}},
	})
	require.NoError(t, err)

	// Backdate the first registration past the hold timeout.
	inv.mu.Lock()
	inv.regs[stale.ID].RegistrationDate = time.Now().Add(-time.Hour)
	inv.mu.Unlock()

	expired, err := svc.ExpireOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	after := inv.ticket(ticket.ID)
	assert.Equal(t, 7, after.Quantity)
	assert.Equal(t, 3, after.Reserved)
	assert.Equal(t, 1, pub.count(models.EventRegistrationExpired))

	inv.mu.Lock()
	assert.Equal(t, models.RegistrationStatusExpired, inv.regs[stale.ID].Status)
	assert.Equal(t, models.RegistrationStatusPending, inv.regs[fresh.ID].Status)
	inv.mu.Unlock()
}
