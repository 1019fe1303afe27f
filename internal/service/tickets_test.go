package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tessera/internal/apperrors"
	"tessera/internal/auth"
	"tessera/internal/models"
)

func newTicketService(inv *fakeInventory, areas *fakeAreaStore) *TicketService {
	return NewTicketService(&fakeTicketStore{inv: inv}, areas, nil, auth.OwnerOrAdmin{})
}

func organizerArea(t *testing.T, areas *fakeAreaStore, ownerID int64) *models.EventArea {
	t.Helper()
	area := &models.EventArea{EventID: 1, Name: "Main hall", Capacity: 100, CreatedBy: ownerID}
	require.NoError(t, areas.Create(context.Background(), area))
	return area
}

func TestTicketCreate_StartsUnavailable(t *testing.T) {
	inv := newFakeInventory()
	areas := newFakeAreaStore()
	svc := newTicketService(inv, areas)
	area := organizerArea(t, areas, 1)

	organizer := auth.Actor{ID: 1, Role: auth.RoleOrganizer}
	ticket, err := svc.Create(context.Background(), organizer, &models.CreateTicketRequest{
		EventAreaID: area.ID,
		Name:        "Standard",
		Quantity:    40,
		Price:       "25.00",
	})

	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusUnavailable, ticket.Status)
	assert.Equal(t, 40, ticket.Allocated)
	assert.Equal(t, 40, ticket.Quantity)
}

func TestTicketCreate_OnlyAreaOwnerOrAdmin(t *testing.T) {
	inv := newFakeInventory()
	areas := newFakeAreaStore()
	svc := newTicketService(inv, areas)
	area := organizerArea(t, areas, 1)

	req := &models.CreateTicketRequest{
		EventAreaID: area.ID,
		Name:        "Standard",
		Quantity:    10,
		Price:       "25.00",
	}

	other := auth.Actor{ID: 2, Role: auth.RoleOrganizer}
	_, err := svc.Create(context.Background(), other, req)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	admin := auth.Actor{ID: 2, Role: auth.RoleAdmin}
	_, err = svc.Create(context.Background(), admin, req)
	assert.NoError(t, err)
}

func TestTicketCreate_RejectsBadInput(t *testing.T) {
	inv := newFakeInventory()
	areas := newFakeAreaStore()
	svc := newTicketService(inv, areas)
	area := organizerArea(t, areas, 1)
	organizer := auth.Actor{ID: 1, Role: auth.RoleOrganizer}

	_, err := svc.Create(context.Background(), organizer, &models.CreateTicketRequest{
		EventAreaID: area.ID, Name: "Standard", Quantity: 0, Price: "25.00",
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuantity)

	_, err = svc.Create(context.Background(), organizer, &models.CreateTicketRequest{
		EventAreaID: area.ID, Name: "Standard", Quantity: 10, Price: "not-a-price",
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuantity)
}

func TestTicketSetStatus_RejectsSoldOut(t *testing.T) {
	inv := newFakeInventory()
	areas := newFakeAreaStore()
	svc := newTicketService(inv, areas)
	area := organizerArea(t, areas, 1)
	organizer := auth.Actor{ID: 1, Role: auth.RoleOrganizer}

	ticket := inv.addTicket(models.Ticket{
		EventAreaID: area.ID, Name: "Standard", Allocated: 10, Quantity: 10,
		Status: models.TicketStatusUnavailable,
	})

	_, err := svc.SetStatus(context.Background(), organizer, ticket.ID, models.TicketStatusSoldOut)
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuantity)

	updated, err := svc.SetStatus(context.Background(), organizer, ticket.ID, models.TicketStatusAvailable)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusAvailable, updated.Status)
}
