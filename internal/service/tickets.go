package service

import (
	"context"
	"fmt"

	"tessera/internal/apperrors"
	"tessera/internal/auth"
	"tessera/internal/logger"
	"tessera/internal/models"
)

type TicketService struct {
	ticketStore TicketStore
	areaStore   AreaStore
	searcher    TicketSearcher
	authz       auth.Authorizer
}

func NewTicketService(ticketStore TicketStore, areaStore AreaStore, searcher TicketSearcher, authz auth.Authorizer) *TicketService {
	return &TicketService{
		ticketStore: ticketStore,
		areaStore:   areaStore,
		searcher:    searcher,
		authz:       authz,
	}
}

// Create adds a ticket allocation under an event area. The ticket starts
// UNAVAILABLE and must be activated before it can be reserved.
func (s *TicketService) Create(ctx context.Context, actor auth.Actor, req *models.CreateTicketRequest) (*models.Ticket, error) {
	area, err := s.areaStore.GetByID(ctx, req.EventAreaID)
	if err != nil {
		return nil, fmt.Errorf("failed to get area: %w", err)
	}
	if !s.authz.CanMutate(actor, area.CreatedBy) {
		return nil, fmt.Errorf("actor %d cannot manage area %d: %w", actor.ID, area.ID, apperrors.ErrUnauthorized)
	}

	if req.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d: %w", req.Quantity, apperrors.ErrInvalidQuantity)
	}
	if _, err := priceToCents(req.Price); err != nil {
		return nil, fmt.Errorf("invalid price %q: %w", req.Price, apperrors.ErrInvalidQuantity)
	}

	ticket := &models.Ticket{
		EventAreaID: req.EventAreaID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Allocated:   req.Quantity,
		Status:      models.TicketStatusUnavailable,
	}

	if err := s.ticketStore.Create(ctx, ticket); err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	s.index(ctx, ticket)
	return ticket, nil
}

// Update changes the catalog fields and the allocation of a ticket. The
// allocation can shrink only down to what is already held or sold.
func (s *TicketService) Update(ctx context.Context, actor auth.Actor, id int64, req *models.UpdateTicketRequest) (*models.Ticket, error) {
	ticket, err := s.authorizedTicket(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if req.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d: %w", req.Quantity, apperrors.ErrInvalidQuantity)
	}
	if _, err := priceToCents(req.Price); err != nil {
		return nil, fmt.Errorf("invalid price %q: %w", req.Price, apperrors.ErrInvalidQuantity)
	}

	ticket.Name = req.Name
	ticket.Description = req.Description
	ticket.Price = req.Price
	ticket.Allocated = req.Quantity

	if err := s.ticketStore.Update(ctx, ticket); err != nil {
		return nil, fmt.Errorf("failed to update ticket: %w", err)
	}

	s.index(ctx, ticket)
	return ticket, nil
}

// Delete removes a ticket that has no holds and no sales.
func (s *TicketService) Delete(ctx context.Context, actor auth.Actor, id int64) error {
	if _, err := s.authorizedTicket(ctx, actor, id); err != nil {
		return err
	}

	if err := s.ticketStore.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete ticket: %w", err)
	}

	if s.searcher != nil {
		if err := s.searcher.DeleteTicket(ctx, id); err != nil {
			logger.WithContext(ctx).Error("Failed to remove ticket from search index",
				"error", err, "ticket_id", id)
		}
	}
	return nil
}

// SetStatus activates or deactivates a ticket. SOLD_OUT is derived from
// the counters and cannot be set directly.
func (s *TicketService) SetStatus(ctx context.Context, actor auth.Actor, id int64, status string) (*models.Ticket, error) {
	if status != models.TicketStatusAvailable && status != models.TicketStatusUnavailable {
		return nil, fmt.Errorf("status %q cannot be set directly: %w", status, apperrors.ErrInvalidQuantity)
	}

	if _, err := s.authorizedTicket(ctx, actor, id); err != nil {
		return nil, err
	}

	ticket, err := s.ticketStore.SetStatus(ctx, id, status)
	if err != nil {
		return nil, fmt.Errorf("failed to set ticket status: %w", err)
	}
	return ticket, nil
}

func (s *TicketService) Get(ctx context.Context, id int64) (*models.Ticket, error) {
	return s.ticketStore.GetByID(ctx, id)
}

// List returns a catalog page. Free-text queries go through the search
// index when one is configured; hits are rehydrated from the database so
// the returned counters are current.
func (s *TicketService) List(ctx context.Context, f models.TicketFilter) (*models.ListTicketsResponse, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 20
	}

	if f.Search != "" && s.searcher != nil {
		ids, total, err := s.searcher.Search(ctx, f.Search, f.EventAreaID, f.Page, f.PageSize)
		if err != nil {
			return nil, fmt.Errorf("search failed: %w", err)
		}

		tickets, err := s.ticketStore.GetByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load tickets: %w", err)
		}

		return &models.ListTicketsResponse{
			Tickets:    tickets,
			TotalCount: int(total),
			Page:       f.Page,
			PageSize:   f.PageSize,
		}, nil
	}

	tickets, total, err := s.ticketStore.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}

	return &models.ListTicketsResponse{
		Tickets:    tickets,
		TotalCount: total,
		Page:       f.Page,
		PageSize:   f.PageSize,
	}, nil
}

func (s *TicketService) authorizedTicket(ctx context.Context, actor auth.Actor, id int64) (*models.Ticket, error) {
	ticket, err := s.ticketStore.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	area, err := s.areaStore.GetByID(ctx, ticket.EventAreaID)
	if err != nil {
		return nil, fmt.Errorf("failed to get area: %w", err)
	}
	if !s.authz.CanMutate(actor, area.CreatedBy) {
		return nil, fmt.Errorf("actor %d cannot manage area %d: %w", actor.ID, area.ID, apperrors.ErrUnauthorized)
	}

	return ticket, nil
}

func (s *TicketService) index(ctx context.Context, ticket *models.Ticket) {
	if s.searcher == nil {
		return
	}
	if err := s.searcher.IndexTicket(ctx, ticket); err != nil {
		logger.WithContext(ctx).Error("Failed to index ticket",
			"error", err, "ticket_id", ticket.ID)
	}
}
