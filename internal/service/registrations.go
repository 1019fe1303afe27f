package service

import (
	"context"
	"fmt"
	"time"

	"tessera/internal/apperrors"
	"tessera/internal/auth"
	"tessera/internal/logger"
	"tessera/internal/models"
)

type RegistrationService struct {
	regStore      RegistrationStore
	ticketStore   TicketStore
	paymentClient PaymentGateway
	natsClient    EventPublisher
	authz         auth.Authorizer
	holdTimeout   time.Duration
}

func NewRegistrationService(regStore RegistrationStore, ticketStore TicketStore, paymentClient PaymentGateway, natsClient EventPublisher, authz auth.Authorizer, holdTimeout time.Duration) *RegistrationService {
	return &RegistrationService{
		regStore:      regStore,
		ticketStore:   ticketStore,
		paymentClient: paymentClient,
		natsClient:    natsClient,
		authz:         authz,
		holdTimeout:   holdTimeout,
	}
}

// Create places a registration with inventory holds on every requested
// ticket. Either every line gets its hold or the whole request fails.
func (s *RegistrationService) Create(ctx context.Context, actor auth.Actor, req *models.CreateRegistrationRequest) (*models.Registration, error) {
	userID := req.UserID
	if userID == 0 {
		userID = actor.ID
	}
	if userID != actor.ID && !actor.IsAdmin() {
		return nil, fmt.Errorf("actor %d cannot register for user %d: %w", actor.ID, userID, apperrors.ErrUnauthorized)
	}

	lines, err := normalizeLines(req.Lines)
	if err != nil {
		return nil, err
	}

	reg := &models.Registration{
		UserID:           userID,
		Status:           models.RegistrationStatusPending,
		RegistrationDate: time.Now(),
	}

	if err := s.regStore.CreateWithHolds(ctx, reg, lines); err != nil {
		return nil, fmt.Errorf("failed to create registration: %w", err)
	}

	s.publish(ctx, models.EventRegistrationCreated, models.RegistrationCreatedEvent{
		RegistrationID: reg.ID,
		UserID:         reg.UserID,
		TicketIDs:      ticketIDs(lines),
		Timestamp:      time.Now(),
	})

	return reg, nil
}

// Get returns a registration with its line items. Only the owner and
// admins may read it.
func (s *RegistrationService) Get(ctx context.Context, actor auth.Actor, id int64) (*models.Registration, error) {
	reg, err := s.regStore.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.authz.CanMutate(actor, reg.UserID) {
		return nil, fmt.Errorf("actor %d cannot read registration %d: %w", actor.ID, id, apperrors.ErrUnauthorized)
	}

	details, err := s.regStore.GetDetails(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get details: %w", err)
	}
	reg.Details = details
	return reg, nil
}

// List returns the actor's registrations, or all registrations for an
// admin.
func (s *RegistrationService) List(ctx context.Context, actor auth.Actor) ([]models.Registration, error) {
	if actor.IsAdmin() {
		return s.regStore.List(ctx)
	}
	return s.regStore.GetByUserID(ctx, actor.ID)
}

// Update replaces the line items of a pending registration. Previous
// holds are released and new ones placed in the same transaction.
func (s *RegistrationService) Update(ctx context.Context, actor auth.Actor, id int64, req *models.UpdateRegistrationRequest) (*models.Registration, error) {
	reg, err := s.regStore.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.authz.CanMutate(actor, reg.UserID) {
		return nil, fmt.Errorf("actor %d cannot modify registration %d: %w", actor.ID, id, apperrors.ErrUnauthorized)
	}

	lines, err := normalizeLines(req.Lines)
	if err != nil {
		return nil, err
	}

	updated, err := s.regStore.UpdateWithHolds(ctx, id, lines)
	if err != nil {
		return nil, fmt.Errorf("failed to update registration: %w", err)
	}

	s.publish(ctx, models.EventRegistrationUpdated, models.RegistrationUpdatedEvent{
		RegistrationID: updated.ID,
		UserID:         updated.UserID,
		TicketIDs:      ticketIDs(lines),
		Timestamp:      time.Now(),
	})

	return updated, nil
}

// Delete cancels a registration. A pending registration gets its holds
// released and any open payment session voided; a confirmed one keeps
// its sold quantities off the market.
func (s *RegistrationService) Delete(ctx context.Context, actor auth.Actor, id int64) error {
	reg, err := s.regStore.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !s.authz.CanMutate(actor, reg.UserID) {
		return fmt.Errorf("actor %d cannot delete registration %d: %w", actor.ID, id, apperrors.ErrUnauthorized)
	}

	if reg.Status == models.RegistrationStatusPending && reg.PaymentID != nil {
		if err := s.paymentClient.CancelPayment(*reg.PaymentID, "Registration cancelled by user"); err != nil {
			logger.WithContext(ctx).Error("Failed to cancel payment during registration deletion",
				"error", err, "payment_id", *reg.PaymentID)
		}
	}

	if err := s.regStore.DeleteReleasingHolds(ctx, id); err != nil {
		return fmt.Errorf("failed to delete registration: %w", err)
	}

	s.publish(ctx, models.EventRegistrationCancelled, models.RegistrationCancelledEvent{
		RegistrationID: id,
		UserID:         reg.UserID,
		Reason:         "user cancellation",
		Timestamp:      time.Now(),
	})

	return nil
}

// ExpireOverdue releases the holds of every pending registration older
// than the hold timeout. Called periodically by the expiry job; racing a
// concurrent confirmation is safe, the row lock decides.
func (s *RegistrationService) ExpireOverdue(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.holdTimeout)
	overdue, err := s.regStore.GetExpired(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue registrations: %w", err)
	}

	expired := 0
	for _, reg := range overdue {
		if err := s.regStore.ExpireReleasingHolds(ctx, reg.ID); err != nil {
			logger.WithContext(ctx).Error("Failed to expire registration",
				"error", err, "registration_id", reg.ID)
			continue
		}
		expired++

		if reg.PaymentID != nil {
			if err := s.paymentClient.CancelPayment(*reg.PaymentID, "Registration hold expired"); err != nil {
				logger.WithContext(ctx).Error("Failed to cancel payment for expired registration",
					"error", err, "payment_id", *reg.PaymentID)
			}
		}

		s.publish(ctx, models.EventRegistrationExpired, models.RegistrationExpiredEvent{
			RegistrationID: reg.ID,
			UserID:         reg.UserID,
			Reason:         "hold timeout",
			Timestamp:      time.Now(),
		})
	}

	return expired, nil
}

func (s *RegistrationService) publish(ctx context.Context, subject string, data interface{}) {
	if err := s.natsClient.Publish(subject, data); err != nil {
		logger.WithContext(ctx).Error("Failed to publish event",
			"error", err, "event_type", subject)
	}
}

// normalizeLines merges duplicate ticket lines and validates quantities.
func normalizeLines(lines []models.RegistrationLine) ([]models.RegistrationDetail, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("registration needs at least one line: %w", apperrors.ErrInvalidQuantity)
	}

	merged := make(map[int64]int, len(lines))
	var order []int64
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("quantity must be positive for ticket %d, got %d: %w",
				line.TicketID, line.Quantity, apperrors.ErrInvalidQuantity)
		}
		if _, seen := merged[line.TicketID]; !seen {
			order = append(order, line.TicketID)
		}
		merged[line.TicketID] += line.Quantity
	}

	details := make([]models.RegistrationDetail, 0, len(order))
	for _, id := range order {
		details = append(details, models.RegistrationDetail{
			TicketID: id,
			Quantity: merged[id],
		})
	}
	return details, nil
}

func ticketIDs(lines []models.RegistrationDetail) []int64 {
	ids := make([]int64, len(lines))
	for i, line := range lines {
		ids[i] = line.TicketID
	}
	return ids
}
