package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"tessera/internal/apperrors"
	"tessera/internal/auth"
	"tessera/internal/logger"
	"tessera/internal/models"
)

// Notification statuses the gateway reports. Anything else is logged and
// ignored.
var (
	successStatuses = map[string]bool{
		"completed": true,
		"CONFIRMED": true,
		"succeeded": true,
	}
	failureStatuses = map[string]bool{
		"failed":    true,
		"REJECTED":  true,
		"CANCELLED": true,
		"expired":   true,
	}
)

type PaymentService struct {
	regStore      RegistrationStore
	ticketStore   TicketStore
	paymentClient PaymentGateway
	natsClient    EventPublisher
	authz         auth.Authorizer
}

func NewPaymentService(regStore RegistrationStore, ticketStore TicketStore, paymentClient PaymentGateway, natsClient EventPublisher, authz auth.Authorizer) *PaymentService {
	return &PaymentService{
		regStore:      regStore,
		ticketStore:   ticketStore,
		paymentClient: paymentClient,
		natsClient:    natsClient,
		authz:         authz,
	}
}

// InitiateCheckout opens a payment session at the gateway for a pending
// registration and records the session on the registration.
func (s *PaymentService) InitiateCheckout(ctx context.Context, actor auth.Actor, regID int64) (*models.CheckoutResponse, error) {
	reg, err := s.regStore.GetByID(ctx, regID)
	if err != nil {
		return nil, err
	}
	if !s.authz.CanMutate(actor, reg.UserID) {
		return nil, fmt.Errorf("actor %d cannot pay for registration %d: %w", actor.ID, regID, apperrors.ErrUnauthorized)
	}
	if reg.Status != models.RegistrationStatusPending {
		return nil, fmt.Errorf("registration %d is %s: %w", regID, reg.Status, apperrors.ErrConflict)
	}

	details, err := s.regStore.GetDetails(ctx, regID)
	if err != nil {
		return nil, fmt.Errorf("failed to get details: %w", err)
	}
	if len(details) == 0 {
		return nil, fmt.Errorf("registration %d has no line items: %w", regID, apperrors.ErrNotFound)
	}

	total, err := s.totalCents(ctx, details)
	if err != nil {
		return nil, err
	}

	orderID := uuid.New().String()
	session, err := s.paymentClient.InitPayment(total, orderID, "USD",
		fmt.Sprintf("Registration %d", regID))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize payment: %w", err)
	}

	if err := s.regStore.SetPaymentInfo(ctx, regID, session.PaymentID, orderID); err != nil {
		return nil, fmt.Errorf("failed to record payment session: %w", err)
	}

	s.publish(ctx, models.EventPaymentInitiated, models.PaymentInitiatedEvent{
		RegistrationID: regID,
		PaymentID:      session.PaymentID,
		OrderID:        orderID,
		TotalAmount:    total,
		Timestamp:      time.Now(),
	})

	return &models.CheckoutResponse{
		PaymentID:  session.PaymentID,
		OrderID:    orderID,
		PaymentURL: session.PaymentURL,
	}, nil
}

// HandleNotification processes the gateway webhook. Confirmation is
// idempotent: re-delivered success notifications are acknowledged
// without touching inventory a second time.
func (s *PaymentService) HandleNotification(ctx context.Context, payload *models.PaymentNotificationPayload) error {
	regID := payload.RegistrationID
	if regID == 0 && payload.OrderID != "" {
		reg, err := s.regStore.FindByOrderID(ctx, payload.OrderID)
		if err != nil {
			return err
		}
		regID = reg.ID
	}
	if regID == 0 {
		return fmt.Errorf("notification carries no registration reference: %w", apperrors.ErrNotFound)
	}

	log := logger.WithContext(ctx)

	switch {
	case successStatuses[payload.Status]:
		result, err := s.regStore.ConfirmPayment(ctx, regID, payload.PaymentID, time.Now())
		if err != nil {
			return err
		}
		if result.AlreadyConfirmed {
			log.Info("Payment notification re-delivered, already confirmed",
				"registration_id", regID, "payment_id", payload.PaymentID)
			return nil
		}

		s.publish(ctx, models.EventPaymentConfirmed, models.PaymentConfirmedEvent{
			RegistrationID: regID,
			UserID:         result.Registration.UserID,
			PaymentID:      payload.PaymentID,
			Timestamp:      time.Now(),
		})
		for _, ticketID := range result.SoldOutTicketIDs {
			s.publish(ctx, models.EventTicketSoldOut, models.TicketSoldOutEvent{
				TicketID:  ticketID,
				Timestamp: time.Now(),
			})
		}
		return nil

	case failureStatuses[payload.Status]:
		// Holds stay in place; the expiry job reclaims them if the
		// user never retries.
		s.publish(ctx, models.EventPaymentFailed, models.PaymentFailedEvent{
			RegistrationID: regID,
			PaymentID:      payload.PaymentID,
			Reason:         payload.Status,
			Timestamp:      time.Now(),
		})
		return nil

	default:
		log.Warn("Ignoring payment notification with unknown status",
			"registration_id", regID, "status", payload.Status)
		return nil
	}
}

func (s *PaymentService) totalCents(ctx context.Context, details []models.RegistrationDetail) (int64, error) {
	ids := make([]int64, len(details))
	for i, d := range details {
		ids[i] = d.TicketID
	}

	tickets, err := s.ticketStore.GetByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to load tickets: %w", err)
	}

	prices := make(map[int64]string, len(tickets))
	for _, t := range tickets {
		prices[t.ID] = t.Price
	}

	var total int64
	for _, d := range details {
		price, ok := prices[d.TicketID]
		if !ok {
			return 0, fmt.Errorf("ticket %d: %w", d.TicketID, apperrors.ErrNotFound)
		}
		cents, err := priceToCents(price)
		if err != nil {
			return 0, fmt.Errorf("ticket %d has invalid price %q: %w", d.TicketID, price, err)
		}
		total += cents * int64(d.Quantity)
	}
	return total, nil
}

func (s *PaymentService) publish(ctx context.Context, subject string, data interface{}) {
	if err := s.natsClient.Publish(subject, data); err != nil {
		logger.WithContext(ctx).Error("Failed to publish event",
			"error", err, "event_type", subject)
	}
}

// priceToCents parses a decimal price string without going through
// floating point. Accepts at most two fractional digits.
func priceToCents(price string) (int64, error) {
	whole, frac, _ := strings.Cut(strings.TrimSpace(price), ".")
	if whole == "" {
		whole = "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units < 0 {
		return 0, fmt.Errorf("invalid price %q", price)
	}

	var cents int64
	switch len(frac) {
	case 0:
	case 1, 2:
		n, err := strconv.ParseInt(frac, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid price %q", price)
		}
		cents = n
		if len(frac) == 1 {
			cents *= 10
		}
	default:
		return 0, fmt.Errorf("invalid price %q", price)
	}

	return units*100 + cents, nil
}
