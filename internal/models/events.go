package models

import "time"

// NATS Event Types
const (
	EventRegistrationCreated   = "registration.created"
	EventRegistrationUpdated   = "registration.updated"
	EventRegistrationCancelled = "registration.cancelled"
	EventRegistrationExpired   = "registration.expired"
	EventPaymentInitiated      = "payment.initiated"
	EventPaymentConfirmed      = "payment.confirmed"
	EventPaymentFailed         = "payment.failed"
	EventTicketSoldOut         = "ticket.sold_out"
)

// RegistrationCreatedEvent represents a registration creation event
type RegistrationCreatedEvent struct {
	RegistrationID int64     `json:"registration_id"`
	UserID         int64     `json:"user_id"`
	TicketIDs      []int64   `json:"ticket_ids"`
	Timestamp      time.Time `json:"timestamp"`
}

// RegistrationUpdatedEvent represents a line-item replacement on a
// pending registration
type RegistrationUpdatedEvent struct {
	RegistrationID int64     `json:"registration_id"`
	UserID         int64     `json:"user_id"`
	TicketIDs      []int64   `json:"ticket_ids"`
	Timestamp      time.Time `json:"timestamp"`
}

// RegistrationCancelledEvent represents an explicit deletion by the owner
// or an admin
type RegistrationCancelledEvent struct {
	RegistrationID int64     `json:"registration_id"`
	UserID         int64     `json:"user_id"`
	Reason         string    `json:"reason"`
	Timestamp      time.Time `json:"timestamp"`
}

// RegistrationExpiredEvent represents a hold released by the expiry job
type RegistrationExpiredEvent struct {
	RegistrationID int64     `json:"registration_id"`
	UserID         int64     `json:"user_id"`
	Reason         string    `json:"reason"`
	Timestamp      time.Time `json:"timestamp"`
}

// PaymentInitiatedEvent represents a checkout session created at the
// payment gateway
type PaymentInitiatedEvent struct {
	RegistrationID int64     `json:"registration_id"`
	PaymentID      string    `json:"payment_id"`
	OrderID        string    `json:"order_id"`
	TotalAmount    int64     `json:"total_amount"`
	Timestamp      time.Time `json:"timestamp"`
}

// PaymentConfirmedEvent represents a successful payment confirmation
type PaymentConfirmedEvent struct {
	RegistrationID int64     `json:"registration_id"`
	UserID         int64     `json:"user_id"`
	PaymentID      string    `json:"payment_id"`
	Timestamp      time.Time `json:"timestamp"`
}

// PaymentFailedEvent represents a failed payment notification
type PaymentFailedEvent struct {
	RegistrationID int64     `json:"registration_id"`
	PaymentID      string    `json:"payment_id"`
	Reason         string    `json:"reason"`
	Timestamp      time.Time `json:"timestamp"`
}

// TicketSoldOutEvent represents a ticket whose allocation is fully sold
type TicketSoldOutEvent struct {
	TicketID  int64     `json:"ticket_id"`
	Timestamp time.Time `json:"timestamp"`
}
