package models

import (
	"time"
)

// Ticket lifecycle statuses. Tickets are created UNAVAILABLE and must be
// activated explicitly before they can be reserved.
const (
	TicketStatusAvailable   = "AVAILABLE"
	TicketStatusUnavailable = "UNAVAILABLE"
	TicketStatusSoldOut     = "SOLD_OUT"
)

// Registration lifecycle statuses.
const (
	RegistrationStatusPending   = "PENDING"
	RegistrationStatusConfirmed = "CONFIRMED"
	RegistrationStatusCancelled = "CANCELLED"
	RegistrationStatusExpired   = "EXPIRED"
)

// User represents a user in the system. Authentication itself is handled
// by the auth middleware; services only see the resulting actor.
type User struct {
	UserID       int64     `json:"user_id" db:"user_id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FirstName    string    `json:"first_name" db:"first_name"`
	Surname      string    `json:"surname" db:"surname"`
	Role         string    `json:"role" db:"role"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	RegisteredAt time.Time `json:"registered_at" db:"registered_at"`
}

// EventArea is a named seating zone of an event with a fixed capacity.
// Capacity never changes after creation; the ticket allocations under the
// area must collectively stay within it.
type EventArea struct {
	ID        int64     `json:"id" db:"id"`
	EventID   int64     `json:"event_id" db:"event_id"`
	Name      string    `json:"name" db:"name"`
	Capacity  int       `json:"capacity" db:"capacity"`
	CreatedBy int64     `json:"created_by" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Ticket is a sellable allocation within an event area.
//
// Allocated is fixed by the catalog and is what the capacity invariant
// sums. Quantity is the remaining sellable count, Reserved is held by
// pending registrations and Sold by confirmed ones;
// quantity + reserved + sold == allocated at all times.
type Ticket struct {
	ID          int64     `json:"id" db:"id"`
	EventAreaID int64     `json:"event_area_id" db:"event_area_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Price       string    `json:"price" db:"price"`
	Allocated   int       `json:"allocated" db:"allocated"`
	Quantity    int       `json:"quantity" db:"quantity"`
	Reserved    int       `json:"reserved" db:"reserved"`
	Sold        int       `json:"sold" db:"sold"`
	Status      string    `json:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Registration is a user's reservation of one or more tickets. PaymentDate
// transitions nil -> timestamp exactly once, when the payment provider
// confirms the payment.
type Registration struct {
	ID               int64      `json:"id" db:"id"`
	UserID           int64      `json:"user_id" db:"user_id"`
	Status           string     `json:"status" db:"status"`
	RegistrationDate time.Time  `json:"registration_date" db:"registration_date"`
	PaymentDate      *time.Time `json:"payment_date" db:"payment_date"`
	PaymentID        *string    `json:"payment_id,omitempty" db:"payment_id"`
	OrderID          *string    `json:"order_id,omitempty" db:"order_id"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`

	// Not from the registrations table, filled separately.
	Details []RegistrationDetail `json:"details,omitempty"`
}

// RegistrationDetail is one (ticket, quantity) line item of a registration.
type RegistrationDetail struct {
	ID             int64 `json:"id" db:"id"`
	RegistrationID int64 `json:"registration_id" db:"registration_id"`
	TicketID       int64 `json:"ticket_id" db:"ticket_id"`
	Quantity       int   `json:"quantity" db:"quantity"`
}

// PaymentConfirmation is the outcome of a successful (or idempotently
// repeated) payment confirmation.
type PaymentConfirmation struct {
	Registration     *Registration
	SoldOutTicketIDs []int64
	AlreadyConfirmed bool
}
