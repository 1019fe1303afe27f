package models

// CreateAreaRequest - request body for creating an event area
type CreateAreaRequest struct {
	EventID  int64  `json:"event_id" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Capacity int    `json:"capacity"`
}

// CreateTicketRequest - request body for creating a ticket
type CreateTicketRequest struct {
	EventAreaID int64  `json:"event_area_id" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	Price       string `json:"price"`
}

// UpdateTicketRequest - request body for updating a ticket
type UpdateTicketRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	Price       string `json:"price"`
}

// RegistrationLine - one requested (ticket, quantity) pair
type RegistrationLine struct {
	TicketID int64 `json:"ticket_id" binding:"required"`
	Quantity int   `json:"quantity"`
}

// CreateRegistrationRequest - request body for creating a registration.
// UserID is optional; admins may register on behalf of another user.
type CreateRegistrationRequest struct {
	UserID int64              `json:"user_id"`
	Lines  []RegistrationLine `json:"details" binding:"required"`
}

// UpdateRegistrationRequest - request body replacing a registration's lines
type UpdateRegistrationRequest struct {
	Lines []RegistrationLine `json:"details" binding:"required"`
}

// CreateCheckoutRequest - request body for initiating a payment session
type CreateCheckoutRequest struct {
	RegistrationID int64 `json:"registration_id" binding:"required"`
}

// CheckoutResponse - payment session created at the gateway
type CheckoutResponse struct {
	PaymentID  string `json:"payment_id"`
	OrderID    string `json:"order_id"`
	PaymentURL string `json:"payment_url"`
}

// PaymentNotificationPayload - webhook notification from the payment
// gateway. RegistrationID is the idempotency key; OrderID is kept as a
// fallback lookup for providers that only echo the order reference.
type PaymentNotificationPayload struct {
	RegistrationID int64                  `json:"registrationId"`
	PaymentID      string                 `json:"paymentId"`
	OrderID        string                 `json:"orderId"`
	Status         string                 `json:"status"`
	Timestamp      string                 `json:"timestamp"`
	Data           map[string]interface{} `json:"data"`
}

// TicketFilter - catalog listing filters
type TicketFilter struct {
	EventAreaID *int64
	Quantity    *int
	Price       *string
	Search      string
	Page        int
	PageSize    int
}

// ListTicketsResponse - paginated catalog listing
type ListTicketsResponse struct {
	Tickets    []Ticket `json:"tickets"`
	TotalCount int      `json:"total_count"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
}
