package service

import (
	"context"
	"time"

	"tessera/internal/auth"
	"tessera/internal/external"
	"tessera/internal/messaging"
	"tessera/internal/models"
	"tessera/internal/repository"
	"tessera/internal/search"
)

// AreaStore is the persistence surface the area service needs.
type AreaStore interface {
	Create(ctx context.Context, area *models.EventArea) error
	GetByID(ctx context.Context, id int64) (*models.EventArea, error)
	ListByEventID(ctx context.Context, eventID int64) ([]models.EventArea, error)
}

// TicketStore is the persistence surface the ticket service needs.
type TicketStore interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	Update(ctx context.Context, ticket *models.Ticket) error
	Delete(ctx context.Context, id int64) error
	SetStatus(ctx context.Context, id int64, status string) (*models.Ticket, error)
	GetByID(ctx context.Context, id int64) (*models.Ticket, error)
	GetByIDs(ctx context.Context, ids []int64) ([]models.Ticket, error)
	List(ctx context.Context, f models.TicketFilter) ([]models.Ticket, int, error)
}

// RegistrationStore is the persistence surface the registration and
// payment services need. All multi-row methods are transactional.
type RegistrationStore interface {
	CreateWithHolds(ctx context.Context, reg *models.Registration, lines []models.RegistrationDetail) error
	UpdateWithHolds(ctx context.Context, regID int64, lines []models.RegistrationDetail) (*models.Registration, error)
	DeleteReleasingHolds(ctx context.Context, regID int64) error
	ConfirmPayment(ctx context.Context, regID int64, paymentID string, now time.Time) (*models.PaymentConfirmation, error)
	ExpireReleasingHolds(ctx context.Context, regID int64) error
	GetByID(ctx context.Context, id int64) (*models.Registration, error)
	FindByOrderID(ctx context.Context, orderID string) (*models.Registration, error)
	GetDetails(ctx context.Context, regID int64) ([]models.RegistrationDetail, error)
	GetByUserID(ctx context.Context, userID int64) ([]models.Registration, error)
	List(ctx context.Context) ([]models.Registration, error)
	GetExpired(ctx context.Context, olderThan time.Time) ([]models.Registration, error)
	SetPaymentInfo(ctx context.Context, regID int64, paymentID, orderID string) error
}

// EventPublisher publishes domain events. Publish failures are logged
// and never fail the operation that triggered them.
type EventPublisher interface {
	Publish(subject string, data interface{}) error
}

// TicketSearcher is the full-text index over the catalog. A nil searcher
// is valid; listing then falls back to SQL filtering.
type TicketSearcher interface {
	IndexTicket(ctx context.Context, ticket *models.Ticket) error
	DeleteTicket(ctx context.Context, id int64) error
	Search(ctx context.Context, query string, eventAreaID *int64, page, pageSize int) ([]int64, int64, error)
}

// PaymentGateway is the external payment provider surface.
type PaymentGateway interface {
	InitPayment(amount int64, orderID, currency, description string) (*external.PaymentInitResponse, error)
	CancelPayment(paymentID string, reason string) error
}

type Services struct {
	Areas         *AreaService
	Tickets       *TicketService
	Registrations *RegistrationService
	Payments      *PaymentService
}

func NewServices(repos *repository.Repositories, natsClient *messaging.NATSClient, paymentClient *external.PaymentClient, ticketIndex *search.TicketIndex, holdTimeout time.Duration) *Services {
	authz := auth.OwnerOrAdmin{}

	// A typed nil must not end up inside the interface value.
	var searcher TicketSearcher
	if ticketIndex != nil {
		searcher = ticketIndex
	}

	areaService := NewAreaService(repos.Areas, authz)
	ticketService := NewTicketService(repos.Tickets, repos.Areas, searcher, authz)
	registrationService := NewRegistrationService(repos.Registrations, repos.Tickets, paymentClient, natsClient, authz, holdTimeout)
	paymentService := NewPaymentService(repos.Registrations, repos.Tickets, paymentClient, natsClient, authz)

	return &Services{
		Areas:         areaService,
		Tickets:       ticketService,
		Registrations: registrationService,
		Payments:      paymentService,
	}
}
