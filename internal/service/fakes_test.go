package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tessera/internal/apperrors"
	"tessera/internal/external"
	"tessera/internal/models"
)

// fakeInventory is a mutex-guarded in-memory backing store with the same
// hold semantics as the SQL layer. The mutex makes every operation
// atomic, which is the guarantee the transactional repository provides,
// so concurrency tests against it are meaningful. fakeRegStore and
// fakeTicketStore expose it through the store interfaces.
type fakeInventory struct {
	mu      sync.Mutex
	tickets map[int64]*models.Ticket
	regs    map[int64]*models.Registration
	details map[int64][]models.RegistrationDetail
	nextID  int64
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{
		tickets: make(map[int64]*models.Ticket),
		regs:    make(map[int64]*models.Registration),
		details: make(map[int64][]models.RegistrationDetail),
	}
}

func (f *fakeInventory) addTicket(t models.Ticket) models.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t.ID = f.nextID
	f.tickets[t.ID] = &t
	return t
}

func (f *fakeInventory) ticket(id int64) models.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.tickets[id]
}

// reserve and release mirror the SQL-side hold transitions. Callers hold
// the mutex.

func (f *fakeInventory) reserve(lines []models.RegistrationDetail) error {
	for i, line := range lines {
		t, ok := f.tickets[line.TicketID]
		if !ok {
			f.release(lines[:i])
			return fmt.Errorf("ticket %d: %w", line.TicketID, apperrors.ErrNotFound)
		}
		if t.Status != models.TicketStatusAvailable {
			f.release(lines[:i])
			return fmt.Errorf("ticket %d is %s: %w", line.TicketID, t.Status, apperrors.ErrInsufficientInventory)
		}
		if line.Quantity > t.Quantity {
			f.release(lines[:i])
			return fmt.Errorf("ticket %d: requested %d of %d remaining: %w",
				line.TicketID, line.Quantity, t.Quantity, apperrors.ErrInsufficientInventory)
		}
		t.Quantity -= line.Quantity
		t.Reserved += line.Quantity
	}
	return nil
}

func (f *fakeInventory) release(lines []models.RegistrationDetail) {
	for _, line := range lines {
		if t, ok := f.tickets[line.TicketID]; ok {
			moved := line.Quantity
			if moved > t.Reserved {
				moved = t.Reserved
			}
			t.Reserved -= moved
			t.Quantity += moved
		}
	}
}

// fakeRegStore implements RegistrationStore.
type fakeRegStore struct {
	inv *fakeInventory
}

func (f *fakeRegStore) CreateWithHolds(ctx context.Context, reg *models.Registration, lines []models.RegistrationDetail) error {
	inv := f.inv
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if err := inv.reserve(lines); err != nil {
		return err
	}

	inv.nextID++
	reg.ID = inv.nextID
	reg.Details = append([]models.RegistrationDetail(nil), lines...)
	stored := *reg
	inv.regs[reg.ID] = &stored
	inv.details[reg.ID] = append([]models.RegistrationDetail(nil), lines...)
	return nil
}

func (f *fakeRegStore) UpdateWithHolds(ctx context.Context, regID int64, lines []models.RegistrationDetail) (*models.Registration, error) {
	inv := f.inv
	inv.mu.Lock()
	defer inv.mu.Unlock()

	reg, ok := inv.regs[regID]
	if !ok {
		return nil, fmt.Errorf("registration %d: %w", regID, apperrors.ErrNotFound)
	}
	if reg.Status != models.RegistrationStatusPending {
		return nil, fmt.Errorf("registration %d is %s: %w", regID, reg.Status, apperrors.ErrConflict)
	}

	old := inv.details[regID]
	inv.release(old)
	if err := inv.reserve(lines); err != nil {
		// The SQL transaction would roll back, so put the old holds back.
		if rerr := inv.reserve(old); rerr != nil {
			return nil, rerr
		}
		return nil, err
	}

	inv.details[regID] = append([]models.RegistrationDetail(nil), lines...)
	out := *reg
	out.Details = append([]models.RegistrationDetail(nil), lines...)
	return &out, nil
}

func (f *fakeRegStore) DeleteReleasingHolds(ctx context.Context, regID int64) error {
	inv := f.inv
	inv.mu.Lock()
	defer inv.mu.Unlock()

	reg, ok := inv.regs[regID]
	if !ok {
		return fmt.Errorf("registration %d: %w", regID, apperrors.ErrNotFound)
	}
	if reg.Status == models.RegistrationStatusPending {
		inv.release(inv.details[regID])
	}
	delete(inv.regs, regID)
	delete(inv.details, regID)
	return nil
}

func (f *fakeRegStore) ConfirmPayment(ctx context.Context, regID int64, paymentID string, now time.Time) (*models.PaymentConfirmation, error) {
	inv := f.inv
	inv.mu.Lock()
	defer inv.mu.Unlock()

	reg, ok := inv.regs[regID]
	if !ok {
		return nil, fmt.Errorf("registration %d: %w", regID, apperrors.ErrNotFound)
	}
	if reg.PaymentDate != nil {
		out := *reg
		return &models.PaymentConfirmation{Registration: &out, AlreadyConfirmed: true}, nil
	}
	if reg.Status != models.RegistrationStatusPending {
		return nil, fmt.Errorf("registration %d is %s: %w", regID, reg.Status, apperrors.ErrConflict)
	}

	var soldOut []int64
	for _, line := range inv.details[regID] {
		t := inv.tickets[line.TicketID]
		moved := line.Quantity
		if moved > t.Reserved {
			moved = t.Reserved
		}
		t.Reserved -= moved
		t.Sold += moved
		if t.Quantity == 0 && t.Reserved == 0 && t.Status != models.TicketStatusSoldOut {
			t.Status = models.TicketStatusSoldOut
			soldOut = append(soldOut, t.ID)
		}
	}

	reg.Status = models.RegistrationStatusConfirmed
	reg.PaymentDate = &now
	if paymentID != "" {
		reg.PaymentID = &paymentID
	}
	reg.Details = inv.details[regID]

	out := *reg
	return &models.PaymentConfirmation{Registration: &out, SoldOutTicketIDs: soldOut}, nil
}

func (f *fakeRegStore) ExpireReleasingHolds(ctx context.Context, regID int64) error {
	inv := f.inv
	inv.mu.Lock()
	defer inv.mu.Unlock()

	reg, ok := inv.regs[regID]
	if !ok || reg.Status != models.RegistrationStatusPending || reg.PaymentDate != nil {
		return nil
	}
	inv.release(inv.details[regID])
	reg.Status = models.RegistrationStatusExpired
	return nil
}

func (f *fakeRegStore) GetByID(ctx context.Context, id int64) (*models.Registration, error) {
	inv := f.inv
	inv.mu.Lock()
	defer inv.mu.Unlock()
	reg, ok := inv.regs[id]
	if !ok {
		return nil, fmt.Errorf("registration %d: %w", id, apperrors.ErrNotFound)
	}
	out := *reg
	return &out, nil
}

func (f *fakeRegStore) FindByOrderID(ctx context.Context, orderID string) (*models.Registration, error) {
	inv := f.inv
	inv.mu.Lock()
	defer inv.mu.Unlock()
	for _, reg := range inv.regs {
		if reg.OrderID != nil && *reg.OrderID == orderID {
			out := *reg
			return &out, nil
		}
	}
	return nil, fmt.Errorf("order %q: %w", orderID, apperrors.ErrNotFound)
}

func (f *fakeRegStore) GetDetails(ctx context.Context, regID int64) ([]models.RegistrationDetail, error) {
	inv := f.inv
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return append([]models.RegistrationDetail(nil), inv.details[regID]...), nil
}

func (f *fakeRegStore) GetByUserID(ctx context.Context, userID int64) ([]models.Registration, error) {
	inv := f.inv
	inv.mu.Lock()
	defer inv.mu.Unlock()
	var out []models.Registration
	for _, reg := range inv.regs {
		if reg.UserID == userID {
			out = append(out, *reg)
		}
	}
	return out, nil
}

func (f *fakeRegStore) List(ctx context.Context) ([]models.Registration, error) {
	inv := f.inv
	inv.mu.Lock()
	defer inv.mu.Unlock()
	var out []models.Registration
	for _, reg := range inv.regs {
		out = append(out, *reg)
	}
	return out, nil
}

func (f *fakeRegStore) GetExpired(ctx context.Context, olderThan time.Time) ([]models.Registration, error) {
	inv := f.inv
	inv.mu.Lock()
	defer inv.mu.Unlock()
	var out []models.Registration
	for _, reg := range inv.regs {
		if reg.Status == models.RegistrationStatusPending &&
			reg.PaymentDate == nil && reg.RegistrationDate.Before(olderThan) {
			out = append(out, *reg)
		}
	}
	return out, nil
}

func (f *fakeRegStore) SetPaymentInfo(ctx context.Context, regID int64, paymentID, orderID string) error {
	inv := f.inv
	inv.mu.Lock()
	defer inv.mu.Unlock()
	reg, ok := inv.regs[regID]
	if !ok {
		return fmt.Errorf("registration %d: %w", regID, apperrors.ErrNotFound)
	}
	if reg.Status != models.RegistrationStatusPending {
		return fmt.Errorf("registration %d is %s: %w", regID, reg.Status, apperrors.ErrConflict)
	}
	reg.PaymentID = &paymentID
	reg.OrderID = &orderID
	return nil
}

// fakeTicketStore implements TicketStore.
type fakeTicketStore struct {
	inv *fakeInventory
}

func (f *fakeTicketStore) Create(ctx context.Context, ticket *models.Ticket) error {
	t := *ticket
	t.Quantity = t.Allocated
	*ticket = f.inv.addTicket(t)
	return nil
}

func (f *fakeTicketStore) Update(ctx context.Context, ticket *models.Ticket) error {
	inv := f.inv
	inv.mu.Lock()
	defer inv.mu.Unlock()
	stored, ok := inv.tickets[ticket.ID]
	if !ok {
		return fmt.Errorf("ticket %d: %w", ticket.ID, apperrors.ErrNotFound)
	}
	*stored = *ticket
	return nil
}

func (f *fakeTicketStore) Delete(ctx context.Context, id int64) error {
	inv := f.inv
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if _, ok := inv.tickets[id]; !ok {
		return fmt.Errorf("ticket %d: %w", id, apperrors.ErrNotFound)
	}
	delete(inv.tickets, id)
	return nil
}

func (f *fakeTicketStore) SetStatus(ctx context.Context, id int64, status string) (*models.Ticket, error) {
	inv := f.inv
	inv.mu.Lock()
	defer inv.mu.Unlock()
	t, ok := inv.tickets[id]
	if !ok {
		return nil, fmt.Errorf("ticket %d: %w", id, apperrors.ErrNotFound)
	}
	t.Status = status
	out := *t
	return &out, nil
}

func (f *fakeTicketStore) GetByID(ctx context.Context, id int64) (*models.Ticket, error) {
	inv := f.inv
	inv.mu.Lock()
	defer inv.mu.Unlock()
	t, ok := inv.tickets[id]
	if !ok {
		return nil, fmt.Errorf("ticket %d: %w", id, apperrors.ErrNotFound)
	}
	out := *t
	return &out, nil
}

func (f *fakeTicketStore) GetByIDs(ctx context.Context, ids []int64) ([]models.Ticket, error) {
	inv := f.inv
	inv.mu.Lock()
	defer inv.mu.Unlock()
	var out []models.Ticket
	for _, id := range ids {
		if t, ok := inv.tickets[id]; ok {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTicketStore) List(ctx context.Context, filter models.TicketFilter) ([]models.Ticket, int, error) {
	inv := f.inv
	inv.mu.Lock()
	defer inv.mu.Unlock()
	var out []models.Ticket
	for _, t := range inv.tickets {
		out = append(out, *t)
	}
	return out, len(out), nil
}

// fakeAreaStore implements AreaStore.
type fakeAreaStore struct {
	mu     sync.Mutex
	areas  map[int64]*models.EventArea
	nextID int64
}

func newFakeAreaStore() *fakeAreaStore {
	return &fakeAreaStore{areas: make(map[int64]*models.EventArea)}
}

func (f *fakeAreaStore) Create(ctx context.Context, area *models.EventArea) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	area.ID = f.nextID
	stored := *area
	f.areas[area.ID] = &stored
	return nil
}

func (f *fakeAreaStore) GetByID(ctx context.Context, id int64) (*models.EventArea, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	area, ok := f.areas[id]
	if !ok {
		return nil, fmt.Errorf("event area %d: %w", id, apperrors.ErrNotFound)
	}
	out := *area
	return &out, nil
}

func (f *fakeAreaStore) ListByEventID(ctx context.Context, eventID int64) ([]models.EventArea, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.EventArea
	for _, area := range f.areas {
		if area.EventID == eventID {
			out = append(out, *area)
		}
	}
	return out, nil
}

// fakePublisher records published subjects.
type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *fakePublisher) Publish(subject string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *fakePublisher) count(subject string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.subjects {
		if s == subject {
			n++
		}
	}
	return n
}

// fakeGateway records payment sessions and cancellations.
type fakeGateway struct {
	mu         sync.Mutex
	initCalls  int
	lastAmount int64
	cancelled  []string
	failInit   bool
}

func (g *fakeGateway) InitPayment(amount int64, orderID, currency, description string) (*external.PaymentInitResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failInit {
		return nil, fmt.Errorf("gateway down")
	}
	g.initCalls++
	g.lastAmount = amount
	return &external.PaymentInitResponse{
		Success:    true,
		PaymentID:  fmt.Sprintf("pay-%d", g.initCalls),
		OrderID:    orderID,
		Amount:     amount,
		Currency:   currency,
		PaymentURL: "https://pay.example/" + orderID,
	}, nil
}

func (g *fakeGateway) CancelPayment(paymentID string, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = append(g.cancelled, paymentID)
	return nil
}
