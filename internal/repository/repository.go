package repository

import (
	"tessera/internal/database"
)

type Repositories struct {
	Areas         *AreaRepository
	Tickets       *TicketRepository
	Registrations *RegistrationRepository
	Users         *UserRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Areas:         NewAreaRepository(db),
		Tickets:       NewTicketRepository(db),
		Registrations: NewRegistrationRepository(db),
		Users:         NewUserRepository(db),
	}
}
