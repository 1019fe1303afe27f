package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createUsersTable,
		createEventAreasTable,
		createTicketsTable,
		createRegistrationsTable,
		createRegistrationDetailsTable,
		createRegistrationStatusIndex,
		createTicketsAreaIndex,
		createRegistrationsOrderIndex,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
    user_id BIGSERIAL PRIMARY KEY,
    email VARCHAR(255) UNIQUE NOT NULL,
    password_hash VARCHAR(64) NOT NULL,
    first_name VARCHAR(100) NOT NULL,
    surname VARCHAR(100) NOT NULL,
    role VARCHAR(20) NOT NULL DEFAULT 'attendee',
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    registered_at TIMESTAMP NOT NULL DEFAULT NOW()
)`

const createEventAreasTable = `
CREATE TABLE IF NOT EXISTS event_areas (
    id BIGSERIAL PRIMARY KEY,
    event_id BIGINT NOT NULL,
    name VARCHAR(100) NOT NULL,
    capacity INTEGER NOT NULL CHECK (capacity >= 0),
    created_by BIGINT NOT NULL REFERENCES users(user_id),
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW()
)`

const createTicketsTable = `
CREATE TABLE IF NOT EXISTS tickets (
    id BIGSERIAL PRIMARY KEY,
    event_area_id BIGINT NOT NULL REFERENCES event_areas(id),
    name VARCHAR(100) NOT NULL,
    description VARCHAR(255) NOT NULL DEFAULT '',
    price NUMERIC(12,2) NOT NULL CHECK (price >= 0),
    allocated INTEGER NOT NULL CHECK (allocated >= 0),
    quantity INTEGER NOT NULL CHECK (quantity >= 0),
    reserved INTEGER NOT NULL DEFAULT 0 CHECK (reserved >= 0),
    sold INTEGER NOT NULL DEFAULT 0 CHECK (sold >= 0),
    status VARCHAR(20) NOT NULL DEFAULT 'UNAVAILABLE'
        CHECK (status IN ('AVAILABLE', 'UNAVAILABLE', 'SOLD_OUT')),
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
    CHECK (quantity + reserved + sold = allocated)
)`

const createRegistrationsTable = `
CREATE TABLE IF NOT EXISTS registrations (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(user_id),
    status VARCHAR(20) NOT NULL DEFAULT 'PENDING'
        CHECK (status IN ('PENDING', 'CONFIRMED', 'CANCELLED', 'EXPIRED')),
    registration_date TIMESTAMP NOT NULL DEFAULT NOW(),
    payment_date TIMESTAMP,
    payment_id VARCHAR(255),
    order_id VARCHAR(255),
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW()
)`

const createRegistrationDetailsTable = `
CREATE TABLE IF NOT EXISTS registration_details (
    id BIGSERIAL PRIMARY KEY,
    registration_id BIGINT NOT NULL REFERENCES registrations(id) ON DELETE CASCADE,
    ticket_id BIGINT NOT NULL REFERENCES tickets(id),
    quantity INTEGER NOT NULL CHECK (quantity > 0),
    UNIQUE (registration_id, ticket_id)
)`

const createRegistrationStatusIndex = `
CREATE INDEX IF NOT EXISTS idx_registrations_pending
ON registrations (registration_date)
WHERE status = 'PENDING' AND payment_date IS NULL`

const createTicketsAreaIndex = `
CREATE INDEX IF NOT EXISTS idx_tickets_event_area ON tickets (event_area_id)`

const createRegistrationsOrderIndex = `
CREATE INDEX IF NOT EXISTS idx_registrations_order_id ON registrations (order_id)`
