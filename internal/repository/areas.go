package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tessera/internal/apperrors"
	"tessera/internal/database"
	"tessera/internal/models"
)

type AreaRepository struct {
	db *database.DB
}

func NewAreaRepository(db *database.DB) *AreaRepository {
	return &AreaRepository{db: db}
}

func (r *AreaRepository) Create(ctx context.Context, area *models.EventArea) error {
	query := `
		INSERT INTO event_areas (event_id, name, capacity, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		area.EventID,
		area.Name,
		area.Capacity,
		area.CreatedBy,
	).Scan(&area.ID, &area.CreatedAt, &area.UpdatedAt)

	return err
}

func (r *AreaRepository) GetByID(ctx context.Context, id int64) (*models.EventArea, error) {
	area := &models.EventArea{}
	query := `
		SELECT id, event_id, name, capacity, created_by, created_at, updated_at
		FROM event_areas
		WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&area.ID,
		&area.EventID,
		&area.Name,
		&area.Capacity,
		&area.CreatedBy,
		&area.CreatedAt,
		&area.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event area %d: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	return area, nil
}

func (r *AreaRepository) ListByEventID(ctx context.Context, eventID int64) ([]models.EventArea, error) {
	var areas []models.EventArea
	query := `
		SELECT id, event_id, name, capacity, created_by, created_at, updated_at
		FROM event_areas
		WHERE event_id = $1
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var area models.EventArea
		err := rows.Scan(
			&area.ID,
			&area.EventID,
			&area.Name,
			&area.Capacity,
			&area.CreatedBy,
			&area.CreatedAt,
			&area.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		areas = append(areas, area)
	}

	return areas, rows.Err()
}
