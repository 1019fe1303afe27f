package service

import (
	"context"
	"fmt"

	"tessera/internal/apperrors"
	"tessera/internal/auth"
	"tessera/internal/models"
)

type AreaService struct {
	areaStore AreaStore
	authz     auth.Authorizer
}

func NewAreaService(areaStore AreaStore, authz auth.Authorizer) *AreaService {
	return &AreaService{
		areaStore: areaStore,
		authz:     authz,
	}
}

// Create registers a new event area. Capacity is fixed at creation and
// bounds every future ticket allocation under the area.
func (s *AreaService) Create(ctx context.Context, actor auth.Actor, req *models.CreateAreaRequest) (*models.EventArea, error) {
	if actor.Role == auth.RoleAttendee {
		return nil, fmt.Errorf("attendees cannot create areas: %w", apperrors.ErrUnauthorized)
	}
	if req.Capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive, got %d: %w", req.Capacity, apperrors.ErrInvalidQuantity)
	}

	area := &models.EventArea{
		EventID:   req.EventID,
		Name:      req.Name,
		Capacity:  req.Capacity,
		CreatedBy: actor.ID,
	}

	if err := s.areaStore.Create(ctx, area); err != nil {
		return nil, fmt.Errorf("failed to create area: %w", err)
	}

	return area, nil
}

func (s *AreaService) Get(ctx context.Context, id int64) (*models.EventArea, error) {
	return s.areaStore.GetByID(ctx, id)
}

func (s *AreaService) ListByEventID(ctx context.Context, eventID int64) ([]models.EventArea, error) {
	return s.areaStore.ListByEventID(ctx, eventID)
}
