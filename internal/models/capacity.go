package models

import (
	"fmt"

	"tessera/internal/apperrors"
)

// ValidateAllocation checks whether allocating `requested` tickets on top
// of `existingAllocated` fits inside the area capacity. Both the ticket
// catalog and its tests use this as the single definition of the capacity
// invariant.
func ValidateAllocation(capacity, existingAllocated, requested int) error {
	if requested > capacity {
		return fmt.Errorf("allocation %d exceeds area capacity %d: %w",
			requested, capacity, apperrors.ErrCapacityExceeded)
	}
	if existingAllocated+requested > capacity {
		return fmt.Errorf("allocation %d plus existing %d exceeds area capacity %d: %w",
			requested, existingAllocated, capacity, apperrors.ErrCapacityExceeded)
	}
	return nil
}
