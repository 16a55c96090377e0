package child

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines data access for children.
type Repository interface {
	Create(ctx context.Context, ch *Child) error
	GetByID(ctx context.Context, id uuid.UUID) (*Child, error)
	Update(ctx context.Context, ch *Child) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByFacility(ctx context.Context, facilityID uuid.UUID, limit, offset int) ([]*Child, int, error)
}
