package usage

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines data access for usage records.
type Repository interface {
	Create(ctx context.Context, rec *UsageRecord) error
	BulkCreate(ctx context.Context, recs []*UsageRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*UsageRecord, error)
	Update(ctx context.Context, rec *UsageRecord) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByFacilityMonth(ctx context.Context, facilityID uuid.UUID, yearMonth string) ([]*UsageRecord, error)
	ListByChildMonth(ctx context.Context, childID uuid.UUID, yearMonth string) ([]*UsageRecord, error)
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
