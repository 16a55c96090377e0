package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines data access for billing records and their day
// details.
type Repository interface {
	GetRecords(ctx context.Context, facilityID uuid.UUID, yearMonth string) ([]*BillingRecord, error)
	GetRecord(ctx context.Context, id uuid.UUID) (*BillingRecord, error)
	InsertRecord(ctx context.Context, rec *BillingRecord) error
	UpdateRecordTotals(ctx context.Context, rec *BillingRecord) error
	UpdateRecordStatus(ctx context.Context, rec *BillingRecord) error
	DeleteDraftRecords(ctx context.Context, facilityID uuid.UUID, yearMonth string) error
	BulkConfirm(ctx context.Context, facilityID uuid.UUID, yearMonth string, at time.Time) (int, error)

	GetDetails(ctx context.Context, recordID uuid.UUID) ([]*BillingDetail, error)
	GetDetail(ctx context.Context, id uuid.UUID) (*BillingDetail, error)
	InsertDetails(ctx context.Context, details []*BillingDetail) error
	UpdateDetail(ctx context.Context, d *BillingDetail) error

	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
