package catalog

import (
	"context"
)

// Repository defines data access for service-code reference data.
type Repository interface {
	List(ctx context.Context) ([]*ServiceCode, error)
	Create(ctx context.Context, sc *ServiceCode) error
}
