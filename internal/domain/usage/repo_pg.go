package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tsumiki/tsumiki/internal/platform/db"
)

// ErrNotFound is returned when no usage record matches the given ID.
var ErrNotFound = errors.New("usage record not found")

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if conn := db.ConnFromContext(ctx); conn != nil {
		return conn
	}
	return r.pool
}

// monthRange returns the half-open [from, to) date range covering a
// year-month in "YYYY-MM" form.
func monthRange(yearMonth string) (time.Time, time.Time, error) {
	from, err := time.Parse("2006-01", yearMonth)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid year-month %q: %w", yearMonth, err)
	}
	return from, from.AddDate(0, 1, 0), nil
}

const usageCols = `id, facility_id, child_id, service_date, status, slot, start_time, end_time, pickup, dropoff, addon_codes, billing_target, notes, created_at, updated_at`

func scanUsageRecord(row pgx.Row) (*UsageRecord, error) {
	var rec UsageRecord
	err := row.Scan(
		&rec.ID, &rec.FacilityID, &rec.ChildID, &rec.Date, &rec.Status,
		&rec.Slot, &rec.StartTime, &rec.EndTime, &rec.Pickup, &rec.Dropoff,
		&rec.AddonCodes, &rec.BillingTarget, &rec.Notes, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

const insertUsageQuery = `
	INSERT INTO usage_records (id, facility_id, child_id, service_date, status, slot, start_time, end_time, pickup, dropoff, addon_codes, billing_target, notes, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

func (r *PostgresRepository) Create(ctx context.Context, rec *UsageRecord) error {
	rec.ID = uuid.New()
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := r.conn(ctx).Exec(ctx, insertUsageQuery,
		rec.ID, rec.FacilityID, rec.ChildID, rec.Date, rec.Status,
		rec.Slot, rec.StartTime, rec.EndTime, rec.Pickup, rec.Dropoff,
		rec.AddonCodes, rec.BillingTarget, rec.Notes, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create usage record: %w", err)
	}
	return nil
}

func (r *PostgresRepository) BulkCreate(ctx context.Context, recs []*UsageRecord) error {
	conn := r.conn(ctx)
	now := time.Now()
	for _, rec := range recs {
		rec.ID = uuid.New()
		rec.CreatedAt = now
		rec.UpdatedAt = now

		_, err := conn.Exec(ctx, insertUsageQuery,
			rec.ID, rec.FacilityID, rec.ChildID, rec.Date, rec.Status,
			rec.Slot, rec.StartTime, rec.EndTime, rec.Pickup, rec.Dropoff,
			rec.AddonCodes, rec.BillingTarget, rec.Notes, rec.CreatedAt, rec.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create usage record for %s: %w", rec.Date.Format("2006-01-02"), err)
		}
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*UsageRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM usage_records WHERE id = $1`, usageCols)

	rec, err := scanUsageRecord(r.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get usage record: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) Update(ctx context.Context, rec *UsageRecord) error {
	rec.UpdatedAt = time.Now()

	query := `
		UPDATE usage_records
		SET service_date = $2, status = $3, slot = $4, start_time = $5, end_time = $6,
		    pickup = $7, dropoff = $8, addon_codes = $9, billing_target = $10, notes = $11, updated_at = $12
		WHERE id = $1`

	tag, err := r.conn(ctx).Exec(ctx, query,
		rec.ID, rec.Date, rec.Status, rec.Slot, rec.StartTime, rec.EndTime,
		rec.Pickup, rec.Dropoff, rec.AddonCodes, rec.BillingTarget, rec.Notes, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update usage record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM usage_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete usage record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ListByFacilityMonth(ctx context.Context, facilityID uuid.UUID, yearMonth string) ([]*UsageRecord, error) {
	from, to, err := monthRange(yearMonth)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM usage_records
		WHERE facility_id = $1 AND service_date >= $2 AND service_date < $3
		ORDER BY child_id, service_date`, usageCols)

	return r.queryRecords(ctx, query, facilityID, from, to)
}

func (r *PostgresRepository) ListByChildMonth(ctx context.Context, childID uuid.UUID, yearMonth string) ([]*UsageRecord, error) {
	from, to, err := monthRange(yearMonth)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM usage_records
		WHERE child_id = $1 AND service_date >= $2 AND service_date < $3
		ORDER BY service_date`, usageCols)

	return r.queryRecords(ctx, query, childID, from, to)
}

// WithTx runs fn with a transaction stored in the context, so that all
// repository calls made inside fn share one transaction.
func (r *PostgresRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.pool, fn)
}

func (r *PostgresRepository) queryRecords(ctx context.Context, query string, args ...interface{}) ([]*UsageRecord, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}
	defer rows.Close()

	var recs []*UsageRecord
	for rows.Next() {
		rec, err := scanUsageRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
