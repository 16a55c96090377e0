package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tsumiki/tsumiki/internal/platform/db"
)

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

// WithTx runs fn with a transaction stored in the context, so that all
// repository calls made inside fn share one transaction.
func (r *PostgresRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.pool, fn)
}

const recordCols = `id, facility_id, child_id, year_month, service_type, total_units, unit_price, total_amount, copay_amount, insurance_amount, upper_limit_amount, status, confirmed_at, submitted_at, paid_at, created_at, updated_at`

func scanRecord(row pgx.Row) (*BillingRecord, error) {
	var rec BillingRecord
	err := row.Scan(
		&rec.ID, &rec.FacilityID, &rec.ChildID, &rec.YearMonth, &rec.ServiceType,
		&rec.TotalUnits, &rec.UnitPrice, &rec.TotalAmount, &rec.CopayAmount, &rec.InsuranceAmount,
		&rec.UpperLimitAmount, &rec.Status, &rec.ConfirmedAt, &rec.SubmittedAt, &rec.PaidAt,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *PostgresRepository) GetRecords(ctx context.Context, facilityID uuid.UUID, yearMonth string) ([]*BillingRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM billing_records
		WHERE facility_id = $1 AND year_month = $2
		ORDER BY child_id`, recordCols)

	rows, err := r.conn(ctx).Query(ctx, query, facilityID, yearMonth)
	if err != nil {
		return nil, fmt.Errorf("failed to list billing records: %w", err)
	}
	defer rows.Close()

	var recs []*BillingRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan billing record: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (r *PostgresRepository) GetRecord(ctx context.Context, id uuid.UUID) (*BillingRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM billing_records WHERE id = $1`, recordCols)

	rec, err := scanRecord(r.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get billing record: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) InsertRecord(ctx context.Context, rec *BillingRecord) error {
	rec.ID = uuid.New()
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	query := `
		INSERT INTO billing_records (id, facility_id, child_id, year_month, service_type, total_units, unit_price, total_amount, copay_amount, insurance_amount, upper_limit_amount, status, confirmed_at, submitted_at, paid_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.conn(ctx).Exec(ctx, query,
		rec.ID, rec.FacilityID, rec.ChildID, rec.YearMonth, rec.ServiceType,
		rec.TotalUnits, rec.UnitPrice, rec.TotalAmount, rec.CopayAmount, rec.InsuranceAmount,
		rec.UpperLimitAmount, rec.Status, rec.ConfirmedAt, rec.SubmittedAt, rec.PaidAt,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert billing record: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateRecordTotals(ctx context.Context, rec *BillingRecord) error {
	rec.UpdatedAt = time.Now()

	query := `
		UPDATE billing_records
		SET total_units = $2, total_amount = $3, copay_amount = $4, insurance_amount = $5, updated_at = $6
		WHERE id = $1`

	tag, err := r.conn(ctx).Exec(ctx, query,
		rec.ID, rec.TotalUnits, rec.TotalAmount, rec.CopayAmount, rec.InsuranceAmount, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update billing record totals: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) UpdateRecordStatus(ctx context.Context, rec *BillingRecord) error {
	rec.UpdatedAt = time.Now()

	query := `
		UPDATE billing_records
		SET status = $2, confirmed_at = $3, submitted_at = $4, paid_at = $5, updated_at = $6
		WHERE id = $1`

	tag, err := r.conn(ctx).Exec(ctx, query,
		rec.ID, rec.Status, rec.ConfirmedAt, rec.SubmittedAt, rec.PaidAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update billing record status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDraftRecords removes every draft record for the month; details
// go with them via the foreign key cascade. Confirmed and later records
// are untouched.
func (r *PostgresRepository) DeleteDraftRecords(ctx context.Context, facilityID uuid.UUID, yearMonth string) error {
	query := `DELETE FROM billing_records WHERE facility_id = $1 AND year_month = $2 AND status = $3`

	_, err := r.conn(ctx).Exec(ctx, query, facilityID, yearMonth, StatusDraft)
	if err != nil {
		return fmt.Errorf("failed to delete draft billing records: %w", err)
	}
	return nil
}

func (r *PostgresRepository) BulkConfirm(ctx context.Context, facilityID uuid.UUID, yearMonth string, at time.Time) (int, error) {
	query := `
		UPDATE billing_records
		SET status = $4, confirmed_at = $3, updated_at = $3
		WHERE facility_id = $1 AND year_month = $2 AND status = $5`

	tag, err := r.conn(ctx).Exec(ctx, query, facilityID, yearMonth, at, StatusConfirmed, StatusDraft)
	if err != nil {
		return 0, fmt.Errorf("failed to confirm billing records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

const detailCols = `id, record_id, service_date, service_code, unit_count, is_absence, absence_type, additions, created_at, updated_at`

func scanDetail(row pgx.Row) (*BillingDetail, error) {
	var d BillingDetail
	var additions []byte
	err := row.Scan(
		&d.ID, &d.RecordID, &d.ServiceDate, &d.ServiceCode, &d.UnitCount,
		&d.IsAbsence, &d.AbsenceType, &additions, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(additions) > 0 {
		if err := json.Unmarshal(additions, &d.Additions); err != nil {
			return nil, fmt.Errorf("failed to decode additions: %w", err)
		}
	}
	return &d, nil
}

func marshalAdditions(additions []BillingAddition) ([]byte, error) {
	if additions == nil {
		additions = []BillingAddition{}
	}
	return json.Marshal(additions)
}

func (r *PostgresRepository) GetDetails(ctx context.Context, recordID uuid.UUID) ([]*BillingDetail, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM billing_details
		WHERE record_id = $1
		ORDER BY service_date`, detailCols)

	rows, err := r.conn(ctx).Query(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to list billing details: %w", err)
	}
	defer rows.Close()

	var details []*BillingDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan billing detail: %w", err)
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

func (r *PostgresRepository) GetDetail(ctx context.Context, id uuid.UUID) (*BillingDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM billing_details WHERE id = $1`, detailCols)

	d, err := scanDetail(r.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get billing detail: %w", err)
	}
	return d, nil
}

func (r *PostgresRepository) InsertDetails(ctx context.Context, details []*BillingDetail) error {
	conn := r.conn(ctx)
	now := time.Now()

	query := `
		INSERT INTO billing_details (id, record_id, service_date, service_code, unit_count, is_absence, absence_type, additions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	for _, d := range details {
		d.ID = uuid.New()
		d.CreatedAt = now
		d.UpdatedAt = now

		additions, err := marshalAdditions(d.Additions)
		if err != nil {
			return fmt.Errorf("failed to encode additions: %w", err)
		}
		_, err = conn.Exec(ctx, query,
			d.ID, d.RecordID, d.ServiceDate, d.ServiceCode, d.UnitCount, d.IsAbsence, d.AbsenceType, additions, d.CreatedAt, d.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert billing detail: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) UpdateDetail(ctx context.Context, d *BillingDetail) error {
	d.UpdatedAt = time.Now()

	additions, err := marshalAdditions(d.Additions)
	if err != nil {
		return fmt.Errorf("failed to encode additions: %w", err)
	}

	query := `
		UPDATE billing_details
		SET unit_count = $2, additions = $3, updated_at = $4
		WHERE id = $1`

	tag, err := r.conn(ctx).Exec(ctx, query, d.ID, d.UnitCount, additions, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update billing detail: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
