package child

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

// ErrNotFound is returned when no child matches the given ID.
var ErrNotFound = errors.New("child not found")

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

const childCols = `id, facility_id, name, kana, birth_date, beneficiary_number, service_type, income_category, upper_limit_amount, guardian_name, notes, created_at, updated_at`

func scanChild(row pgx.Row) (*Child, error) {
	var ch Child
	err := row.Scan(
		&ch.ID, &ch.FacilityID, &ch.Name, &ch.Kana, &ch.BirthDate,
		&ch.BeneficiaryNumber, &ch.ServiceType, &ch.IncomeCategory, &ch.UpperLimitAmount,
		&ch.GuardianName, &ch.Notes, &ch.CreatedAt, &ch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (r *PostgresRepository) Create(ctx context.Context, ch *Child) error {
	ch.ID = uuid.New()
	now := time.Now()
	ch.CreatedAt = now
	ch.UpdatedAt = now

	query := `
		INSERT INTO children (id, facility_id, name, kana, birth_date, beneficiary_number, service_type, income_category, upper_limit_amount, guardian_name, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.conn(ctx).Exec(ctx, query,
		ch.ID, ch.FacilityID, ch.Name, ch.Kana, ch.BirthDate,
		ch.BeneficiaryNumber, ch.ServiceType, ch.IncomeCategory, ch.UpperLimitAmount,
		ch.GuardianName, ch.Notes, ch.CreatedAt, ch.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create child: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Child, error) {
	query := fmt.Sprintf(`SELECT %s FROM children WHERE id = $1`, childCols)

	ch, err := scanChild(r.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get child: %w", err)
	}
	return ch, nil
}

func (r *PostgresRepository) Update(ctx context.Context, ch *Child) error {
	ch.UpdatedAt = time.Now()

	query := `
		UPDATE children
		SET name = $2, kana = $3, birth_date = $4, beneficiary_number = $5, service_type = $6,
		    income_category = $7, upper_limit_amount = $8, guardian_name = $9, notes = $10, updated_at = $11
		WHERE id = $1`

	tag, err := r.conn(ctx).Exec(ctx, query,
		ch.ID, ch.Name, ch.Kana, ch.BirthDate, ch.BeneficiaryNumber, ch.ServiceType,
		ch.IncomeCategory, ch.UpperLimitAmount, ch.GuardianName, ch.Notes, ch.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update child: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM children WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete child: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ListByFacility(ctx context.Context, facilityID uuid.UUID, limit, offset int) ([]*Child, int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM children WHERE facility_id = $1`, facilityID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count children: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM children WHERE facility_id = $1 ORDER BY kana NULLS LAST, name LIMIT $2 OFFSET $3`, childCols)

	rows, err := r.conn(ctx).Query(ctx, query, facilityID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list children: %w", err)
	}
	defer rows.Close()

	var children []*Child
	for rows.Next() {
		ch, err := scanChild(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan child: %w", err)
		}
		children = append(children, ch)
	}
	return children, total, rows.Err()
}
