package catalog

import (
	"context"
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

// PostgresRepository implements Repository backed by the service_codes table.
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

const serviceCodeCols = `id, code, name, category, base_units, description, effective_from, effective_to, created_at`

func scanServiceCode(row pgx.Row) (*ServiceCode, error) {
	var sc ServiceCode
	err := row.Scan(
		&sc.ID, &sc.Code, &sc.Name, &sc.Category, &sc.BaseUnits,
		&sc.Description, &sc.EffectiveFrom, &sc.EffectiveTo, &sc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*ServiceCode, error) {
	query := fmt.Sprintf(`SELECT %s FROM service_codes ORDER BY code`, serviceCodeCols)

	rows, err := r.conn(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list service codes: %w", err)
	}
	defer rows.Close()

	var codes []*ServiceCode
	for rows.Next() {
		sc, err := scanServiceCode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service code: %w", err)
		}
		codes = append(codes, sc)
	}
	return codes, rows.Err()
}

func (r *PostgresRepository) Create(ctx context.Context, sc *ServiceCode) error {
	sc.ID = uuid.New()
	sc.CreatedAt = time.Now()

	query := `
		INSERT INTO service_codes (id, code, name, category, base_units, description, effective_from, effective_to, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.conn(ctx).Exec(ctx, query,
		sc.ID, sc.Code, sc.Name, sc.Category, sc.BaseUnits,
		sc.Description, sc.EffectiveFrom, sc.EffectiveTo, sc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create service code: %w", err)
	}
	return nil
}
