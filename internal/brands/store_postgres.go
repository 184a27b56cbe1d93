package brands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initBrandSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initBrandSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS brands (
			id BIGSERIAL PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			merchant_name TEXT NOT NULL,
			merchant_id TEXT NOT NULL UNIQUE,
			record_url TEXT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_brands_merchant_id ON brands (merchant_id);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init brand schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Brand, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, created_at, merchant_name, merchant_id, record_url
		   FROM brands ORDER BY merchant_name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	defer rows.Close()

	out := make([]Brand, 0, 16)
	for rows.Next() {
		var b Brand
		if err := rows.Scan(&b.ID, &b.CreatedAt, &b.MerchantName, &b.MerchantID, &b.RecordURL); err != nil {
			return nil, fmt.Errorf("scan brand row: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate brand rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id int64) (Brand, error) {
	return s.getBy(ctx, `id=$1`, id)
}

func (s *PostgresStore) GetByMerchantID(ctx context.Context, merchantID string) (Brand, error) {
	return s.getBy(ctx, `merchant_id=$1`, merchantID)
}

func (s *PostgresStore) getBy(ctx context.Context, where string, arg any) (Brand, error) {
	var b Brand
	err := s.pool.QueryRow(ctx,
		`SELECT id, created_at, merchant_name, merchant_id, record_url
		   FROM brands WHERE `+where, arg,
	).Scan(&b.ID, &b.CreatedAt, &b.MerchantName, &b.MerchantID, &b.RecordURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Brand{}, ErrNotFound
		}
		return Brand{}, fmt.Errorf("get brand: %w", err)
	}
	return b, nil
}

// UpdateRecordURL sets the stored recording URL for a merchant. A missing row
// returns false without an error; that is a data-integrity problem for the
// caller to report, not to retry. The primary path updates by primary key and
// reads the row back; if the value did not stick, a second update through the
// merchant_id index runs and the row is verified once more. True means the
// stored value matches the intended value exactly.
func (s *PostgresStore) UpdateRecordURL(ctx context.Context, merchantID, url string) (bool, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `SELECT id FROM brands WHERE merchant_id=$1`, merchantID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Printf("no brand found for merchant %s", merchantID)
			return false, nil
		}
		return false, fmt.Errorf("lookup brand: %w", err)
	}

	if _, err := s.pool.Exec(ctx, `UPDATE brands SET record_url=$2 WHERE id=$1`, id, url); err != nil {
		return false, fmt.Errorf("update record url: %w", err)
	}
	stored, err := s.readRecordURL(ctx, id)
	if err != nil {
		return false, err
	}
	if stored == url {
		return true, nil
	}

	log.Printf("record url update for merchant %s did not stick, retrying via merchant_id", merchantID)
	if _, err := s.pool.Exec(ctx, `UPDATE brands SET record_url=$2 WHERE merchant_id=$1`, merchantID, url); err != nil {
		return false, fmt.Errorf("fallback update record url: %w", err)
	}
	stored, err = s.readRecordURL(ctx, id)
	if err != nil {
		return false, err
	}
	return stored == url, nil
}

func (s *PostgresStore) readRecordURL(ctx context.Context, id int64) (string, error) {
	var stored *string
	if err := s.pool.QueryRow(ctx, `SELECT record_url FROM brands WHERE id=$1`, id).Scan(&stored); err != nil {
		return "", fmt.Errorf("read back record url: %w", err)
	}
	if stored == nil {
		return "", nil
	}
	return *stored, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
