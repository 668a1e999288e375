package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solsweep/sweepbot/internal/domain"
)

// PnLStore implements domain.PnLStore using PostgreSQL. PnL records are an
// append-only log; the adaptive threshold keeps a full adjustment history and
// the latest row wins on load.
type PnLStore struct {
	pool *pgxpool.Pool
}

// NewPnLStore creates a PnLStore backed by the given connection pool.
func NewPnLStore(pool *pgxpool.Pool) *PnLStore {
	return &PnLStore{pool: pool}
}

var _ domain.PnLStore = (*PnLStore)(nil)

// AppendRecord inserts one realized-profit entry.
func (s *PnLStore) AppendRecord(ctx context.Context, rec domain.PnLRecord) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO pnl_records (amount_base, recorded_at) VALUES ($1, $2)",
		rec.AmountBase, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: append pnl record: %w", err)
	}
	return nil
}

// RecordsSince returns all records at or after the given instant, oldest
// first.
func (s *PnLStore) RecordsSince(ctx context.Context, since time.Time) ([]domain.PnLRecord, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT amount_base, recorded_at FROM pnl_records WHERE recorded_at >= $1 ORDER BY recorded_at",
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: query pnl records: %w", err)
	}
	defer rows.Close()

	var records []domain.PnLRecord
	for rows.Next() {
		var rec domain.PnLRecord
		if err := rows.Scan(&rec.AmountBase, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan pnl record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate pnl records: %w", err)
	}
	return records, nil
}

// SaveThreshold appends one threshold adjustment.
func (s *PnLStore) SaveThreshold(ctx context.Context, value float64, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO threshold_history (value, adjusted_at) VALUES ($1, $2)",
		value, at,
	)
	if err != nil {
		return fmt.Errorf("postgres: save threshold: %w", err)
	}
	return nil
}

// LoadThreshold returns the most recently saved threshold, or
// domain.ErrNotFound when none has ever been saved.
func (s *PnLStore) LoadThreshold(ctx context.Context) (float64, error) {
	var value float64
	err := s.pool.QueryRow(ctx,
		"SELECT value FROM threshold_history ORDER BY adjusted_at DESC, id DESC LIMIT 1",
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: load threshold: %w", err)
	}
	return value, nil
}
