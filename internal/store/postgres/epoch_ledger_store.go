package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/epochkeeper/internal/domain"
)

// EpochLedgerStore implements domain.EpochLedgerStore using PostgreSQL.
type EpochLedgerStore struct {
	pool *pgxpool.Pool
}

// NewEpochLedgerStore creates a new EpochLedgerStore backed by the given
// connection pool.
func NewEpochLedgerStore(pool *pgxpool.Pool) *EpochLedgerStore {
	return &EpochLedgerStore{pool: pool}
}

// Save inserts entry. An existing row for the epoch is left untouched.
func (s *EpochLedgerStore) Save(ctx context.Context, entry domain.LedgerEntry) error {
	const query = `
		INSERT INTO epoch_ledger (epoch, block_number, recorded_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (epoch) DO NOTHING`
	if _, err := s.pool.Exec(ctx, query, int64(entry.Epoch), int64(entry.Block), entry.RecordedAt); err != nil {
		return fmt.Errorf("postgres: save epoch %d: %w", entry.Epoch, err)
	}
	return nil
}

// Load returns every stored epoch ordered by number.
func (s *EpochLedgerStore) Load(ctx context.Context) ([]domain.LedgerEntry, error) {
	const query = `SELECT epoch, block_number, recorded_at FROM epoch_ledger ORDER BY epoch`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: load epochs: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var epoch, block int64
		var e domain.LedgerEntry
		if err := rows.Scan(&epoch, &block, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan epoch: %w", err)
		}
		e.Epoch = uint64(epoch)
		e.Block = uint64(block)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate epochs: %w", err)
	}
	return entries, nil
}

var _ domain.EpochLedgerStore = (*EpochLedgerStore)(nil)
