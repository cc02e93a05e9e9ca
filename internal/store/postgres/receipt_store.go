package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/epochkeeper/internal/domain"
)

// ReceiptStore implements domain.ReceiptStore using PostgreSQL.
type ReceiptStore struct {
	pool *pgxpool.Pool
}

// NewReceiptStore creates a new ReceiptStore backed by the given connection
// pool.
func NewReceiptStore(pool *pgxpool.Pool) *ReceiptStore {
	return &ReceiptStore{pool: pool}
}

// SaveReceipts writes all receipts of one epoch in a single batch.
func (s *ReceiptStore) SaveReceipts(ctx context.Context, epoch uint64, receipts []domain.Receipt) error {
	if len(receipts) == 0 {
		return nil
	}
	const query = `
		INSERT INTO redeem_receipts (tx_hash, epoch, block_number, kind, bond_address, gas_used)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tx_hash) DO NOTHING`

	batch := &pgx.Batch{}
	for _, r := range receipts {
		batch.Queue(query, r.TxHash.Hex(), int64(epoch), int64(r.BlockNumber), string(r.Kind), bondColumn(r.Position), int64(r.GasUsed))
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres: save receipts for epoch %d: %w", epoch, err)
	}
	return nil
}

// ListByEpoch returns the receipts of one epoch in block order.
func (s *ReceiptStore) ListByEpoch(ctx context.Context, epoch uint64) ([]domain.Receipt, error) {
	const query = `
		SELECT tx_hash, block_number, kind, bond_address, gas_used
		FROM redeem_receipts WHERE epoch = $1 ORDER BY block_number, tx_hash`
	rows, err := s.pool.Query(ctx, query, int64(epoch))
	if err != nil {
		return nil, fmt.Errorf("postgres: list receipts for epoch %d: %w", epoch, err)
	}
	defer rows.Close()

	var out []domain.Receipt
	for rows.Next() {
		var hash, kind, bond string
		var block, gas int64
		if err := rows.Scan(&hash, &block, &kind, &bond, &gas); err != nil {
			return nil, fmt.Errorf("postgres: scan receipt: %w", err)
		}
		r := domain.Receipt{
			TxHash:      common.HexToHash(hash),
			BlockNumber: uint64(block),
			Kind:        domain.RedeemKind(kind),
			GasUsed:     uint64(gas),
		}
		if bond != "" {
			r.Position = common.HexToAddress(bond)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate receipts: %w", err)
	}
	return out, nil
}

// bondColumn stores bulk receipts, which have no bond, as an empty string.
func bondColumn(addr common.Address) string {
	if addr == (common.Address{}) {
		return ""
	}
	return addr.Hex()
}

var _ domain.ReceiptStore = (*ReceiptStore)(nil)
