package domain

import (
	"context"
)

// EpochLedgerStore persists stamped epochs so a restart does not forget
// which periods were already handled.
type EpochLedgerStore interface {
	Load(ctx context.Context) ([]LedgerEntry, error)
	Save(ctx context.Context, entry LedgerEntry) error
}

// ReceiptStore keeps an audit trail of confirmed redeem transactions.
type ReceiptStore interface {
	SaveReceipts(ctx context.Context, epoch uint64, receipts []Receipt) error
	ListByEpoch(ctx context.Context, epoch uint64) ([]Receipt, error)
}
