package domain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// LedgerGateway is the read side of the remote ledger. Every call may fail
// transiently; callers wrap them in a retry executor.
type LedgerGateway interface {
	BlockNumber(ctx context.Context) (uint64, error)
	CurrentEpoch(ctx context.Context) (Epoch, error)
	CirculatingSupply(ctx context.Context) (Amount, error)
	// BlocksPerSecond averages block production over the last sample blocks.
	BlocksPerSecond(ctx context.Context, sample uint64) (float64, error)
	StakedBalance(ctx context.Context, account common.Address) (Amount, error)
	NativeBalance(ctx context.Context, account common.Address) (Amount, error)

	// BulkPositionAt returns the redeem helper's bond at index. A zero
	// address marks the end of the enumerated set.
	BulkPositionAt(ctx context.Context, index int) (common.Address, error)
	PositionTerms(ctx context.Context, bond common.Address) (PositionTerms, error)
	TokenSymbol(ctx context.Context, token common.Address) (string, error)
	PairTokens(ctx context.Context, pair common.Address) (common.Address, common.Address, error)
	PendingPayout(ctx context.Context, bond, account common.Address) (Amount, error)
}

// TxSubmitter is the write side of the remote ledger.
type TxSubmitter interface {
	RedeemAll(ctx context.Context, recipient common.Address, stake bool) (PendingTx, error)
	Redeem(ctx context.Context, bond, recipient common.Address, stake bool) (PendingTx, error)
	AwaitConfirmation(ctx context.Context, tx PendingTx, confirmations uint64) (Receipt, error)
}
