package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// RedeemKind distinguishes the bulk helper call from a single-bond redeem.
type RedeemKind string

const (
	RedeemBulk       RedeemKind = "bulk"
	RedeemIndividual RedeemKind = "individual"
)

// PendingTx is a submitted, not yet confirmed, transaction.
type PendingTx struct {
	Hash     common.Hash
	Kind     RedeemKind
	Position common.Address // zero for bulk redeems
}

// Receipt is a confirmed redeem transaction.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	Kind        RedeemKind
	Position    common.Address
	GasUsed     uint64
}

// LedgerEntry is one stamped epoch.
type LedgerEntry struct {
	Epoch      uint64
	Block      uint64
	RecordedAt time.Time
}

// RedeemReport summarises one triggered epoch for archival.
type RedeemReport struct {
	Epoch        uint64    `json:"epoch"`
	Account      string    `json:"account"`
	Block        uint64    `json:"block"`
	PendingValue string    `json:"pending_value"`
	RebaseRate   float64   `json:"rebase_rate"`
	Receipts     []Receipt `json:"receipts"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
