package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/epochkeeper/internal/domain"
)

// DefaultConfirmations is the confirmation depth awaited for every redeem.
const DefaultConfirmations uint64 = 2

// PositionSource lists the bonds to redeem.
type PositionSource interface {
	Bulk() []domain.Position
	Supplemental() []domain.Position
}

// PendingReader reads claimable payout. Reads are expected to retry
// internally until they succeed.
type PendingReader interface {
	TotalPending(ctx context.Context, positions []domain.Position, account common.Address, bulkOnly bool) (domain.Amount, error)
	Pending(ctx context.Context, p domain.Position, account common.Address) (domain.Amount, error)
}

// Redeemer claims pending payouts: one bulk call through the redeem helper,
// then one call per supplemental bond. Submissions are never retried.
type Redeemer struct {
	positions     PositionSource
	pending       PendingReader
	tx            domain.TxSubmitter
	stake         bool
	confirmations uint64
	logger        *slog.Logger
}

// NewRedeemer creates a Redeemer. When stake is set the claimed payout is
// restaked in the same transaction.
func NewRedeemer(positions PositionSource, pending PendingReader, tx domain.TxSubmitter, stake bool, logger *slog.Logger) *Redeemer {
	return &Redeemer{
		positions:     positions,
		pending:       pending,
		tx:            tx,
		stake:         stake,
		confirmations: DefaultConfirmations,
		logger:        logger.With(slog.String("component", "redeemer")),
	}
}

// SetConfirmations overrides the awaited confirmation depth. Zero is ignored.
func (r *Redeemer) SetConfirmations(n uint64) {
	if n > 0 {
		r.confirmations = n
	}
}

// Redeem runs the redeem procedure for account. A bulk failure aborts the
// whole procedure. Supplemental failures are collected into an error wrapping
// domain.ErrPartialRedeem, returned alongside the receipts that did confirm.
func (r *Redeemer) Redeem(ctx context.Context, account common.Address) ([]domain.Receipt, error) {
	var receipts []domain.Receipt

	bulk := r.positions.Bulk()
	if len(bulk) > 0 {
		total, err := r.pending.TotalPending(ctx, bulk, account, true)
		if err != nil {
			return nil, fmt.Errorf("executor: bulk pending: %w", err)
		}
		if total.IsPositive() {
			rc, err := r.submit(ctx, "bulk", func(ctx context.Context) (domain.PendingTx, error) {
				return r.tx.RedeemAll(ctx, account, r.stake)
			})
			if err != nil {
				return nil, fmt.Errorf("executor: redeem all: %w", err)
			}
			receipts = append(receipts, rc)
		} else {
			r.logger.InfoContext(ctx, "no bulk payout pending")
		}
	}

	var errs []error
	for _, p := range r.positions.Supplemental() {
		v, err := r.pending.Pending(ctx, p, account)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Label, err))
			continue
		}
		if !v.IsPositive() {
			continue
		}
		bond := p.Address
		rc, err := r.submit(ctx, p.Label, func(ctx context.Context) (domain.PendingTx, error) {
			return r.tx.Redeem(ctx, bond, account, r.stake)
		})
		if err != nil {
			r.logger.ErrorContext(ctx, "bond redeem failed",
				slog.String("bond", p.Label),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", p.Label, err))
			continue
		}
		receipts = append(receipts, rc)
	}

	if len(errs) > 0 {
		return receipts, fmt.Errorf("executor: %w: %w", domain.ErrPartialRedeem, errors.Join(errs...))
	}
	return receipts, nil
}

func (r *Redeemer) submit(ctx context.Context, label string, send func(ctx context.Context) (domain.PendingTx, error)) (domain.Receipt, error) {
	tx, err := send(ctx)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("submit: %w", err)
	}
	r.logger.InfoContext(ctx, "redeem submitted",
		slog.String("bond", label),
		slog.String("tx", tx.Hash.Hex()),
	)

	rc, err := r.tx.AwaitConfirmation(ctx, tx, r.confirmations)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("confirm %s: %w", tx.Hash.Hex(), err)
	}
	r.logger.InfoContext(ctx, "redeem confirmed",
		slog.String("bond", label),
		slog.String("tx", rc.TxHash.Hex()),
		slog.Uint64("block", rc.BlockNumber),
		slog.Uint64("gas_used", rc.GasUsed),
	)
	return rc, nil
}
