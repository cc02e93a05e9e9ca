package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/epochkeeper/internal/domain"
	"github.com/alanyoungcy/epochkeeper/internal/retry"
)

// ValueAggregator sums claimable payout across bonds.
type ValueAggregator struct {
	gw       domain.LedgerGateway
	retry    *retry.Executor
	decimals uint8
	logger   *slog.Logger
}

// NewValueAggregator creates a ValueAggregator. decimals is used for the
// zero value returned over an empty set.
func NewValueAggregator(gw domain.LedgerGateway, ex *retry.Executor, decimals uint8, logger *slog.Logger) *ValueAggregator {
	return &ValueAggregator{
		gw:       gw,
		retry:    ex,
		decimals: decimals,
		logger:   logger.With(slog.String("component", "value_aggregator")),
	}
}

// TotalPending sums the pending payout for account across positions, or
// only the bulk-eligible ones when bulkOnly is set. Each query is retried
// until it succeeds, so one unreachable bond stalls the whole sum.
func (a *ValueAggregator) TotalPending(ctx context.Context, positions []domain.Position, account common.Address, bulkOnly bool) (domain.Amount, error) {
	total := domain.ZeroAmount(a.decimals)
	for _, p := range positions {
		if bulkOnly && !p.UsesBulkRedeem {
			continue
		}
		v, err := a.Pending(ctx, p, account)
		if err != nil {
			return domain.Amount{}, err
		}
		total = total.Add(v)
	}
	return total, nil
}

// Pending returns one bond's pending payout for account.
func (a *ValueAggregator) Pending(ctx context.Context, p domain.Position, account common.Address) (domain.Amount, error) {
	v, err := retry.Do(ctx, a.retry, "bond.pendingPayoutFor", func(ctx context.Context) (domain.Amount, error) {
		return a.gw.PendingPayout(ctx, p.Address, account)
	})
	if err != nil {
		return domain.Amount{}, fmt.Errorf("service: pending payout %s: %w", p.Label, err)
	}
	a.logger.DebugContext(ctx, "pending payout",
		slog.String("bond", p.Label),
		slog.String("value", v.String()),
	)
	return v, nil
}
