package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/epochkeeper/internal/domain"
	"github.com/alanyoungcy/epochkeeper/internal/retry"
)

// PositionRegistry discovers the account's bonds once at startup and holds
// them for the rest of the run. Bonds enumerated by the redeem helper take
// the bulk path; supplemental addresses are redeemed one at a time.
type PositionRegistry struct {
	gw        domain.LedgerGateway
	retry     *retry.Executor
	positions []domain.Position
	logger    *slog.Logger
}

// NewPositionRegistry creates an empty PositionRegistry.
func NewPositionRegistry(gw domain.LedgerGateway, ex *retry.Executor, logger *slog.Logger) *PositionRegistry {
	return &PositionRegistry{
		gw:     gw,
		retry:  ex,
		logger: logger.With(slog.String("component", "position_registry")),
	}
}

// Discover enumerates up to maxPositions bulk-eligible bonds, appends the
// supplemental addresses and resolves each one. Resolution of a single bond
// is retried until it succeeds; it never aborts discovery.
func (r *PositionRegistry) Discover(ctx context.Context, maxPositions int, supplemental []common.Address) error {
	isSupplemental := make(map[common.Address]bool, len(supplemental))
	for _, addr := range supplemental {
		isSupplemental[addr] = true
	}

	var addrs []common.Address
	seen := make(map[common.Address]bool)
	for i := 0; i < maxPositions; i++ {
		idx := i
		addr, err := retry.Do(ctx, r.retry, "redeem_helper.bonds", func(ctx context.Context) (common.Address, error) {
			return r.gw.BulkPositionAt(ctx, idx)
		})
		if err != nil {
			return fmt.Errorf("service: discover bond %d: %w", idx, err)
		}
		if addr == (common.Address{}) {
			break
		}
		if seen[addr] || isSupplemental[addr] {
			continue
		}
		seen[addr] = true
		addrs = append(addrs, addr)
	}
	for _, addr := range supplemental {
		if seen[addr] {
			continue
		}
		seen[addr] = true
		addrs = append(addrs, addr)
	}

	positions := make([]domain.Position, 0, len(addrs))
	for _, addr := range addrs {
		pos, err := retry.Do(ctx, r.retry, "resolve_position", func(ctx context.Context) (domain.Position, error) {
			return r.resolve(ctx, addr, !isSupplemental[addr])
		})
		if err != nil {
			return fmt.Errorf("service: resolve bond %s: %w", addr.Hex(), err)
		}
		positions = append(positions, pos)
		r.logger.InfoContext(ctx, "bond discovered",
			slog.String("address", pos.Address.Hex()),
			slog.String("label", pos.Label),
			slog.Bool("bulk", pos.UsesBulkRedeem),
		)
	}

	r.positions = positions
	return nil
}

// resolve queries the bond terms and backing token symbols.
func (r *PositionRegistry) resolve(ctx context.Context, addr common.Address, bulk bool) (domain.Position, error) {
	terms, err := r.gw.PositionTerms(ctx, addr)
	if err != nil {
		return domain.Position{}, fmt.Errorf("terms: %w", err)
	}

	var symbol0, symbol1 string
	if terms.IsLiquidity {
		t0, t1, err := r.gw.PairTokens(ctx, terms.Principal)
		if err != nil {
			return domain.Position{}, fmt.Errorf("pair tokens: %w", err)
		}
		if symbol0, err = r.gw.TokenSymbol(ctx, t0); err != nil {
			return domain.Position{}, fmt.Errorf("symbol token0: %w", err)
		}
		if symbol1, err = r.gw.TokenSymbol(ctx, t1); err != nil {
			return domain.Position{}, fmt.Errorf("symbol token1: %w", err)
		}
	} else {
		if symbol0, err = r.gw.TokenSymbol(ctx, terms.Principal); err != nil {
			return domain.Position{}, fmt.Errorf("symbol principal: %w", err)
		}
	}

	return domain.Position{
		Address:        addr,
		Label:          domain.PositionLabel(symbol0, symbol1, terms.VestingTerm),
		UsesBulkRedeem: bulk,
		Principal:      terms.Principal,
		VestingTerm:    terms.VestingTerm,
		IsLiquidity:    terms.IsLiquidity,
	}, nil
}

// Positions returns every registered bond in discovery order.
func (r *PositionRegistry) Positions() []domain.Position {
	out := make([]domain.Position, len(r.positions))
	copy(out, r.positions)
	return out
}

// Bulk returns the bonds redeemed through the helper's bulk call.
func (r *PositionRegistry) Bulk() []domain.Position {
	return r.filter(true)
}

// Supplemental returns the bonds that need an individual redeem.
func (r *PositionRegistry) Supplemental() []domain.Position {
	return r.filter(false)
}

func (r *PositionRegistry) filter(bulk bool) []domain.Position {
	var out []domain.Position
	for _, p := range r.positions {
		if p.UsesBulkRedeem == bulk {
			out = append(out, p)
		}
	}
	return out
}
