package evm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/epochkeeper/internal/domain"
)

// NativeDecimals is the decimals of the chain's gas token.
const NativeDecimals uint8 = 18

// Contracts holds the fixed contract addresses.
type Contracts struct {
	Staking      common.Address
	StakedToken  common.Address
	RedeemHelper common.Address
}

// Gateway implements domain.LedgerGateway with eth_call reads.
type Gateway struct {
	backend   Backend
	contracts Contracts
	decimals  uint8
	logger    *slog.Logger
}

// NewGateway creates a Gateway. decimals applies to the staked token, the
// epoch distribution and bond payouts.
func NewGateway(backend Backend, contracts Contracts, decimals uint8, logger *slog.Logger) *Gateway {
	return &Gateway{
		backend:   backend,
		contracts: contracts,
		decimals:  decimals,
		logger:    logger.With(slog.String("component", "evm_gateway")),
	}
}

// call packs method, runs eth_call against to at the latest block and
// unpacks the outputs.
func (g *Gateway) call(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("evm: pack %s: %w", method, err)
	}
	out, err := g.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("evm: call %s on %s: %w", method, to.Hex(), err)
	}
	values, err := contract.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("evm: unpack %s: %w", method, err)
	}
	return values, nil
}

func (g *Gateway) callBig(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) (*big.Int, error) {
	values, err := g.call(ctx, contract, to, method, args...)
	if err != nil {
		return nil, err
	}
	return bigAt(values, 0, method)
}

func (g *Gateway) callAddress(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) (common.Address, error) {
	values, err := g.call(ctx, contract, to, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	if len(values) == 0 {
		return common.Address{}, fmt.Errorf("evm: %s: empty result", method)
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("evm: %s: unexpected type %T", method, values[0])
	}
	return addr, nil
}

func bigAt(values []any, i int, method string) (*big.Int, error) {
	if len(values) <= i {
		return nil, fmt.Errorf("evm: %s: missing output %d", method, i)
	}
	v, ok := values[i].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("evm: %s: output %d has type %T", method, i, values[i])
	}
	return v, nil
}

func (g *Gateway) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := g.backend.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("evm: block number: %w", err)
	}
	return n, nil
}

// CurrentEpoch reads Staking.epoch().
func (g *Gateway) CurrentEpoch(ctx context.Context) (domain.Epoch, error) {
	values, err := g.call(ctx, stakingABI, g.contracts.Staking, "epoch")
	if err != nil {
		return domain.Epoch{}, err
	}
	fields := make([]*big.Int, 4)
	for i := range fields {
		if fields[i], err = bigAt(values, i, "epoch"); err != nil {
			return domain.Epoch{}, err
		}
	}
	return domain.Epoch{
		Length:     fields[0].Uint64(),
		Number:     fields[1].Uint64(),
		EndBlock:   fields[2].Uint64(),
		Distribute: domain.NewAmount(fields[3], g.decimals),
	}, nil
}

func (g *Gateway) CirculatingSupply(ctx context.Context) (domain.Amount, error) {
	v, err := g.callBig(ctx, stakedTokenABI, g.contracts.StakedToken, "circulatingSupply")
	if err != nil {
		return domain.Amount{}, err
	}
	return domain.NewAmount(v, g.decimals), nil
}

// BlocksPerSecond averages block production between the head and the block
// sample blocks below it.
func (g *Gateway) BlocksPerSecond(ctx context.Context, sample uint64) (float64, error) {
	head, err := g.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("evm: head header: %w", err)
	}
	headNum := head.Number.Uint64()
	if sample > headNum {
		sample = headNum
	}
	if sample == 0 {
		return 0, errors.New("evm: block rate: chain too short")
	}
	past, err := g.backend.HeaderByNumber(ctx, new(big.Int).SetUint64(headNum-sample))
	if err != nil {
		return 0, fmt.Errorf("evm: header %d: %w", headNum-sample, err)
	}
	if head.Time <= past.Time {
		return 0, fmt.Errorf("evm: block rate: non-increasing timestamps %d..%d", past.Time, head.Time)
	}
	return float64(sample) / float64(head.Time-past.Time), nil
}

func (g *Gateway) StakedBalance(ctx context.Context, account common.Address) (domain.Amount, error) {
	v, err := g.callBig(ctx, stakedTokenABI, g.contracts.StakedToken, "balanceOf", account)
	if err != nil {
		return domain.Amount{}, err
	}
	return domain.NewAmount(v, g.decimals), nil
}

func (g *Gateway) NativeBalance(ctx context.Context, account common.Address) (domain.Amount, error) {
	v, err := g.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return domain.Amount{}, fmt.Errorf("evm: balance: %w", err)
	}
	return domain.NewAmount(v, NativeDecimals), nil
}

// BulkPositionAt reads RedeemHelper.bonds(index). Reading past the end of
// the helper's array reverts; that is reported as the zero address.
func (g *Gateway) BulkPositionAt(ctx context.Context, index int) (common.Address, error) {
	addr, err := g.callAddress(ctx, redeemHelperABI, g.contracts.RedeemHelper, "bonds", big.NewInt(int64(index)))
	if err != nil {
		if isRevert(err) {
			g.logger.DebugContext(ctx, "end of redeem helper bonds", slog.Int("index", index))
			return common.Address{}, nil
		}
		return common.Address{}, err
	}
	return addr, nil
}

// PositionTerms reads the bond's vesting term, principal and kind.
func (g *Gateway) PositionTerms(ctx context.Context, bond common.Address) (domain.PositionTerms, error) {
	values, err := g.call(ctx, bondABI, bond, "terms")
	if err != nil {
		return domain.PositionTerms{}, err
	}
	vesting, err := bigAt(values, 1, "terms")
	if err != nil {
		return domain.PositionTerms{}, err
	}
	principal, err := g.callAddress(ctx, bondABI, bond, "principle")
	if err != nil {
		return domain.PositionTerms{}, err
	}
	kind, err := g.call(ctx, bondABI, bond, "isLiquidityBond")
	if err != nil {
		return domain.PositionTerms{}, err
	}
	isLP, ok := kind[0].(bool)
	if !ok {
		return domain.PositionTerms{}, fmt.Errorf("evm: isLiquidityBond: unexpected type %T", kind[0])
	}
	return domain.PositionTerms{
		VestingTerm: vesting.Uint64(),
		Principal:   principal,
		IsLiquidity: isLP,
	}, nil
}

func (g *Gateway) TokenSymbol(ctx context.Context, token common.Address) (string, error) {
	values, err := g.call(ctx, erc20ABI, token, "symbol")
	if err != nil {
		return "", err
	}
	s, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("evm: symbol: unexpected type %T", values[0])
	}
	return s, nil
}

func (g *Gateway) PairTokens(ctx context.Context, pair common.Address) (common.Address, common.Address, error) {
	t0, err := g.callAddress(ctx, pairABI, pair, "token0")
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	t1, err := g.callAddress(ctx, pairABI, pair, "token1")
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return t0, t1, nil
}

func (g *Gateway) PendingPayout(ctx context.Context, bond, account common.Address) (domain.Amount, error) {
	v, err := g.callBig(ctx, bondABI, bond, "pendingPayoutFor", account)
	if err != nil {
		return domain.Amount{}, err
	}
	return domain.NewAmount(v, g.decimals), nil
}

func isRevert(err error) bool {
	return strings.Contains(err.Error(), "execution reverted")
}

var _ domain.LedgerGateway = (*Gateway)(nil)
