// Package domaintest provides in-memory fakes of the ledger gateway and
// transaction submitter for tests.
package domaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/epochkeeper/internal/domain"
)

// ErrInjected is returned by fakes configured to fail.
var ErrInjected = errors.New("injected failure")

// Bond describes one bond known to a Gateway.
type Bond struct {
	Address     common.Address
	Principal   common.Address
	Token0      common.Address
	Token1      common.Address
	VestingTerm uint64
	IsLiquidity bool
	Pending     int64
}

// Gateway is a programmable domain.LedgerGateway.
type Gateway struct {
	mu sync.Mutex

	Block     uint64
	Epoch     domain.Epoch
	Supply    domain.Amount
	BlockRate float64
	Staked    domain.Amount
	Native    domain.Amount
	Decimals  uint8
	BulkList  []common.Address
	Bonds     map[common.Address]*Bond
	Symbols   map[common.Address]string
	Failures  map[string]int // op -> remaining failures
	Calls     map[string]int
}

// NewGateway returns an empty Gateway with 0-decimal amounts.
func NewGateway() *Gateway {
	return &Gateway{
		Bonds:    make(map[common.Address]*Bond),
		Symbols:  make(map[common.Address]string),
		Failures: make(map[string]int),
		Calls:    make(map[string]int),
	}
}

// AddBond registers a bond. bulk controls whether the redeem helper lists it.
func (g *Gateway) AddBond(b Bond, bulk bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	bb := b
	g.Bonds[b.Address] = &bb
	if bulk {
		g.BulkList = append(g.BulkList, b.Address)
	}
}

// SetPending overwrites a bond's pending payout.
func (g *Gateway) SetPending(bond common.Address, v int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if b, ok := g.Bonds[bond]; ok {
		b.Pending = v
	}
}

// FailNext makes the next n calls of op fail.
func (g *Gateway) FailNext(op string, n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Failures[op] = n
}

// CallCount returns how many times op was invoked.
func (g *Gateway) CallCount(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Calls[op]
}

func (g *Gateway) enter(op string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls[op]++
	if g.Failures[op] > 0 {
		g.Failures[op]--
		return fmt.Errorf("%s: %w", op, ErrInjected)
	}
	return nil
}

func (g *Gateway) amount(v int64) domain.Amount {
	return domain.NewAmount(big.NewInt(v), g.Decimals)
}

func (g *Gateway) BlockNumber(ctx context.Context) (uint64, error) {
	if err := g.enter("BlockNumber"); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Block, nil
}

func (g *Gateway) CurrentEpoch(ctx context.Context) (domain.Epoch, error) {
	if err := g.enter("CurrentEpoch"); err != nil {
		return domain.Epoch{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Epoch, nil
}

func (g *Gateway) CirculatingSupply(ctx context.Context) (domain.Amount, error) {
	if err := g.enter("CirculatingSupply"); err != nil {
		return domain.Amount{}, err
	}
	return g.Supply, nil
}

func (g *Gateway) BlocksPerSecond(ctx context.Context, sample uint64) (float64, error) {
	if err := g.enter("BlocksPerSecond"); err != nil {
		return 0, err
	}
	return g.BlockRate, nil
}

func (g *Gateway) StakedBalance(ctx context.Context, account common.Address) (domain.Amount, error) {
	if err := g.enter("StakedBalance"); err != nil {
		return domain.Amount{}, err
	}
	return g.Staked, nil
}

func (g *Gateway) NativeBalance(ctx context.Context, account common.Address) (domain.Amount, error) {
	if err := g.enter("NativeBalance"); err != nil {
		return domain.Amount{}, err
	}
	return g.Native, nil
}

func (g *Gateway) BulkPositionAt(ctx context.Context, index int) (common.Address, error) {
	if err := g.enter("BulkPositionAt"); err != nil {
		return common.Address{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if index >= len(g.BulkList) {
		return common.Address{}, nil
	}
	return g.BulkList[index], nil
}

func (g *Gateway) PositionTerms(ctx context.Context, bond common.Address) (domain.PositionTerms, error) {
	if err := g.enter("PositionTerms"); err != nil {
		return domain.PositionTerms{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.Bonds[bond]
	if !ok {
		return domain.PositionTerms{}, domain.ErrNotFound
	}
	return domain.PositionTerms{VestingTerm: b.VestingTerm, Principal: b.Principal, IsLiquidity: b.IsLiquidity}, nil
}

func (g *Gateway) TokenSymbol(ctx context.Context, token common.Address) (string, error) {
	if err := g.enter("TokenSymbol"); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Symbols[token], nil
}

func (g *Gateway) PairTokens(ctx context.Context, pair common.Address) (common.Address, common.Address, error) {
	if err := g.enter("PairTokens"); err != nil {
		return common.Address{}, common.Address{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, b := range g.Bonds {
		if b.Principal == pair {
			return b.Token0, b.Token1, nil
		}
	}
	return common.Address{}, common.Address{}, domain.ErrNotFound
}

func (g *Gateway) PendingPayout(ctx context.Context, bond, account common.Address) (domain.Amount, error) {
	if err := g.enter("PendingPayout"); err != nil {
		return domain.Amount{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.Bonds[bond]
	if !ok {
		return domain.Amount{}, domain.ErrNotFound
	}
	return g.amount(b.Pending), nil
}

// Submitter is a programmable domain.TxSubmitter. Successful redeems zero
// the pending payout of the affected bonds on the linked Gateway.
type Submitter struct {
	mu sync.Mutex

	Gateway       *Gateway
	NextBlock     uint64
	FailRedeemAll error
	FailRedeem    map[common.Address]error
	FailConfirm   map[common.Hash]error

	RedeemAllCalls int
	RedeemCalls    []common.Address
	Confirmations  []uint64
	nonce          int64
}

// NewSubmitter links a Submitter to gw.
func NewSubmitter(gw *Gateway) *Submitter {
	return &Submitter{
		Gateway:     gw,
		NextBlock:   1000,
		FailRedeem:  make(map[common.Address]error),
		FailConfirm: make(map[common.Hash]error),
	}
}

func (s *Submitter) hash() common.Hash {
	s.nonce++
	return common.BigToHash(big.NewInt(s.nonce))
}

func (s *Submitter) RedeemAll(ctx context.Context, recipient common.Address, stake bool) (domain.PendingTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RedeemAllCalls++
	if s.FailRedeemAll != nil {
		return domain.PendingTx{}, s.FailRedeemAll
	}
	if s.Gateway != nil {
		s.Gateway.mu.Lock()
		for _, addr := range s.Gateway.BulkList {
			s.Gateway.Bonds[addr].Pending = 0
		}
		s.Gateway.mu.Unlock()
	}
	return domain.PendingTx{Hash: s.hash(), Kind: domain.RedeemBulk}, nil
}

func (s *Submitter) Redeem(ctx context.Context, bond, recipient common.Address, stake bool) (domain.PendingTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RedeemCalls = append(s.RedeemCalls, bond)
	if err := s.FailRedeem[bond]; err != nil {
		return domain.PendingTx{}, err
	}
	if s.Gateway != nil {
		s.Gateway.SetPending(bond, 0)
	}
	return domain.PendingTx{Hash: s.hash(), Kind: domain.RedeemIndividual, Position: bond}, nil
}

func (s *Submitter) AwaitConfirmation(ctx context.Context, tx domain.PendingTx, confirmations uint64) (domain.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Confirmations = append(s.Confirmations, confirmations)
	if err := s.FailConfirm[tx.Hash]; err != nil {
		return domain.Receipt{}, err
	}
	s.NextBlock++
	return domain.Receipt{
		TxHash:      tx.Hash,
		BlockNumber: s.NextBlock,
		Kind:        tx.Kind,
		Position:    tx.Position,
		GasUsed:     21000,
	}, nil
}

var (
	_ domain.LedgerGateway = (*Gateway)(nil)
	_ domain.TxSubmitter   = (*Submitter)(nil)
)
