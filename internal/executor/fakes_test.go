package executor

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/epochkeeper/internal/domain"
	"github.com/alanyoungcy/epochkeeper/internal/domain/domaintest"
	"github.com/alanyoungcy/epochkeeper/internal/retry"
	"github.com/alanyoungcy/epochkeeper/internal/service"
)

var (
	account = common.HexToAddress("0xacc")

	tokenDAI  = common.HexToAddress("0x02")
	tokenFRAX = common.HexToAddress("0x03")
	bondDAI   = common.HexToAddress("0xb1")
	bondFRAX  = common.HexToAddress("0xb3")
)

func testLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func testRetry() *retry.Executor {
	return retry.New(time.Millisecond, testLogger(), retry.WithSleep(func(context.Context, time.Duration) error { return nil }))
}

// fixture is a discovered registry over one bulk bond (DAI) and one
// supplemental bond (FRAX).
type fixture struct {
	gw       *domaintest.Gateway
	tx       *domaintest.Submitter
	registry *service.PositionRegistry
	values   *service.ValueAggregator
	redeemer *Redeemer
}

func newFixture(t *testing.T, bulkPending, suppPending int64) *fixture {
	t.Helper()
	gw := domaintest.NewGateway()
	gw.Decimals = 9
	gw.Symbols[tokenDAI] = "DAI"
	gw.Symbols[tokenFRAX] = "FRAX"
	gw.AddBond(domaintest.Bond{Address: bondDAI, Principal: tokenDAI, VestingTerm: 86400, Pending: bulkPending}, true)
	gw.AddBond(domaintest.Bond{Address: bondFRAX, Principal: tokenFRAX, VestingTerm: 86400, Pending: suppPending}, false)

	gw.Block = 998
	gw.Epoch = domain.Epoch{
		Number:     12,
		EndBlock:   1000,
		Length:     28800,
		Distribute: domain.NewAmount(big.NewInt(500), 9),
	}
	gw.Supply = domain.NewAmount(big.NewInt(1_000_000), 9)
	gw.BlockRate = 1
	gw.Staked = domain.NewAmount(big.NewInt(2_000_000_000), 9)
	gw.Native = domain.NewAmount(big.NewInt(1e18), 18)

	reg := service.NewPositionRegistry(gw, testRetry(), testLogger())
	require.NoError(t, reg.Discover(context.Background(), 20, []common.Address{bondFRAX}))
	values := service.NewValueAggregator(gw, testRetry(), 9, testLogger())
	tx := domaintest.NewSubmitter(gw)

	return &fixture{
		gw:       gw,
		tx:       tx,
		registry: reg,
		values:   values,
		redeemer: NewRedeemer(reg, values, tx, true, testLogger()),
	}
}

type countingGate struct {
	mu      sync.Mutex
	paused  int
	resumed int
}

func (g *countingGate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paused++
}

func (g *countingGate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resumed++
}

type memStore struct {
	mu      sync.Mutex
	entries []domain.LedgerEntry
	failN   int
}

func (s *memStore) Load(context.Context) ([]domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.LedgerEntry(nil), s.entries...), nil
}

func (s *memStore) Save(_ context.Context, e domain.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failN > 0 {
		s.failN--
		return errors.New("connection reset")
	}
	s.entries = append(s.entries, e)
	return nil
}

type memReceipts struct {
	byEpoch map[uint64][]domain.Receipt
}

func (m *memReceipts) SaveReceipts(_ context.Context, epoch uint64, rs []domain.Receipt) error {
	if m.byEpoch == nil {
		m.byEpoch = make(map[uint64][]domain.Receipt)
	}
	m.byEpoch[epoch] = append(m.byEpoch[epoch], rs...)
	return nil
}

func (m *memReceipts) ListByEpoch(_ context.Context, epoch uint64) ([]domain.Receipt, error) {
	return m.byEpoch[epoch], nil
}

type heldLock struct{ calls int }

func (l *heldLock) Acquire(context.Context, string, time.Duration) (func(), error) {
	l.calls++
	return nil, domain.ErrLockHeld
}

type recordingNotifier struct{ events []string }

func (n *recordingNotifier) Notify(_ context.Context, event, _, _ string) error {
	n.events = append(n.events, event)
	return nil
}

type recordingArchiver struct{ reports []domain.RedeemReport }

func (a *recordingArchiver) ArchiveReport(_ context.Context, r domain.RedeemReport) error {
	a.reports = append(a.reports, r)
	return nil
}

type recordingBus struct{ payloads [][]byte }

func (b *recordingBus) Publish(_ context.Context, _ string, payload []byte) error {
	b.payloads = append(b.payloads, payload)
	return nil
}

func hashOf(n int64) common.Hash {
	return common.BigToHash(big.NewInt(n))
}
