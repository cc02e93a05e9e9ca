package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alanyoungcy/epochkeeper/internal/domain"
	"github.com/alanyoungcy/epochkeeper/internal/projection"
	"github.com/alanyoungcy/epochkeeper/internal/retry"
)

const (
	// DefaultTriggerWindow is how many blocks before the epoch end block the
	// redeem may fire.
	DefaultTriggerWindow int64 = 300

	// DefaultBlockSample is the block span used to average block time.
	DefaultBlockSample uint64 = 1000

	// StatusChannel is the pub/sub channel tick statuses are published on.
	StatusChannel = "epochkeeper:status"

	lockTTL = 10 * time.Minute
)

// Notification event types.
const (
	EventRedeemSuccess = "redeem_success"
	EventRedeemPartial = "redeem_partial"
	EventRedeemFailed  = "redeem_failed"
)

// Gate pauses the tick source while a redeem is in flight.
type Gate interface {
	Pause()
	Resume()
}

type noopGate struct{}

func (noopGate) Pause()  {}
func (noopGate) Resume() {}

// RedeemRunner performs the redeem procedure.
type RedeemRunner interface {
	Redeem(ctx context.Context, account common.Address) ([]domain.Receipt, error)
}

// Notifier delivers operator notifications.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// MetricsRecorder receives per-tick and per-redeem observations.
type MetricsRecorder interface {
	ObserveTick(st domain.TickStatus)
	ObserveRedeem(receipts int, err error)
}

// CoordinatorConfig wires a Coordinator. Fields below Logger are optional.
type CoordinatorConfig struct {
	Gateway   domain.LedgerGateway
	Positions PositionSource
	Pending   PendingReader
	Redeemer  RedeemRunner
	Ledger    *EpochLedger
	Gate      Gate
	Retry     *retry.Executor
	Account   common.Address
	Window    int64
	Sample    uint64
	Decimals  uint8
	DryRun    bool
	Logger    *slog.Logger

	Store    domain.EpochLedgerStore
	Receipts domain.ReceiptStore
	Locks    domain.LockManager
	Notifier Notifier
	Archiver domain.ReportArchiver
	Bus      domain.StatusBus
	Metrics  MetricsRecorder
}

// Coordinator evaluates the epoch on every tick and triggers the redeem at
// most once per epoch, inside the window before the epoch end block and only
// when bulk payout is pending.
type Coordinator struct {
	cfg    CoordinatorConfig
	logger *slog.Logger

	mu   sync.RWMutex
	last domain.TickStatus
	seen bool
}

// NewCoordinator creates a Coordinator. Zero Window and Sample fall back to
// their defaults.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	if cfg.Window == 0 {
		cfg.Window = DefaultTriggerWindow
	}
	if cfg.Sample == 0 {
		cfg.Sample = DefaultBlockSample
	}
	if cfg.Ledger == nil {
		cfg.Ledger = NewEpochLedger()
	}
	if cfg.Gate == nil {
		cfg.Gate = noopGate{}
	}
	return &Coordinator{
		cfg:    cfg,
		logger: cfg.Logger.With(slog.String("component", "coordinator")),
	}
}

// ShouldTrigger reports whether the redeem fires: the epoch end is at most
// window blocks away (or already passed), the epoch has not been handled and
// bulk payout is pending.
func ShouldTrigger(delta, window int64, triggered bool, pending domain.Amount) bool {
	return delta <= window && !triggered && pending.IsPositive()
}

// Ledger returns the coordinator's epoch ledger.
func (c *Coordinator) Ledger() *EpochLedger {
	return c.cfg.Ledger
}

// Last returns the most recent tick status. ok is false before the first tick.
func (c *Coordinator) Last() (st domain.TickStatus, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last, c.seen
}

// Restore loads the durable ledger, if one is configured.
func (c *Coordinator) Restore(ctx context.Context) error {
	if c.cfg.Store == nil {
		return nil
	}
	entries, err := retry.Do(ctx, c.cfg.Retry, "ledger.load", c.cfg.Store.Load)
	if err != nil {
		return fmt.Errorf("executor: restore ledger: %w", err)
	}
	n := c.cfg.Ledger.Restore(entries)
	c.logger.InfoContext(ctx, "epoch ledger restored", slog.Int("entries", n))
	return nil
}

// Tick runs one evaluation and, when due, the redeem. It only returns an
// error when ctx is cancelled while reading ledger state.
func (c *Coordinator) Tick(ctx context.Context) (domain.TickStatus, error) {
	st := domain.TickStatus{TickID: uuid.NewString(), At: time.Now().UTC()}

	if err := c.evaluate(ctx, &st); err != nil {
		return st, err
	}

	if ShouldTrigger(st.Delta, c.cfg.Window, st.Triggered, st.PendingValue) {
		if c.cfg.DryRun {
			c.logger.InfoContext(ctx, "would trigger redeem",
				slog.Uint64("epoch", st.Epoch.Number),
				slog.Int64("delta", st.Delta),
				slog.String("pending", st.PendingValue.String()),
			)
		} else {
			st.Receipts = c.trigger(ctx, st)
			st.Triggered = c.cfg.Ledger.HasTriggered(st.Epoch.Number)
		}
	}

	c.publish(ctx, st)
	return st, nil
}

func (c *Coordinator) evaluate(ctx context.Context, st *domain.TickStatus) error {
	gw := c.cfg.Gateway
	ex := c.cfg.Retry
	account := c.cfg.Account

	block, err := retry.Do(ctx, ex, "eth_blockNumber", gw.BlockNumber)
	if err != nil {
		return fmt.Errorf("executor: block number: %w", err)
	}
	epoch, err := retry.Do(ctx, ex, "staking.epoch", gw.CurrentEpoch)
	if err != nil {
		return fmt.Errorf("executor: epoch: %w", err)
	}
	supply, err := retry.Do(ctx, ex, "stoken.circulatingSupply", gw.CirculatingSupply)
	if err != nil {
		return fmt.Errorf("executor: circulating supply: %w", err)
	}
	bps, err := retry.Do(ctx, ex, "block_rate", func(ctx context.Context) (float64, error) {
		return gw.BlocksPerSecond(ctx, c.cfg.Sample)
	})
	if err != nil {
		return fmt.Errorf("executor: block rate: %w", err)
	}
	staked, err := retry.Do(ctx, ex, "stoken.balanceOf", func(ctx context.Context) (domain.Amount, error) {
		return gw.StakedBalance(ctx, account)
	})
	if err != nil {
		return fmt.Errorf("executor: staked balance: %w", err)
	}
	native, err := retry.Do(ctx, ex, "eth_getBalance", func(ctx context.Context) (domain.Amount, error) {
		return gw.NativeBalance(ctx, account)
	})
	if err != nil {
		return fmt.Errorf("executor: native balance: %w", err)
	}

	pending := domain.ZeroAmount(c.cfg.Decimals)
	if bulk := c.cfg.Positions.Bulk(); len(bulk) > 0 {
		pending, err = c.cfg.Pending.TotalPending(ctx, bulk, account, true)
		if err != nil {
			return fmt.Errorf("executor: pending value: %w", err)
		}
	}

	st.CurrentBlock = block
	st.Epoch = epoch
	st.Delta = epoch.BlocksUntilEnd(block)
	st.Projection = projection.Project(projection.Counters{
		Distribute:         epoch.Distribute,
		CirculatingSupply:  supply,
		PeriodLengthBlocks: epoch.Length,
		BlocksPerSecond:    bps,
		CurrentBlock:       block,
	})
	st.StakedBalance = staked
	st.NativeBalance = native
	st.PendingValue = pending
	st.NextReward = projection.NextReward(staked, st.Projection.RebaseRate)
	st.Triggered = c.cfg.Ledger.HasTriggered(epoch.Number)
	return nil
}

// trigger pauses the tick source, runs the redeem and stamps the epoch when
// at least one redeem confirmed.
func (c *Coordinator) trigger(ctx context.Context, st domain.TickStatus) []domain.Receipt {
	c.cfg.Gate.Pause()
	defer c.cfg.Gate.Resume()

	epoch := st.Epoch.Number
	log := c.logger.With(slog.Uint64("epoch", epoch), slog.String("tick_id", st.TickID))

	if c.cfg.Locks != nil {
		unlock, err := c.cfg.Locks.Acquire(ctx, "redeem:"+strconv.FormatUint(epoch, 10), lockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			log.InfoContext(ctx, "redeem lock held elsewhere, skipping")
			return nil
		}
		if err != nil {
			log.ErrorContext(ctx, "acquire redeem lock", slog.String("error", err.Error()))
			return nil
		}
		defer unlock()
	}

	log.InfoContext(ctx, "triggering redeem",
		slog.Int64("delta", st.Delta),
		slog.String("pending", st.PendingValue.String()),
	)
	receipts, err := c.cfg.Redeemer.Redeem(ctx, c.cfg.Account)
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.ObserveRedeem(len(receipts), err)
	}

	if len(receipts) == 0 {
		if err != nil {
			log.ErrorContext(ctx, "redeem failed", slog.String("error", err.Error()))
			c.notify(ctx, EventRedeemFailed, fmt.Sprintf("Redeem failed (epoch %d)", epoch), err.Error())
		} else {
			log.WarnContext(ctx, "redeem produced no transactions")
		}
		return nil
	}

	last := receipts[len(receipts)-1].BlockNumber
	if c.cfg.Ledger.Record(epoch, last) {
		c.persist(ctx, epoch, receipts)
	}

	report := domain.RedeemReport{
		Epoch:        epoch,
		Account:      c.cfg.Account.Hex(),
		Block:        last,
		PendingValue: st.PendingValue.String(),
		RebaseRate:   st.Projection.RebaseRate,
		Receipts:     receipts,
		CreatedAt:    time.Now().UTC(),
	}
	if err != nil {
		report.Error = err.Error()
	}
	if c.cfg.Archiver != nil {
		if aerr := c.cfg.Archiver.ArchiveReport(ctx, report); aerr != nil {
			log.WarnContext(ctx, "archive redeem report", slog.String("error", aerr.Error()))
		}
	}

	msg := fmt.Sprintf("%d transaction(s) confirmed, last block %d, pending value %s",
		len(receipts), last, st.PendingValue.String())
	if err != nil {
		log.WarnContext(ctx, "redeem partially failed",
			slog.Int("receipts", len(receipts)),
			slog.String("error", err.Error()),
		)
		c.notify(ctx, EventRedeemPartial, fmt.Sprintf("Redeem partially failed (epoch %d)", epoch), msg+"\n"+err.Error())
	} else {
		log.InfoContext(ctx, "redeem complete",
			slog.Int("receipts", len(receipts)),
			slog.Uint64("block", last),
		)
		c.notify(ctx, EventRedeemSuccess, fmt.Sprintf("Redeemed epoch %d", epoch), msg)
	}
	return receipts
}

func (c *Coordinator) persist(ctx context.Context, epoch uint64, receipts []domain.Receipt) {
	entry, _ := c.cfg.Ledger.Entry(epoch)
	if c.cfg.Store != nil {
		err := c.cfg.Retry.Exec(ctx, "ledger.save", func(ctx context.Context) error {
			return c.cfg.Store.Save(ctx, entry)
		})
		if err != nil {
			c.logger.ErrorContext(ctx, "persist epoch ledger",
				slog.Uint64("epoch", epoch),
				slog.String("error", err.Error()),
			)
		}
	}
	if c.cfg.Receipts != nil {
		if err := c.cfg.Receipts.SaveReceipts(ctx, epoch, receipts); err != nil {
			c.logger.WarnContext(ctx, "save receipts",
				slog.Uint64("epoch", epoch),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (c *Coordinator) notify(ctx context.Context, event, title, message string) {
	if c.cfg.Notifier == nil {
		return
	}
	if err := c.cfg.Notifier.Notify(ctx, event, title, message); err != nil {
		c.logger.WarnContext(ctx, "notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// statusPayload is the JSON form of a tick status on the status bus.
type statusPayload struct {
	TickID        string             `json:"tick_id"`
	At            time.Time          `json:"at"`
	Block         uint64             `json:"block"`
	Epoch         uint64             `json:"epoch"`
	EndBlock      uint64             `json:"end_block"`
	Delta         int64              `json:"delta"`
	RebaseRate    float64            `json:"rebase_rate"`
	PeriodsPerDay float64            `json:"periods_per_day"`
	Horizons      map[string]float64 `json:"horizons"`
	Staked        string             `json:"staked"`
	Native        string             `json:"native"`
	Pending       string             `json:"pending"`
	NextReward    float64            `json:"next_reward"`
	Triggered     bool               `json:"triggered"`
	Receipts      int                `json:"receipts"`
}

// StatusJSON renders st for the status bus and the HTTP status endpoint.
func StatusJSON(st domain.TickStatus) ([]byte, error) {
	horizons := make(map[string]float64, len(st.Projection.Horizons))
	for h, v := range st.Projection.Horizons {
		horizons[string(h)] = finite(v)
	}
	return json.Marshal(statusPayload{
		TickID:        st.TickID,
		At:            st.At,
		Block:         st.CurrentBlock,
		Epoch:         st.Epoch.Number,
		EndBlock:      st.Epoch.EndBlock,
		Delta:         st.Delta,
		RebaseRate:    finite(st.Projection.RebaseRate),
		PeriodsPerDay: finite(st.Projection.PeriodsPerDay),
		Horizons:      horizons,
		Staked:        st.StakedBalance.String(),
		Native:        st.NativeBalance.String(),
		Pending:       st.PendingValue.String(),
		NextReward:    finite(st.NextReward),
		Triggered:     st.Triggered,
		Receipts:      len(st.Receipts),
	})
}

// finite maps NaN and ±Inf, which JSON cannot carry, to zero.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// formatFloat renders v for the log line, keeping NaN and ±Inf visible.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (c *Coordinator) publish(ctx context.Context, st domain.TickStatus) {
	c.mu.Lock()
	c.last = st
	c.seen = true
	c.mu.Unlock()

	p := st.Projection
	c.logger.InfoContext(ctx, "status",
		slog.String("tick_id", st.TickID),
		slog.Uint64("block", st.CurrentBlock),
		slog.Uint64("epoch", st.Epoch.Number),
		slog.Uint64("end_block", st.Epoch.EndBlock),
		slog.Int64("delta", st.Delta),
		slog.String("rebase_rate", formatFloat(p.RebaseRate)),
		slog.String("daily", formatFloat(p.Horizons[domain.HorizonDaily])),
		slog.String("five_day", formatFloat(p.Horizons[domain.HorizonFiveDay])),
		slog.String("yearly", formatFloat(p.Horizons[domain.HorizonYearly])),
		slog.String("staked", st.StakedBalance.String()),
		slog.String("native", st.NativeBalance.String()),
		slog.String("pending", st.PendingValue.String()),
		slog.String("next_reward", formatFloat(st.NextReward)),
		slog.Bool("triggered", st.Triggered),
	)

	if c.cfg.Metrics != nil {
		c.cfg.Metrics.ObserveTick(st)
	}
	if c.cfg.Bus != nil {
		payload, err := StatusJSON(st)
		if err == nil {
			err = c.cfg.Bus.Publish(ctx, StatusChannel, payload)
		}
		if err != nil {
			c.logger.WarnContext(ctx, "publish status", slog.String("error", err.Error()))
		}
	}
}
