// Package telemetry exposes keeper state as Prometheus metrics.
package telemetry

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/epochkeeper/internal/domain"
)

const namespace = "epochkeeper"

// Redeem outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// Metrics holds the keeper's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ticks        prometheus.Counter
	block        prometheus.Gauge
	epoch        prometheus.Gauge
	blocksToEnd  prometheus.Gauge
	rebaseRate   prometheus.Gauge
	horizon      *prometheus.GaugeVec
	staked       prometheus.Gauge
	native       prometheus.Gauge
	pending      prometheus.Gauge
	nextReward   prometheus.Gauge
	redeems      *prometheus.CounterVec
	receipts     prometheus.Counter
	lastRedeemTS prometheus.Gauge
}

// New registers every collector on a fresh registry together with the Go
// and process collectors.
func New() *Metrics {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ticks_total", Help: "Completed evaluation ticks.",
		}),
		block:       gauge("current_block", "Latest block seen by the keeper."),
		epoch:       gauge("epoch_number", "Current staking epoch."),
		blocksToEnd: gauge("blocks_until_epoch_end", "Epoch end block minus current block."),
		rebaseRate:  gauge("rebase_rate", "Per-epoch rebase rate."),
		horizon: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "projected_return", Help: "Compounded return per horizon.",
		}, []string{"horizon"}),
		staked:     gauge("staked_balance", "Staked token balance of the account."),
		native:     gauge("native_balance", "Native coin balance of the account."),
		pending:    gauge("pending_value", "Pending payout across bulk-redeemable bonds."),
		nextReward: gauge("next_reward", "Projected reward at the next rebase."),
		redeems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "redeems_total", Help: "Redeem attempts by outcome.",
		}, []string{"outcome"}),
		receipts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "redeem_receipts_total", Help: "Confirmed redeem transactions.",
		}),
		lastRedeemTS: gauge("last_redeem_timestamp_seconds", "Unix time of the last redeem with a confirmed receipt."),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ticks, m.block, m.epoch, m.blocksToEnd, m.rebaseRate, m.horizon,
		m.staked, m.native, m.pending, m.nextReward,
		m.redeems, m.receipts, m.lastRedeemTS,
	)
	return m
}

// Registry returns the registry holding the keeper collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveTick records the values of one evaluated tick.
func (m *Metrics) ObserveTick(st domain.TickStatus) {
	m.ticks.Inc()
	m.block.Set(float64(st.CurrentBlock))
	m.epoch.Set(float64(st.Epoch.Number))
	m.blocksToEnd.Set(float64(st.Delta))
	m.rebaseRate.Set(st.Projection.RebaseRate)
	for h, v := range st.Projection.Horizons {
		m.horizon.WithLabelValues(string(h)).Set(v)
	}
	m.staked.Set(st.StakedBalance.Float())
	m.native.Set(st.NativeBalance.Float())
	m.pending.Set(st.PendingValue.Float())
	m.nextReward.Set(st.NextReward)
}

// ObserveRedeem records the outcome of one redeem attempt.
func (m *Metrics) ObserveRedeem(receipts int, err error) {
	m.redeems.WithLabelValues(Outcome(receipts, err)).Inc()
	if receipts > 0 {
		m.receipts.Add(float64(receipts))
		m.lastRedeemTS.SetToCurrentTime()
	}
}

// Outcome classifies a redeem attempt.
func Outcome(receipts int, err error) string {
	switch {
	case receipts == 0:
		return OutcomeFailed
	case err != nil && errors.Is(err, domain.ErrPartialRedeem):
		return OutcomePartial
	case err != nil:
		return OutcomeFailed
	default:
		return OutcomeSuccess
	}
}
