// Package projection derives rebase and compounding rates from raw epoch
// counters. Everything here is pure.
package projection

import (
	"math"

	"github.com/alanyoungcy/epochkeeper/internal/domain"
)

const secondsPerDay = 86400

// Counters are the raw ledger values a projection is computed from.
type Counters struct {
	Distribute         domain.Amount
	CirculatingSupply  domain.Amount
	PeriodLengthBlocks uint64
	BlocksPerSecond    float64
	CurrentBlock       uint64
}

// Project computes the rebase rate, periods per day and every horizon.
// A zero circulating supply yields a non-finite rebase rate; it is not
// clamped.
func Project(c Counters) domain.RateProjection {
	rate := RebaseRate(c.Distribute, c.CirculatingSupply)
	ppd := PeriodsPerDay(c.BlocksPerSecond, c.PeriodLengthBlocks)

	horizons := make(map[domain.Horizon]float64, len(domain.Horizons))
	for _, h := range domain.Horizons {
		horizons[h.Name] = Compound(rate, h.Days, ppd)
	}
	return domain.RateProjection{
		RebaseRate:    rate,
		PeriodsPerDay: ppd,
		Horizons:      horizons,
	}
}

// RebaseRate is distribute / circulatingSupply on display values.
func RebaseRate(distribute, circulatingSupply domain.Amount) float64 {
	return distribute.Float() / circulatingSupply.Float()
}

// PeriodsPerDay is how many epochs fit in a day at the observed block rate.
func PeriodsPerDay(blocksPerSecond float64, periodLengthBlocks uint64) float64 {
	return blocksPerSecond * secondsPerDay / float64(periodLengthBlocks)
}

// Compound returns (1+rate)^(periodsPerDay*days) - 1.
func Compound(rate, days, periodsPerDay float64) float64 {
	return math.Pow(1+rate, periodsPerDay*days) - 1
}

// NextReward estimates the staked balance growth at the next rebase.
func NextReward(staked domain.Amount, rate float64) float64 {
	return staked.Float() * rate
}
