package domain

import "time"

// Epoch is the staking contract's current accounting period.
type Epoch struct {
	Number     uint64
	EndBlock   uint64
	Length     uint64
	Distribute Amount
}

// BlocksUntilEnd returns EndBlock - current. The result is negative once the
// end block has passed and the period has not been rolled over yet.
func (e Epoch) BlocksUntilEnd(current uint64) int64 {
	return int64(e.EndBlock) - int64(current)
}

// Horizon names a compounding projection window.
type Horizon string

const (
	HorizonDaily   Horizon = "daily"
	HorizonFourDay Horizon = "fourDay"
	HorizonFiveDay Horizon = "fiveDay"
	HorizonWeekly  Horizon = "weekly"
	HorizonMonthly Horizon = "monthly"
	HorizonYearly  Horizon = "yearly"
)

// Horizons lists every projection window with its length in days, in
// ascending order.
var Horizons = []struct {
	Name Horizon
	Days float64
}{
	{HorizonDaily, 1},
	{HorizonFourDay, 4},
	{HorizonFiveDay, 5},
	{HorizonWeekly, 7},
	{HorizonMonthly, 30},
	{HorizonYearly, 365},
}

// RateProjection is derived fresh every tick and never stored.
type RateProjection struct {
	RebaseRate    float64
	PeriodsPerDay float64
	Horizons      map[Horizon]float64
}

// TickStatus carries the values behind one status line.
type TickStatus struct {
	TickID        string
	At            time.Time
	CurrentBlock  uint64
	Epoch         Epoch
	Delta         int64
	Projection    RateProjection
	StakedBalance Amount
	NativeBalance Amount
	PendingValue  Amount
	NextReward    float64
	Triggered     bool
	Receipts      []Receipt
}
