package projection

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/epochkeeper/internal/domain"
)

func amt(v int64) domain.Amount {
	return domain.NewAmount(big.NewInt(v), 0)
}

func TestCompound_OneDay(t *testing.T) {
	rate := 0.0005
	for _, p := range []float64{1, 3, 3.3} {
		want := math.Pow(1+rate, p) - 1
		assert.InDelta(t, want, Compound(rate, 1, p), 1e-15)
	}
}

func TestCompound_ZeroRate(t *testing.T) {
	for _, days := range []float64{0, 1, 5, 365} {
		for _, p := range []float64{0, 1, 3, 17.5} {
			assert.Equal(t, 0.0, Compound(0, days, p))
		}
	}
}

func TestProject_Scenario(t *testing.T) {
	// length 200 blocks, 3 periods per day -> 600 blocks per day.
	c := Counters{
		Distribute:         amt(500),
		CirculatingSupply:  amt(1_000_000),
		PeriodLengthBlocks: 200,
		BlocksPerSecond:    600.0 / 86400.0,
		CurrentBlock:       998,
	}

	p := Project(c)

	assert.InDelta(t, 0.0005, p.RebaseRate, 1e-12)
	assert.InDelta(t, 3.0, p.PeriodsPerDay, 1e-9)
	assert.Len(t, p.Horizons, 6)
	assert.InDelta(t, math.Pow(1.0005, 3)-1, p.Horizons[domain.HorizonDaily], 1e-12)
	assert.InDelta(t, math.Pow(1.0005, 21)-1, p.Horizons[domain.HorizonWeekly], 1e-12)
	assert.InDelta(t, math.Pow(1.0005, 1095)-1, p.Horizons[domain.HorizonYearly], 1e-9)
}

func TestProject_DecimalsCancel(t *testing.T) {
	c := Counters{
		Distribute:         domain.NewAmount(big.NewInt(500_000_000_000), 9),
		CirculatingSupply:  domain.NewAmount(new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(1_000_000_000)), 9),
		PeriodLengthBlocks: 2200,
		BlocksPerSecond:    1.0 / 13.0,
	}
	assert.InDelta(t, 0.0005, Project(c).RebaseRate, 1e-12)
}

func TestProject_ZeroSupplyPropagates(t *testing.T) {
	p := Project(Counters{
		Distribute:         amt(500),
		CirculatingSupply:  amt(0),
		PeriodLengthBlocks: 200,
		BlocksPerSecond:    1,
	})
	assert.True(t, math.IsInf(p.RebaseRate, 1))
}

func TestNextReward(t *testing.T) {
	staked := domain.NewAmount(big.NewInt(2_000_000_000), 9)
	assert.InDelta(t, 0.001, NextReward(staked, 0.0005), 1e-12)
}
