package domain

import (
	"github.com/ethereum/go-ethereum/common"
)

// Vesting term (seconds) that marks a bond as a four-day bond. Every other
// term is reported as a one-day bond.
const FourDayVestingTerm uint64 = 345600

// Position is one claimable bond held by the account. It is resolved once at
// startup and never mutated; pending payout is always queried fresh.
type Position struct {
	Address        common.Address
	Label          string
	UsesBulkRedeem bool
	Principal      common.Address
	VestingTerm    uint64
	IsLiquidity    bool
}

// PositionTerms is the subset of a bond's on-chain terms the registry needs.
type PositionTerms struct {
	VestingTerm uint64
	Principal   common.Address
	IsLiquidity bool
}

// VestingTag returns the "(t,t)" tag derived from the vesting term.
func VestingTag(vestingTerm uint64) string {
	if vestingTerm == FourDayVestingTerm {
		return "(4,4)"
	}
	return "(1,1)"
}

// PositionLabel builds the human label for a bond backed by symbol0 and,
// for liquidity bonds, symbol1.
func PositionLabel(symbol0, symbol1 string, vestingTerm uint64) string {
	name := symbol0
	if symbol1 != "" && symbol1 != symbol0 {
		name = symbol0 + "-" + symbol1 + " LP"
	}
	return name + " " + VestingTag(vestingTerm)
}
