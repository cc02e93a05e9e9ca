package domain

import (
	"math"
	"math/big"
	"strconv"
)

// Amount is a ledger-native fixed-point integer together with its decimals.
// Conversion to a floating value happens only through Float.
type Amount struct {
	Raw      *big.Int
	Decimals uint8
}

// NewAmount wraps raw with the given decimals. A nil raw is treated as zero.
func NewAmount(raw *big.Int, decimals uint8) Amount {
	if raw == nil {
		raw = new(big.Int)
	}
	return Amount{Raw: new(big.Int).Set(raw), Decimals: decimals}
}

// ZeroAmount returns a zero Amount with the given decimals.
func ZeroAmount(decimals uint8) Amount {
	return Amount{Raw: new(big.Int), Decimals: decimals}
}

func (a Amount) raw() *big.Int {
	if a.Raw == nil {
		return new(big.Int)
	}
	return a.Raw
}

// Add returns a+b. Decimals of the receiver are kept.
func (a Amount) Add(b Amount) Amount {
	return Amount{Raw: new(big.Int).Add(a.raw(), b.raw()), Decimals: a.Decimals}
}

// IsPositive reports whether a > 0.
func (a Amount) IsPositive() bool {
	return a.raw().Sign() > 0
}

// IsZero reports whether a == 0.
func (a Amount) IsZero() bool {
	return a.raw().Sign() == 0
}

// Float converts the fixed-point value to a float64 display value.
func (a Amount) Float() float64 {
	f := new(big.Float).SetInt(a.raw())
	if a.Decimals > 0 {
		scale := new(big.Float).SetFloat64(math.Pow10(int(a.Decimals)))
		f.Quo(f, scale)
	}
	v, _ := f.Float64()
	return v
}

// String formats the display value with the amount's decimals.
func (a Amount) String() string {
	return strconv.FormatFloat(a.Float(), 'f', int(a.Decimals), 64)
}
