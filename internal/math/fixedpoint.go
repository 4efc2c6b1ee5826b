// internal/math/fixedpoint.go
package math

import (
	"math/big"
	"sync"
)

// DecimalConfig defines fixed-point precision
type DecimalConfig struct {
	DecimalPrecision int   // Number of decimal places
	Scale            int64 // 10^DecimalPrecision
}

// RateConfig is the precision of oracle exchange rates (asset-B-per-asset-A).
var RateConfig = DecimalConfig{DecimalPrecision: 8, Scale: 100_000_000}

// Int128 is a pooled big.Int for intermediate calculations
var int128Pool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt128() *big.Int {
	return int128Pool.Get().(*big.Int)
}

func putInt128(v *big.Int) {
	v.SetInt64(0) // Clear before returning to pool
	int128Pool.Put(v)
}

type RoundingMode int

const (
	RoundDown RoundingMode = iota // Truncate (default for share minting)
	RoundUp                       // Round up on any non-zero remainder (withdrawals)
)

// MultiplyInt128 performs a * b using int128 to prevent overflow
func MultiplyInt128(a, b int64) *big.Int {
	result := getInt128()
	result.Mul(big.NewInt(a), big.NewInt(b))
	return result
}

// DivideInt128 performs numerator / denominator with the given rounding mode.
// Inputs are non-negative; ledger amounts never go below zero.
func DivideInt128(numerator *big.Int, denominator int64, roundingMode RoundingMode) int64 {
	denom := big.NewInt(denominator)
	quotient := getInt128()
	remainder := getInt128()

	quotient.DivMod(numerator, denom, remainder)

	result := quotient.Int64()
	if roundingMode == RoundUp && remainder.Sign() != 0 {
		result++
	}

	putInt128(quotient)
	putInt128(remainder)

	return result
}

// MulDiv computes a * b / denominator with int128 intermediates.
func MulDiv(a, b, denominator int64, roundingMode RoundingMode) int64 {
	num := MultiplyInt128(a, b)
	result := DivideInt128(num, denominator, roundingMode)
	putInt128(num)
	return result
}
