// internal/math/interest.go
package math

import "math/big"

const maxInt64 = 1<<63 - 1

// InterestAmount computes simple, non-compounding interest for a loan of the
// given size over durationDays:
//
//	interest = borrowable * interestRate / 100 / 365 * durationDays
//
// Integer division truncates at each step in that order: the daily rate is
// floored before being multiplied by the duration, so short or small loans
// can legitimately accrue zero interest.
func InterestAmount(borrowable int64, interestRate uint8, durationDays int64) int64 {
	if borrowable <= 0 || interestRate == 0 || durationDays <= 0 {
		return 0
	}

	t := MultiplyInt128(borrowable, int64(interestRate))
	t.Quo(t, big.NewInt(100))
	t.Quo(t, big.NewInt(365))
	t.Mul(t, big.NewInt(durationDays))
	if !t.IsInt64() {
		// Int64 on an oversized value is undefined; saturate so the caller's
		// debt consistency check rejects the loan instead of booking garbage.
		putInt128(t)
		return maxInt64
	}
	out := t.Int64()
	putInt128(t)
	return out
}

// FeeAmount computes the one-time origination fee routed to the pool reserve.
func FeeAmount(borrowable int64, reserveFeeRate uint8) int64 {
	if borrowable <= 0 || reserveFeeRate == 0 {
		return 0
	}
	return MulDiv(borrowable, int64(reserveFeeRate), 100, RoundDown)
}
