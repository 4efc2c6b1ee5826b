// internal/math/pricing.go
package math

import "math/big"

// Orientation fixes which of the two asset kinds a pool takes as collateral.
// The other kind is the pool's deposit/borrow asset. Oracle rates are always
// quoted as asset-B-per-asset-A, so the orientation decides whether collateral
// valuation multiplies or divides by the rate.
type Orientation int

const (
	AssetAAsCollateral Orientation = iota
	AssetBAsCollateral
)

func (o Orientation) String() string {
	switch o {
	case AssetAAsCollateral:
		return "a_as_collateral"
	case AssetBAsCollateral:
		return "b_as_collateral"
	default:
		return "unknown"
	}
}

// DiscountPercent is the liquidation discount applied to collateral value when
// computing the price a liquidator pays for a lapsed loan's collateral.
const DiscountPercent = 95

// ConvertCollateral values collateralAmount in deposit-asset units, applies
// percent (a factor in [0,255]), and corrects for the decimal scale difference
// between the two asset kinds.
//
//	AssetAAsCollateral: value = amount * percent * rate / 100 / rateScale
//	AssetBAsCollateral: value = amount * percent * rateScale / 100 / rate
//
// collateralScale and depositScale are the 10^decimals unit sizes of the
// collateral and deposit asset kinds. The result is floored once over the
// combined denominator.
func ConvertCollateral(
	collateralAmount int64,
	percent int64,
	rate int64,
	orientation Orientation,
	collateralScale int64,
	depositScale int64,
) int64 {
	if collateralAmount <= 0 || percent <= 0 || rate <= 0 {
		return 0
	}

	num := MultiplyInt128(collateralAmount, percent)
	den := getInt128()

	switch orientation {
	case AssetAAsCollateral:
		num.Mul(num, big.NewInt(rate))
		den.SetInt64(100)
		den.Mul(den, big.NewInt(RateConfig.Scale))
	case AssetBAsCollateral:
		num.Mul(num, big.NewInt(RateConfig.Scale))
		den.SetInt64(100)
		den.Mul(den, big.NewInt(rate))
	default:
		putInt128(num)
		putInt128(den)
		return 0
	}

	// Unit-size correction between the two asset kinds.
	num.Mul(num, big.NewInt(depositScale))
	den.Mul(den, big.NewInt(collateralScale))

	result := getInt128()
	result.Quo(num, den)
	out := result.Int64()

	putInt128(num)
	putInt128(den)
	putInt128(result)

	return out
}

// BorrowableAmount sizes a loan from posted collateral using the pool's
// collateral factor.
func BorrowableAmount(
	collateralAmount int64,
	collateralFactor uint8,
	rate int64,
	orientation Orientation,
	collateralScale, depositScale int64,
) int64 {
	return ConvertCollateral(collateralAmount, int64(collateralFactor), rate, orientation, collateralScale, depositScale)
}

// PayoffQuote is the price a liquidator pays for a lapsed loan's collateral:
// the collateral's value at the discount rate, in deposit-asset units. It
// depends on nothing but the collateral amount, the rate and the pool
// orientation, so callers can use it as a read-only quote.
func PayoffQuote(
	collateralAmount int64,
	rate int64,
	orientation Orientation,
	collateralScale, depositScale int64,
) int64 {
	return ConvertCollateral(collateralAmount, DiscountPercent, rate, orientation, collateralScale, depositScale)
}
