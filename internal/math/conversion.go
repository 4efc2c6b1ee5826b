// internal/math/conversion.go
package math

// ToShares converts a deposit amount into pool shares.
// Bootstrap: when the pool has no shares or no liquidity yet, shares are
// minted 1:1 against the deposited amount. Otherwise
//
//	shares = amount * totalShares / totalLiquidity
//
// with floor division, so a depositor is never credited more than a
// proportional claim.
func ToShares(amount, totalShares, totalLiquidity int64) int64 {
	if totalShares == 0 || totalLiquidity == 0 {
		return amount
	}
	return MulDiv(amount, totalShares, totalLiquidity, RoundDown)
}

// ToAmount converts a share balance back into deposit-asset units.
//
//	amount = shares * totalLiquidity / totalShares
//
// rounded UP, so a full redemption never strands dust in the pool: floor
// on mint plus ceiling on redeem guarantees a depositor gets back at least
// what a proportional claim is worth.
func ToAmount(shares, totalLiquidity, totalShares int64) int64 {
	if totalShares == 0 {
		return 0
	}
	return MulDiv(shares, totalLiquidity, totalShares, RoundUp)
}
