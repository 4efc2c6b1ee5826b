package state

import (
	"errors"
	"fmt"

	fpmath "LendLedger/internal/math"
)

// PoolParams groups the owner-settable risk parameters of a pool. All three
// are integer percents in [0,255]; updates are only applied between
// operations (enforced by the core's execution guard).
type PoolParams struct {
	InterestRate     uint8 // percent per year, simple interest
	ReserveFeeRate   uint8 // percent of the borrowed amount, one-time
	CollateralFactor uint8 // percent of collateral value a borrower may draw
}

// ValidatePoolParams rejects parameter combinations that make a pool
// unusable. Collateral factor and fee rate are percents of a whole and must
// not exceed 100; the interest rate may use the full uint8 range.
func ValidatePoolParams(params PoolParams) error {
	if params.CollateralFactor == 0 {
		return fmt.Errorf("collateral_factor must be > 0")
	}
	if params.CollateralFactor > 100 {
		return fmt.Errorf("collateral_factor must be <= 100, got %d", params.CollateralFactor)
	}
	if params.ReserveFeeRate > 100 {
		return fmt.Errorf("reserve_fee_rate must be <= 100, got %d", params.ReserveFeeRate)
	}
	return nil
}

// Pool is one listed market: a deposit/borrow asset paired with a collateral
// asset, plus the aggregate accounting fields every share conversion reads.
type Pool struct {
	ID          uint32
	Orientation fpmath.Orientation
	Params      PoolParams

	// TotalBorrowAmount is the sum of outstanding repay amounts across all
	// loans in the pool (principal + accrued interest + fee still owed).
	TotalBorrowAmount int64
	// TotalAssetAmount is the sum of all depositor shares issued.
	TotalAssetAmount int64
	// TotalReserveAmount holds collected fees not yet withdrawn.
	TotalReserveAmount int64
	// CurrentBalanceAmount is the liquid, un-borrowed deposit-asset balance.
	CurrentBalanceAmount int64
}

// ErrNegativeLiquidity reports a violated aggregate invariant. It is never
// expected under correct operation deltas and indicates corrupted state.
var ErrNegativeLiquidity = errors.New("pool: total liquidity below zero")

// TotalLiquidity recomputes the share-conversion basis fresh from the three
// aggregate fields. It is never cached.
func (p *Pool) TotalLiquidity() (int64, error) {
	liquidity := p.TotalBorrowAmount + p.CurrentBalanceAmount - p.TotalReserveAmount
	if liquidity < 0 {
		return 0, fmt.Errorf("%w: pool %d (borrow=%d balance=%d reserve=%d)",
			ErrNegativeLiquidity, p.ID, p.TotalBorrowAmount, p.CurrentBalanceAmount, p.TotalReserveAmount)
	}
	return liquidity, nil
}

// DepositKind returns the pool's deposit/borrow asset kind.
func (p *Pool) DepositKind() fpmath.AssetKind {
	return fpmath.DepositKind(p.Orientation)
}

// CollateralKind returns the pool's collateral asset kind.
func (p *Pool) CollateralKind() fpmath.AssetKind {
	return fpmath.CollateralKind(p.Orientation)
}
