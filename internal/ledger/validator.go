package ledger

import "fmt"

// ValidateLoan checks the internal consistency of a freshly originated loan
// before it enters the book. State deltas are derived from these fields, so
// an inconsistent record would silently corrupt pool aggregates.
func ValidateLoan(loan *Loan) error {
	if loan.CollateralAmount <= 0 {
		return fmt.Errorf("loan: collateral_amount must be > 0, got %d", loan.CollateralAmount)
	}
	if loan.BorrowedAmount <= 0 {
		return fmt.Errorf("loan: borrowed_amount must be > 0, got %d", loan.BorrowedAmount)
	}
	if loan.InterestAmount < 0 || loan.FeeAmount < 0 {
		return fmt.Errorf("loan: negative interest (%d) or fee (%d)", loan.InterestAmount, loan.FeeAmount)
	}
	if loan.DurationDays <= 0 {
		return fmt.Errorf("loan: duration_days must be > 0, got %d", loan.DurationDays)
	}
	if want := loan.BorrowedAmount + loan.InterestAmount + loan.FeeAmount; loan.RepayAmount != want {
		return fmt.Errorf("loan: repay_amount %d != borrowed+interest+fee %d", loan.RepayAmount, want)
	}
	// A debt below principal means the int64 sum wrapped.
	if loan.RepayAmount < loan.BorrowedAmount {
		return fmt.Errorf("loan: repay_amount %d below principal %d", loan.RepayAmount, loan.BorrowedAmount)
	}
	return nil
}
