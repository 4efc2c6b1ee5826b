package core

import "errors"

// Sentinel errors for every operation failure mode. Callers (and the HTTP
// layer) match these with errors.Is; wrapped messages carry the context.
var (
	// Deposits / withdrawals
	ErrZeroAmount          = errors.New("lend: amount must be positive")
	ErrInsufficientBalance = errors.New("lend: insufficient balance")
	ErrUnavailable         = errors.New("lend: insufficient liquid balance in pool")

	// Borrows
	ErrAlreadyBorrowed        = errors.New("lend: active loan already exists")
	ErrZeroCollateral         = errors.New("lend: collateral must be positive")
	ErrExcessiveDuration      = errors.New("lend: loan duration exceeds maximum")
	ErrInsufficientCollateral = errors.New("lend: collateral value too small")
	ErrInsufficientLiquidity  = errors.New("lend: pool cannot fund the loan")

	// Repayments
	ErrNoActiveLoan = errors.New("lend: no active loan")
	ErrZeroRepay    = errors.New("lend: nothing available to repay with")

	// Liquidations
	ErrSelfLiquidation    = errors.New("lend: borrower cannot liquidate own loan")
	ErrNoCollateral       = errors.New("lend: loan has no collateral")
	ErrNotYetLiquidatable = errors.New("lend: loan has not matured")

	// Administration
	ErrNotOwner = errors.New("lend: caller is not the ledger owner")

	// Concurrency
	ErrOperationInProgress = errors.New("lend: another operation is in progress")
)
