// Package core orchestrates every state-changing ledger operation. Each
// operation runs under a single-flight guard, validates before any transfer,
// and commits in-memory state only after custody movements succeed, so the
// ledger is always all-or-nothing.
package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"LendLedger/internal/custody"
	"LendLedger/internal/event"
	"LendLedger/internal/ledger"
	fpmath "LendLedger/internal/math"
	"LendLedger/internal/observability"
	"LendLedger/internal/oracle"
	"LendLedger/internal/persistence"
	"LendLedger/internal/state"
)

// maxLoanDurationDays bounds loan terms. An unbounded duration would let one
// borrow inflate TotalBorrowAmount past any depositor's reach and push the
// maturity time beyond liquidation.
const maxLoanDurationDays = 3_650

// Config carries the core's collaborators.
type Config struct {
	Registry   *state.PoolRegistry
	Depositors *ledger.DepositorLedger
	Loans      *ledger.LoanLedger
	Vault      custody.Vault
	Rates      oracle.Source
	Owner      uuid.UUID
	Metrics    *observability.Metrics
	Logger     zerolog.Logger

	// PersistCh receives every committed operation; the core blocks when it
	// is full (persistence is not allowed to fall behind silently).
	PersistCh chan<- event.Envelope
	// NotifyCh is best-effort; events are dropped when it is full.
	NotifyCh chan<- event.Envelope
}

// Core owns all mutable ledger state and is the only writer to it.
type Core struct {
	registry   *state.PoolRegistry
	depositors *ledger.DepositorLedger
	loans      *ledger.LoanLedger
	vault      custody.Vault
	rates      oracle.Source
	owner      uuid.UUID

	guard ExecGuard
	// stateMu serializes the in-memory state against the read accessors.
	// Operations hold the write side for their full span; reads and snapshot
	// capture take the read side and copy out.
	stateMu sync.RWMutex
	nowFn   func() time.Time
	metrics *observability.Metrics
	log     zerolog.Logger

	persistCh chan<- event.Envelope
	notifyCh  chan<- event.Envelope
}

func NewCore(cfg Config) *Core {
	return &Core{
		registry:   cfg.Registry,
		depositors: cfg.Depositors,
		loans:      cfg.Loans,
		vault:      cfg.Vault,
		rates:      cfg.Rates,
		owner:      cfg.Owner,
		nowFn:      time.Now,
		metrics:    cfg.Metrics,
		log:        cfg.Logger.With().Str("component", "core").Logger(),
		persistCh:  cfg.PersistCh,
		notifyCh:   cfg.NotifyCh,
	}
}

// Deposit supplies amount of the pool's deposit asset and mints shares.
func (c *Core) Deposit(principal uuid.UUID, poolID uint32, amount int64) (int64, error) {
	release, err := c.guard.Acquire()
	if err != nil {
		c.rejected("deposit", "guard")
		return 0, err
	}
	defer release()
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	start := c.nowFn()

	if amount <= 0 {
		c.rejected("deposit", "zero_amount")
		return 0, fmt.Errorf("deposit: %w", ErrZeroAmount)
	}
	pool, err := c.registry.Get(poolID)
	if err != nil {
		c.rejected("deposit", "no_such_pool")
		return 0, fmt.Errorf("deposit: %w", err)
	}
	liquidity, err := pool.TotalLiquidity()
	if err != nil {
		c.rejected("deposit", "invariant")
		return 0, fmt.Errorf("deposit: %w", err)
	}

	kind := pool.DepositKind()
	if c.vault.BalanceOf(principal, kind) < amount {
		c.rejected("deposit", "insufficient_balance")
		return 0, fmt.Errorf("deposit %d %s: %w", amount, kind, ErrInsufficientBalance)
	}

	shares := fpmath.ToShares(amount, pool.TotalAssetAmount, liquidity)
	if shares <= 0 {
		// Floor division can zero out dust deposits into a deep pool; minting
		// nothing while keeping the funds would gift them to other depositors.
		c.rejected("deposit", "zero_shares")
		return 0, fmt.Errorf("deposit %d %s converts to zero shares: %w", amount, kind, ErrZeroAmount)
	}

	if err := c.vault.TransferIn(custody.PoolAccount(poolID), principal, kind, amount); err != nil {
		c.rejected("deposit", "transfer")
		return 0, fmt.Errorf("deposit: %w", err)
	}

	newBalance := c.depositors.Add(poolID, principal, shares)
	pool.CurrentBalanceAmount += amount
	pool.TotalAssetAmount += shares

	c.log.Info().
		Uint32("pool_id", poolID).
		Str("principal", principal.String()).
		Int64("amount", amount).
		Int64("shares_minted", shares).
		Int64("share_balance", newBalance).
		Msg("deposit committed")

	c.committed("deposit", start)
	c.poolGauges(pool)
	c.emit(pool.ID, principal, &event.DepositMade{
		PoolID:       poolID,
		Principal:    principal,
		Amount:       amount,
		SharesMinted: shares,
		TotalShares:  pool.TotalAssetAmount,
	})
	return shares, nil
}

// Withdraw redeems the principal's entire share balance. There is no
// partial withdrawal; shares are an all-or-nothing claim.
func (c *Core) Withdraw(principal uuid.UUID, poolID uint32) (int64, error) {
	release, err := c.guard.Acquire()
	if err != nil {
		c.rejected("withdraw", "guard")
		return 0, err
	}
	defer release()
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	start := c.nowFn()

	pool, err := c.registry.Get(poolID)
	if err != nil {
		c.rejected("withdraw", "no_such_pool")
		return 0, fmt.Errorf("withdraw: %w", err)
	}
	shares := c.depositors.Shares(poolID, principal)
	if shares == 0 {
		c.rejected("withdraw", "zero_amount")
		return 0, fmt.Errorf("withdraw: no shares held: %w", ErrZeroAmount)
	}
	liquidity, err := pool.TotalLiquidity()
	if err != nil {
		c.rejected("withdraw", "invariant")
		return 0, fmt.Errorf("withdraw: %w", err)
	}

	amount := fpmath.ToAmount(shares, liquidity, pool.TotalAssetAmount)
	if amount > pool.CurrentBalanceAmount {
		// The claim includes amounts currently lent out; the pool never
		// recalls a loan to fund a withdrawal.
		c.rejected("withdraw", "unavailable")
		return 0, fmt.Errorf("withdraw %d > liquid %d: %w", amount, pool.CurrentBalanceAmount, ErrUnavailable)
	}

	kind := pool.DepositKind()
	if err := c.vault.TransferOut(custody.PoolAccount(poolID), principal, kind, amount); err != nil {
		c.rejected("withdraw", "transfer")
		return 0, fmt.Errorf("withdraw: %w", err)
	}

	c.depositors.Clear(poolID, principal)
	pool.CurrentBalanceAmount -= amount
	pool.TotalAssetAmount -= shares

	c.log.Info().
		Uint32("pool_id", poolID).
		Str("principal", principal.String()).
		Int64("amount", amount).
		Int64("shares_burned", shares).
		Msg("withdrawal committed")

	c.committed("withdraw", start)
	c.poolGauges(pool)
	c.emit(pool.ID, principal, &event.WithdrawalMade{
		PoolID:       poolID,
		Principal:    principal,
		Amount:       amount,
		SharesBurned: shares,
		TotalShares:  pool.TotalAssetAmount,
	})
	return amount, nil
}

// Borrow posts collateral and draws a fixed-duration loan sized by the
// pool's collateral factor and the current oracle rate. Terms are fixed at
// origination. Returns the disbursed principal and the total debt.
func (c *Core) Borrow(principal uuid.UUID, poolID uint32, collateralAmount, durationDays int64) (int64, int64, error) {
	release, err := c.guard.Acquire()
	if err != nil {
		c.rejected("borrow", "guard")
		return 0, 0, err
	}
	defer release()
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	start := c.nowFn()

	pool, err := c.registry.Get(poolID)
	if err != nil {
		c.rejected("borrow", "no_such_pool")
		return 0, 0, fmt.Errorf("borrow: %w", err)
	}
	if existing, ok := c.loans.Get(poolID, principal); ok && existing.Active() {
		c.rejected("borrow", "already_borrowed")
		return 0, 0, fmt.Errorf("borrow: %w", ErrAlreadyBorrowed)
	}
	if collateralAmount <= 0 {
		c.rejected("borrow", "zero_collateral")
		return 0, 0, fmt.Errorf("borrow: %w", ErrZeroCollateral)
	}
	if durationDays <= 0 {
		c.rejected("borrow", "zero_duration")
		return 0, 0, fmt.Errorf("borrow: duration %d days: %w", durationDays, ErrZeroAmount)
	}
	if durationDays > maxLoanDurationDays {
		c.rejected("borrow", "excessive_duration")
		return 0, 0, fmt.Errorf("borrow: duration %d days, max %d: %w", durationDays, maxLoanDurationDays, ErrExcessiveDuration)
	}

	collateralKind := pool.CollateralKind()
	depositKind := pool.DepositKind()
	if c.vault.BalanceOf(principal, collateralKind) < collateralAmount {
		c.rejected("borrow", "insufficient_collateral")
		return 0, 0, fmt.Errorf("borrow: need %d %s: %w", collateralAmount, collateralKind, ErrInsufficientCollateral)
	}

	rate, err := c.rates.CurrentRate()
	if err != nil {
		c.rejected("borrow", "stale_rate")
		if c.metrics != nil {
			c.metrics.OracleStaleErrors.Inc()
		}
		return 0, 0, fmt.Errorf("borrow: %w", err)
	}

	borrowable := fpmath.BorrowableAmount(
		collateralAmount, pool.Params.CollateralFactor, rate, pool.Orientation,
		fpmath.AssetScale(collateralKind), fpmath.AssetScale(depositKind))
	if borrowable <= 0 {
		// Collateral too small to be worth a single deposit-asset unit.
		c.rejected("borrow", "insufficient_collateral")
		return 0, 0, fmt.Errorf("borrow: collateral %d %s sizes to zero: %w", collateralAmount, collateralKind, ErrInsufficientCollateral)
	}
	if pool.CurrentBalanceAmount < borrowable {
		c.rejected("borrow", "insufficient_liquidity")
		return 0, 0, fmt.Errorf("borrow %d > liquid %d: %w", borrowable, pool.CurrentBalanceAmount, ErrInsufficientLiquidity)
	}

	interest := fpmath.InterestAmount(borrowable, pool.Params.InterestRate, durationDays)
	fee := fpmath.FeeAmount(borrowable, pool.Params.ReserveFeeRate)
	now := c.nowFn()

	loan := &ledger.Loan{
		PoolID:           poolID,
		Principal:        principal,
		CollateralAmount: collateralAmount,
		BorrowedAmount:   borrowable,
		InterestAmount:   interest,
		FeeAmount:        fee,
		RepayAmount:      borrowable + interest + fee,
		StartTime:        now.Unix(),
		DurationDays:     durationDays,
	}
	if err := ledger.ValidateLoan(loan); err != nil {
		c.rejected("borrow", "invariant")
		return 0, 0, fmt.Errorf("borrow: %w", err)
	}

	poolAcct := custody.PoolAccount(poolID)
	if err := c.vault.TransferIn(poolAcct, principal, collateralKind, collateralAmount); err != nil {
		c.rejected("borrow", "transfer")
		return 0, 0, fmt.Errorf("borrow collateral: %w", err)
	}
	if err := c.vault.TransferOut(poolAcct, principal, depositKind, borrowable); err != nil {
		// Undo the collateral pull so the failed borrow leaves no trace.
		if undoErr := c.vault.TransferOut(poolAcct, principal, collateralKind, collateralAmount); undoErr != nil {
			c.log.Error().Err(undoErr).
				Uint32("pool_id", poolID).
				Str("principal", principal.String()).
				Msg("collateral return failed after aborted disbursement")
		}
		c.rejected("borrow", "transfer")
		return 0, 0, fmt.Errorf("borrow disburse: %w", err)
	}

	c.loans.Put(loan)
	pool.TotalBorrowAmount += loan.RepayAmount
	pool.TotalReserveAmount += fee
	pool.CurrentBalanceAmount -= borrowable

	c.log.Info().
		Uint32("pool_id", poolID).
		Str("principal", principal.String()).
		Int64("collateral", collateralAmount).
		Int64("borrowed", borrowable).
		Int64("interest", interest).
		Int64("fee", fee).
		Int64("repay_amount", loan.RepayAmount).
		Int64("duration_days", durationDays).
		Msg("loan opened")

	c.committed("borrow", start)
	if c.metrics != nil {
		c.metrics.LoansOpened.WithLabelValues(poolLabel(poolID)).Inc()
	}
	c.poolGauges(pool)
	c.emit(pool.ID, principal, &event.LoanOpened{
		PoolID:           poolID,
		Principal:        principal,
		CollateralAmount: collateralAmount,
		BorrowedAmount:   borrowable,
		InterestAmount:   interest,
		FeeAmount:        fee,
		RepayAmount:      loan.RepayAmount,
		Rate:             rate,
		StartTime:        loan.StartTime,
		DurationDays:     durationDays,
	})
	return borrowable, loan.RepayAmount, nil
}

// Repay pays down the caller's loan. The offered amount is clamped to the
// outstanding debt, so over-offering is safe. When the debt reaches zero the
// collateral is released in the same operation.
func (c *Core) Repay(principal uuid.UUID, poolID uint32, amount int64) (int64, int64, error) {
	release, err := c.guard.Acquire()
	if err != nil {
		c.rejected("repay", "guard")
		return 0, 0, err
	}
	defer release()
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	start := c.nowFn()

	pool, err := c.registry.Get(poolID)
	if err != nil {
		c.rejected("repay", "no_such_pool")
		return 0, 0, fmt.Errorf("repay: %w", err)
	}
	loan, ok := c.loans.Get(poolID, principal)
	if !ok || loan.RepayAmount == 0 {
		c.rejected("repay", "no_active_loan")
		return 0, 0, fmt.Errorf("repay: %w", ErrNoActiveLoan)
	}
	if amount <= 0 {
		c.rejected("repay", "zero_repay")
		return 0, 0, fmt.Errorf("repay: %w", ErrZeroRepay)
	}
	if amount > loan.RepayAmount {
		amount = loan.RepayAmount
	}

	kind := pool.DepositKind()
	balance := c.vault.BalanceOf(principal, kind)
	if balance == 0 {
		c.rejected("repay", "zero_repay")
		return 0, 0, fmt.Errorf("repay: no %s balance: %w", kind, ErrZeroRepay)
	}
	if balance < amount {
		c.rejected("repay", "insufficient_balance")
		return 0, 0, fmt.Errorf("repay %d %s with balance %d: %w", amount, kind, balance, ErrInsufficientBalance)
	}

	poolAcct := custody.PoolAccount(poolID)
	closing := amount == loan.RepayAmount

	if err := c.vault.TransferIn(poolAcct, principal, kind, amount); err != nil {
		c.rejected("repay", "transfer")
		return 0, 0, fmt.Errorf("repay: %w", err)
	}
	collateralReleased := int64(0)
	if closing {
		collateralReleased = loan.CollateralAmount
		if err := c.vault.TransferOut(poolAcct, principal, pool.CollateralKind(), collateralReleased); err != nil {
			// Return the payment; the loan stays exactly as it was.
			if undoErr := c.vault.TransferOut(poolAcct, principal, kind, amount); undoErr != nil {
				c.log.Error().Err(undoErr).
					Uint32("pool_id", poolID).
					Str("principal", principal.String()).
					Msg("payment return failed after aborted collateral release")
			}
			c.rejected("repay", "transfer")
			return 0, 0, fmt.Errorf("repay collateral release: %w", err)
		}
	}

	loan.RepayAmount -= amount
	pool.TotalBorrowAmount -= amount
	pool.CurrentBalanceAmount += amount
	if closing {
		c.loans.Delete(poolID, principal)
		if c.metrics != nil {
			c.metrics.LoansRepaid.WithLabelValues(poolLabel(poolID)).Inc()
		}
	}

	c.log.Info().
		Uint32("pool_id", poolID).
		Str("principal", principal.String()).
		Int64("paid", amount).
		Int64("remaining_debt", loan.RepayAmount).
		Int64("collateral_released", collateralReleased).
		Msg("repayment committed")

	c.committed("repay", start)
	c.poolGauges(pool)
	c.emit(pool.ID, principal, &event.LoanRepaid{
		PoolID:             poolID,
		Principal:          principal,
		PaidAmount:         amount,
		RemainingDebt:      loan.RepayAmount,
		CollateralReleased: collateralReleased,
	})
	return amount, loan.RepayAmount, nil
}

// Liquidate lets a third party buy a matured loan's collateral at the
// discount price, clearing the debt. Returns the collateral released to the
// liquidator.
func (c *Core) Liquidate(liquidator uuid.UUID, poolID uint32, borrower uuid.UUID) (int64, error) {
	release, err := c.guard.Acquire()
	if err != nil {
		c.rejected("liquidate", "guard")
		return 0, err
	}
	defer release()
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	start := c.nowFn()

	if liquidator == borrower {
		c.rejected("liquidate", "self_liquidation")
		return 0, fmt.Errorf("liquidate: %w", ErrSelfLiquidation)
	}
	pool, err := c.registry.Get(poolID)
	if err != nil {
		c.rejected("liquidate", "no_such_pool")
		return 0, fmt.Errorf("liquidate: %w", err)
	}
	loan, ok := c.loans.Get(poolID, borrower)
	if !ok {
		c.rejected("liquidate", "no_active_loan")
		return 0, fmt.Errorf("liquidate: %w", ErrNoActiveLoan)
	}
	if loan.CollateralAmount == 0 {
		c.rejected("liquidate", "no_collateral")
		return 0, fmt.Errorf("liquidate: %w", ErrNoCollateral)
	}
	if now := c.nowFn().Unix(); now < loan.MaturityTime() {
		c.rejected("liquidate", "not_yet_liquidatable")
		return 0, fmt.Errorf("liquidate: matures at %d, now %d: %w", loan.MaturityTime(), now, ErrNotYetLiquidatable)
	}

	rate, err := c.rates.CurrentRate()
	if err != nil {
		c.rejected("liquidate", "stale_rate")
		if c.metrics != nil {
			c.metrics.OracleStaleErrors.Inc()
		}
		return 0, fmt.Errorf("liquidate: %w", err)
	}

	collateralKind := pool.CollateralKind()
	depositKind := pool.DepositKind()
	pay := fpmath.PayoffQuote(loan.CollateralAmount, rate, pool.Orientation,
		fpmath.AssetScale(collateralKind), fpmath.AssetScale(depositKind))
	if c.vault.BalanceOf(liquidator, depositKind) < pay {
		c.rejected("liquidate", "insufficient_balance")
		return 0, fmt.Errorf("liquidate: need %d %s: %w", pay, depositKind, ErrInsufficientBalance)
	}

	poolAcct := custody.PoolAccount(poolID)
	if err := c.vault.TransferIn(poolAcct, liquidator, depositKind, pay); err != nil {
		c.rejected("liquidate", "transfer")
		return 0, fmt.Errorf("liquidate payment: %w", err)
	}
	seized := loan.CollateralAmount
	if err := c.vault.TransferOut(poolAcct, liquidator, collateralKind, seized); err != nil {
		if undoErr := c.vault.TransferOut(poolAcct, liquidator, depositKind, pay); undoErr != nil {
			c.log.Error().Err(undoErr).
				Uint32("pool_id", poolID).
				Str("liquidator", liquidator.String()).
				Msg("payment return failed after aborted collateral seizure")
		}
		c.rejected("liquidate", "transfer")
		return 0, fmt.Errorf("liquidate collateral: %w", err)
	}

	debtCleared := loan.RepayAmount
	pool.CurrentBalanceAmount += pay
	pool.TotalBorrowAmount -= debtCleared

	// Reserve reconciliation: the loan's unearned fee always leaves the
	// reserve; a payoff above the outstanding debt additionally banks the
	// surplus over principal+interest.
	reserveDelta := -loan.FeeAmount
	if pay > debtCleared {
		if excess := pay - (loan.BorrowedAmount + loan.InterestAmount); excess > 0 {
			reserveDelta += excess
		}
	}
	if next := pool.TotalReserveAmount + reserveDelta; next < 0 {
		// Saturate rather than wrap; the shortfall is visible in metrics.
		if c.metrics != nil {
			c.metrics.ReserveShortfall.WithLabelValues(poolLabel(poolID)).Add(float64(-next))
		}
		c.log.Warn().
			Uint32("pool_id", poolID).
			Int64("reserve", pool.TotalReserveAmount).
			Int64("delta", reserveDelta).
			Msg("reserve deduction clamped at zero")
		pool.TotalReserveAmount = 0
	} else {
		pool.TotalReserveAmount = next
	}

	c.loans.Delete(poolID, borrower)

	c.log.Info().
		Uint32("pool_id", poolID).
		Str("borrower", borrower.String()).
		Str("liquidator", liquidator.String()).
		Int64("pay", pay).
		Int64("collateral_seized", seized).
		Int64("debt_cleared", debtCleared).
		Msg("loan liquidated")

	c.committed("liquidate", start)
	if c.metrics != nil {
		c.metrics.LoansLiquidated.WithLabelValues(poolLabel(poolID)).Inc()
	}
	c.poolGauges(pool)
	c.emit(pool.ID, liquidator, &event.LoanLiquidated{
		PoolID:           poolID,
		Borrower:         borrower,
		Liquidator:       liquidator,
		PayoffAmount:     pay,
		CollateralSeized: seized,
		DebtCleared:      debtCleared,
		Rate:             rate,
	})
	return seized, nil
}

// GetPayoffQuote prices a loan's collateral at the liquidation discount
// without touching state. The quote depends only on the collateral amount,
// the current rate and the pool orientation.
func (c *Core) GetPayoffQuote(poolID uint32, borrower uuid.UUID) (int64, error) {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()

	pool, err := c.registry.Get(poolID)
	if err != nil {
		return 0, fmt.Errorf("payoff quote: %w", err)
	}
	loan, ok := c.loans.Get(poolID, borrower)
	if !ok {
		return 0, fmt.Errorf("payoff quote: %w", ErrNoActiveLoan)
	}
	if loan.CollateralAmount == 0 {
		return 0, fmt.Errorf("payoff quote: %w", ErrNoCollateral)
	}
	rate, err := c.rates.CurrentRate()
	if err != nil {
		return 0, fmt.Errorf("payoff quote: %w", err)
	}
	return fpmath.PayoffQuote(loan.CollateralAmount, rate, pool.Orientation,
		fpmath.AssetScale(pool.CollateralKind()), fpmath.AssetScale(pool.DepositKind())), nil
}

// CreatePool lists a new pool. Owner-gated.
func (c *Core) CreatePool(caller uuid.UUID, orientation fpmath.Orientation, params state.PoolParams) (*state.Pool, error) {
	release, err := c.guard.Acquire()
	if err != nil {
		c.rejected("create_pool", "guard")
		return nil, err
	}
	defer release()
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	start := c.nowFn()

	if caller != c.owner {
		c.rejected("create_pool", "not_owner")
		return nil, fmt.Errorf("create pool: %w", ErrNotOwner)
	}
	pool, err := c.registry.CreatePool(orientation, params)
	if err != nil {
		c.rejected("create_pool", "validation")
		return nil, err
	}

	c.committed("create_pool", start)
	c.poolGauges(pool)
	c.emit(pool.ID, caller, &event.PoolCreated{
		PoolID:           pool.ID,
		Owner:            caller,
		Orientation:      pool.Orientation.String(),
		InterestRate:     params.InterestRate,
		ReserveFeeRate:   params.ReserveFeeRate,
		CollateralFactor: params.CollateralFactor,
	})
	return pool, nil
}

// UpdatePoolParams replaces a pool's risk parameters between operations.
// Owner-gated; open loans keep their originated terms.
func (c *Core) UpdatePoolParams(caller uuid.UUID, poolID uint32, params state.PoolParams) error {
	release, err := c.guard.Acquire()
	if err != nil {
		c.rejected("update_pool", "guard")
		return err
	}
	defer release()
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	start := c.nowFn()

	if caller != c.owner {
		c.rejected("update_pool", "not_owner")
		return fmt.Errorf("update pool: %w", ErrNotOwner)
	}
	if err := c.registry.UpdateParams(poolID, params); err != nil {
		c.rejected("update_pool", "validation")
		return err
	}

	c.committed("update_pool", start)
	c.emit(poolID, caller, &event.PoolParamsUpdated{
		PoolID:           poolID,
		Owner:            caller,
		InterestRate:     params.InterestRate,
		ReserveFeeRate:   params.ReserveFeeRate,
		CollateralFactor: params.CollateralFactor,
	})
	return nil
}

// GetPool returns a copy of a pool's current state. Operations hold the
// write side of stateMu while mutating aggregates, so the copy is consistent
// and the caller can never observe or cause a half-applied operation.
func (c *Core) GetPool(poolID uint32) (*state.Pool, error) {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()

	pool, err := c.registry.Get(poolID)
	if err != nil {
		return nil, err
	}
	snapshot := *pool
	return &snapshot, nil
}

// ListPools returns copies of every listed pool ordered by ID.
func (c *Core) ListPools() []*state.Pool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()

	pools := c.registry.List()
	out := make([]*state.Pool, 0, len(pools))
	for _, p := range pools {
		snapshot := *p
		out = append(out, &snapshot)
	}
	return out
}

// GetLoan returns a copy of a borrower's open loan record in a pool.
func (c *Core) GetLoan(poolID uint32, borrower uuid.UUID) (*ledger.Loan, error) {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()

	if _, err := c.registry.Get(poolID); err != nil {
		return nil, fmt.Errorf("get loan: %w", err)
	}
	loan, ok := c.loans.Get(poolID, borrower)
	if !ok {
		return nil, fmt.Errorf("get loan: %w", ErrNoActiveLoan)
	}
	snapshot := *loan
	return &snapshot, nil
}

// ShareBalance returns a depositor's share balance in a pool. Zero means no
// position.
func (c *Core) ShareBalance(poolID uint32, principal uuid.UUID) (int64, error) {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()

	if _, err := c.registry.Get(poolID); err != nil {
		return 0, fmt.Errorf("share balance: %w", err)
	}
	return c.depositors.Shares(poolID, principal), nil
}

// CaptureSnapshot assembles a consistent full-state snapshot. It takes the
// read side of stateMu, so it runs between operations, never inside one.
func (c *Core) CaptureSnapshot() *persistence.SnapshotData {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return persistence.Capture(c.registry, c.depositors, c.loans)
}

// emit wraps a committed event in an envelope and hands it to persistence
// (blocking) and the notifier (best-effort).
func (c *Core) emit(poolID uint32, actor uuid.UUID, ev event.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		c.log.Error().Err(err).Str("event_type", ev.EventType().String()).Msg("event marshal failed")
		return
	}
	env := event.Envelope{
		OperationID: uuid.New(),
		EventType:   ev.EventType(),
		PoolID:      poolID,
		Principal:   actor,
		Timestamp:   c.nowFn(),
		Payload:     payload,
	}

	if c.persistCh != nil {
		select {
		case c.persistCh <- env:
		default:
			// Persistence has fallen behind; block until it drains.
			if c.metrics != nil {
				c.metrics.PersistBackpressure.Inc()
			}
			c.persistCh <- env
		}
	}
	if c.notifyCh != nil {
		select {
		case c.notifyCh <- env:
		default:
			if c.metrics != nil {
				c.metrics.NotifyDrops.Inc()
			}
		}
	}
}

func (c *Core) committed(op string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.OperationsCommitted.WithLabelValues(op).Inc()
	c.metrics.OperationDuration.WithLabelValues(op).Observe(c.nowFn().Sub(start).Seconds())
}

func (c *Core) rejected(op, reason string) {
	if c.metrics == nil {
		return
	}
	if reason == "guard" {
		c.metrics.GuardContention.Inc()
	}
	c.metrics.OperationsRejected.WithLabelValues(op, reason).Inc()
}

func (c *Core) poolGauges(pool *state.Pool) {
	if c.metrics == nil {
		return
	}
	label := poolLabel(pool.ID)
	if liq, err := pool.TotalLiquidity(); err == nil {
		c.metrics.PoolTotalLiquidity.WithLabelValues(label).Set(float64(liq))
	}
	c.metrics.PoolCurrentBalance.WithLabelValues(label).Set(float64(pool.CurrentBalanceAmount))
	c.metrics.PoolTotalBorrow.WithLabelValues(label).Set(float64(pool.TotalBorrowAmount))
	c.metrics.PoolTotalReserve.WithLabelValues(label).Set(float64(pool.TotalReserveAmount))
	c.metrics.PoolTotalShares.WithLabelValues(label).Set(float64(pool.TotalAssetAmount))
}

func poolLabel(poolID uint32) string {
	return strconv.FormatUint(uint64(poolID), 10)
}
