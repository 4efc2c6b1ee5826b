package core

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"LendLedger/internal/custody"
	"LendLedger/internal/event"
	"LendLedger/internal/ledger"
	fpmath "LendLedger/internal/math"
	"LendLedger/internal/oracle"
	"LendLedger/internal/state"
)

// rate 0.01 LBTC per LUSD at 1e8 fixed-point. In a pool that takes LBTC as
// collateral and lends LUSD, posted collateral at an 80% factor sizes to
// 0.8x its raw amount, which keeps test arithmetic readable.
const testRate = 1_000_000

type testEnv struct {
	core    *Core
	vault   *custody.MemoryVault
	rates   *oracle.FixedSource
	owner   uuid.UUID
	now     time.Time
	persist chan event.Envelope
	notify  chan event.Envelope
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		vault:   custody.NewMemoryVault(),
		rates:   &oracle.FixedSource{Rate: testRate},
		owner:   uuid.New(),
		now:     time.Unix(1_700_000_000, 0),
		persist: make(chan event.Envelope, 64),
		notify:  make(chan event.Envelope, 64),
	}
	env.core = NewCore(Config{
		Registry:   state.NewPoolRegistry(zerolog.Nop()),
		Depositors: ledger.NewDepositorLedger(),
		Loans:      ledger.NewLoanLedger(),
		Vault:      env.vault,
		Rates:      env.rates,
		Owner:      env.owner,
		Logger:     zerolog.Nop(),
		PersistCh:  env.persist,
		NotifyCh:   env.notify,
	})
	env.core.nowFn = func() time.Time { return env.now }
	return env
}

func (e *testEnv) advance(d time.Duration) {
	e.now = e.now.Add(d)
}

// newPool lists a pool lending LUSD against LBTC collateral.
func (e *testEnv) newPool(t *testing.T, params state.PoolParams) *state.Pool {
	t.Helper()
	pool, err := e.core.CreatePool(e.owner, fpmath.AssetBAsCollateral, params)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	return pool
}

func (e *testEnv) fund(p uuid.UUID, kind fpmath.AssetKind, amount int64) {
	e.vault.Mint(p, kind, amount)
}

func drainEvents(ch chan event.Envelope) []event.Envelope {
	var out []event.Envelope
	for {
		select {
		case env := <-ch:
			out = append(out, env)
		default:
			return out
		}
	}
}

func TestDepositMintsSharesAndEmits(t *testing.T) {
	env := newTestEnv(t)
	pool := env.newPool(t, state.PoolParams{InterestRate: 10, ReserveFeeRate: 2, CollateralFactor: 80})
	alice := uuid.New()
	env.fund(alice, fpmath.AssetA, 1_000)
	drainEvents(env.persist)

	shares, err := env.core.Deposit(alice, pool.ID, 1_000)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if shares != 1_000 {
		t.Fatalf("bootstrap shares: got %d, want 1000", shares)
	}
	if pool.CurrentBalanceAmount != 1_000 || pool.TotalAssetAmount != 1_000 {
		t.Fatalf("pool state: balance=%d shares=%d", pool.CurrentBalanceAmount, pool.TotalAssetAmount)
	}
	if got := env.vault.BalanceOf(alice, fpmath.AssetA); got != 0 {
		t.Fatalf("caller balance: got %d, want 0", got)
	}

	evs := drainEvents(env.persist)
	if len(evs) != 1 || evs[0].EventType != event.EventTypeDepositMade {
		t.Fatalf("persist events: %+v", evs)
	}
	if evs[0].PoolID != pool.ID || evs[0].Principal != alice {
		t.Fatalf("envelope context: %+v", evs[0])
	}
}

func TestDepositValidation(t *testing.T) {
	env := newTestEnv(t)
	pool := env.newPool(t, state.PoolParams{InterestRate: 10, ReserveFeeRate: 2, CollateralFactor: 80})
	alice := uuid.New()

	if _, err := env.core.Deposit(alice, pool.ID, 0); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("zero amount: got %v, want ErrZeroAmount", err)
	}
	if _, err := env.core.Deposit(alice, pool.ID, 100); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("unfunded: got %v, want ErrInsufficientBalance", err)
	}
	env.fund(alice, fpmath.AssetA, 100)
	if _, err := env.core.Deposit(alice, 99, 100); !errors.Is(err, state.ErrNoSuchPool) {
		t.Fatalf("unknown pool: got %v, want ErrNoSuchPool", err)
	}
	// Nothing moved on any failure path.
	if got := env.vault.BalanceOf(alice, fpmath.AssetA); got != 100 {
		t.Fatalf("balance after rejections: got %d, want 100", got)
	}
}

func TestShareRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	pool := env.newPool(t, state.PoolParams{InterestRate: 10, ReserveFeeRate: 2, CollateralFactor: 80})
	alice := uuid.New()
	env.fund(alice, fpmath.AssetA, 12_345)

	if _, err := env.core.Deposit(alice, pool.ID, 12_345); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	amount, err := env.core.Withdraw(alice, pool.ID)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if amount != 12_345 {
		t.Fatalf("round trip: got %d, want 12345", amount)
	}
	if got := env.vault.BalanceOf(alice, fpmath.AssetA); got != 12_345 {
		t.Fatalf("final balance: got %d, want 12345", got)
	}
	if pool.TotalAssetAmount != 0 || pool.CurrentBalanceAmount != 0 {
		t.Fatalf("pool not emptied: shares=%d balance=%d", pool.TotalAssetAmount, pool.CurrentBalanceAmount)
	}
}

func TestWithdrawRequiresShares(t *testing.T) {
	env := newTestEnv(t)
	pool := env.newPool(t, state.PoolParams{InterestRate: 10, ReserveFeeRate: 2, CollateralFactor: 80})
	if _, err := env.core.Withdraw(uuid.New(), pool.ID); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("got %v, want ErrZeroAmount", err)
	}
}

// borrowFor sets up a funded borrower and opens a loan, returning the
// borrower and the disbursed/owed amounts.
func (e *testEnv) borrowFor(t *testing.T, poolID uint32, collateral, durationDays int64) (uuid.UUID, int64, int64) {
	t.Helper()
	bob := uuid.New()
	e.fund(bob, fpmath.AssetB, collateral)
	borrowed, owed, err := e.core.Borrow(bob, poolID, collateral, durationDays)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	return bob, borrowed, owed
}

func TestBorrowSizingConcreteScenario(t *testing.T) {
	// Collateral factor 80, interest 10%/yr, no fee. A supplies 1000, a
	// second depositor supplies 1000 more so the later withdrawal is liquid.
	env := newTestEnv(t)
	pool := env.newPool(t, state.PoolParams{InterestRate: 10, ReserveFeeRate: 0, CollateralFactor: 80})
	alice, carol := uuid.New(), uuid.New()
	env.fund(alice, fpmath.AssetA, 1_000)
	env.fund(carol, fpmath.AssetA, 1_000)
	if _, err := env.core.Deposit(alice, pool.ID, 1_000); err != nil {
		t.Fatalf("deposit A: %v", err)
	}
	if _, err := env.core.Deposit(carol, pool.ID, 1_000); err != nil {
		t.Fatalf("deposit C: %v", err)
	}

	// 500 collateral at factor 80 and rate 0.01 sizes to 400.
	bob, borrowed, owed := env.borrowFor(t, pool.ID, 500, 180)
	if borrowed != 400 {
		t.Fatalf("borrowable: got %d, want 400", borrowed)
	}
	// 400*10/100 = 40; 40/365 floors the daily rate to 0, so 180 days
	// accrue no interest and the debt equals the principal.
	if owed != 400 {
		t.Fatalf("repay amount: got %d, want 400", owed)
	}
	if pool.TotalBorrowAmount != 400 || pool.CurrentBalanceAmount != 1_600 {
		t.Fatalf("pool after borrow: borrow=%d balance=%d", pool.TotalBorrowAmount, pool.CurrentBalanceAmount)
	}
	if got := env.vault.BalanceOf(bob, fpmath.AssetA); got != 400 {
		t.Fatalf("borrower received: got %d, want 400", got)
	}

	// Interest is realized at repayment, not continuously: A's claim is
	// still worth exactly 1000 and the pool has the liquid funds to pay it.
	amount, err := env.core.Withdraw(alice, pool.ID)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if amount != 1_000 {
		t.Fatalf("withdrawal before repay: got %d, want 1000", amount)
	}
}

func TestBorrowValidation(t *testing.T) {
	env := newTestEnv(t)
	pool := env.newPool(t, state.PoolParams{InterestRate: 10, ReserveFeeRate: 2, CollateralFactor: 80})
	alice := uuid.New()
	env.fund(alice, fpmath.AssetA, 10_000)
	if _, err := env.core.Deposit(alice, pool.ID, 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	bob := uuid.New()

	if _, _, err := env.core.Borrow(bob, pool.ID, 0, 30); !errors.Is(err, ErrZeroCollateral) {
		t.Fatalf("zero collateral: got %v, want ErrZeroCollateral", err)
	}
	if _, _, err := env.core.Borrow(bob, pool.ID, 500, 30); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("unfunded collateral: got %v, want ErrInsufficientCollateral", err)
	}

	// Pool cannot fund a loan larger than its liquid balance.
	env.fund(bob, fpmath.AssetB, 20_000)
	if _, _, err := env.core.Borrow(bob, pool.ID, 20_000, 30); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("oversized loan: got %v, want ErrInsufficientLiquidity", err)
	}

	// Collateral so small it sizes to zero borrowable.
	if _, _, err := env.core.Borrow(bob, pool.ID, 1, 30); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("dust collateral: got %v, want ErrInsufficientCollateral", err)
	}

	// Oracle failure is fatal to the operation.
	env.rates.Err = oracle.ErrStaleRate
	if _, _, err := env.core.Borrow(bob, pool.ID, 500, 30); !errors.Is(err, oracle.ErrStaleRate) {
		t.Fatalf("stale rate: got %v, want ErrStaleRate", err)
	}
	env.rates.Err = nil

	// Nothing changed through all of the failures.
	if pool.TotalBorrowAmount != 0 || pool.CurrentBalanceAmount != 10_000 {
		t.Fatalf("pool mutated by rejected borrows: %+v", pool)
	}
}

func TestSingleActiveLoan(t *testing.T) {
	env := newTestEnv(t)
	pool := env.newPool(t, state.PoolParams{InterestRate: 10, ReserveFeeRate: 0, CollateralFactor: 80})
	alice := uuid.New()
	env.fund(alice, fpmath.AssetA, 10_000)
	if _, err := env.core.Deposit(alice, pool.ID, 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	bob, borrowed, owed := env.borrowFor(t, pool.ID, 500, 30)
	env.fund(bob, fpmath.AssetB, 500)
	if _, _, err := env.core.Borrow(bob, pool.ID, 500, 30); !errors.Is(err, ErrAlreadyBorrowed) {
		t.Fatalf("second borrow: got %v, want ErrAlreadyBorrowed", err)
	}

	// A full repay clears the slot and a fresh borrow succeeds.
	env.fund(bob, fpmath.AssetA, owed-borrowed)
	if _, _, err := env.core.Repay(bob, pool.ID, owed); err != nil {
		t.Fatalf("repay: %v", err)
	}
	if _, _, err := env.core.Borrow(bob, pool.ID, 500, 30); err != nil {
		t.Fatalf("borrow after repay: %v", err)
	}
}

func TestNoLossOfLiquidity(t *testing.T) {
	env := newTestEnv(t)
	pool := env.newPool(t, state.PoolParams{InterestRate: 73, ReserveFeeRate: 2, CollateralFactor: 80})
	alice := uuid.New()
	env.fund(alice, fpmath.AssetA, 10_000)
	if _, err := env.core.Deposit(alice, pool.ID, 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	preBorrowBalance := pool.CurrentBalanceAmount
	preBorrowDebt := pool.TotalBorrowAmount

	// 1250 collateral sizes to 1000. 73%/yr is exactly 2/day on 1000:
	// interest = 2*100 = 200 over 100 days; fee = 20.
	bob, borrowed, owed := env.borrowFor(t, pool.ID, 1_250, 100)
	if borrowed != 1_000 || owed != 1_220 {
		t.Fatalf("loan terms: borrowed=%d owed=%d", borrowed, owed)
	}

	env.fund(bob, fpmath.AssetA, owed-borrowed)
	paid, remaining, err := env.core.Repay(bob, pool.ID, owed)
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if paid != owed || remaining != 0 {
		t.Fatalf("repay result: paid=%d remaining=%d", paid, remaining)
	}

	if got := pool.CurrentBalanceAmount - preBorrowBalance; got != owed-borrowed {
		t.Fatalf("balance delta: got %d, want %d", got, owed-borrowed)
	}
	if pool.TotalBorrowAmount != preBorrowDebt {
		t.Fatalf("debt not restored: got %d, want %d", pool.TotalBorrowAmount, preBorrowDebt)
	}
	// Collateral came back with the final payment.
	if got := env.vault.BalanceOf(bob, fpmath.AssetB); got != 1_250 {
		t.Fatalf("collateral returned: got %d, want 1250", got)
	}
}

func TestInterestFlowsToDepositors(t *testing.T) {
	env := newTestEnv(t)
	pool := env.newPool(t, state.PoolParams{InterestRate: 73, ReserveFeeRate: 0, CollateralFactor: 80})
	alice := uuid.New()
	env.fund(alice, fpmath.AssetA, 10_000)
	if _, err := env.core.Deposit(alice, pool.ID, 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	bob, borrowed, owed := env.borrowFor(t, pool.ID, 1_250, 100)
	env.fund(bob, fpmath.AssetA, owed-borrowed)
	if _, _, err := env.core.Repay(bob, pool.ID, owed); err != nil {
		t.Fatalf("repay: %v", err)
	}

	// The 200 of realized interest accrues to the sole depositor.
	amount, err := env.core.Withdraw(alice, pool.ID)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if amount != 10_200 {
		t.Fatalf("withdrawal with interest: got %d, want 10200", amount)
	}
}

func TestPartialRepayAndClamp(t *testing.T) {
	env := newTestEnv(t)
	pool := env.newPool(t, state.PoolParams{InterestRate: 73, ReserveFeeRate: 0, CollateralFactor: 80})
	alice := uuid.New()
	env.fund(alice, fpmath.AssetA, 10_000)
	if _, err := env.core.Deposit(alice, pool.ID, 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	bob, borrowed, owed := env.borrowFor(t, pool.ID, 1_250, 100) // owed 1200

	paid, remaining, err := env.core.Repay(bob, pool.ID, 500)
	if err != nil {
		t.Fatalf("partial repay: %v", err)
	}
	if paid != 500 || remaining != owed-500 {
		t.Fatalf("partial: paid=%d remaining=%d", paid, remaining)
	}
	// Collateral stays locked until the debt hits zero.
	if got := env.vault.BalanceOf(bob, fpmath.AssetB); got != 0 {
		t.Fatalf("collateral released early: %d", got)
	}

	// Over-offering is clamped to the outstanding debt.
	env.fund(bob, fpmath.AssetA, owed) // more than enough
	paid, remaining, err = env.core.Repay(bob, pool.ID, 1_000_000)
	if err != nil {
		t.Fatalf("over-offer repay: %v", err)
	}
	if paid != owed-500 || remaining != 0 {
		t.Fatalf("clamped: paid=%d remaining=%d", paid, remaining)
	}
	if got := env.vault.BalanceOf(bob, fpmath.AssetB); got != 1_250 {
		t.Fatalf("collateral after close: got %d, want 1250", got)
	}
	_ = borrowed

	// The slot is gone.
	if _, _, err := env.core.Repay(bob, pool.ID, 1); !errors.Is(err, ErrNoActiveLoan) {
		t.Fatalf("repay closed loan: got %v, want ErrNoActiveLoan", err)
	}
}

func TestRepayValidation(t *testing.T) {
	env := newTestEnv(t)
	pool := env.newPool(t, state.PoolParams{InterestRate: 73, ReserveFeeRate: 0, CollateralFactor: 80})
	alice := uuid.New()
	env.fund(alice, fpmath.AssetA, 10_000)
	if _, err := env.core.Deposit(alice, pool.ID, 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	bob, _, _ := env.borrowFor(t, pool.ID, 1_250, 100)

	if _, _, err := env.core.Repay(bob, pool.ID, 0); !errors.Is(err, ErrZeroRepay) {
		t.Fatalf("zero amount: got %v, want ErrZeroRepay", err)
	}

	// Spend the disbursed funds so the borrower holds nothing.
	env.vaultDrain(t, bob, fpmath.AssetA)
	if _, _, err := env.core.Repay(bob, pool.ID, 100); !errors.Is(err, ErrZeroRepay) {
		t.Fatalf("no balance: got %v, want ErrZeroRepay", err)
	}

	// Some balance, but less than the (clamped) offer: sufficiency is
	// checked before the transfer, identically for both pool orientations.
	env.fund(bob, fpmath.AssetA, 50)
	if _, _, err := env.core.Repay(bob, pool.ID, 100); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("short balance: got %v, want ErrInsufficientBalance", err)
	}
}

// vaultDrain moves a principal's whole balance of kind to a throwaway account.
func (e *testEnv) vaultDrain(t *testing.T, p uuid.UUID, kind fpmath.AssetKind) {
	t.Helper()
	if bal := e.vault.BalanceOf(p, kind); bal > 0 {
		if err := e.vault.TransferIn(custody.PoolAccount(0xFFFF), p, kind, bal); err != nil {
			t.Fatalf("drain: %v", err)
		}
	}
}

func TestLiquidationTimingGate(t *testing.T) {
	env := newTestEnv(t)
	pool := env.newPool(t, state.PoolParams{InterestRate: 10, ReserveFeeRate: 0, CollateralFactor: 80})
	alice := uuid.New()
	env.fund(alice, fpmath.AssetA, 10_000)
	if _, err := env.core.Deposit(alice, pool.ID, 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	bob, _, _ := env.borrowFor(t, pool.ID, 500, 30)

	liq := uuid.New()
	env.fund(liq, fpmath.AssetA, 10_000)

	// One second before maturity: gated.
	env.advance(30*24*time.Hour - time.Second)
	if _, err := env.core.Liquidate(liq, pool.ID, bob); !errors.Is(err, ErrNotYetLiquidatable) {
		t.Fatalf("before maturity: got %v, want ErrNotYetLiquidatable", err)
	}

	// Exactly at maturity: allowed.
	env.advance(time.Second)
	seized, err := env.core.Liquidate(liq, pool.ID, bob)
	if err != nil {
		t.Fatalf("at maturity: %v", err)
	}
	if seized != 500 {
		t.Fatalf("seized: got %d, want 500", seized)
	}
	if got := env.vault.BalanceOf(liq, fpmath.AssetB); got != 500 {
		t.Fatalf("liquidator collateral: got %d, want 500", got)
	}
}

func TestLiquidationAccounting(t *testing.T) {
	env := newTestEnv(t)
	pool := env.newPool(t, state.PoolParams{InterestRate: 10, ReserveFeeRate: 0, CollateralFactor: 80})
	alice := uuid.New()
	env.fund(alice, fpmath.AssetA, 10_000)
	if _, err := env.core.Deposit(alice, pool.ID, 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	// 500 collateral: borrowable 400 (debt 400, no interest at this size),
	// payoff 500*95% = 475.
	bob, _, owed := env.borrowFor(t, pool.ID, 500, 30)
	env.advance(31 * 24 * time.Hour)

	quote, err := env.core.GetPayoffQuote(pool.ID, bob)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote != 475 {
		t.Fatalf("quote: got %d, want 475", quote)
	}

	liq := uuid.New()
	env.fund(liq, fpmath.AssetA, quote)
	preBalance := pool.CurrentBalanceAmount
	preDebt := pool.TotalBorrowAmount

	if _, err := env.core.Liquidate(liq, pool.ID, bob); err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if got := pool.CurrentBalanceAmount - preBalance; got != quote {
		t.Fatalf("balance delta: got %d, want %d", got, quote)
	}
	if got := preDebt - pool.TotalBorrowAmount; got != owed {
		t.Fatalf("debt cleared: got %d, want %d", got, owed)
	}
	// Payoff (475) above the debt (400): the surplus over
	// principal+interest (75) is banked in the reserve.
	if pool.TotalReserveAmount != 75 {
		t.Fatalf("reserve: got %d, want 75", pool.TotalReserveAmount)
	}
	// The loan record is gone.
	if _, err := env.core.GetPayoffQuote(pool.ID, bob); !errors.Is(err, ErrNoActiveLoan) {
		t.Fatalf("quote after liquidation: got %v, want ErrNoActiveLoan", err)
	}
}

func TestLiquidationReserveSaturation(t *testing.T) {
	env := newTestEnv(t)
	// Fee 2% so the loan carries a fee to unwind at liquidation. With 100
	// days at 73%/yr the debt (1220) exceeds the payoff (1187), so only the
	// fee deduction applies.
	pool := env.newPool(t, state.PoolParams{InterestRate: 73, ReserveFeeRate: 2, CollateralFactor: 80})
	alice := uuid.New()
	env.fund(alice, fpmath.AssetA, 10_000)
	if _, err := env.core.Deposit(alice, pool.ID, 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	bob, _, _ := env.borrowFor(t, pool.ID, 1_250, 100) // fee 20, reserve now 20

	// Force the deduction to exceed the reserve. This cannot arise from
	// the operations alone, but the ledger must saturate, never wrap.
	pool.TotalReserveAmount = 3
	env.advance(101 * 24 * time.Hour)

	liq := uuid.New()
	env.fund(liq, fpmath.AssetA, 2_000)
	if _, err := env.core.Liquidate(liq, pool.ID, bob); err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if pool.TotalReserveAmount != 0 {
		t.Fatalf("reserve not clamped at zero: %d", pool.TotalReserveAmount)
	}
}

func TestLiquidationValidation(t *testing.T) {
	env := newTestEnv(t)
	pool := env.newPool(t, state.PoolParams{InterestRate: 10, ReserveFeeRate: 0, CollateralFactor: 80})
	alice := uuid.New()
	env.fund(alice, fpmath.AssetA, 10_000)
	if _, err := env.core.Deposit(alice, pool.ID, 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	bob, _, _ := env.borrowFor(t, pool.ID, 500, 30)

	if _, err := env.core.Liquidate(bob, pool.ID, bob); !errors.Is(err, ErrSelfLiquidation) {
		t.Fatalf("self: got %v, want ErrSelfLiquidation", err)
	}
	liq := uuid.New()
	if _, err := env.core.Liquidate(liq, pool.ID, uuid.New()); !errors.Is(err, ErrNoActiveLoan) {
		t.Fatalf("no loan: got %v, want ErrNoActiveLoan", err)
	}

	env.advance(31 * 24 * time.Hour)
	// Liquidator cannot fund the payoff.
	if _, err := env.core.Liquidate(liq, pool.ID, bob); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("unfunded liquidator: got %v, want ErrInsufficientBalance", err)
	}

	env.rates.Err = oracle.ErrStaleRate
	if _, err := env.core.Liquidate(liq, pool.ID, bob); !errors.Is(err, oracle.ErrStaleRate) {
		t.Fatalf("stale rate: got %v, want ErrStaleRate", err)
	}
}

func TestDiscountInvariant(t *testing.T) {
	env := newTestEnv(t)
	pool := env.newPool(t, state.PoolParams{InterestRate: 10, ReserveFeeRate: 2, CollateralFactor: 80})
	alice := uuid.New()
	env.fund(alice, fpmath.AssetA, 100_000)
	if _, err := env.core.Deposit(alice, pool.ID, 100_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	bob, _, _ := env.borrowFor(t, pool.ID, 10_000, 30)

	// The quote depends only on the collateral amount and the rate, and
	// is stable across repeated calls and loan-state changes.
	first, err := env.core.GetPayoffQuote(pool.ID, bob)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if first != 9_500 { // 10000 * 95%
		t.Fatalf("quote: got %d, want 9500", first)
	}
	env.fund(bob, fpmath.AssetA, 1)
	if _, _, err := env.core.Repay(bob, pool.ID, 1); err != nil {
		t.Fatalf("repay: %v", err)
	}
	second, err := env.core.GetPayoffQuote(pool.ID, bob)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if second != first {
		t.Fatalf("quote changed after partial repay: %d -> %d", first, second)
	}
}

func TestOwnerGating(t *testing.T) {
	env := newTestEnv(t)
	params := state.PoolParams{InterestRate: 10, ReserveFeeRate: 2, CollateralFactor: 80}
	stranger := uuid.New()

	if _, err := env.core.CreatePool(stranger, fpmath.AssetBAsCollateral, params); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("create: got %v, want ErrNotOwner", err)
	}
	pool := env.newPool(t, params)
	if err := env.core.UpdatePoolParams(stranger, pool.ID, params); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("update: got %v, want ErrNotOwner", err)
	}
	if err := env.core.UpdatePoolParams(env.owner, pool.ID, params); err != nil {
		t.Fatalf("owner update: %v", err)
	}
}

func TestParamsUpdateOnlyAffectsNewLoans(t *testing.T) {
	env := newTestEnv(t)
	pool := env.newPool(t, state.PoolParams{InterestRate: 73, ReserveFeeRate: 0, CollateralFactor: 80})
	alice := uuid.New()
	env.fund(alice, fpmath.AssetA, 10_000)
	if _, err := env.core.Deposit(alice, pool.ID, 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	bob, borrowed, owed := env.borrowFor(t, pool.ID, 1_250, 100) // interest 200

	next := state.PoolParams{InterestRate: 0, ReserveFeeRate: 0, CollateralFactor: 80}
	if err := env.core.UpdatePoolParams(env.owner, pool.ID, next); err != nil {
		t.Fatalf("update: %v", err)
	}

	// The open loan keeps its originated debt.
	env.fund(bob, fpmath.AssetA, owed-borrowed)
	paid, _, err := env.core.Repay(bob, pool.ID, owed)
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if paid != owed {
		t.Fatalf("repaid: got %d, want %d", paid, owed)
	}
}

func TestBorrowDurationBound(t *testing.T) {
	env := newTestEnv(t)
	pool := env.newPool(t, state.PoolParams{InterestRate: 10, ReserveFeeRate: 2, CollateralFactor: 80})
	alice := uuid.New()
	env.fund(alice, fpmath.AssetA, 1_000)
	if _, err := env.core.Deposit(alice, pool.ID, 1_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	bob := uuid.New()
	env.fund(bob, fpmath.AssetB, 500)

	// An effectively-unbounded term would inflate TotalBorrowAmount past the
	// pool's liquidity and push maturity out of reach.
	if _, _, err := env.core.Borrow(bob, pool.ID, 500, 1_000_000_000_000); !errors.Is(err, ErrExcessiveDuration) {
		t.Fatalf("huge duration: got %v, want ErrExcessiveDuration", err)
	}
	if _, _, err := env.core.Borrow(bob, pool.ID, 500, maxLoanDurationDays+1); !errors.Is(err, ErrExcessiveDuration) {
		t.Fatalf("just over max: got %v, want ErrExcessiveDuration", err)
	}
	// The rejection leaves no trace.
	if got := env.vault.BalanceOf(bob, fpmath.AssetB); got != 500 {
		t.Fatalf("collateral after rejection: got %d, want 500", got)
	}
	if pool.TotalBorrowAmount != 0 || pool.CurrentBalanceAmount != 1_000 {
		t.Fatalf("pool after rejection: borrow=%d balance=%d", pool.TotalBorrowAmount, pool.CurrentBalanceAmount)
	}

	// The bound itself is a legal term.
	if _, _, err := env.core.Borrow(bob, pool.ID, 500, maxLoanDurationDays); err != nil {
		t.Fatalf("max duration: %v", err)
	}
}

func TestReadAccessorsReturnCopies(t *testing.T) {
	env := newTestEnv(t)
	pool := env.newPool(t, state.PoolParams{InterestRate: 10, ReserveFeeRate: 2, CollateralFactor: 80})
	alice := uuid.New()
	env.fund(alice, fpmath.AssetA, 1_000)
	if _, err := env.core.Deposit(alice, pool.ID, 1_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	bob, _, owed := env.borrowFor(t, pool.ID, 500, 30)

	got, err := env.core.GetPool(pool.ID)
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	got.CurrentBalanceAmount = -1
	got.TotalAssetAmount = -1
	if fresh, _ := env.core.GetPool(pool.ID); fresh.CurrentBalanceAmount == -1 || fresh.TotalAssetAmount == -1 {
		t.Fatal("GetPool leaked the live pool")
	}

	listed := env.core.ListPools()
	listed[0].TotalReserveAmount = -1
	if fresh, _ := env.core.GetPool(pool.ID); fresh.TotalReserveAmount == -1 {
		t.Fatal("ListPools leaked the live pool")
	}

	loan, err := env.core.GetLoan(pool.ID, bob)
	if err != nil {
		t.Fatalf("get loan: %v", err)
	}
	loan.RepayAmount = 0
	if fresh, _ := env.core.GetLoan(pool.ID, bob); fresh.RepayAmount != owed {
		t.Fatalf("GetLoan leaked the live loan: debt %d, want %d", fresh.RepayAmount, owed)
	}
}

func TestConcurrentReadsDuringOperations(t *testing.T) {
	env := newTestEnv(t)
	pool := env.newPool(t, state.PoolParams{InterestRate: 10, ReserveFeeRate: 2, CollateralFactor: 80})
	alice := uuid.New()
	env.fund(alice, fpmath.AssetA, 1_000)
	if _, err := env.core.Deposit(alice, pool.ID, 1_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	bob, _, _ := env.borrowFor(t, pool.ID, 500, 30)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-env.persist:
			case <-env.notify:
			case <-done:
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			if p, err := env.core.GetPool(pool.ID); err == nil && p.CurrentBalanceAmount < 0 {
				t.Errorf("negative balance observed: %d", p.CurrentBalanceAmount)
				return
			}
			env.core.ListPools()
			env.core.GetLoan(pool.ID, bob)
			env.core.GetPayoffQuote(pool.ID, bob)
			env.core.ShareBalance(pool.ID, alice)
		}
	}()

	carol := uuid.New()
	env.fund(carol, fpmath.AssetA, 1_000)
	for i := 0; i < 200; i++ {
		if _, err := env.core.Deposit(carol, pool.ID, 1_000); err != nil {
			t.Fatalf("deposit %d: %v", i, err)
		}
		if _, err := env.core.Withdraw(carol, pool.ID); err != nil {
			t.Fatalf("withdraw %d: %v", i, err)
		}
	}
	close(done)
	wg.Wait()
}

func TestCaptureSnapshotRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	pool := env.newPool(t, state.PoolParams{InterestRate: 10, ReserveFeeRate: 2, CollateralFactor: 80})
	alice := uuid.New()
	env.fund(alice, fpmath.AssetA, 1_000)
	if _, err := env.core.Deposit(alice, pool.ID, 1_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	bob, _, owed := env.borrowFor(t, pool.ID, 500, 30)

	snap := env.core.CaptureSnapshot()

	// The snapshot must stay stable while later operations mutate the books.
	env.fund(bob, fpmath.AssetA, 100)
	if _, _, err := env.core.Repay(bob, pool.ID, 100); err != nil {
		t.Fatalf("repay: %v", err)
	}
	if len(snap.Loans) != 1 || snap.Loans[0].RepayAmount != owed {
		t.Fatalf("snapshot mutated by later repay: %+v", snap.Loans)
	}

	registry := state.NewPoolRegistry(zerolog.Nop())
	depositors := ledger.NewDepositorLedger()
	loans := ledger.NewLoanLedger()
	snap.Restore(registry, depositors, loans)

	restored, err := registry.Get(pool.ID)
	if err != nil {
		t.Fatalf("restored pool: %v", err)
	}
	if restored.TotalAssetAmount != 1_000 || restored.TotalBorrowAmount == 0 {
		t.Fatalf("restored aggregates: %+v", restored)
	}
	if got := depositors.Shares(pool.ID, alice); got != 1_000 {
		t.Fatalf("restored shares: got %d, want 1000", got)
	}
	loan, ok := loans.Get(pool.ID, bob)
	if !ok || loan.RepayAmount != owed {
		t.Fatalf("restored loan: %+v ok=%v", loan, ok)
	}
}
