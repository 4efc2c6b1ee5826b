package ledger

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Loan is one outstanding borrow. All terms are fixed at origination; a
// later parameter change on the pool never reprices an open loan.
type Loan struct {
	PoolID    uint32    `json:"pool_id"`
	Principal uuid.UUID `json:"principal"`

	// CollateralAmount is held in custody until repay or liquidation.
	CollateralAmount int64 `json:"collateral_amount"`
	// BorrowedAmount is the principal disbursed to the borrower.
	BorrowedAmount int64 `json:"borrowed_amount"`
	// InterestAmount and FeeAmount are fixed up front; simple interest,
	// no accrual after origination.
	InterestAmount int64 `json:"interest_amount"`
	FeeAmount      int64 `json:"fee_amount"`
	// RepayAmount is the remaining debt: starts at
	// borrowed + interest + fee and only decreases.
	RepayAmount int64 `json:"repay_amount"`

	StartTime    int64 `json:"start_time"` // unix seconds
	DurationDays int64 `json:"duration_days"`
}

// Active reports whether the loan still has debt or collateral attached.
func (l *Loan) Active() bool {
	return l.RepayAmount > 0 || l.CollateralAmount > 0
}

// MaturityTime is the unix second at which the loan becomes liquidatable.
func (l *Loan) MaturityTime() int64 {
	return l.StartTime + l.DurationDays*86_400
}

// LoanLedger tracks at most one active loan per principal per pool.
type LoanLedger struct {
	mu    sync.RWMutex
	loans map[uint32]map[uuid.UUID]*Loan
}

func NewLoanLedger() *LoanLedger {
	return &LoanLedger{
		loans: make(map[uint32]map[uuid.UUID]*Loan),
	}
}

// Get returns a principal's loan in a pool, or false when none is open.
func (l *LoanLedger) Get(poolID uint32, principal uuid.UUID) (*Loan, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	loan, ok := l.loans[poolID][principal]
	return loan, ok
}

// Put records a loan, replacing any previous record for the same principal.
// Callers must enforce the one-active-loan rule before originating.
func (l *LoanLedger) Put(loan *Loan) {
	l.mu.Lock()
	defer l.mu.Unlock()
	book, ok := l.loans[loan.PoolID]
	if !ok {
		book = make(map[uuid.UUID]*Loan)
		l.loans[loan.PoolID] = book
	}
	book[loan.Principal] = loan
}

// Delete closes out a loan record.
func (l *LoanLedger) Delete(poolID uint32, principal uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if book, ok := l.loans[poolID]; ok {
		delete(book, principal)
	}
}

// Entries returns every open loan ordered by pool then principal.
func (l *LoanLedger) Entries() []*Loan {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*Loan
	for _, book := range l.loans {
		for _, loan := range book {
			out = append(out, loan)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PoolID != out[j].PoolID {
			return out[i].PoolID < out[j].PoolID
		}
		return out[i].Principal.String() < out[j].Principal.String()
	})
	return out
}

// Restore reinstates a snapshotted loan.
func (l *LoanLedger) Restore(loan *Loan) {
	l.Put(loan)
}
