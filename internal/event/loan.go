// internal/event/loan.go
package event

import "github.com/google/uuid"

type LoanOpened struct {
	PoolID           uint32    `json:"pool_id"`
	Principal        uuid.UUID `json:"principal"`
	CollateralAmount int64     `json:"collateral_amount"`
	BorrowedAmount   int64     `json:"borrowed_amount"`
	InterestAmount   int64     `json:"interest_amount"`
	FeeAmount        int64     `json:"fee_amount"`
	RepayAmount      int64     `json:"repay_amount"`
	Rate             int64     `json:"rate"` // oracle rate at origination
	StartTime        int64     `json:"start_time"`
	DurationDays     int64     `json:"duration_days"`
}

func (l *LoanOpened) EventType() EventType {
	return EventTypeLoanOpened
}

func (l *LoanOpened) Pool() uint32 {
	return l.PoolID
}

func (l *LoanOpened) Actor() uuid.UUID {
	return l.Principal
}

type LoanRepaid struct {
	PoolID             uint32    `json:"pool_id"`
	Principal          uuid.UUID `json:"principal"`
	PaidAmount         int64     `json:"paid_amount"`
	RemainingDebt      int64     `json:"remaining_debt"`
	CollateralReleased int64     `json:"collateral_released"`
}

func (l *LoanRepaid) EventType() EventType {
	return EventTypeLoanRepaid
}

func (l *LoanRepaid) Pool() uint32 {
	return l.PoolID
}

func (l *LoanRepaid) Actor() uuid.UUID {
	return l.Principal
}

type LoanLiquidated struct {
	PoolID           uint32    `json:"pool_id"`
	Borrower         uuid.UUID `json:"borrower"`
	Liquidator       uuid.UUID `json:"liquidator"`
	PayoffAmount     int64     `json:"payoff_amount"` // discounted price paid
	CollateralSeized int64     `json:"collateral_seized"`
	DebtCleared      int64     `json:"debt_cleared"`
	Rate             int64     `json:"rate"` // oracle rate at liquidation
}

func (l *LoanLiquidated) EventType() EventType {
	return EventTypeLoanLiquidated
}

func (l *LoanLiquidated) Pool() uint32 {
	return l.PoolID
}

func (l *LoanLiquidated) Actor() uuid.UUID {
	return l.Liquidator
}
