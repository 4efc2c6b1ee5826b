// internal/event/deposit.go
package event

import "github.com/google/uuid"

type DepositMade struct {
	PoolID       uint32    `json:"pool_id"`
	Principal    uuid.UUID `json:"principal"`
	Amount       int64     `json:"amount"` // Fixed-point, deposit-asset units
	SharesMinted int64     `json:"shares_minted"`
	TotalShares  int64     `json:"total_shares"`
}

func (d *DepositMade) EventType() EventType {
	return EventTypeDepositMade
}

func (d *DepositMade) Pool() uint32 {
	return d.PoolID
}

func (d *DepositMade) Actor() uuid.UUID {
	return d.Principal
}

type WithdrawalMade struct {
	PoolID       uint32    `json:"pool_id"`
	Principal    uuid.UUID `json:"principal"`
	Amount       int64     `json:"amount"`
	SharesBurned int64     `json:"shares_burned"`
	TotalShares  int64     `json:"total_shares"`
}

func (w *WithdrawalMade) EventType() EventType {
	return EventTypeWithdrawalMade
}

func (w *WithdrawalMade) Pool() uint32 {
	return w.PoolID
}

func (w *WithdrawalMade) Actor() uuid.UUID {
	return w.Principal
}
