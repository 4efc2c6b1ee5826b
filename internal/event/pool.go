// internal/event/pool.go
package event

import "github.com/google/uuid"

type PoolCreated struct {
	PoolID           uint32    `json:"pool_id"`
	Owner            uuid.UUID `json:"owner"`
	Orientation      string    `json:"orientation"`
	InterestRate     uint8     `json:"interest_rate"`
	ReserveFeeRate   uint8     `json:"reserve_fee_rate"`
	CollateralFactor uint8     `json:"collateral_factor"`
}

func (p *PoolCreated) EventType() EventType {
	return EventTypePoolCreated
}

func (p *PoolCreated) Pool() uint32 {
	return p.PoolID
}

func (p *PoolCreated) Actor() uuid.UUID {
	return p.Owner
}

type PoolParamsUpdated struct {
	PoolID           uint32    `json:"pool_id"`
	Owner            uuid.UUID `json:"owner"`
	InterestRate     uint8     `json:"interest_rate"`
	ReserveFeeRate   uint8     `json:"reserve_fee_rate"`
	CollateralFactor uint8     `json:"collateral_factor"`
}

func (p *PoolParamsUpdated) EventType() EventType {
	return EventTypePoolParamsUpdated
}

func (p *PoolParamsUpdated) Pool() uint32 {
	return p.PoolID
}

func (p *PoolParamsUpdated) Actor() uuid.UUID {
	return p.Owner
}
