package event

import (
	"time"

	"github.com/google/uuid"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeDepositMade
	EventTypeWithdrawalMade
	EventTypeLoanOpened
	EventTypeLoanRepaid
	EventTypeLoanLiquidated
	EventTypePoolCreated
	EventTypePoolParamsUpdated
)

// Envelope wraps every committed operation event. One envelope is emitted per
// successful state-changing operation, after the in-memory commit.
type Envelope struct {
	// OperationID is assigned by the core and doubles as the idempotency
	// key for persistence and downstream consumers.
	OperationID uuid.UUID

	// Event type discriminator
	EventType EventType

	// Pool context (0 for pool-creation events, which assign the ID)
	PoolID uint32

	// Principal the operation acted for
	Principal uuid.UUID

	// Commit time from the core's clock
	Timestamp time.Time

	// JSON-encoded event-specific data
	Payload []byte
}

// Event is the interface all event payloads must implement
type Event interface {
	// EventType returns the discriminator
	EventType() EventType

	// Pool returns the pool the event belongs to
	Pool() uint32

	// Actor returns the principal the operation acted for
	Actor() uuid.UUID
}

func (et EventType) String() string {
	switch et {
	case EventTypeDepositMade:
		return "DepositMade"
	case EventTypeWithdrawalMade:
		return "WithdrawalMade"
	case EventTypeLoanOpened:
		return "LoanOpened"
	case EventTypeLoanRepaid:
		return "LoanRepaid"
	case EventTypeLoanLiquidated:
		return "LoanLiquidated"
	case EventTypePoolCreated:
		return "PoolCreated"
	case EventTypePoolParamsUpdated:
		return "PoolParamsUpdated"
	default:
		return "Unknown"
	}
}
