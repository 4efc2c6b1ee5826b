package query

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OperationRecord is one committed operation from ledger.operations.
type OperationRecord struct {
	OperationID uuid.UUID       `json:"operation_id"`
	EventType   string          `json:"event_type"`
	PoolID      uint32          `json:"pool_id"`
	Principal   uuid.UUID       `json:"principal"`
	Payload     json.RawMessage `json:"payload"`
	Timestamp   time.Time       `json:"timestamp"`
}

// HistoryPage is a page of operation records, newest first.
type HistoryPage struct {
	Operations []OperationRecord `json:"operations"`
	// NextOffset is the offset of the following page, or -1 when this is
	// the last page.
	NextOffset int `json:"next_offset"`
}
