package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"LendLedger/internal/event"
)

// OperationWriter batch-writes committed operations to Postgres using
// multi-row INSERT. The operation ID makes writes idempotent, so a retried
// batch never double-records.
type OperationWriter struct {
	db *sql.DB
}

// OperationRow is a row in ledger.operations.
type OperationRow struct {
	OperationID uuid.UUID
	EventType   string
	PoolID      uint32
	Principal   uuid.UUID
	Payload     []byte // JSON-encoded event payload
	Timestamp   time.Time
}

// RowFromEnvelope converts a committed event envelope to its table row.
func RowFromEnvelope(env event.Envelope) OperationRow {
	return OperationRow{
		OperationID: env.OperationID,
		EventType:   env.EventType.String(),
		PoolID:      env.PoolID,
		Principal:   env.Principal,
		Payload:     env.Payload,
		Timestamp:   env.Timestamp,
	}
}

func NewOperationWriter(db *sql.DB) *OperationWriter {
	return &OperationWriter{db: db}
}

// WriteBatch writes a batch of operation rows inside the given transaction.
func (w *OperationWriter) WriteBatch(ctx context.Context, tx *sql.Tx, rows []OperationRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO ledger.operations
		(operation_id, event_type, pool_id, principal, payload, timestamp)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*6)

	for i, r := range rows {
		base := i * 6
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6,
		))
		args = append(args,
			r.OperationID, r.EventType, r.PoolID, r.Principal, r.Payload, r.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (operation_id) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// DB exposes the handle for the worker's transactions.
func (w *OperationWriter) DB() *sql.DB {
	return w.db
}
