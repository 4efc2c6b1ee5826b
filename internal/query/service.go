// Package query provides read-only access to the persisted operation log.
// Live pool and loan state is served by the core directly; this package only
// answers historical questions from Postgres.
package query

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

const maxPageSize = 500

// Service reads operation history from ledger.operations.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// PrincipalHistory returns a principal's operations, newest first.
func (s *Service) PrincipalHistory(ctx context.Context, principal uuid.UUID, limit, offset int) (*HistoryPage, error) {
	limit = clampLimit(limit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT operation_id, event_type, pool_id, principal, payload, timestamp
		FROM ledger.operations
		WHERE principal = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3
	`, principal, limit+1, offset)
	if err != nil {
		return nil, fmt.Errorf("principal history: %w", err)
	}
	return scanPage(rows, limit, offset)
}

// PoolHistory returns a pool's operations, newest first.
func (s *Service) PoolHistory(ctx context.Context, poolID uint32, limit, offset int) (*HistoryPage, error) {
	limit = clampLimit(limit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT operation_id, event_type, pool_id, principal, payload, timestamp
		FROM ledger.operations
		WHERE pool_id = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3
	`, poolID, limit+1, offset)
	if err != nil {
		return nil, fmt.Errorf("pool history: %w", err)
	}
	return scanPage(rows, limit, offset)
}

// scanPage reads up to limit+1 rows; the extra row only signals that a
// further page exists.
func scanPage(rows *sql.Rows, limit, offset int) (*HistoryPage, error) {
	defer rows.Close()

	page := &HistoryPage{NextOffset: -1}
	for rows.Next() {
		var rec OperationRecord
		if err := rows.Scan(
			&rec.OperationID, &rec.EventType, &rec.PoolID,
			&rec.Principal, &rec.Payload, &rec.Timestamp,
		); err != nil {
			return nil, err
		}
		page.Operations = append(page.Operations, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(page.Operations) > limit {
		page.Operations = page.Operations[:limit]
		page.NextOffset = offset + limit
	}
	return page, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxPageSize {
		return maxPageSize
	}
	return limit
}
