package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"LendLedger/internal/ledger"
	fpmath "LendLedger/internal/math"
	"LendLedger/internal/state"
)

// SnapshotManager persists the full in-memory ledger state as one JSONB
// document. The ledger has no event replay; a restart loads the newest
// snapshot and resumes from it.
type SnapshotManager struct {
	db *sql.DB
}

// SnapshotData contains the complete ledger state at a point in time.
type SnapshotData struct {
	Pools      []PoolSnapshot          `json:"pools"`
	Depositors []ledger.DepositorEntry `json:"depositors"`
	Loans      []*ledger.Loan          `json:"loans"`
	CreatedAt  time.Time               `json:"created_at"`
}

// PoolSnapshot is a serializable pool.
type PoolSnapshot struct {
	ID                   uint32 `json:"id"`
	Orientation          int    `json:"orientation"`
	InterestRate         uint8  `json:"interest_rate"`
	ReserveFeeRate       uint8  `json:"reserve_fee_rate"`
	CollateralFactor     uint8  `json:"collateral_factor"`
	TotalBorrowAmount    int64  `json:"total_borrow_amount"`
	TotalAssetAmount     int64  `json:"total_asset_amount"`
	TotalReserveAmount   int64  `json:"total_reserve_amount"`
	CurrentBalanceAmount int64  `json:"current_balance_amount"`
}

// SnapshotPool converts a live pool to its snapshot form.
func SnapshotPool(p *state.Pool) PoolSnapshot {
	return PoolSnapshot{
		ID:                   p.ID,
		Orientation:          int(p.Orientation),
		InterestRate:         p.Params.InterestRate,
		ReserveFeeRate:       p.Params.ReserveFeeRate,
		CollateralFactor:     p.Params.CollateralFactor,
		TotalBorrowAmount:    p.TotalBorrowAmount,
		TotalAssetAmount:     p.TotalAssetAmount,
		TotalReserveAmount:   p.TotalReserveAmount,
		CurrentBalanceAmount: p.CurrentBalanceAmount,
	}
}

// Pool converts a snapshot back to a live pool.
func (s PoolSnapshot) Pool() *state.Pool {
	return &state.Pool{
		ID:          s.ID,
		Orientation: fpmath.Orientation(s.Orientation),
		Params: state.PoolParams{
			InterestRate:     s.InterestRate,
			ReserveFeeRate:   s.ReserveFeeRate,
			CollateralFactor: s.CollateralFactor,
		},
		TotalBorrowAmount:    s.TotalBorrowAmount,
		TotalAssetAmount:     s.TotalAssetAmount,
		TotalReserveAmount:   s.TotalReserveAmount,
		CurrentBalanceAmount: s.CurrentBalanceAmount,
	}
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// Capture assembles a snapshot from the live registry and ledgers. Call it
// only while no operation is executing (startup, shutdown, or holding the
// execution guard).
func Capture(registry *state.PoolRegistry, depositors *ledger.DepositorLedger, loans *ledger.LoanLedger) *SnapshotData {
	pools := registry.List()
	openLoans := loans.Entries()
	snap := &SnapshotData{
		Pools:      make([]PoolSnapshot, 0, len(pools)),
		Depositors: depositors.Entries(),
		Loans:      make([]*ledger.Loan, 0, len(openLoans)),
		CreatedAt:  time.Now(),
	}
	for _, p := range pools {
		snap.Pools = append(snap.Pools, SnapshotPool(p))
	}
	// Copy the loan records so the snapshot stays stable while it is
	// marshalled after the capture lock is released.
	for _, l := range openLoans {
		loan := *l
		snap.Loans = append(snap.Loans, &loan)
	}
	return snap
}

// Restore loads a snapshot into empty registry and ledgers.
func (s *SnapshotData) Restore(registry *state.PoolRegistry, depositors *ledger.DepositorLedger, loans *ledger.LoanLedger) {
	for _, ps := range s.Pools {
		registry.Restore(ps.Pool())
	}
	for _, entry := range s.Depositors {
		depositors.Restore(entry)
	}
	for _, loan := range s.Loans {
		loans.Restore(loan)
	}
}

// Save persists a snapshot to ledger.snapshots.
func (sm *SnapshotManager) Save(ctx context.Context, snap *SnapshotData) (int, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO ledger.snapshots (snapshot_id, data, size_bytes, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.New(), data, len(data), snap.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("save snapshot: %w", err)
	}
	return len(data), nil
}

// LoadLatest loads the most recent snapshot, or nil on a cold start.
func (sm *SnapshotManager) LoadLatest(ctx context.Context) (*SnapshotData, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data FROM ledger.snapshots
		ORDER BY created_at DESC
		LIMIT 1
	`)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Prune keeps the newest keep snapshots and deletes the rest.
func (sm *SnapshotManager) Prune(ctx context.Context, keep int) error {
	_, err := sm.db.ExecContext(ctx, `
		DELETE FROM ledger.snapshots
		WHERE snapshot_id NOT IN (
			SELECT snapshot_id FROM ledger.snapshots
			ORDER BY created_at DESC
			LIMIT $1
		)
	`, keep)
	return err
}
