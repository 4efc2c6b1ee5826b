package ledger

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// DepositorLedger tracks per-principal share balances for every pool.
// Shares are claims on pool liquidity, not asset amounts; conversion happens
// in the core at operation time against the pool's live totals.
type DepositorLedger struct {
	mu     sync.RWMutex
	shares map[uint32]map[uuid.UUID]int64
}

func NewDepositorLedger() *DepositorLedger {
	return &DepositorLedger{
		shares: make(map[uint32]map[uuid.UUID]int64),
	}
}

// Shares returns a principal's share balance in a pool.
func (l *DepositorLedger) Shares(poolID uint32, principal uuid.UUID) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.shares[poolID][principal]
}

// Add credits (or, with a negative delta, debits) a principal's share balance
// and returns the new balance. A balance reaching zero is removed from the
// book.
func (l *DepositorLedger) Add(poolID uint32, principal uuid.UUID, delta int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	book, ok := l.shares[poolID]
	if !ok {
		book = make(map[uuid.UUID]int64)
		l.shares[poolID] = book
	}
	next := book[principal] + delta
	if next == 0 {
		delete(book, principal)
	} else {
		book[principal] = next
	}
	return next
}

// Clear removes a principal's entire position in a pool and returns the
// share balance that was held.
func (l *DepositorLedger) Clear(poolID uint32, principal uuid.UUID) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	book, ok := l.shares[poolID]
	if !ok {
		return 0
	}
	held := book[principal]
	delete(book, principal)
	return held
}

// DepositorEntry is one principal's position in one pool, used for snapshots
// and queries.
type DepositorEntry struct {
	PoolID    uint32    `json:"pool_id"`
	Principal uuid.UUID `json:"principal"`
	Shares    int64     `json:"shares"`
}

// Entries returns every non-zero position, ordered by pool then principal so
// snapshots are deterministic.
func (l *DepositorLedger) Entries() []DepositorEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []DepositorEntry
	for poolID, book := range l.shares {
		for principal, shares := range book {
			out = append(out, DepositorEntry{PoolID: poolID, Principal: principal, Shares: shares})
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

// Restore reinstates a snapshotted position.
func (l *DepositorLedger) Restore(entry DepositorEntry) {
	if entry.Shares == 0 {
		return
	}
	l.Add(entry.PoolID, entry.Principal, entry.Shares)
}
