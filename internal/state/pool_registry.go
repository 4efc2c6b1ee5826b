package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	fpmath "LendLedger/internal/math"
)

// ErrNoSuchPool is returned for lookups of unlisted pool IDs.
var ErrNoSuchPool = errors.New("pool registry: no such pool")

// PoolRegistry owns the set of listed pools. Reads take an RLock; structural
// changes (listing, parameter updates) take the write lock. Aggregate-field
// mutation during operations is serialized by the core's execution guard,
// not here.
type PoolRegistry struct {
	mu     sync.RWMutex
	pools  map[uint32]*Pool
	nextID uint32
	log    zerolog.Logger
}

func NewPoolRegistry(log zerolog.Logger) *PoolRegistry {
	return &PoolRegistry{
		pools:  make(map[uint32]*Pool),
		nextID: 1,
		log:    log.With().Str("component", "pool_registry").Logger(),
	}
}

// CreatePool lists a new pool and returns its assigned ID.
func (r *PoolRegistry) CreatePool(orientation fpmath.Orientation, params PoolParams) (*Pool, error) {
	if err := ValidatePoolParams(params); err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if orientation != fpmath.AssetAAsCollateral && orientation != fpmath.AssetBAsCollateral {
		return nil, fmt.Errorf("create pool: invalid orientation %d", orientation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	pool := &Pool{
		ID:          r.nextID,
		Orientation: orientation,
		Params:      params,
	}
	r.pools[pool.ID] = pool
	r.nextID++

	r.log.Info().
		Uint32("pool_id", pool.ID).
		Str("orientation", orientation.String()).
		Uint8("interest_rate", params.InterestRate).
		Uint8("reserve_fee_rate", params.ReserveFeeRate).
		Uint8("collateral_factor", params.CollateralFactor).
		Msg("pool listed")

	return pool, nil
}

// UpdateParams replaces a pool's risk parameters. Open loans keep the terms
// they were originated with; only future borrows see the new values.
func (r *PoolRegistry) UpdateParams(poolID uint32, params PoolParams) error {
	if err := ValidatePoolParams(params); err != nil {
		return fmt.Errorf("update pool %d: %w", poolID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	pool, ok := r.pools[poolID]
	if !ok {
		return fmt.Errorf("update pool %d: %w", poolID, ErrNoSuchPool)
	}
	old := pool.Params
	pool.Params = params

	r.log.Info().
		Uint32("pool_id", poolID).
		Uint8("interest_rate_old", old.InterestRate).
		Uint8("interest_rate_new", params.InterestRate).
		Uint8("reserve_fee_rate_old", old.ReserveFeeRate).
		Uint8("reserve_fee_rate_new", params.ReserveFeeRate).
		Uint8("collateral_factor_old", old.CollateralFactor).
		Uint8("collateral_factor_new", params.CollateralFactor).
		Msg("pool parameters updated")

	return nil
}

// Get returns the pool for an ID.
func (r *PoolRegistry) Get(poolID uint32) (*Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pool, ok := r.pools[poolID]
	if !ok {
		return nil, fmt.Errorf("pool %d: %w", poolID, ErrNoSuchPool)
	}
	return pool, nil
}

// List returns all pools ordered by ID.
func (r *PoolRegistry) List() []*Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Pool, 0, len(r.pools))
	for _, p := range r.pools {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Restore re-registers a pool from a persisted snapshot, keeping nextID
// ahead of every restored ID.
func (r *PoolRegistry) Restore(pool *Pool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pools[pool.ID] = pool
	if pool.ID >= r.nextID {
		r.nextID = pool.ID + 1
	}
}
