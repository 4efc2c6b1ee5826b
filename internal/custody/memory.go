package custody

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	fpmath "LendLedger/internal/math"
)

type accountKey struct {
	principal uuid.UUID
	kind      fpmath.AssetKind
}

type poolKey struct {
	pool PoolAccount
	kind fpmath.AssetKind
}

// MemoryVault is an in-process Vault. It backs the single-node deployment
// and all unit tests; a remote custodian implements the same interface.
type MemoryVault struct {
	mu       sync.Mutex
	accounts map[accountKey]int64
	pools    map[poolKey]int64
}

func NewMemoryVault() *MemoryVault {
	return &MemoryVault{
		accounts: make(map[accountKey]int64),
		pools:    make(map[poolKey]int64),
	}
}

func (v *MemoryVault) BalanceOf(principal uuid.UUID, kind fpmath.AssetKind) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.accounts[accountKey{principal, kind}]
}

// PoolBalance reports a pool's custodied balance for a kind.
func (v *MemoryVault) PoolBalance(pool PoolAccount, kind fpmath.AssetKind) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pools[poolKey{pool, kind}]
}

func (v *MemoryVault) TransferIn(pool PoolAccount, from uuid.UUID, kind fpmath.AssetKind, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("custody: transfer in of %d %s", amount, kind)
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	key := accountKey{from, kind}
	if v.accounts[key] < amount {
		return fmt.Errorf("%w: %s has %d %s, need %d", ErrInsufficientFunds, from, v.accounts[key], kind, amount)
	}
	v.accounts[key] -= amount
	v.pools[poolKey{pool, kind}] += amount
	return nil
}

func (v *MemoryVault) TransferOut(pool PoolAccount, to uuid.UUID, kind fpmath.AssetKind, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("custody: transfer out of %d %s", amount, kind)
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	key := poolKey{pool, kind}
	if v.pools[key] < amount {
		return fmt.Errorf("%w: pool %d has %d %s, need %d", ErrInsufficientFunds, pool, v.pools[key], kind, amount)
	}
	v.pools[key] -= amount
	v.accounts[accountKey{to, kind}] += amount
	return nil
}

// Mint credits a principal out of thin air. Test setup only.
func (v *MemoryVault) Mint(principal uuid.UUID, kind fpmath.AssetKind, amount int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.accounts[accountKey{principal, kind}] += amount
}
