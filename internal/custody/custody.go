// Package custody abstracts the asset vault the ledger moves funds through.
// The ledger never trusts its own bookkeeping for external balances: every
// transfer is pre-checked against the vault and executed before in-memory
// state mutates.
package custody

import (
	"errors"

	"github.com/google/uuid"

	fpmath "LendLedger/internal/math"
)

// ErrInsufficientFunds is returned when a transfer would overdraw the source.
var ErrInsufficientFunds = errors.New("custody: insufficient funds")

// PoolAccount is the synthetic principal holding each pool's custodied
// assets. Pool funds are segregated per pool ID by the Vault implementation.
type PoolAccount uint32

// Vault moves asset amounts between principals and pool accounts.
//
// TransferIn moves from a principal into a pool's custody; TransferOut moves
// from a pool's custody to a principal. Both either complete fully or return
// an error with no effect.
type Vault interface {
	BalanceOf(principal uuid.UUID, kind fpmath.AssetKind) int64
	TransferIn(pool PoolAccount, from uuid.UUID, kind fpmath.AssetKind, amount int64) error
	TransferOut(pool PoolAccount, to uuid.UUID, kind fpmath.AssetKind, amount int64) error
}
