package custody

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	fpmath "LendLedger/internal/math"
)

func TestTransferInAndOut(t *testing.T) {
	v := NewMemoryVault()
	alice := uuid.New()
	v.Mint(alice, fpmath.AssetA, 1_000)

	if err := v.TransferIn(PoolAccount(1), alice, fpmath.AssetA, 600); err != nil {
		t.Fatalf("transfer in: %v", err)
	}
	if got := v.BalanceOf(alice, fpmath.AssetA); got != 400 {
		t.Fatalf("account balance: got %d, want 400", got)
	}
	if got := v.PoolBalance(PoolAccount(1), fpmath.AssetA); got != 600 {
		t.Fatalf("pool balance: got %d, want 600", got)
	}

	if err := v.TransferOut(PoolAccount(1), alice, fpmath.AssetA, 600); err != nil {
		t.Fatalf("transfer out: %v", err)
	}
	if got := v.BalanceOf(alice, fpmath.AssetA); got != 1_000 {
		t.Fatalf("account balance: got %d, want 1000", got)
	}
}

func TestOverdraftFailsWithoutEffect(t *testing.T) {
	v := NewMemoryVault()
	alice := uuid.New()
	v.Mint(alice, fpmath.AssetB, 100)

	if err := v.TransferIn(PoolAccount(1), alice, fpmath.AssetB, 101); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}
	if got := v.BalanceOf(alice, fpmath.AssetB); got != 100 {
		t.Fatalf("balance changed on failed transfer: %d", got)
	}

	if err := v.TransferOut(PoolAccount(1), alice, fpmath.AssetB, 1); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}
}

func TestKindsAreSegregated(t *testing.T) {
	v := NewMemoryVault()
	alice := uuid.New()
	v.Mint(alice, fpmath.AssetA, 100)

	if err := v.TransferIn(PoolAccount(1), alice, fpmath.AssetB, 50); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}
}

func TestNonPositiveAmountsRejected(t *testing.T) {
	v := NewMemoryVault()
	alice := uuid.New()
	if err := v.TransferIn(PoolAccount(1), alice, fpmath.AssetA, 0); err == nil {
		t.Fatal("zero transfer in accepted")
	}
	if err := v.TransferOut(PoolAccount(1), alice, fpmath.AssetA, -5); err == nil {
		t.Fatal("negative transfer out accepted")
	}
}
