package query

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"LendLedger/internal/persistence"
	"LendLedger/internal/testutil"
)

func TestPrincipalHistoryPagination(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := persistence.NewMigrator(db, "../../migrations", zerolog.Nop()).Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	principal := uuid.New()
	w := persistence.NewOperationWriter(db)
	base := time.Unix(1_700_000_000, 0)
	var rows []persistence.OperationRow
	for i := 0; i < 5; i++ {
		rows = append(rows, persistence.OperationRow{
			OperationID: uuid.New(),
			EventType:   "DepositMade",
			PoolID:      1,
			Principal:   principal,
			Payload:     []byte(`{}`),
			Timestamp:   base.Add(time.Duration(i) * time.Second),
		})
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := w.WriteBatch(ctx, tx, rows); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	svc := NewService(db)
	page, err := svc.PrincipalHistory(ctx, principal, 3, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(page.Operations) != 3 || page.NextOffset != 3 {
		t.Fatalf("first page: %d ops, next=%d", len(page.Operations), page.NextOffset)
	}
	// Newest first.
	if !page.Operations[0].Timestamp.After(page.Operations[2].Timestamp) {
		t.Fatal("not ordered newest first")
	}

	page, err = svc.PrincipalHistory(ctx, principal, 3, page.NextOffset)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(page.Operations) != 2 || page.NextOffset != -1 {
		t.Fatalf("second page: %d ops, next=%d", len(page.Operations), page.NextOffset)
	}

	// Unknown principals get an empty final page.
	page, err = svc.PrincipalHistory(ctx, uuid.New(), 3, 0)
	if err != nil {
		t.Fatalf("empty history: %v", err)
	}
	if len(page.Operations) != 0 || page.NextOffset != -1 {
		t.Fatalf("empty page: %+v", page)
	}
}
