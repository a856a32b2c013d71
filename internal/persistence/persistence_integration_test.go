package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"SynthSettle/internal/persistence"
	"SynthSettle/internal/testutil"
)

// ============================================================================
// Integration tests against a real Postgres. Skipped unless a test
// database is reachable and INTEGRATION_TEST is set.
// ============================================================================

func TestWriteBatchAndIsDuplicate(t *testing.T) {
	testutil.RequireIntegration(t)

	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	migrator := persistence.NewMigrator(db, "../../migrations", zerolog.Nop())
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	writer := persistence.NewAdjustmentWriter(db)
	reqID := uuid.New()
	rows := []persistence.AdjustmentRow{
		{
			RequestID:     reqID,
			RequestType:   "adjust",
			Account:       uuid.New(),
			DeltaPosition: 100,
			DeltaMargin:   20,
			Outcome:       "ok",
			CycleSeq:      1,
			Timestamp:     time.Now().UTC(),
		},
		{
			RequestID:     uuid.New(),
			RequestType:   "topup",
			Account:       uuid.New(),
			DeltaMargin:   50,
			Outcome:       "ok",
			CycleSeq:      1,
			Timestamp:     time.Now().UTC(),
		},
	}

	if err := writer.WriteBatch(ctx, rows); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}

	// Rewriting the same batch hits ON CONFLICT DO NOTHING.
	if err := writer.WriteBatch(ctx, rows); err != nil {
		t.Fatalf("WriteBatch (replay): %v", err)
	}

	dup, err := writer.IsDuplicate("adjust", reqID.String())
	if err != nil {
		t.Fatalf("IsDuplicate: %v", err)
	}
	if !dup {
		t.Error("written request not reported as duplicate")
	}

	dup, err = writer.IsDuplicate("adjust", uuid.New().String())
	if err != nil {
		t.Fatalf("IsDuplicate (unknown): %v", err)
	}
	if dup {
		t.Error("unknown request reported as duplicate")
	}
}

func TestSnapshotSaveLoadRoundTrip(t *testing.T) {
	testutil.RequireIntegration(t)

	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	migrator := persistence.NewMigrator(db, "../../migrations", zerolog.Nop())
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	snapMgr := persistence.NewSnapshotManager(db)

	if snap, err := snapMgr.LoadLatestSnapshot(ctx); err != nil || snap != nil {
		t.Fatalf("empty table: snap=%v err=%v, want nil/nil", snap, err)
	}

	refPrice := int64(1_500_000)
	account := uuid.New()
	snap := &persistence.SnapshotData{
		CycleSeq:      7,
		RefPrice:      &refPrice,
		PriceSequence: 42,
		Accounts: []persistence.AccountSnapshot{
			{Account: account, Position: 100, Inventory: 100, Margin: 20},
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := snapMgr.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	// Same cycle again upserts rather than erroring.
	if err := snapMgr.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot (upsert): %v", err)
	}

	loaded, err := snapMgr.LoadLatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadLatestSnapshot: %v", err)
	}
	if loaded == nil {
		t.Fatal("LoadLatestSnapshot returned nil after save")
	}
	if loaded.CycleSeq != 7 || loaded.PriceSequence != 42 {
		t.Errorf("loaded seq = %d/%d, want 7/42", loaded.CycleSeq, loaded.PriceSequence)
	}
	if loaded.RefPrice == nil || *loaded.RefPrice != refPrice {
		t.Errorf("loaded ref price = %v, want %d", loaded.RefPrice, refPrice)
	}
	if len(loaded.Accounts) != 1 || loaded.Accounts[0].Account != account {
		t.Errorf("loaded accounts = %+v", loaded.Accounts)
	}
}
