package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"SynthSettle/internal/ledger"
)

// SnapshotManager persists and restores full ledger snapshots. Snapshots
// are taken periodically and on shutdown; on startup the latest one seeds
// the engine so the service resumes where it left off.
type SnapshotManager struct {
	db *sql.DB
}

// SnapshotData is the serializable ledger state at the end of a cycle.
type SnapshotData struct {
	CycleSeq      uint64            `json:"cycle_seq"`
	RefPrice      *int64            `json:"ref_price,omitempty"`
	PriceSequence int64             `json:"price_sequence"`
	Accounts      []AccountSnapshot `json:"accounts"`
	CreatedAt     time.Time         `json:"created_at"`
}

// AccountSnapshot is one account's full settlement state.
type AccountSnapshot struct {
	Account   uuid.UUID `json:"account"`
	Position  int64     `json:"position"`
	Inventory int64     `json:"inventory"`
	Margin    uint64    `json:"margin"`
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// FromLedgerState converts an engine snapshot into the persistable form.
func FromLedgerState(state *ledger.State, cycleSeq uint64, priceSeq int64, createdAt time.Time) *SnapshotData {
	snap := &SnapshotData{
		CycleSeq:      cycleSeq,
		PriceSequence: priceSeq,
		Accounts:      make([]AccountSnapshot, 0, len(state.Accounts)),
		CreatedAt:     createdAt,
	}
	if state.RefPriceSet {
		p := state.RefPrice
		snap.RefPrice = &p
	}
	for _, a := range state.Accounts {
		snap.Accounts = append(snap.Accounts, AccountSnapshot{
			Account:   a.Account,
			Position:  a.Position,
			Inventory: a.Inventory,
			Margin:    a.Margin,
		})
	}
	return snap
}

// ToLedgerState converts a loaded snapshot back into engine form.
func (s *SnapshotData) ToLedgerState() *ledger.State {
	state := &ledger.State{
		Accounts: make([]ledger.AccountState, 0, len(s.Accounts)),
	}
	if s.RefPrice != nil {
		state.RefPrice = *s.RefPrice
		state.RefPriceSet = true
	}
	for _, a := range s.Accounts {
		state.Accounts = append(state.Accounts, ledger.AccountState{
			Account:   a.Account,
			Position:  a.Position,
			Inventory: a.Inventory,
			Margin:    a.Margin,
		})
	}
	return state
}

// SaveSnapshot persists a snapshot to Postgres. Re-saving the same cycle
// overwrites the payload, so shutdown after a periodic save is harmless.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap *SnapshotData) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	snapshotID := uuid.New()
	formatVersion := int32(1) // v1: JSON-encoded SnapshotData

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO settle.snapshots
			(snapshot_id, cycle_seq, data, format_version, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (cycle_seq) DO UPDATE SET data = $3, size_bytes = $5
	`, snapshotID, snap.CycleSeq, data, formatVersion, len(data), snap.CreatedAt)

	return err
}

// LoadLatestSnapshot loads the most recent snapshot, nil on cold start.
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*SnapshotData, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data FROM settle.snapshots
		ORDER BY cycle_seq DESC
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
