// Package projection maintains queryable read models derived from
// settlement events. History tables are eventually consistent: a dropped
// summary leaves a gap in the table, never in the ledger itself.
package projection

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"SynthSettle/internal/event"
)

// CycleRecord is one settled cycle as stored in settle.cycle_history.
type CycleRecord struct {
	CycleSeq    uint64    `json:"cycle_seq"`
	RefPrice    *int64    `json:"ref_price,omitempty"`
	Accounts    int       `json:"accounts"`
	TotalEscrow uint64    `json:"total_escrow"`
	CreatedAt   time.Time `json:"created_at"`
}

// CycleHistory persists per-cycle settlement summaries and serves
// recent-cycle queries for the HTTP API.
type CycleHistory struct {
	db        *sql.DB
	inputChan <-chan event.CycleSettled
}

func NewCycleHistory(db *sql.DB, inputChan <-chan event.CycleSettled) *CycleHistory {
	return &CycleHistory{
		db:        db,
		inputChan: inputChan,
	}
}

// Run consumes cycle summaries until the context is cancelled or the
// input channel closes. Insert failures are logged and skipped.
func (ch *CycleHistory) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case summary, ok := <-ch.inputChan:
			if !ok {
				return nil
			}

			if err := ch.insert(ctx, summary); err != nil {
				log.Printf("WARN: cycle history insert failed at cycle=%d: %v", summary.CycleSeq, err)
			}
		}
	}
}

func (ch *CycleHistory) insert(ctx context.Context, summary event.CycleSettled) error {
	opCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	_, err := ch.db.ExecContext(opCtx, `
		INSERT INTO settle.cycle_history (cycle_seq, ref_price, accounts, total_escrow, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (cycle_seq) DO NOTHING
	`, int64(summary.CycleSeq), summary.RefPrice, summary.Accounts, int64(summary.TotalEscrow))
	if err != nil {
		return fmt.Errorf("insert cycle %d: %w", summary.CycleSeq, err)
	}
	return nil
}

// RecentCycles returns up to limit settled cycles, newest first.
func (ch *CycleHistory) RecentCycles(ctx context.Context, limit int) ([]CycleRecord, error) {
	rows, err := ch.db.QueryContext(ctx, `
		SELECT cycle_seq, ref_price, accounts, total_escrow, created_at
		FROM settle.cycle_history
		ORDER BY cycle_seq DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query cycle history: %w", err)
	}
	defer rows.Close()

	var records []CycleRecord
	for rows.Next() {
		var (
			rec      CycleRecord
			seq      int64
			refPrice sql.NullInt64
			escrow   int64
		)
		if err := rows.Scan(&seq, &refPrice, &rec.Accounts, &escrow, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cycle row: %w", err)
		}
		rec.CycleSeq = uint64(seq)
		rec.TotalEscrow = uint64(escrow)
		if refPrice.Valid {
			p := refPrice.Int64
			rec.RefPrice = &p
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
