package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AdjustmentWriter writes the participant-request audit log using
// multi-row INSERTs. Every adjust and top-up call lands here, rejected
// ones included: a rejection is an auditable decision too.
type AdjustmentWriter struct {
	db *sql.DB
}

// AdjustmentRow is a row in settle.adjustments.
type AdjustmentRow struct {
	RequestID     uuid.UUID
	RequestType   string // "adjust" or "topup"
	Account       uuid.UUID
	DeltaPosition int64
	DeltaMargin   int64
	Outcome       string // "ok" or the rejection reason
	CycleSeq      uint64
	Timestamp     time.Time
}

func NewAdjustmentWriter(db *sql.DB) *AdjustmentWriter {
	return &AdjustmentWriter{db: db}
}

// WriteBatch writes a batch of audit rows in one statement. The conflict
// clause on request_id makes replays after redelivery idempotent.
func (w *AdjustmentWriter) WriteBatch(ctx context.Context, rows []AdjustmentRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO settle.adjustments
		(request_id, request_type, account, delta_position, delta_margin, outcome, cycle_seq, created_at)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*8)

	for i, r := range rows {
		base := i * 8
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
		))
		args = append(args,
			r.RequestID, r.RequestType, r.Account, r.DeltaPosition,
			r.DeltaMargin, r.Outcome, r.CycleSeq, r.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (request_id) DO NOTHING"

	_, err := w.db.ExecContext(ctx, query, args...)
	return err
}

// IsDuplicate reports whether a request already landed in the audit log.
// Implements the cold tier of the request deduper.
func (w *AdjustmentWriter) IsDuplicate(requestType string, requestID string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	var exists int
	err := w.db.QueryRowContext(ctx, `
		SELECT 1
		FROM settle.adjustments
		WHERE request_type = $1 AND request_id = $2
		LIMIT 1
	`, requestType, requestID).Scan(&exists)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
