package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"SynthSettle/internal/observability"
)

// AuditWorker drains the audit channel and batch-writes to Postgres. It
// runs independently from the settlement shell; the shell uses
// non-blocking sends for availability, so the worker's job is to keep the
// channel drained rather than to guarantee lossless capture.
type AuditWorker struct {
	writer       *AdjustmentWriter
	inputChan    <-chan AdjustmentRow
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
}

func NewAuditWorker(
	db *sql.DB,
	inputChan <-chan AdjustmentRow,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
) *AuditWorker {
	return &AuditWorker{
		writer:       NewAdjustmentWriter(db),
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
	}
}

// Writer exposes the underlying writer, which doubles as the DB tier of
// request deduplication.
func (aw *AuditWorker) Writer() *AdjustmentWriter {
	return aw.writer
}

// Run starts the worker loop. It batches incoming rows and flushes either
// when the batch is full or the flush timeout expires. Blocks until ctx
// is cancelled or the channel closes.
func (aw *AuditWorker) Run(ctx context.Context) error {
	batch := make([]AdjustmentRow, 0, aw.batchSize)

	timer := time.NewTimer(aw.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				if err := aw.flush(context.Background(), batch); err != nil {
					log.Printf("ERROR: final audit flush failed: %v", err)
				}
			}
			return ctx.Err()

		case row, ok := <-aw.inputChan:
			if !ok {
				if len(batch) > 0 {
					if err := aw.flush(context.Background(), batch); err != nil {
						log.Printf("ERROR: final audit flush failed: %v", err)
					}
				}
				return nil
			}

			batch = append(batch, row)

			if len(batch) >= aw.batchSize {
				if err := aw.flushWithRetry(ctx, batch); err != nil {
					log.Printf("ERROR: audit flush failed after retries: %v", err)
				}
				batch = batch[:0]
				timer.Reset(aw.flushTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				if err := aw.flushWithRetry(ctx, batch); err != nil {
					log.Printf("ERROR: audit timeout flush failed after retries: %v", err)
				}
				batch = batch[:0]
			}
			timer.Reset(aw.flushTimeout)
		}
	}
}

// flushWithRetry attempts to flush with exponential backoff. Retries
// until the write succeeds or the context is cancelled; cancellation
// triggers one final attempt with a background context so a shutdown
// does not lose the batch.
func (aw *AuditWorker) flushWithRetry(ctx context.Context, rows []AdjustmentRow) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			log.Printf("WARN: audit retry attempt %d (backoff=%v, rows=%d)",
				attempt, backoff, len(rows))
			select {
			case <-ctx.Done():
				finalErr := aw.flush(context.Background(), rows)
				if finalErr != nil {
					return fmt.Errorf("final flush on shutdown failed: %w", finalErr)
				}
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := aw.flush(ctx, rows)
		if err == nil {
			if attempt > 0 {
				log.Printf("INFO: audit flush succeeded after %d retries", attempt)
			}
			return nil
		}

		if aw.metrics != nil {
			aw.metrics.PersistRetry.Inc()
		}
	}
}

func (aw *AuditWorker) flush(ctx context.Context, rows []AdjustmentRow) error {
	start := time.Now()

	if err := aw.writer.WriteBatch(ctx, rows); err != nil {
		if aw.metrics != nil {
			aw.metrics.PersistErrors.WithLabelValues("write_adjustments").Inc()
		}
		return err
	}

	if aw.metrics != nil {
		aw.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		aw.metrics.PersistBatchSize.Observe(float64(len(rows)))
		aw.metrics.PersistRowsWritten.Add(float64(len(rows)))
	}

	return nil
}
