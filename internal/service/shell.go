// Package service hosts the settlement engine. The engine itself is
// lock-free and single-threaded; the Shell provides the exclusive-access
// serialization, so HTTP handlers, NATS consumers, and the cycle ticker
// can all call in concurrently.
package service

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"SynthSettle/internal/engine"
	"SynthSettle/internal/event"
	"SynthSettle/internal/fpmath"
	"SynthSettle/internal/ledger"
	"SynthSettle/internal/observability"
	"SynthSettle/internal/oracle"
	"SynthSettle/internal/persistence"
)

// CycleNotifier receives per-cycle settlement results. Implemented by the
// outbound event notifier; nil disables it.
type CycleNotifier interface {
	CycleSettled(summary event.CycleSettled)
	PositionLiquidated(notice event.PositionLiquidated)
}

// Shell serializes access to the engine and fans results out to the
// audit log, metrics, and the outbound event stream.
type Shell struct {
	mu sync.Mutex

	engine   *engine.Engine
	feed     *oracle.Feed
	cycleSeq uint64

	audit    chan<- persistence.AdjustmentRow
	notifier CycleNotifier
	metrics  *observability.Metrics
	log      zerolog.Logger
}

func NewShell(
	eng *engine.Engine,
	feed *oracle.Feed,
	audit chan<- persistence.AdjustmentRow,
	notifier CycleNotifier,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Shell {
	return &Shell{
		engine:   eng,
		feed:     feed,
		audit:    audit,
		notifier: notifier,
		metrics:  metrics,
		log:      log,
	}
}

// Adjust runs a serialized position-entry call and audits the outcome.
func (s *Shell) Adjust(requestID uuid.UUID, account uuid.UUID, deltaPosition, deltaMargin int64) error {
	start := time.Now()

	s.mu.Lock()
	err := s.engine.Adjust(account, deltaPosition, deltaMargin)
	cycleSeq := s.cycleSeq
	s.mu.Unlock()

	outcome := outcomeLabel(err)
	if s.metrics != nil {
		s.metrics.AdjustRequests.WithLabelValues("adjust", outcome).Inc()
		s.metrics.AdjustDuration.Observe(time.Since(start).Seconds())
	}

	s.auditRow(persistence.AdjustmentRow{
		RequestID:     requestID,
		RequestType:   "adjust",
		Account:       account,
		DeltaPosition: deltaPosition,
		DeltaMargin:   deltaMargin,
		Outcome:       outcome,
		CycleSeq:      cycleSeq,
		Timestamp:     time.Now().UTC(),
	})

	if err != nil {
		s.log.Debug().
			Str("account", account.String()).
			Int64("delta_position", deltaPosition).
			Int64("delta_margin", deltaMargin).
			Str("outcome", outcome).
			Msg("adjust rejected")
	}
	return err
}

// TopUpCollateral runs a serialized collateral deposit and audits it.
func (s *Shell) TopUpCollateral(requestID uuid.UUID, account uuid.UUID, amount uint64) error {
	start := time.Now()

	s.mu.Lock()
	err := s.engine.TopUpCollateral(account, amount)
	cycleSeq := s.cycleSeq
	s.mu.Unlock()

	outcome := outcomeLabel(err)
	if s.metrics != nil {
		s.metrics.AdjustRequests.WithLabelValues("topup", outcome).Inc()
		s.metrics.AdjustDuration.Observe(time.Since(start).Seconds())
	}

	deltaMargin, ok := fpmath.Uint64ToInt64(amount)
	if !ok {
		deltaMargin = 0
	}
	s.auditRow(persistence.AdjustmentRow{
		RequestID:   requestID,
		RequestType: "topup",
		Account:     account,
		DeltaMargin: deltaMargin,
		Outcome:     outcome,
		CycleSeq:    cycleSeq,
		Timestamp:   time.Now().UTC(),
	})

	return err
}

// ApplyPrice feeds an oracle observation into the price cache. Stale
// sequences are dropped by the feed; settlement picks the price up on the
// next cycle's revaluation.
func (s *Shell) ApplyPrice(update *event.PriceUpdate) bool {
	accepted := s.feed.Update(update.Price, update.Sequence)
	if accepted && s.metrics != nil {
		s.metrics.ReferencePrice.Set(float64(update.Price))
	}
	return accepted
}

// RunCycle drives one settlement cycle: revalue, liquidate, net, in that
// fixed order, under the lock.
func (s *Shell) RunCycle() {
	s.mu.Lock()

	s.timedPass("revalue", s.engine.Revalue)

	preLiquidate := s.engine.Snapshot()
	s.timedPass("liquidate", s.engine.Liquidate)
	postLiquidate := s.engine.Snapshot()

	s.timedPass("net", s.engine.NetInterest)

	s.cycleSeq++
	seq := s.cycleSeq
	state := s.engine.Snapshot()
	escrow := s.engine.TotalEscrowBalance()

	s.mu.Unlock()

	s.reportLiquidations(seq, preLiquidate, postLiquidate)

	if s.metrics != nil {
		s.metrics.CyclesSettled.Inc()
		s.metrics.CycleSeq.Set(float64(seq))
		s.metrics.ActiveAccounts.Set(float64(len(state.Accounts)))
		s.metrics.EscrowBalance.Set(float64(escrow))

		var residual int64
		var totalMargin uint64
		for _, a := range state.Accounts {
			residual = fpmath.SatAdd(residual, a.Inventory)
			totalMargin = fpmath.SatAddUint64(totalMargin, a.Margin)
		}
		s.metrics.NettingResidual.Set(float64(fpmath.Abs(residual)))
		s.metrics.TotalMargin.Set(float64(totalMargin))
	}

	if s.notifier != nil {
		summary := event.CycleSettled{
			CycleSeq:    seq,
			Accounts:    len(state.Accounts),
			TotalEscrow: escrow,
		}
		if state.RefPriceSet {
			p := state.RefPrice
			summary.RefPrice = &p
		}
		s.notifier.CycleSettled(summary)
	}

	s.log.Debug().Uint64("cycle_seq", seq).Int("accounts", len(state.Accounts)).Msg("cycle settled")
}

// reportLiquidations diffs the snapshots taken around the liquidation
// pass and emits one notice per reduced position. Snapshots share the
// same sorted account order, so the walk is a single parallel scan.
func (s *Shell) reportLiquidations(seq uint64, pre, post *ledger.State) {
	for i := range pre.Accounts {
		before := pre.Accounts[i]
		after := post.Accounts[i]
		if before.Position == after.Position {
			continue
		}

		outcome := "shrink"
		switch {
		case after.Position == 0 && after.Margin == 0:
			outcome = "unwind"
		case after.Position == after.Inventory:
			outcome = "collapse"
		}

		if s.metrics != nil {
			s.metrics.LiquidationActions.WithLabelValues(outcome).Inc()
		}
		if s.notifier != nil {
			s.notifier.PositionLiquidated(event.PositionLiquidated{
				Account:     after.Account,
				CycleSeq:    seq,
				OldPosition: before.Position,
				NewPosition: after.Position,
				Margin:      after.Margin,
				Outcome:     outcome,
			})
		}

		s.log.Info().
			Str("account", after.Account.String()).
			Int64("old_position", before.Position).
			Int64("new_position", after.Position).
			Str("outcome", outcome).
			Msg("position liquidated")
	}
}

func (s *Shell) timedPass(name string, pass func()) {
	start := time.Now()
	pass()
	if s.metrics != nil {
		s.metrics.PassDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
}

// AccountView is the read model served over HTTP.
type AccountView struct {
	Account   uuid.UUID `json:"account"`
	Position  int64     `json:"position"`
	Inventory int64     `json:"inventory"`
	Margin    uint64    `json:"margin"`
}

// Account returns one account's settlement state.
func (s *Shell) Account(id uuid.UUID) AccountView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return AccountView{
		Account:   id,
		Position:  s.engine.PositionOf(id),
		Inventory: s.engine.InventoryOf(id),
		Margin:    s.engine.MarginOf(id),
	}
}

// EscrowBalance returns the pool escrow balance.
func (s *Shell) EscrowBalance() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.TotalEscrowBalance()
}

// RefPrice returns the stored reference price, false if never set.
func (s *Shell) RefPrice() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.RefPrice()
}

// CycleSeq returns the number of completed cycles.
func (s *Shell) CycleSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycleSeq
}

// Snapshot captures the current state for persistence.
func (s *Shell) Snapshot() *persistence.SnapshotData {
	s.mu.Lock()
	state := s.engine.Snapshot()
	seq := s.cycleSeq
	s.mu.Unlock()

	return persistence.FromLedgerState(state, seq, s.feed.Sequence(), time.Now().UTC())
}

// Restore replaces engine state from a loaded snapshot. Called once on
// startup, before any traffic.
func (s *Shell) Restore(snap *persistence.SnapshotData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Restore(snap.ToLedgerState())
	s.cycleSeq = snap.CycleSeq
}

func (s *Shell) auditRow(row persistence.AdjustmentRow) {
	if s.audit == nil {
		return
	}
	select {
	case s.audit <- row:
	default:
		// The audit log is best-effort; settlement availability wins.
		s.log.Warn().Str("request_id", row.RequestID.String()).Msg("audit channel full, dropping row")
	}
}

// outcomeLabel maps the engine error taxonomy to audit/metric labels.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, engine.ErrNotEnoughIM):
		return "not_enough_im"
	case errors.Is(err, engine.ErrPriceNotSet):
		return "price_not_set"
	case errors.Is(err, engine.ErrOverflow):
		return "overflow"
	case errors.Is(err, engine.ErrAmountConvertFailed):
		return "amount_convert_failed"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return "insufficient_balance"
	default:
		return "error"
	}
}
