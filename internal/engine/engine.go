package engine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"SynthSettle/internal/fpmath"
	"SynthSettle/internal/ledger"
)

// Settlement errors returned by the single-caller operations. The cycle
// passes (Revalue, Liquidate, NetInterest) never return errors: they use
// total, saturating arithmetic so one pathological account cannot block
// settlement for everyone else.
var (
	// ErrOverflow: a checked arithmetic step would leave the representable range.
	ErrOverflow = errors.New("arithmetic overflow")

	// ErrAmountConvertFailed: a magnitude does not fit the signed domain.
	ErrAmountConvertFailed = errors.New("amount conversion failed")

	// ErrNotEnoughIM: post-call collateral below the required initial margin.
	ErrNotEnoughIM = errors.New("not enough initial margin")

	// ErrPriceNotSet: the reference price has never been established.
	ErrPriceNotSet = errors.New("reference price not set")
)

// Oracle supplies the external reference price. Price reports false when
// no price is currently available; the mark-to-market pass queries it
// exactly once per cycle.
type Oracle interface {
	Price() (int64, bool)
}

// Notifier receives fire-and-forget settlement notifications. Delivery
// semantics are owned by the host; implementations must not block.
type Notifier interface {
	CollateralChanged(delta int64)
	PositionChanged(account uuid.UUID, newPosition int64)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) CollateralChanged(int64) {}

func (NopNotifier) PositionChanged(uuid.UUID, int64) {}

// Config holds the engine's fixed parameters. Fractions are
// FractionScale-based (1_000_000 == 1.0) and must satisfy
// 0 < LiquidationMarginFraction <= InitialMarginFraction <= 1.0, so that
// liquidation triggers no later than initial-margin insufficiency.
type Config struct {
	InitialMarginFraction     int64
	LiquidationMarginFraction int64

	// Currency is the settlement currency symbol on the transfer ledger.
	Currency string

	// PoolAccount is the module-owned escrow account backing all margins.
	PoolAccount uuid.UUID
}

func (c Config) Validate() error {
	if c.InitialMarginFraction <= 0 || c.InitialMarginFraction > fpmath.FractionScale {
		return fmt.Errorf("initial margin fraction %d out of (0, %d]", c.InitialMarginFraction, fpmath.FractionScale)
	}
	if c.LiquidationMarginFraction <= 0 || c.LiquidationMarginFraction > c.InitialMarginFraction {
		return fmt.Errorf("liquidation margin fraction %d out of (0, %d]", c.LiquidationMarginFraction, c.InitialMarginFraction)
	}
	if c.Currency == "" {
		return errors.New("settlement currency not set")
	}
	if c.PoolAccount == uuid.Nil {
		return errors.New("pool account not set")
	}
	return nil
}

// Engine is the single-threaded settlement core for one priced synthetic:
// mark-to-market revaluation, tiered liquidation, proportional netting,
// and the margin-gated position entry. It performs no locking and no
// wall-clock reads; the surrounding shell serializes access, which is what
// lets the engine act as a replicated state-transition function.
type Engine struct {
	cfg      Config
	store    *ledger.Store
	oracle   Oracle
	bank     ledger.TransferLedger
	notifier Notifier
}

func New(cfg Config, store *ledger.Store, oracle Oracle, bank ledger.TransferLedger, notifier Notifier) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Engine{
		cfg:      cfg,
		store:    store,
		oracle:   oracle,
		bank:     bank,
		notifier: notifier,
	}, nil
}

// RunCycle executes one settlement cycle: mark-to-market, then
// liquidation, then netting, in that fixed order, exactly once.
func (e *Engine) RunCycle() {
	e.Revalue()
	e.Liquidate()
	e.NetInterest()
}

// === Read-only queries exposed to collaborators ===

func (e *Engine) MarginOf(account uuid.UUID) uint64 {
	return e.store.Margin(account)
}

func (e *Engine) PositionOf(account uuid.UUID) int64 {
	return e.store.Position(account)
}

func (e *Engine) InventoryOf(account uuid.UUID) int64 {
	return e.store.Inventory(account)
}

// TotalEscrowBalance reports the transfer-ledger balance of the pool
// escrow account. Up to rounding it equals the sum of all posted margins.
func (e *Engine) TotalEscrowBalance() uint64 {
	return e.bank.BalanceOf(e.cfg.Currency, e.cfg.PoolAccount)
}

// RefPrice returns the stored reference price, false if never set.
func (e *Engine) RefPrice() (int64, bool) {
	return e.store.RefPrice()
}

// Snapshot captures the full ledger state with deterministic ordering.
func (e *Engine) Snapshot() *ledger.State {
	return e.store.Snapshot()
}

// Restore replaces the ledger state with a previously captured snapshot.
func (e *Engine) Restore(state *ledger.State) {
	e.store.Restore(state)
}
