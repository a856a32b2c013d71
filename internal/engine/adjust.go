package engine

import (
	"fmt"

	"github.com/google/uuid"

	"SynthSettle/internal/fpmath"
)

// Adjust is the position-entry gate: the only participant-facing mutation.
// deltaPosition and deltaMargin are signed; a positive deltaMargin is a
// deposit, a negative one a withdrawal request. Every call, including pure
// withdrawals and pure closes, passes the initial-margin check against the
// post-call state. The call is atomic: on any error no ledger or escrow
// change is observable.
func (e *Engine) Adjust(caller uuid.UUID, deltaPosition, deltaMargin int64) error {
	newPosition, ok := fpmath.CheckedAdd(e.store.Position(caller), deltaPosition)
	if !ok {
		return ErrOverflow
	}

	// Margin arithmetic runs in the signed domain; a margin balance beyond
	// it cannot be adjusted at all.
	marginSigned, ok := fpmath.Uint64ToInt64(e.store.Margin(caller))
	if !ok {
		return ErrAmountConvertFailed
	}
	newMarginSigned, ok := fpmath.CheckedAdd(marginSigned, deltaMargin)
	if !ok {
		return ErrOverflow
	}
	newMargin, ok := fpmath.Int64ToUint64(newMarginSigned)
	if !ok {
		// Withdrawing below zero is a failed checked subtraction.
		return ErrOverflow
	}

	price, set := e.store.RefPrice()
	if !set {
		return ErrPriceNotSet
	}

	needed := fpmath.RequiredMargin(e.cfg.InitialMarginFraction, price, fpmath.Abs(newPosition))
	if newMargin < needed {
		return ErrNotEnoughIM
	}

	// Escrow movement before commit: a failed transfer aborts the call
	// with the ledger untouched.
	switch {
	case deltaMargin > 0:
		if err := e.bank.Transfer(e.cfg.Currency, caller, e.cfg.PoolAccount, uint64(deltaMargin)); err != nil {
			return fmt.Errorf("deposit to escrow: %w", err)
		}
	case deltaMargin < 0:
		if err := e.bank.Transfer(e.cfg.Currency, e.cfg.PoolAccount, caller, fpmath.Abs(deltaMargin)); err != nil {
			return fmt.Errorf("withdraw from escrow: %w", err)
		}
	}

	e.store.SetPosition(caller, newPosition)
	e.store.SetMargin(caller, newMargin)

	if deltaMargin != 0 {
		e.notifier.CollateralChanged(deltaMargin)
	}
	e.notifier.PositionChanged(caller, newPosition)

	return nil
}

// TopUpCollateral deposits margin without touching the position and
// without an initial-margin check: adding collateral can only improve an
// account's standing.
func (e *Engine) TopUpCollateral(caller uuid.UUID, amount uint64) error {
	if amount == 0 {
		return nil
	}

	newMargin, ok := fpmath.CheckedAddUint64(e.store.Margin(caller), amount)
	if !ok {
		return ErrOverflow
	}
	notifyAmount, ok := fpmath.Uint64ToInt64(amount)
	if !ok {
		return ErrAmountConvertFailed
	}

	if err := e.bank.Transfer(e.cfg.Currency, caller, e.cfg.PoolAccount, amount); err != nil {
		return fmt.Errorf("deposit to escrow: %w", err)
	}

	e.store.SetMargin(caller, newMargin)
	e.notifier.CollateralChanged(notifyAmount)

	return nil
}
