package event

import "github.com/google/uuid"

// Outbound settlement event type names. Used as the final token of the
// publish subject, so they stay lowercase and dot-free.
const (
	TypeCollateralChanged  = "collateral_changed"
	TypePositionChanged    = "position_changed"
	TypePositionLiquidated = "position_liquidated"
	TypeCycleSettled       = "cycle_settled"
)

// CollateralChanged reports a signed escrow movement committed by an
// adjust or top-up call.
type CollateralChanged struct {
	Delta int64 `json:"delta"`
}

// PositionChanged reports an account's new raw position after a committed
// adjust call.
type PositionChanged struct {
	Account     uuid.UUID `json:"account"`
	NewPosition int64     `json:"new_position"`
}

// PositionLiquidated reports a position forcibly reduced during the
// liquidation pass. Outcome is "unwind", "collapse", or "shrink".
type PositionLiquidated struct {
	Account     uuid.UUID `json:"account"`
	CycleSeq    uint64    `json:"cycle_seq"`
	OldPosition int64     `json:"old_position"`
	NewPosition int64     `json:"new_position"`
	Margin      uint64    `json:"margin"`
	Outcome     string    `json:"outcome"`
}

// CycleSettled summarizes one completed settlement cycle.
type CycleSettled struct {
	CycleSeq    uint64 `json:"cycle_seq"`
	RefPrice    *int64 `json:"ref_price,omitempty"`
	Accounts    int    `json:"accounts"`
	TotalEscrow uint64 `json:"total_escrow"`
}
