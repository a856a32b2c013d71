package ledger

import (
	"sort"

	"github.com/google/uuid"

	"SynthSettle/internal/fpmath"
)

// Store holds the account-keyed settlement ledgers: raw position intent,
// matched inventory, posted margin, and the single reference price.
// Accounts are created implicitly on first mutation and never destroyed,
// only driven back to zero. The store is exclusively owned by the engine;
// collaborators see derived views only.
type Store struct {
	positions   map[uuid.UUID]int64
	inventories map[uuid.UUID]int64
	margins     map[uuid.UUID]uint64

	refPrice    int64
	refPriceSet bool
}

func NewStore() *Store {
	return &Store{
		positions:   make(map[uuid.UUID]int64),
		inventories: make(map[uuid.UUID]int64),
		margins:     make(map[uuid.UUID]uint64),
	}
}

// === Position ledger ===

func (s *Store) Position(account uuid.UUID) int64 {
	return s.positions[account]
}

func (s *Store) SetPosition(account uuid.UUID, position int64) {
	s.positions[account] = position
}

// === Inventory ledger ===

func (s *Store) Inventory(account uuid.UUID) int64 {
	return s.inventories[account]
}

func (s *Store) SetInventory(account uuid.UUID, inventory int64) {
	s.inventories[account] = inventory
}

// ClearInventories zeroes every inventory entry. The netting pass fully
// recomputes inventory each cycle instead of updating it incrementally.
func (s *Store) ClearInventories() {
	for account := range s.inventories {
		s.inventories[account] = 0
	}
}

// === Margin ledger ===

func (s *Store) Margin(account uuid.UUID) uint64 {
	return s.margins[account]
}

func (s *Store) SetMargin(account uuid.UUID, margin uint64) {
	s.margins[account] = margin
}

// MarginAccounts returns the accounts present in the margin ledger in map
// order. The engine passes must be order-independent, so no sorting here.
func (s *Store) MarginAccounts() []uuid.UUID {
	accounts := make([]uuid.UUID, 0, len(s.margins))
	for account := range s.margins {
		accounts = append(accounts, account)
	}
	return accounts
}

// PositionAccounts returns the accounts present in the position ledger in
// map order.
func (s *Store) PositionAccounts() []uuid.UUID {
	accounts := make([]uuid.UUID, 0, len(s.positions))
	for account := range s.positions {
		accounts = append(accounts, account)
	}
	return accounts
}

// TotalMargin sums all posted margins, saturating at MaxUint64.
// Up to rounding this equals the pool escrow balance.
func (s *Store) TotalMargin() uint64 {
	var total uint64
	for _, margin := range s.margins {
		total = fpmath.SatAddUint64(total, margin)
	}
	return total
}

// === Reference price ===

// RefPrice returns the stored reference price and whether it has ever been
// set. Margin checks that need the price fail until the first oracle read.
func (s *Store) RefPrice() (int64, bool) {
	return s.refPrice, s.refPriceSet
}

func (s *Store) SetRefPrice(price int64) {
	s.refPrice = price
	s.refPriceSet = true
}

// === Snapshot / restore ===

// AccountState is one account's full ledger row.
type AccountState struct {
	Account   uuid.UUID
	Position  int64
	Inventory int64
	Margin    uint64
}

// State is a deterministic copy of the whole store, accounts sorted by ID.
type State struct {
	Accounts    []AccountState
	RefPrice    int64
	RefPriceSet bool
}

// Snapshot captures the full ledger state with deterministic ordering.
func (s *Store) Snapshot() *State {
	seen := make(map[uuid.UUID]bool, len(s.margins))
	for account := range s.margins {
		seen[account] = true
	}
	for account := range s.positions {
		seen[account] = true
	}
	for account := range s.inventories {
		seen[account] = true
	}

	accounts := make([]uuid.UUID, 0, len(seen))
	for account := range seen {
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].String() < accounts[j].String()
	})

	state := &State{
		Accounts:    make([]AccountState, 0, len(accounts)),
		RefPrice:    s.refPrice,
		RefPriceSet: s.refPriceSet,
	}
	for _, account := range accounts {
		state.Accounts = append(state.Accounts, AccountState{
			Account:   account,
			Position:  s.positions[account],
			Inventory: s.inventories[account],
			Margin:    s.margins[account],
		})
	}
	return state
}

// Restore replaces the store's contents with a previously captured state.
func (s *Store) Restore(state *State) {
	s.positions = make(map[uuid.UUID]int64, len(state.Accounts))
	s.inventories = make(map[uuid.UUID]int64, len(state.Accounts))
	s.margins = make(map[uuid.UUID]uint64, len(state.Accounts))

	for _, a := range state.Accounts {
		s.positions[a.Account] = a.Position
		s.inventories[a.Account] = a.Inventory
		s.margins[a.Account] = a.Margin
	}

	s.refPrice = state.RefPrice
	s.refPriceSet = state.RefPriceSet
}
