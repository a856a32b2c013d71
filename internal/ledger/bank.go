package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"SynthSettle/internal/fpmath"
)

// ErrInsufficientBalance is returned when a transfer source holds less than
// the requested amount. On withdrawals this can legitimately fire against
// the pool escrow account: other accounts' unrealized losses may not yet
// have been liquidated into escrow, so withdrawals race first-come
// first-served on the shortfall. Accepted behavior, covered by tests.
var ErrInsufficientBalance = errors.New("insufficient balance")

// TransferLedger moves settlement currency between accounts. It backs the
// pool escrow: deposits flow caller -> pool, withdrawals pool -> caller.
// Failures abort the enclosing position-entry call.
type TransferLedger interface {
	Transfer(currency string, from, to uuid.UUID, amount uint64) error
	BalanceOf(currency string, account uuid.UUID) uint64
}

// MemoryBank is the in-process TransferLedger used by the service shell
// and by tests.
type MemoryBank struct {
	balances map[string]map[uuid.UUID]uint64
}

func NewMemoryBank() *MemoryBank {
	return &MemoryBank{
		balances: make(map[string]map[uuid.UUID]uint64),
	}
}

// Deposit credits an account directly, bypassing transfer checks.
// Used to seed caller balances (native-currency issuance is external).
func (b *MemoryBank) Deposit(currency string, account uuid.UUID, amount uint64) {
	book := b.book(currency)
	book[account] = fpmath.SatAddUint64(book[account], amount)
}

func (b *MemoryBank) Transfer(currency string, from, to uuid.UUID, amount uint64) error {
	if amount == 0 {
		return nil
	}

	book := b.book(currency)
	if book[from] < amount {
		return fmt.Errorf("transfer %d %s from %s: %w", amount, currency, from, ErrInsufficientBalance)
	}

	book[from] -= amount
	book[to] = fpmath.SatAddUint64(book[to], amount)
	return nil
}

func (b *MemoryBank) BalanceOf(currency string, account uuid.UUID) uint64 {
	return b.book(currency)[account]
}

func (b *MemoryBank) book(currency string) map[uuid.UUID]uint64 {
	book, ok := b.balances[currency]
	if !ok {
		book = make(map[uuid.UUID]uint64)
		b.balances[currency] = book
	}
	return book
}
