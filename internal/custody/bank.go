package custody

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Transaction types recorded in the bank journal.
const (
	TxTypeDeposit = "deposit"
	TxTypeLock    = "lock"
	TxTypePayout  = "payout"
)

// Transaction is one journal entry of the in-memory bank.
type Transaction struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Holder       string    `json:"holder"`
	Amount       uint64    `json:"amount"`
	BalanceAfter uint64    `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}

// Bank is an in-memory custody ledger for tests and local development. It is
// safe for concurrent use and keeps a journal of every movement.
type Bank struct {
	mu       sync.Mutex
	balances map[string]uint64
	escrow   uint64
	journal  []Transaction
}

var _ Ledger = (*Bank)(nil)
var _ BalanceOracle = (*Bank)(nil)

// NewBank creates an empty bank.
func NewBank() *Bank {
	return &Bank{balances: make(map[string]uint64)}
}

// Deposit credits a holder. Test and development seeding only; a real
// deployment credits balances through the external custody node.
func (b *Bank) Deposit(holder string, amount uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[holder] += amount
	b.record(TxTypeDeposit, holder, amount, b.balances[holder])
}

// Lock debits the payer into escrow.
func (b *Bank) Lock(_ context.Context, payer string, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	balance := b.balances[payer]
	if balance < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrTransferRejected, payer, balance, amount)
	}
	b.balances[payer] = balance - amount
	b.escrow += amount
	b.record(TxTypeLock, payer, amount, b.balances[payer])
	return nil
}

// Pay credits a recipient out of escrow.
func (b *Bank) Pay(_ context.Context, recipient string, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.escrow < amount {
		return fmt.Errorf("%w: escrow holds %d, needs %d", ErrTransferRejected, b.escrow, amount)
	}
	b.escrow -= amount
	b.balances[recipient] += amount
	b.record(TxTypePayout, recipient, amount, b.balances[recipient])
	return nil
}

// PayAll credits every recipient out of escrow, or none of them.
func (b *Bank) PayAll(_ context.Context, payments []Payment) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var total uint64
	for _, p := range payments {
		total += p.Amount
	}
	if b.escrow < total {
		return fmt.Errorf("%w: escrow holds %d, needs %d", ErrTransferRejected, b.escrow, total)
	}
	for _, p := range payments {
		b.escrow -= p.Amount
		b.balances[p.Recipient] += p.Amount
		b.record(TxTypePayout, p.Recipient, p.Amount, b.balances[p.Recipient])
	}
	return nil
}

// BalanceOf reports a holder's spendable balance.
func (b *Bank) BalanceOf(_ context.Context, holder string) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[holder], nil
}

// NativeBalance implements BalanceOracle against the same balances.
func (b *Bank) NativeBalance(ctx context.Context, identity string) (uint64, error) {
	return b.BalanceOf(ctx, identity)
}

// Escrow reports the total value currently locked.
func (b *Bank) Escrow() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.escrow
}

// Journal returns a copy of all recorded transactions.
func (b *Bank) Journal() []Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Transaction, len(b.journal))
	copy(out, b.journal)
	return out
}

func (b *Bank) record(txType, holder string, amount, after uint64) {
	b.journal = append(b.journal, Transaction{
		ID:           uuid.NewString(),
		Type:         txType,
		Holder:       holder,
		Amount:       amount,
		BalanceAfter: after,
		CreatedAt:    time.Now().UTC(),
	})
}
