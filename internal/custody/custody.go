// Package custody defines the fund-custody boundary of the engine.
//
// The engine never holds value itself. Locked rewards and payouts move
// through an external custody ledger; the engine only checks results and
// fails the whole operation when a transfer is rejected.
package custody

import (
	"context"
	"errors"
)

// ErrTransferRejected wraps every transfer failure reported by a ledger.
// Operations that see it must leave engine state unchanged.
var ErrTransferRejected = errors.New("custody transfer rejected")

// Payment is one leg of a batch payout.
type Payment struct {
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
}

// Ledger moves value between identities and the platform escrow. Amounts are
// unsigned integers in a fixed-point unit with six decimal places.
type Ledger interface {
	// Lock debits the payer into escrow, funding a question's reward.
	Lock(ctx context.Context, payer string, amount uint64) error
	// Pay credits a recipient out of escrow.
	Pay(ctx context.Context, recipient string, amount uint64) error
	// PayAll credits every recipient out of escrow, all-or-nothing. A pool
	// distribution pays several winners and must never leave a partial
	// payout behind, so the atomicity lives with the custodian.
	PayAll(ctx context.Context, payments []Payment) error
	// BalanceOf reports a holder's spendable balance.
	BalanceOf(ctx context.Context, holder string) (uint64, error)
}

// BalanceOracle reports native-unit balances. It backs the minimum-balance
// eligibility gate and nothing else.
type BalanceOracle interface {
	NativeBalance(ctx context.Context, identity string) (uint64, error)
}
