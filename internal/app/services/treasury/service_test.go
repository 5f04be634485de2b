package treasury

import (
	"context"
	"errors"
	"testing"

	"github.com/answerpool/service_layer/internal/app/storage/memory"
	"github.com/answerpool/service_layer/internal/custody"
	"github.com/answerpool/service_layer/pkg/logger"
)

func newService(t *testing.T) (*Service, *custody.Bank) {
	t.Helper()
	bank := custody.NewBank()
	bank.Deposit("someone", 1_000_000)
	// Fees live in escrow until withdrawn; seed the escrow by locking.
	if err := bank.Lock(context.Background(), "someone", 1_000_000); err != nil {
		t.Fatalf("seed escrow: %v", err)
	}
	return New(memory.New(), bank, "platform", logger.NewDefault("treasury-test")), bank
}

func TestAccrueAndBalance(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if err := svc.Accrue(ctx, 20_000); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if err := svc.Accrue(ctx, 5_000); err != nil {
		t.Fatalf("accrue: %v", err)
	}

	balance, err := svc.Balance(ctx)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 25_000 {
		t.Fatalf("balance = %d, want 25000", balance)
	}
}

func TestReverse(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	svc.Accrue(ctx, 20_000)
	if err := svc.Reverse(ctx, 20_000); err != nil {
		t.Fatalf("reverse: %v", err)
	}
	balance, _ := svc.Balance(ctx)
	if balance != 0 {
		t.Fatalf("balance = %d, want 0", balance)
	}

	if err := svc.Reverse(ctx, 1); err == nil {
		t.Fatal("expected error reversing more than the balance")
	}
}

func TestWithdrawOwnerOnly(t *testing.T) {
	svc, bank := newService(t)
	ctx := context.Background()

	svc.Accrue(ctx, 20_000)

	if _, err := svc.Withdraw(ctx, "someone"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("err = %v, want ErrNotAuthorized", err)
	}

	amount, err := svc.Withdraw(ctx, "platform")
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if amount != 20_000 {
		t.Fatalf("withdrawn = %d, want 20000", amount)
	}

	balance, _ := svc.Balance(ctx)
	if balance != 0 {
		t.Fatalf("balance after withdraw = %d, want 0", balance)
	}
	owner, _ := bank.BalanceOf(ctx, "platform")
	if owner != 20_000 {
		t.Fatalf("owner balance = %d, want 20000", owner)
	}

	// A drained treasury withdraws zero without error.
	amount, err = svc.Withdraw(ctx, "platform")
	if err != nil || amount != 0 {
		t.Fatalf("empty withdraw = %d, %v", amount, err)
	}
}

// failLedger rejects every payout.
type failLedger struct{ custody.Ledger }

func (failLedger) Pay(context.Context, string, uint64) error {
	return custody.ErrTransferRejected
}

func TestWithdrawRestoresBalanceOnRejectedTransfer(t *testing.T) {
	store := memory.New()
	svc := New(store, failLedger{}, "platform", logger.NewDefault("treasury-test"))
	ctx := context.Background()

	svc.Accrue(ctx, 20_000)

	if _, err := svc.Withdraw(ctx, "platform"); !errors.Is(err, custody.ErrTransferRejected) {
		t.Fatalf("err = %v, want ErrTransferRejected", err)
	}

	balance, _ := svc.Balance(ctx)
	if balance != 20_000 {
		t.Fatalf("balance after rollback = %d, want 20000", balance)
	}
}
