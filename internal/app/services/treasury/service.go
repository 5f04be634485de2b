// Package treasury accrues platform fees and pays them out to the platform
// owner.
package treasury

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/answerpool/service_layer/internal/app/metrics"
	"github.com/answerpool/service_layer/internal/app/storage"
	"github.com/answerpool/service_layer/internal/custody"
	"github.com/answerpool/service_layer/pkg/logger"
)

// ErrNotAuthorized is returned when anyone but the platform owner attempts a
// treasury withdrawal.
var ErrNotAuthorized = errors.New("caller is not the platform owner")

// Service manages the running platform-fee balance.
type Service struct {
	store  storage.TreasuryStore
	ledger custody.Ledger
	owner  string
	log    *logger.Logger

	mu sync.Mutex
}

// New constructs a treasury service. The owner identity is the only caller
// allowed to withdraw.
func New(store storage.TreasuryStore, ledger custody.Ledger, owner string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("treasury")
	}
	return &Service{
		store:  store,
		ledger: ledger,
		owner:  owner,
		log:    log,
	}
}

// Accrue adds a fee to the running balance. Called by the registries on
// every monetary exit path; never exposed to external callers.
func (s *Service) Accrue(ctx context.Context, amount uint64) error {
	if amount == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	balance, err := s.store.TreasuryBalance(ctx)
	if err != nil {
		return err
	}
	if err := s.store.SetTreasuryBalance(ctx, balance+amount); err != nil {
		return err
	}
	metrics.RecordFeeAccrued(amount)
	return nil
}

// Reverse removes a previously accrued fee during an operation rollback.
func (s *Service) Reverse(ctx context.Context, amount uint64) error {
	if amount == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	balance, err := s.store.TreasuryBalance(ctx)
	if err != nil {
		return err
	}
	if balance < amount {
		return fmt.Errorf("treasury balance %d cannot reverse %d", balance, amount)
	}
	return s.store.SetTreasuryBalance(ctx, balance-amount)
}

// Balance reports the accrued fee balance.
func (s *Service) Balance(ctx context.Context) (uint64, error) {
	return s.store.TreasuryBalance(ctx)
}

// Withdraw transfers the entire balance to the platform owner and zeroes it.
// The zeroed balance is committed before the transfer is attempted; a
// rejected transfer restores it.
func (s *Service) Withdraw(ctx context.Context, caller string) (uint64, error) {
	if caller != s.owner {
		return 0, fmt.Errorf("%w: %s", ErrNotAuthorized, caller)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	balance, err := s.store.TreasuryBalance(ctx)
	if err != nil {
		return 0, err
	}
	if balance == 0 {
		return 0, nil
	}

	if err := s.store.SetTreasuryBalance(ctx, 0); err != nil {
		return 0, err
	}
	if err := s.ledger.Pay(ctx, s.owner, balance); err != nil {
		if restoreErr := s.store.SetTreasuryBalance(ctx, balance); restoreErr != nil {
			s.log.WithError(restoreErr).Error("restore treasury balance after rejected payout")
		}
		return 0, err
	}

	s.log.WithField("amount", balance).Info("treasury withdrawn")
	return balance, nil
}
