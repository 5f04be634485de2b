package questions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/answerpool/service_layer/internal/app/storage"
	"github.com/answerpool/service_layer/internal/app/system"
	"github.com/answerpool/service_layer/pkg/logger"
)

// SweeperCaller identifies pool distributions triggered by the sweeper in
// logs. Distribution accepts any caller, so the name is informational only.
const SweeperCaller = "pool-sweeper"

// Sweeper polls for expired, undistributed pools and triggers their
// distribution. Distribution stays caller-triggerable at all times; the
// sweeper only saves callers the trouble of polling themselves.
type Sweeper struct {
	store    storage.QuestionStore
	service  *Service
	interval time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

var _ system.Service = (*Sweeper)(nil)

// NewSweeper creates a sweeper polling at the given interval (default 1m).
func NewSweeper(store storage.QuestionStore, service *Service, interval time.Duration, log *logger.Logger) *Sweeper {
	if log == nil {
		log = logger.NewDefault(SweeperCaller)
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		store:    store,
		service:  service,
		interval: interval,
		log:      log,
	}
}

func (p *Sweeper) Name() string { return SweeperCaller }

// Start launches the polling loop.
func (p *Sweeper) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				p.tick(runCtx)
			}
		}
	}()

	p.log.Info("pool sweeper started")
	return nil
}

// Stop terminates the polling loop and waits for it to drain.
func (p *Sweeper) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

func (p *Sweeper) tick(ctx context.Context) {
	qs, err := p.store.ListQuestions(ctx)
	if err != nil {
		p.log.WithError(err).Warn("list questions failed")
		return
	}

	now := p.service.now()
	for _, q := range qs {
		if !q.Active || !q.IsPool() || q.PoolDistributed || q.PoolAmount == 0 {
			continue
		}
		if now.Before(q.PoolEndTime) {
			continue
		}
		if len(q.AnswerIDs) == 0 {
			// Nothing to distribute; the owner may still withdraw.
			continue
		}

		if _, err := p.service.DistributePool(ctx, q.ID, SweeperCaller); err != nil {
			// Lost a race with a manual trigger, or the transfer was
			// rejected; either way the next tick re-evaluates.
			if errors.Is(err, ErrAlreadyDistributed) {
				continue
			}
			p.log.WithError(err).Warnf("distribute pool %d failed", q.ID)
			continue
		}
		p.log.Infof("pool %d distributed by sweeper", q.ID)
	}
}
