package app

import (
	"context"
	"fmt"
	"time"

	answerssvc "github.com/answerpool/service_layer/internal/app/services/answers"
	questionssvc "github.com/answerpool/service_layer/internal/app/services/questions"
	reputationsvc "github.com/answerpool/service_layer/internal/app/services/reputation"
	treasurysvc "github.com/answerpool/service_layer/internal/app/services/treasury"
	"github.com/answerpool/service_layer/internal/app/storage"
	"github.com/answerpool/service_layer/internal/app/storage/memory"
	"github.com/answerpool/service_layer/internal/app/system"
	"github.com/answerpool/service_layer/internal/custody"
	"github.com/answerpool/service_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Questions  storage.QuestionStore
	Answers    storage.AnswerStore
	Reputation storage.ReputationStore
	Treasury   storage.TreasuryStore
}

// Dependencies holds the external collaborators and platform settings.
type Dependencies struct {
	// Ledger is the fund-custody ledger. Nil defaults to an in-memory bank
	// suitable only for tests and local development.
	Ledger custody.Ledger
	// Oracle is the eligibility balance oracle. Nil defaults to the same
	// in-memory bank as Ledger when that default is in effect.
	Oracle custody.BalanceOracle
	// PlatformOwner is the only identity allowed to withdraw the treasury.
	PlatformOwner string
	// SweepInterval enables the pool-expiry sweeper when positive.
	SweepInterval time.Duration
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Reputation *reputationsvc.Service
	Answers    *answerssvc.Service
	Questions  *questionssvc.Service
	Treasury   *treasurysvc.Service
}

// New builds a fully initialised application with the provided stores and
// collaborators.
func New(stores Stores, deps Dependencies, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Questions == nil {
		stores.Questions = mem
	}
	if stores.Answers == nil {
		stores.Answers = mem
	}
	if stores.Reputation == nil {
		stores.Reputation = mem
	}
	if stores.Treasury == nil {
		stores.Treasury = mem
	}

	if deps.Ledger == nil {
		log.Warn("no custody ledger configured; using in-memory bank")
		bank := custody.NewBank()
		deps.Ledger = bank
		if deps.Oracle == nil {
			deps.Oracle = bank
		}
	}
	if deps.Oracle == nil {
		return nil, fmt.Errorf("balance oracle is required")
	}
	if deps.PlatformOwner == "" {
		return nil, fmt.Errorf("platform owner is required")
	}

	manager := system.NewManager()

	repService := reputationsvc.New(stores.Reputation, deps.Oracle, log)
	treasuryService := treasurysvc.New(stores.Treasury, deps.Ledger, deps.PlatformOwner, log)
	answerService := answerssvc.New(stores.Questions, stores.Answers, repService, log)
	questionService := questionssvc.New(stores.Questions, stores.Answers, repService, treasuryService, deps.Ledger, log)

	for _, name := range []string{"reputation", "answers", "questions", "treasury"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	if deps.SweepInterval > 0 {
		sweeper := questionssvc.NewSweeper(stores.Questions, questionService, deps.SweepInterval, log)
		if err := manager.Register(sweeper); err != nil {
			return nil, fmt.Errorf("register %s: %w", sweeper.Name(), err)
		}
	}

	return &Application{
		manager:    manager,
		log:        log,
		Reputation: repService,
		Answers:    answerService,
		Questions:  questionService,
		Treasury:   treasuryService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
