package answers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/answerpool/service_layer/internal/app/domain/question"
	repdomain "github.com/answerpool/service_layer/internal/app/domain/reputation"
	reputationsvc "github.com/answerpool/service_layer/internal/app/services/reputation"
	"github.com/answerpool/service_layer/internal/app/storage"
	"github.com/answerpool/service_layer/internal/app/storage/memory"
	"github.com/answerpool/service_layer/internal/custody"
	"github.com/answerpool/service_layer/pkg/logger"
)

func newService(t *testing.T) (*Service, *memory.Store, *custody.Bank) {
	t.Helper()
	bank := custody.NewBank()
	bank.Deposit("bob", 10_000_000)
	bank.Deposit("carol", 10_000_000)

	store := memory.New()
	log := logger.NewDefault("answers-test")
	rep := reputationsvc.New(store, bank, log)
	return New(store, store, rep, log), store, bank
}

func seedQuestion(t *testing.T, store *memory.Store, q question.Question) question.Question {
	t.Helper()
	created, err := store.CreateQuestion(context.Background(), q)
	if err != nil {
		t.Fatalf("seed question: %v", err)
	}
	return created
}

func TestSubmitAppendsToQuestion(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()

	q := seedQuestion(t, store, question.Question{
		Owner:        "alice",
		BountyAmount: 1_000_000,
		Status:       question.StatusOpen,
		Active:       true,
	})

	ans, err := svc.Submit(ctx, q.ID, "ipfs://a", "bob")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if ans.ID != 1 || ans.QuestionID != q.ID || ans.Provider != "bob" {
		t.Fatalf("answer = %+v", ans)
	}

	got, _ := store.GetQuestion(ctx, q.ID)
	if len(got.AnswerIDs) != 1 || got.AnswerIDs[0] != ans.ID {
		t.Fatalf("answer ids = %v", got.AnswerIDs)
	}

	list, err := svc.ListByQuestion(ctx, q.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("answers = %d, want 1", len(list))
	}
}

func TestSubmitOncePerProvider(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()

	q := seedQuestion(t, store, question.Question{
		Owner: "alice", BountyAmount: 1_000_000,
		Status: question.StatusOpen, Active: true,
	})

	if _, err := svc.Submit(ctx, q.ID, "a1", "bob"); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := svc.Submit(ctx, q.ID, "a2", "bob"); !errors.Is(err, ErrAlreadyAnswered) {
		t.Fatalf("err = %v, want ErrAlreadyAnswered", err)
	}
	// A different provider still may answer.
	if _, err := svc.Submit(ctx, q.ID, "a2", "carol"); err != nil {
		t.Fatalf("second provider: %v", err)
	}
}

func TestSubmitRejectsInactiveQuestion(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()

	q := seedQuestion(t, store, question.Question{
		Owner: "alice", Status: question.StatusBestSelected, Active: false,
	})

	if _, err := svc.Submit(ctx, q.ID, "a", "bob"); !errors.Is(err, ErrQuestionClosed) {
		t.Fatalf("err = %v, want ErrQuestionClosed", err)
	}
}

func TestSubmitRejectsExpiredPool(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()

	q := seedQuestion(t, store, question.Question{
		Owner:       "alice",
		PoolAmount:  1_000_000,
		PoolEndTime: time.Now().Add(time.Hour),
		Status:      question.StatusOpen,
		Active:      true,
	})

	if _, err := svc.Submit(ctx, q.ID, "a", "bob"); err != nil {
		t.Fatalf("submit before deadline: %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := svc.Submit(ctx, q.ID, "a", "carol"); !errors.Is(err, ErrQuestionClosed) {
		t.Fatalf("err = %v, want ErrQuestionClosed", err)
	}
}

func TestSubmitRequiresEligibility(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()

	q := seedQuestion(t, store, question.Question{
		Owner: "alice", BountyAmount: 1_000_000,
		Status: question.StatusOpen, Active: true,
	})

	if _, err := svc.Submit(ctx, q.ID, "a", "broke"); !errors.Is(err, reputationsvc.ErrNotEligible) {
		t.Fatalf("err = %v, want ErrNotEligible", err)
	}
}

func TestSubmitGrantsAnsweringReputation(t *testing.T) {
	svc, store, bank := newService(t)
	ctx := context.Background()

	q := seedQuestion(t, store, question.Question{
		Owner: "alice", BountyAmount: 1_000_000,
		Status: question.StatusOpen, Active: true,
	})
	if _, err := svc.Submit(ctx, q.ID, "a", "bob"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	rep := reputationsvc.New(store, bank, nil)
	rec, _ := rep.Reputation(ctx, "bob")
	if rec.Score != uint64(repdomain.DeltaAnswerSubmitted) {
		t.Fatalf("score = %d, want %d", rec.Score, repdomain.DeltaAnswerSubmitted)
	}
}

func TestGetUnknownAnswer(t *testing.T) {
	svc, _, _ := newService(t)

	if _, err := svc.Get(context.Background(), 42); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
