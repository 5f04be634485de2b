package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/answerpool/service_layer/internal/app/domain/answer"
	"github.com/answerpool/service_layer/internal/app/domain/question"
	"github.com/answerpool/service_layer/internal/app/domain/reputation"
	"github.com/answerpool/service_layer/internal/app/storage"
)

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	store, err := Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	q, err := store.CreateQuestion(ctx, question.Question{
		Owner:        "alice",
		ContentRef:   "ipfs://q",
		BountyAmount: 1_000_000,
		Status:       question.StatusOpen,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create question: %v", err)
	}
	if q.ID == 0 {
		t.Fatal("question id not assigned")
	}

	ans, err := store.CreateAnswer(ctx, answer.Answer{
		QuestionID: q.ID,
		Provider:   "bob",
		ContentRef: "ipfs://a",
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create answer: %v", err)
	}

	q.AnswerIDs = append(q.AnswerIDs, ans.ID)
	if _, err := store.UpdateQuestion(ctx, q); err != nil {
		t.Fatalf("update question: %v", err)
	}

	got, err := store.GetQuestion(ctx, q.ID)
	if err != nil {
		t.Fatalf("get question: %v", err)
	}
	if len(got.AnswerIDs) != 1 || got.AnswerIDs[0] != ans.ID {
		t.Fatalf("answer ids = %v, want [%d]", got.AnswerIDs, ans.ID)
	}

	answered, err := store.HasAnswered(ctx, q.ID, "bob")
	if err != nil {
		t.Fatalf("has answered: %v", err)
	}
	if !answered {
		t.Fatal("expected bob to have answered")
	}

	if _, err := store.GetQuestion(ctx, q.ID+1_000_000); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing question error = %v, want ErrNotFound", err)
	}

	if err := store.PutReputation(ctx, reputation.Record{Identity: "bob", Score: 5, VotesCast: 2}); err != nil {
		t.Fatalf("put reputation: %v", err)
	}
	rec, err := store.GetReputation(ctx, "bob")
	if err != nil {
		t.Fatalf("get reputation: %v", err)
	}
	if rec.Score != 5 || rec.VotesCast != 2 {
		t.Fatalf("record = %+v", rec)
	}

	key := reputation.ContentKey(q.ID, ans.ID, reputation.KindAnswer)
	if err := store.PutVote(ctx, reputation.Vote{ContentKey: key, Voter: "carol", Upvote: true}); err != nil {
		t.Fatalf("put vote: %v", err)
	}
	if err := store.PutTally(ctx, key, reputation.Tally{Upvotes: 1}); err != nil {
		t.Fatalf("put tally: %v", err)
	}
	_, ok, err := store.GetVote(ctx, key, "carol")
	if err != nil || !ok {
		t.Fatalf("get vote: ok=%v err=%v", ok, err)
	}

	if err := store.SetTreasuryBalance(ctx, 20_000); err != nil {
		t.Fatalf("set treasury: %v", err)
	}
	balance, err := store.TreasuryBalance(ctx)
	if err != nil {
		t.Fatalf("treasury balance: %v", err)
	}
	if balance != 20_000 {
		t.Fatalf("balance = %d, want 20000", balance)
	}
}
