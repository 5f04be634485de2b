package questions

import (
	"context"
	"testing"
	"time"

	repdomain "github.com/answerpool/service_layer/internal/app/domain/reputation"
)

func TestSweeperDistributesExpiredPools(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.questions.Create(ctx, "p", 1_000_000, 48*time.Hour, true, "alice")
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	a1, _ := f.answers.Submit(ctx, q.ID, "a1", "bob")
	if _, err := f.rep.CastVote(ctx, q.ID, a1.ID, repdomain.KindAnswer, true, "bob", "v1"); err != nil {
		t.Fatalf("vote: %v", err)
	}

	f.questions.now = func() time.Time { return time.Now().Add(49 * time.Hour) }

	sweeper := NewSweeper(f.store, f.questions, 5*time.Millisecond, nil)
	if err := sweeper.Start(ctx); err != nil {
		t.Fatalf("start sweeper: %v", err)
	}
	defer sweeper.Stop(ctx)

	deadline := time.After(2 * time.Second)
	for {
		got, err := f.questions.Get(ctx, q.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.PoolDistributed {
			break
		}
		select {
		case <-deadline:
			t.Fatal("sweeper did not distribute the expired pool")
		case <-time.After(10 * time.Millisecond):
		}
	}

	balance, _ := f.bank.BalanceOf(ctx, "bob")
	if balance != 10_000_000+980_000 {
		t.Fatalf("bob balance = %d, want full distribution", balance)
	}
}

func TestSweeperSkipsUnexpiredAndEmptyPools(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Still running at sweep time.
	live, _ := f.questions.Create(ctx, "live", 1_000_000, 72*time.Hour, true, "alice")
	a, _ := f.answers.Submit(ctx, live.ID, "a", "bob")
	f.upvote(t, live.ID, a.ID, "bob", "v1")

	// Expired but answerless; only the owner may act on it.
	empty, _ := f.questions.Create(ctx, "empty", 1_000_000, 48*time.Hour, true, "carol")

	f.questions.now = func() time.Time { return time.Now().Add(49 * time.Hour) }

	sweeper := NewSweeper(f.store, f.questions, time.Minute, nil)
	sweeper.tick(ctx)

	for _, id := range []uint64{live.ID, empty.ID} {
		got, _ := f.questions.Get(ctx, id)
		if got.PoolDistributed {
			t.Fatalf("question %d distributed, want untouched", id)
		}
	}
}

func TestSweeperStopIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sweeper := NewSweeper(f.store, f.questions, time.Minute, nil)
	if err := sweeper.Stop(ctx); err != nil {
		t.Fatalf("stop before start: %v", err)
	}
	if err := sweeper.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := sweeper.Start(ctx); err != nil {
		t.Fatalf("double start: %v", err)
	}
	if err := sweeper.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := sweeper.Stop(ctx); err != nil {
		t.Fatalf("double stop: %v", err)
	}
}
