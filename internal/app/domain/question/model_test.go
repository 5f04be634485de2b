package question

import (
	"fmt"
	"testing"
	"time"
)

func TestFee(t *testing.T) {
	cases := []struct {
		amount uint64
		want   uint64
	}{
		{0, 0},
		{49, 0}, // floors to zero below 50 microunits
		{50, 1},
		{1_000_000, 20_000},
		{1_234_567, 24_691},
	}
	for _, c := range cases {
		if got := Fee(c.amount); got != c.want {
			t.Fatalf("Fee(%d) = %d, want %d", c.amount, got, c.want)
		}
	}
}

func TestSelectedAnswerSentinel(t *testing.T) {
	q := Question{Status: StatusOpen}
	if q.SelectedAnswer() != 0 {
		t.Fatalf("open question sentinel = %d, want 0", q.SelectedAnswer())
	}

	q = Question{Status: StatusBestSelected, SelectedAnswerID: 7}
	if q.SelectedAnswer() != 7 {
		t.Fatalf("selected = %d, want 7", q.SelectedAnswer())
	}

	q = Question{Status: StatusBountyWithdrawn}
	if q.SelectedAnswer() != WithdrawnSentinel {
		t.Fatalf("withdrawn sentinel = %d, want all-ones", q.SelectedAnswer())
	}
}

func TestIsPool(t *testing.T) {
	if (Question{BountyAmount: 1}).IsPool() {
		t.Fatal("bounty question reported as pool")
	}
	pool := Question{PoolAmount: 1, PoolEndTime: time.Now()}
	if !pool.IsPool() {
		t.Fatal("pool question not reported as pool")
	}
}

func ExampleFee() {
	fmt.Println(Fee(1_000_000))
	// Output: 20000
}
