// Package question defines the question domain model and the monetary
// constants shared by every payout path.
package question

import "time"

// Amounts are unsigned integers in a fixed-point unit with AmountDecimals
// decimal places ("microunits").
const (
	// AmountDecimals is the fixed-point precision of all monetary amounts.
	AmountDecimals = 6

	// FeeBasisPoints is the platform fee taken on every monetary exit path.
	FeeBasisPoints = 200
	// FeeDenominator is the basis-point denominator.
	FeeDenominator = 10000

	// MaxPoolWinners caps the winner set of a pool distribution.
	MaxPoolWinners = 3
)

// Pool duration bounds. A pool question's deadline must land between these.
const (
	MinPoolDuration = 24 * time.Hour
	MaxPoolDuration = 720 * time.Hour
)

// WithdrawnSentinel is the reserved selected-answer id reported on the read
// surface after a bounty withdrawal. Valid answer ids never reach it.
const WithdrawnSentinel = ^uint64(0)

// Status is the lifecycle state of a question's reward.
type Status string

const (
	// StatusOpen means no terminal selection or withdrawal has occurred.
	StatusOpen Status = "open"
	// StatusBestSelected means the bounty was paid to a selected answer.
	StatusBestSelected Status = "best_selected"
	// StatusBountyWithdrawn means the owner reclaimed an unanswered bounty.
	StatusBountyWithdrawn Status = "bounty_withdrawn"
)

// Question carries either a bounty (paid to one selected answer) or a pool
// (split among top-ranked answers after a deadline). BountyAmount and
// PoolAmount are never both nonzero; both are zeroed by the terminal event.
type Question struct {
	ID               uint64    `json:"id"`
	Owner            string    `json:"owner"`
	ContentRef       string    `json:"content_ref"`
	BountyAmount     uint64    `json:"bounty_amount"`
	PoolAmount       uint64    `json:"pool_amount"`
	PoolEndTime      time.Time `json:"pool_end_time,omitempty"`
	Status           Status    `json:"status"`
	SelectedAnswerID uint64    `json:"-"`
	AnswerIDs        []uint64  `json:"answer_ids"`
	PoolDistributed  bool      `json:"pool_distributed"`
	Active           bool      `json:"active"`
	CreatedAt        time.Time `json:"created_at"`
}

// IsPool reports whether the question was created with a reward pool.
func (q Question) IsPool() bool {
	return !q.PoolEndTime.IsZero()
}

// SelectedAnswer returns the value the read surface reports for the
// selected-answer field: 0 while open, the winning answer id after
// selection, and WithdrawnSentinel after a bounty withdrawal.
func (q Question) SelectedAnswer() uint64 {
	switch q.Status {
	case StatusBountyWithdrawn:
		return WithdrawnSentinel
	case StatusBestSelected:
		return q.SelectedAnswerID
	default:
		return 0
	}
}

// Fee returns the platform fee for a locked amount.
func Fee(amount uint64) uint64 {
	return amount * FeeBasisPoints / FeeDenominator
}
