// Package reputation defines per-identity scores and community vote records.
package reputation

import "fmt"

// ContentKind distinguishes what a vote targets.
type ContentKind string

const (
	KindQuestion ContentKind = "question"
	KindAnswer   ContentKind = "answer"
)

// Reputation deltas applied by the registries.
const (
	DeltaUpvoteReceived   = 2
	DeltaDownvoteReceived = -1
	DeltaQuestionAsked    = 1
	DeltaAnswerSubmitted  = 1
	DeltaBestAnswer       = 10
)

// Record is the per-identity reputation state. Score is floor-clamped at
// zero; it never goes negative regardless of penalties applied.
type Record struct {
	Identity  string `json:"identity"`
	Score     uint64 `json:"score"`
	VotesCast uint64 `json:"votes_cast"`
}

// Tally holds the vote counts for one piece of content.
type Tally struct {
	Upvotes   uint64 `json:"upvotes"`
	Downvotes uint64 `json:"downvotes"`
}

// Score returns upvotes minus downvotes as a signed value.
func (t Tally) Score() int64 {
	return int64(t.Upvotes) - int64(t.Downvotes)
}

// Vote is a write-once record of one identity's vote on one content key.
// Votes are never cleared or flipped.
type Vote struct {
	ContentKey string `json:"content_key"`
	Voter      string `json:"voter"`
	Upvote     bool   `json:"upvote"`
}

// ContentKey builds the canonical key for a vote target.
func ContentKey(questionID, contentID uint64, kind ContentKind) string {
	return fmt.Sprintf("%s:%d:%d", kind, questionID, contentID)
}
