package storage

import (
	"context"
	"errors"

	"github.com/answerpool/service_layer/internal/app/domain/answer"
	"github.com/answerpool/service_layer/internal/app/domain/question"
	"github.com/answerpool/service_layer/internal/app/domain/reputation"
)

// ErrNotFound is returned when a record id does not exist. Both store
// implementations wrap it so callers can map it with errors.Is.
var ErrNotFound = errors.New("record not found")

// QuestionStore persists question records. Create assigns the next monotonic
// question id; questions are never deleted.
type QuestionStore interface {
	CreateQuestion(ctx context.Context, q question.Question) (question.Question, error)
	UpdateQuestion(ctx context.Context, q question.Question) (question.Question, error)
	GetQuestion(ctx context.Context, id uint64) (question.Question, error)
	ListQuestions(ctx context.Context) ([]question.Question, error)
}

// AnswerStore persists answer records. Create assigns the next monotonic
// answer id; answers are immutable once created.
type AnswerStore interface {
	CreateAnswer(ctx context.Context, ans answer.Answer) (answer.Answer, error)
	GetAnswer(ctx context.Context, id uint64) (answer.Answer, error)
	ListAnswersByQuestion(ctx context.Context, questionID uint64) ([]answer.Answer, error)
	HasAnswered(ctx context.Context, questionID uint64, provider string) (bool, error)
}

// ReputationStore persists reputation records, vote tallies, and the
// write-once vote records. Reputation and tally reads return zero values for
// unknown identities and keys.
type ReputationStore interface {
	GetReputation(ctx context.Context, identity string) (reputation.Record, error)
	PutReputation(ctx context.Context, rec reputation.Record) error
	GetTally(ctx context.Context, contentKey string) (reputation.Tally, error)
	PutTally(ctx context.Context, contentKey string, tally reputation.Tally) error
	GetVote(ctx context.Context, contentKey, voter string) (reputation.Vote, bool, error)
	PutVote(ctx context.Context, vote reputation.Vote) error
}

// TreasuryStore persists the single running platform-fee balance.
type TreasuryStore interface {
	TreasuryBalance(ctx context.Context) (uint64, error)
	SetTreasuryBalance(ctx context.Context, balance uint64) error
}
