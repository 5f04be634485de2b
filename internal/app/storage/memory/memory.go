package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/answerpool/service_layer/internal/app/domain/answer"
	"github.com/answerpool/service_layer/internal/app/domain/question"
	"github.com/answerpool/service_layer/internal/app/domain/reputation"
	"github.com/answerpool/service_layer/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local
// development.
type Store struct {
	mu              sync.RWMutex
	nextQuestionID  uint64
	nextAnswerID    uint64
	questions       map[uint64]question.Question
	answers         map[uint64]answer.Answer
	answersByQn     map[uint64][]uint64
	answered        map[string]bool
	reputations     map[string]reputation.Record
	tallies         map[string]reputation.Tally
	votes           map[string]reputation.Vote
	treasuryBalance uint64
}

var _ storage.QuestionStore = (*Store)(nil)
var _ storage.AnswerStore = (*Store)(nil)
var _ storage.ReputationStore = (*Store)(nil)
var _ storage.TreasuryStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextQuestionID: 1,
		nextAnswerID:   1,
		questions:      make(map[uint64]question.Question),
		answers:        make(map[uint64]answer.Answer),
		answersByQn:    make(map[uint64][]uint64),
		answered:       make(map[string]bool),
		reputations:    make(map[string]reputation.Record),
		tallies:        make(map[string]reputation.Tally),
		votes:          make(map[string]reputation.Vote),
	}
}

// QuestionStore implementation ------------------------------------------------

func (s *Store) CreateQuestion(_ context.Context, q question.Question) (question.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q.ID = s.nextQuestionID
	s.nextQuestionID++
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	q.AnswerIDs = cloneIDs(q.AnswerIDs)

	s.questions[q.ID] = q
	return cloneQuestion(q), nil
}

func (s *Store) UpdateQuestion(_ context.Context, q question.Question) (question.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.questions[q.ID]
	if !ok {
		return question.Question{}, fmt.Errorf("question %d: %w", q.ID, storage.ErrNotFound)
	}

	q.CreatedAt = original.CreatedAt
	q.AnswerIDs = cloneIDs(q.AnswerIDs)

	s.questions[q.ID] = q
	return cloneQuestion(q), nil
}

func (s *Store) GetQuestion(_ context.Context, id uint64) (question.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.questions[id]
	if !ok {
		return question.Question{}, fmt.Errorf("question %d: %w", id, storage.ErrNotFound)
	}
	return cloneQuestion(q), nil
}

func (s *Store) ListQuestions(_ context.Context) ([]question.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]question.Question, 0, len(s.questions))
	for id := uint64(1); id < s.nextQuestionID; id++ {
		if q, ok := s.questions[id]; ok {
			out = append(out, cloneQuestion(q))
		}
	}
	return out, nil
}

// AnswerStore implementation --------------------------------------------------

func (s *Store) CreateAnswer(_ context.Context, ans answer.Answer) (answer.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.questions[ans.QuestionID]; !ok {
		return answer.Answer{}, fmt.Errorf("question %d: %w", ans.QuestionID, storage.ErrNotFound)
	}

	ans.ID = s.nextAnswerID
	s.nextAnswerID++
	if ans.CreatedAt.IsZero() {
		ans.CreatedAt = time.Now().UTC()
	}

	s.answers[ans.ID] = ans
	s.answersByQn[ans.QuestionID] = append(s.answersByQn[ans.QuestionID], ans.ID)
	s.answered[answeredKey(ans.QuestionID, ans.Provider)] = true
	return ans, nil
}

func (s *Store) GetAnswer(_ context.Context, id uint64) (answer.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ans, ok := s.answers[id]
	if !ok {
		return answer.Answer{}, fmt.Errorf("answer %d: %w", id, storage.ErrNotFound)
	}
	return ans, nil
}

func (s *Store) ListAnswersByQuestion(_ context.Context, questionID uint64) ([]answer.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.answersByQn[questionID]
	out := make([]answer.Answer, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.answers[id])
	}
	return out, nil
}

func (s *Store) HasAnswered(_ context.Context, questionID uint64, provider string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.answered[answeredKey(questionID, provider)], nil
}

// ReputationStore implementation ----------------------------------------------

func (s *Store) GetReputation(_ context.Context, identity string) (reputation.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.reputations[identity]
	if !ok {
		return reputation.Record{Identity: identity}, nil
	}
	return rec, nil
}

func (s *Store) PutReputation(_ context.Context, rec reputation.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reputations[rec.Identity] = rec
	return nil
}

func (s *Store) GetTally(_ context.Context, contentKey string) (reputation.Tally, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tallies[contentKey], nil
}

func (s *Store) PutTally(_ context.Context, contentKey string, tally reputation.Tally) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tallies[contentKey] = tally
	return nil
}

func (s *Store) GetVote(_ context.Context, contentKey, voter string) (reputation.Vote, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vote, ok := s.votes[voteKey(contentKey, voter)]
	return vote, ok, nil
}

func (s *Store) PutVote(_ context.Context, vote reputation.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := voteKey(vote.ContentKey, vote.Voter)
	if _, exists := s.votes[key]; exists {
		return fmt.Errorf("vote by %s on %s already recorded", vote.Voter, vote.ContentKey)
	}
	s.votes[key] = vote
	return nil
}

// TreasuryStore implementation ------------------------------------------------

func (s *Store) TreasuryBalance(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.treasuryBalance, nil
}

func (s *Store) SetTreasuryBalance(_ context.Context, balance uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.treasuryBalance = balance
	return nil
}

// Helpers ----------------------------------------------------------------------

func answeredKey(questionID uint64, provider string) string {
	return fmt.Sprintf("%d|%s", questionID, provider)
}

func voteKey(contentKey, voter string) string {
	return contentKey + "|" + voter
}

func cloneQuestion(q question.Question) question.Question {
	q.AnswerIDs = cloneIDs(q.AnswerIDs)
	return q
}

func cloneIDs(ids []uint64) []uint64 {
	if ids == nil {
		return nil
	}
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out
}
