// Package answers implements the answer registry: answer submission with the
// one-answer-per-question rule and the answering reputation grant.
package answers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/answerpool/service_layer/internal/app/domain/answer"
	repdomain "github.com/answerpool/service_layer/internal/app/domain/reputation"
	"github.com/answerpool/service_layer/internal/app/metrics"
	reputationsvc "github.com/answerpool/service_layer/internal/app/services/reputation"
	"github.com/answerpool/service_layer/internal/app/storage"
	"github.com/answerpool/service_layer/pkg/logger"
)

var (
	// ErrAlreadyAnswered means the provider already has an answer on this
	// question. The marker is permanent.
	ErrAlreadyAnswered = errors.New("provider already answered this question")
	// ErrQuestionClosed means the question is inactive or, for pool
	// questions, the deadline has passed.
	ErrQuestionClosed = errors.New("question no longer accepts answers")
)

// Service is the answer registry.
type Service struct {
	questions storage.QuestionStore
	store     storage.AnswerStore
	rep       *reputationsvc.Service
	log       *logger.Logger

	mu  sync.Mutex
	now func() time.Time
}

// New constructs an answer service.
func New(questions storage.QuestionStore, store storage.AnswerStore, rep *reputationsvc.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("answers")
	}
	return &Service{
		questions: questions,
		store:     store,
		rep:       rep,
		log:       log,
		now:       time.Now,
	}
}

// Submit records a new answer, appends it to the question's answer list, and
// grants the provider the answering reputation.
func (s *Service) Submit(ctx context.Context, questionID uint64, contentRef, provider string) (answer.Answer, error) {
	eligible, err := s.rep.CanParticipate(ctx, provider)
	if err != nil {
		return answer.Answer{}, err
	}
	if !eligible {
		return answer.Answer{}, fmt.Errorf("%w: %s", reputationsvc.ErrNotEligible, provider)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.questions.GetQuestion(ctx, questionID)
	if err != nil {
		return answer.Answer{}, err
	}

	answered, err := s.store.HasAnswered(ctx, questionID, provider)
	if err != nil {
		return answer.Answer{}, err
	}
	if answered {
		return answer.Answer{}, fmt.Errorf("%w: %s on question %d", ErrAlreadyAnswered, provider, questionID)
	}

	if !q.Active {
		return answer.Answer{}, fmt.Errorf("%w: question %d", ErrQuestionClosed, questionID)
	}
	if q.IsPool() && !s.now().Before(q.PoolEndTime) {
		return answer.Answer{}, fmt.Errorf("%w: pool on question %d expired", ErrQuestionClosed, questionID)
	}

	ans, err := s.store.CreateAnswer(ctx, answer.Answer{
		QuestionID: questionID,
		Provider:   provider,
		ContentRef: contentRef,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		return answer.Answer{}, err
	}

	q.AnswerIDs = append(q.AnswerIDs, ans.ID)
	if _, err := s.questions.UpdateQuestion(ctx, q); err != nil {
		return answer.Answer{}, err
	}

	if _, err := s.rep.Adjust(ctx, provider, repdomain.DeltaAnswerSubmitted); err != nil {
		return answer.Answer{}, err
	}

	metrics.RecordAnswerSubmitted()
	s.log.WithField("answer_id", ans.ID).
		WithField("question_id", questionID).
		WithField("provider", provider).
		Info("answer submitted")
	return ans, nil
}

// Get retrieves an answer by id.
func (s *Service) Get(ctx context.Context, id uint64) (answer.Answer, error) {
	return s.store.GetAnswer(ctx, id)
}

// ListByQuestion returns a question's answers in submission order.
func (s *Service) ListByQuestion(ctx context.Context, questionID uint64) ([]answer.Answer, error) {
	return s.store.ListAnswersByQuestion(ctx, questionID)
}
