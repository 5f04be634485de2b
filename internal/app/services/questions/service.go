// Package questions implements the question registry: reward setup, the
// terminal selection/withdrawal/distribution paths, and the weighted pool
// payout engine.
//
// Every monetary path follows the same two-phase shape: the terminal state
// is committed to the store first, then the external transfer is attempted,
// so a concurrent retry of the same action observes the finalized state and
// is rejected. A rejected transfer restores the pre-operation snapshots.
package questions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/answerpool/service_layer/internal/app/domain/answer"
	"github.com/answerpool/service_layer/internal/app/domain/question"
	repdomain "github.com/answerpool/service_layer/internal/app/domain/reputation"
	"github.com/answerpool/service_layer/internal/app/metrics"
	reputationsvc "github.com/answerpool/service_layer/internal/app/services/reputation"
	treasurysvc "github.com/answerpool/service_layer/internal/app/services/treasury"
	"github.com/answerpool/service_layer/internal/app/storage"
	"github.com/answerpool/service_layer/internal/custody"
	"github.com/answerpool/service_layer/pkg/logger"
)

var (
	// ErrZeroAmount means a monetary operation was called with amount zero.
	ErrZeroAmount = errors.New("amount must be nonzero")
	// ErrInvalidDuration means a pool duration fell outside the documented
	// bounds.
	ErrInvalidDuration = errors.New("pool duration out of bounds")
	// ErrNotOwner means the caller does not own the question.
	ErrNotOwner = errors.New("caller is not the question owner")
	// ErrAlreadySelected means a best answer was already selected or the
	// bounty was already withdrawn.
	ErrAlreadySelected = errors.New("question already finalized")
	// ErrNoBounty means the question carries no bounty to act on.
	ErrNoBounty = errors.New("question has no bounty")
	// ErrAnswerMismatch means the answer does not belong to the question.
	ErrAnswerMismatch = errors.New("answer does not belong to question")
	// ErrAnswersExist blocks a bounty withdrawal once answers were submitted.
	ErrAnswersExist = errors.New("bounty has answers; withdrawal forbidden")
	// ErrNoPool means the question carries no reward pool.
	ErrNoPool = errors.New("question has no reward pool")
	// ErrNotExpired means the pool deadline has not passed yet.
	ErrNotExpired = errors.New("pool has not expired")
	// ErrAlreadyDistributed means the pool was already paid out or withdrawn.
	ErrAlreadyDistributed = errors.New("pool already distributed")
	// ErrNoAnswers means a pool cannot be distributed with no answers.
	ErrNoAnswers = errors.New("pool has no answers")
	// ErrGoodAnswersExist blocks a pool withdrawal while any answer scores
	// strictly positive.
	ErrGoodAnswersExist = errors.New("pool has positively scored answers")
)

// Service is the question registry.
type Service struct {
	store    storage.QuestionStore
	answers  storage.AnswerStore
	rep      *reputationsvc.Service
	treasury *treasurysvc.Service
	ledger   custody.Ledger
	log      *logger.Logger

	mu  sync.Mutex
	now func() time.Time
}

// New constructs a question service.
func New(store storage.QuestionStore, answers storage.AnswerStore, rep *reputationsvc.Service, treasury *treasurysvc.Service, ledger custody.Ledger, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("questions")
	}
	return &Service{
		store:    store,
		answers:  answers,
		rep:      rep,
		treasury: treasury,
		ledger:   ledger,
		log:      log,
		now:      time.Now,
	}
}

// Create locks the reward from the owner and registers the question. Pool
// questions additionally validate the duration and fix the deadline.
func (s *Service) Create(ctx context.Context, contentRef string, amount uint64, poolDuration time.Duration, isPool bool, owner string) (question.Question, error) {
	if amount == 0 {
		return question.Question{}, ErrZeroAmount
	}
	if isPool && (poolDuration < question.MinPoolDuration || poolDuration > question.MaxPoolDuration) {
		return question.Question{}, fmt.Errorf("%w: %s", ErrInvalidDuration, poolDuration)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.Lock(ctx, owner, amount); err != nil {
		return question.Question{}, err
	}

	now := s.now().UTC()
	q := question.Question{
		Owner:      owner,
		ContentRef: contentRef,
		Status:     question.StatusOpen,
		Active:     true,
		CreatedAt:  now,
	}
	if isPool {
		q.PoolAmount = amount
		q.PoolEndTime = now.Add(poolDuration)
	} else {
		q.BountyAmount = amount
	}

	q, err := s.store.CreateQuestion(ctx, q)
	if err != nil {
		if payErr := s.ledger.Pay(ctx, owner, amount); payErr != nil {
			s.log.WithError(payErr).Errorf("refund locked reward to %s after failed create", owner)
		}
		return question.Question{}, err
	}

	if _, err := s.rep.Adjust(ctx, owner, repdomain.DeltaQuestionAsked); err != nil {
		return question.Question{}, err
	}

	metrics.RecordQuestionCreated(isPool)
	s.log.WithField("question_id", q.ID).
		WithField("owner", owner).
		WithField("amount", amount).
		WithField("pool", isPool).
		Info("question created")
	return q, nil
}

// IncreaseBounty locks an additional amount from the caller and adds it to
// the bounty. Pool questions are rejected: topping up their bounty field
// would break the bounty/pool exclusivity invariant.
func (s *Service) IncreaseBounty(ctx context.Context, id uint64, extra uint64, caller string) (question.Question, error) {
	if extra == 0 {
		return question.Question{}, ErrZeroAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return question.Question{}, err
	}
	if q.Status != question.StatusOpen || !q.Active {
		return question.Question{}, fmt.Errorf("%w: question %d", ErrAlreadySelected, id)
	}
	if q.IsPool() {
		return question.Question{}, fmt.Errorf("%w: question %d is a pool question", ErrNoBounty, id)
	}

	if err := s.ledger.Lock(ctx, caller, extra); err != nil {
		return question.Question{}, err
	}

	q.BountyAmount += extra
	q, err = s.store.UpdateQuestion(ctx, q)
	if err != nil {
		if payErr := s.ledger.Pay(ctx, caller, extra); payErr != nil {
			s.log.WithError(payErr).Errorf("refund bounty top-up to %s", caller)
		}
		return question.Question{}, err
	}

	s.log.WithField("question_id", id).
		WithField("extra", extra).
		Info("bounty increased")
	return q, nil
}

// SelectBestAnswer pays the bounty (minus fee) to the answer's provider and
// closes the question. This is the single irreversible payout path for
// bounty questions.
func (s *Service) SelectBestAnswer(ctx context.Context, id, answerID uint64, caller string) (question.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return question.Question{}, err
	}
	if caller != q.Owner {
		return question.Question{}, fmt.Errorf("%w: %s", ErrNotOwner, caller)
	}
	if q.Status != question.StatusOpen {
		return question.Question{}, fmt.Errorf("%w: question %d", ErrAlreadySelected, id)
	}
	if q.BountyAmount == 0 {
		return question.Question{}, fmt.Errorf("%w: question %d", ErrNoBounty, id)
	}

	ans, err := s.answers.GetAnswer(ctx, answerID)
	if err != nil {
		return question.Question{}, err
	}
	if ans.QuestionID != id {
		return question.Question{}, fmt.Errorf("%w: answer %d", ErrAnswerMismatch, answerID)
	}

	bounty := q.BountyAmount
	fee := question.Fee(bounty)
	payout := bounty - fee

	snapshot := q
	q.Status = question.StatusBestSelected
	q.SelectedAnswerID = answerID
	q.BountyAmount = 0
	q.Active = false
	q, err = s.store.UpdateQuestion(ctx, q)
	if err != nil {
		return question.Question{}, err
	}

	if err := s.treasury.Accrue(ctx, fee); err != nil {
		s.restoreQuestion(ctx, snapshot)
		return question.Question{}, err
	}
	if err := s.ledger.Pay(ctx, ans.Provider, payout); err != nil {
		s.reverseFee(ctx, fee)
		s.restoreQuestion(ctx, snapshot)
		return question.Question{}, err
	}

	if _, err := s.rep.Adjust(ctx, ans.Provider, repdomain.DeltaBestAnswer); err != nil {
		return question.Question{}, err
	}

	metrics.RecordPayout("best_answer", payout)
	s.log.WithField("question_id", id).
		WithField("answer_id", answerID).
		WithField("payout", payout).
		WithField("fee", fee).
		Info("best answer selected")
	return q, nil
}

// WithdrawBounty returns an unanswered bounty (minus fee) to the owner and
// closes the question permanently.
func (s *Service) WithdrawBounty(ctx context.Context, id uint64, caller string) (question.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return question.Question{}, err
	}
	if caller != q.Owner {
		return question.Question{}, fmt.Errorf("%w: %s", ErrNotOwner, caller)
	}
	if q.IsPool() || q.BountyAmount == 0 || q.Status != question.StatusOpen {
		return question.Question{}, fmt.Errorf("%w: question %d", ErrNoBounty, id)
	}
	if len(q.AnswerIDs) > 0 {
		return question.Question{}, fmt.Errorf("%w: question %d has %d answers", ErrAnswersExist, id, len(q.AnswerIDs))
	}

	bounty := q.BountyAmount
	fee := question.Fee(bounty)
	remainder := bounty - fee

	snapshot := q
	q.Status = question.StatusBountyWithdrawn
	q.BountyAmount = 0
	q.Active = false
	q, err = s.store.UpdateQuestion(ctx, q)
	if err != nil {
		return question.Question{}, err
	}

	if err := s.treasury.Accrue(ctx, fee); err != nil {
		s.restoreQuestion(ctx, snapshot)
		return question.Question{}, err
	}
	if err := s.ledger.Pay(ctx, q.Owner, remainder); err != nil {
		s.reverseFee(ctx, fee)
		s.restoreQuestion(ctx, snapshot)
		return question.Question{}, err
	}

	metrics.RecordPayout("bounty_withdrawal", remainder)
	s.log.WithField("question_id", id).
		WithField("remainder", remainder).
		WithField("fee", fee).
		Info("bounty withdrawn")
	return q, nil
}

// DistributePool pays the expired pool (minus fee) to the top-ranked winner
// set. Any caller may trigger it once the deadline has passed.
func (s *Service) DistributePool(ctx context.Context, id uint64, caller string) ([]Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if !q.IsPool() || q.PoolAmount == 0 {
		return nil, fmt.Errorf("%w: question %d", ErrNoPool, id)
	}
	if s.now().Before(q.PoolEndTime) {
		return nil, fmt.Errorf("%w: question %d until %s", ErrNotExpired, id, q.PoolEndTime)
	}
	if q.PoolDistributed {
		return nil, fmt.Errorf("%w: question %d", ErrAlreadyDistributed, id)
	}
	if len(q.AnswerIDs) == 0 {
		return nil, fmt.Errorf("%w: question %d", ErrNoAnswers, id)
	}

	entries, err := s.scoredEntries(ctx, q)
	if err != nil {
		return nil, err
	}

	pool := q.PoolAmount
	fee := question.Fee(pool)
	payouts := computePayouts(entries, pool-fee)

	snapshot := q
	q.PoolDistributed = true
	q.PoolAmount = 0
	q.Active = false
	if _, err := s.store.UpdateQuestion(ctx, q); err != nil {
		return nil, err
	}

	if err := s.treasury.Accrue(ctx, fee); err != nil {
		s.restoreQuestion(ctx, snapshot)
		return nil, err
	}

	payments := make([]custody.Payment, 0, len(payouts))
	for _, p := range payouts {
		if p.Amount == 0 {
			continue
		}
		payments = append(payments, custody.Payment{Recipient: p.Provider, Amount: p.Amount})
	}
	if err := s.ledger.PayAll(ctx, payments); err != nil {
		s.reverseFee(ctx, fee)
		s.restoreQuestion(ctx, snapshot)
		return nil, err
	}

	metrics.RecordPayout("pool_distribution", pool-fee)
	s.log.WithField("question_id", id).
		WithField("caller", caller).
		WithField("winners", len(payments)).
		WithField("distributed", pool-fee).
		WithField("fee", fee).
		Info("pool distributed")
	return payouts, nil
}

// WithdrawPool returns an expired pool (minus fee) to the owner, allowed
// only while no answer scores strictly positive.
func (s *Service) WithdrawPool(ctx context.Context, id uint64, caller string) (question.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return question.Question{}, err
	}
	if caller != q.Owner {
		return question.Question{}, fmt.Errorf("%w: %s", ErrNotOwner, caller)
	}
	if !q.IsPool() || q.PoolAmount == 0 {
		return question.Question{}, fmt.Errorf("%w: question %d", ErrNoPool, id)
	}
	if q.PoolDistributed {
		return question.Question{}, fmt.Errorf("%w: question %d", ErrAlreadyDistributed, id)
	}
	if s.now().Before(q.PoolEndTime) {
		return question.Question{}, fmt.Errorf("%w: question %d until %s", ErrNotExpired, id, q.PoolEndTime)
	}

	entries, err := s.scoredEntries(ctx, q)
	if err != nil {
		return question.Question{}, err
	}
	for _, e := range entries {
		if e.score > 0 {
			return question.Question{}, fmt.Errorf("%w: answer %d scores %d", ErrGoodAnswersExist, e.ans.ID, e.score)
		}
	}

	pool := q.PoolAmount
	fee := question.Fee(pool)
	remainder := pool - fee

	snapshot := q
	q.PoolDistributed = true
	q.PoolAmount = 0
	q.Active = false
	q, err = s.store.UpdateQuestion(ctx, q)
	if err != nil {
		return question.Question{}, err
	}

	if err := s.treasury.Accrue(ctx, fee); err != nil {
		s.restoreQuestion(ctx, snapshot)
		return question.Question{}, err
	}
	if err := s.ledger.Pay(ctx, q.Owner, remainder); err != nil {
		s.reverseFee(ctx, fee)
		s.restoreQuestion(ctx, snapshot)
		return question.Question{}, err
	}

	metrics.RecordPayout("pool_withdrawal", remainder)
	s.log.WithField("question_id", id).
		WithField("remainder", remainder).
		WithField("fee", fee).
		Info("pool withdrawn")
	return q, nil
}

// Reads -------------------------------------------------------------------

// Get retrieves a question by id.
func (s *Service) Get(ctx context.Context, id uint64) (question.Question, error) {
	return s.store.GetQuestion(ctx, id)
}

// Listing is the parallel-array view over all questions exposed by the read
// surface. Amounts holds the effective reward: the bounty for bounty
// questions, the pool for pool questions.
type Listing struct {
	IDs         []uint64    `json:"ids"`
	ContentRefs []string    `json:"content_refs"`
	Creators    []string    `json:"creators"`
	Amounts     []uint64    `json:"amounts"`
	Pool        []bool      `json:"pool"`
	Active      []bool      `json:"active"`
	CreatedAt   []time.Time `json:"created_at"`
}

// List returns all questions in id order.
func (s *Service) List(ctx context.Context) (Listing, error) {
	qs, err := s.store.ListQuestions(ctx)
	if err != nil {
		return Listing{}, err
	}

	out := Listing{
		IDs:         make([]uint64, 0, len(qs)),
		ContentRefs: make([]string, 0, len(qs)),
		Creators:    make([]string, 0, len(qs)),
		Amounts:     make([]uint64, 0, len(qs)),
		Pool:        make([]bool, 0, len(qs)),
		Active:      make([]bool, 0, len(qs)),
		CreatedAt:   make([]time.Time, 0, len(qs)),
	}
	for _, q := range qs {
		amount := q.BountyAmount
		if q.IsPool() {
			amount = q.PoolAmount
		}
		out.IDs = append(out.IDs, q.ID)
		out.ContentRefs = append(out.ContentRefs, q.ContentRef)
		out.Creators = append(out.Creators, q.Owner)
		out.Amounts = append(out.Amounts, amount)
		out.Pool = append(out.Pool, q.IsPool())
		out.Active = append(out.Active, q.Active)
		out.CreatedAt = append(out.CreatedAt, q.CreatedAt)
	}
	return out, nil
}

// AnswerDetail is an answer with its live tally and prize preview.
type AnswerDetail struct {
	Answer       answer.Answer `json:"answer"`
	Upvotes      uint64        `json:"upvotes"`
	Downvotes    uint64        `json:"downvotes"`
	Score        int64         `json:"score"`
	PrizePreview uint64        `json:"prize_preview"`
}

// AnswerDetail returns an answer together with its tally and, for answers on
// an undistributed pool question, the display-only prize preview.
func (s *Service) AnswerDetail(ctx context.Context, answerID uint64) (AnswerDetail, error) {
	ans, err := s.answers.GetAnswer(ctx, answerID)
	if err != nil {
		return AnswerDetail{}, err
	}
	q, err := s.store.GetQuestion(ctx, ans.QuestionID)
	if err != nil {
		return AnswerDetail{}, err
	}

	tally, err := s.rep.Tally(ctx, ans.QuestionID, ans.ID, repdomain.KindAnswer)
	if err != nil {
		return AnswerDetail{}, err
	}

	detail := AnswerDetail{
		Answer:    ans,
		Upvotes:   tally.Upvotes,
		Downvotes: tally.Downvotes,
		Score:     tally.Score(),
	}
	if q.IsPool() && !q.PoolDistributed && q.PoolAmount > 0 {
		entries, err := s.scoredEntries(ctx, q)
		if err != nil {
			return AnswerDetail{}, err
		}
		detail.PrizePreview = previewPrize(ans.ID, entries, q.PoolAmount)
	}
	return detail, nil
}

// PoolExpired reports whether a pool question's deadline has passed.
func (s *Service) PoolExpired(ctx context.Context, id uint64) (bool, error) {
	q, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return false, err
	}
	if !q.IsPool() {
		return false, fmt.Errorf("%w: question %d", ErrNoPool, id)
	}
	return !s.now().Before(q.PoolEndTime), nil
}

// Helpers -------------------------------------------------------------------

// scoredEntries loads a question's answers in submission order with their
// current scores. A linear scan over the answer list is fine; per-question
// answer counts are bounded in practice.
func (s *Service) scoredEntries(ctx context.Context, q question.Question) ([]scoredAnswer, error) {
	list, err := s.answers.ListAnswersByQuestion(ctx, q.ID)
	if err != nil {
		return nil, err
	}

	entries := make([]scoredAnswer, 0, len(list))
	for _, ans := range list {
		tally, err := s.rep.Tally(ctx, q.ID, ans.ID, repdomain.KindAnswer)
		if err != nil {
			return nil, err
		}
		entries = append(entries, scoredAnswer{ans: ans, score: tally.Score()})
	}
	return entries, nil
}

func (s *Service) restoreQuestion(ctx context.Context, snapshot question.Question) {
	if _, err := s.store.UpdateQuestion(ctx, snapshot); err != nil {
		s.log.WithError(err).Errorf("restore question %d after rejected transfer", snapshot.ID)
	}
}

func (s *Service) reverseFee(ctx context.Context, fee uint64) {
	if err := s.treasury.Reverse(ctx, fee); err != nil {
		s.log.WithError(err).Error("reverse accrued fee after rejected transfer")
	}
}
