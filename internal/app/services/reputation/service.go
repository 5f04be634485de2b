// Package reputation implements the reputation ledger: per-identity scores,
// per-content vote tallies, and the anti-spam gates that protect them.
package reputation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	domain "github.com/answerpool/service_layer/internal/app/domain/reputation"
	"github.com/answerpool/service_layer/internal/app/metrics"
	"github.com/answerpool/service_layer/internal/app/storage"
	"github.com/answerpool/service_layer/internal/custody"
	"github.com/answerpool/service_layer/pkg/logger"
)

// MinEligibilityBalance is the native balance (in microunits) required to
// answer or vote. 0.001 of the native unit at six decimals.
const MinEligibilityBalance = 1000

var (
	// ErrNotEligible means the identity's native balance is below the
	// participation threshold.
	ErrNotEligible = errors.New("identity below minimum eligibility balance")
	// ErrSelfVote means the voter owns the content being voted on.
	ErrSelfVote = errors.New("voting on own content is forbidden")
	// ErrDuplicateVote means a vote record already exists for this content
	// key and voter. Votes are never reversed.
	ErrDuplicateVote = errors.New("vote already cast")
)

// Service is the reputation ledger.
type Service struct {
	store  storage.ReputationStore
	oracle custody.BalanceOracle
	log    *logger.Logger

	mu sync.Mutex
}

// New constructs a reputation service.
func New(store storage.ReputationStore, oracle custody.BalanceOracle, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("reputation")
	}
	return &Service{
		store:  store,
		oracle: oracle,
		log:    log,
	}
}

// CanParticipate reports whether an identity meets the minimum-balance gate
// used for both answering and voting.
func (s *Service) CanParticipate(ctx context.Context, identity string) (bool, error) {
	balance, err := s.oracle.NativeBalance(ctx, identity)
	if err != nil {
		return false, fmt.Errorf("balance oracle: %w", err)
	}
	return balance >= MinEligibilityBalance, nil
}

// CastVote records a permanent vote on a piece of content, bumps its tally,
// and adjusts the content owner's reputation (+2 up, -1 down, clamped at 0).
func (s *Service) CastVote(ctx context.Context, questionID, contentID uint64, kind domain.ContentKind, upvote bool, contentOwner, voter string) (domain.Tally, error) {
	eligible, err := s.CanParticipate(ctx, voter)
	if err != nil {
		return domain.Tally{}, err
	}
	if !eligible {
		return domain.Tally{}, fmt.Errorf("%w: %s", ErrNotEligible, voter)
	}
	if voter == contentOwner {
		return domain.Tally{}, fmt.Errorf("%w: %s", ErrSelfVote, voter)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.ContentKey(questionID, contentID, kind)
	if _, exists, err := s.store.GetVote(ctx, key, voter); err != nil {
		return domain.Tally{}, err
	} else if exists {
		return domain.Tally{}, fmt.Errorf("%w: %s on %s", ErrDuplicateVote, voter, key)
	}

	if err := s.store.PutVote(ctx, domain.Vote{ContentKey: key, Voter: voter, Upvote: upvote}); err != nil {
		return domain.Tally{}, err
	}

	tally, err := s.store.GetTally(ctx, key)
	if err != nil {
		return domain.Tally{}, err
	}
	delta := int64(domain.DeltaDownvoteReceived)
	if upvote {
		tally.Upvotes++
		delta = domain.DeltaUpvoteReceived
	} else {
		tally.Downvotes++
	}
	if err := s.store.PutTally(ctx, key, tally); err != nil {
		return domain.Tally{}, err
	}

	if _, err := s.adjustLocked(ctx, contentOwner, delta); err != nil {
		return domain.Tally{}, err
	}

	voterRec, err := s.store.GetReputation(ctx, voter)
	if err != nil {
		return domain.Tally{}, err
	}
	voterRec.VotesCast++
	if err := s.store.PutReputation(ctx, voterRec); err != nil {
		return domain.Tally{}, err
	}

	metrics.RecordVote(upvote)
	s.log.WithField("content_key", key).
		WithField("voter", voter).
		WithField("upvote", upvote).
		Info("vote cast")
	return tally, nil
}

// Adjust applies a signed delta to an identity's score, floor-clamped at
// zero. Consumed by the registries only; never exposed to external callers.
func (s *Service) Adjust(ctx context.Context, identity string, delta int64) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adjustLocked(ctx, identity, delta)
}

func (s *Service) adjustLocked(ctx context.Context, identity string, delta int64) (domain.Record, error) {
	rec, err := s.store.GetReputation(ctx, identity)
	if err != nil {
		return domain.Record{}, err
	}
	rec.Score = applyDelta(rec.Score, delta)
	if err := s.store.PutReputation(ctx, rec); err != nil {
		return domain.Record{}, err
	}
	return rec, nil
}

// Tally returns the current vote counts for a piece of content.
func (s *Service) Tally(ctx context.Context, questionID, contentID uint64, kind domain.ContentKind) (domain.Tally, error) {
	return s.store.GetTally(ctx, domain.ContentKey(questionID, contentID, kind))
}

// Reputation returns an identity's record; unknown identities read as zero.
func (s *Service) Reputation(ctx context.Context, identity string) (domain.Record, error) {
	return s.store.GetReputation(ctx, identity)
}

// applyDelta clamps the score at zero: a penalty larger than the current
// score leaves it at zero rather than underflowing.
func applyDelta(score uint64, delta int64) uint64 {
	if delta >= 0 {
		return score + uint64(delta)
	}
	penalty := uint64(-delta)
	if penalty >= score {
		return 0
	}
	return score - penalty
}
