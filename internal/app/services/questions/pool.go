package questions

import (
	"math/big"
	"sort"

	"github.com/answerpool/service_layer/internal/app/domain/answer"
	"github.com/answerpool/service_layer/internal/app/domain/question"
)

// Payout is one winner's share of a pool distribution.
type Payout struct {
	AnswerID uint64 `json:"answer_id"`
	Provider string `json:"provider"`
	Score    int64  `json:"score"`
	Amount   uint64 `json:"amount"`
}

// scoredAnswer pairs an answer with its community score at ranking time.
type scoredAnswer struct {
	ans   answer.Answer
	score int64
}

// rankAnswers orders answers by score descending. The sort is stable: among
// equal scores the earlier submission ranks higher. Callers depend on this
// ordering being reproducible.
func rankAnswers(entries []scoredAnswer) []scoredAnswer {
	ranked := make([]scoredAnswer, len(entries))
	copy(ranked, entries)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	return ranked
}

// computePayouts splits the distribution amount among the top-ranked winner
// set. The returned shares always sum to the distribution amount exactly:
// with a positive total score, shares are floor-weighted by score and the
// rounding remainder goes entirely to the rank-0 winner (even when its own
// computed share is zero); with no positive score in the winner set, the
// amount is split equally and the remainder is handed out one unit at a time
// in rank order.
func computePayouts(entries []scoredAnswer, distribution uint64) []Payout {
	ranked := rankAnswers(entries)
	n := len(ranked)
	if n > question.MaxPoolWinners {
		n = question.MaxPoolWinners
	}
	winners := ranked[:n]

	payouts := make([]Payout, n)
	for i, w := range winners {
		payouts[i] = Payout{AnswerID: w.ans.ID, Provider: w.ans.Provider, Score: w.score}
	}
	if n == 0 {
		return payouts
	}

	var totalScore int64
	for _, w := range winners {
		if w.score > 0 {
			totalScore += w.score
		}
	}

	if totalScore > 0 {
		var allocated uint64
		for i, w := range winners {
			if w.score <= 0 {
				continue
			}
			payouts[i].Amount = weightedShare(distribution, w.score, totalScore)
			allocated += payouts[i].Amount
		}
		payouts[0].Amount += distribution - allocated
		return payouts
	}

	base := distribution / uint64(n)
	remainder := distribution % uint64(n)
	for i := range payouts {
		payouts[i].Amount = base
		if uint64(i) < remainder {
			payouts[i].Amount++
		}
	}
	return payouts
}

// previewPrize computes the display-only prize estimate for one answer.
//
// The estimate deliberately diverges from computePayouts: it weights against
// the positive-score sum across ALL submitted answers rather than the top-3
// winner set, and applies no rounding-remainder correction. Unifying the two
// would silently change observable behavior for questions with more than
// three answers or tied top-3 scores, so both formulas are kept as is.
func previewPrize(targetID uint64, entries []scoredAnswer, poolAmount uint64) uint64 {
	distribution := poolAmount - question.Fee(poolAmount)

	var totalPositive, targetScore int64
	for _, e := range entries {
		if e.score > 0 {
			totalPositive += e.score
		}
		if e.ans.ID == targetID {
			targetScore = e.score
		}
	}
	if targetScore <= 0 || totalPositive == 0 {
		return 0
	}
	return weightedShare(distribution, targetScore, totalPositive)
}

// weightedShare returns floor(distribution * score / totalScore), computed
// in big integers so the product cannot overflow uint64.
func weightedShare(distribution uint64, score, totalScore int64) uint64 {
	share := new(big.Int).SetUint64(distribution)
	share.Mul(share, big.NewInt(score))
	share.Quo(share, big.NewInt(totalScore))
	return share.Uint64()
}
