package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/answerpool/service_layer/internal/app/domain/answer"
	"github.com/answerpool/service_layer/internal/app/domain/question"
	"github.com/answerpool/service_layer/internal/app/domain/reputation"
	"github.com/answerpool/service_layer/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.QuestionStore = (*Store)(nil)
var _ storage.AnswerStore = (*Store)(nil)
var _ storage.ReputationStore = (*Store)(nil)
var _ storage.TreasuryStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL and verifies the connection.
func Open(url string) (*Store, error) {
	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return New(db), nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

type questionRow struct {
	ID               uint64        `db:"id"`
	Owner            string        `db:"owner"`
	ContentRef       string        `db:"content_ref"`
	BountyAmount     uint64        `db:"bounty_amount"`
	PoolAmount       uint64        `db:"pool_amount"`
	PoolEndTime      sql.NullTime  `db:"pool_end_time"`
	Status           string        `db:"status"`
	SelectedAnswerID uint64        `db:"selected_answer_id"`
	AnswerIDs        pq.Int64Array `db:"answer_ids"`
	PoolDistributed  bool          `db:"pool_distributed"`
	Active           bool          `db:"active"`
	CreatedAt        time.Time     `db:"created_at"`
}

func (r questionRow) toDomain() question.Question {
	q := question.Question{
		ID:               r.ID,
		Owner:            r.Owner,
		ContentRef:       r.ContentRef,
		BountyAmount:     r.BountyAmount,
		PoolAmount:       r.PoolAmount,
		Status:           question.Status(r.Status),
		SelectedAnswerID: r.SelectedAnswerID,
		PoolDistributed:  r.PoolDistributed,
		Active:           r.Active,
		CreatedAt:        r.CreatedAt.UTC(),
	}
	if r.PoolEndTime.Valid {
		q.PoolEndTime = r.PoolEndTime.Time.UTC()
	}
	if len(r.AnswerIDs) > 0 {
		q.AnswerIDs = make([]uint64, len(r.AnswerIDs))
		for i, id := range r.AnswerIDs {
			q.AnswerIDs[i] = uint64(id)
		}
	}
	return q
}

func answerIDsColumn(ids []uint64) pq.Int64Array {
	out := make(pq.Int64Array, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

// --- QuestionStore ------------------------------------------------------

func (s *Store) CreateQuestion(ctx context.Context, q question.Question) (question.Question, error) {
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}

	row := s.db.QueryRowxContext(ctx, `
		INSERT INTO questions (owner, content_ref, bounty_amount, pool_amount, pool_end_time, status, selected_answer_id, answer_ids, pool_distributed, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, q.Owner, q.ContentRef, q.BountyAmount, q.PoolAmount, toNullTime(q.PoolEndTime), string(q.Status), q.SelectedAnswerID, answerIDsColumn(q.AnswerIDs), q.PoolDistributed, q.Active, q.CreatedAt)
	if err := row.Scan(&q.ID); err != nil {
		return question.Question{}, err
	}
	return q, nil
}

func (s *Store) UpdateQuestion(ctx context.Context, q question.Question) (question.Question, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE questions
		SET bounty_amount = $2, pool_amount = $3, pool_end_time = $4, status = $5, selected_answer_id = $6, answer_ids = $7, pool_distributed = $8, active = $9
		WHERE id = $1
	`, q.ID, q.BountyAmount, q.PoolAmount, toNullTime(q.PoolEndTime), string(q.Status), q.SelectedAnswerID, answerIDsColumn(q.AnswerIDs), q.PoolDistributed, q.Active)
	if err != nil {
		return question.Question{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return question.Question{}, fmt.Errorf("question %d: %w", q.ID, storage.ErrNotFound)
	}
	return q, nil
}

func (s *Store) GetQuestion(ctx context.Context, id uint64) (question.Question, error) {
	var row questionRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, owner, content_ref, bounty_amount, pool_amount, pool_end_time, status, selected_answer_id, answer_ids, pool_distributed, active, created_at
		FROM questions
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return question.Question{}, fmt.Errorf("question %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return question.Question{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) ListQuestions(ctx context.Context) ([]question.Question, error) {
	var rows []questionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, owner, content_ref, bounty_amount, pool_amount, pool_end_time, status, selected_answer_id, answer_ids, pool_distributed, active, created_at
		FROM questions
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}

	result := make([]question.Question, len(rows))
	for i, row := range rows {
		result[i] = row.toDomain()
	}
	return result, nil
}

// --- AnswerStore --------------------------------------------------------

type answerRow struct {
	ID         uint64    `db:"id"`
	QuestionID uint64    `db:"question_id"`
	Provider   string    `db:"provider"`
	ContentRef string    `db:"content_ref"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r answerRow) toDomain() answer.Answer {
	return answer.Answer{
		ID:         r.ID,
		QuestionID: r.QuestionID,
		Provider:   r.Provider,
		ContentRef: r.ContentRef,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

func (s *Store) CreateAnswer(ctx context.Context, ans answer.Answer) (answer.Answer, error) {
	if ans.CreatedAt.IsZero() {
		ans.CreatedAt = time.Now().UTC()
	}

	row := s.db.QueryRowxContext(ctx, `
		INSERT INTO answers (question_id, provider, content_ref, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, ans.QuestionID, ans.Provider, ans.ContentRef, ans.CreatedAt)
	if err := row.Scan(&ans.ID); err != nil {
		return answer.Answer{}, err
	}
	return ans, nil
}

func (s *Store) GetAnswer(ctx context.Context, id uint64) (answer.Answer, error) {
	var row answerRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, question_id, provider, content_ref, created_at
		FROM answers
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return answer.Answer{}, fmt.Errorf("answer %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return answer.Answer{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) ListAnswersByQuestion(ctx context.Context, questionID uint64) ([]answer.Answer, error) {
	var rows []answerRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, question_id, provider, content_ref, created_at
		FROM answers
		WHERE question_id = $1
		ORDER BY id
	`, questionID)
	if err != nil {
		return nil, err
	}

	result := make([]answer.Answer, len(rows))
	for i, row := range rows {
		result[i] = row.toDomain()
	}
	return result, nil
}

func (s *Store) HasAnswered(ctx context.Context, questionID uint64, provider string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM answers WHERE question_id = $1 AND provider = $2)
	`, questionID, provider)
	return exists, err
}

// --- ReputationStore ----------------------------------------------------

type reputationRow struct {
	Identity  string `db:"identity"`
	Score     uint64 `db:"score"`
	VotesCast uint64 `db:"votes_cast"`
}

type voteRow struct {
	ContentKey string `db:"content_key"`
	Voter      string `db:"voter"`
	Upvote     bool   `db:"upvote"`
}

func (s *Store) GetReputation(ctx context.Context, identity string) (reputation.Record, error) {
	var row reputationRow
	err := s.db.GetContext(ctx, &row, `
		SELECT identity, score, votes_cast
		FROM reputation
		WHERE identity = $1
	`, identity)
	if errors.Is(err, sql.ErrNoRows) {
		return reputation.Record{Identity: identity}, nil
	}
	if err != nil {
		return reputation.Record{}, err
	}
	return reputation.Record{Identity: row.Identity, Score: row.Score, VotesCast: row.VotesCast}, nil
}

func (s *Store) PutReputation(ctx context.Context, rec reputation.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reputation (identity, score, votes_cast)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity) DO UPDATE SET score = $2, votes_cast = $3
	`, rec.Identity, rec.Score, rec.VotesCast)
	return err
}

func (s *Store) GetTally(ctx context.Context, contentKey string) (reputation.Tally, error) {
	var tally reputation.Tally
	err := s.db.GetContext(ctx, &tally, `
		SELECT upvotes, downvotes
		FROM vote_tallies
		WHERE content_key = $1
	`, contentKey)
	if errors.Is(err, sql.ErrNoRows) {
		return reputation.Tally{}, nil
	}
	if err != nil {
		return reputation.Tally{}, err
	}
	return tally, nil
}

func (s *Store) PutTally(ctx context.Context, contentKey string, tally reputation.Tally) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vote_tallies (content_key, upvotes, downvotes)
		VALUES ($1, $2, $3)
		ON CONFLICT (content_key) DO UPDATE SET upvotes = $2, downvotes = $3
	`, contentKey, tally.Upvotes, tally.Downvotes)
	return err
}

func (s *Store) GetVote(ctx context.Context, contentKey, voter string) (reputation.Vote, bool, error) {
	var row voteRow
	err := s.db.GetContext(ctx, &row, `
		SELECT content_key, voter, upvote
		FROM votes
		WHERE content_key = $1 AND voter = $2
	`, contentKey, voter)
	if errors.Is(err, sql.ErrNoRows) {
		return reputation.Vote{}, false, nil
	}
	if err != nil {
		return reputation.Vote{}, false, err
	}
	return reputation.Vote{ContentKey: row.ContentKey, Voter: row.Voter, Upvote: row.Upvote}, true, nil
}

func (s *Store) PutVote(ctx context.Context, vote reputation.Vote) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO votes (content_key, voter, upvote)
		VALUES ($1, $2, $3)
	`, vote.ContentKey, vote.Voter, vote.Upvote)
	return err
}

// --- TreasuryStore ------------------------------------------------------

func (s *Store) TreasuryBalance(ctx context.Context) (uint64, error) {
	var balance uint64
	err := s.db.GetContext(ctx, &balance, `
		SELECT balance FROM treasury WHERE singleton = TRUE
	`)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return balance, err
}

func (s *Store) SetTreasuryBalance(ctx context.Context, balance uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO treasury (singleton, balance)
		VALUES (TRUE, $1)
		ON CONFLICT (singleton) DO UPDATE SET balance = $1
	`, balance)
	return err
}

func toNullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
