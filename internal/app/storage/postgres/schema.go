package postgres

import "context"

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS questions (
		id                 BIGSERIAL PRIMARY KEY,
		owner              TEXT NOT NULL,
		content_ref        TEXT NOT NULL,
		bounty_amount      BIGINT NOT NULL DEFAULT 0,
		pool_amount        BIGINT NOT NULL DEFAULT 0,
		pool_end_time      TIMESTAMPTZ,
		status             TEXT NOT NULL,
		selected_answer_id BIGINT NOT NULL DEFAULT 0,
		answer_ids         BIGINT[] NOT NULL DEFAULT '{}',
		pool_distributed   BOOLEAN NOT NULL DEFAULT FALSE,
		active             BOOLEAN NOT NULL DEFAULT TRUE,
		created_at         TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS answers (
		id          BIGSERIAL PRIMARY KEY,
		question_id BIGINT NOT NULL REFERENCES questions (id),
		provider    TEXT NOT NULL,
		content_ref TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL,
		UNIQUE (question_id, provider)
	)`,
	`CREATE TABLE IF NOT EXISTS reputation (
		identity   TEXT PRIMARY KEY,
		score      BIGINT NOT NULL DEFAULT 0,
		votes_cast BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS vote_tallies (
		content_key TEXT PRIMARY KEY,
		upvotes     BIGINT NOT NULL DEFAULT 0,
		downvotes   BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS votes (
		content_key TEXT NOT NULL,
		voter       TEXT NOT NULL,
		upvote      BOOLEAN NOT NULL,
		PRIMARY KEY (content_key, voter)
	)`,
	`CREATE TABLE IF NOT EXISTS treasury (
		singleton BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (singleton),
		balance   BIGINT NOT NULL DEFAULT 0
	)`,
}

// Migrate creates the tables when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
