// Package answer defines the answer domain model.
package answer

import "time"

// Answer is immutable once created; only externally tallied vote counts and
// derived prize previews change.
type Answer struct {
	ID         uint64    `json:"id"`
	QuestionID uint64    `json:"question_id"`
	Provider   string    `json:"provider"`
	ContentRef string    `json:"content_ref"`
	CreatedAt  time.Time `json:"created_at"`
}
