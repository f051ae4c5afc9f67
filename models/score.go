package models

import "time"

// Score is one leaderboard entry. Append-only; rows are never mutated after
// insert. For timed buckets the score is a rep count, for the 67-reps bucket
// it is elapsed milliseconds.
type Score struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	Username   string    `json:"username"`
	UID        string    `json:"uid" gorm:"index"`
	AvatarURL  *string   `json:"avatar_url,omitempty"`
	Score      int       `json:"score" gorm:"not null;index:idx_scores_bucket_score,priority:2"`
	DurationMS int       `json:"duration_ms" gorm:"not null;index:idx_scores_bucket_score,priority:1"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}
