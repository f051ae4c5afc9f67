package models

import "time"

type ChallengeStatus string

const (
	ChallengePending  ChallengeStatus = "pending"
	ChallengeComplete ChallengeStatus = "complete"
	ChallengeExpired  ChallengeStatus = "expired"
)

// Challenge is an asynchronous custom-duration head-to-head: the creator
// plays and shares a link, the opponent plays whenever within the 7-day
// window. No lobby, no synchronized start.
type Challenge struct {
	ID         string          `json:"id" gorm:"primaryKey"`
	DurationMS int             `json:"duration_ms" gorm:"not null"`
	Status     ChallengeStatus `json:"status" gorm:"type:varchar(16);default:'pending'"`
	ExpiresAt  time.Time       `json:"expires_at" gorm:"not null"`
	CreatedAt  time.Time       `json:"created_at" gorm:"autoCreateTime"`

	Entries []ChallengeEntry `json:"entries,omitempty" gorm:"foreignKey:ChallengeID"`
}

// ChallengeEntry is one submitted result. At most one entry per player_key.
type ChallengeEntry struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	ChallengeID string    `json:"challenge_id" gorm:"not null;index"`
	PlayerKey   string    `json:"player_key" gorm:"not null;index"`
	UID         string    `json:"uid"`
	Username    string    `json:"username"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	Score       int       `json:"score"`
	SubmittedAt time.Time `json:"submitted_at" gorm:"autoCreateTime"`
}
