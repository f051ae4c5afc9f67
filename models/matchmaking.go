package models

import "time"

type TicketStatus string

const (
	TicketWaiting TicketStatus = "waiting"
	TicketMatched TicketStatus = "matched"
)

// MatchmakingTicket is a queue entry for one player waiting for an opponent
// at a given duration bucket. Repeat joins refresh the timestamp of the
// existing ticket instead of creating a duplicate; entries older than the
// staleness threshold are skipped by the pairing scan.
type MatchmakingTicket struct {
	ID               string       `json:"id" gorm:"primaryKey"`
	UID              string       `json:"uid" gorm:"not null;index"`
	Username         string       `json:"username"`
	AvatarURL        *string      `json:"avatar_url,omitempty"`
	DurationMS       int          `json:"duration_ms" gorm:"not null;index"`
	Status           TicketStatus `json:"status" gorm:"type:varchar(16);default:'waiting';index"`
	CreatedAt        time.Time    `json:"created_at" gorm:"not null"`
	MatchedDuelID    *string      `json:"matched_duel_id"`
	MatchedPlayerKey *string      `json:"matched_player_key"`
}
