package models

import "time"

type DuelStatus string

const (
	DuelWaiting  DuelStatus = "waiting"
	DuelActive   DuelStatus = "active"
	DuelComplete DuelStatus = "complete"
	DuelExpired  DuelStatus = "expired"
)

// Duel is a head-to-head match. Created by the initiator in `waiting`,
// promoted to `active` once both seats are ready and a start instant is
// fixed, and immutable after `complete`. Expiry is checked lazily on access,
// never by a background sweep.
type Duel struct {
	ID                string     `json:"id" gorm:"primaryKey"`
	DurationMS        int        `json:"duration_ms" gorm:"not null"`
	Status            DuelStatus `json:"status" gorm:"type:varchar(16);default:'waiting';index"`
	StartAt           *time.Time `json:"start_at"`
	ExpiresAt         time.Time  `json:"expires_at" gorm:"not null"`
	LobbyCode         *string    `json:"lobby_code" gorm:"type:varchar(6);index"`
	Matchmade         bool       `json:"matchmade" gorm:"default:false"`
	TrophiesAwarded   bool       `json:"trophies_awarded" gorm:"default:false"`
	TournamentID      *string    `json:"tournament_id,omitempty" gorm:"index"`
	TournamentMatchID *string    `json:"tournament_match_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at" gorm:"autoCreateTime"`

	Players []DuelPlayer `json:"players,omitempty" gorm:"foreignKey:DuelID"`
}

// Expired reports whether the duel has passed its deadline without
// finishing. Expiry is decided lazily on access, not by a sweeper.
func (d *Duel) Expired(now time.Time) bool {
	if d.Status == DuelComplete || d.Status == DuelExpired {
		return d.Status == DuelExpired
	}
	return now.After(d.ExpiresAt)
}

// DuelPlayer is one seat of a duel. The player_key is an opaque per-seat
// capability: holding it is the only credential needed to act on this seat.
// Score, once non-null, is never overwritten.
type DuelPlayer struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	DuelID      string     `json:"duel_id" gorm:"not null;index"`
	PlayerKey   string     `json:"player_key" gorm:"not null;index"`
	UID         string     `json:"uid" gorm:"index"`
	Username    string     `json:"username"`
	AvatarURL   *string    `json:"avatar_url,omitempty"`
	Ready       bool       `json:"ready" gorm:"default:false"`
	Score       *int       `json:"score"`
	SubmittedAt *time.Time `json:"submitted_at"`
}
