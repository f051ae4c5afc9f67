package models

import "time"

type TournamentStatus string

const (
	TournamentRegistration TournamentStatus = "registration"
	TournamentActive       TournamentStatus = "active"
	TournamentComplete     TournamentStatus = "complete"
	TournamentCancelled    TournamentStatus = "cancelled"
)

type ParticipantStatus string

const (
	ParticipantActive     ParticipantStatus = "active"
	ParticipantEliminated ParticipantStatus = "eliminated"
)

type MatchStatus string

const (
	MatchPending  MatchStatus = "pending"
	MatchReady    MatchStatus = "ready"
	MatchActive   MatchStatus = "active"
	MatchComplete MatchStatus = "complete"
)

// Tournament is a single-elimination bracket over one duration bucket.
// total_rounds = log2(max_players); current_round is recomputed after each
// advancement as the highest round holding a ready or active match.
type Tournament struct {
	ID             string           `json:"id" gorm:"primaryKey"`
	Name           string           `json:"name" gorm:"not null"`
	DurationMS     int              `json:"duration_ms" gorm:"not null"`
	Status         TournamentStatus `json:"status" gorm:"type:varchar(16);default:'registration';index"`
	MaxPlayers     int              `json:"max_players" gorm:"not null"`
	CurrentRound   int              `json:"current_round" gorm:"default:0"`
	TotalRounds    int              `json:"total_rounds" gorm:"not null"`
	CreatedBy      string           `json:"created_by" gorm:"not null;index"`
	CreatedAt      time.Time        `json:"created_at" gorm:"autoCreateTime"`
	StartedAt      *time.Time       `json:"started_at"`
	CompletedAt    *time.Time       `json:"completed_at"`
	WinnerUID      *string          `json:"winner_uid"`
	WinnerUsername *string          `json:"winner_username"`
	TrophyPrize    int              `json:"trophy_prize" gorm:"default:100"`

	// Not stored; filled by the list endpoint.
	PlayerCount int64 `json:"player_count,omitempty" gorm:"-"`
}

type TournamentParticipant struct {
	ID              string            `json:"id" gorm:"primaryKey"`
	TournamentID    string            `json:"tournament_id" gorm:"not null;index"`
	UID             string            `json:"uid" gorm:"not null;index"`
	Username        string            `json:"username"`
	AvatarURL       *string           `json:"avatar_url,omitempty"`
	Seed            int               `json:"seed" gorm:"default:0"`
	Status          ParticipantStatus `json:"status" gorm:"type:varchar(16);default:'active'"`
	EliminatedRound *int              `json:"eliminated_round"`
	RegisteredAt    time.Time         `json:"registered_at" gorm:"autoCreateTime"`
}

// TournamentMatch is one bracket node. Every match except the final carries a
// next_match_id into round+1; the completed match's match_number parity picks
// the slot it feeds (even -> slot 1, odd -> slot 2). A bye completes with the
// sole occupant as winner and no duel; a match whose both feeders resolve to
// nobody completes with no winner at all.
type TournamentMatch struct {
	ID               string      `json:"id" gorm:"primaryKey"`
	TournamentID     string      `json:"tournament_id" gorm:"not null;index"`
	Round            int         `json:"round" gorm:"not null"`
	MatchNumber      int         `json:"match_number" gorm:"not null"`
	Player1UID       *string     `json:"player1_uid"`
	Player1Username  *string     `json:"player1_username"`
	Player1AvatarURL *string     `json:"player1_avatar_url"`
	Player2UID       *string     `json:"player2_uid"`
	Player2Username  *string     `json:"player2_username"`
	Player2AvatarURL *string     `json:"player2_avatar_url"`
	WinnerUID        *string     `json:"winner_uid"`
	DuelID           *string     `json:"duel_id"`
	Status           MatchStatus `json:"status" gorm:"type:varchar(16);default:'pending';index"`
	Player1Score     *int        `json:"player1_score"`
	Player2Score     *int        `json:"player2_score"`
	NextMatchID      *string     `json:"next_match_id"`
}
