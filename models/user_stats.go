package models

import "time"

// UserStats holds the per-player trophy balance and a cached identity
// snapshot for leaderboard rows. Trophies never go below zero.
type UserStats struct {
	UID       string    `json:"uid" gorm:"primaryKey"`
	Username  string    `json:"username"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	Trophies  int       `json:"trophies" gorm:"default:0;index"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
