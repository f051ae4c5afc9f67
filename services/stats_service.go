package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/Roshan1299/67-Royale/models"
)

// StatsService owns the per-player trophy balances. All writes go through
// ApplyTrophyDelta so the zero floor and the profile mirror stay consistent.
type StatsService struct {
	DB *gorm.DB
}

func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{DB: db}
}

// ApplyTrophyDelta adjusts a player's trophy balance, flooring at zero, and
// refreshes the cached username/avatar. A zero delta is a pure profile
// upsert, used to keep the PvP leaderboard current for non-winning players.
func (ss *StatsService) ApplyTrophyDelta(uid, username string, avatarURL *string, delta int) error {
	return ss.DB.Transaction(func(tx *gorm.DB) error {
		return ss.ApplyTrophyDeltaTx(tx, uid, username, avatarURL, delta)
	})
}

// ApplyTrophyDeltaTx is ApplyTrophyDelta inside a caller-owned transaction,
// so award blocks can bundle the delta with their write-once guard.
func (ss *StatsService) ApplyTrophyDeltaTx(tx *gorm.DB, uid, username string, avatarURL *string, delta int) error {
	var stats models.UserStats
	err := tx.First(&stats, "uid = ?", uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		trophies := delta
		if trophies < 0 {
			trophies = 0
		}
		return tx.Create(&models.UserStats{
			UID:       uid,
			Username:  username,
			AvatarURL: avatarURL,
			Trophies:  trophies,
		}).Error
	}
	if err != nil {
		return err
	}

	trophies := stats.Trophies + delta
	if trophies < 0 {
		trophies = 0
	}
	updates := map[string]interface{}{
		"trophies": trophies,
		"username": username,
	}
	if avatarURL != nil {
		updates["avatar_url"] = *avatarURL
	}
	return tx.Model(&stats).Updates(updates).Error
}
