package services

import (
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/Roshan1299/67-Royale/models"
)

const leaderboardLimit = 100

// LeaderboardService serves the read-only listing endpoints over the score
// table and the trophy standings.
type LeaderboardService struct {
	DB    *gorm.DB
	Ranks *RankService
}

func NewLeaderboardService(db *gorm.DB, ranks *RankService) *LeaderboardService {
	return &LeaderboardService{DB: db, Ranks: ranks}
}

// Top returns the top scores for one duration bucket, all-time or trailing
// 24h, with competition ranking applied to ties.
func (ls *LeaderboardService) Top(c *fiber.Ctx) error {
	durationMS, err := strconv.Atoi(c.Query("duration_ms", strconv.Itoa(models.Duration6_7s)))
	if err != nil || !models.IsStandardDuration(durationMS) {
		return c.Status(400).JSON(fiber.Map{"error": "invalid duration"})
	}
	period := c.Query("period", "alltime")
	if period != "alltime" && period != "daily" {
		return c.Status(400).JSON(fiber.Map{"error": "period must be alltime or daily"})
	}

	order := "score DESC"
	if models.SortAscending(durationMS) {
		order = "score ASC"
	}
	q := ls.DB.Where("duration_ms = ?", durationMS).Order(order).Limit(leaderboardLimit)
	if period == "daily" {
		q = q.Where("created_at >= ?", time.Now().Add(-24*time.Hour))
	}

	var scores []models.Score
	if err := q.Find(&scores).Error; err != nil {
		log.Printf("[LEADERBOARD] top failed for bucket %d: %v", durationMS, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(fiber.Map{
		"duration_ms": durationMS,
		"period":      period,
		"entries":     AssignRanks(scores),
	})
}

type pvpEntry struct {
	models.UserStats
	Rank int `json:"rank"`
}

// PvP returns the trophy standings, tie-aware like the score boards.
func (ls *LeaderboardService) PvP(c *fiber.Ctx) error {
	var stats []models.UserStats
	if err := ls.DB.Order("trophies DESC").Limit(leaderboardLimit).Find(&stats).Error; err != nil {
		log.Printf("[LEADERBOARD] pvp: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	entries := make([]pvpEntry, len(stats))
	for i, s := range stats {
		rank := i + 1
		if i > 0 && s.Trophies == stats[i-1].Trophies {
			rank = entries[i-1].Rank
		}
		entries[i] = pvpEntry{UserStats: s, Rank: rank}
	}
	return c.JSON(fiber.Map{"entries": entries})
}

// GlobalStats reports overall play volume per bucket.
func (ls *LeaderboardService) GlobalStats(c *fiber.Ctx) error {
	var total int64
	if err := ls.DB.Model(&models.Score{}).Count(&total).Error; err != nil {
		log.Printf("[LEADERBOARD] stats: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	var perBucket []struct {
		DurationMS int   `json:"duration_ms"`
		N          int64 `json:"n"`
	}
	if err := ls.DB.Model(&models.Score{}).
		Select("duration_ms, COUNT(*) AS n").
		Group("duration_ms").
		Scan(&perBucket).Error; err != nil {
		log.Printf("[LEADERBOARD] stats per bucket: %v", err)
	}
	return c.JSON(fiber.Map{"total_games": total, "buckets": perBucket})
}

// UserStats returns one player's trophy balance; unknown players read as a
// zero balance rather than an error, matching what the profile page shows
// before a first match.
func (ls *LeaderboardService) UserStats(c *fiber.Ctx) error {
	uid := c.Query("uid")
	if uid == "" {
		return c.Status(400).JSON(fiber.Map{"error": "uid is required"})
	}

	var stats models.UserStats
	err := ls.DB.First(&stats, "uid = ?", uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(models.UserStats{UID: uid})
	}
	if err != nil {
		log.Printf("[LEADERBOARD] user stats %s: %v", uid, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(stats)
}
