package services

import (
	"log"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/Roshan1299/67-Royale/models"
)

// RankService answers "where does this score sit" questions against the
// append-only score table. Ranking never blocks a submission: every query
// failure is logged and surfaced to callers as a nil result, which the API
// renders as "ranks unavailable".
type RankService struct {
	DB *gorm.DB
}

func NewRankService(db *gorm.DB) *RankService {
	return &RankService{DB: db}
}

type RankStats struct {
	AllTimeRank int `json:"all_time_rank"`
	DailyRank   int `json:"daily_rank"`
	Percentile  int `json:"percentile"`
	TotalCount  int `json:"total_count"`
}

// ComputeRank returns all-time and trailing-24h ranks for a score in the
// given duration bucket. Rank is 1 + the number of strictly better scores,
// where better means lower in the rep-race bucket (elapsed time) and higher
// in the timed buckets (rep counts).
func (rs *RankService) ComputeRank(durationMS, score int) *RankStats {
	better := "score > ?"
	if models.SortAscending(durationMS) {
		better = "score < ?"
	}

	var total int64
	if err := rs.DB.Model(&models.Score{}).
		Where("duration_ms = ?", durationMS).
		Count(&total).Error; err != nil {
		log.Printf("[RANK] count failed for bucket %d: %v", durationMS, err)
		return nil
	}

	var betterAllTime int64
	if err := rs.DB.Model(&models.Score{}).
		Where("duration_ms = ? AND "+better, durationMS, score).
		Count(&betterAllTime).Error; err != nil {
		log.Printf("[RANK] all-time rank failed for bucket %d: %v", durationMS, err)
		return nil
	}

	dayAgo := time.Now().Add(-24 * time.Hour)
	var betterDaily int64
	if err := rs.DB.Model(&models.Score{}).
		Where("duration_ms = ? AND created_at >= ? AND "+better, durationMS, dayAgo, score).
		Count(&betterDaily).Error; err != nil {
		log.Printf("[RANK] daily rank failed for bucket %d: %v", durationMS, err)
		return nil
	}

	allTime := int(betterAllTime) + 1
	percentile := 1
	if total > 0 {
		percentile = int(math.Round(float64(allTime) / float64(total) * 100))
	}

	return &RankStats{
		AllTimeRank: allTime,
		DailyRank:   int(betterDaily) + 1,
		Percentile:  percentile,
		TotalCount:  int(total),
	}
}

type RankedScore struct {
	models.Score
	Rank int `json:"rank"`
}

// AssignRanks walks a score-sorted slice and applies competition ranking:
// tied scores share a rank and the next distinct score's rank skips past the
// tie block, so [90,90,80] ranks as [1,1,3].
func AssignRanks(scores []models.Score) []RankedScore {
	ranked := make([]RankedScore, len(scores))
	for i, s := range scores {
		rank := i + 1
		if i > 0 && s.Score == scores[i-1].Score {
			rank = ranked[i-1].Rank
		}
		ranked[i] = RankedScore{Score: s, Rank: rank}
	}
	return ranked
}
