package services

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Roshan1299/67-Royale/middleware"
	"github.com/Roshan1299/67-Royale/models"
	"github.com/Roshan1299/67-Royale/ratelimit"
	"github.com/Roshan1299/67-Royale/session"
)

// ScoreService handles solo play: minting a session for a round and accepting
// the single score submission that session authorizes.
type ScoreService struct {
	DB      *gorm.DB
	Codec   *session.Codec
	Limiter *ratelimit.Limiter
	Ranks   *RankService
}

func NewScoreService(db *gorm.DB, codec *session.Codec, limiter *ratelimit.Limiter, ranks *RankService) *ScoreService {
	return &ScoreService{DB: db, Codec: codec, Limiter: limiter, Ranks: ranks}
}

// OpenSession mints a solo session token for one of the standard duration
// buckets. Custom durations never reach the global leaderboard, so solo play
// is standard-only.
func (ss *ScoreService) OpenSession(c *fiber.Ctx) error {
	var req struct {
		DurationMS int `json:"duration_ms"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if !models.IsStandardDuration(req.DurationMS) {
		return c.Status(400).JSON(fiber.Map{"error": "invalid duration"})
	}

	token, err := ss.Codec.Issue(session.Claims{Mode: session.ModeNormal, DurationMS: req.DurationMS})
	if err != nil {
		log.Printf("[SCORE] issue session failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to open session"})
	}
	return c.JSON(fiber.Map{"token": token, "duration_ms": req.DurationMS})
}

// Submit records one solo score against the leaderboard. Keyed by IP alone so
// an attacker cannot dodge the limiter by rotating participant keys.
func (ss *ScoreService) Submit(c *fiber.Ctx) error {
	if ok, retry := ss.Limiter.Check(ratelimit.Key(c.IP()), ratelimit.SoloSubmit); !ok {
		return c.Status(429).JSON(fiber.Map{"error": "too many requests", "retry_after": retry})
	}

	var req struct {
		Token string `json:"token"`
		Score *int   `json:"score"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.Score == nil || *req.Score < 0 {
		return c.Status(400).JSON(fiber.Map{"error": "score must be a non-negative integer"})
	}

	claims := ss.Codec.Verify(req.Token)
	if claims == nil || claims.Mode != session.ModeNormal {
		return c.Status(401).JSON(fiber.Map{"error": "invalid session"})
	}
	if err := session.ValidateSubmissionTiming(claims, time.Now()); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	uid, username, avatarURL := middleware.Identity(c)
	record := models.Score{
		ID:         uuid.NewString(),
		UID:        uid,
		Username:   username,
		AvatarURL:  avatarURL,
		Score:      *req.Score,
		DurationMS: claims.DurationMS,
	}
	if err := ss.DB.Create(&record).Error; err != nil {
		log.Printf("[SCORE] save failed for uid %s: %v", uid, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to save score"})
	}

	resp := fiber.Map{"id": record.ID, "score": record.Score, "duration_ms": record.DurationMS}
	if ranks := ss.Ranks.ComputeRank(claims.DurationMS, *req.Score); ranks != nil {
		resp["rank_stats"] = ranks
	}
	return c.JSON(resp)
}
