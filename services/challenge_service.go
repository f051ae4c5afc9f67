package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Roshan1299/67-Royale/middleware"
	"github.com/Roshan1299/67-Royale/models"
	"github.com/Roshan1299/67-Royale/ratelimit"
	"github.com/Roshan1299/67-Royale/session"
)

const challengeTTL = 7 * 24 * time.Hour

// ChallengeService handles asynchronous head-to-head rounds: the creator
// plays now, shares a link, and the opponent plays any time within a week.
// No lobby and no synchronized start; each side gets its own session and the
// challenge completes on the second entry.
type ChallengeService struct {
	DB      *gorm.DB
	Codec   *session.Codec
	Limiter *ratelimit.Limiter
	AppURL  string
}

func NewChallengeService(db *gorm.DB, codec *session.Codec, limiter *ratelimit.Limiter, appURL string) *ChallengeService {
	return &ChallengeService{DB: db, Codec: codec, Limiter: limiter, AppURL: appURL}
}

// Create opens a challenge on a custom fixed duration. The rep-race mode is
// excluded: without a shared start there is no fair way to compare race
// times recorded days apart under different conditions, so challenges stick
// to fixed-clock rounds where higher reps win.
func (cs *ChallengeService) Create(c *fiber.Ctx) error {
	var req struct {
		DurationMS int `json:"duration_ms"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if models.Is67RepsMode(req.DurationMS) || !models.IsValidDuelDuration(req.DurationMS) {
		return c.Status(400).JSON(fiber.Map{"error": "invalid duration"})
	}

	challenge := models.Challenge{
		ID:         uuid.NewString(),
		DurationMS: req.DurationMS,
		Status:     models.ChallengePending,
		ExpiresAt:  time.Now().Add(challengeTTL),
	}
	if err := cs.DB.Create(&challenge).Error; err != nil {
		log.Printf("[CHALLENGE] create: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to create challenge"})
	}
	return c.Status(201).JSON(fiber.Map{
		"challenge_id": challenge.ID,
		"share_url":    fmt.Sprintf("%s/challenge/%s", strings.TrimRight(cs.AppURL, "/"), challenge.ID),
	})
}

// OpenSession mints a submission token for one side of a challenge. Each
// call gets a fresh participant key; the duplicate check at submit time is
// on the player's identity, so re-opening a session does not grant a second
// entry.
func (cs *ChallengeService) OpenSession(c *fiber.Ctx) error {
	var req struct {
		ChallengeID string `json:"challenge_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.ChallengeID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "challenge_id is required"})
	}

	challenge, status := cs.loadChallenge(c, req.ChallengeID)
	if challenge == nil {
		return status
	}
	if challenge.Status != models.ChallengePending {
		return c.Status(400).JSON(fiber.Map{"error": "challenge is closed"})
	}

	token, err := cs.Codec.Issue(session.Claims{
		Mode:        session.ModeChallenge,
		DurationMS:  challenge.DurationMS,
		ChallengeID: challenge.ID,
		PlayerKey:   session.NewPlayerKey(),
	})
	if err != nil {
		log.Printf("[CHALLENGE] issue session for %s: %v", challenge.ID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to open session"})
	}
	return c.JSON(fiber.Map{"token": token, "duration_ms": challenge.DurationMS})
}

// Submit records one entry. A player gets exactly one entry per challenge;
// the second distinct player's entry completes it and the higher score wins.
func (cs *ChallengeService) Submit(c *fiber.Ctx) error {
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

	claims := cs.Codec.Verify(req.Token)
	if claims == nil || claims.Mode != session.ModeChallenge || claims.ChallengeID == "" || claims.PlayerKey == "" {
		return c.Status(401).JSON(fiber.Map{"error": "invalid session"})
	}
	if ok, retry := cs.Limiter.Check(ratelimit.Key(c.IP(), claims.PlayerKey), ratelimit.DuelSubmit); !ok {
		return c.Status(429).JSON(fiber.Map{"error": "too many requests", "retry_after": retry})
	}
	if err := session.ValidateSubmissionTiming(claims, time.Now()); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	challenge, status := cs.loadChallenge(c, claims.ChallengeID)
	if challenge == nil {
		return status
	}
	if challenge.Status != models.ChallengePending {
		return c.Status(400).JSON(fiber.Map{"error": "challenge is closed"})
	}

	uid, username, avatarURL := middleware.Identity(c)
	entry := models.ChallengeEntry{
		ID:          uuid.NewString(),
		ChallengeID: challenge.ID,
		PlayerKey:   claims.PlayerKey,
		UID:         uid,
		Username:    username,
		AvatarURL:   avatarURL,
		Score:       *req.Score,
	}

	completed := false
	err := cs.DB.Transaction(func(tx *gorm.DB) error {
		var dup int64
		if err := tx.Model(&models.ChallengeEntry{}).
			Where("challenge_id = ? AND (uid = ? OR player_key = ?)", challenge.ID, uid, claims.PlayerKey).
			Count(&dup).Error; err != nil {
			return err
		}
		if dup > 0 {
			return fiber.NewError(400, "score already submitted")
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		var entries int64
		if err := tx.Model(&models.ChallengeEntry{}).
			Where("challenge_id = ?", challenge.ID).
			Count(&entries).Error; err != nil {
			return err
		}
		if entries < 2 {
			return nil
		}
		res := tx.Model(&models.Challenge{}).
			Where("id = ? AND status = ?", challenge.ID, models.ChallengePending).
			Update("status", models.ChallengeComplete)
		if res.Error != nil {
			return res.Error
		}
		completed = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}
		log.Printf("[CHALLENGE] submit %s: %v", challenge.ID, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	if !completed {
		return c.JSON(fiber.Map{"status": "waiting"})
	}
	return cs.result(c, challenge.ID)
}

// Get returns the challenge with its entries and, once complete, the winner.
func (cs *ChallengeService) Get(c *fiber.Ctx) error {
	challenge, status := cs.loadChallenge(c, c.Params("challengeId"))
	if challenge == nil {
		return status
	}
	if challenge.Status == models.ChallengeComplete {
		return cs.result(c, challenge.ID)
	}
	var entries []models.ChallengeEntry
	if err := cs.DB.Where("challenge_id = ?", challenge.ID).
		Order("submitted_at ASC").
		Find(&entries).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	challenge.Entries = entries
	return c.JSON(fiber.Map{"challenge": challenge})
}

func (cs *ChallengeService) result(c *fiber.Ctx, challengeID string) error {
	var challenge models.Challenge
	if err := cs.DB.Preload("Entries", func(db *gorm.DB) *gorm.DB {
		return db.Order("submitted_at ASC")
	}).First(&challenge, "id = ?", challengeID).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	resp := fiber.Map{"challenge": challenge, "status": "complete"}
	if len(challenge.Entries) == 2 {
		a, b := challenge.Entries[0], challenge.Entries[1]
		switch {
		case a.Score == b.Score:
			resp["tie"] = true
		case a.Score > b.Score:
			resp["winner_uid"] = a.UID
			resp["winner_username"] = a.Username
		default:
			resp["winner_uid"] = b.UID
			resp["winner_username"] = b.Username
		}
	}
	return c.JSON(resp)
}

// loadChallenge fetches and lazily expires a challenge; on failure it writes
// the error response and returns nil.
func (cs *ChallengeService) loadChallenge(c *fiber.Ctx, id string) (*models.Challenge, error) {
	var challenge models.Challenge
	err := cs.DB.First(&challenge, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, c.Status(404).JSON(fiber.Map{"error": "challenge not found"})
	}
	if err != nil {
		log.Printf("[CHALLENGE] load %s: %v", id, err)
		return nil, c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if challenge.Status == models.ChallengePending && time.Now().After(challenge.ExpiresAt) {
		if err := cs.DB.Model(&models.Challenge{}).
			Where("id = ? AND status = ?", challenge.ID, models.ChallengePending).
			Update("status", models.ChallengeExpired).Error; err != nil {
			log.Printf("[CHALLENGE] expire %s: %v", challenge.ID, err)
		}
		challenge.Status = models.ChallengeExpired
	}
	return &challenge, nil
}
