package services

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Roshan1299/67-Royale/middleware"
	"github.com/Roshan1299/67-Royale/models"
	"github.com/Roshan1299/67-Royale/session"
)

const (
	// Tickets older than this are presumed abandoned and skipped by pairing.
	queueStaleness = 2 * time.Minute
	queueScanLimit = 10
)

// MatchmakingService pairs waiting players on the same duration bucket.
// There is no process-local queue state: who is waiting is always derived
// from the ticket table, so any number of instances can serve joins.
type MatchmakingService struct {
	DB *gorm.DB
}

func NewMatchmakingService(db *gorm.DB) *MatchmakingService {
	return &MatchmakingService{DB: db}
}

// Join pairs the caller with the first valid waiting ticket on the bucket,
// or parks a ticket of their own. Matched duels skip the lobby entirely:
// both seats are pre-marked ready and the start instant is already fixed.
func (ms *MatchmakingService) Join(c *fiber.Ctx) error {
	var req struct {
		DurationMS int `json:"duration_ms"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if !models.IsStandardDuration(req.DurationMS) {
		return c.Status(400).JSON(fiber.Map{"error": "invalid duration"})
	}
	uid, username, avatarURL := middleware.Identity(c)

	var candidates []models.MatchmakingTicket
	err := ms.DB.
		Where("duration_ms = ? AND status = ? AND uid != ? AND created_at > ?",
			req.DurationMS, models.TicketWaiting, uid, time.Now().Add(-queueStaleness)).
		Order("created_at ASC").
		Limit(queueScanLimit).
		Find(&candidates).Error
	if err != nil {
		log.Printf("[QUEUE] scan failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	for i := range candidates {
		duel, myKey, err := ms.claimTicket(&candidates[i], req.DurationMS, uid, username, avatarURL)
		if err != nil {
			log.Printf("[QUEUE] claim %s: %v", candidates[i].ID, err)
			continue
		}
		if duel == nil {
			continue // someone else matched this ticket first
		}
		// The caller's own ticket, if any, is now moot.
		ms.DB.Where("uid = ? AND duration_ms = ? AND status = ?", uid, req.DurationMS, models.TicketWaiting).
			Delete(&models.MatchmakingTicket{})
		return c.JSON(fiber.Map{
			"status":     "matched",
			"duel_id":    duel.ID,
			"player_key": myKey,
			"start_at":   duel.StartAt.UnixMilli(),
		})
	}

	ticket, err := ms.upsertTicket(uid, username, avatarURL, req.DurationMS)
	if err != nil {
		log.Printf("[QUEUE] upsert ticket: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(fiber.Map{"status": "waiting", "queue_id": ticket.ID})
}

// claimTicket materializes a matchmade duel for the opponent's ticket, then
// claims the ticket with a waiting→matched compare-and-set. If the claim
// loses (another join got there first) the freshly built duel is discarded
// and the scan moves on.
func (ms *MatchmakingService) claimTicket(ticket *models.MatchmakingTicket, durationMS int, uid, username string, avatarURL *string) (*models.Duel, string, error) {
	now := time.Now()
	startAt := now.Add(duelSyncDelay)
	duel := models.Duel{
		ID:         uuid.NewString(),
		DurationMS: durationMS,
		Status:     models.DuelActive,
		StartAt:    &startAt,
		ExpiresAt:  now.Add(duelTTL),
		Matchmade:  true,
	}
	opponent := models.DuelPlayer{
		ID:        uuid.NewString(),
		DuelID:    duel.ID,
		PlayerKey: session.NewPlayerKey(),
		UID:       ticket.UID,
		Username:  ticket.Username,
		AvatarURL: ticket.AvatarURL,
		Ready:     true,
	}
	self := models.DuelPlayer{
		ID:        uuid.NewString(),
		DuelID:    duel.ID,
		PlayerKey: session.NewPlayerKey(),
		UID:       uid,
		Username:  username,
		AvatarURL: avatarURL,
		Ready:     true,
	}

	claimed := false
	err := ms.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&duel).Error; err != nil {
			return err
		}
		if err := tx.Create(&opponent).Error; err != nil {
			return err
		}
		if err := tx.Create(&self).Error; err != nil {
			return err
		}
		res := tx.Model(&models.MatchmakingTicket{}).
			Where("id = ? AND status = ?", ticket.ID, models.TicketWaiting).
			Updates(map[string]interface{}{
				"status":             models.TicketMatched,
				"matched_duel_id":    duel.ID,
				"matched_player_key": opponent.PlayerKey,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound // ticket gone or taken; roll everything back
		}
		claimed = true
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	if !claimed {
		return nil, "", nil
	}
	return &duel, self.PlayerKey, nil
}

func (ms *MatchmakingService) upsertTicket(uid, username string, avatarURL *string, durationMS int) (*models.MatchmakingTicket, error) {
	var ticket models.MatchmakingTicket
	err := ms.DB.
		Where("uid = ? AND duration_ms = ? AND status = ?", uid, durationMS, models.TicketWaiting).
		First(&ticket).Error
	if err == nil {
		if err := ms.DB.Model(&ticket).Update("created_at", time.Now()).Error; err != nil {
			return nil, err
		}
		return &ticket, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	ticket = models.MatchmakingTicket{
		ID:         uuid.NewString(),
		UID:        uid,
		Username:   username,
		AvatarURL:  avatarURL,
		DurationMS: durationMS,
		Status:     models.TicketWaiting,
		CreatedAt:  time.Now(),
	}
	if err := ms.DB.Create(&ticket).Error; err != nil {
		return nil, err
	}
	return &ticket, nil
}

// Status is the polling read for a parked ticket.
func (ms *MatchmakingService) Status(c *fiber.Ctx) error {
	queueID := c.Query("queue_id")
	if queueID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "queue_id is required"})
	}

	var ticket models.MatchmakingTicket
	err := ms.DB.First(&ticket, "id = ?", queueID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(404).JSON(fiber.Map{"error": "ticket not found"})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	if ticket.Status == models.TicketMatched {
		return c.JSON(fiber.Map{
			"status":     "matched",
			"duel_id":    ticket.MatchedDuelID,
			"player_key": ticket.MatchedPlayerKey,
		})
	}
	return c.JSON(fiber.Map{"status": "waiting"})
}

// Leave removes a parked ticket. Deleting a ticket that is already gone is a
// success, so clients can fire-and-forget on navigation.
func (ms *MatchmakingService) Leave(c *fiber.Ctx) error {
	var req struct {
		QueueID string `json:"queue_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.QueueID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "queue_id is required"})
	}
	if err := ms.DB.Delete(&models.MatchmakingTicket{}, "id = ?", req.QueueID).Error; err != nil {
		log.Printf("[QUEUE] leave %s: %v", req.QueueID, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(fiber.Map{"success": true})
}
