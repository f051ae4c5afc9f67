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

const (
	// Countdown between a confirmed start and actual play, so both clients
	// begin on the same instant despite request latency.
	duelSyncDelay = 5 * time.Second

	duelTTL = 15 * time.Minute

	duelWinTrophies  = 30
	duelLossTrophies = -15
)

// DuelService drives one two-player match from creation through lobby,
// synchronized start, submission, and result. The two participants' clients
// share no process; every transition goes through the database, and the
// racy ones (seat scoring, completion side effects, trophy award) are
// conditional writes checked by rows affected.
type DuelService struct {
	DB      *gorm.DB
	Codec   *session.Codec
	Limiter *ratelimit.Limiter
	Ranks   *RankService
	Stats   *StatsService
	AppURL  string

	// Set after construction; duels created from a bracket report back here.
	Tournaments *TournamentService
}

func NewDuelService(db *gorm.DB, codec *session.Codec, limiter *ratelimit.Limiter, ranks *RankService, stats *StatsService, appURL string) *DuelService {
	return &DuelService{DB: db, Codec: codec, Limiter: limiter, Ranks: ranks, Stats: stats, AppURL: appURL}
}

// Create opens a duel in the lobby state with the caller in seat one and a
// shareable lobby code for the opponent.
func (ds *DuelService) Create(c *fiber.Ctx) error {
	var req struct {
		DurationMS int `json:"duration_ms"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if !models.IsValidDuelDuration(req.DurationMS) {
		return c.Status(400).JSON(fiber.Map{"error": "invalid duration"})
	}

	uid, username, avatarURL := middleware.Identity(c)
	code, err := session.NewLobbyCode()
	if err != nil {
		log.Printf("[DUEL] lobby code generation: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to create duel"})
	}

	duel := models.Duel{
		ID:         uuid.NewString(),
		DurationMS: req.DurationMS,
		Status:     models.DuelWaiting,
		ExpiresAt:  time.Now().Add(duelTTL),
		LobbyCode:  &code,
	}
	player := models.DuelPlayer{
		ID:        uuid.NewString(),
		DuelID:    duel.ID,
		PlayerKey: session.NewPlayerKey(),
		UID:       uid,
		Username:  username,
		AvatarURL: avatarURL,
	}
	err = ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&duel).Error; err != nil {
			return err
		}
		return tx.Create(&player).Error
	})
	if err != nil {
		log.Printf("[DUEL] create: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to create duel"})
	}

	return c.Status(201).JSON(fiber.Map{
		"duel_id":    duel.ID,
		"player_key": player.PlayerKey,
		"lobby_code": code,
		"share_url":  fmt.Sprintf("%s/duel/%s", strings.TrimRight(ds.AppURL, "/"), duel.ID),
	})
}

// Join seats the caller as the second player. Re-joining a duel the caller
// already sits in returns the existing key instead of an error.
func (ds *DuelService) Join(c *fiber.Ctx) error {
	var req struct {
		DuelID string `json:"duel_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.DuelID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "duel_id is required"})
	}

	duel, err := ds.loadDuel(req.DuelID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(404).JSON(fiber.Map{"error": "duel not found"})
	}
	if err != nil {
		log.Printf("[DUEL] load %s: %v", req.DuelID, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if ds.expireIfNeeded(duel) {
		return c.Status(400).JSON(fiber.Map{"error": "duel has expired"})
	}

	uid, username, avatarURL := middleware.Identity(c)
	for _, p := range duel.Players {
		if p.UID == uid {
			return c.JSON(fiber.Map{"player_key": p.PlayerKey})
		}
	}
	if duel.Status != models.DuelWaiting {
		return c.Status(400).JSON(fiber.Map{"error": "duel already started"})
	}
	if len(duel.Players) >= 2 {
		return c.Status(400).JSON(fiber.Map{"error": "duel is full"})
	}

	player := models.DuelPlayer{
		ID:        uuid.NewString(),
		DuelID:    duel.ID,
		PlayerKey: session.NewPlayerKey(),
		UID:       uid,
		Username:  username,
		AvatarURL: avatarURL,
	}
	if err := ds.DB.Create(&player).Error; err != nil {
		log.Printf("[DUEL] join %s: %v", duel.ID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to join duel"})
	}
	return c.JSON(fiber.Map{"player_key": player.PlayerKey})
}

// SetReady flips the ready flag for the caller's seat, identified solely by
// the seat's capability key. Ready flags are only mutable while the duel is
// still in the lobby; the status subquery in the UPDATE keeps that check
// atomic against a concurrent start.
func (ds *DuelService) SetReady(c *fiber.Ctx) error {
	var req struct {
		DuelID    string `json:"duel_id"`
		PlayerKey string `json:"player_key"`
		Ready     *bool  `json:"ready"`
	}
	if err := c.BodyParser(&req); err != nil || req.DuelID == "" || req.PlayerKey == "" || req.Ready == nil {
		return c.Status(400).JSON(fiber.Map{"error": "duel_id, player_key and ready are required"})
	}

	duel, err := ds.loadDuel(req.DuelID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(404).JSON(fiber.Map{"error": "duel not found"})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if ds.expireIfNeeded(duel) {
		return c.Status(400).JSON(fiber.Map{"error": "duel has expired"})
	}
	if duel.Status != models.DuelWaiting {
		return c.Status(400).JSON(fiber.Map{"error": "duel already started"})
	}

	res := ds.DB.Model(&models.DuelPlayer{}).
		Where("duel_id = ? AND player_key = ?", req.DuelID, req.PlayerKey).
		Where("(SELECT status FROM duels WHERE duels.id = ?) = ?", req.DuelID, models.DuelWaiting).
		Update("ready", *req.Ready)
	if res.Error != nil {
		log.Printf("[DUEL] ready %s: %v", req.DuelID, res.Error)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if res.RowsAffected == 0 {
		for _, p := range duel.Players {
			if p.PlayerKey == req.PlayerKey {
				return c.Status(400).JSON(fiber.Map{"error": "duel already started"})
			}
		}
		return c.Status(404).JSON(fiber.Map{"error": "player not found"})
	}
	return c.JSON(fiber.Map{"ok": true})
}

// Start fixes the shared start instant. Requires a full lobby with both
// seats ready; the waiting→active flip is a compare-and-set that re-checks
// both ready flags in the same statement, so a seat going un-ready cannot
// slip in between the read and the flip, and two racing start calls agree on
// a single instant.
func (ds *DuelService) Start(c *fiber.Ctx) error {
	var req struct {
		DuelID string `json:"duel_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.DuelID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "duel_id is required"})
	}

	duel, err := ds.loadDuel(req.DuelID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(404).JSON(fiber.Map{"error": "duel not found"})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if ds.expireIfNeeded(duel) {
		return c.Status(400).JSON(fiber.Map{"error": "duel has expired"})
	}
	if duel.Status == models.DuelActive && duel.StartAt != nil {
		return c.JSON(fiber.Map{"start_at": duel.StartAt.UnixMilli()})
	}
	if duel.Status != models.DuelWaiting {
		return c.Status(400).JSON(fiber.Map{"error": "duel already finished"})
	}
	if len(duel.Players) != 2 {
		return c.Status(400).JSON(fiber.Map{"error": "duel needs two players"})
	}
	for _, p := range duel.Players {
		if !p.Ready {
			return c.Status(400).JSON(fiber.Map{"error": "both players must be ready"})
		}
	}

	startAt := time.Now().Add(duelSyncDelay)
	res := ds.DB.Model(&models.Duel{}).
		Where("id = ? AND status = ?", duel.ID, models.DuelWaiting).
		Where("(SELECT COUNT(*) FROM duel_players WHERE duel_players.duel_id = ? AND duel_players.ready = ?) = 2",
			duel.ID, true).
		Updates(map[string]interface{}{"status": models.DuelActive, "start_at": startAt})
	if res.Error != nil {
		log.Printf("[DUEL] start %s: %v", duel.ID, res.Error)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if res.RowsAffected == 0 {
		// Either the other start call already fixed the instant, or a seat
		// went un-ready under us.
		fresh, err := ds.loadDuel(duel.ID)
		if err != nil || fresh.StartAt == nil {
			return c.Status(400).JSON(fiber.Map{"error": "both players must be ready"})
		}
		return c.JSON(fiber.Map{"start_at": fresh.StartAt.UnixMilli()})
	}
	return c.JSON(fiber.Map{"start_at": startAt.UnixMilli()})
}

// FindByCode resolves a lobby code to an open duel.
func (ds *DuelService) FindByCode(c *fiber.Ctx) error {
	code := strings.ToUpper(strings.TrimSpace(c.Query("code")))
	if len(code) != 6 {
		return c.Status(400).JSON(fiber.Map{"error": "code must be 6 characters"})
	}

	var duel models.Duel
	err := ds.DB.
		Where("lobby_code = ? AND status = ? AND expires_at > ?", code, models.DuelWaiting, time.Now()).
		Order("created_at DESC").
		First(&duel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(404).JSON(fiber.Map{"error": "no open duel with that code"})
	}
	if err != nil {
		log.Printf("[DUEL] find by code: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(fiber.Map{"duel_id": duel.ID})
}

// OpenSession mints the submission token for one seat of a started duel.
// The token's clock is anchored to the shared start instant, so the
// submission window is identical for both seats.
func (ds *DuelService) OpenSession(c *fiber.Ctx) error {
	var req struct {
		DuelID    string `json:"duel_id"`
		PlayerKey string `json:"player_key"`
	}
	if err := c.BodyParser(&req); err != nil || req.DuelID == "" || req.PlayerKey == "" {
		return c.Status(400).JSON(fiber.Map{"error": "duel_id and player_key are required"})
	}

	duel, err := ds.loadDuel(req.DuelID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(404).JSON(fiber.Map{"error": "duel not found"})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if ds.expireIfNeeded(duel) {
		return c.Status(400).JSON(fiber.Map{"error": "duel has expired"})
	}
	if duel.Status != models.DuelActive || duel.StartAt == nil {
		return c.Status(400).JSON(fiber.Map{"error": "duel has not started"})
	}

	var seat *models.DuelPlayer
	for i := range duel.Players {
		if duel.Players[i].PlayerKey == req.PlayerKey {
			seat = &duel.Players[i]
			break
		}
	}
	if seat == nil {
		return c.Status(404).JSON(fiber.Map{"error": "player not found"})
	}

	token, err := ds.Codec.Issue(session.Claims{
		Mode:       session.ModeDuel,
		DurationMS: duel.DurationMS,
		DuelID:     duel.ID,
		PlayerKey:  seat.PlayerKey,
		IssuedAt:   duel.StartAt.UnixMilli(),
	})
	if err != nil {
		log.Printf("[DUEL] issue session for %s: %v", duel.ID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to open session"})
	}
	return c.JSON(fiber.Map{
		"token":       token,
		"start_at":    duel.StartAt.UnixMilli(),
		"duration_ms": duel.DurationMS,
	})
}

// Submit records the caller's score exactly once. The seat write targets only
// rows whose score is still null, so a replayed or duplicated submission
// cannot overwrite a recorded result. Whichever submitter observes both
// scores first claims the completion side effects through another
// compare-and-set.
func (ds *DuelService) Submit(c *fiber.Ctx) error {
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

	claims := ds.Codec.Verify(req.Token)
	if claims == nil || claims.Mode != session.ModeDuel || claims.DuelID == "" || claims.PlayerKey == "" {
		return c.Status(401).JSON(fiber.Map{"error": "invalid session"})
	}

	if ok, retry := ds.Limiter.Check(ratelimit.Key(c.IP(), claims.PlayerKey), ratelimit.DuelSubmit); !ok {
		return c.Status(429).JSON(fiber.Map{"error": "too many requests", "retry_after": retry})
	}
	if err := session.ValidateSubmissionTiming(claims, time.Now()); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	duel, err := ds.loadDuel(claims.DuelID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(404).JSON(fiber.Map{"error": "duel not found"})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if ds.expireIfNeeded(duel) {
		return c.Status(400).JSON(fiber.Map{"error": "duel has expired"})
	}
	if duel.Status != models.DuelActive {
		return c.Status(400).JSON(fiber.Map{"error": "duel is not accepting scores"})
	}

	now := time.Now()
	res := ds.DB.Model(&models.DuelPlayer{}).
		Where("duel_id = ? AND player_key = ? AND score IS NULL", duel.ID, claims.PlayerKey).
		Updates(map[string]interface{}{"score": *req.Score, "submitted_at": now})
	if res.Error != nil {
		log.Printf("[DUEL] submit %s: %v", duel.ID, res.Error)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if res.RowsAffected == 0 {
		var seat models.DuelPlayer
		err := ds.DB.First(&seat, "duel_id = ? AND player_key = ?", duel.ID, claims.PlayerKey).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "player not found"})
		}
		return c.Status(400).JSON(fiber.Map{"error": "score already submitted"})
	}

	duel, err = ds.loadDuel(duel.ID)
	if err != nil {
		log.Printf("[DUEL] reload %s: %v", claims.DuelID, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if len(duel.Players) != 2 || duel.Players[0].Score == nil || duel.Players[1].Score == nil {
		return c.JSON(fiber.Map{"status": "waiting"})
	}

	ds.completeDuel(duel)
	return c.JSON(fiber.Map{
		"status": "complete",
		"result": buildResult(duel.DurationMS, duel.Players),
	})
}

type duelPlayerView struct {
	models.DuelPlayer
	RankStats *RankStats `json:"rank_stats,omitempty"`
}

// Get returns the duel with its seats, attaching rank stats per seat once a
// standard-duration duel has completed.
func (ds *DuelService) Get(c *fiber.Ctx) error {
	duel, err := ds.loadDuel(c.Params("duelId"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(404).JSON(fiber.Map{"error": "duel not found"})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	ds.expireIfNeeded(duel)

	players := make([]duelPlayerView, len(duel.Players))
	scoredDone := duel.Status == models.DuelComplete && models.IsStandardDuration(duel.DurationMS)
	for i, p := range duel.Players {
		players[i] = duelPlayerView{DuelPlayer: p}
		if scoredDone && p.Score != nil {
			players[i].RankStats = ds.Ranks.ComputeRank(duel.DurationMS, *p.Score)
		}
	}

	resp := fiber.Map{"duel": duel, "players": players}
	if duel.Status == models.DuelComplete && len(duel.Players) == 2 &&
		duel.Players[0].Score != nil && duel.Players[1].Score != nil {
		resp["result"] = buildResult(duel.DurationMS, duel.Players)
	}
	duel.Players = nil
	return c.JSON(resp)
}

func (ds *DuelService) loadDuel(id string) (*models.Duel, error) {
	var duel models.Duel
	if err := ds.DB.Preload("Players", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}).First(&duel, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &duel, nil
}

// expireIfNeeded lazily flips a past-deadline duel to expired.
func (ds *DuelService) expireIfNeeded(d *models.Duel) bool {
	if !d.Expired(time.Now()) {
		return false
	}
	if d.Status != models.DuelExpired {
		if err := ds.DB.Model(&models.Duel{}).
			Where("id = ? AND status IN ?", d.ID, []models.DuelStatus{models.DuelWaiting, models.DuelActive}).
			Update("status", models.DuelExpired).Error; err != nil {
			log.Printf("[DUEL] expire %s: %v", d.ID, err)
		}
		d.Status = models.DuelExpired
	}
	return true
}

// decideOutcome returns the index of the winning seat, or -1 for a tie.
func decideOutcome(durationMS int, players []models.DuelPlayer) int {
	a, b := *players[0].Score, *players[1].Score
	if a == b {
		return -1
	}
	if models.SortAscending(durationMS) == (a < b) {
		return 0
	}
	return 1
}

// absoluteWinner breaks ties by earliest submission. Brackets cannot advance
// without a winner, so a drawn tournament duel goes to whoever finished first.
func absoluteWinner(durationMS int, players []models.DuelPlayer) int {
	if w := decideOutcome(durationMS, players); w >= 0 {
		return w
	}
	if players[1].SubmittedAt != nil && players[0].SubmittedAt != nil &&
		players[1].SubmittedAt.Before(*players[0].SubmittedAt) {
		return 1
	}
	return 0
}

type DuelResult struct {
	Tie             bool    `json:"tie"`
	WinnerUID       *string `json:"winner_uid,omitempty"`
	WinnerUsername  *string `json:"winner_username,omitempty"`
	WinnerPlayerKey *string `json:"winner_player_key,omitempty"`
}

func buildResult(durationMS int, players []models.DuelPlayer) DuelResult {
	w := decideOutcome(durationMS, players)
	if w < 0 {
		return DuelResult{Tie: true}
	}
	return DuelResult{
		WinnerUID:       &players[w].UID,
		WinnerUsername:  &players[w].Username,
		WinnerPlayerKey: &players[w].PlayerKey,
	}
}

// completeDuel runs the both-submitted side effects. The active→complete
// compare-and-set elects exactly one of the two racing submitters to run
// them; the loser returns immediately and just reports the result it read.
func (ds *DuelService) completeDuel(duel *models.Duel) {
	res := ds.DB.Model(&models.Duel{}).
		Where("id = ? AND status = ?", duel.ID, models.DuelActive).
		Update("status", models.DuelComplete)
	if res.Error != nil {
		log.Printf("[DUEL] complete %s: %v", duel.ID, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		duel.Status = models.DuelComplete
		return
	}
	duel.Status = models.DuelComplete
	players := duel.Players

	// Recorded scores are the source of truth; enrichment failures below are
	// logged and skipped, never rolled back.
	if models.IsStandardDuration(duel.DurationMS) {
		for _, p := range players {
			rec := models.Score{
				ID:         uuid.NewString(),
				UID:        p.UID,
				Username:   p.Username,
				AvatarURL:  p.AvatarURL,
				Score:      *p.Score,
				DurationMS: duel.DurationMS,
			}
			if err := ds.DB.Create(&rec).Error; err != nil {
				log.Printf("[DUEL] append score for %s in %s: %v", p.UID, duel.ID, err)
			}
		}
	}

	if duel.Matchmade {
		ds.awardTrophies(duel, players)
	}

	if duel.TournamentMatchID != nil && ds.Tournaments != nil {
		winner := absoluteWinner(duel.DurationMS, players)
		if err := ds.Tournaments.HandleDuelComplete(duel, players, winner); err != nil {
			log.Printf("[DUEL] tournament hand-off for %s: %v", duel.ID, err)
		}
	}
}

// awardTrophies distributes the matchmade stakes exactly once, claimed by a
// write-once guard inside the same transaction as the balance writes.
func (ds *DuelService) awardTrophies(duel *models.Duel, players []models.DuelPlayer) {
	winner := decideOutcome(duel.DurationMS, players)
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Duel{}).
			Where("id = ? AND trophies_awarded = ?", duel.ID, false).
			Update("trophies_awarded", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		for i, p := range players {
			delta := 0
			if winner == i {
				delta = duelWinTrophies
			} else if winner >= 0 {
				delta = duelLossTrophies
			}
			if err := ds.Stats.ApplyTrophyDeltaTx(tx, p.UID, p.Username, p.AvatarURL, delta); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("[DUEL] trophy award for %s: %v", duel.ID, err)
	}
}
