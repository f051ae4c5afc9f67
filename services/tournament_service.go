package services

import (
	"errors"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Roshan1299/67-Royale/middleware"
	"github.com/Roshan1299/67-Royale/models"
	"github.com/Roshan1299/67-Royale/session"
)

const (
	minTournamentPlayers = 3

	runnerUpTrophies  = 50
	semifinalTrophies = 20
)

// TournamentService runs single-elimination brackets: registration, seeded
// bracket construction with bye handling, per-match duels, winner
// advancement, and prize distribution on completion. Advancement writes are
// scoped to one next-match row per completed match and are idempotent, so
// concurrent submissions from sibling matches never conflict.
type TournamentService struct {
	DB    *gorm.DB
	Stats *StatsService
	Duels *DuelService
}

func NewTournamentService(db *gorm.DB, stats *StatsService) *TournamentService {
	return &TournamentService{DB: db, Stats: stats}
}

// Create opens a tournament for registration and seats the creator.
func (ts *TournamentService) Create(c *fiber.Ctx) error {
	var req struct {
		Name       string `json:"name"`
		DurationMS int    `json:"duration_ms"`
		MaxPlayers int    `json:"max_players"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.Status(400).JSON(fiber.Map{"error": "name is required"})
	}
	if !models.IsValidDuelDuration(req.DurationMS) {
		return c.Status(400).JSON(fiber.Map{"error": "invalid duration"})
	}
	if req.MaxPlayers != 4 && req.MaxPlayers != 8 && req.MaxPlayers != 16 {
		return c.Status(400).JSON(fiber.Map{"error": "max_players must be 4, 8 or 16"})
	}

	uid, username, avatarURL := middleware.Identity(c)
	t := models.Tournament{
		ID:          uuid.NewString(),
		Name:        req.Name,
		DurationMS:  req.DurationMS,
		Status:      models.TournamentRegistration,
		MaxPlayers:  req.MaxPlayers,
		TotalRounds: totalRoundsFor(req.MaxPlayers),
		CreatedBy:   uid,
		TrophyPrize: 100,
	}
	creator := models.TournamentParticipant{
		ID:           uuid.NewString(),
		TournamentID: t.ID,
		UID:          uid,
		Username:     username,
		AvatarURL:    avatarURL,
		Status:       models.ParticipantActive,
	}
	err := ts.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&t).Error; err != nil {
			return err
		}
		return tx.Create(&creator).Error
	})
	if err != nil {
		log.Printf("[TOURNAMENT] create: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to create tournament"})
	}
	return c.Status(201).JSON(fiber.Map{"tournament_id": t.ID})
}

// Join registers the caller while the tournament is still open.
func (ts *TournamentService) Join(c *fiber.Ctx) error {
	var req struct {
		TournamentID string `json:"tournament_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.TournamentID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "tournament_id is required"})
	}
	uid, username, avatarURL := middleware.Identity(c)

	err := ts.DB.Transaction(func(tx *gorm.DB) error {
		var t models.Tournament
		if err := tx.First(&t, "id = ?", req.TournamentID).Error; err != nil {
			return err
		}
		if t.Status != models.TournamentRegistration {
			return fiber.NewError(400, "registration is closed")
		}
		var existing int64
		if err := tx.Model(&models.TournamentParticipant{}).
			Where("tournament_id = ? AND uid = ?", t.ID, uid).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return fiber.NewError(400, "already registered")
		}
		var count int64
		if err := tx.Model(&models.TournamentParticipant{}).
			Where("tournament_id = ?", t.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if int(count) >= t.MaxPlayers {
			return fiber.NewError(400, "tournament is full")
		}
		return tx.Create(&models.TournamentParticipant{
			ID:           uuid.NewString(),
			TournamentID: t.ID,
			UID:          uid,
			Username:     username,
			AvatarURL:    avatarURL,
			Status:       models.ParticipantActive,
		}).Error
	})
	return ts.respond(c, err, fiber.Map{"ok": true})
}

// Leave withdraws the caller before the bracket is built. The creator cannot
// leave their own tournament; they cancel it instead.
func (ts *TournamentService) Leave(c *fiber.Ctx) error {
	var req struct {
		TournamentID string `json:"tournament_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.TournamentID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "tournament_id is required"})
	}
	uid, _, _ := middleware.Identity(c)

	err := ts.DB.Transaction(func(tx *gorm.DB) error {
		var t models.Tournament
		if err := tx.First(&t, "id = ?", req.TournamentID).Error; err != nil {
			return err
		}
		if t.Status != models.TournamentRegistration {
			return fiber.NewError(400, "tournament already started")
		}
		if t.CreatedBy == uid {
			return fiber.NewError(400, "creator cannot leave; cancel the tournament instead")
		}
		return tx.Where("tournament_id = ? AND uid = ?", t.ID, uid).
			Delete(&models.TournamentParticipant{}).Error
	})
	return ts.respond(c, err, fiber.Map{"ok": true})
}

// Start closes registration, shuffles the field into seeds, builds the
// bracket, and propagates round-1 byes so no match is left waiting on a
// feeder that can never play.
func (ts *TournamentService) Start(c *fiber.Ctx) error {
	var req struct {
		TournamentID string `json:"tournament_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.TournamentID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "tournament_id is required"})
	}
	uid, _, _ := middleware.Identity(c)

	err := ts.DB.Transaction(func(tx *gorm.DB) error {
		var t models.Tournament
		if err := tx.First(&t, "id = ?", req.TournamentID).Error; err != nil {
			return err
		}
		if t.CreatedBy != uid {
			return fiber.NewError(403, "only the creator can start the tournament")
		}
		if t.Status != models.TournamentRegistration {
			return fiber.NewError(400, "tournament already started")
		}
		var participants []models.TournamentParticipant
		if err := tx.Where("tournament_id = ?", t.ID).
			Order("registered_at ASC").
			Find(&participants).Error; err != nil {
			return err
		}
		if len(participants) < minTournamentPlayers {
			return fiber.NewError(400, "at least 3 players are required")
		}

		rand.Shuffle(len(participants), func(i, j int) {
			participants[i], participants[j] = participants[j], participants[i]
		})
		for i := range participants {
			participants[i].Seed = i + 1
			if err := tx.Model(&models.TournamentParticipant{}).
				Where("id = ?", participants[i].ID).
				Update("seed", participants[i].Seed).Error; err != nil {
				return err
			}
		}

		matches := buildBracket(&t, participants)
		if err := tx.Create(&matches).Error; err != nil {
			return err
		}

		now := time.Now()
		if err := tx.Model(&models.Tournament{}).Where("id = ?", t.ID).
			Updates(map[string]interface{}{
				"status":        models.TournamentActive,
				"started_at":    now,
				"current_round": 1,
			}).Error; err != nil {
			return err
		}
		t.Status = models.TournamentActive

		// Byes (and double-byes) in round 1 are already complete; push their
		// winners up so every reachable match ends up ready, or pending on a
		// feeder that will actually play.
		for i := range matches {
			if matches[i].Round == 1 && matches[i].Status == models.MatchComplete {
				if err := ts.handleMatchComplete(tx, &t, &matches[i]); err != nil {
					return err
				}
			}
		}
		return ts.recomputeCurrentRound(tx, t.ID)
	})
	return ts.respond(c, err, fiber.Map{"ok": true})
}

// Cancel aborts a tournament before completion. Active brackets are
// soft-frozen: unfinished matches flip back to pending, nothing is deleted.
func (ts *TournamentService) Cancel(c *fiber.Ctx) error {
	var req struct {
		TournamentID string `json:"tournament_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.TournamentID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "tournament_id is required"})
	}
	uid, _, _ := middleware.Identity(c)

	err := ts.DB.Transaction(func(tx *gorm.DB) error {
		var t models.Tournament
		if err := tx.First(&t, "id = ?", req.TournamentID).Error; err != nil {
			return err
		}
		if t.CreatedBy != uid {
			return fiber.NewError(403, "only the creator can cancel the tournament")
		}
		if t.Status != models.TournamentRegistration && t.Status != models.TournamentActive {
			return fiber.NewError(400, "tournament cannot be cancelled")
		}
		if t.Status == models.TournamentActive {
			if err := tx.Model(&models.TournamentMatch{}).
				Where("tournament_id = ? AND status != ?", t.ID, models.MatchComplete).
				Update("status", models.MatchPending).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.Tournament{}).Where("id = ?", t.ID).
			Update("status", models.TournamentCancelled).Error
	})
	return ts.respond(c, err, fiber.Map{"ok": true})
}

// List returns recent tournaments with their registration counts.
func (ts *TournamentService) List(c *fiber.Ctx) error {
	var tournaments []models.Tournament
	if err := ts.DB.Order("created_at DESC").Limit(50).Find(&tournaments).Error; err != nil {
		log.Printf("[TOURNAMENT] list: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	if len(tournaments) > 0 {
		ids := make([]string, len(tournaments))
		for i := range tournaments {
			ids[i] = tournaments[i].ID
		}
		var counts []struct {
			TournamentID string
			N            int64
		}
		if err := ts.DB.Model(&models.TournamentParticipant{}).
			Select("tournament_id, COUNT(*) AS n").
			Where("tournament_id IN ?", ids).
			Group("tournament_id").
			Scan(&counts).Error; err != nil {
			log.Printf("[TOURNAMENT] list counts: %v", err)
		}
		byID := make(map[string]int64, len(counts))
		for _, row := range counts {
			byID[row.TournamentID] = row.N
		}
		for i := range tournaments {
			tournaments[i].PlayerCount = byID[tournaments[i].ID]
		}
	}
	return c.JSON(fiber.Map{"tournaments": tournaments})
}

// Get returns the full tournament view: header, participants, and the match
// tree in bracket order.
func (ts *TournamentService) Get(c *fiber.Ctx) error {
	id := c.Params("tournamentId")

	var t models.Tournament
	err := ts.DB.First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(404).JSON(fiber.Map{"error": "tournament not found"})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	var participants []models.TournamentParticipant
	if err := ts.DB.Where("tournament_id = ?", id).
		Order("seed ASC, registered_at ASC").
		Find(&participants).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	var matches []models.TournamentMatch
	if err := ts.DB.Where("tournament_id = ?", id).
		Order("round ASC, match_number ASC").
		Find(&matches).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	t.PlayerCount = int64(len(participants))

	return c.JSON(fiber.Map{
		"tournament":   t,
		"participants": participants,
		"matches":      matches,
	})
}

// StartMatch materializes (or returns) the duel behind a bracket match for
// one of its two players. The duel starts in the lobby state; both players
// still go through ready/start to fix the shared instant. If an earlier duel
// for the match expired unplayed, a fresh one replaces it.
func (ts *TournamentService) StartMatch(c *fiber.Ctx) error {
	var req struct {
		TournamentID string `json:"tournament_id"`
		MatchID      string `json:"match_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.TournamentID == "" || req.MatchID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "tournament_id and match_id are required"})
	}
	uid, _, _ := middleware.Identity(c)

	var t models.Tournament
	err := ts.DB.First(&t, "id = ? AND status = ?", req.TournamentID, models.TournamentActive).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(404).JSON(fiber.Map{"error": "active tournament not found"})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	var m models.TournamentMatch
	err = ts.DB.First(&m, "id = ? AND tournament_id = ?", req.MatchID, t.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(404).JSON(fiber.Map{"error": "match not found"})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if m.Status != models.MatchReady && m.Status != models.MatchActive {
		return c.Status(400).JSON(fiber.Map{"error": "match is not playable"})
	}
	isP1 := m.Player1UID != nil && *m.Player1UID == uid
	isP2 := m.Player2UID != nil && *m.Player2UID == uid
	if !isP1 && !isP2 {
		return c.Status(403).JSON(fiber.Map{"error": "not a player in this match"})
	}

	duel, err := ts.matchDuel(&t, &m)
	if err != nil {
		log.Printf("[TOURNAMENT] match duel for %s: %v", m.ID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to prepare match duel"})
	}

	for _, p := range duel.Players {
		if p.UID == uid {
			return c.JSON(fiber.Map{"duel_id": duel.ID, "player_key": p.PlayerKey})
		}
	}
	return c.Status(500).JSON(fiber.Map{"error": "failed to prepare match duel"})
}

// matchDuel returns the live duel for a bracket match, creating one (or
// replacing an expired one) under a compare-and-set on the match row so two
// racing players converge on a single duel.
func (ts *TournamentService) matchDuel(t *models.Tournament, m *models.TournamentMatch) (*models.Duel, error) {
	if m.DuelID != nil {
		existing, err := ts.Duels.loadDuel(*m.DuelID)
		if err != nil {
			return nil, err
		}
		if !ts.Duels.expireIfNeeded(existing) {
			return existing, nil
		}
	}

	now := time.Now()
	duel := models.Duel{
		ID:                uuid.NewString(),
		DurationMS:        t.DurationMS,
		Status:            models.DuelWaiting,
		ExpiresAt:         now.Add(duelTTL),
		TournamentID:      &t.ID,
		TournamentMatchID: &m.ID,
	}
	players := make([]models.DuelPlayer, 0, 2)
	for slot := 0; slot < 2; slot++ {
		uid, username, avatarURL := matchPlayer(m, slot)
		if uid == nil {
			continue
		}
		name := ""
		if username != nil {
			name = *username
		}
		players = append(players, models.DuelPlayer{
			ID:        uuid.NewString(),
			DuelID:    duel.ID,
			PlayerKey: session.NewPlayerKey(),
			UID:       *uid,
			Username:  name,
			AvatarURL: avatarURL,
		})
	}

	err := ts.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&duel).Error; err != nil {
			return err
		}
		if err := tx.Create(&players).Error; err != nil {
			return err
		}
		claim := tx.Model(&models.TournamentMatch{})
		if m.DuelID == nil {
			claim = claim.Where("id = ? AND duel_id IS NULL", m.ID)
		} else {
			claim = claim.Where("id = ? AND duel_id = ?", m.ID, *m.DuelID)
		}
		res := claim.Updates(map[string]interface{}{
			"duel_id": duel.ID,
			"status":  models.MatchActive,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound // another player claimed it; roll back ours
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		var fresh models.TournamentMatch
		if err := ts.DB.First(&fresh, "id = ?", m.ID).Error; err != nil {
			return nil, err
		}
		if fresh.DuelID == nil {
			return nil, errors.New("match has no duel after claim race")
		}
		*m = fresh
		return ts.Duels.loadDuel(*fresh.DuelID)
	}
	if err != nil {
		return nil, err
	}
	m.DuelID = &duel.ID
	m.Status = models.MatchActive
	duel.Players = players
	return &duel, nil
}

// HandleDuelComplete is the completion hook invoked by the duel state
// machine for bracket duels. The active→complete flip on the match row is a
// compare-and-set, so replayed hooks are no-ops.
func (ts *TournamentService) HandleDuelComplete(duel *models.Duel, players []models.DuelPlayer, winnerIdx int) error {
	return ts.DB.Transaction(func(tx *gorm.DB) error {
		var m models.TournamentMatch
		if err := tx.First(&m, "id = ?", *duel.TournamentMatchID).Error; err != nil {
			return err
		}
		var t models.Tournament
		if err := tx.First(&t, "id = ?", m.TournamentID).Error; err != nil {
			return err
		}
		if t.Status != models.TournamentActive {
			return nil
		}

		winnerUID := players[winnerIdx].UID
		updates := map[string]interface{}{
			"status":     models.MatchComplete,
			"winner_uid": winnerUID,
		}
		for _, p := range players {
			switch {
			case m.Player1UID != nil && p.UID == *m.Player1UID:
				updates["player1_score"] = p.Score
				m.Player1Score = p.Score
			case m.Player2UID != nil && p.UID == *m.Player2UID:
				updates["player2_score"] = p.Score
				m.Player2Score = p.Score
			}
		}
		res := tx.Model(&models.TournamentMatch{}).
			Where("id = ? AND status = ?", m.ID, models.MatchActive).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		m.Status = models.MatchComplete
		m.WinnerUID = &winnerUID

		if err := ts.handleMatchComplete(tx, &t, &m); err != nil {
			return err
		}
		return ts.recomputeCurrentRound(tx, t.ID)
	})
}

// handleMatchComplete eliminates the loser, pushes the winner into the next
// match's slot, and resolves whatever that made ready or cascade-completed.
// Safe to invoke more than once for the same match.
func (ts *TournamentService) handleMatchComplete(tx *gorm.DB, t *models.Tournament, m *models.TournamentMatch) error {
	if m.WinnerUID != nil && m.Player1UID != nil && m.Player2UID != nil {
		loser := *m.Player1UID
		if loser == *m.WinnerUID {
			loser = *m.Player2UID
		}
		if err := tx.Model(&models.TournamentParticipant{}).
			Where("tournament_id = ? AND uid = ?", t.ID, loser).
			Updates(map[string]interface{}{
				"status":           models.ParticipantEliminated,
				"eliminated_round": m.Round,
			}).Error; err != nil {
			return err
		}
	}

	if m.NextMatchID == nil {
		return ts.finalize(tx, t, m)
	}

	var next models.TournamentMatch
	if err := tx.First(&next, "id = ?", *m.NextMatchID).Error; err != nil {
		return err
	}

	if m.WinnerUID != nil {
		uid, username, avatarURL := winnerIdentity(m)
		updates := map[string]interface{}{}
		// Even-numbered matches feed slot one, odd feed slot two.
		if m.MatchNumber%2 == 0 {
			updates["player1_uid"] = uid
			updates["player1_username"] = username
			updates["player1_avatar_url"] = avatarURL
			next.Player1UID = uid
			next.Player1Username = username
			next.Player1AvatarURL = avatarURL
		} else {
			updates["player2_uid"] = uid
			updates["player2_username"] = username
			updates["player2_avatar_url"] = avatarURL
			next.Player2UID = uid
			next.Player2Username = username
			next.Player2AvatarURL = avatarURL
		}
		if err := tx.Model(&models.TournamentMatch{}).
			Where("id = ?", next.ID).
			Updates(updates).Error; err != nil {
			return err
		}
	}

	return ts.resolveNext(tx, t, &next)
}

// resolveNext decides a pending match's fate once its feeders settle: two
// occupants make it ready; a sole occupant whose feeders are both settled is
// a cascaded bye and completes immediately; no occupants at all completes it
// winnerless so the cascade keeps climbing.
func (ts *TournamentService) resolveNext(tx *gorm.DB, t *models.Tournament, next *models.TournamentMatch) error {
	if next.Status != models.MatchPending {
		return nil
	}

	filled := 0
	if next.Player1UID != nil {
		filled++
	}
	if next.Player2UID != nil {
		filled++
	}

	if filled == 2 {
		return tx.Model(&models.TournamentMatch{}).
			Where("id = ? AND status = ?", next.ID, models.MatchPending).
			Update("status", models.MatchReady).Error
	}

	// A feeder is settled only once it is complete AND its winner, if any,
	// has landed in this match's slots; a sibling bye can already be complete
	// while its winner is still in flight.
	var feeders []models.TournamentMatch
	if err := tx.Where("tournament_id = ? AND round = ? AND match_number IN ?",
		t.ID, next.Round-1,
		[]int{2 * next.MatchNumber, 2*next.MatchNumber + 1}).
		Find(&feeders).Error; err != nil {
		return err
	}
	if len(feeders) < 2 {
		return nil
	}
	for _, f := range feeders {
		if f.Status != models.MatchComplete {
			return nil
		}
		if f.WinnerUID != nil && !seatedIn(next, *f.WinnerUID) {
			return nil
		}
	}

	updates := map[string]interface{}{"status": models.MatchComplete}
	if filled == 1 {
		winner := next.Player1UID
		if winner == nil {
			winner = next.Player2UID
		}
		updates["winner_uid"] = winner
		next.WinnerUID = winner
	}
	res := tx.Model(&models.TournamentMatch{}).
		Where("id = ? AND status = ?", next.ID, models.MatchPending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}
	next.Status = models.MatchComplete
	return ts.handleMatchComplete(tx, t, next)
}

// finalize completes the tournament off the final's result and pays out:
// the prize pot to the champion, half to the runner-up, and a consolation to
// players knocked out in the semifinals.
func (ts *TournamentService) finalize(tx *gorm.DB, t *models.Tournament, final *models.TournamentMatch) error {
	winnerUID, winnerUsername, winnerAvatar := winnerIdentity(final)
	res := tx.Model(&models.Tournament{}).
		Where("id = ? AND status = ?", t.ID, models.TournamentActive).
		Updates(map[string]interface{}{
			"status":          models.TournamentComplete,
			"winner_uid":      winnerUID,
			"winner_username": winnerUsername,
			"completed_at":    time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}
	t.Status = models.TournamentComplete
	if winnerUID == nil {
		return nil
	}

	name := ""
	if winnerUsername != nil {
		name = *winnerUsername
	}
	if err := ts.Stats.ApplyTrophyDeltaTx(tx, *winnerUID, name, winnerAvatar, t.TrophyPrize); err != nil {
		return err
	}

	if final.Player1UID != nil && final.Player2UID != nil {
		slot := 0
		if *final.Player1UID == *winnerUID {
			slot = 1
		}
		uid, username, avatarURL := matchPlayer(final, slot)
		runnerName := ""
		if username != nil {
			runnerName = *username
		}
		if err := ts.Stats.ApplyTrophyDeltaTx(tx, *uid, runnerName, avatarURL, runnerUpTrophies); err != nil {
			return err
		}
	}

	var semifinalLosers []models.TournamentParticipant
	if err := tx.Where("tournament_id = ? AND status = ? AND eliminated_round = ?",
		t.ID, models.ParticipantEliminated, t.TotalRounds-1).
		Find(&semifinalLosers).Error; err != nil {
		return err
	}
	for _, p := range semifinalLosers {
		if err := ts.Stats.ApplyTrophyDeltaTx(tx, p.UID, p.Username, p.AvatarURL, semifinalTrophies); err != nil {
			return err
		}
	}
	return nil
}

// recomputeCurrentRound derives the live round from the match table: the
// highest round holding a ready or active match.
func (ts *TournamentService) recomputeCurrentRound(tx *gorm.DB, tournamentID string) error {
	var maxRound int
	if err := tx.Model(&models.TournamentMatch{}).
		Where("tournament_id = ? AND status IN ?", tournamentID,
			[]models.MatchStatus{models.MatchReady, models.MatchActive}).
		Select("COALESCE(MAX(round), 0)").
		Scan(&maxRound).Error; err != nil {
		return err
	}
	if maxRound == 0 {
		return nil
	}
	return tx.Model(&models.Tournament{}).
		Where("id = ?", tournamentID).
		Update("current_round", maxRound).Error
}

// respond maps transaction errors onto the API's error taxonomy.
func (ts *TournamentService) respond(c *fiber.Ctx, err error, ok fiber.Map) error {
	if err == nil {
		return c.JSON(ok)
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(404).JSON(fiber.Map{"error": "tournament not found"})
	}
	log.Printf("[TOURNAMENT] %s: %v", c.Path(), err)
	return c.Status(500).JSON(fiber.Map{"error": "database error"})
}
