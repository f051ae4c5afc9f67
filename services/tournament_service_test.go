package services

import (
	"testing"

	"github.com/Roshan1299/67-Royale/models"
)

func createTournament(t *testing.T, env *testEnv, creator string, maxPlayers, durationMS int) string {
	t.Helper()
	code, resp := env.request(t, "POST", "/api/tournament/create", map[string]interface{}{
		"name":        "friday royale",
		"duration_ms": durationMS,
		"max_players": maxPlayers,
	}, creator)
	if code != 201 {
		t.Fatalf("create tournament: %d %v", code, resp)
	}
	return str(t, resp, "tournament_id")
}

func tournamentMatches(t *testing.T, env *testEnv, tournamentID string) []models.TournamentMatch {
	t.Helper()
	var matches []models.TournamentMatch
	if err := env.DB.Where("tournament_id = ?", tournamentID).
		Order("round ASC, match_number ASC").
		Find(&matches).Error; err != nil {
		t.Fatalf("load matches: %v", err)
	}
	return matches
}

func readyMatches(matches []models.TournamentMatch) []models.TournamentMatch {
	var out []models.TournamentMatch
	for _, m := range matches {
		if m.Status == models.MatchReady {
			out = append(out, m)
		}
	}
	return out
}

// playTournamentMatch drives one bracket match end to end: both players
// request the duel, ready up, start, and submit the score assigned to their
// uid. Returns the completed match row.
func playTournamentMatch(t *testing.T, env *testEnv, tournamentID string, m models.TournamentMatch, durationMS int, scores map[string]int) models.TournamentMatch {
	t.Helper()
	uids := []string{*m.Player1UID, *m.Player2UID}

	duelID := ""
	keys := map[string]string{}
	for _, uid := range uids {
		code, resp := env.request(t, "POST", "/api/tournament/match/start", map[string]interface{}{
			"tournament_id": tournamentID,
			"match_id":      m.ID,
		}, uid)
		if code != 200 {
			t.Fatalf("match start for %s: %d %v", uid, code, resp)
		}
		id := str(t, resp, "duel_id")
		if duelID == "" {
			duelID = id
		} else if id != duelID {
			t.Fatalf("players got different duels: %s vs %s", duelID, id)
		}
		keys[uid] = str(t, resp, "player_key")
	}

	for _, uid := range uids {
		code, resp := env.request(t, "POST", "/api/duel/ready", map[string]interface{}{
			"duel_id": duelID, "player_key": keys[uid], "ready": true,
		}, "")
		if code != 200 {
			t.Fatalf("ready: %d %v", code, resp)
		}
	}
	code, resp := env.request(t, "POST", "/api/duel/start", map[string]interface{}{"duel_id": duelID}, "")
	if code != 200 {
		t.Fatalf("start: %d %v", code, resp)
	}

	for _, uid := range uids {
		code, resp = env.request(t, "POST", "/api/duel/submit", map[string]interface{}{
			"token": duelToken(t, env, duelID, keys[uid], durationMS),
			"score": scores[uid],
		}, "")
		if code != 200 {
			t.Fatalf("submit for %s: %d %v", uid, code, resp)
		}
	}

	var done models.TournamentMatch
	if err := env.DB.First(&done, "id = ?", m.ID).Error; err != nil {
		t.Fatalf("reload match: %v", err)
	}
	if done.Status != models.MatchComplete {
		t.Fatalf("match not complete after both scores: %+v", done)
	}
	return done
}

func trophyCount(t *testing.T, env *testEnv, uid string) int {
	t.Helper()
	var stats models.UserStats
	if err := env.DB.First(&stats, "uid = ?", uid).Error; err != nil {
		t.Fatalf("load stats for %s: %v", uid, err)
	}
	return stats.Trophies
}

func TestTournamentFullBracket(t *testing.T) {
	env := newTestEnv(t)
	// Higher rep count always wins, so alice takes the whole bracket no
	// matter how the shuffle seeds it.
	scores := map[string]int{"alice": 40, "bob": 30, "carol": 20, "dave": 10}

	id := createTournament(t, env, "alice", 4, models.Duration6_7s)
	for _, uid := range []string{"bob", "carol", "dave"} {
		code, resp := env.request(t, "POST", "/api/tournament/join", map[string]interface{}{"tournament_id": id}, uid)
		if code != 200 {
			t.Fatalf("join %s: %d %v", uid, code, resp)
		}
	}
	code, resp := env.request(t, "POST", "/api/tournament/start", map[string]interface{}{"tournament_id": id}, "alice")
	if code != 200 {
		t.Fatalf("start: %d %v", code, resp)
	}

	matches := tournamentMatches(t, env, id)
	if len(matches) != 3 {
		t.Fatalf("match count = %d, want 3", len(matches))
	}
	semis := readyMatches(matches)
	if len(semis) != 2 {
		t.Fatalf("ready round-1 matches = %d, want 2", len(semis))
	}
	for _, m := range semis {
		done := playTournamentMatch(t, env, id, m, models.Duration6_7s, scores)
		wantWinner := *m.Player1UID
		if scores[*m.Player2UID] > scores[*m.Player1UID] {
			wantWinner = *m.Player2UID
		}
		if done.WinnerUID == nil || *done.WinnerUID != wantWinner {
			t.Fatalf("semifinal winner = %v, want %s", done.WinnerUID, wantWinner)
		}
		if done.Player1Score == nil || done.Player2Score == nil {
			t.Fatalf("semifinal scores not recorded: %+v", done)
		}
	}

	var tourn models.Tournament
	if err := env.DB.First(&tourn, "id = ?", id).Error; err != nil {
		t.Fatalf("reload tournament: %v", err)
	}
	if tourn.CurrentRound != 2 {
		t.Fatalf("current_round = %d, want 2", tourn.CurrentRound)
	}

	finals := readyMatches(tournamentMatches(t, env, id))
	if len(finals) != 1 || finals[0].Round != 2 {
		t.Fatalf("expected one ready final, got %+v", finals)
	}
	playTournamentMatch(t, env, id, finals[0], models.Duration6_7s, scores)

	if err := env.DB.First(&tourn, "id = ?", id).Error; err != nil {
		t.Fatalf("reload tournament: %v", err)
	}
	if tourn.Status != models.TournamentComplete {
		t.Fatalf("status = %s, want complete", tourn.Status)
	}
	if tourn.WinnerUID == nil || *tourn.WinnerUID != "alice" {
		t.Fatalf("winner = %v, want alice", tourn.WinnerUID)
	}
	if tourn.CompletedAt == nil {
		t.Fatal("completed_at not set")
	}

	// Payout: champion 100, runner-up 50, both semifinal losers 20.
	if got := trophyCount(t, env, "alice"); got != 100 {
		t.Fatalf("champion trophies = %d, want 100", got)
	}
	runnerUp := *finals[0].Player1UID
	if runnerUp == "alice" {
		runnerUp = *finals[0].Player2UID
	}
	if got := trophyCount(t, env, runnerUp); got != 50 {
		t.Fatalf("runner-up trophies = %d, want 50", got)
	}
	var total int
	for _, uid := range []string{"alice", "bob", "carol", "dave"} {
		total += trophyCount(t, env, uid)
	}
	if total != 100+50+20+20 {
		t.Fatalf("total payout = %d, want 190", total)
	}
}

func TestTournamentByeAdvancesWithoutDuel(t *testing.T) {
	env := newTestEnv(t)

	id := createTournament(t, env, "alice", 4, models.Duration20s)
	for _, uid := range []string{"bob", "carol"} {
		env.request(t, "POST", "/api/tournament/join", map[string]interface{}{"tournament_id": id}, uid)
	}
	code, resp := env.request(t, "POST", "/api/tournament/start", map[string]interface{}{"tournament_id": id}, "alice")
	if code != 200 {
		t.Fatalf("start: %d %v", code, resp)
	}

	matches := tournamentMatches(t, env, id)
	var bye, final *models.TournamentMatch
	for i := range matches {
		switch {
		case matches[i].Round == 1 && matches[i].Status == models.MatchComplete:
			bye = &matches[i]
		case matches[i].Round == 2:
			final = &matches[i]
		}
	}
	if bye == nil || bye.WinnerUID == nil || bye.DuelID != nil {
		t.Fatalf("expected a completed round-1 bye without a duel: %+v", bye)
	}
	if final == nil || final.Status != models.MatchPending {
		t.Fatalf("final should wait on the played semifinal: %+v", final)
	}
	// Bye winner is already slotted into the final.
	slotted := final.Player1UID
	if slotted == nil {
		slotted = final.Player2UID
	}
	if slotted == nil || *slotted != *bye.WinnerUID {
		t.Fatalf("final slot = %v, want bye winner %s", slotted, *bye.WinnerUID)
	}

	semis := readyMatches(matches)
	if len(semis) != 1 {
		t.Fatalf("ready round-1 matches = %d, want 1", len(semis))
	}
	scores := map[string]int{"alice": 30, "bob": 20, "carol": 10}
	playTournamentMatch(t, env, id, semis[0], models.Duration20s, scores)

	finals := readyMatches(tournamentMatches(t, env, id))
	if len(finals) != 1 || finals[0].Round != 2 {
		t.Fatalf("final not ready after semifinal: %+v", finals)
	}
	playTournamentMatch(t, env, id, finals[0], models.Duration20s, scores)

	var tourn models.Tournament
	if err := env.DB.First(&tourn, "id = ?", id).Error; err != nil {
		t.Fatalf("reload tournament: %v", err)
	}
	if tourn.Status != models.TournamentComplete || tourn.WinnerUID == nil {
		t.Fatalf("tournament did not finish: %+v", tourn)
	}
}

func TestTournamentCascadeSkipsEmptyBranch(t *testing.T) {
	env := newTestEnv(t)

	// Three players in an eight-slot bracket: one round-1 slot pair is
	// entirely empty, and its successor must complete by cascade instead of
	// waiting forever.
	id := createTournament(t, env, "alice", 8, models.Duration6_7s)
	for _, uid := range []string{"bob", "carol"} {
		env.request(t, "POST", "/api/tournament/join", map[string]interface{}{"tournament_id": id}, uid)
	}
	code, resp := env.request(t, "POST", "/api/tournament/start", map[string]interface{}{"tournament_id": id}, "alice")
	if code != 200 {
		t.Fatalf("start: %d %v", code, resp)
	}

	matches := tournamentMatches(t, env, id)
	byKey := map[[2]int]models.TournamentMatch{}
	for _, m := range matches {
		byKey[[2]int{m.Round, m.MatchNumber}] = m
	}

	for n := 0; n < 4; n++ {
		if m := byKey[[2]int{1, n}]; m.Status != models.MatchComplete {
			t.Fatalf("round-1 match %d should be complete (bye or empty): %+v", n, m)
		}
	}
	// Seed 1's semifinal is fed by a bye and an empty pair; the cascade
	// completes it with seed 1 as winner, no duel played.
	if m := byKey[[2]int{2, 0}]; m.Status != models.MatchComplete || m.WinnerUID == nil || m.DuelID != nil {
		t.Fatalf("cascaded semifinal: %+v", m)
	}
	playable := byKey[[2]int{2, 1}]
	if playable.Status != models.MatchReady || playable.Player1UID == nil || playable.Player2UID == nil {
		t.Fatalf("seed-2-vs-seed-3 semifinal should be ready: %+v", playable)
	}
	final := byKey[[2]int{3, 0}]
	if final.Status != models.MatchPending {
		t.Fatalf("final status = %s, want pending", final.Status)
	}
	if final.Player1UID == nil && final.Player2UID == nil {
		t.Fatal("cascaded winner never reached the final")
	}

	// Two seated players always play: a match with both slots filled must
	// never be auto-completed by the bye cascade.
	for _, m := range matches {
		if m.Player1UID != nil && m.Player2UID != nil && m.Status == models.MatchComplete {
			t.Fatalf("match %d/%d completed with two seated players and no duel played", m.Round, m.MatchNumber)
		}
	}
	var active int64
	env.DB.Model(&models.TournamentParticipant{}).
		Where("tournament_id = ? AND status = ?", id, models.ParticipantActive).
		Count(&active)
	if active != 3 {
		t.Fatalf("active participants after start = %d, want 3 (nobody eliminated without playing)", active)
	}

	// No match may sit pending once both of its feeders are finished.
	for _, m := range matches {
		if m.Status != models.MatchPending {
			continue
		}
		f1 := byKey[[2]int{m.Round - 1, 2 * m.MatchNumber}]
		f2 := byKey[[2]int{m.Round - 1, 2*m.MatchNumber + 1}]
		if f1.Status == models.MatchComplete && f2.Status == models.MatchComplete {
			t.Fatalf("match %d/%d stranded pending with finished feeders", m.Round, m.MatchNumber)
		}
	}

	var tourn models.Tournament
	if err := env.DB.First(&tourn, "id = ?", id).Error; err != nil {
		t.Fatalf("reload tournament: %v", err)
	}
	if tourn.CurrentRound != 2 {
		t.Fatalf("current_round = %d, want 2", tourn.CurrentRound)
	}

	scores := map[string]int{"alice": 30, "bob": 20, "carol": 10}
	playTournamentMatch(t, env, id, playable, models.Duration6_7s, scores)
	finals := readyMatches(tournamentMatches(t, env, id))
	if len(finals) != 1 || finals[0].Round != 3 {
		t.Fatalf("final not ready: %+v", finals)
	}
	playTournamentMatch(t, env, id, finals[0], models.Duration6_7s, scores)

	if err := env.DB.First(&tourn, "id = ?", id).Error; err != nil {
		t.Fatalf("reload tournament: %v", err)
	}
	if tourn.Status != models.TournamentComplete {
		t.Fatalf("status = %s, want complete", tourn.Status)
	}
}

func TestTournamentRegistrationRules(t *testing.T) {
	env := newTestEnv(t)
	id := createTournament(t, env, "alice", 4, models.Duration6_7s)

	// Duplicate registration.
	code, resp := env.request(t, "POST", "/api/tournament/join", map[string]interface{}{"tournament_id": id}, "alice")
	if code != 400 || resp["error"] != "already registered" {
		t.Fatalf("duplicate join: %d %v", code, resp)
	}

	// Not enough players to start.
	env.request(t, "POST", "/api/tournament/join", map[string]interface{}{"tournament_id": id}, "bob")
	code, resp = env.request(t, "POST", "/api/tournament/start", map[string]interface{}{"tournament_id": id}, "alice")
	if code != 400 {
		t.Fatalf("start with 2 players: %d %v", code, resp)
	}

	// Only the creator starts or cancels; the creator cannot just leave.
	env.request(t, "POST", "/api/tournament/join", map[string]interface{}{"tournament_id": id}, "carol")
	code, _ = env.request(t, "POST", "/api/tournament/start", map[string]interface{}{"tournament_id": id}, "bob")
	if code != 403 {
		t.Fatalf("non-creator start: %d", code)
	}
	code, _ = env.request(t, "POST", "/api/tournament/cancel", map[string]interface{}{"tournament_id": id}, "bob")
	if code != 403 {
		t.Fatalf("non-creator cancel: %d", code)
	}
	code, _ = env.request(t, "POST", "/api/tournament/leave", map[string]interface{}{"tournament_id": id}, "alice")
	if code != 400 {
		t.Fatalf("creator leave: %d", code)
	}

	// A withdrawn player frees their slot.
	code, _ = env.request(t, "POST", "/api/tournament/leave", map[string]interface{}{"tournament_id": id}, "carol")
	if code != 200 {
		t.Fatalf("leave: %d", code)
	}
	var count int64
	env.DB.Model(&models.TournamentParticipant{}).Where("tournament_id = ?", id).Count(&count)
	if count != 2 {
		t.Fatalf("participants after leave = %d, want 2", count)
	}
}

func TestTournamentCancelFreezesBracket(t *testing.T) {
	env := newTestEnv(t)
	id := createTournament(t, env, "alice", 4, models.Duration6_7s)
	for _, uid := range []string{"bob", "carol", "dave"} {
		env.request(t, "POST", "/api/tournament/join", map[string]interface{}{"tournament_id": id}, uid)
	}
	env.request(t, "POST", "/api/tournament/start", map[string]interface{}{"tournament_id": id}, "alice")

	code, resp := env.request(t, "POST", "/api/tournament/cancel", map[string]interface{}{"tournament_id": id}, "alice")
	if code != 200 {
		t.Fatalf("cancel: %d %v", code, resp)
	}

	var tourn models.Tournament
	if err := env.DB.First(&tourn, "id = ?", id).Error; err != nil {
		t.Fatalf("reload tournament: %v", err)
	}
	if tourn.Status != models.TournamentCancelled {
		t.Fatalf("status = %s, want cancelled", tourn.Status)
	}
	for _, m := range tournamentMatches(t, env, id) {
		if m.Status != models.MatchComplete && m.Status != models.MatchPending {
			t.Fatalf("match not frozen: %+v", m)
		}
	}

	// Frozen brackets reject new match duels.
	matches := tournamentMatches(t, env, id)
	code, resp = env.request(t, "POST", "/api/tournament/match/start", map[string]interface{}{
		"tournament_id": id, "match_id": matches[0].ID,
	}, "alice")
	if code != 404 {
		t.Fatalf("match start after cancel: %d %v", code, resp)
	}

	// Cancelled twice is an error, not a crash.
	code, _ = env.request(t, "POST", "/api/tournament/cancel", map[string]interface{}{"tournament_id": id}, "alice")
	if code != 400 {
		t.Fatalf("double cancel: %d", code)
	}
}

func TestTournamentListAndGet(t *testing.T) {
	env := newTestEnv(t)
	id := createTournament(t, env, "alice", 4, models.Duration6_7s)
	env.request(t, "POST", "/api/tournament/join", map[string]interface{}{"tournament_id": id}, "bob")

	code, resp := env.request(t, "GET", "/api/tournament/list", nil, "")
	if code != 200 {
		t.Fatalf("list: %d %v", code, resp)
	}
	items, ok := resp["tournaments"].([]interface{})
	if !ok || len(items) != 1 {
		t.Fatalf("list payload: %v", resp)
	}
	first := items[0].(map[string]interface{})
	if first["player_count"] != float64(2) {
		t.Fatalf("player_count = %v, want 2", first["player_count"])
	}

	code, resp = env.request(t, "GET", "/api/tournament/"+id, nil, "")
	if code != 200 {
		t.Fatalf("get: %d %v", code, resp)
	}
	if _, ok := resp["tournament"].(map[string]interface{}); !ok {
		t.Fatalf("get payload missing tournament: %v", resp)
	}
	participants, ok := resp["participants"].([]interface{})
	if !ok || len(participants) != 2 {
		t.Fatalf("participants = %v", resp["participants"])
	}

	code, resp = env.request(t, "GET", "/api/tournament/"+"missing-id", nil, "")
	if code != 404 {
		t.Fatalf("get missing: %d %v", code, resp)
	}
}
