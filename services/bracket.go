package services

import (
	"github.com/google/uuid"

	"github.com/Roshan1299/67-Royale/models"
)

// bracketOrder returns the slot order for n seeds (n a power of two, seeds
// 0-based). Defined recursively: order(2) = [0,1]; order(2k) emits, for each
// h in order(k), h followed by its mirror 2k-1-h. Consecutive pairs become
// round-1 matches, which yields 1v8 / 4v5 / 2v7 / 3v6 for eight seeds and
// keeps the top two seeds apart until the final.
func bracketOrder(n int) []int {
	if n <= 2 {
		return []int{0, 1}
	}
	prev := bracketOrder(n / 2)
	out := make([]int, 0, n)
	for _, h := range prev {
		out = append(out, h, n-1-h)
	}
	return out
}

func totalRoundsFor(maxPlayers int) int {
	rounds := 0
	for n := maxPlayers; n > 1; n /= 2 {
		rounds++
	}
	return rounds
}

// buildBracket lays out the full match tree for a tournament. Participants
// must already carry seeds 1..N; empty slots (fewer players than the bracket
// size) become byes. Every match except the final points at the round-above
// match it feeds. Round-1 matches with two occupants start ready; a sole
// occupant advances immediately (complete, winner set, no duel); a match
// with no occupants at all completes with no winner so the advancement pass
// can cascade the emptiness upward instead of stranding its successor.
func buildBracket(t *models.Tournament, participants []models.TournamentParticipant) []models.TournamentMatch {
	bySeed := make([]*models.TournamentParticipant, t.MaxPlayers)
	for i := range participants {
		if s := participants[i].Seed; s >= 1 && s <= t.MaxPlayers {
			bySeed[s-1] = &participants[i]
		}
	}
	order := bracketOrder(t.MaxPlayers)

	var matches []models.TournamentMatch
	byRound := make(map[int][]*models.TournamentMatch)

	for round := 1; round <= t.TotalRounds; round++ {
		count := t.MaxPlayers >> round
		for num := 0; num < count; num++ {
			matches = append(matches, models.TournamentMatch{
				ID:           uuid.NewString(),
				TournamentID: t.ID,
				Round:        round,
				MatchNumber:  num,
				Status:       models.MatchPending,
			})
		}
	}
	for i := range matches {
		byRound[matches[i].Round] = append(byRound[matches[i].Round], &matches[i])
	}

	// Wire next_match_id chains; the final has none.
	for round := 1; round < t.TotalRounds; round++ {
		for _, m := range byRound[round] {
			m.NextMatchID = &byRound[round+1][m.MatchNumber/2].ID
		}
	}

	for _, m := range byRound[1] {
		p1 := bySeed[order[2*m.MatchNumber]]
		p2 := bySeed[order[2*m.MatchNumber+1]]
		if p1 != nil {
			m.Player1UID = &p1.UID
			m.Player1Username = &p1.Username
			m.Player1AvatarURL = p1.AvatarURL
		}
		if p2 != nil {
			m.Player2UID = &p2.UID
			m.Player2Username = &p2.Username
			m.Player2AvatarURL = p2.AvatarURL
		}
		switch {
		case p1 != nil && p2 != nil:
			m.Status = models.MatchReady
		case p1 != nil:
			m.Status = models.MatchComplete
			m.WinnerUID = m.Player1UID
		case p2 != nil:
			m.Status = models.MatchComplete
			m.WinnerUID = m.Player2UID
		default:
			m.Status = models.MatchComplete
		}
	}

	return matches
}

// matchPlayer pulls one side's identity out of a match.
func matchPlayer(m *models.TournamentMatch, slot int) (uid, username, avatarURL *string) {
	if slot == 0 {
		return m.Player1UID, m.Player1Username, m.Player1AvatarURL
	}
	return m.Player2UID, m.Player2Username, m.Player2AvatarURL
}

// winnerIdentity returns the winner's identity fields, or nils for a bye
// that resolved to nobody.
func winnerIdentity(m *models.TournamentMatch) (uid, username, avatarURL *string) {
	if m.WinnerUID == nil {
		return nil, nil, nil
	}
	if m.Player1UID != nil && *m.Player1UID == *m.WinnerUID {
		return matchPlayer(m, 0)
	}
	return matchPlayer(m, 1)
}

// seatedIn reports whether the player already occupies one of the match's
// slots.
func seatedIn(m *models.TournamentMatch, uid string) bool {
	return (m.Player1UID != nil && *m.Player1UID == uid) ||
		(m.Player2UID != nil && *m.Player2UID == uid)
}
