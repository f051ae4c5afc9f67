package services

import (
	"testing"
	"time"

	"github.com/Roshan1299/67-Royale/models"
	"github.com/Roshan1299/67-Royale/session"
)

// challengeToken mints a submission token whose play window is already open.
func challengeToken(t *testing.T, env *testEnv, challengeID string, durationMS int) string {
	t.Helper()
	tok, err := env.Codec.Issue(session.Claims{
		Mode:        session.ModeChallenge,
		DurationMS:  durationMS,
		ChallengeID: challengeID,
		PlayerKey:   session.NewPlayerKey(),
		IssuedAt:    time.Now().Add(-time.Duration(durationMS)*time.Millisecond - time.Second).UnixMilli(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func createChallenge(t *testing.T, env *testEnv, durationMS int) string {
	t.Helper()
	code, resp := env.request(t, "POST", "/api/challenge/create", map[string]interface{}{
		"duration_ms": durationMS,
	}, "alice")
	if code != 201 {
		t.Fatalf("create challenge: %d %v", code, resp)
	}
	if resp["share_url"] != "http://localhost:3000/challenge/"+str(t, resp, "challenge_id") {
		t.Fatalf("share_url = %v", resp["share_url"])
	}
	return str(t, resp, "challenge_id")
}

func TestChallengeCreateRejectsRepRace(t *testing.T) {
	env := newTestEnv(t)
	for _, d := range []int{models.Duration67Reps, 0, 500, models.MaxCustomDurationMS + 1} {
		code, resp := env.request(t, "POST", "/api/challenge/create", map[string]interface{}{
			"duration_ms": d,
		}, "alice")
		if code != 400 {
			t.Errorf("duration %d accepted: %d %v", d, code, resp)
		}
	}
}

func TestChallengeCompletesOnSecondEntry(t *testing.T) {
	env := newTestEnv(t)
	id := createChallenge(t, env, 5000)

	code, resp := env.request(t, "POST", "/api/challenge/session", map[string]interface{}{
		"challenge_id": id,
	}, "alice")
	if code != 200 || resp["token"] == nil {
		t.Fatalf("open session: %d %v", code, resp)
	}

	code, resp = env.request(t, "POST", "/api/challenge/submit", map[string]interface{}{
		"token": challengeToken(t, env, id, 5000), "score": 22,
	}, "alice")
	if code != 200 || resp["status"] != "waiting" {
		t.Fatalf("first submit: %d %v", code, resp)
	}

	// One entry per player, however many sessions they open.
	code, resp = env.request(t, "POST", "/api/challenge/submit", map[string]interface{}{
		"token": challengeToken(t, env, id, 5000), "score": 30,
	}, "alice")
	if code != 400 || resp["error"] != "score already submitted" {
		t.Fatalf("duplicate submit: %d %v", code, resp)
	}

	code, resp = env.request(t, "POST", "/api/challenge/submit", map[string]interface{}{
		"token": challengeToken(t, env, id, 5000), "score": 27,
	}, "bob")
	if code != 200 || resp["status"] != "complete" {
		t.Fatalf("second submit: %d %v", code, resp)
	}
	if resp["winner_uid"] != "bob" {
		t.Fatalf("winner = %v, want bob", resp["winner_uid"])
	}

	code, resp = env.request(t, "GET", "/api/challenge/"+id, nil, "")
	if code != 200 || resp["status"] != "complete" || resp["winner_uid"] != "bob" {
		t.Fatalf("get after completion: %d %v", code, resp)
	}

	// Closed challenges take no further sessions or scores.
	code, _ = env.request(t, "POST", "/api/challenge/session", map[string]interface{}{
		"challenge_id": id,
	}, "carol")
	if code != 400 {
		t.Fatalf("session on closed challenge: %d", code)
	}
	code, _ = env.request(t, "POST", "/api/challenge/submit", map[string]interface{}{
		"token": challengeToken(t, env, id, 5000), "score": 99,
	}, "carol")
	if code != 400 {
		t.Fatalf("submit on closed challenge: %d", code)
	}
}

func TestChallengeTieReported(t *testing.T) {
	env := newTestEnv(t)
	id := createChallenge(t, env, 5000)

	env.request(t, "POST", "/api/challenge/submit", map[string]interface{}{
		"token": challengeToken(t, env, id, 5000), "score": 20,
	}, "alice")
	code, resp := env.request(t, "POST", "/api/challenge/submit", map[string]interface{}{
		"token": challengeToken(t, env, id, 5000), "score": 20,
	}, "bob")
	if code != 200 || resp["tie"] != true {
		t.Fatalf("tie result: %d %v", code, resp)
	}
	if _, has := resp["winner_uid"]; has {
		t.Fatalf("tie must not name a winner: %v", resp)
	}
}

func TestChallengeExpiresLazily(t *testing.T) {
	env := newTestEnv(t)
	id := createChallenge(t, env, 5000)

	if err := env.DB.Model(&models.Challenge{}).Where("id = ?", id).
		Update("expires_at", time.Now().Add(-time.Minute)).Error; err != nil {
		t.Fatalf("backdate: %v", err)
	}

	code, resp := env.request(t, "GET", "/api/challenge/"+id, nil, "")
	if code != 200 {
		t.Fatalf("get expired: %d %v", code, resp)
	}
	ch, ok := resp["challenge"].(map[string]interface{})
	if !ok || ch["status"] != string(models.ChallengeExpired) {
		t.Fatalf("challenge not expired: %v", resp)
	}

	code, _ = env.request(t, "POST", "/api/challenge/session", map[string]interface{}{
		"challenge_id": id,
	}, "alice")
	if code != 400 {
		t.Fatalf("session on expired challenge: %d", code)
	}
}
