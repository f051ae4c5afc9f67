package services

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Roshan1299/67-Royale/middleware"
	"github.com/Roshan1299/67-Royale/models"
	"github.com/Roshan1299/67-Royale/ratelimit"
	"github.com/Roshan1299/67-Royale/session"
)

type testEnv struct {
	DB          *gorm.DB
	Codec       *session.Codec
	Limiter     *ratelimit.Limiter
	Ranks       *RankService
	Stats       *StatsService
	Scores      *ScoreService
	Duels       *DuelService
	Queue       *MatchmakingService
	Tournaments *TournamentService
	Challenges  *ChallengeService
	Boards      *LeaderboardService
	App         *fiber.App
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap test db: %v", err)
	}
	// A pooled second connection to :memory: would see a different database.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.Score{},
		&models.Duel{},
		&models.DuelPlayer{},
		&models.MatchmakingTicket{},
		&models.Tournament{},
		&models.TournamentParticipant{},
		&models.TournamentMatch{},
		&models.Challenge{},
		&models.ChallengeEntry{},
		&models.UserStats{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	env := &testEnv{
		DB:      db,
		Codec:   session.NewCodec("test-secret"),
		Limiter: ratelimit.New(),
	}
	env.Ranks = NewRankService(db)
	env.Stats = NewStatsService(db)
	env.Scores = NewScoreService(db, env.Codec, env.Limiter, env.Ranks)
	env.Duels = NewDuelService(db, env.Codec, env.Limiter, env.Ranks, env.Stats, "http://localhost:3000")
	env.Queue = NewMatchmakingService(db)
	env.Tournaments = NewTournamentService(db, env.Stats)
	env.Challenges = NewChallengeService(db, env.Codec, env.Limiter, "http://localhost:3000")
	env.Boards = NewLeaderboardService(db, env.Ranks)
	env.Duels.Tournaments = env.Tournaments
	env.Tournaments.Duels = env.Duels

	app := fiber.New()
	app.Use(middleware.UserContext())

	duel := app.Group("/api/duel")
	duel.Post("/ready", env.Duels.SetReady)
	duel.Post("/start", env.Duels.Start)
	duel.Get("/find", env.Duels.FindByCode)
	duel.Post("/session", env.Duels.OpenSession)
	duel.Post("/submit", env.Duels.Submit)
	duel.Get("/:duelId", env.Duels.Get)
	duelAuth := app.Group("/api/duel", middleware.RequireUser())
	duelAuth.Post("/create", env.Duels.Create)
	duelAuth.Post("/join", env.Duels.Join)

	mm := app.Group("/api/matchmaking")
	mm.Get("/status", env.Queue.Status)
	mm.Post("/leave", env.Queue.Leave)
	app.Group("/api/matchmaking", middleware.RequireUser()).Post("/join", env.Queue.Join)

	tour := app.Group("/api/tournament")
	tour.Get("/list", env.Tournaments.List)
	tour.Get("/:tournamentId", env.Tournaments.Get)
	tourAuth := app.Group("/api/tournament", middleware.RequireUser())
	tourAuth.Post("/create", env.Tournaments.Create)
	tourAuth.Post("/join", env.Tournaments.Join)
	tourAuth.Post("/leave", env.Tournaments.Leave)
	tourAuth.Post("/start", env.Tournaments.Start)
	tourAuth.Post("/cancel", env.Tournaments.Cancel)
	tourAuth.Post("/match/start", env.Tournaments.StartMatch)

	ch := app.Group("/api/challenge")
	ch.Get("/:challengeId", env.Challenges.Get)
	chAuth := app.Group("/api/challenge", middleware.RequireUser())
	chAuth.Post("/create", env.Challenges.Create)
	chAuth.Post("/session", env.Challenges.OpenSession)
	chAuth.Post("/submit", env.Challenges.Submit)

	api := app.Group("/api")
	api.Get("/leaderboard", env.Boards.Top)
	api.Get("/leaderboard/pvp", env.Boards.PvP)
	api.Get("/stats", env.Boards.GlobalStats)
	api.Get("/user/stats", env.Boards.UserStats)
	apiAuth := app.Group("/api", middleware.RequireUser())
	apiAuth.Post("/session", env.Scores.OpenSession)
	apiAuth.Post("/submit", env.Scores.Submit)

	env.App = app
	return env
}

// request fires a JSON request through the fiber app, optionally with a
// gateway identity, and decodes the JSON response.
func (e *testEnv) request(t *testing.T, method, path string, body interface{}, uid string) (int, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		req.Header.Set("X-User-ID", uid)
		req.Header.Set("X-User-Name", "user-"+uid)
	}

	resp, err := e.App.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	out := map[string]interface{}{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode response %q: %v", raw, err)
		}
	}
	return resp.StatusCode, out
}

func str(t *testing.T, m map[string]interface{}, key string) string {
	t.Helper()
	v, ok := m[key].(string)
	if !ok {
		t.Fatalf("expected string %q in %v", key, m)
	}
	return v
}
