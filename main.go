package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Roshan1299/67-Royale/handlers"
	"github.com/Roshan1299/67-Royale/middleware"
	"github.com/Roshan1299/67-Royale/models"
	"github.com/Roshan1299/67-Royale/ratelimit"
	"github.com/Roshan1299/67-Royale/services"
	"github.com/Roshan1299/67-Royale/session"
	"github.com/Roshan1299/67-Royale/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading environment variables directly")
	}

	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		log.Fatal("SESSION_SECRET environment variable not set")
	}
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}
	appURL := os.Getenv("APP_URL")
	if appURL == "" {
		appURL = "http://localhost:3000"
	}

	app := fiber.New(fiber.Config{})

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		log.Println("ALLOWED_ORIGINS not set, defaulting to http://localhost:3000")
		allowedOrigins = "http://localhost:3000"
	}
	origins := strings.Split(allowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, X-User-ID, X-User-Name, X-User-Avatar",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	app.Use(middleware.UserContext())

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

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
		log.Fatal("failed to migrate database:", err)
	}

	codec := session.NewCodec(secret)
	limiter := ratelimit.New()

	rankService := services.NewRankService(db)
	statsService := services.NewStatsService(db)
	scoreService := services.NewScoreService(db, codec, limiter, rankService)
	duelService := services.NewDuelService(db, codec, limiter, rankService, statsService, appURL)
	matchmakingService := services.NewMatchmakingService(db)
	tournamentService := services.NewTournamentService(db, statsService)
	challengeService := services.NewChallengeService(db, codec, limiter, appURL)
	leaderboardService := services.NewLeaderboardService(db, rankService)

	// Duels created from a bracket report completions back to the bracket;
	// the bracket creates duels through the duel service.
	duelService.Tournaments = tournamentService
	tournamentService.Duels = duelService

	handlers.SetupScoreRoutes(app, scoreService)
	handlers.SetupDuelRoutes(app, duelService)
	handlers.SetupMatchmakingRoutes(app, matchmakingService)
	handlers.SetupTournamentRoutes(app, tournamentService)
	handlers.SetupChallengeRoutes(app, challengeService)
	handlers.SetupLeaderboardRoutes(app, leaderboardService)

	janitor := workers.NewJanitor(db, limiter)
	if err := janitor.Start(); err != nil {
		log.Fatal("failed to start janitor:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port := os.Getenv("PORT")
	if port == "" {
		port = "5200"
	}
	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("server error: %v", err)
		}
	}()
	log.Printf("server running on http://localhost:%s", port)

	<-ctx.Done()
	log.Println("shutting down...")
	janitor.Stop()
	if err := app.Shutdown(); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
