package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Roshan1299/67-Royale/services"
)

func SetupLeaderboardRoutes(app *fiber.App, leaderboardService *services.LeaderboardService) {
	api := app.Group("/api")

	api.Get("/leaderboard", leaderboardService.Top)
	api.Get("/leaderboard/pvp", leaderboardService.PvP)
	api.Get("/stats", leaderboardService.GlobalStats)
	api.Get("/user/stats", leaderboardService.UserStats)
}
