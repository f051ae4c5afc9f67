package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Roshan1299/67-Royale/middleware"
	"github.com/Roshan1299/67-Royale/services"
)

func SetupMatchmakingRoutes(app *fiber.App, matchmakingService *services.MatchmakingService) {
	api := app.Group("/api/matchmaking")

	// Status polling and leave work off the opaque queue_id alone.
	api.Get("/status", matchmakingService.Status)
	api.Post("/leave", matchmakingService.Leave)

	secured := app.Group("/api/matchmaking", middleware.RequireUser())
	secured.Post("/join", matchmakingService.Join)
}
