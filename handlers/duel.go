package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Roshan1299/67-Royale/middleware"
	"github.com/Roshan1299/67-Royale/services"
)

func SetupDuelRoutes(app *fiber.App, duelService *services.DuelService) {
	api := app.Group("/api/duel")

	// Capability-key endpoints: holding a player_key (or a session token) is
	// the credential, so no gateway identity is required.
	api.Post("/ready", duelService.SetReady)
	api.Post("/start", duelService.Start)
	api.Get("/find", duelService.FindByCode)
	api.Post("/session", duelService.OpenSession)
	api.Post("/submit", duelService.Submit)
	api.Get("/:duelId", duelService.Get)

	secured := app.Group("/api/duel", middleware.RequireUser())
	secured.Post("/create", duelService.Create)
	secured.Post("/join", duelService.Join)
}
