package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Roshan1299/67-Royale/middleware"
	"github.com/Roshan1299/67-Royale/services"
)

func SetupTournamentRoutes(app *fiber.App, tournamentService *services.TournamentService) {
	api := app.Group("/api/tournament")

	// Spectator reads.
	api.Get("/list", tournamentService.List)
	api.Get("/:tournamentId", tournamentService.Get)

	secured := app.Group("/api/tournament", middleware.RequireUser())
	secured.Post("/create", tournamentService.Create)
	secured.Post("/join", tournamentService.Join)
	secured.Post("/leave", tournamentService.Leave)
	secured.Post("/start", tournamentService.Start)
	secured.Post("/cancel", tournamentService.Cancel)
	secured.Post("/match/start", tournamentService.StartMatch)
}
