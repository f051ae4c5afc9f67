package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Roshan1299/67-Royale/middleware"
	"github.com/Roshan1299/67-Royale/services"
)

func SetupChallengeRoutes(app *fiber.App, challengeService *services.ChallengeService) {
	api := app.Group("/api/challenge")

	api.Get("/:challengeId", challengeService.Get)

	secured := app.Group("/api/challenge", middleware.RequireUser())
	secured.Post("/create", challengeService.Create)
	secured.Post("/session", challengeService.OpenSession)
	secured.Post("/submit", challengeService.Submit)
}
