package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Roshan1299/67-Royale/middleware"
	"github.com/Roshan1299/67-Royale/services"
)

func SetupScoreRoutes(app *fiber.App, scoreService *services.ScoreService) {
	secured := app.Group("/api", middleware.RequireUser())
	secured.Post("/session", scoreService.OpenSession)
	secured.Post("/submit", scoreService.Submit)
}
