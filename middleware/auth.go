package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// UserContext extracts the identity forwarded by the auth gateway
// (X-User-ID, X-User-Name, X-User-Avatar) and attaches it to the request.
// Routes that can serve anonymous traffic still get whatever was sent.
func UserContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("uid", c.Get("X-User-ID"))
		c.Locals("username", c.Get("X-User-Name"))
		c.Locals("avatar_url", c.Get("X-User-Avatar"))
		return c.Next()
	}
}

// RequireUser rejects requests that arrived without a verified user id.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if uid, _ := c.Locals("uid").(string); uid == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication required",
			})
		}
		return c.Next()
	}
}

// Identity returns the caller's uid, display name, and avatar URL (nil when
// the gateway sent none).
func Identity(c *fiber.Ctx) (uid, username string, avatarURL *string) {
	uid, _ = c.Locals("uid").(string)
	username, _ = c.Locals("username").(string)
	if username == "" {
		username = "Anonymous"
	}
	if av, _ := c.Locals("avatar_url").(string); av != "" {
		avatarURL = &av
	}
	return uid, username, avatarURL
}
