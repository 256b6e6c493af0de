package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// CORS allows any origin on every route (the checkout pages and admin
// dashboard are served from static hosting on other domains). Preflight
// OPTIONS requests are answered with the same header set and no body.
func CORS() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Access-Control-Allow-Origin", "*")
		c.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Set("Access-Control-Allow-Headers", "authorization, apikey, content-type, x-admin-token, x-signature, x-event-name")
		c.Set("Vary", "Origin")
		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}
