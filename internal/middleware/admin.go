package middleware

import (
	"crypto/subtle"

	"wislet-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// AdminTokenHeader carries the shared admin secret.
const AdminTokenHeader = "x-admin-token"

// AdminOnly rejects requests whose x-admin-token header does not match
// the configured secret. An empty configured secret rejects everything.
// The secret value itself is never logged.
func AdminOnly(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		got := c.Get(AdminTokenHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			log.Warn().Str("path", c.Path()).Bool("has_token", got != "").Msg("admin guard rejected request")
			return response.Forbidden(c)
		}
		return c.Next()
	}
}
