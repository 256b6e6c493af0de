package metrics

import (
	"wislet-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Handlers exposes the unauthenticated public endpoints.
type Handlers struct {
	Service *Service
}

// Public GET /metrics — landing-page counters, edge-cacheable.
func (h *Handlers) Public(c *fiber.Ctx) error {
	snap, err := h.Service.Collect()
	if err != nil {
		log.Error().Err(err).Msg("public metrics failed")
		return response.Error(c, fiber.StatusInternalServerError, err.Error())
	}
	c.Set(fiber.HeaderCacheControl, "public, max-age=15, s-maxage=60")
	return response.OK(c, snap)
}

// FoundersHall GET /founders-hall?offset&limit.
func (h *Handlers) FoundersHall(c *fiber.Ctx) error {
	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 24)

	entries, err := h.Service.FoundersHall(offset, limit)
	if err != nil {
		log.Error().Err(err).Msg("founders hall failed")
		return response.Fail(c, fiber.StatusInternalServerError, err.Error())
	}
	return response.OK(c, entries)
}
