package reports

import (
	"wislet-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Handlers exposes the admin reporting endpoints.
type Handlers struct {
	Service *Service
}

// Stats GET /admin/stats?from&to&n.
func (h *Handlers) Stats(c *fiber.Ctx) error {
	r := h.Service.ResolveRange(c.Query("from"), c.Query("to"))
	n := c.QueryInt("n", 30)

	out, err := h.Service.Stats(r, n)
	if err != nil {
		log.Error().Err(err).Msg("admin stats failed")
		return response.Fail(c, fiber.StatusInternalServerError, err.Error())
	}
	return response.OK(c, out)
}

// Export GET /admin/export?from&to&group&metric&tier — CSV attachment.
func (h *Handlers) Export(c *fiber.Ctx) error {
	r := h.Service.ResolveRange(c.Query("from"), c.Query("to"))
	p := NormalizeExportParams(r, c.Query("group"), c.Query("metric"), c.Query("tier"))

	body, err := h.Service.Export(p)
	if err != nil {
		log.Error().Err(err).Msg("admin export failed")
		return response.Fail(c, fiber.StatusInternalServerError, err.Error())
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+p.Filename()+`"`)
	return c.Status(fiber.StatusOK).SendString(body)
}

// PingTimeline GET /admin/ping-timeline?from&to&n.
func (h *Handlers) PingTimeline(c *fiber.Ctx) error {
	r := h.Service.ResolveRange(c.Query("from"), c.Query("to"))
	n := c.QueryInt("n", 50)

	items, err := h.Service.PingTimeline(r, n)
	if err != nil {
		log.Error().Err(err).Msg("ping timeline failed")
		return response.Fail(c, fiber.StatusInternalServerError, err.Error())
	}
	return response.OK(c, fiber.Map{"items": items})
}
