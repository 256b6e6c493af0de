package holds

import (
	"errors"

	"wislet-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Handlers exposes the hold follow-up admin endpoints.
type Handlers struct {
	Service *Service
}

// ToChase GET /admin/holds-to-chase?min_age=10&limit=200.
func (h *Handlers) ToChase(c *fiber.Ctx) error {
	minAge := c.QueryInt("min_age", 10)
	limit := c.QueryInt("limit", 200)

	rows, err := h.Service.ToChase(minAge, limit)
	if err != nil {
		log.Error().Err(err).Msg("holds-to-chase query failed")
		return response.Error(c, fiber.StatusInternalServerError, "db")
	}
	return response.OK(c, rows)
}

type markChasedBody struct {
	HoldID int64 `json:"hold_id"`
	Mark   bool  `json:"mark"`
}

// MarkChased POST /admin/mark-chased {hold_id, mark}.
func (h *Handlers) MarkChased(c *fiber.Ctx) error {
	var body markChasedBody
	if err := c.BodyParser(&body); err != nil {
		return response.Fail(c, fiber.StatusBadRequest, "invalid body")
	}

	updated, err := h.Service.MarkChased(body.HoldID, body.Mark)
	if err != nil {
		if errors.Is(err, ErrHoldIDRequired) {
			return response.Fail(c, fiber.StatusBadRequest, err.Error())
		}
		log.Error().Err(err).Int64("hold_id", body.HoldID).Msg("mark-chased failed")
		return response.Fail(c, fiber.StatusInternalServerError, err.Error())
	}
	return response.OK(c, fiber.Map{"ok": true, "updated": updated})
}

type markChasedBulkBody struct {
	IDs  []int64 `json:"ids"`
	Mark bool    `json:"mark"`
}

// MarkChasedBulk POST /admin/mark-chased-bulk {ids, mark}.
func (h *Handlers) MarkChasedBulk(c *fiber.Ctx) error {
	var body markChasedBulkBody
	if err := c.BodyParser(&body); err != nil {
		return response.Fail(c, fiber.StatusBadRequest, "invalid body")
	}

	updated, err := h.Service.MarkChasedBulk(body.IDs, body.Mark)
	if err != nil {
		if errors.Is(err, ErrIDsRequired) || errors.Is(err, ErrTooManyIDs) {
			return response.Fail(c, fiber.StatusBadRequest, err.Error())
		}
		log.Error().Err(err).Msg("mark-chased-bulk failed")
		return response.Fail(c, fiber.StatusInternalServerError, err.Error())
	}
	return response.OK(c, fiber.Map{"ok": true, "updated": updated})
}

type updateHoldBody struct {
	HoldID int64    `json:"hold_id"`
	Note   *string  `json:"note"`
	Tries  *float64 `json:"tries"`
}

// UpdateHold POST /admin/update-hold {hold_id, note?, tries?}.
func (h *Handlers) UpdateHold(c *fiber.Ctx) error {
	var body updateHoldBody
	if err := c.BodyParser(&body); err != nil {
		return response.Fail(c, fiber.StatusBadRequest, "invalid body")
	}

	updated, rows, err := h.Service.UpdateHold(body.HoldID, UpdatePatch{Note: body.Note, Tries: body.Tries})
	if err != nil {
		if errors.Is(err, ErrHoldIDRequired) {
			return response.Fail(c, fiber.StatusBadRequest, err.Error())
		}
		log.Error().Err(err).Int64("hold_id", body.HoldID).Msg("update-hold failed")
		return response.Fail(c, fiber.StatusInternalServerError, err.Error())
	}
	if updated == 0 && rows == nil {
		return response.OK(c, fiber.Map{"ok": true, "updated": 0})
	}
	return response.OK(c, fiber.Map{"ok": true, "updated": updated, "data": rows})
}
