package convert

import (
	"errors"
	"strings"
	"unicode/utf8"

	"wislet-backend/internal/domain"
	"wislet-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Handlers exposes the admin conversion endpoints.
type Handlers struct {
	Service *Service
}

const maxNoteLen = 1000

type manualConvertBody struct {
	Email       string  `json:"email"`
	Tier        string  `json:"tier"`
	HoldID      *int64  `json:"hold_id"`
	Note        *string `json:"note"`
	Provider    string  `json:"provider"`
	TxID        *string `json:"tx_id"`
	AmountCents int64   `json:"amount_cents"`
	Currency    string  `json:"currency"`
	IsTest      bool    `json:"is_test"`
}

// ManualConvert POST /admin/manual-convert — admin fallback converter,
// also the internal sink for the Fondy/Mono/Lemon webhook adapters.
func (h *Handlers) ManualConvert(c *fiber.Ctx) error {
	var body manualConvertBody
	if err := c.BodyParser(&body); err != nil {
		return response.Fail(c, fiber.StatusBadRequest, "invalid body")
	}

	email := strings.ToLower(strings.TrimSpace(body.Email))
	tier := strings.ToUpper(strings.TrimSpace(body.Tier))
	if email == "" || !domain.ValidTier(tier) {
		return response.Fail(c, fiber.StatusBadRequest, ErrInvalidTier.Error())
	}
	if body.Note != nil && utf8.RuneCountInString(*body.Note) > maxNoteLen {
		// Rune clip: notes are Ukrainian, a byte clip could split a
		// character mid-sequence.
		clipped := string([]rune(*body.Note)[:maxNoteLen])
		body.Note = &clipped
	}

	req := Request{
		Email:       email,
		Tier:        tier,
		Provider:    defaultProvider(body.Provider),
		TxID:        body.TxID,
		AmountCents: body.AmountCents,
		Currency:    body.Currency,
		Note:        body.Note,
		IsTest:      body.IsTest,
	}

	// Without a hold there is nothing for the direct path to flip;
	// park the request for the operator.
	if body.HoldID == nil {
		row, err := h.Service.Enqueue(req)
		if err != nil {
			return response.Fail(c, fiber.StatusInternalServerError, err.Error())
		}
		return response.OK(c, fiber.Map{"ok": true, "via": "queue", "data": row})
	}
	req.HoldID = *body.HoldID

	res, err := h.Service.Convert(req)
	if err != nil {
		if errors.Is(err, ErrHoldRequired) || errors.Is(err, ErrInvalidTier) {
			return response.Fail(c, fiber.StatusBadRequest, err.Error())
		}
		log.Error().Err(err).Int64("hold_id", req.HoldID).Msg("manual convert failed")
		return response.Fail(c, fiber.StatusInternalServerError, err.Error())
	}
	return response.OK(c, fiber.Map{"ok": true, "via": res.Via, "data": res})
}

type mintFounderBody struct {
	Email   string `json:"email"`
	Tier    string `json:"tier"`
	OrderID *int64 `json:"order_id"`
}

// MintFounder POST /admin/mint-founder — direct issuance without a hold.
func (h *Handlers) MintFounder(c *fiber.Ctx) error {
	var body mintFounderBody
	if err := c.BodyParser(&body); err != nil {
		return response.Fail(c, fiber.StatusBadRequest, "invalid body")
	}

	card, err := h.Service.MintFounder(body.Email, body.Tier, body.OrderID)
	if err != nil {
		if errors.Is(err, ErrTierRequired) || errors.Is(err, ErrInvalidTier) {
			return response.Fail(c, fiber.StatusBadRequest, err.Error())
		}
		log.Error().Err(err).Str("tier", body.Tier).Msg("mint founder failed")
		return response.Fail(c, fiber.StatusInternalServerError, err.Error())
	}
	return response.OK(c, fiber.Map{"ok": true, "founder": card})
}

func defaultProvider(p string) string {
	if p == "" {
		return "manual"
	}
	return p
}
