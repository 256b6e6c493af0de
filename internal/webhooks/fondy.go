package webhooks

import (
	"encoding/json"
	"strings"

	"wislet-backend/internal/convert"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// FondyHandler receives Fondy server callbacks. Fondy wraps the fields
// in either a "payment" or "request" envelope depending on the flow.
type FondyHandler struct {
	Convert *convert.Service
	Secret  string
}

type fondyCallback struct {
	Payment *fondyOrder `json:"payment"`
	Request *fondyOrder `json:"request"`
}

type fondyOrder struct {
	OrderID      string          `json:"order_id"`
	OrderStatus  string          `json:"order_status"`
	Amount       int64           `json:"amount"`
	Currency     string          `json:"currency"`
	MerchantData json.RawMessage `json:"merchant_data"`
}

func (f *fondyCallback) order() *fondyOrder {
	if f.Payment != nil {
		return f.Payment
	}
	return f.Request
}

// VerifyFondySignature is where the response-signature check (sha1 over
// sorted response fields + secret) belongs. Shipped as a pass-through
// while the Fondy account was in sandbox; NOT production-safe until
// implemented.
func VerifyFondySignature(_ *fondyCallback, _ string) bool {
	return true
}

// Handle POST /webhooks/fondy.
func (wh *FondyHandler) Handle(c *fiber.Ctx) error {
	raw := c.BodyRaw()

	var body fondyCallback
	if err := json.Unmarshal(raw, &body); err != nil {
		log.Error().Err(err).Msg("fondy webhook: bad json")
		return c.Status(fiber.StatusInternalServerError).SendString("err")
	}
	if !VerifyFondySignature(&body, wh.Secret) {
		return c.Status(fiber.StatusBadRequest).SendString("bad signature")
	}

	o := body.order()
	if o == nil {
		return c.Status(fiber.StatusOK).SendString("ignored")
	}

	// merchant_data is the JSON we planted at checkout, but Fondy may
	// echo it back either as an object or a JSON-encoded string.
	var md struct {
		HoldID int64  `json:"hold_id"`
		Tier   string `json:"tier"`
	}
	mdRaw := o.MerchantData
	var asStr string
	if json.Unmarshal(mdRaw, &asStr) == nil {
		mdRaw = []byte(asStr)
	}
	_ = json.Unmarshal(mdRaw, &md)

	if md.HoldID == 0 || md.Tier == "" || o.OrderStatus != "approved" {
		return c.Status(fiber.StatusOK).SendString("ignored")
	}

	currency := strings.ToLower(o.Currency)
	if currency == "" {
		currency = "usd"
	}
	txID := o.OrderID
	if _, err := wh.Convert.Convert(convert.Request{
		HoldID:      md.HoldID,
		Tier:        md.Tier,
		Provider:    "fondy",
		TxID:        &txID,
		AmountCents: o.Amount,
		Currency:    currency,
		RawPayload:  raw,
	}); err != nil {
		log.Error().Err(err).Int64("hold_id", md.HoldID).Msg("fondy webhook convert failed")
		return c.Status(fiber.StatusInternalServerError).SendString("convert failed")
	}
	return c.Status(fiber.StatusOK).SendString("ok")
}
