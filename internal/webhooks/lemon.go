package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"

	"wislet-backend/internal/convert"
	"wislet-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// LemonHandler receives Lemon Squeezy webhooks. Lemon's payloads are
// loosely shaped, so everything is read defensively with fallback keys.
type LemonHandler struct {
	Convert *convert.Service
	Secret  string
}

type lemonPayload struct {
	Meta map[string]interface{} `json:"meta"`
	Data struct {
		ID         string                 `json:"id"`
		Attributes map[string]interface{} `json:"attributes"`
	} `json:"data"`
}

// Handle POST /webhooks/lemon — HMAC check, then convert order events.
func (wh *LemonHandler) Handle(c *fiber.Ctx) error {
	raw := c.BodyRaw()

	sig := c.Get("X-Signature")
	mac := hmac.New(sha256.New, []byte(wh.Secret))
	mac.Write(raw)
	calc := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(sig), []byte(calc)) {
		log.Warn().Msg("lemon webhook: bad signature")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"ok": false, "error": "bad signature"})
	}

	evt := strings.ToLower(c.Get("X-Event-Name"))
	if !strings.Contains(evt, "order") {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "note": "ignored event " + evt})
	}

	var body lemonPayload
	_ = json.Unmarshal(raw, &body)
	att := body.Data.Attributes

	// Custom checkout fields travel in different places depending on
	// how the checkout was created.
	custom := asMap(att["custom"])
	if custom == nil {
		custom = asMap(asMap(att["checkout_data"])["custom"])
	}
	if custom == nil {
		custom = body.Meta
	}

	holdID := asInt64(firstOf(custom, "hold_id", "holdId", "HOLD_ID"))
	tierHint := asString(custom["tier"])
	if tierHint == "" {
		tierHint = asString(att["variant_name"])
	}
	if tierHint == "" {
		tierHint = asString(att["product_name"])
	}
	tier := inferTier(tierHint)
	if tier == "" {
		tier = domain.TierGF
	}

	email := asString(firstOf(custom, "email"))
	if email == "" {
		email = asString(att["user_email"])
	}
	if email == "" {
		email = asString(att["customer_email"])
	}

	txID := asString(att["identifier"])
	if txID == "" {
		if n := asInt64(att["order_number"]); n > 0 {
			txID = strconv.FormatInt(n, 10)
		}
	}
	if txID == "" {
		txID = body.Data.ID
	}
	if txID == "" {
		txID = uuid.NewString()
	}

	amountCents := centsGuess(att)
	currency := strings.ToLower(asString(att["currency"]))
	if currency == "" {
		currency = "usd"
	}

	if holdID == 0 {
		log.Warn().Str("tx_id", txID).Str("tier", tier).Msg("lemon webhook: no hold_id in payload")
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"ok": true, "note": "no hold_id, ignored"})
	}

	res, err := wh.Convert.Convert(convert.Request{
		HoldID:      holdID,
		Email:       email,
		Tier:        tier,
		Provider:    "lemon",
		TxID:        &txID,
		AmountCents: amountCents,
		Currency:    currency,
		RawPayload:  raw,
	})
	if err != nil {
		log.Error().Err(err).Int64("hold_id", holdID).Msg("lemon webhook convert failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": err.Error()})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "converted": res})
}

// inferTier maps Lemon variant/product names onto a tier.
func inferTier(s string) string {
	t := strings.ToLower(s)
	switch {
	case strings.Contains(t, "platinum") || strings.HasPrefix(t, "pf"):
		return domain.TierPF
	case strings.Contains(t, "gold") || strings.HasPrefix(t, "gf"):
		return domain.TierGF
	case strings.Contains(t, "silver") || strings.HasPrefix(t, "se"):
		return domain.TierSE
	}
	return ""
}

// centsGuess finds an amount among Lemon's many money fields. Values
// that look like dollars (< 1000) are scaled to cents.
func centsGuess(att map[string]interface{}) int64 {
	candidates := []interface{}{
		att["total"], att["subtotal"], att["total_in_cents"], att["subtotal_in_cents"],
		asMap(att["first_order_item"])["price"], asMap(att["first_order_item"])["price_in_cents"],
	}
	for _, c := range candidates {
		if v := asInt64(c); v > 0 {
			if v < 1000 {
				return v * 100
			}
			return v
		}
	}
	return 0
}

func asMap(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case string:
		var out int64
		for _, r := range n {
			if r < '0' || r > '9' {
				return 0
			}
			out = out*10 + int64(r-'0')
		}
		return out
	}
	return 0
}

func firstOf(m map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}
