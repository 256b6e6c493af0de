package webhooks

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"wislet-backend/internal/convert"
	"wislet-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// MonoHandler receives Monobank merchant callbacks. Hold id and tier
// ride in the invoice comment ("hold_21_GF") because mono has no
// metadata channel.
type MonoHandler struct {
	Convert *convert.Service
}

type monoCallback struct {
	InvoiceID string `json:"invoiceId"`
	OrderID   string `json:"orderId"`
	Status    string `json:"status"`
	State     string `json:"state"`
	Amount    int64  `json:"amount"`
	CcyName   string `json:"ccyName"`
	Reference string `json:"reference"`

	MerchantPaymInfo struct {
		Comment string `json:"comment"`
	} `json:"merchantPaymInfo"`
}

var monoCommentRe = regexp.MustCompile(`hold_(\d+)_([A-Z]{2})`)

// VerifyMonoSignature is where the X-Sign ECDSA check belongs if the
// merchant account enables it. Pass-through for now; NOT production-safe
// until implemented.
func VerifyMonoSignature(_ *fiber.Ctx, _ *monoCallback) bool {
	return true
}

// Handle POST /webhooks/mono.
func (wh *MonoHandler) Handle(c *fiber.Ctx) error {
	raw := c.BodyRaw()

	var body monoCallback
	if err := json.Unmarshal(raw, &body); err != nil {
		log.Error().Err(err).Msg("mono webhook: bad json")
		return c.Status(fiber.StatusInternalServerError).SendString("err")
	}
	if !VerifyMonoSignature(c, &body) {
		return c.Status(fiber.StatusBadRequest).SendString("bad signature")
	}

	txID := body.InvoiceID
	if txID == "" {
		txID = body.OrderID
	}
	status := body.Status
	if status == "" {
		status = body.State
	}
	currency := strings.ToLower(body.CcyName)
	if currency == "" {
		currency = "usd"
	}

	var holdID int64
	tier := ""
	ref := body.MerchantPaymInfo.Comment
	if ref == "" {
		ref = body.Reference
	}
	if m := monoCommentRe.FindStringSubmatch(ref); m != nil {
		holdID, _ = strconv.ParseInt(m[1], 10, 64)
		tier = m[2]
	}

	if holdID == 0 || !strings.EqualFold(status, "success") {
		return c.Status(fiber.StatusOK).SendString("ignored")
	}
	if tier == "" {
		tier = domain.TierGF
	}

	if _, err := wh.Convert.Convert(convert.Request{
		HoldID:      holdID,
		Tier:        tier,
		Provider:    "monobank",
		TxID:        &txID,
		AmountCents: body.Amount,
		Currency:    currency,
		RawPayload:  raw,
	}); err != nil {
		log.Error().Err(err).Int64("hold_id", holdID).Msg("mono webhook convert failed")
		return c.Status(fiber.StatusInternalServerError).SendString("convert failed")
	}
	return c.Status(fiber.StatusOK).SendString("ok")
}
