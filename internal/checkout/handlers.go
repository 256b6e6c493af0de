package checkout

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"wislet-backend/internal/domain"
	"wislet-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Handlers exposes the public checkout endpoints for every provider.
type Handlers struct {
	Service *Service
	Stripe  SessionCreator
	Fondy   FondyCreator
	Mono    MonoCreator

	// PublicBaseURL hosts thanks.html/cancel.html; BaseURL receives
	// the provider server callbacks.
	PublicBaseURL string
	BaseURL       string

	Now func() time.Time
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

type createHoldBody struct {
	Email   string `json:"email"`
	Tier    string `json:"tier"`
	BatchID int64  `json:"batch_id"`
}

// CreateHold POST /create-hold — reserves a batch slot for an email so
// the buyer can proceed to any of the providers.
func (h *Handlers) CreateHold(c *fiber.Ctx) error {
	var body createHoldBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, fiber.StatusBadRequest, ErrEmailRequired.Error())
	}

	hold, err := h.Service.CreateHold(body.Email, body.Tier, body.BatchID)
	if err != nil {
		switch err {
		case ErrEmailRequired, ErrBatchRequired, ErrNoActiveBatch, ErrSoldOut:
			return response.Error(c, fiber.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Msg("create hold failed")
			return response.Error(c, fiber.StatusInternalServerError, "db")
		}
	}
	return response.OK(c, fiber.Map{
		"hold_id":    hold.ID,
		"batch_id":   hold.BatchID,
		"expires_at": hold.ExpiresAt,
	})
}

type createCheckoutBody struct {
	HoldID int64 `json:"hold_id"`
}

// CreateCheckout POST /create-checkout — opens a Stripe checkout session
// for an active hold and returns the redirect URL.
func (h *Handlers) CreateCheckout(c *fiber.Ctx) error {
	var body createCheckoutBody
	if err := c.BodyParser(&body); err != nil || body.HoldID == 0 {
		return response.Error(c, fiber.StatusBadRequest, "hold_id_required")
	}

	hold, err := h.Service.HoldByID(body.HoldID)
	if err != nil {
		return response.Error(c, fiber.StatusBadRequest, err.Error())
	}
	if hold.Status != domain.HoldActive {
		return response.Error(c, fiber.StatusBadRequest, "hold_not_active")
	}
	if hold.Expired(h.now()) {
		return response.Error(c, fiber.StatusBadRequest, "hold_expired")
	}

	batch, err := h.Service.BatchByID(hold.BatchID)
	if err != nil {
		return response.Error(c, fiber.StatusBadRequest, err.Error())
	}

	// Static success/cancel pages; the session id is the only query
	// parameter thanks.html needs.
	sess, err := h.Stripe.CreateSession(SessionParams{
		CustomerEmail: hold.Email,
		Currency:      batch.Currency,
		UnitAmount:    batch.PriceCents,
		ProductName:   batch.Name,
		Metadata: map[string]string{
			"hold_id":     strconv.FormatInt(hold.ID, 10),
			"batch_id":    strconv.FormatInt(batch.ID, 10),
			"tier":        batch.Tier,
			"buyer_email": hold.Email,
		},
		SuccessURL: h.PublicBaseURL + "/thanks.html?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  h.PublicBaseURL + "/cancel.html",
	})
	if err != nil {
		log.Error().Err(err).Int64("hold_id", hold.ID).Msg("stripe session create failed")
		return response.Error(c, fiber.StatusInternalServerError, err.Error())
	}

	return response.OK(c, fiber.Map{"url": sess.URL})
}

type confirmCheckoutBody struct {
	SessionID string `json:"session_id"`
}

// ConfirmCheckout POST /confirm-checkout — polled by thanks.html; looks
// up the card issued by the webhook for a paid session. Always answers
// 200 once the session id parses, so the page can keep polling.
func (h *Handlers) ConfirmCheckout(c *fiber.Ctx) error {
	var body confirmCheckoutBody
	_ = c.BodyParser(&body)
	sessionID := body.SessionID
	if sessionID == "" {
		sessionID = c.Query("session_id")
	}
	if sessionID == "" {
		return response.Error(c, fiber.StatusBadRequest, "session_id required")
	}

	sess, err := h.Stripe.RetrieveSession(sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("confirm checkout retrieve failed")
		return response.OK(c, response.FailBody{OK: false, Error: err.Error()})
	}

	holdID, _ := strconv.ParseInt(sess.Metadata["hold_id"], 10, 64)
	if !(sess.Complete && sess.Paid) || holdID == 0 {
		return response.OK(c, response.FailBody{OK: false, Error: "not paid or hold not found"})
	}

	card, err := h.Service.CardForHold(holdID)
	if err != nil {
		log.Error().Err(err).Int64("hold_id", holdID).Msg("confirm checkout card lookup failed")
		return response.OK(c, response.FailBody{OK: false, Error: err.Error()})
	}
	return response.OK(c, fiber.Map{"ok": true, "card": card})
}

type payBody struct {
	HoldID int64  `json:"hold_id"`
	Tier   string `json:"tier"`
	Email  string `json:"email"`
}

func parsePayBody(c *fiber.Ctx) (*payBody, bool) {
	var body payBody
	if err := c.BodyParser(&body); err != nil {
		return nil, false
	}
	body.Tier = strings.ToUpper(strings.TrimSpace(body.Tier))
	if body.HoldID == 0 || body.Tier == "" || body.Email == "" {
		return nil, false
	}
	return &body, true
}

// PayFondy POST /pay-fondy — creates a Fondy checkout URL.
func (h *Handlers) PayFondy(c *fiber.Ctx) error {
	body, ok := parsePayBody(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).SendString("Bad request")
	}

	merchantData, _ := json.Marshal(fiber.Map{"hold_id": body.HoldID, "tier": body.Tier})
	url, err := h.Fondy.CreateCheckoutURL(c.Context(), FondyCheckoutRequest{
		OrderID:           fmt.Sprintf("hold-%d-%d", body.HoldID, h.now().UnixMilli()),
		Amount:            h.Service.PriceCents(body.Tier),
		Currency:          "USD",
		OrderDesc:         body.Tier + " Founder",
		ResponseURL:       h.PublicBaseURL + "/thanks.html",
		ServerCallbackURL: h.BaseURL + "/webhooks/fondy",
		SenderEmail:       body.Email,
		MerchantData:      string(merchantData),
	})
	if err != nil {
		log.Error().Err(err).Int64("hold_id", body.HoldID).Msg("fondy create failed")
		return response.Error(c, fiber.StatusBadRequest, "Fondy error")
	}
	return response.OK(c, fiber.Map{"checkout_url": url})
}

// PayMono POST /pay-mono — creates a Monobank invoice link.
func (h *Handlers) PayMono(c *fiber.Ctx) error {
	body, ok := parsePayBody(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).SendString("Bad request")
	}

	orderID := fmt.Sprintf("hold-%d-%d", body.HoldID, h.now().UnixMilli())
	url, err := h.Mono.CreateInvoice(c.Context(), MonoInvoiceRequest{
		Amount: h.Service.PriceCents(body.Tier),
		Ccy:    840,
		MerchantPaymInfo: MonoMerchantInfo{
			Reference:   orderID,
			Destination: body.Tier + " Founder",
			// The webhook parses hold id and tier back out of this
			// comment, it is the only correlation channel mono gives us.
			Comment: fmt.Sprintf("hold_%d_%s", body.HoldID, body.Tier),
		},
		RedirectURL: h.PublicBaseURL + "/thanks.html",
		WebHookURL:  h.BaseURL + "/webhooks/mono",
	})
	if err != nil {
		log.Error().Err(err).Int64("hold_id", body.HoldID).Msg("mono create failed")
		return response.Error(c, fiber.StatusBadRequest, "mono error")
	}
	return response.OK(c, fiber.Map{"checkout_url": url})
}
