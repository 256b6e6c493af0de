package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"wislet-backend/internal/convert"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// StripeHandler receives Stripe webhook events for checkout sessions.
type StripeHandler struct {
	Convert *convert.Service
	Secret  string
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type checkoutSessionObject struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status"`
	PaymentIntent string            `json:"payment_intent"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
}

type paymentIntentObject struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

// Handle POST /webhooks/stripe — raw body, signature verification, then
// process. Bad signatures get a 400 so Stripe surfaces the misconfig;
// processing failures still answer 200 to stop infinite retries.
func (wh *StripeHandler) Handle(c *fiber.Ctx) error {
	rawBody := c.BodyRaw()
	// Stripe sends "Stripe-Signature"; Fiber's Get is case-insensitive
	sig := c.Get("Stripe-Signature")

	if len(rawBody) == 0 {
		log.Warn().Msg("Stripe webhook received empty body (ensure no global body parser consumes the webhook body)")
		return c.Status(400).SendString("Webhook Error: empty body")
	}

	if err := verifyStripeSignature(rawBody, sig, wh.Secret); err != nil {
		log.Warn().Err(err).Bool("has_sig", sig != "").Bool("has_secret", wh.Secret != "").Msg("Stripe webhook signature verification failed")
		return c.Status(400).SendString(fmt.Sprintf("Webhook Error: %s", err.Error()))
	}

	var event stripeEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		log.Warn().Err(err).Msg("Stripe webhook JSON parse failed")
		return c.Status(400).SendString(fmt.Sprintf("Webhook Error: %s", err.Error()))
	}

	log.Info().Str("event", event.Type).Str("event_id", event.ID).Msg("stripe webhook")

	switch event.Type {
	case "checkout.session.completed":
		var s checkoutSessionObject
		if err := json.Unmarshal(event.Data.Object, &s); err != nil {
			return c.Status(200).SendString("ok")
		}
		wh.handleSessionCompleted(s, rawBody)

	case "checkout.session.expired":
		var s checkoutSessionObject
		if err := json.Unmarshal(event.Data.Object, &s); err != nil {
			return c.Status(200).SendString("ok")
		}
		wh.releaseByMetadata(s.Metadata, "session expired")

	case "payment_intent.payment_failed":
		var pi paymentIntentObject
		if err := json.Unmarshal(event.Data.Object, &pi); err != nil {
			return c.Status(200).SendString("ok")
		}
		wh.releaseByMetadata(pi.Metadata, "payment failed")
	}

	return c.Status(200).SendString("ok")
}

func (wh *StripeHandler) handleSessionCompleted(s checkoutSessionObject, rawBody []byte) {
	holdID, _ := strconv.ParseInt(s.Metadata["hold_id"], 10, 64)
	paid := s.Status == "complete" && s.PaymentStatus == "paid"
	if holdID == 0 || !paid {
		return
	}

	// tx_id is the PaymentIntent when present, the session id otherwise.
	txID := s.PaymentIntent
	if txID == "" {
		txID = s.ID
	}

	_, err := wh.Convert.Convert(convert.Request{
		HoldID:      holdID,
		Email:       s.Metadata["buyer_email"],
		Tier:        s.Metadata["tier"],
		Provider:    "stripe",
		TxID:        &txID,
		AmountCents: s.AmountTotal,
		Currency:    s.Currency,
		RawPayload:  rawBody,
	})
	if err != nil {
		log.Error().Err(err).Int64("hold_id", holdID).Msg("stripe webhook convert failed")
	}
}

func (wh *StripeHandler) releaseByMetadata(md map[string]string, reason string) {
	holdID, _ := strconv.ParseInt(md["hold_id"], 10, 64)
	if holdID == 0 {
		return
	}
	if err := wh.Convert.ReleaseHold(holdID); err != nil {
		log.Error().Err(err).Int64("hold_id", holdID).Str("reason", reason).Msg("release hold failed")
	}
}

// verifyStripeSignature verifies the Stripe-Signature header using the webhook secret.
func verifyStripeSignature(payload []byte, sigHeader, secret string) error {
	if sigHeader == "" || secret == "" {
		return errors.New("missing signature or secret")
	}

	var timestamp string
	var signatures []string

	parts := strings.Split(sigHeader, ",")
	for _, part := range parts {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return errors.New("invalid signature format")
	}

	signedPayload := timestamp + "." + string(payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	expectedSig := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expectedSig)) {
			// Check tolerance (5 minutes)
			ts, err := strconv.ParseInt(timestamp, 10, 64)
			if err != nil {
				return errors.New("invalid timestamp")
			}
			diff := time.Now().Unix() - ts
			if diff < 0 {
				diff = -diff
			}
			if diff > 300 {
				return errors.New("timestamp too old")
			}
			return nil
		}
	}

	return errors.New("signature mismatch")
}
