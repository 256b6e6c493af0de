package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wislet-backend/internal/convert"
	"wislet-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testStripeSecret = "whsec_test_secret_123"

func setupWebhookTest(t *testing.T) (*convert.Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Hold{}, &domain.SellBatch{}, &domain.Order{},
		&domain.FounderCard{}, &domain.ManualConvertRequest{},
	))
	return &convert.Service{DB: db}, db
}

func seedActiveHold(t *testing.T, db *gorm.DB, email string) *domain.Hold {
	h := &domain.Hold{
		Email:     email,
		BatchID:   2,
		Status:    domain.HoldActive,
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}
	require.NoError(t, db.Create(h).Error)
	return h
}

func signStripePayload(payload []byte, secret string) string {
	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "." + string(payload)))
	sig := hex.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("t=%s,v1=%s", ts, sig)
}

func postStripe(t *testing.T, app *fiber.App, body []byte, sig string) int {
	t.Helper()
	req := httptest.NewRequest("POST", "/webhooks/stripe", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	if sig != "" {
		req.Header.Set("stripe-signature", sig)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func newStripeApp(svc *convert.Service) *fiber.App {
	wh := &StripeHandler{Convert: svc, Secret: testStripeSecret}
	app := fiber.New()
	app.Post("/webhooks/stripe", wh.Handle)
	return app
}

func TestStripeWebhook_MissingSignature(t *testing.T) {
	svc, _ := setupWebhookTest(t)
	app := newStripeApp(svc)
	assert.Equal(t, 400, postStripe(t, app, []byte(`{}`), ""))
}

func TestStripeWebhook_InvalidSignature(t *testing.T) {
	svc, _ := setupWebhookTest(t)
	app := newStripeApp(svc)
	assert.Equal(t, 400, postStripe(t, app, []byte(`{"type":"checkout.session.completed"}`), "t=123,v1=invalid"))
}

func stripeSessionEvent(eventType string, object map[string]interface{}) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"id":   "evt_test_1",
		"type": eventType,
		"data": map[string]interface{}{"object": object},
	})
	return body
}

func TestStripeWebhook_SessionCompleted_Converts(t *testing.T) {
	svc, db := setupWebhookTest(t)
	hold := seedActiveHold(t, db, "buyer@example.com")
	app := newStripeApp(svc)

	body := stripeSessionEvent("checkout.session.completed", map[string]interface{}{
		"id":             "cs_1",
		"status":         "complete",
		"payment_status": "paid",
		"payment_intent": "pi_123",
		"amount_total":   75000,
		"currency":       "usd",
		"metadata": map[string]string{
			"hold_id":     fmt.Sprint(hold.ID),
			"tier":        "GF",
			"buyer_email": "buyer@example.com",
		},
	})
	status := postStripe(t, app, body, signStripePayload(body, testStripeSecret))
	require.Equal(t, 200, status)

	var got domain.Hold
	require.NoError(t, db.First(&got, hold.ID).Error)
	assert.Equal(t, domain.HoldConverted, got.Status)

	var card domain.FounderCard
	require.NoError(t, db.Where("hold_id = ?", hold.ID).First(&card).Error)
	assert.Equal(t, "GF", card.Tier)

	var order domain.Order
	require.NoError(t, db.Where("hold_id = ?", hold.ID).First(&order).Error)
	require.NotNil(t, order.TxID)
	assert.Equal(t, "pi_123", *order.TxID)
	assert.Equal(t, int64(75000), order.AmountCents)
}

func TestStripeWebhook_UnpaidSessionIgnored(t *testing.T) {
	svc, db := setupWebhookTest(t)
	hold := seedActiveHold(t, db, "buyer@example.com")
	app := newStripeApp(svc)

	body := stripeSessionEvent("checkout.session.completed", map[string]interface{}{
		"id":             "cs_1",
		"status":         "complete",
		"payment_status": "unpaid",
		"metadata":       map[string]string{"hold_id": fmt.Sprint(hold.ID), "tier": "GF"},
	})
	status := postStripe(t, app, body, signStripePayload(body, testStripeSecret))
	require.Equal(t, 200, status)

	var got domain.Hold
	require.NoError(t, db.First(&got, hold.ID).Error)
	assert.Equal(t, domain.HoldActive, got.Status)
}

func TestStripeWebhook_SessionExpired_Releases(t *testing.T) {
	svc, db := setupWebhookTest(t)
	hold := seedActiveHold(t, db, "buyer@example.com")
	app := newStripeApp(svc)

	body := stripeSessionEvent("checkout.session.expired", map[string]interface{}{
		"id":       "cs_1",
		"metadata": map[string]string{"hold_id": fmt.Sprint(hold.ID)},
	})
	status := postStripe(t, app, body, signStripePayload(body, testStripeSecret))
	require.Equal(t, 200, status)

	var got domain.Hold
	require.NoError(t, db.First(&got, hold.ID).Error)
	assert.Equal(t, domain.HoldReleased, got.Status)
}

func TestStripeWebhook_PaymentFailed_Releases(t *testing.T) {
	svc, db := setupWebhookTest(t)
	hold := seedActiveHold(t, db, "buyer@example.com")
	app := newStripeApp(svc)

	body := stripeSessionEvent("payment_intent.payment_failed", map[string]interface{}{
		"id":       "pi_1",
		"metadata": map[string]string{"hold_id": fmt.Sprint(hold.ID)},
	})
	status := postStripe(t, app, body, signStripePayload(body, testStripeSecret))
	require.Equal(t, 200, status)

	var got domain.Hold
	require.NoError(t, db.First(&got, hold.ID).Error)
	assert.Equal(t, domain.HoldReleased, got.Status)
}

func TestStripeWebhook_UnknownEventAcked(t *testing.T) {
	svc, _ := setupWebhookTest(t)
	app := newStripeApp(svc)

	body := stripeSessionEvent("charge.succeeded", map[string]interface{}{})
	assert.Equal(t, 200, postStripe(t, app, body, signStripePayload(body, testStripeSecret)))
}
