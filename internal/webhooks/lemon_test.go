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

	"wislet-backend/internal/convert"
	"wislet-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLemonSecret = "lmn_test_secret"

func newLemonApp(svc *convert.Service) *fiber.App {
	wh := &LemonHandler{Convert: svc, Secret: testLemonSecret}
	app := fiber.New()
	app.Post("/webhooks/lemon", wh.Handle)
	return app
}

func signLemon(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(testLemonSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func postLemon(t *testing.T, app *fiber.App, body []byte, sig, event string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("POST", "/webhooks/lemon", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", sig)
	req.Header.Set("X-Event-Name", event)
	resp, err := app.Test(req)
	require.NoError(t, err)

	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestLemonWebhook_BadSignature(t *testing.T) {
	svc, _ := setupWebhookTest(t)
	app := newLemonApp(svc)

	status, out := postLemon(t, app, []byte(`{}`), "deadbeef", "order_created")
	assert.Equal(t, 401, status)
	assert.Equal(t, "bad signature", out["error"])
}

func TestLemonWebhook_NonOrderEventIgnored(t *testing.T) {
	svc, _ := setupWebhookTest(t)
	app := newLemonApp(svc)

	body := []byte(`{}`)
	status, out := postLemon(t, app, body, signLemon(body), "subscription_created")
	assert.Equal(t, 200, status)
	assert.Contains(t, out["note"], "ignored event")
}

func TestLemonWebhook_NoHoldAccepted(t *testing.T) {
	svc, _ := setupWebhookTest(t)
	app := newLemonApp(svc)

	body, _ := json.Marshal(map[string]interface{}{
		"data": map[string]interface{}{
			"id": "ord_1",
			"attributes": map[string]interface{}{
				"variant_name": "Gold Founder",
				"total":        75000,
			},
		},
	})
	status, out := postLemon(t, app, body, signLemon(body), "order_created")
	assert.Equal(t, 202, status)
	assert.Equal(t, "no hold_id, ignored", out["note"])
}

func TestLemonWebhook_OrderConverts(t *testing.T) {
	svc, db := setupWebhookTest(t)
	hold := seedActiveHold(t, db, "buyer@example.com")
	app := newLemonApp(svc)

	body, _ := json.Marshal(map[string]interface{}{
		"data": map[string]interface{}{
			"id": "ord_1",
			"attributes": map[string]interface{}{
				"custom": map[string]interface{}{
					"hold_id": fmt.Sprint(hold.ID),
				},
				"variant_name": "Platinum Founder",
				"identifier":   "LS-100",
				"total":        1500,
				"currency":     "USD",
			},
		},
	})
	status, out := postLemon(t, app, body, signLemon(body), "order_created")
	require.Equal(t, 200, status)
	assert.Equal(t, true, out["ok"])

	var card domain.FounderCard
	require.NoError(t, db.Where("hold_id = ?", hold.ID).First(&card).Error)
	assert.Equal(t, domain.TierPF, card.Tier)

	var order domain.Order
	require.NoError(t, db.Where("hold_id = ?", hold.ID).First(&order).Error)
	assert.Equal(t, "lemon", order.Provider)
	assert.Equal(t, int64(1500), order.AmountCents)
	assert.Equal(t, "usd", order.Currency)
	require.NotNil(t, order.TxID)
	assert.Equal(t, "LS-100", *order.TxID)
}

func TestInferTier(t *testing.T) {
	assert.Equal(t, domain.TierPF, inferTier("Platinum Founder"))
	assert.Equal(t, domain.TierGF, inferTier("gold wave B"))
	assert.Equal(t, domain.TierSE, inferTier("SE Starter"))
	assert.Equal(t, "", inferTier("Deluxe"))
}

func TestCentsGuess(t *testing.T) {
	// Dollar-looking amounts are scaled to cents.
	assert.Equal(t, int64(6900), centsGuess(map[string]interface{}{"total": float64(69)}))
	assert.Equal(t, int64(75000), centsGuess(map[string]interface{}{"total": float64(75000)}))
	assert.Equal(t, int64(1500), centsGuess(map[string]interface{}{
		"first_order_item": map[string]interface{}{"price_in_cents": float64(1500)},
	}))
	assert.Equal(t, int64(0), centsGuess(map[string]interface{}{}))
}
