package holds

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"wislet-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupHoldsTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Hold{}))
	return &Service{DB: db}, db
}

func seedHold(t *testing.T, db *gorm.DB, email string, status string, createdAt, expiresAt time.Time, chased bool) *domain.Hold {
	h := &domain.Hold{
		Email:     email,
		BatchID:   2,
		Status:    status,
		ExpiresAt: expiresAt,
		Chased:    chased,
	}
	require.NoError(t, db.Create(h).Error)
	// CreatedAt is gorm-managed, so backdate explicitly.
	require.NoError(t, db.Model(h).Update("created_at", createdAt).Error)
	return h
}

func TestToChase(t *testing.T) {
	svc, db := setupHoldsTest(t)
	now := time.Now()
	svc.Now = func() time.Time { return now }

	old := seedHold(t, db, "old@x.com", domain.HoldActive, now.Add(-30*time.Minute), now.Add(30*time.Minute), false)
	seedHold(t, db, "fresh@x.com", domain.HoldActive, now.Add(-2*time.Minute), now.Add(30*time.Minute), false)
	seedHold(t, db, "chased@x.com", domain.HoldActive, now.Add(-30*time.Minute), now.Add(30*time.Minute), true)
	seedHold(t, db, "expired@x.com", domain.HoldActive, now.Add(-30*time.Minute), now.Add(-time.Minute), false)
	seedHold(t, db, "done@x.com", domain.HoldConverted, now.Add(-30*time.Minute), now.Add(30*time.Minute), false)

	rows, err := svc.ToChase(10, 200)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, old.ID, rows[0].HoldID)
	assert.Equal(t, "old@x.com", rows[0].Email)
	assert.Equal(t, int64(2), rows[0].BatchID)
}

func TestToChase_LimitClamp(t *testing.T) {
	svc, db := setupHoldsTest(t)
	now := time.Now()
	svc.Now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		seedHold(t, db, "u@x.com", domain.HoldActive, now.Add(-time.Hour), now.Add(time.Hour), false)
	}

	rows, err := svc.ToChase(10, 0) // clamps to 1
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = svc.ToChase(0, 1000) // clamps to 500
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}

func TestMarkChased(t *testing.T) {
	svc, db := setupHoldsTest(t)
	now := time.Now()
	h := seedHold(t, db, "u@x.com", domain.HoldActive, now.Add(-time.Hour), now.Add(time.Hour), false)

	updated, err := svc.MarkChased(h.ID, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	var got domain.Hold
	require.NoError(t, db.First(&got, h.ID).Error)
	assert.True(t, got.Chased)
	require.NotNil(t, got.ChasedAt)

	updated, err = svc.MarkChased(h.ID, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	var cleared domain.Hold
	require.NoError(t, db.First(&cleared, h.ID).Error)
	assert.False(t, cleared.Chased)
	assert.Nil(t, cleared.ChasedAt)

	var nulled int64
	require.NoError(t, db.Model(&domain.Hold{}).
		Where("id = ? AND chased_at IS NULL", h.ID).Count(&nulled).Error)
	assert.Equal(t, int64(1), nulled)

	_, err = svc.MarkChased(0, true)
	assert.ErrorIs(t, err, ErrHoldIDRequired)
}

func TestMarkChasedBulk(t *testing.T) {
	svc, db := setupHoldsTest(t)
	now := time.Now()
	a := seedHold(t, db, "a@x.com", domain.HoldActive, now, now.Add(time.Hour), false)
	b := seedHold(t, db, "b@x.com", domain.HoldActive, now, now.Add(time.Hour), false)

	updated, err := svc.MarkChasedBulk([]int64{a.ID, b.ID, 0, 99999}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)

	_, err = svc.MarkChasedBulk(nil, true)
	assert.ErrorIs(t, err, ErrIDsRequired)

	big := make([]int64, 201)
	for i := range big {
		big[i] = int64(i + 1)
	}
	_, err = svc.MarkChasedBulk(big, true)
	assert.ErrorIs(t, err, ErrTooManyIDs)
}

func TestUpdateHold(t *testing.T) {
	svc, db := setupHoldsTest(t)
	now := time.Now()
	h := seedHold(t, db, "u@x.com", domain.HoldActive, now, now.Add(time.Hour), false)

	longNote := make([]byte, 2500)
	for i := range longNote {
		longNote[i] = 'x'
	}
	note := string(longNote)
	tries := 3.7
	updated, rows, err := svc.UpdateHold(h.ID, UpdatePatch{Note: &note, Tries: &tries})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].Note)
	assert.Len(t, *rows[0].Note, 2000)
	assert.Equal(t, 3, rows[0].Tries)

	neg := -5.0
	_, rows, err = svc.UpdateHold(h.ID, UpdatePatch{Tries: &neg})
	require.NoError(t, err)
	assert.Equal(t, 0, rows[0].Tries)

	// Empty patch is a reported no-op.
	updated, rows, err = svc.UpdateHold(h.ID, UpdatePatch{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated)
	assert.Nil(t, rows)

	_, _, err = svc.UpdateHold(0, UpdatePatch{Note: &note})
	assert.ErrorIs(t, err, ErrHoldIDRequired)
}

func newHoldsApp(h *Handlers) *fiber.App {
	app := fiber.New()
	app.Get("/admin/holds-to-chase", h.ToChase)
	app.Post("/admin/mark-chased", h.MarkChased)
	app.Post("/admin/mark-chased-bulk", h.MarkChasedBulk)
	app.Post("/admin/update-hold", h.UpdateHold)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestToChaseHandler(t *testing.T) {
	svc, db := setupHoldsTest(t)
	now := time.Now()
	svc.Now = func() time.Time { return now }
	seedHold(t, db, "old@x.com", domain.HoldActive, now.Add(-time.Hour), now.Add(time.Hour), false)
	app := newHoldsApp(&Handlers{Service: svc})

	req := httptest.NewRequest("GET", "/admin/holds-to-chase?min_age=10&limit=50", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var rows []ChaseRow
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rows))
	assert.Len(t, rows, 1)
}

func TestMarkChasedHandler_Validation(t *testing.T) {
	svc, _ := setupHoldsTest(t)
	app := newHoldsApp(&Handlers{Service: svc})

	status, out := postJSON(t, app, "/admin/mark-chased", fiber.Map{"mark": true})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "hold_id required", out["error"])

	status, out = postJSON(t, app, "/admin/mark-chased-bulk", fiber.Map{"ids": []int64{}, "mark": true})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "ids required", out["error"])
}

func TestUpdateHoldHandler(t *testing.T) {
	svc, db := setupHoldsTest(t)
	now := time.Now()
	h := seedHold(t, db, "u@x.com", domain.HoldActive, now, now.Add(time.Hour), false)
	app := newHoldsApp(&Handlers{Service: svc})

	status, out := postJSON(t, app, "/admin/update-hold", fiber.Map{"hold_id": h.ID, "note": "call back"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, float64(1), out["updated"])

	status, out = postJSON(t, app, "/admin/update-hold", fiber.Map{"hold_id": h.ID})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(0), out["updated"])
}

func TestUpdateHold_NoteClipsOnRuneBoundary(t *testing.T) {
	svc, _ := setupHoldsTest(t)
	now := time.Now()
	h := seedHold(t, svc.DB, "u@x.com", domain.HoldActive, now, now.Add(time.Hour), false)

	// Cyrillic characters are multi-byte; a byte-indexed clip of this
	// note would end mid-character and produce invalid UTF-8.
	note := strings.Repeat("передзвонити ", 200)
	_, rows, err := svc.UpdateHold(h.ID, UpdatePatch{Note: &note})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].Note)
	assert.Equal(t, 2000, utf8.RuneCountInString(*rows[0].Note))
	assert.True(t, utf8.ValidString(*rows[0].Note))
}
