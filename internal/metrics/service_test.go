package metrics

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"wislet-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupMetricsTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.FounderCard{}, &domain.Order{}, &domain.SellBatch{}))
	return &Service{DB: db}, db
}

func TestWaveShort(t *testing.T) {
	wave := func(s string) *string { return &s }
	assert.Equal(t, "B", *waveShort(wave("Wave B")))
	assert.Equal(t, "A", *waveShort(wave("wave a")))
	assert.Equal(t, "Early", *waveShort(wave("Early")))
	assert.Nil(t, waveShort(nil))
}

func TestNetCents(t *testing.T) {
	// 75000 - round(75000*0.029) - 30 = 75000 - 2175 - 30
	assert.Equal(t, int64(72795), netCents(75000))
	assert.Equal(t, int64(0), netCents(10))
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "u***@example.com", maskEmail("User@Example.com"))
	assert.Equal(t, "", maskEmail("broken"))
	assert.Equal(t, "", maskEmail("@x.com"))
}

func TestCollect(t *testing.T) {
	svc, db := setupMetricsTest(t)

	hix := func(i int64) *int64 { return &i }
	require.NoError(t, db.Create(&domain.FounderCard{FounderID: 1, Tier: "PF", HoldID: hix(1), Email: "a@x.com"}).Error)
	require.NoError(t, db.Create(&domain.FounderCard{FounderID: 1, Tier: "GF", HoldID: hix(2), Email: "b@x.com"}).Error)
	require.NoError(t, db.Create(&domain.FounderCard{FounderID: 2, Tier: "GF", HoldID: hix(3), Email: "c@x.com"}).Error)
	require.NoError(t, db.Create(&domain.FounderCard{FounderID: 3, Tier: "GF", HoldID: hix(4), Email: "t@x.com", IsTest: true}).Error)

	require.NoError(t, db.Create(&domain.Order{Email: "a@x.com", Tier: "PF", AmountCents: 150000, Status: "paid"}).Error)
	require.NoError(t, db.Create(&domain.Order{Email: "t@x.com", Tier: "GF", AmountCents: 75000, Status: "paid", IsTest: true}).Error)

	wave := "Wave B"
	require.NoError(t, db.Create(&domain.SellBatch{Name: "PF Early", Tier: "PF", PriceCents: 150000, Quota: 10, IsActive: true}).Error)
	require.NoError(t, db.Create(&domain.SellBatch{Name: "GF Wave A", Tier: "GF", PriceCents: 70000, Quota: 100, IsActive: false}).Error)
	require.NoError(t, db.Create(&domain.SellBatch{Name: "GF Wave B", Tier: "GF", Wave: &wave, PriceCents: 75000, Quota: 200, IsActive: true}).Error)

	snap, err := svc.Collect()
	require.NoError(t, err)

	assert.Equal(t, int64(1), snap.SoldPF)
	assert.Equal(t, int64(2), snap.SoldGF)
	assert.Equal(t, int64(0), snap.SoldSE)

	// Only the non-test paid order counts: 150000 - 4350 - 30.
	assert.Equal(t, int64(145620), snap.NetCents)

	assert.Equal(t, int64(10), snap.QuotaPF)
	assert.Equal(t, int64(300), snap.QuotaGF)

	assert.Equal(t, int64(150000), snap.PFPriceCents)
	assert.Equal(t, int64(75000), snap.GFPriceCents)
	require.NotNil(t, snap.GFWaveShort)
	assert.Equal(t, "B", *snap.GFWaveShort)
	require.NotNil(t, snap.GFWaveRaw)
	assert.Equal(t, "Wave B", *snap.GFWaveRaw)
	assert.Equal(t, int64(0), snap.SEPriceCents)
}

func TestFoundersHall(t *testing.T) {
	svc, db := setupMetricsTest(t)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		id := int64(i)
		card := &domain.FounderCard{FounderID: id, Tier: "GF", HoldID: &id, Email: "founder@x.com"}
		require.NoError(t, db.Create(card).Error)
		require.NoError(t, db.Model(card).Update("issued_at", base.AddDate(0, 0, i)).Error)
	}

	entries, err := svc.FoundersHall(0, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(3), entries[0].FounderID)
	assert.Equal(t, int64(2), entries[1].FounderID)
	assert.Equal(t, "f***@x.com", entries[0].EmailMask)

	entries, err = svc.FoundersHall(2, 2)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].FounderID)
}

func TestPublicHandler_CacheControl(t *testing.T) {
	svc, _ := setupMetricsTest(t)
	app := fiber.New()
	h := &Handlers{Service: svc}
	app.Get("/metrics", h.Public)

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "public, max-age=15, s-maxage=60", resp.Header.Get("Cache-Control"))

	var snap Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Zero(t, snap.SoldPF)
}

func TestFoundersHallHandler_LimitClamp(t *testing.T) {
	svc, db := setupMetricsTest(t)
	for i := 1; i <= 3; i++ {
		id := int64(i)
		require.NoError(t, db.Create(&domain.FounderCard{FounderID: id, Tier: "SE", HoldID: &id, Email: "x@y.com"}).Error)
	}
	app := fiber.New()
	app.Get("/founders-hall", (&Handlers{Service: svc}).FoundersHall)

	resp, err := app.Test(httptest.NewRequest("GET", "/founders-hall?limit=0", nil))
	require.NoError(t, err)
	var entries []HallEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	assert.Len(t, entries, 1)
}
