package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllow_WithinBudget(t *testing.T) {
	l := New(10*time.Second, 3)
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("k"))
	}
	assert.False(t, l.Allow("k"))
}

func TestAllow_IndependentKeys(t *testing.T) {
	l := New(10*time.Second, 1)
	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
	assert.False(t, l.Allow("a"))
}

func TestAllow_WindowReset(t *testing.T) {
	now := time.Unix(1700000000, 0)
	l := New(10*time.Second, 1).WithClock(func() time.Time { return now })

	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))

	now = now.Add(11 * time.Second)
	assert.True(t, l.Allow("k"), "elapsed window starts a fresh bucket")
}

func TestMiddleware_Returns429(t *testing.T) {
	l := New(10*time.Second, 1)
	app := fiber.New()
	app.Post("/x", l.Middleware(), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	req := httptest.NewRequest("POST", "/x", nil)
	req.Header.Set("x-admin-token", "secret")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 429, resp.StatusCode)
}
