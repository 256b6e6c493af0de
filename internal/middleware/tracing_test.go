package middleware

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracing_GeneratesAndEchoesID(t *testing.T) {
	app := fiber.New()
	app.Use(Tracing())
	var seen string
	app.Get("/", func(c *fiber.Ctx) error {
		seen = GetTraceID(c)
		return c.SendString("ok")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, resp.Header.Get("X-Trace-Id"))
}

func TestTracing_ReusesInboundID(t *testing.T) {
	app := fiber.New()
	app.Use(Tracing())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Trace-Id", "retry-attempt-3")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "retry-attempt-3", resp.Header.Get("X-Trace-Id"))

	// Oversized inbound ids are replaced, not echoed
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Trace-Id", strings.Repeat("a", 65))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.NotEqual(t, strings.Repeat("a", 65), resp.Header.Get("X-Trace-Id"))
	assert.NotEmpty(t, resp.Header.Get("X-Trace-Id"))
}
