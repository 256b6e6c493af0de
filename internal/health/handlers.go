package health

import (
	"context"
	"strconv"
	"time"

	"wislet-backend/internal/middleware"
	"wislet-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Handlers holds dependencies for the health endpoints.
type Handlers struct {
	Rdb        *redis.Client
	DB         DBPinger
	AdminToken string
}

// JSON GET /health/json — health data for monitors.
func (h *Handlers) JSON(c *fiber.Ctx) error {
	result := Collect(context.Background(), h.Rdb, h.DB)
	return c.JSON(fiber.Map{
		"service":      "wislet-api",
		"status":       result.Status,
		"runtime":      result.Runtime,
		"traffic":      result.Traffic,
		"dependencies": result.Dependencies,
	})
}

// Reset POST /health/reset — clears the request counters. Guarded by
// the admin token (x-admin-token header or ?key=).
func (h *Handlers) Reset(c *fiber.Ctx) error {
	key := c.Get("x-admin-token")
	if key == "" {
		key = c.Query("key")
	}
	if h.AdminToken == "" || key != h.AdminToken {
		return response.Forbidden(c)
	}
	ctx := context.Background()
	keys := []string{
		middleware.KeyReqTotal, middleware.KeyReqErrors,
		middleware.KeyResTime, middleware.KeyResCount,
		middleware.KeyStartTime, middleware.KeyLastReq,
	}
	if err := h.Rdb.Del(ctx, keys...).Err(); err != nil {
		return response.Error(c, fiber.StatusInternalServerError, err.Error())
	}
	if err := h.Rdb.Set(ctx, middleware.KeyStartTime, strconv.FormatInt(time.Now().UnixMilli(), 10), 0).Err(); err != nil {
		return response.Error(c, fiber.StatusInternalServerError, err.Error())
	}
	return response.OK(c, fiber.Map{"ok": true})
}
