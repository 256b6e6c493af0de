package response

import (
	"github.com/gofiber/fiber/v2"
)

// ErrorBody is the plain error shape: {"error": "..."}.
type ErrorBody struct {
	Error string `json:"error"`
}

// FailBody is the envelope shape used by admin/webhook routes:
// {"ok": false, "error": "..."}.
type FailBody struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// Error sends {"error": message} with the given status.
func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(ErrorBody{Error: message})
}

// Fail sends {"ok": false, "error": message} with the given status.
func Fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(FailBody{OK: false, Error: message})
}

// OK sends the payload as 200 JSON.
func OK(c *fiber.Ctx, payload interface{}) error {
	return c.Status(fiber.StatusOK).JSON(payload)
}

// Forbidden sends the admin-guard rejection: 403 {"error":"forbidden"}.
func Forbidden(c *fiber.Ctx) error {
	return Error(c, fiber.StatusForbidden, "forbidden")
}

// Unauthorized sends 401 {"error": message}.
func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusUnauthorized, message)
}
