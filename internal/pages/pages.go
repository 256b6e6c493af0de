package pages

import (
	"html"

	"github.com/gofiber/fiber/v2"
)

// Static post-checkout pages the payment providers redirect to. Served
// here so the API works standalone, the landing site mirrors them.

const pageStyle = `body{font-family:system-ui;margin:0;padding:40px;line-height:1.5}.box{max-width:640px;margin:auto}`

// Thanks GET /thanks?session_id — payment accepted page.
func Thanks(c *fiber.Ctx) error {
	sessionID := c.Query("session_id")
	session := ""
	if sessionID != "" {
		session = `<p>ID сесії: <code>` + html.EscapeString(sessionID) + `</code></p>`
	}
	body := `<!doctype html><html><head><meta charset="utf-8" />` +
		`<meta name="viewport" content="width=device-width,initial-scale=1" />` +
		`<title>Дякуємо — Wislet</title><style>` + pageStyle + `</style></head><body>` +
		`<div class="box"><h1>Дякуємо! ✅</h1><p>Платіж прийнято.</p>` + session +
		`<p>Можеш закрити це вікно або повернутися в застосунок.</p></div></body></html>`

	c.Set(fiber.HeaderContentType, "text/html; charset=utf-8")
	return c.SendString(body)
}

// Cancel GET /cancel — payment cancelled page.
func Cancel(c *fiber.Ctx) error {
	body := `<!doctype html><html><head><meta charset="utf-8" />` +
		`<meta name="viewport" content="width=device-width,initial-scale=1" />` +
		`<title>Оплату скасовано — Wislet</title><style>` + pageStyle + `</style></head><body>` +
		`<div class="box"><h1>Оплату скасовано ❌</h1>` +
		`<p>Ти можеш спробувати ще раз будь-коли.</p></div></body></html>`

	c.Set(fiber.HeaderContentType, "text/html; charset=utf-8")
	return c.SendString(body)
}
