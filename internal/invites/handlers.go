package invites

import (
	"wislet-backend/internal/middleware"
	"wislet-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handlers exposes the wallet invite endpoints. Routes are mounted
// behind middleware.RequireAuth.
type Handlers struct {
	Service *Service
}

func sessionUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	m, ok := middleware.GetUser(c).(map[string]interface{})
	if !ok {
		return uuid.Nil, false
	}
	s, _ := m["user_id"].(string)
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Create POST /invites — body {wallet_id}, returns {invite_token}.
func (h *Handlers) Create(c *fiber.Ctx) error {
	userID, ok := sessionUserID(c)
	if !ok {
		return response.Unauthorized(c, "unauthorized")
	}
	var req struct {
		WalletID int64 `json:"wallet_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, fiber.StatusBadRequest, ErrWalletIDRequired.Error())
	}

	invite, err := h.Service.Create(userID, req.WalletID)
	if err != nil {
		switch err {
		case ErrWalletIDRequired:
			return response.Error(c, fiber.StatusBadRequest, err.Error())
		case ErrInsufficientPermissions:
			return response.Error(c, fiber.StatusForbidden, err.Error())
		default:
			return response.Error(c, fiber.StatusBadRequest, err.Error())
		}
	}
	return response.OK(c, fiber.Map{"invite_token": invite.Token})
}

// Accept POST /invites/accept — body {token}, returns {ok:true}.
func (h *Handlers) Accept(c *fiber.Ctx) error {
	userID, ok := sessionUserID(c)
	if !ok {
		return response.Unauthorized(c, "unauthorized")
	}
	var req struct {
		Token string `json:"token"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, fiber.StatusBadRequest, ErrTokenRequired.Error())
	}

	if err := h.Service.Accept(req.Token, userID); err != nil {
		return response.Error(c, fiber.StatusBadRequest, err.Error())
	}
	return response.OK(c, fiber.Map{"ok": true})
}

// My GET /invites/my — invites created by the current user.
func (h *Handlers) My(c *fiber.Ctx) error {
	userID, ok := sessionUserID(c)
	if !ok {
		return response.Unauthorized(c, "unauthorized")
	}
	items, err := h.Service.My(userID)
	if err != nil {
		return response.Error(c, fiber.StatusBadRequest, err.Error())
	}
	return response.OK(c, fiber.Map{"items": items})
}
