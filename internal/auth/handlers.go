package auth

import (
	"context"

	"wislet-backend/internal/middleware"
	"wislet-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const userSessionsPrefix = "user_sessions:"

// Handlers holds dependencies for auth endpoints.
type Handlers struct {
	UserFinder UserFinder
	Rdb        *redis.Client
	Config     middleware.SessionConfig
}

// Login POST /auth/login — authenticate, regenerate the session, track
// it in user_sessions:<id>, set the cookie.
func (h *Handlers) Login(c *fiber.Ctx) error {
	if h.UserFinder == nil {
		return response.Error(c, fiber.StatusInternalServerError, "Internal Server Error")
	}
	var req LoginInput
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, fiber.StatusBadRequest, ErrEmailPasswordRequired.Error())
	}
	if req.Email == "" || req.Password == "" {
		return response.Error(c, fiber.StatusBadRequest, ErrEmailPasswordRequired.Error())
	}

	user, err := h.UserFinder.FindByEmailAndPassword(req.Email, req.Password)
	if err != nil {
		switch err {
		case ErrEmailPasswordRequired:
			return response.Error(c, fiber.StatusBadRequest, err.Error())
		case ErrInvalidEmail, ErrIncorrectPassword:
			return response.Error(c, fiber.StatusUnauthorized, err.Error())
		default:
			log.Error().Err(err).Msg("auth/login: lookup failed")
			return response.Error(c, fiber.StatusInternalServerError, "Internal Server Error")
		}
	}

	// New session ID on every login
	sessionID := middleware.RegenerateSessionID(c)

	middleware.SetSessionUser(c, middleware.SessionUser{
		UserID:   user.UserID.String(),
		Email:    user.Email,
		Fullname: user.Fullname,
	})

	ctx := context.Background()
	if err := h.Rdb.SAdd(ctx, userSessionsPrefix+user.UserID.String(), sessionID).Err(); err != nil {
		return response.Error(c, fiber.StatusInternalServerError, "Internal Server Error")
	}

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = sessionID
	c.Cookie(&cookie)

	return response.OK(c, fiber.Map{
		"ok": true,
		"user": fiber.Map{
			"user_id":  user.UserID.String(),
			"email":    user.Email,
			"fullname": user.Fullname,
		},
	})
}

// Me GET /auth/me — current session user.
func (h *Handlers) Me(c *fiber.Ctx) error {
	user, err := VerifyUser(middleware.GetUser(c))
	if err != nil {
		return response.Error(c, fiber.StatusUnauthorized, ErrNotAuthenticated.Error())
	}
	return response.OK(c, fiber.Map{"ok": true, "user": user})
}

// Logout POST /auth/logout — SRem user_sessions:<id>, Del the session
// key, clear the cookie.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	sessionID := middleware.GetSessionID(c)
	sessionUser := middleware.GetUser(c)

	ctx := context.Background()

	if sessionUser != nil && sessionID != "" {
		if m, ok := sessionUser.(map[string]interface{}); ok {
			if userID, _ := m["user_id"].(string); userID != "" {
				_ = h.Rdb.SRem(ctx, userSessionsPrefix+userID, sessionID).Err()
			}
		}
	}
	if sessionID != "" {
		_ = h.Rdb.Del(ctx, middleware.SessionRedisPrefix+sessionID).Err()
	}

	middleware.DestroySession(c)

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = ""
	cookie.MaxAge = -1
	c.Cookie(&cookie)

	return response.OK(c, fiber.Map{"ok": true})
}
