package invites

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"wislet-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupInvitesTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.WalletUser{}, &domain.WalletInvite{}))
	return &Service{DB: db}, db
}

func addMember(t *testing.T, db *gorm.DB, walletID int64, role string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, db.Create(&domain.WalletUser{
		WalletID: walletID,
		UserID:   id,
		Role:     role,
	}).Error)
	return id
}

func TestCreate_OwnerGetsToken(t *testing.T) {
	svc, _ := setupInvitesTest(t)
	owner := addMember(t, svc.DB, 1, domain.RoleOwner)

	invite, err := svc.Create(owner, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, invite.Token)
	assert.Equal(t, int64(1), invite.WalletID)
	assert.Equal(t, owner, invite.CreatedBy)
	assert.True(t, invite.ExpiresAt.After(time.Now().Add(6*24*time.Hour)))
}

func TestCreate_EditorAllowedViewerNot(t *testing.T) {
	svc, _ := setupInvitesTest(t)
	editor := addMember(t, svc.DB, 1, domain.RoleEditor)
	viewer := addMember(t, svc.DB, 1, domain.RoleViewer)

	_, err := svc.Create(editor, 1)
	require.NoError(t, err)

	_, err = svc.Create(viewer, 1)
	assert.ErrorIs(t, err, ErrInsufficientPermissions)
}

func TestCreate_NonMemberRejected(t *testing.T) {
	svc, _ := setupInvitesTest(t)
	_, err := svc.Create(uuid.New(), 1)
	assert.ErrorIs(t, err, ErrInsufficientPermissions)

	_, err = svc.Create(uuid.New(), 0)
	assert.ErrorIs(t, err, ErrWalletIDRequired)
}

func TestAccept_GrantsEditorOnce(t *testing.T) {
	svc, db := setupInvitesTest(t)
	owner := addMember(t, db, 7, domain.RoleOwner)
	invite, err := svc.Create(owner, 7)
	require.NoError(t, err)

	guest := uuid.New()
	require.NoError(t, svc.Accept(invite.Token, guest))

	var member domain.WalletUser
	require.NoError(t, db.Where("user_id = ? AND wallet_id = ?", guest, int64(7)).First(&member).Error)
	assert.Equal(t, domain.RoleEditor, member.Role)

	var stored domain.WalletInvite
	require.NoError(t, db.First(&stored, invite.ID).Error)
	require.NotNil(t, stored.UsedAt)
	require.NotNil(t, stored.UsedBy)
	assert.Equal(t, guest, *stored.UsedBy)

	// Same user again: idempotent
	require.NoError(t, svc.Accept(invite.Token, guest))

	// Different user: token is spent
	err = svc.Accept(invite.Token, uuid.New())
	assert.ErrorIs(t, err, ErrInviteNotFound)
}

func TestAccept_ExpiredAndMissing(t *testing.T) {
	svc, db := setupInvitesTest(t)
	owner := addMember(t, db, 2, domain.RoleOwner)

	svc.Now = func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) }
	invite, err := svc.Create(owner, 2)
	require.NoError(t, err)
	svc.Now = nil

	err = svc.Accept(invite.Token, uuid.New())
	assert.ErrorIs(t, err, ErrInviteExpired)

	err = svc.Accept("no-such-token", uuid.New())
	assert.ErrorIs(t, err, ErrInviteNotFound)

	err = svc.Accept("", uuid.New())
	assert.ErrorIs(t, err, ErrTokenRequired)
}

func TestMy_NewestFirst(t *testing.T) {
	svc, db := setupInvitesTest(t)
	owner := addMember(t, db, 3, domain.RoleOwner)

	first, err := svc.Create(owner, 3)
	require.NoError(t, err)
	require.NoError(t, db.Model(first).Update("created_at", time.Now().Add(-time.Hour)).Error)
	second, err := svc.Create(owner, 3)
	require.NoError(t, err)

	items, err := svc.My(owner)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, second.ID, items[0].ID)
	assert.Equal(t, first.ID, items[1].ID)

	items, err = svc.My(uuid.New())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func withSession(userID string, next fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user", map[string]interface{}{"user_id": userID})
		return next(c)
	}
}

func TestHandlers_CreateAndAccept(t *testing.T) {
	svc, db := setupInvitesTest(t)
	owner := addMember(t, db, 5, domain.RoleOwner)
	guest := uuid.New()
	h := &Handlers{Service: svc}

	app := fiber.New()
	app.Post("/invites", withSession(owner.String(), h.Create))
	app.Post("/invites/accept", withSession(guest.String(), h.Accept))
	app.Get("/invites/my", withSession(owner.String(), h.My))

	body, _ := json.Marshal(map[string]int64{"wallet_id": 5})
	req := httptest.NewRequest("POST", "/invites", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	b, _ := io.ReadAll(resp.Body)
	var created map[string]string
	require.NoError(t, json.Unmarshal(b, &created))
	token := created["invite_token"]
	require.NotEmpty(t, token)

	body, _ = json.Marshal(map[string]string{"token": token})
	req = httptest.NewRequest("POST", "/invites/accept", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest("GET", "/invites/my", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	b, _ = io.ReadAll(resp.Body)
	var listed struct {
		Items []domain.WalletInvite `json:"items"`
	}
	require.NoError(t, json.Unmarshal(b, &listed))
	require.Len(t, listed.Items, 1)
	assert.NotNil(t, listed.Items[0].UsedAt)
}

func TestHandlers_Rejections(t *testing.T) {
	svc, db := setupInvitesTest(t)
	viewer := addMember(t, db, 5, domain.RoleViewer)
	h := &Handlers{Service: svc}

	app := fiber.New()
	app.Post("/invites", withSession(viewer.String(), h.Create))
	app.Post("/invites/nouser", h.Create)

	body, _ := json.Marshal(map[string]int64{"wallet_id": 5})
	req := httptest.NewRequest("POST", "/invites", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// Missing wallet_id
	req = httptest.NewRequest("POST", "/invites", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// No session user
	req = httptest.NewRequest("POST", "/invites/nouser", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
