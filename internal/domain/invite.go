package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Wallet roles. Only owners and editors may create invites.
const (
	RoleOwner  = "owner"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// WalletUser links a user to a shared wallet with a role.
type WalletUser struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	WalletID  int64     `gorm:"column:wallet_id;not null;uniqueIndex:idx_wallet_user" json:"wallet_id"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_wallet_user" json:"user_id"`
	Role      string    `gorm:"column:role;not null;default:'viewer'" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (WalletUser) TableName() string {
	return "wallet_users"
}

// WalletInvite is a one-time token granting editor access to a wallet.
type WalletInvite struct {
	ID        int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	WalletID  int64      `gorm:"column:wallet_id;not null" json:"wallet_id"`
	Token     string     `gorm:"column:token;not null;uniqueIndex" json:"token"`
	CreatedBy uuid.UUID  `gorm:"column:created_by;type:uuid;not null" json:"created_by"`
	ExpiresAt time.Time  `gorm:"column:expires_at;not null" json:"expires_at"`
	UsedAt    *time.Time `gorm:"column:used_at" json:"used_at"`
	UsedBy    *uuid.UUID `gorm:"column:used_by;type:uuid" json:"used_by"`
	CreatedAt time.Time  `json:"created_at"`
}

func (WalletInvite) TableName() string {
	return "wallet_invites"
}

// BeforeCreate assigns the invite token.
func (i *WalletInvite) BeforeCreate(tx *gorm.DB) error {
	if i.Token == "" {
		i.Token = uuid.New().String()
	}
	return nil
}
