package invites

import (
	"errors"
	"time"

	"wislet-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Errors returned to clients verbatim.
var (
	ErrWalletIDRequired        = errors.New("Wallet ID is required in the request body.")
	ErrTokenRequired           = errors.New("token_required")
	ErrInsufficientPermissions = errors.New("Insufficient permissions")
	ErrInviteNotFound          = errors.New("invite not found")
	ErrInviteExpired           = errors.New("invite expired")
)

const inviteTTL = 7 * 24 * time.Hour

// Service implements wallet invite operations over GORM.
type Service struct {
	DB  *gorm.DB
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create issues an invite token for a wallet. Only owners and editors
// of the wallet may invite.
func (s *Service) Create(userID uuid.UUID, walletID int64) (*domain.WalletInvite, error) {
	if walletID == 0 {
		return nil, ErrWalletIDRequired
	}

	var membership domain.WalletUser
	err := s.DB.Where("user_id = ? AND wallet_id = ?", userID, walletID).First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInsufficientPermissions
		}
		return nil, err
	}
	if membership.Role != domain.RoleOwner && membership.Role != domain.RoleEditor {
		return nil, ErrInsufficientPermissions
	}

	invite := domain.WalletInvite{
		WalletID:  walletID,
		CreatedBy: userID,
		ExpiresAt: s.now().Add(inviteTTL),
	}
	if err := s.DB.Create(&invite).Error; err != nil {
		return nil, err
	}
	return &invite, nil
}

// Accept redeems an invite token for the user. Redeeming is
// idempotent: a token already used by the same user succeeds again,
// one used by someone else does not.
func (s *Service) Accept(token string, userID uuid.UUID) error {
	if token == "" {
		return ErrTokenRequired
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		var invite domain.WalletInvite
		if err := tx.Where("token = ?", token).First(&invite).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInviteNotFound
			}
			return err
		}
		if invite.UsedAt != nil {
			if invite.UsedBy != nil && *invite.UsedBy == userID {
				return nil
			}
			return ErrInviteNotFound
		}
		if s.now().After(invite.ExpiresAt) {
			return ErrInviteExpired
		}

		now := s.now()
		res := tx.Model(&domain.WalletInvite{}).
			Where("id = ? AND used_at IS NULL", invite.ID).
			Updates(map[string]interface{}{"used_at": now, "used_by": userID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInviteNotFound
		}

		var existing domain.WalletUser
		err := tx.Where("user_id = ? AND wallet_id = ?", userID, invite.WalletID).First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(&domain.WalletUser{
			WalletID: invite.WalletID,
			UserID:   userID,
			Role:     domain.RoleEditor,
		}).Error
	})
}

// My lists invites created by the user, newest first.
func (s *Service) My(userID uuid.UUID) ([]domain.WalletInvite, error) {
	var items []domain.WalletInvite
	err := s.DB.Where("created_by = ?", userID).
		Order("created_at desc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.WalletInvite{}
	}
	return items, nil
}
