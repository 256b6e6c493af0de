package checkout

import (
	"errors"
	"strings"
	"time"

	"wislet-backend/internal/domain"

	"gorm.io/gorm"
)

// Hold reservation window.
const holdTTL = 30 * time.Minute

var (
	ErrEmailRequired = errors.New("email_required")
	ErrBatchRequired = errors.New("batch_or_tier_required")
	ErrNoActiveBatch = errors.New("no_active_batch")
	ErrSoldOut       = errors.New("sold_out")
)

// Fallback prices used when no active batch exists for a tier (the
// pre-launch price table).
var fallbackPriceCents = map[string]int64{
	domain.TierPF: 150000,
	domain.TierGF: 75000,
	domain.TierSE: 6900,
}

// Service resolves holds, batches and cards for the checkout handlers.
type Service struct {
	DB *gorm.DB
}

func (s *Service) HoldByID(id int64) (*domain.Hold, error) {
	var h domain.Hold
	if err := s.DB.First(&h, id).Error; err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *Service) BatchByID(id int64) (*domain.SellBatch, error) {
	var b domain.SellBatch
	if err := s.DB.First(&b, id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// PriceCents returns the active wave's price for the tier, falling back
// to the static price table when no wave is live.
func (s *Service) PriceCents(tier string) int64 {
	var b domain.SellBatch
	err := s.DB.Where("tier = ? AND is_active = ?", tier, true).
		Order("id asc").First(&b).Error
	if err != nil {
		return fallbackPriceCents[tier]
	}
	return b.PriceCents
}

// CreateHold reserves one slot of a batch for an email. Passing a
// batch_id pins the wave; passing only a tier picks the live wave for
// it. Re-posting while a hold is still active returns the existing
// hold instead of stacking reservations.
func (s *Service) CreateHold(email, tier string, batchID int64) (*domain.Hold, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrEmailRequired
	}

	var batch domain.SellBatch
	switch {
	case batchID != 0:
		if err := s.DB.First(&batch, batchID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNoActiveBatch
			}
			return nil, err
		}
	case domain.ValidTier(tier):
		err := s.DB.Where("tier = ? AND is_active = ?", tier, true).
			Order("id asc").First(&batch).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNoActiveBatch
			}
			return nil, err
		}
	default:
		return nil, ErrBatchRequired
	}

	now := time.Now()

	var existing domain.Hold
	err := s.DB.Where("email = ? AND batch_id = ? AND status = ? AND expires_at > ?",
		email, batch.ID, domain.HoldActive, now).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if batch.Quota > 0 {
		var taken int64
		err := s.DB.Model(&domain.Hold{}).
			Where("batch_id = ? AND (status = ? OR (status = ? AND expires_at > ?))",
				batch.ID, domain.HoldConverted, domain.HoldActive, now).
			Count(&taken).Error
		if err != nil {
			return nil, err
		}
		if taken >= int64(batch.Quota) {
			return nil, ErrSoldOut
		}
	}

	h := domain.Hold{
		Email:     email,
		BatchID:   batch.ID,
		Status:    domain.HoldActive,
		ExpiresAt: now.Add(holdTTL),
	}
	if err := s.DB.Create(&h).Error; err != nil {
		return nil, err
	}
	return &h, nil
}

// CardForHold returns the founder card issued for the hold, nil when the
// webhook has not processed the payment yet.
func (s *Service) CardForHold(holdID int64) (*domain.FounderCard, error) {
	var card domain.FounderCard
	if err := s.DB.Where("hold_id = ?", holdID).First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}
