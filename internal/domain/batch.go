package domain

import (
	"time"
)

// Tiers of founder cards. Everything outside this set is rejected
// before any store call.
const (
	TierPF = "PF"
	TierGF = "GF"
	TierSE = "SE"
)

// ValidTier reports whether t is one of the sellable tiers.
func ValidTier(t string) bool {
	return t == TierPF || t == TierGF || t == TierSE
}

// TierFromBatch maps legacy batch ids to tiers (batches 1/2/5 predate
// the tier column on orders).
func TierFromBatch(batchID int64) string {
	switch batchID {
	case 1:
		return TierPF
	case 2:
		return TierGF
	case 5:
		return TierSE
	default:
		return ""
	}
}

// SellBatch is a priced inventory wave for a tier. Read-only from the
// handlers' perspective; quota and pricing are managed out of band.
type SellBatch struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name       string    `gorm:"column:name;not null" json:"name"`
	Tier       string    `gorm:"column:tier;not null" json:"tier"`
	Wave       *string   `gorm:"column:wave" json:"wave"`
	PriceCents int64     `gorm:"column:price_cents;not null" json:"price_cents"`
	Currency   string    `gorm:"column:currency;not null;default:'usd'" json:"currency"`
	Quota      int       `gorm:"column:quota;not null;default:0" json:"quota"`
	IsActive   bool      `gorm:"column:is_active;not null;default:false" json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

func (SellBatch) TableName() string {
	return "sell_batches"
}
