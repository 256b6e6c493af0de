package domain

import (
	"time"
)

// Hold statuses. A hold makes at most one terminal transition out of
// HoldActive; expired holds are never converted.
const (
	HoldActive    = "active"
	HoldConverted = "converted"
	HoldReleased  = "released"
)

// Hold reserves one inventory slot of a batch for an email until it is
// paid (converted) or released.
type Hold struct {
	ID        int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Email     string     `gorm:"column:email;not null" json:"email"`
	BatchID   int64      `gorm:"column:batch_id;not null" json:"batch_id"`
	Status    string     `gorm:"column:status;not null;default:'active'" json:"status"`
	ExpiresAt time.Time  `gorm:"column:expires_at;not null" json:"expires_at"`
	PaidAt    *time.Time `gorm:"column:paid_at" json:"paid_at"`
	Chased    bool       `gorm:"column:chased;not null;default:false" json:"chased"`
	ChasedAt  *time.Time `gorm:"column:chased_at" json:"chased_at"`
	Note      *string    `gorm:"column:note" json:"note"`
	Tries     int        `gorm:"column:tries;not null;default:0" json:"tries"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Hold) TableName() string {
	return "holds"
}

// Expired reports whether the hold's reservation window has passed.
func (h *Hold) Expired(now time.Time) bool {
	return !h.ExpiresAt.After(now)
}
