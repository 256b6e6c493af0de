package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Manual-convert queue statuses.
const (
	ConvertQueued = "queued"
	ConvertDone   = "done"
)

// ManualConvertRequest is the fallback queue row written when the direct
// conversion path fails; an operator reconciles queued rows later.
type ManualConvertRequest struct {
	ID          int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Email       string         `gorm:"column:email;not null" json:"email"`
	Tier        string         `gorm:"column:tier;not null" json:"tier"`
	HoldID      *int64         `gorm:"column:hold_id" json:"hold_id"`
	Note        *string        `gorm:"column:note" json:"note"`
	Provider    string         `gorm:"column:provider" json:"provider"`
	TxID        *string        `gorm:"column:tx_id" json:"tx_id"`
	AmountCents int64          `gorm:"column:amount_cents;not null;default:0" json:"amount_cents"`
	Currency    string         `gorm:"column:currency" json:"currency"`
	Status      string         `gorm:"column:status;not null;default:'queued'" json:"status"`
	RawPayload  datatypes.JSON `gorm:"column:raw_payload;type:jsonb" json:"-"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (ManualConvertRequest) TableName() string {
	return "manual_convert_requests"
}
