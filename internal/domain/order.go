package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Order is the payment record for a converted hold. The unique index on
// hold_id is what makes "ensure order" idempotent; the application only
// proposes rows.
type Order struct {
	ID          int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	HoldID      *int64         `gorm:"column:hold_id;uniqueIndex" json:"hold_id"`
	BatchID     *int64         `gorm:"column:batch_id" json:"batch_id"`
	Email       string         `gorm:"column:email" json:"email"`
	Tier        string         `gorm:"column:tier" json:"tier"`
	Provider    string         `gorm:"column:provider" json:"provider"`
	TxID        *string        `gorm:"column:tx_id" json:"tx_id"`
	AmountCents int64          `gorm:"column:amount_cents;not null;default:0" json:"amount_cents"`
	Currency    string         `gorm:"column:currency;not null;default:'usd'" json:"currency"`
	Status      string         `gorm:"column:status;not null;default:'paid'" json:"status"`
	IsTest      bool           `gorm:"column:is_test;not null;default:false" json:"is_test"`
	RawPayload  datatypes.JSON `gorm:"column:raw_payload;type:jsonb" json:"-"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (Order) TableName() string {
	return "orders"
}
