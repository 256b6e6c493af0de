package domain

import (
	"strings"
	"time"
)

// FounderCard is the issued proof-of-purchase artifact. founder_id is a
// per-tier sequence assigned read-then-insert with a bounded bump-retry;
// the unique indexes are the real arbiters under contention.
type FounderCard struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	FounderID int64     `gorm:"column:founder_id;not null;uniqueIndex:idx_founder_tier_seq" json:"founder_id"`
	Tier      string    `gorm:"column:tier;not null;uniqueIndex:idx_founder_tier_seq" json:"tier"`
	HoldID    *int64    `gorm:"column:hold_id;uniqueIndex" json:"hold_id"`
	OrderID   *int64    `gorm:"column:order_id" json:"order_id"`
	Email     string    `gorm:"column:email" json:"email"`
	EmailMask string    `gorm:"column:email_mask" json:"email_mask"`
	IsTest    bool      `gorm:"column:is_test;not null;default:false" json:"is_test"`
	IssuedAt  time.Time `gorm:"column:issued_at;autoCreateTime" json:"issued_at"`
}

func (FounderCard) TableName() string {
	return "founder_cards"
}

// MaskEmail hides most of the local part: "founder@x.com" -> "fo***r@x.com".
// Short or malformed addresses come back unchanged.
func MaskEmail(email string) string {
	email = strings.ToLower(email)
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return email
	}
	local, dom := email[:at], email[at+1:]
	head := local
	if len(head) > 2 {
		head = head[:2]
	}
	return head + "***" + local[len(local)-1:] + "@" + dom
}
