package metrics

import (
	"regexp"
	"strings"
	"time"

	"wislet-backend/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service aggregates the public landing-page counters.
type Service struct {
	DB *gorm.DB
}

// Snapshot is the public metrics payload.
type Snapshot struct {
	NetCents int64 `json:"net_cents"`

	SoldPF int64 `json:"sold_pf"`
	SoldGF int64 `json:"sold_gf"`
	SoldSE int64 `json:"sold_se"`

	QuotaPF int64 `json:"quota_pf"`
	QuotaGF int64 `json:"quota_gf"`
	QuotaSE int64 `json:"quota_se"`

	GFWaveRaw    *string `json:"gf_wave_raw"`
	GFWaveShort  *string `json:"gf_wave_short"`
	GFPriceCents int64   `json:"gf_price_cents"`
	PFPriceCents int64   `json:"pf_price_cents"`
	SEPriceCents int64   `json:"se_price_cents"`
}

var waveRe = regexp.MustCompile(`(?i)Wave\s+([ABC])`)

// waveShort reduces "Wave B" style names to the letter; anything else
// ("Early" etc.) passes through unchanged.
func waveShort(w *string) *string {
	if w == nil || *w == "" {
		return nil
	}
	if m := waveRe.FindStringSubmatch(*w); m != nil {
		short := strings.ToUpper(m[1])
		return &short
	}
	return w
}

// Estimated card-processing fee: 2.9% + 30¢ per order.
var (
	feeRate  = decimal.RequireFromString("0.029")
	feeFixed = decimal.NewFromInt(30)
)

// netCents is the fee-adjusted revenue of one order, floored at zero.
func netCents(amountCents int64) int64 {
	amount := decimal.NewFromInt(amountCents)
	net := amount.Sub(amount.Mul(feeRate).Round(0)).Sub(feeFixed)
	if net.IsNegative() {
		return 0
	}
	return net.IntPart()
}

// Collect builds the public snapshot: sold counts and net revenue from
// non-test rows, quotas and active-wave pricing from sell_batches.
func (s *Service) Collect() (*Snapshot, error) {
	snap := &Snapshot{}

	type tierCount struct {
		Tier string
		N    int64
	}
	var sold []tierCount
	err := s.DB.Model(&domain.FounderCard{}).
		Select("tier, count(*) AS n").
		Where("is_test = ?", false).
		Group("tier").Scan(&sold).Error
	if err != nil {
		return nil, err
	}
	for _, row := range sold {
		switch row.Tier {
		case domain.TierPF:
			snap.SoldPF = row.N
		case domain.TierGF:
			snap.SoldGF = row.N
		case domain.TierSE:
			snap.SoldSE = row.N
		}
	}

	var amounts []int64
	err = s.DB.Model(&domain.Order{}).
		Where("is_test = ? AND (status = ? OR status IS NULL OR status = '')", false, "paid").
		Pluck("amount_cents", &amounts).Error
	if err != nil {
		return nil, err
	}
	for _, a := range amounts {
		snap.NetCents += netCents(a)
	}

	var batches []domain.SellBatch
	if err := s.DB.Order("id asc").Find(&batches).Error; err != nil {
		return nil, err
	}
	var actPF, actGF, actSE *domain.SellBatch
	for i := range batches {
		b := &batches[i]
		switch b.Tier {
		case domain.TierPF:
			snap.QuotaPF += int64(b.Quota)
			if b.IsActive && actPF == nil {
				actPF = b
			}
		case domain.TierGF:
			snap.QuotaGF += int64(b.Quota)
			if b.IsActive && actGF == nil {
				actGF = b
			}
		case domain.TierSE:
			snap.QuotaSE += int64(b.Quota)
			if b.IsActive && actSE == nil {
				actSE = b
			}
		}
	}
	if actPF != nil {
		snap.PFPriceCents = actPF.PriceCents
	}
	if actGF != nil {
		snap.GFPriceCents = actGF.PriceCents
		snap.GFWaveRaw = actGF.Wave
		snap.GFWaveShort = waveShort(actGF.Wave)
	}
	if actSE != nil {
		snap.SEPriceCents = actSE.PriceCents
	}
	return snap, nil
}

// HallEntry is one public founders-hall card.
type HallEntry struct {
	CardID    int64     `json:"card_id"`
	Tier      string    `json:"tier"`
	FounderID int64     `json:"founder_id"`
	IssuedAt  time.Time `json:"issued_at"`
	EmailMask string    `json:"email_mask"`
}

// maskEmail is the hall's aggressive mask: "u***@dom". Distinct from
// the card's own stored mask, which keeps more of the local part.
func maskEmail(e string) string {
	parts := strings.SplitN(strings.ToLower(e), "@", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ""
	}
	return parts[0][:1] + "***@" + parts[1]
}

// FoundersHall pages through issued cards, newest first. limit is
// clamped to [1,100], default 24 at the handler.
func (s *Service) FoundersHall(offset, limit int) ([]HallEntry, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	var cards []domain.FounderCard
	err := s.DB.Order("issued_at desc, id desc").
		Offset(offset).Limit(limit).
		Find(&cards).Error
	if err != nil {
		return nil, err
	}

	entries := make([]HallEntry, 0, len(cards))
	for _, card := range cards {
		entries = append(entries, HallEntry{
			CardID:    card.ID,
			Tier:      card.Tier,
			FounderID: card.FounderID,
			IssuedAt:  card.IssuedAt,
			EmailMask: maskEmail(card.Email),
		})
	}
	return entries, nil
}
