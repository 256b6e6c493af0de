package reports

import (
	"math"
	"sort"
	"strings"
	"time"

	"wislet-backend/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service computes the admin reporting views. All aggregation happens
// in-process over range-filtered rows; test orders are excluded
// everywhere.
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

// Range is the resolved [from 00:00, to 23:59:59.999] UTC window.
type Range struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// ResolveRange parses from/to YYYY-MM-DD params, defaulting to the last
// 30 days.
func (s *Service) ResolveRange(fromStr, toStr string) Range {
	now := s.now().UTC()
	to := now
	if t, err := time.Parse("2006-01-02", toStr); err == nil {
		to = t
	}
	from := now.AddDate(0, 0, -30)
	if t, err := time.Parse("2006-01-02", fromStr); err == nil {
		from = t
	}
	return Range{
		From: time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC),
		To:   time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, 999_000_000, time.UTC),
	}
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// weekKey returns the Monday of t's week.
func weekKey(t time.Time) string {
	t = t.UTC()
	back := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -back).Format("2006-01-02")
}

func dayRange(r Range) []string {
	var days []string
	d := time.Date(r.From.Year(), r.From.Month(), r.From.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(r.To.Year(), r.To.Month(), r.To.Day(), 0, 0, 0, 0, time.UTC)
	for !d.After(end) {
		days = append(days, d.Format("2006-01-02"))
		d = d.AddDate(0, 0, 1)
	}
	return days
}

func orderTier(o *domain.Order) string {
	if o.Tier != "" {
		return o.Tier
	}
	if o.BatchID != nil {
		return domain.TierFromBatch(*o.BatchID)
	}
	return ""
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

// TierStats is the per-tier block of the stats response.
type TierStats struct {
	Holds              int      `json:"holds"`
	Pinged             int      `json:"pinged"`
	Orders             int      `json:"orders"`
	Founders           int      `json:"founders"`
	RevenueCents       int64    `json:"revenue_cents"`
	ConvAfterPingCount int      `json:"conv_after_ping_count"`
	AvgMinPingToConv   *float64 `json:"avg_minutes_ping_to_convert"`
	AvgMinHoldAge      *float64 `json:"avg_minutes_hold_age_at_convert"`

	sumMinPingToConv float64
	nPingToConv      int
	sumMinHoldAge    float64
	nHoldAge         int
}

// TimelineItem is one ping→conversion pair, newest conversions first.
type TimelineItem struct {
	HoldID         int64     `json:"hold_id"`
	Tier           string    `json:"tier"`
	Email          string    `json:"email"`
	PingAt         time.Time `json:"ping_at"`
	ConvertAt      time.Time `json:"convert_at"`
	Minutes        float64   `json:"minutes"`
	HoldAgeMinutes float64   `json:"hold_age_minutes"`
}

// TierSeries holds one day-indexed array per tier.
type TierSeries struct {
	PF []int64 `json:"PF"`
	GF []int64 `json:"GF"`
	SE []int64 `json:"SE"`
}

// StatsResponse mirrors the admin dashboard payload.
type StatsResponse struct {
	OK                bool                  `json:"ok"`
	Range             Range                 `json:"range"`
	Counts            map[string]int        `json:"counts"`
	RevenueCentsTotal int64                 `json:"revenue_cents_total"`
	ByTier            map[string]*TierStats `json:"by_tier"`

	ConversionAfterPing struct {
		TotalConverted   int      `json:"total_converted"`
		Rate             *float64 `json:"rate"`
		AvgMinPingToConv *float64 `json:"avg_minutes_ping_to_convert"`
	} `json:"conversion_after_ping"`

	KPIAvgMinHoldAgeAtConvert *float64       `json:"kpi_avg_minutes_hold_age_at_convert"`
	RecentConversions         []TimelineItem `json:"recent_conversions"`

	Series struct {
		Periods []string   `json:"periods"`
		Conv    TierSeries `json:"conv"`
		Rev     TierSeries `json:"rev"`
		Extra   struct {
			AvgHoldAgeMinutes []float64 `json:"avg_hold_age_minutes"`
		} `json:"extra"`
	} `json:"series"`
}

// Stats aggregates the conversion funnel over the range. n caps the
// recent-conversions timeline (default 30, max 200).
func (s *Service) Stats(r Range, n int) (*StatsResponse, error) {
	if n < 1 {
		n = 1
	}
	if n > 200 {
		n = 200
	}

	var holdsCreated []domain.Hold
	if err := s.DB.Where("created_at >= ? AND created_at <= ?", r.From, r.To).Find(&holdsCreated).Error; err != nil {
		return nil, err
	}
	var holdsPinged []domain.Hold
	if err := s.DB.Where("chased_at >= ? AND chased_at <= ?", r.From, r.To).Find(&holdsPinged).Error; err != nil {
		return nil, err
	}
	var orders []domain.Order
	if err := s.DB.Where("created_at >= ? AND created_at <= ? AND is_test = ?", r.From, r.To, false).Find(&orders).Error; err != nil {
		return nil, err
	}
	var founders []domain.FounderCard
	if err := s.DB.Where("issued_at >= ? AND issued_at <= ? AND is_test = ?", r.From, r.To, false).Find(&founders).Error; err != nil {
		return nil, err
	}

	byTier := map[string]*TierStats{
		domain.TierPF: {}, domain.TierGF: {}, domain.TierSE: {},
	}

	for i := range holdsCreated {
		if b := byTier[domain.TierFromBatch(holdsCreated[i].BatchID)]; b != nil {
			b.Holds++
		}
	}
	for i := range holdsPinged {
		if b := byTier[domain.TierFromBatch(holdsPinged[i].BatchID)]; b != nil {
			b.Pinged++
		}
	}
	for i := range orders {
		if b := byTier[orderTier(&orders[i])]; b != nil {
			b.Orders++
			b.RevenueCents += orders[i].AmountCents
		}
	}
	for i := range founders {
		if b := byTier[founders[i].Tier]; b != nil {
			b.Founders++
		}
	}

	ordersByHold := map[int64][]*domain.Order{}
	for i := range orders {
		if orders[i].HoldID != nil {
			id := *orders[i].HoldID
			ordersByHold[id] = append(ordersByHold[id], &orders[i])
		}
	}
	for _, arr := range ordersByHold {
		sort.Slice(arr, func(i, j int) bool { return arr[i].CreatedAt.Before(arr[j].CreatedAt) })
	}

	// Holds referenced by orders may predate the range; fetch what the
	// two range queries missed so hold-age math still works.
	holdsMap := map[int64]*domain.Hold{}
	for i := range holdsCreated {
		holdsMap[holdsCreated[i].ID] = &holdsCreated[i]
	}
	for i := range holdsPinged {
		holdsMap[holdsPinged[i].ID] = &holdsPinged[i]
	}
	var missing []int64
	for id := range ordersByHold {
		if _, ok := holdsMap[id]; !ok {
			missing = append(missing, id)
		}
	}
	for start := 0; start < len(missing); start += 200 {
		end := start + 200
		if end > len(missing) {
			end = len(missing)
		}
		var rows []domain.Hold
		if err := s.DB.Where("id IN ?", missing[start:end]).Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			holdsMap[rows[i].ID] = &rows[i]
		}
	}

	days := dayRange(r)
	dayIdx := map[string]int{}
	for i, d := range days {
		dayIdx[d] = i
	}
	indexOf := func(t time.Time) int {
		if i, ok := dayIdx[dayKey(t)]; ok {
			return i
		}
		if t.Before(r.From) {
			return 0
		}
		return len(days) - 1
	}

	mkSeries := func() TierSeries {
		return TierSeries{PF: make([]int64, len(days)), GF: make([]int64, len(days)), SE: make([]int64, len(days))}
	}
	conv := mkSeries()
	rev := mkSeries()
	pick := func(ts *TierSeries, tier string) []int64 {
		switch tier {
		case domain.TierPF:
			return ts.PF
		case domain.TierGF:
			return ts.GF
		case domain.TierSE:
			return ts.SE
		}
		return nil
	}

	for i := range orders {
		if arr := pick(&rev, orderTier(&orders[i])); arr != nil {
			arr[indexOf(orders[i].CreatedAt)] += orders[i].AmountCents
		}
	}

	var (
		totalMinPingConv   float64
		totalPingConvN     int
		totalConvAfterPing int
		totalAgeMin        float64
		totalAgeN          int
		timeline           []TimelineItem
	)
	holdAgeSum := make([]float64, len(days))
	holdAgeCnt := make([]int, len(days))

	for i := range holdsPinged {
		h := &holdsPinged[i]
		if h.ChasedAt == nil {
			continue
		}
		arr := ordersByHold[h.ID]

		// first order at or after the ping
		var best *domain.Order
		for _, o := range arr {
			if !o.CreatedAt.Before(*h.ChasedAt) {
				best = o
				break
			}
		}
		if best == nil {
			continue
		}

		min := best.CreatedAt.Sub(*h.ChasedAt).Minutes()
		totalConvAfterPing++
		totalMinPingConv += min
		totalPingConvN++

		tier := orderTier(best)
		if tier == "" {
			tier = domain.TierFromBatch(h.BatchID)
		}
		if b := byTier[tier]; b != nil {
			b.sumMinPingToConv += min
			b.nPingToConv++
			b.ConvAfterPingCount++
		}

		holdAge := -1.0
		if hold := holdsMap[h.ID]; hold != nil {
			holdAge = best.CreatedAt.Sub(hold.CreatedAt).Minutes()
			totalAgeMin += holdAge
			totalAgeN++
			if b := byTier[tier]; b != nil {
				b.sumMinHoldAge += holdAge
				b.nHoldAge++
			}
		}

		idx := indexOf(best.CreatedAt)
		if arr := pick(&conv, tier); arr != nil {
			arr[idx]++
		}
		item := TimelineItem{
			HoldID:    h.ID,
			Tier:      tier,
			Email:     best.Email,
			PingAt:    h.ChasedAt.UTC(),
			ConvertAt: best.CreatedAt.UTC(),
			Minutes:   round1(min),
		}
		if holdAge >= 0 {
			holdAgeSum[idx] += holdAge
			holdAgeCnt[idx]++
			item.HoldAgeMinutes = round1(holdAge)
		}
		timeline = append(timeline, item)
	}

	for _, b := range byTier {
		if b.nPingToConv > 0 {
			v := round1(b.sumMinPingToConv / float64(b.nPingToConv))
			b.AvgMinPingToConv = &v
		}
		if b.nHoldAge > 0 {
			v := round1(b.sumMinHoldAge / float64(b.nHoldAge))
			b.AvgMinHoldAge = &v
		}
	}

	sort.Slice(timeline, func(i, j int) bool { return timeline[i].ConvertAt.After(timeline[j].ConvertAt) })
	if len(timeline) > n {
		timeline = timeline[:n]
	}
	if timeline == nil {
		timeline = []TimelineItem{}
	}

	resp := &StatsResponse{
		OK:    true,
		Range: r,
		Counts: map[string]int{
			"holds":    len(holdsCreated),
			"pinged":   len(holdsPinged),
			"orders":   len(orders),
			"founders": len(founders),
		},
		ByTier:            byTier,
		RecentConversions: timeline,
	}
	for _, b := range byTier {
		resp.RevenueCentsTotal += b.RevenueCents
	}
	resp.ConversionAfterPing.TotalConverted = totalConvAfterPing
	if len(holdsPinged) > 0 {
		rate := math.Round(float64(totalConvAfterPing)*1000/float64(len(holdsPinged))) / 10
		resp.ConversionAfterPing.Rate = &rate
	}
	if totalPingConvN > 0 {
		v := round1(totalMinPingConv / float64(totalPingConvN))
		resp.ConversionAfterPing.AvgMinPingToConv = &v
	}
	if totalAgeN > 0 {
		v := round1(totalAgeMin / float64(totalAgeN))
		resp.KPIAvgMinHoldAgeAtConvert = &v
	}
	resp.Series.Periods = days
	resp.Series.Conv = conv
	resp.Series.Rev = rev
	avgAge := make([]float64, len(days))
	for i := range days {
		if holdAgeCnt[i] > 0 {
			avgAge[i] = round1(holdAgeSum[i] / float64(holdAgeCnt[i]))
		}
	}
	resp.Series.Extra.AvgHoldAgeMinutes = avgAge

	return resp, nil
}

// ExportParams are the normalized CSV export options.
type ExportParams struct {
	Range  Range
	Group  string // day | week
	Metric string // orders | revenue
	Tier   string // PF | GF | SE | ALL
}

// NormalizeExportParams folds arbitrary query values into the supported
// enums, defaulting to day/orders/ALL.
func NormalizeExportParams(r Range, group, metric, tier string) ExportParams {
	p := ExportParams{Range: r, Group: "day", Metric: "orders", Tier: "ALL"}
	if strings.EqualFold(group, "week") {
		p.Group = "week"
	}
	if strings.EqualFold(metric, "revenue") {
		p.Metric = "revenue"
	}
	if t := strings.ToUpper(tier); domain.ValidTier(t) {
		p.Tier = t
	}
	return p
}

// Filename derives the attachment name for the export.
func (p ExportParams) Filename() string {
	return "export_" + p.Metric + "_" + p.Group + "_" + strings.ToLower(p.Tier) + ".csv"
}

// Export builds the CSV body. Revenue is reported in dollars with up to
// two decimal places, trailing zeros dropped.
func (s *Service) Export(p ExportParams) (string, error) {
	var orders []domain.Order
	err := s.DB.Where("created_at >= ? AND created_at <= ? AND is_test = ?", p.Range.From, p.Range.To, false).
		Find(&orders).Error
	if err != nil {
		return "", err
	}

	single := domain.ValidTier(p.Tier)

	type bucket struct{ pf, gf, se int64 } // cents for revenue, count for orders
	agg := map[string]*bucket{}
	for i := range orders {
		tier := orderTier(&orders[i])
		if tier == "" || (single && tier != p.Tier) {
			continue
		}
		k := dayKey(orders[i].CreatedAt)
		if p.Group == "week" {
			k = weekKey(orders[i].CreatedAt)
		}
		b := agg[k]
		if b == nil {
			b = &bucket{}
			agg[k] = b
		}
		plus := int64(1)
		if p.Metric == "revenue" {
			plus = orders[i].AmountCents
		}
		switch tier {
		case domain.TierPF:
			b.pf += plus
		case domain.TierGF:
			b.gf += plus
		case domain.TierSE:
			b.se += plus
		}
	}

	keys := make([]string, 0, len(agg))
	for k := range agg {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cell := func(v int64) string {
		if p.Metric == "revenue" {
			return decimal.New(v, -2).String()
		}
		return decimal.NewFromInt(v).String()
	}

	var sb strings.Builder
	if single {
		sb.WriteString("period," + p.Metric + "\n")
	} else {
		sb.WriteString("period,PF_" + p.Metric + ",GF_" + p.Metric + ",SE_" + p.Metric + "\n")
	}
	for i, k := range keys {
		if i > 0 {
			sb.WriteString("\n")
		}
		b := agg[k]
		if single {
			v := b.pf
			switch p.Tier {
			case domain.TierGF:
				v = b.gf
			case domain.TierSE:
				v = b.se
			}
			sb.WriteString(k + "," + cell(v))
		} else {
			sb.WriteString(k + "," + cell(b.pf) + "," + cell(b.gf) + "," + cell(b.se))
		}
	}
	return sb.String(), nil
}

// PingTimeline lists pinged holds joined (by email) to the first paid
// order at or after the ping, newest first. n defaults to 50, max 500.
func (s *Service) PingTimeline(r Range, n int) ([]TimelineItem, error) {
	if n < 1 {
		n = 1
	}
	if n > 500 {
		n = 500
	}

	var pinged []domain.Hold
	err := s.DB.Where("chased = ? AND chased_at IS NOT NULL AND chased_at >= ? AND chased_at <= ?",
		true, r.From, r.To).Find(&pinged).Error
	if err != nil {
		return nil, err
	}
	var orders []domain.Order
	err = s.DB.Where("created_at >= ? AND created_at <= ? AND (status = ? OR status IS NULL OR status = '')",
		r.From, r.To, "paid").Find(&orders).Error
	if err != nil {
		return nil, err
	}

	byEmail := map[string][]*domain.Order{}
	for i := range orders {
		k := strings.ToLower(orders[i].Email)
		byEmail[k] = append(byEmail[k], &orders[i])
	}
	for _, arr := range byEmail {
		sort.Slice(arr, func(i, j int) bool { return arr[i].CreatedAt.Before(arr[j].CreatedAt) })
	}

	items := []TimelineItem{}
	for i := range pinged {
		h := &pinged[i]
		var best *domain.Order
		for _, o := range byEmail[strings.ToLower(h.Email)] {
			if !o.CreatedAt.Before(*h.ChasedAt) {
				best = o
				break
			}
		}
		if best == nil {
			continue
		}
		items = append(items, TimelineItem{
			HoldID:    h.ID,
			Tier:      orderTier(best),
			Email:     strings.ToLower(h.Email),
			PingAt:    h.ChasedAt.UTC(),
			ConvertAt: best.CreatedAt.UTC(),
			Minutes:   math.Round(best.CreatedAt.Sub(*h.ChasedAt).Minutes()),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ConvertAt.After(items[j].ConvertAt) })
	if len(items) > n {
		items = items[:n]
	}
	return items, nil
}
