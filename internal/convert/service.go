package convert

import (
	"errors"
	"strings"
	"time"

	"wislet-backend/internal/domain"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// founderIDAttempts bounds the bump-retry loop absorbing insert races on
// the per-tier founder_id sequence.
const founderIDAttempts = 3

// Request asks to turn a paid hold into an order and a founder card.
// Amount/currency are bookkeeping only: the caller has already verified
// payment with the provider.
type Request struct {
	HoldID      int64   `json:"hold_id"`
	Email       string  `json:"email"`
	Tier        string  `json:"tier"`
	Provider    string  `json:"provider"`
	TxID        *string `json:"tx_id"`
	AmountCents int64   `json:"amount_cents"`
	Currency    string  `json:"currency"`
	Note        *string `json:"note"`
	IsTest      bool    `json:"is_test"`
	RawPayload  []byte  `json:"-"`
}

// Result reports how a conversion went. Via is "direct" when the store
// transaction succeeded and "queue" when the request was parked in the
// manual queue for operator reconciliation.
type Result struct {
	Via              string              `json:"via"`
	Card             *domain.FounderCard `json:"card,omitempty"`
	Order            *domain.Order       `json:"order,omitempty"`
	AlreadyConverted bool                `json:"already_converted,omitempty"`
}

// Service owns the hold -> order -> founder card pipeline. It is
// stateless; the store's uniqueness constraints are the only
// concurrency-correctness mechanism, the bump-retry loop a mitigation.
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

// Convert idempotently transitions the hold to converted and produces
// exactly one founder card for it. Validation failures are returned
// before any store call; direct-path store failures degrade to the
// manual queue rather than failing the caller.
func (s *Service) Convert(req Request) (*Result, error) {
	req.Tier = strings.ToUpper(strings.TrimSpace(req.Tier))
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.HoldID <= 0 {
		return nil, ErrHoldRequired
	}
	if !domain.ValidTier(req.Tier) {
		return nil, ErrInvalidTier
	}
	if req.Currency == "" {
		req.Currency = "usd"
	}

	res, err := s.convertDirect(req)
	if err == nil {
		return res, nil
	}
	log.Error().Err(err).Int64("hold_id", req.HoldID).Str("tier", req.Tier).Str("provider", req.Provider).Msg("direct conversion failed, queueing")

	if _, qErr := s.Enqueue(req); qErr != nil {
		return nil, qErr
	}
	return &Result{Via: "queue"}, nil
}

func (s *Service) convertDirect(req Request) (*Result, error) {
	res := &Result{Via: "direct"}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var hold domain.Hold
		if err := tx.Where("id = ?", req.HoldID).First(&hold).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errHoldNotFound
			}
			return err
		}

		switch hold.Status {
		case domain.HoldConverted:
			// Re-delivered webhook or double click: confirm the card
			// issued the first time around.
			card, err := s.cardForHold(tx, hold.ID)
			if err != nil {
				return err
			}
			res.Card = card
			res.AlreadyConverted = true
			return nil
		case domain.HoldActive:
			// fall through
		default:
			return errHoldNotActive
		}
		if hold.Expired(s.now()) {
			return errHoldExpired
		}

		paidAt := s.now()
		if err := tx.Model(&domain.Hold{}).
			Where("id = ? AND status = ?", hold.ID, domain.HoldActive).
			Updates(map[string]interface{}{"status": domain.HoldConverted, "paid_at": paidAt}).Error; err != nil {
			return err
		}

		email := req.Email
		if email == "" {
			email = strings.ToLower(hold.Email)
		}

		order, err := s.ensureOrder(tx, &hold, req, email)
		if err != nil {
			return err
		}
		res.Order = order

		card, err := s.issueCard(tx, &hold, order, req.Tier, email, req.IsTest)
		if err != nil {
			return err
		}
		res.Card = card
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ensureOrder creates the order row for the hold at most once; the
// unique index on orders.hold_id arbitrates concurrent attempts.
func (s *Service) ensureOrder(tx *gorm.DB, hold *domain.Hold, req Request, email string) (*domain.Order, error) {
	order := domain.Order{
		HoldID:      &hold.ID,
		BatchID:     &hold.BatchID,
		Email:       email,
		Tier:        req.Tier,
		Provider:    req.Provider,
		TxID:        req.TxID,
		AmountCents: req.AmountCents,
		Currency:    strings.ToLower(req.Currency),
		Status:      "paid",
		IsTest:      req.IsTest,
	}
	if len(req.RawPayload) > 0 {
		order.RawPayload = datatypes.JSON(req.RawPayload)
	}
	// Savepoint so a duplicate-key failure does not poison the
	// surrounding Postgres transaction.
	tx.SavePoint("ensure_order")
	if err := tx.Create(&order).Error; err != nil {
		tx.RollbackTo("ensure_order")
		if isDuplicate(err) {
			var existing domain.Order
			if err := tx.Where("hold_id = ?", hold.ID).First(&existing).Error; err != nil {
				return nil, err
			}
			return &existing, nil
		}
		return nil, err
	}
	return &order, nil
}

// issueCard assigns the next founder_id for the tier and inserts the
// card. Duplicate-key on hold_id means another caller won the race and
// its card is returned; duplicate-key on (tier, founder_id) bumps the
// proposed sequence number. Sequence values are unique and increasing
// per tier but not gap-free under contention.
func (s *Service) issueCard(tx *gorm.DB, hold *domain.Hold, order *domain.Order, tier, email string, isTest bool) (*domain.FounderCard, error) {
	var last int64
	if err := tx.Model(&domain.FounderCard{}).
		Where("tier = ?", tier).
		Select("COALESCE(MAX(founder_id), 0)").
		Scan(&last).Error; err != nil {
		return nil, err
	}

	for bump := 0; bump < founderIDAttempts; bump++ {
		card := domain.FounderCard{
			FounderID: last + 1 + int64(bump),
			Tier:      tier,
			HoldID:    &hold.ID,
			Email:     email,
			EmailMask: domain.MaskEmail(email),
			IsTest:    isTest,
			IssuedAt:  s.now(),
		}
		if order != nil {
			card.OrderID = &order.ID
		}
		tx.SavePoint("issue_card")
		err := tx.Create(&card).Error
		if err == nil {
			return &card, nil
		}
		tx.RollbackTo("issue_card")
		if !isDuplicate(err) {
			return nil, err
		}
		// Could be the hold_id unique index (someone else issued this
		// hold's card) rather than the sequence one.
		if existing, cErr := s.cardForHold(tx, hold.ID); cErr == nil && existing != nil {
			return existing, nil
		}
	}
	return nil, errSequenceRetry
}

func (s *Service) cardForHold(tx *gorm.DB, holdID int64) (*domain.FounderCard, error) {
	var card domain.FounderCard
	if err := tx.Where("hold_id = ?", holdID).First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

// ReleaseHold frees an active hold (checkout expired or payment failed).
// Converted holds are left alone: at most one terminal transition.
func (s *Service) ReleaseHold(holdID int64) error {
	return s.DB.Model(&domain.Hold{}).
		Where("id = ? AND status = ?", holdID, domain.HoldActive).
		Update("status", domain.HoldReleased).Error
}

// MintFounder issues a card directly (admin path), without a hold. The
// same bump-retry loop guards the per-tier sequence.
func (s *Service) MintFounder(email, tier string, orderID *int64) (*domain.FounderCard, error) {
	tier = strings.ToUpper(strings.TrimSpace(tier))
	email = strings.ToLower(strings.TrimSpace(email))
	if tier == "" {
		return nil, ErrTierRequired
	}
	if !domain.ValidTier(tier) {
		return nil, ErrInvalidTier
	}

	var minted *domain.FounderCard
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var last int64
		if err := tx.Model(&domain.FounderCard{}).
			Where("tier = ?", tier).
			Select("COALESCE(MAX(founder_id), 0)").
			Scan(&last).Error; err != nil {
			return err
		}
		for bump := 0; bump < founderIDAttempts; bump++ {
			card := domain.FounderCard{
				FounderID: last + 1 + int64(bump),
				Tier:      tier,
				OrderID:   orderID,
				Email:     email,
				EmailMask: domain.MaskEmail(email),
				IssuedAt:  s.now(),
			}
			tx.SavePoint("mint_card")
			err := tx.Create(&card).Error
			if err == nil {
				minted = &card
				return nil
			}
			tx.RollbackTo("mint_card")
			if !isDuplicate(err) {
				return err
			}
		}
		return errSequenceRetry
	})
	if err != nil {
		return nil, err
	}
	return minted, nil
}

// Enqueue parks a conversion request in the manual queue for operator
// reconciliation. Used as the fallback when the direct path fails and
// directly by manual-convert calls that carry no hold id.
func (s *Service) Enqueue(req Request) (*domain.ManualConvertRequest, error) {
	row := domain.ManualConvertRequest{
		Email:       req.Email,
		Tier:        req.Tier,
		Note:        req.Note,
		Provider:    req.Provider,
		TxID:        req.TxID,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		Status:      domain.ConvertQueued,
	}
	if req.HoldID > 0 {
		id := req.HoldID
		row.HoldID = &id
	}
	if len(req.RawPayload) > 0 {
		row.RawPayload = datatypes.JSON(req.RawPayload)
	}
	if err := s.DB.Create(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// isDuplicate detects unique-constraint violations. TranslateError maps
// them to gorm.ErrDuplicatedKey on both drivers; the Postgres SQLSTATE
// check covers paths where translation is off.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "UNIQUE constraint failed")
}
