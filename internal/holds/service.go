package holds

import (
	"errors"
	"math"
	"time"
	"unicode/utf8"

	"wislet-backend/internal/domain"

	"gorm.io/gorm"
)

var (
	ErrHoldIDRequired = errors.New("hold_id required")
	ErrIDsRequired    = errors.New("ids required")
	ErrTooManyIDs     = errors.New("too many ids (max 200 per request)")
)

const (
	maxBulkIDs   = 200
	maxNoteRunes = 2000
)

// ChaseRow is the follow-up worklist projection of a hold.
type ChaseRow struct {
	HoldID    int64     `json:"hold_id"`
	Email     string    `json:"email"`
	BatchID   int64     `json:"batch_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service mutates holds for the operator follow-up workflow.
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

// ToChase lists active, unchased, unexpired holds older than minAge
// minutes, newest first.
func (s *Service) ToChase(minAge, limit int) ([]ChaseRow, error) {
	if minAge < 0 {
		minAge = 0
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 500 {
		limit = 500
	}
	now := s.now()
	threshold := now.Add(-time.Duration(minAge) * time.Minute)

	var rows []ChaseRow
	err := s.DB.Model(&domain.Hold{}).
		Select("id AS hold_id, email, batch_id, created_at, expires_at").
		Where("status = ? AND chased = ? AND expires_at > ? AND created_at < ?",
			domain.HoldActive, false, now, threshold).
		Order("created_at desc").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []ChaseRow{}
	}
	return rows, nil
}

// MarkChased sets or clears the chased flag on one hold and returns the
// number of rows touched.
func (s *Service) MarkChased(holdID int64, mark bool) (int64, error) {
	if holdID == 0 {
		return 0, ErrHoldIDRequired
	}
	return s.applyChase(s.DB.Model(&domain.Hold{}).Where("id = ?", holdID), mark)
}

// MarkChasedBulk applies MarkChased to up to 200 holds at once.
func (s *Service) MarkChasedBulk(ids []int64, mark bool) (int64, error) {
	clean := ids[:0:0]
	for _, id := range ids {
		if id != 0 {
			clean = append(clean, id)
		}
	}
	if len(clean) == 0 {
		return 0, ErrIDsRequired
	}
	if len(clean) > maxBulkIDs {
		return 0, ErrTooManyIDs
	}
	return s.applyChase(s.DB.Model(&domain.Hold{}).Where("id IN ?", clean), mark)
}

func (s *Service) applyChase(q *gorm.DB, mark bool) (int64, error) {
	patch := map[string]interface{}{"chased": false, "chased_at": nil}
	if mark {
		patch["chased"] = true
		patch["chased_at"] = s.now()
	}
	res := q.Updates(patch)
	return res.RowsAffected, res.Error
}

// UpdatePatch carries the optional note/tries edits for a hold.
type UpdatePatch struct {
	Note  *string
	Tries *float64
}

// UpdateHold patches note and/or tries on a hold. Notes are clipped to
// 2000 chars; tries is floored and never negative. A patch with nothing
// set is a no-op reported as 0 updates.
func (s *Service) UpdateHold(holdID int64, patch UpdatePatch) (int64, []domain.Hold, error) {
	if holdID == 0 {
		return 0, nil, ErrHoldIDRequired
	}

	fields := map[string]interface{}{}
	if patch.Note != nil {
		// Clip on rune boundaries; operator notes are Ukrainian and a
		// byte slice could split a character mid-sequence.
		note := *patch.Note
		if utf8.RuneCountInString(note) > maxNoteRunes {
			note = string([]rune(note)[:maxNoteRunes])
		}
		fields["note"] = note
	}
	if patch.Tries != nil {
		fields["tries"] = int(math.Max(0, math.Floor(*patch.Tries)))
	}
	if len(fields) == 0 {
		return 0, nil, nil
	}

	res := s.DB.Model(&domain.Hold{}).Where("id = ?", holdID).Updates(fields)
	if res.Error != nil {
		return 0, nil, res.Error
	}

	var rows []domain.Hold
	if err := s.DB.Where("id = ?", holdID).Find(&rows).Error; err != nil {
		return res.RowsAffected, nil, err
	}
	return res.RowsAffected, rows, nil
}
