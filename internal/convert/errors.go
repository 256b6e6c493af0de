package convert

import "errors"

var (
	// ErrHoldRequired means hold_id was missing or not a positive integer.
	ErrHoldRequired = errors.New("hold_id required")
	// ErrInvalidTier means the tier is outside the PF/GF/SE enumeration.
	ErrInvalidTier = errors.New("email/tier invalid")
	// ErrTierRequired means a direct mint was attempted without a tier.
	ErrTierRequired = errors.New("tier required (PF/GF/SE)")

	errHoldNotFound  = errors.New("hold not found")
	errHoldNotActive = errors.New("hold not active")
	errHoldExpired   = errors.New("hold expired")
	errSequenceRetry = errors.New("founder_id insert retries exhausted")
)
