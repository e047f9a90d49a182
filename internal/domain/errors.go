package domain

import "errors"

// Error kinds surfaced by the commission core. Callers classify with errors.Is.
var (
	ErrInvalidValue           = errors.New("invalid submission value")
	ErrUnknownUser            = errors.New("user not found")
	ErrGraphCycle             = errors.New("referral graph cycle detected")
	ErrLedgerConflict         = errors.New("ledger entry already recorded")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrAccountFrozen          = errors.New("account is frozen")
	ErrNotFrozen              = errors.New("account is not frozen")
	ErrSubmissionLimitReached = errors.New("submission limit reached for period")
	ErrBelowMinimumBalance    = errors.New("balance below tier minimum")
	ErrInvalidPremiumConfig   = errors.New("invalid premium configuration")
	ErrNoDeficit              = errors.New("balance covers premium amount")
	ErrSubmissionNotFound     = errors.New("submission not found")
	ErrInviteCodeTaken        = errors.New("invite code already in use")
	ErrInvalidTier            = errors.New("invalid vip tier")
)
