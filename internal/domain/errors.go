package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")

	// ErrCrawlFailure means the crawl collaborator could not produce a snapshot.
	// Cached resource data is left as it was.
	ErrCrawlFailure = errors.New("crawl failure")
	// ErrJudgmentParse means the judge answered with a malformed verdict list.
	ErrJudgmentParse = errors.New("judgment parse error")
	// ErrOnchainRead means the current on-chain round could not be determined.
	ErrOnchainRead = errors.New("onchain read failure")
	// ErrStateTransitionConflict is returned when a round transition has
	// already been applied. Callers treat it as a no-op.
	ErrStateTransitionConflict = errors.New("state transition already applied")
	ErrInvalidTransition       = errors.New("invalid state transition")
	// ErrOddsUnavailable is returned when the weighted share denominator is zero.
	ErrOddsUnavailable = errors.New("odds unavailable")
	ErrInvalidStake    = errors.New("invalid stake amount")
	ErrBettingClosed   = errors.New("betting closed")
)
