package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrRateLimited       = errors.New("rate limited")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrLockHeld          = errors.New("lock already held")
	ErrConfiguration     = errors.New("configuration error")
	ErrProvider          = errors.New("provider error")
	ErrMalformedJudgment = errors.New("malformed judgment")
	ErrInvalidMarket     = errors.New("invalid market")
)
