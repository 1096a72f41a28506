package repository

import "errors"

// Sentinel errors shared by every store implementation.
var (
	ErrChallengeNotFound = errors.New("otp challenge not found")
	ErrReceiptNotFound   = errors.New("receipt not found")
	ErrLockNotAcquired   = errors.New("lock not acquired")
)
