package subscriber

import "errors"

// Sentinel errors attached to Outcome.Err.
var (
	ErrNotFound            = errors.New("subscriber not found")
	ErrConsentDenied       = errors.New("subscriber has not given marketing consent")
	ErrUpstreamUnavailable = errors.New("crm call failed")
	ErrLockNotAcquired     = errors.New("create already in progress for this email")
)
