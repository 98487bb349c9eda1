// Package ratelimit tracks the request quota the WHOOP API reports on every
// response. It reads the X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset headers (plus Retry-After on 429) and exposes the latest
// window as gauges and log events. It never delays or blocks a request.
package ratelimit

import (
	"time"
)

// Response headers carrying the quota window.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// Thresholds for quota log levels.
const (
	// RemainingThresholdCritical logs at error level once fewer requests remain.
	RemainingThresholdCritical = 5

	// RemainingThresholdWarning logs at warn level once fewer requests remain.
	RemainingThresholdWarning = 20
)

// State is the most recently observed quota window.
type State struct {
	// Limit is the number of requests allowed in the window. The first value of
	// a multi-window header such as "100, 100;window=60, 10000;window=86400".
	Limit int `json:"limit"`

	// Remaining is the number of requests left in the window.
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets, derived from X-RateLimit-Reset seconds.
	ResetAt time.Time `json:"reset_at"`

	// ObservedAt is when the headers were read.
	ObservedAt time.Time `json:"observed_at"`
}

// IsStale returns true if the state is older than maxAge.
func (s State) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.ObservedAt) > maxAge
}

// IsCritical returns true if fewer than RemainingThresholdCritical requests remain.
func (s State) IsCritical() bool {
	return s.Remaining < RemainingThresholdCritical
}

// IsLow returns true if the quota is below the warning threshold but not critical.
func (s State) IsLow() bool {
	return s.Remaining < RemainingThresholdWarning && !s.IsCritical()
}

// TimeUntilReset returns the duration until the window resets, 0 if it has passed.
func (s State) TimeUntilReset(now time.Time) time.Duration {
	d := s.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
