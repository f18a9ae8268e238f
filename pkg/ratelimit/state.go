// Package ratelimit records the search API's rate limit state.
// It reads the X-RateLimit-* headers from every response so that a rejected
// request can be reported with its reset time. It never delays or retries
// requests.
package ratelimit

import (
	"time"
)

// Response headers carrying rate limit state.
const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderUsed      = "X-RateLimit-Used"
	HeaderReset     = "X-RateLimit-Reset"
	HeaderResource  = "X-RateLimit-Resource"
)

// LowWatermark is the fraction of the limit below which the state is reported as low.
const LowWatermark = 0.1

// RateLimitState represents the rate limit window reported by the last response.
type RateLimitState struct {
	// Limit is the number of requests allowed in the window.
	Limit int `json:"limit"`

	// Remaining is the number of requests left in the window.
	Remaining int `json:"remaining"`

	// Used is the number of requests made in the window.
	Used int `json:"used"`

	// Resource names the rate limit bucket (e.g., "search").
	Resource string `json:"resource"`

	// ResetAt is when the window resets (X-RateLimit-Reset, epoch seconds).
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was recorded.
	LastUpdate time.Time `json:"last_update"`
}

// IsExhausted returns true if no requests remain in the current window.
func (s *RateLimitState) IsExhausted() bool {
	return s.Remaining <= 0 && s.TimeUntilReset() > 0
}

// IsLow returns true if fewer than LowWatermark of the limit remains.
func (s *RateLimitState) IsLow() bool {
	if s.Limit <= 0 {
		return false
	}
	return float64(s.Remaining) < float64(s.Limit)*LowWatermark
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *RateLimitState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}
