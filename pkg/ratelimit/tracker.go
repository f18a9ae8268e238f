package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	rateLimitRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "reposearch_rate_limit_remaining",
		Help: "Requests remaining in the current API rate limit window",
	}, []string{"resource"})

	rateLimitExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reposearch_rate_limit_exhausted_total",
		Help: "Total number of responses reporting an exhausted rate limit window",
	}, []string{"resource"})
)

// Tracker keeps the most recent rate limit state.
// It is not safe for concurrent use.
type Tracker struct {
	state  *RateLimitState
	logger zerolog.Logger
}

// NewTracker creates a new rate limit tracker.
func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{
		logger: logger,
	}
}

// State returns the last recorded state, or nil if no response carried rate limit headers.
func (t *Tracker) State() *RateLimitState {
	return t.state
}

// ParseHeaders extracts rate limit state from response headers.
// Returns nil, nil when the response carries no rate limit headers.
func ParseHeaders(headers http.Header) (*RateLimitState, error) {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil, nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return nil, fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	state := &RateLimitState{
		Remaining:  remain,
		Resource:   headers.Get(HeaderResource),
		LastUpdate: time.Now(),
	}

	if state.Limit, err = optionalInt(headers, HeaderLimit); err != nil {
		return nil, err
	}
	if state.Used, err = optionalInt(headers, HeaderUsed); err != nil {
		return nil, err
	}

	resetStr := headers.Get(HeaderReset)
	if resetStr == "" {
		return nil, fmt.Errorf("%s header missing", HeaderReset)
	}
	reset, err := strconv.ParseInt(resetStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse %s header: %w", HeaderReset, err)
	}
	state.ResetAt = time.Unix(reset, 0)

	return state, nil
}

// UpdateFromHeaders records the rate limit state carried by a response.
// Responses without rate limit headers leave the recorded state unchanged.
func (t *Tracker) UpdateFromHeaders(headers http.Header) error {
	state, err := ParseHeaders(headers)
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}
	t.state = state

	resource := state.Resource
	if resource == "" {
		resource = "unknown"
	}
	rateLimitRemaining.WithLabelValues(resource).Set(float64(state.Remaining))

	switch {
	case state.IsExhausted():
		rateLimitExhaustedTotal.WithLabelValues(resource).Inc()
		t.logger.Error().
			Str("resource", resource).
			Int("limit", state.Limit).
			Time("reset_at", state.ResetAt).
			Msg("API rate limit exhausted")
	case state.IsLow():
		t.logger.Warn().
			Str("resource", resource).
			Int("remaining", state.Remaining).
			Int("limit", state.Limit).
			Time("reset_at", state.ResetAt).
			Msg("API rate limit running low")
	default:
		t.logger.Debug().
			Str("resource", resource).
			Int("remaining", state.Remaining).
			Int("limit", state.Limit).
			Msg("API rate limit state updated")
	}

	return nil
}

func optionalInt(headers http.Header, name string) (int, error) {
	v := headers.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s header: %w", name, err)
	}
	return n, nil
}
