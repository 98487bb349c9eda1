package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/whoop-cli/pkg/metrics"
)

// Prometheus metrics for quota tracking.
var (
	quotaRemaining = promauto.With(metrics.Registry).NewGauge(prometheus.GaugeOpts{
		Name: "whoop_ratelimit_remaining",
		Help: "Requests remaining in the current WHOOP rate limit window",
	})

	quotaLimit = promauto.With(metrics.Registry).NewGauge(prometheus.GaugeOpts{
		Name: "whoop_ratelimit_limit",
		Help: "Requests allowed in the current WHOOP rate limit window",
	})

	quotaExhaustedTotal = promauto.With(metrics.Registry).NewCounter(prometheus.CounterOpts{
		Name: "whoop_ratelimit_exhausted_total",
		Help: "Responses rejected with 429 Too Many Requests",
	})
)

// Tracker records the quota reported by WHOOP responses.
type Tracker struct {
	mu     sync.Mutex
	state  State
	seen   bool
	now    func() time.Time
	logger zerolog.Logger
}

// NewTracker creates a new quota tracker.
func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{
		now:    time.Now,
		logger: logger,
	}
}

// State returns the last observed window and whether any response carried one.
func (t *Tracker) State() (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state, t.seen
}

// Observe parses the quota headers of a response. Responses without
// X-RateLimit-Remaining are ignored.
func (t *Tracker) Observe(status int, headers http.Header) error {
	if status == http.StatusTooManyRequests {
		quotaExhaustedTotal.Inc()
		t.logger.Warn().
			Dur("retry_after", RetryAfter(headers)).
			Msg("WHOOP rate limit exceeded")
	}

	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remain, err := firstInt(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	limit := 0
	if v := headers.Get(HeaderLimit); v != "" {
		if limit, err = firstInt(v); err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderLimit, err)
		}
	}

	now := t.now()
	state := State{
		Limit:      limit,
		Remaining:  remain,
		ResetAt:    now,
		ObservedAt: now,
	}
	if v := headers.Get(HeaderReset); v != "" {
		resetSeconds, err := firstInt(v)
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderReset, err)
		}
		state.ResetAt = now.Add(time.Duration(resetSeconds) * time.Second)
	}

	t.mu.Lock()
	t.state = state
	t.seen = true
	t.mu.Unlock()

	quotaRemaining.Set(float64(remain))
	if limit > 0 {
		quotaLimit.Set(float64(limit))
	}

	switch {
	case state.IsCritical():
		t.logger.Error().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Dur("reset_in", state.TimeUntilReset(now)).
			Msg("WHOOP rate limit nearly exhausted")
	case state.IsLow():
		t.logger.Warn().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Dur("reset_in", state.TimeUntilReset(now)).
			Msg("WHOOP rate limit running low")
	default:
		t.logger.Debug().
			Int("remaining", remain).
			Int("limit", limit).
			Msg("WHOOP rate limit state updated")
	}

	return nil
}

// RetryAfter returns the Retry-After header in seconds form as a duration, 0
// when absent or not a number.
func RetryAfter(headers http.Header) time.Duration {
	v := strings.TrimSpace(headers.Get(HeaderRetryAfter))
	if v == "" {
		return 0
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// firstInt parses the leading integer of a possibly multi-valued header.
func firstInt(v string) (int, error) {
	if i := strings.IndexAny(v, ",;"); i >= 0 {
		v = v[:i]
	}
	return strconv.Atoi(strings.TrimSpace(v))
}
