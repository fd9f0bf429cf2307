package provider

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/or-gateway-go/internal/models"
	"github.com/sirupsen/logrus"
)

// Rate-limit headers reported by the provider
const (
	headerRemaining = "X-RateLimit-Remaining"
	headerReset     = "X-RateLimit-Reset"
	headerLimit     = "X-RateLimit-Limit"
)

// Conservative fallback quota assumed when the provider omits headers
const (
	fallbackRemaining = 50
	fallbackTotal     = 50
	fallbackWindow    = 60 * time.Second
)

// Tracker records the request quota as last reported by the provider.
// It is pure state: the client decides when to wait, the tracker only
// stores what upstream said.
type Tracker struct {
	mu     sync.Mutex
	state  models.RateLimitState
	logger *logrus.Logger
}

// NewTracker creates a tracker with no quota observed yet
func NewTracker(logger *logrus.Logger) *Tracker {
	return &Tracker{logger: logger}
}

// State returns a copy of the current rate-limit state
func (t *Tracker) State() models.RateLimitState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Observe updates the state from response headers. Missing or malformed
// headers fall back to the conservative defaults. The reset header is a
// delta in seconds from now.
func (t *Tracker) Observe(h http.Header) {
	remaining := parseHeaderInt(h.Get(headerRemaining), fallbackRemaining)
	total := parseHeaderInt(h.Get(headerLimit), fallbackTotal)
	window := fallbackWindow
	if secs, err := strconv.Atoi(h.Get(headerReset)); err == nil && secs >= 0 {
		window = time.Duration(secs) * time.Second
	}

	if remaining < 0 {
		remaining = 0
	}
	if total <= 0 {
		total = fallbackTotal
	}
	if remaining > total {
		remaining = total
	}

	t.mu.Lock()
	t.state = models.RateLimitState{
		Remaining: remaining,
		ResetAt:   time.Now().Add(window),
		Total:     total,
	}
	t.mu.Unlock()

	t.logger.WithFields(logrus.Fields{
		"remaining": remaining,
		"total":     total,
		"reset_in":  window,
	}).Debug("Rate limit state updated")
}

// Exhaust marks the quota as spent until the given time. Used after a
// 429 so the next request waits out the provider's retry-after.
func (t *Tracker) Exhaust(until time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.Remaining = 0
	t.state.ResetAt = until
	if t.state.Total <= 0 {
		t.state.Total = fallbackTotal
	}
}

// Delay returns how long a request issued at now should wait before
// being sent, zero if quota remains or the window has already reset
func (t *Tracker) Delay(now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Remaining > 0 || t.state.Total == 0 {
		return 0
	}
	if !now.Before(t.state.ResetAt) {
		return 0
	}
	return t.state.ResetAt.Sub(now)
}

func parseHeaderInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}
