package provider

import (
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestObserveFromHeaders(t *testing.T) {
	tracker := NewTracker(testLogger())

	h := http.Header{}
	h.Set(headerRemaining, "12")
	h.Set(headerReset, "30")
	h.Set(headerLimit, "100")
	tracker.Observe(h)

	state := tracker.State()
	assert.Equal(t, 12, state.Remaining)
	assert.Equal(t, 100, state.Total)
	assert.WithinDuration(t, time.Now().Add(30*time.Second), state.ResetAt, time.Second)
}

func TestObserveFallbackWhenHeadersAbsent(t *testing.T) {
	tracker := NewTracker(testLogger())

	tracker.Observe(http.Header{})

	state := tracker.State()
	assert.Equal(t, fallbackRemaining, state.Remaining)
	assert.Equal(t, fallbackTotal, state.Total)
	assert.WithinDuration(t, time.Now().Add(fallbackWindow), state.ResetAt, time.Second)
}

func TestObserveClampsRemainingToTotal(t *testing.T) {
	tracker := NewTracker(testLogger())

	h := http.Header{}
	h.Set(headerRemaining, "500")
	h.Set(headerLimit, "100")
	tracker.Observe(h)

	state := tracker.State()
	assert.Equal(t, 100, state.Remaining)
	assert.Equal(t, 100, state.Total)
}

func TestDelayUntouchedTracker(t *testing.T) {
	tracker := NewTracker(testLogger())
	assert.Zero(t, tracker.Delay(time.Now()))
}

func TestDelayWhenExhausted(t *testing.T) {
	tracker := NewTracker(testLogger())

	resetAt := time.Now().Add(5 * time.Second)
	tracker.Exhaust(resetAt)

	now := time.Now()
	delay := tracker.Delay(now)
	assert.Equal(t, resetAt.Sub(now), delay)

	// Past the reset, no wait remains
	assert.Zero(t, tracker.Delay(resetAt.Add(time.Millisecond)))
}

func TestDelayWithRemainingQuota(t *testing.T) {
	tracker := NewTracker(testLogger())

	h := http.Header{}
	h.Set(headerRemaining, "1")
	h.Set(headerReset, "60")
	h.Set(headerLimit, "50")
	tracker.Observe(h)

	assert.Zero(t, tracker.Delay(time.Now()))
}
