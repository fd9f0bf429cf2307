package middleware

import (
	"sync"
	"time"

	"github.com/or-gateway-go/internal/config"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiter interface for per-caller request limiting
type RateLimiter interface {
	Allow(callerID string) bool
	Reset(callerID string)
}

// CallerRateLimiter limits tool requests per caller id. This is local
// ingress throttling, independent of the provider-side quota tracker.
type CallerRateLimiter struct {
	enabled         bool
	limiters        map[string]*rate.Limiter
	mu              sync.RWMutex
	rpm             int
	burst           int
	logger          *logrus.Logger
	cleanupInterval time.Duration
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg *config.RateLimitConfig, logger *logrus.Logger) RateLimiter {
	if !cfg.Enabled {
		return &CallerRateLimiter{enabled: false}
	}

	rl := &CallerRateLimiter{
		enabled:         true,
		limiters:        make(map[string]*rate.Limiter),
		rpm:             cfg.RequestsPerMinute,
		burst:           cfg.Burst,
		logger:          logger,
		cleanupInterval: 1 * time.Hour,
	}

	// Start cleanup goroutine
	go rl.cleanup()

	return rl
}

// Allow checks if a caller is allowed to make a request
func (r *CallerRateLimiter) Allow(callerID string) bool {
	if !r.enabled {
		return true
	}

	limiter := r.getLimiter(callerID)
	allowed := limiter.Allow()

	if !allowed {
		r.logger.WithField("caller_id", callerID).Warn("Caller rate limit exceeded")
	}

	return allowed
}

// Reset resets the rate limiter for a caller
func (r *CallerRateLimiter) Reset(callerID string) {
	if !r.enabled {
		return
	}

	r.mu.Lock()
	delete(r.limiters, callerID)
	r.mu.Unlock()
}

// getLimiter gets or creates a rate limiter for a caller
func (r *CallerRateLimiter) getLimiter(callerID string) *rate.Limiter {
	r.mu.RLock()
	limiter, exists := r.limiters[callerID]
	r.mu.RUnlock()

	if exists {
		return limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := r.limiters[callerID]; exists {
		return limiter
	}

	// Rate per second = RPM / 60
	rps := float64(r.rpm) / 60.0
	limiter = rate.NewLimiter(rate.Limit(rps), r.burst)
	r.limiters[callerID] = limiter

	return limiter
}

// cleanup bounds the limiter map for long-running processes
func (r *CallerRateLimiter) cleanup() {
	ticker := time.NewTicker(r.cleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		r.mu.Lock()
		if len(r.limiters) > 10000 {
			r.logger.Warn("Rate limiter map size exceeded threshold, clearing")
			r.limiters = make(map[string]*rate.Limiter)
		}
		r.mu.Unlock()
	}
}
