package provider

import (
	"context"
	"time"
)

// DefaultBackoff is the retry schedule applied to catalog and model
// endpoint fetches: three retries, four attempts in total.
var DefaultBackoff = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
}

// withRetry runs op once, then once more after each delay in schedule
// until it succeeds. The final failure is returned after the schedule
// is exhausted. Sleeps honor context cancellation.
func withRetry(ctx context.Context, schedule []time.Duration, op func() error) error {
	err := op()
	if err == nil {
		return nil
	}

	for _, delay := range schedule {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		if err = op(); err == nil {
			return nil
		}
	}

	return err
}
