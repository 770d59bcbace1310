package node

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Exponential backoff for transport failures: start at 200ms, double each
// retry, cap at 5s.
const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
