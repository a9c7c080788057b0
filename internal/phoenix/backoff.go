package phoenix

import (
	"context"
	"time"
)

const maxBackoff = 30 * time.Second

// backoffDelay returns base * 2^attempt, capped at maxBackoff.
// attempt is 0-based: the first retry waits base.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		return maxBackoff
	}
	d := base << uint(attempt)
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
