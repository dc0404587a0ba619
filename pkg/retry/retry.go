// pkg/retry/retry.go - bounded retries with a pluggable backoff policy.

package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/windowsadmins/msikit/pkg/logging"
)

// ErrExhausted is returned when the attempt or time budget is spent.
var ErrExhausted = errors.New("retry budget exhausted")

// Config defines the budget and pacing for retry attempts.
type Config struct {
	// MaxElapsed caps the total time spent sleeping between attempts. Zero means no cap.
	MaxElapsed time.Duration
	// MaxAttempts caps the number of calls to the action. Zero means no cap.
	MaxAttempts int
	// BackOff paces the attempts. nil means a fixed 10ms interval.
	BackOff backoff.BackOff

	// Sleep and Now are injectable for tests.
	Sleep func(time.Duration)
	Now   func() time.Time
}

// Constant returns a Config retrying every interval until maxElapsed has passed.
func Constant(interval, maxElapsed time.Duration) Config {
	return Config{
		MaxElapsed: maxElapsed,
		BackOff:    backoff.NewConstantBackOff(interval),
	}
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do calls action until it succeeds, returns a permanent error, or the budget runs out.
// When the budget runs out the returned error wraps both ErrExhausted and the last failure.
func Do(ctx context.Context, cfg Config, action func() error) error {
	bo := cfg.BackOff
	if bo == nil {
		bo = backoff.NewConstantBackOff(10 * time.Millisecond)
	}
	bo.Reset()
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	start := now()
	var lastErr error
	for attempt := 1; ; attempt++ {
		lastErr = action()
		if lastErr == nil {
			return nil
		}

		var permanent *backoff.PermanentError
		if errors.As(lastErr, &permanent) {
			return permanent.Err
		}

		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, lastErr)
		}
		next := bo.NextBackOff()
		if next == backoff.Stop {
			return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, lastErr)
		}
		if cfg.MaxElapsed > 0 && now().Sub(start)+next > cfg.MaxElapsed {
			return fmt.Errorf("%w after %d attempts in %s: %w", ErrExhausted, attempt, now().Sub(start), lastErr)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		logging.Debug("Retrying", "attempt", attempt, "delay", next, "error", lastErr)
		sleep(next)
	}
}
