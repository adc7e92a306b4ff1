// Package pacing spaces remote requests out with randomized blocking
// delays. The target server rate-limits clients whose requests arrive
// with a periodic signature, so the interval is drawn uniformly from a
// configured range rather than fixed.
package pacing

import (
	"context"
	"log/slog"
	"time"

	random "github.com/mazen160/go-random"
)

type Policy interface {
	// Sleep blocks for a random duration in the policy's default range.
	Sleep(ctx context.Context)
	// SleepRange blocks for a random duration in [min, max].
	SleepRange(ctx context.Context, min, max time.Duration)
}

// Human imitates operator-speed interaction.
type Human struct {
	Min time.Duration
	Max time.Duration
}

func (h Human) Sleep(ctx context.Context) {
	h.SleepRange(ctx, h.Min, h.Max)
}

func (h Human) SleepRange(ctx context.Context, min, max time.Duration) {
	delay := min
	if max > min {
		ms, err := random.IntRange(int(min.Milliseconds()), int(max.Milliseconds())+1)
		if err == nil {
			delay = time.Duration(ms) * time.Millisecond
		}
	}
	slog.Debug("pacing delay", "seconds", delay.Seconds())

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// None disables pacing, for tests.
type None struct{}

func (None) Sleep(ctx context.Context) {}

func (None) SleepRange(ctx context.Context, min, max time.Duration) {}
