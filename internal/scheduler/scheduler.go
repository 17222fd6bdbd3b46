package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Job is invoked on every interval with the tick time.
type Job func(ctx context.Context, tick time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval        time.Duration
	AlignToInterval bool
	StartupDelay    time.Duration
}

// Scheduler drives a single recurring job. The job runs to completion
// before the next interval is armed, so two ticks can never overlap.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking the job at each interval until ctx is cancelled.
// Cancellation is observed only between ticks; a running job finishes.
func (s *Scheduler) Run(ctx context.Context, job Job) error {
	if s.opts.StartupDelay > 0 {
		if err := sleepCtx(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	next := s.nextTick(time.Now().UTC())
	for {
		delay := time.Until(next)
		if delay < 0 {
			// The previous job overran one or more intervals; skip ahead
			// rather than firing a burst of catch-up ticks.
			next = s.nextTick(time.Now().UTC())
			delay = time.Until(next)
		}

		s.logger.Debug().Time("next_tick", next).Msg("waiting for next tick")
		if err := sleepCtx(ctx, delay); err != nil {
			return err
		}

		tick := next
		s.logger.Info().Time("tick", tick).Msg("executing scheduled tick")
		if err := job(ctx, tick); err != nil {
			s.logger.Error().Err(err).Time("tick", tick).Msg("tick execution failed")
		}

		next = next.Add(s.opts.Interval)
	}
}

func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToInterval {
		return now.Add(s.opts.Interval)
	}
	tick := now.Truncate(s.opts.Interval)
	if !tick.After(now) {
		tick = tick.Add(s.opts.Interval)
	}
	return tick
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		// Still honour cancellation even when no wait is needed.
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
