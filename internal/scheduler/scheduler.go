package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ScanFunc runs one scan round for the given slot.
type ScanFunc func(ctx context.Context, slot time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	AlignToStart bool
	StartupDelay time.Duration
	// RunImmediately fires a round at startup instead of waiting for the first slot.
	RunImmediately bool
}

// Scheduler drives scan rounds on a fixed cadence.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{
		opts:   opts,
		logger: logger.With().Str("component", "scheduler").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run blocks, invoking scan on every slot until ctx is cancelled. A failing
// round is logged and does not stop the loop.
func (s *Scheduler) Run(ctx context.Context, scan ScanFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := sleep(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	if s.opts.RunImmediately {
		s.fire(ctx, scan, s.now())
	}

	next := s.NextSlot(s.now())
	for {
		delay := next.Sub(s.now())
		if delay < 0 {
			next = s.NextSlot(s.now())
			delay = next.Sub(s.now())
		}

		s.logger.Debug().Time("next_slot", next).Msg("waiting for next scan slot")
		if err := sleep(ctx, delay); err != nil {
			return err
		}

		s.fire(ctx, scan, s.SlotStart(next))
		next = next.Add(s.opts.Interval)
	}
}

func (s *Scheduler) fire(ctx context.Context, scan ScanFunc, slot time.Time) {
	s.logger.Info().Time("slot", slot).Msg("starting scan round")
	if err := scan(ctx, slot); err != nil {
		s.logger.Error().Err(err).Time("slot", slot).Msg("scan round failed")
	}
}

// NextSlot returns the next firing time strictly after now.
func (s *Scheduler) NextSlot(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	slot := now.Truncate(s.opts.Interval)
	if !slot.After(now) {
		slot = slot.Add(s.opts.Interval)
	}
	return slot
}

// SlotStart is the start of the slot containing t.
func (s *Scheduler) SlotStart(t time.Time) time.Time {
	if !s.opts.AlignToStart {
		return t
	}
	return t.Truncate(s.opts.Interval)
}

// Slots lists aligned slot starts in [from, to).
func Slots(from, to time.Time, interval time.Duration) []time.Time {
	if interval <= 0 {
		return nil
	}
	start := from.Truncate(interval)
	if start.Before(from) {
		start = start.Add(interval)
	}
	var out []time.Time
	for t := start; t.Before(to); t = t.Add(interval) {
		out = append(out, t)
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
