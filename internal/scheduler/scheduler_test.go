package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNextSlotAligned(t *testing.T) {
	s := New(Options{Interval: 5 * time.Minute, AlignToStart: true}, zerolog.Nop())
	now := time.Date(2026, 10, 19, 12, 2, 30, 0, time.UTC)
	if got := s.NextSlot(now); !got.Equal(time.Date(2026, 10, 19, 12, 5, 0, 0, time.UTC)) {
		t.Fatalf("unexpected next slot %v", got)
	}
	onBoundary := time.Date(2026, 10, 19, 12, 5, 0, 0, time.UTC)
	if got := s.NextSlot(onBoundary); !got.Equal(onBoundary.Add(5 * time.Minute)) {
		t.Fatalf("slot on boundary should advance, got %v", got)
	}
}

func TestNextSlotUnaligned(t *testing.T) {
	s := New(Options{Interval: time.Minute}, zerolog.Nop())
	now := time.Date(2026, 10, 19, 12, 2, 30, 0, time.UTC)
	if got := s.NextSlot(now); !got.Equal(now.Add(time.Minute)) {
		t.Fatalf("unexpected next slot %v", got)
	}
	if !s.SlotStart(now).Equal(now) {
		t.Fatal("unaligned slot start should be identity")
	}
}

func TestSlots(t *testing.T) {
	from := time.Date(2026, 10, 19, 12, 1, 0, 0, time.UTC)
	to := time.Date(2026, 10, 19, 12, 20, 0, 0, time.UTC)
	slots := Slots(from, to, 5*time.Minute)
	if len(slots) != 3 || slots[0].Minute() != 5 || slots[2].Minute() != 15 {
		t.Fatalf("unexpected slots %v", slots)
	}
	if Slots(to, from, time.Minute) != nil {
		t.Fatal("empty range should yield nothing")
	}
}

func TestRunImmediatelyAndCancel(t *testing.T) {
	s := New(Options{Interval: time.Hour, RunImmediately: true}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, slot time.Time) error {
			calls.Add(1)
			cancel()
			return errors.New("round failure is logged only")
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one immediate round, got %d", calls.Load())
	}
}
