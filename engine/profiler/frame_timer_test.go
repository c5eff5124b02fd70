package profiler

import (
	"math"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func TestFrameTimerReportsAtInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	timer := NewFrameTimer(WithClock(clock.now), WithInterval(time.Second))

	for i := 1; i <= 9; i++ {
		clock.advance(100 * time.Millisecond)
		if timer.Tick() {
			t.Fatalf("tick %d reported before the interval elapsed", i)
		}
	}
	clock.advance(100 * time.Millisecond)
	if !timer.Tick() {
		t.Fatal("tick 10 did not report after one second")
	}

	stats := timer.Stats()
	if stats.Frames != 10 {
		t.Errorf("Frames = %d, want 10", stats.Frames)
	}
	if math.Abs(stats.FPS-10) > 1e-9 {
		t.Errorf("FPS = %v, want 10", stats.FPS)
	}
	if stats.LastFrame != 100*time.Millisecond {
		t.Errorf("LastFrame = %s, want 100ms", stats.LastFrame)
	}
	if stats.HeapMB <= 0 {
		t.Errorf("HeapMB = %v, want > 0", stats.HeapMB)
	}
}

func TestFrameTimerIgnoresInvalidOptions(t *testing.T) {
	timer := NewFrameTimer(WithInterval(-time.Second), WithClock(nil))
	if timer.interval != time.Second {
		t.Errorf("interval = %s, want 1s", timer.interval)
	}
	if timer.now == nil {
		t.Error("nil clock replaced the default")
	}
}
