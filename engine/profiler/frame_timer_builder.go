package profiler

import "time"

// FrameTimerOption is a functional option for configuring a FrameTimer.
type FrameTimerOption func(p *FrameTimer)

// WithInterval sets how often FPS and memory statistics are refreshed and logged.
// Non-positive values are ignored.
//
// Parameters:
//   - interval: the reporting interval
//
// Returns:
//   - FrameTimerOption: option function to apply
func WithInterval(interval time.Duration) FrameTimerOption {
	return func(p *FrameTimer) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) FrameTimerOption {
	return func(p *FrameTimer) {
		if now != nil {
			p.now = now
		}
	}
}
