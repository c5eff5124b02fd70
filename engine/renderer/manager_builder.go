package renderer

import (
	"github.com/Carmen-Shannon/oxy-render/engine/compute"
	"github.com/Carmen-Shannon/oxy-render/engine/profiler"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/drawlist"
)

// ManagerBuilderOption is a functional option for configuring a Manager.
// Use the With* functions to create options.
type ManagerBuilderOption func(m *manager)

// WithWorkers sets the number of worker goroutines preparing drawlists.
// Zero is allowed: nothing is ever drawn but shutdown still completes.
// Negative values are ignored.
//
// Parameters:
//   - n: worker count (default 1)
//
// Returns:
//   - ManagerBuilderOption: option function to apply
func WithWorkers(n int) ManagerBuilderOption {
	return func(m *manager) {
		if n >= 0 {
			m.settings.workers = n
		}
	}
}

// WithDrawlists sets the drawlist pool size, which bounds the number of frames
// in preparation at once. Values below 1 are ignored.
//
// Parameters:
//   - n: pool size (default 2)
//
// Returns:
//   - ManagerBuilderOption: option function to apply
func WithDrawlists(n int) ManagerBuilderOption {
	return func(m *manager) {
		if n >= 1 {
			m.settings.poolSize = n
		}
	}
}

// WithComputeProvider sets the provider of the compute resource handed to the
// first worker that asks for it.
//
// Parameters:
//   - p: the provider, called once on the coordinator goroutine
//
// Returns:
//   - ManagerBuilderOption: option function to apply
func WithComputeProvider(p compute.Provider) ManagerBuilderOption {
	return func(m *manager) {
		m.settings.provider = p
	}
}

// WithFrameTimer replaces the frame timer ticked after every presented frame.
func WithFrameTimer(t *profiler.FrameTimer) ManagerBuilderOption {
	return func(m *manager) {
		m.settings.timer = t
	}
}

// WithStepHook registers fn to be called on the coordinator goroutine after
// every processed message with the freshly published stats. fn must not block.
func WithStepHook(fn func(Stats)) ManagerBuilderOption {
	return func(m *manager) {
		m.settings.onStep = fn
	}
}

// WithDrawlistOptions passes options to every drawlist in the pool.
func WithDrawlistOptions(options ...drawlist.DrawlistBuilderOption) ManagerBuilderOption {
	return func(m *manager) {
		m.settings.drawlistOptions = append(m.settings.drawlistOptions, options...)
	}
}
