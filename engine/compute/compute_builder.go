package compute

import "github.com/cogentcore/webgpu/wgpu"

// ProviderBuilderOption is a functional option for configuring a wgpu Provider.
type ProviderBuilderOption func(*wgpuProvider)

// WithForceFallbackAdapter requests the software fallback adapter.
//
// Parameters:
//   - force: true to force the fallback adapter
//
// Returns:
//   - ProviderBuilderOption: option function to apply
func WithForceFallbackAdapter(force bool) ProviderBuilderOption {
	return func(p *wgpuProvider) {
		p.forceFallbackAdapter = force
	}
}

// WithLowPower prefers an integrated adapter over a discrete one.
func WithLowPower() ProviderBuilderOption {
	return func(p *wgpuProvider) {
		p.powerPreference = wgpu.PowerPreferenceLowPower
	}
}

// WithLabel sets the debug label of the created device.
func WithLabel(label string) ProviderBuilderOption {
	return func(p *wgpuProvider) {
		p.label = label
	}
}
