package renderer

import "github.com/cogentcore/webgpu/wgpu"

// BackendBuilderOption is a functional option applied to a backend during construction via NewWGPUBackend.
type BackendBuilderOption func(*wgpuBackend)

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
// The default is PresentModeVSync.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - BackendBuilderOption: a function that applies the present mode option to a backend
func WithPresentMode(mode PresentMode) BackendBuilderOption {
	return func(b *wgpuBackend) {
		switch mode {
		case PresentModeUncapped:
			b.presentMode = wgpu.PresentModeImmediate
		default:
			b.presentMode = wgpu.PresentModeFifo
		}
	}
}

// WithMSAA sets the multisample anti-aliasing sample count. Values other than
// MSAAOff and MSAA4x are ignored.
//
// Parameters:
//   - count: the MSAASampleCount to use
//
// Returns:
//   - BackendBuilderOption: a function that applies the MSAA option to a backend
func WithMSAA(count MSAASampleCount) BackendBuilderOption {
	return func(b *wgpuBackend) {
		if count == MSAAOff || count == MSAA4x {
			b.sampleCount = count
		}
	}
}

// WithClearColor sets the color the frame is cleared to.
func WithClearColor(r, g, bl, a float64) BackendBuilderOption {
	return func(b *wgpuBackend) {
		b.clearColor = wgpu.Color{R: r, G: g, B: bl, A: a}
	}
}

// WithCullMode sets the face culling mode of the forward pipeline. The default is back-face culling.
func WithCullMode(mode wgpu.CullMode) BackendBuilderOption {
	return func(b *wgpuBackend) {
		b.cullMode = mode
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - BackendBuilderOption: a function that applies the force software renderer option to a backend
func WithForceSoftwareRenderer(force bool) BackendBuilderOption {
	return func(b *wgpuBackend) {
		b.forceFallbackAdapter = force
	}
}
