package compute

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// Resource is a headless GPU context usable for compute work off the render thread.
// Ownership moves with the pointer; the holder releases it exactly once.
type Resource struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
}

// Release frees the GPU objects held by the resource. Safe on nil and partially filled resources.
func (r *Resource) Release() {
	if r == nil {
		return
	}
	if r.Queue != nil {
		r.Queue.Release()
		r.Queue = nil
	}
	if r.Device != nil {
		r.Device.Release()
		r.Device = nil
	}
	if r.Adapter != nil {
		r.Adapter.Release()
		r.Adapter = nil
	}
	if r.Instance != nil {
		r.Instance.Release()
		r.Instance = nil
	}
}

// Provider creates compute resources.
type Provider interface {
	// Acquire creates a new compute resource.
	//
	// Returns:
	//   - *Resource: the resource, owned by the caller
	//   - error: error if no adapter or device could be created
	Acquire() (*Resource, error)
}

// wgpuProvider creates compute resources on a WebGPU adapter without a surface.
type wgpuProvider struct {
	forceFallbackAdapter bool
	powerPreference      wgpu.PowerPreference
	label                string
}

var _ Provider = &wgpuProvider{}

// NewWGPUProvider creates a Provider backed by a surfaceless WebGPU device.
//
// Parameters:
//   - options: functional options to configure the provider
//
// Returns:
//   - Provider: the provider
func NewWGPUProvider(options ...ProviderBuilderOption) Provider {
	p := &wgpuProvider{
		powerPreference: wgpu.PowerPreferenceHighPerformance,
		label:           "Compute Device",
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *wgpuProvider) Acquire() (*Resource, error) {
	r := &Resource{Instance: wgpu.CreateInstance(nil)}

	adapter, err := r.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: p.forceFallbackAdapter,
		PowerPreference:      p.powerPreference,
	})
	if err != nil {
		r.Release()
		return nil, fmt.Errorf("compute: request adapter: %w", err)
	}
	r.Adapter = adapter

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: p.label,
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		r.Release()
		return nil, fmt.Errorf("compute: request device: %w", err)
	}
	r.Device = device
	r.Queue = device.GetQueue()

	return r, nil
}
