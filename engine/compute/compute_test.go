package compute

import "testing"

func TestReleaseNilAndEmpty(t *testing.T) {
	var r *Resource
	r.Release()

	empty := &Resource{}
	empty.Release()
	empty.Release()
}

func TestProviderOptions(t *testing.T) {
	p := NewWGPUProvider(WithForceFallbackAdapter(true), WithLowPower(), WithLabel("test")).(*wgpuProvider)
	if !p.forceFallbackAdapter {
		t.Error("fallback adapter option not applied")
	}
	if p.label != "test" {
		t.Errorf("label = %q, want %q", p.label, "test")
	}
}
