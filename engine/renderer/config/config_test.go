package config

import "testing"

func TestNewDerivesBindless(t *testing.T) {
	specs := []struct {
		major, minor int
		want         Option
	}{
		{0, 0, Unsupported},
		{3, 3, Unsupported},
		{4, 3, Unsupported},
		{4, 4, Enabled},
		{4, 6, Enabled},
		{5, 0, Enabled},
	}

	for _, spec := range specs {
		cfg := New(spec.major, spec.minor)
		if cfg.Bindless != spec.want {
			t.Errorf("New(%d, %d).Bindless = %s, want %s", spec.major, spec.minor, cfg.Bindless, spec.want)
		}
		if cfg.UseBindless() != (spec.want == Enabled) {
			t.Errorf("New(%d, %d).UseBindless() = %t", spec.major, spec.minor, cfg.UseBindless())
		}
	}
}

func TestNewDefaults(t *testing.T) {
	cfg := New(4, 5)
	if cfg.MaxSize != 128*1024 {
		t.Errorf("MaxSize = %d, want %d", cfg.MaxSize, 128*1024)
	}
	if cfg.Near <= 0 || cfg.Far <= cfg.Near {
		t.Errorf("invalid clip planes near=%v far=%v", cfg.Near, cfg.Far)
	}
}
