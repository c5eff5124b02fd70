package config

import "math"

// Option is a tri-state feature switch.
type Option int

const (
	// Unsupported means the graphics context cannot provide the feature.
	Unsupported Option = iota

	// Disabled means the feature is available but switched off.
	Disabled

	// Enabled means the feature is available and in use.
	Enabled
)

func (o Option) String() string {
	switch o {
	case Disabled:
		return "disabled"
	case Enabled:
		return "enabled"
	default:
		return "unsupported"
	}
}

// DefaultMaxSize is the maximum number of drawables a single drawlist carries.
const DefaultMaxSize = 128 * 1024

// Config holds renderer-wide settings shared by the coordinator, the drawlists
// and the pipeline.
type Config struct {
	// MaxSize caps the number of commands a drawlist prepares per frame.
	MaxSize int

	// Bindless reports whether bindless resource access is used.
	Bindless Option

	// FovY is the vertical field of view in radians.
	FovY float32

	// Near and Far are the clipping plane distances.
	Near, Far float32
}

// New derives a Config from the graphics context version.
// Bindless access is enabled for 4.4 and any later major version.
//
// Parameters:
//   - major, minor: the context version reported by the display surface
//
// Returns:
//   - Config: the derived configuration
func New(major, minor int) Config {
	bindless := Unsupported
	if major >= 5 || (major == 4 && minor >= 4) {
		bindless = Enabled
	}
	return Config{
		MaxSize:  DefaultMaxSize,
		Bindless: bindless,
		FovY:     math.Pi / 4,
		Near:     0.1,
		Far:      1000,
	}
}

// UseBindless reports whether bindless access is enabled.
func (c Config) UseBindless() bool {
	return c.Bindless == Enabled
}
