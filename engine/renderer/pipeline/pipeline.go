package pipeline

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/config"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/drawlist"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
)

// ErrNotPrepared is returned by Render for drawlists that are not in the prepared state.
var ErrNotPrepared = errors.New("pipeline: drawlist not prepared")

// DrawTarget is the framebuffer region a frame is rendered into.
type DrawTarget struct {
	// Framebuffer selects the render target; 0 is the display surface.
	Framebuffer uint32

	X, Y          int
	Width, Height int
}

// Pipeline turns prepared drawlists into GPU work. Both methods run on the
// coordinator goroutine, which owns the graphics context.
type Pipeline interface {
	// Load uploads resources of db that are not yet resident (geometry buffers,
	// shaders). Already loaded resources are skipped.
	//
	// Parameters:
	//   - db: the snapshot that just became current
	//   - cfg: renderer configuration
	//
	// Returns:
	//   - error: joined errors of the resources that failed to load
	Load(db scene.Database, cfg config.Config) error

	// Render submits one frame. It always returns control to the caller; the
	// drawlist is not retained.
	//
	// Parameters:
	//   - dl: a prepared and finalized drawlist
	//   - db: the current snapshot
	//   - m: camera matrices for submission
	//   - target: the region to draw into
	//
	// Returns:
	//   - error: ErrNotPrepared or joined backend errors
	Render(dl drawlist.Drawlist, db scene.Database, m camera.Matrices, target DrawTarget) error
}

// Backend is the graphics API surface the forward pipeline drives.
type Backend interface {
	// LoadShaders compiles the forward shader and creates the pipeline objects.
	LoadShaders(cfg config.Config) error

	// LoadGeometry uploads vertex and index buffers for a geometry object.
	LoadGeometry(key scene.ObjectKey, g scene.Geometry) error

	// BeginFrame acquires the target and opens a render pass.
	BeginFrame(target DrawTarget) error

	// WriteFrame uploads per-frame uniforms.
	WriteFrame(viewProj [16]float32, lights, materials []byte) error

	// WriteInstances uploads the per-instance array indexed by the draw calls.
	WriteInstances(data []byte) error

	// DrawIndexed draws instanceCount instances of a geometry starting at firstInstance.
	DrawIndexed(geometry scene.ObjectKey, firstInstance, instanceCount uint32) error

	// EndFrame closes the render pass and submits the recorded commands.
	EndFrame() error
}
