package drawlist

import (
	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/material"
)

// DrawlistBuilderOption is a functional option for configuring a Drawlist.
type DrawlistBuilderOption func(*drawlistImpl)

// WithID sets the pool slot reported by ID.
//
// Parameters:
//   - id: the slot index
//
// Returns:
//   - DrawlistBuilderOption: option function to apply
func WithID(id int) DrawlistBuilderOption {
	return func(d *drawlistImpl) {
		d.id = id
	}
}

// WithViewport sets the initial viewport size used for the culling camera.
//
// Parameters:
//   - width, height: viewport size in pixels
//
// Returns:
//   - DrawlistBuilderOption: option function to apply
func WithViewport(width, height int) DrawlistBuilderOption {
	return func(d *drawlistImpl) {
		d.SetViewport(width, height)
	}
}

// WithWorkerPool shares an existing pool for parallel transform resolution
// instead of creating one lazily.
//
// Parameters:
//   - pool: the worker pool
//
// Returns:
//   - DrawlistBuilderOption: option function to apply
func WithWorkerPool(pool worker.DynamicWorkerPool) DrawlistBuilderOption {
	return func(d *drawlistImpl) {
		d.pool = pool
	}
}

// WithPrepareWorkers sets the size of the lazily created worker pool.
// Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of pool workers (minimum 1)
//
// Returns:
//   - DrawlistBuilderOption: option function to apply
func WithPrepareWorkers(n int) DrawlistBuilderOption {
	return func(d *drawlistImpl) {
		d.poolWorkers = max(n, 1)
	}
}

// WithChunkSize sets how many objects one pool task resolves. Batches no larger
// than one chunk are resolved inline.
//
// Parameters:
//   - n: objects per task (minimum 1)
//
// Returns:
//   - DrawlistBuilderOption: option function to apply
func WithChunkSize(n int) DrawlistBuilderOption {
	return func(d *drawlistImpl) {
		d.chunkSize = max(n, 1)
	}
}

// WithTextureIndex sets the resolver used when building the material array.
func WithTextureIndex(ti material.TextureIndex) DrawlistBuilderOption {
	return func(d *drawlistImpl) {
		d.textureIndex = ti
	}
}
