package pipeline

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/config"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/drawlist"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
	"github.com/Carmen-Shannon/oxy-render/log"
)

// gpuInstance matches the WGSL Instance struct (80 bytes, std430).
type gpuInstance struct {
	Model    [16]float32
	Material uint32
	_        [3]uint32
}

// forward is a single-pass forward renderer.
type forward struct {
	backend       Backend
	shadersLoaded bool
	loaded        map[scene.ObjectKey]struct{}
	instances     []gpuInstance
	logger        log.Logger
}

var _ Pipeline = &forward{}

// NewForward creates a forward pipeline drawing through backend.
// Consecutive commands sharing a geometry are drawn as one instanced call.
//
// Parameters:
//   - backend: the graphics backend
//
// Returns:
//   - Pipeline: the pipeline
func NewForward(backend Backend) Pipeline {
	if backend == nil {
		panic("pipeline: NewForward requires a non-nil Backend")
	}
	return &forward{
		backend: backend,
		loaded:  make(map[scene.ObjectKey]struct{}),
		logger:  log.New("pipeline"),
	}
}

func (f *forward) Load(db scene.Database, cfg config.Config) error {
	if !f.shadersLoaded {
		if err := f.backend.LoadShaders(cfg); err != nil {
			return fmt.Errorf("pipeline: load shaders: %w", err)
		}
		f.shadersLoaded = true
		f.logger.Infof("forward shaders loaded (bindless %s)", cfg.Bindless)
	}

	var errs []error
	for _, key := range db.Geometries() {
		if err := f.loadGeometry(db, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *forward) loadGeometry(db scene.Database, key scene.ObjectKey) error {
	if _, ok := f.loaded[key]; ok {
		return nil
	}
	g, ok := db.Geometry(key)
	if !ok {
		return fmt.Errorf("pipeline: geometry %d not in snapshot", key)
	}
	if err := f.backend.LoadGeometry(key, g); err != nil {
		return fmt.Errorf("pipeline: load geometry %d: %w", key, err)
	}
	f.loaded[key] = struct{}{}
	return nil
}

func (f *forward) Render(dl drawlist.Drawlist, db scene.Database, m camera.Matrices, target DrawTarget) error {
	if dl.State() != drawlist.StatePrepared {
		return fmt.Errorf("%w: drawlist %d is %s", ErrNotPrepared, dl.ID(), dl.State())
	}

	cmds := dl.Commands()
	f.instances = f.instances[:0]
	for _, c := range cmds {
		f.instances = append(f.instances, gpuInstance{Model: c.Model, Material: c.MaterialIndex})
	}

	if err := f.backend.BeginFrame(target); err != nil {
		return fmt.Errorf("pipeline: begin frame: %w", err)
	}

	var errs []error
	err := f.backend.WriteFrame(m.ViewProjection, dl.Lights(), dl.Materials())
	if err == nil && len(f.instances) > 0 {
		err = f.backend.WriteInstances(common.SliceToBytes(f.instances))
	}
	if err != nil {
		errs = append(errs, fmt.Errorf("pipeline: upload frame data: %w", err))
	} else {
		errs = append(errs, f.draw(cmds, db)...)
	}

	if err := f.backend.EndFrame(); err != nil {
		errs = append(errs, fmt.Errorf("pipeline: end frame: %w", err))
	}
	return errors.Join(errs...)
}

// draw issues one instanced call per run of commands sharing a geometry.
// Geometries missing from the resident set are loaded from db first.
func (f *forward) draw(cmds []drawlist.Command, db scene.Database) []error {
	var errs []error
	for start := 0; start < len(cmds); {
		end := start + 1
		for end < len(cmds) && cmds[end].Geometry == cmds[start].Geometry {
			end++
		}

		geom := cmds[start].Geometry
		if err := f.loadGeometry(db, geom); err != nil {
			errs = append(errs, err)
		} else if err := f.backend.DrawIndexed(geom, uint32(start), uint32(end-start)); err != nil {
			errs = append(errs, fmt.Errorf("pipeline: draw geometry %d: %w", geom, err))
		}
		start = end
	}
	return errs
}
