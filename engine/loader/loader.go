package loader

import (
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-render/engine/scene"
	"github.com/Carmen-Shannon/oxy-render/log"
)

// ErrUnsupportedFormat is returned for files that are neither .gltf nor .glb.
var ErrUnsupportedFormat = errors.New("loader: unsupported model format")

// Mesh is one glTF primitive with its node transform baked into the vertices.
type Mesh struct {
	Name     string
	Geometry scene.Geometry

	// Material indexes Model.Materials, or is -1 for the default white surface.
	Material int
}

// Model is the static mesh content of a glTF asset.
type Model struct {
	Name      string
	Meshes    []Mesh
	Materials []scene.Material
}

// AddTo stores the model's geometries and materials as objects under parent
// and returns one drawable per mesh, ready to attach to scene objects.
//
// Parameters:
//   - db: the database to insert into
//   - parent: the object the geometry and material objects are created under
//
// Returns:
//   - []scene.Drawable: one drawable per mesh, in mesh order
//   - error: error if a geometry is rejected by the database
func (m Model) AddTo(db *scene.DB, parent scene.ObjectKey) ([]scene.Drawable, error) {
	materials := make([]scene.ObjectKey, len(m.Materials))
	for i, mat := range m.Materials {
		materials[i] = db.NewObject(parent, fmt.Sprintf("%s.material%d", m.Name, i))
		db.SetMaterial(materials[i], mat)
	}

	fallback := scene.NoObject
	drawables := make([]scene.Drawable, 0, len(m.Meshes))
	for _, mesh := range m.Meshes {
		geometry, err := db.AddGeometry(parent, mesh.Name, mesh.Geometry)
		if err != nil {
			return nil, err
		}

		d := scene.Drawable{Geometry: geometry}
		switch {
		case mesh.Material >= 0 && mesh.Material < len(materials):
			d.Material = materials[mesh.Material]
		default:
			if fallback == scene.NoObject {
				fallback = db.NewObject(parent, m.Name+".default")
				db.SetMaterial(fallback, scene.Material{Diffuse: defaultBaseColor})
			}
			d.Material = fallback
		}
		drawables = append(drawables, d)
	}
	return drawables, nil
}

// Radius returns the largest bounding radius over the model's meshes.
func (m Model) Radius() float32 {
	var r float32
	for _, mesh := range m.Meshes {
		g := mesh.Geometry
		if g.Radius == 0 {
			// Same measure the database applies on insert.
			for i := 0; i+2 < len(g.Vertices); i += scene.VertexStride {
				x, y, z := g.Vertices[i], g.Vertices[i+1], g.Vertices[i+2]
				r = max(r, x*x+y*y+z*z)
			}
			continue
		}
		r = max(r, g.Radius*g.Radius)
	}
	return float32(math.Sqrt(float64(r)))
}

// loader is the implementation of the Loader interface.
type loader struct {
	mu         sync.RWMutex
	modelCache map[string]Model
	logger     log.Logger
}

// Loader imports static meshes from glTF 2.0 files and caches them by name.
// Textures, skins and animations in the asset are ignored.
type Loader interface {
	// Load imports a .gltf or .glb file, returning the cached model when the
	// path was loaded before.
	//
	// Parameters:
	//   - path: the file path to the model file
	//
	// Returns:
	//   - Model: the loaded model
	//   - error: error if loading fails
	Load(path string) (Model, error)

	// LoadReader imports a model from a stream and caches it under name.
	//
	// Parameters:
	//   - name: the cache key for the loaded model
	//   - r: the reader providing model data
	//   - isGLB: true if the reader provides GLB binary data
	//
	// Returns:
	//   - Model: the loaded model
	//   - error: error if loading fails
	LoadReader(name string, r io.Reader, isGLB bool) (Model, error)

	// Get returns a cached model.
	Get(name string) (Model, bool)

	// Evict removes a model from the cache.
	Evict(name string)
}

var _ Loader = &loader{}

// NewLoader creates a Loader with an empty cache.
//
// Parameters:
//   - options: functional options to configure the loader
//
// Returns:
//   - Loader: the loader
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		modelCache: make(map[string]Model),
		logger:     log.New("loader"),
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

func (l *loader) Load(path string) (Model, error) {
	if m, ok := l.Get(path); ok {
		return m, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".gltf", ".glb":
	default:
		return Model{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	parser := newGLTFParser()
	if err := parser.Parse(path); err != nil {
		return Model{}, fmt.Errorf("loader: parse %s: %w", path, err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m, err := l.extract(name, parser)
	if err != nil {
		return Model{}, fmt.Errorf("loader: %s: %w", path, err)
	}
	return l.store(path, m), nil
}

func (l *loader) LoadReader(name string, r io.Reader, isGLB bool) (Model, error) {
	if m, ok := l.Get(name); ok {
		return m, nil
	}

	parser := newGLTFParser()
	if err := parser.ParseReader(r, isGLB); err != nil {
		return Model{}, fmt.Errorf("loader: parse %s: %w", name, err)
	}

	m, err := l.extract(name, parser)
	if err != nil {
		return Model{}, fmt.Errorf("loader: %s: %w", name, err)
	}
	return l.store(name, m), nil
}

func (l *loader) Get(name string) (Model, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.modelCache[name]
	return m, ok
}

func (l *loader) Evict(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.modelCache, name)
}

func (l *loader) extract(name string, parser gltfParser) (Model, error) {
	extractor := newGLTFMeshExtractor(parser)
	meshes, err := extractor.ExtractScene()
	if err != nil {
		return Model{}, err
	}
	if len(meshes) == 0 {
		return Model{}, errors.New("no meshes found")
	}

	for i := range meshes {
		if meshes[i].Name == "" {
			meshes[i].Name = fmt.Sprintf("%s.mesh%d", name, i)
		}
	}

	m := Model{Name: name, Meshes: meshes, Materials: extractor.ExtractMaterials()}
	l.logger.Infof("loaded %s: %d mesh(es), %d material(s)", name, len(m.Meshes), len(m.Materials))
	return m, nil
}

// store caches m under key unless another goroutine got there first, and
// returns the cached value.
func (l *loader) store(key string, m Model) Model {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.modelCache[key]; ok {
		return existing
	}
	l.modelCache[key] = m
	return m
}
