package scene

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
)

// Database is the read side of a scene graph snapshot.
//
// A Database handed to the renderer is never mutated afterwards, so any number of
// goroutines may read it concurrently. Clone produces an independent snapshot.
type Database interface {
	// Clone returns an independent snapshot of the database.
	// Geometry vertex and index slices are shared since they are immutable.
	//
	// Returns:
	//   - Database: the snapshot
	Clone() Database

	// Len returns the number of objects in the database.
	Len() int

	// Parent returns the parent of key, or NoObject for roots and unknown keys.
	Parent(key ObjectKey) ObjectKey

	// Name returns the name given to key when it was created.
	Name(key ObjectKey) string

	// Location returns the parent-relative transform of key.
	//
	// Returns:
	//   - Location: the transform
	//   - bool: false if key has no location
	Location(key ObjectKey) (Location, bool)

	// Position returns the world matrix of key, composed through its parent chain.
	// Objects without a location contribute the identity transform.
	//
	// Parameters:
	//   - key: the object to resolve
	//
	// Returns:
	//   - [16]float32: column-major world matrix
	Position(key ObjectKey) [16]float32

	// Drawable returns the drawable attached to key.
	Drawable(key ObjectKey) (Drawable, bool)

	// Geometry returns the geometry stored under key.
	Geometry(key ObjectKey) (Geometry, bool)

	// Geometries returns all geometry keys in ascending order.
	Geometries() []ObjectKey

	// Material returns the material stored under key.
	Material(key ObjectKey) (Material, bool)

	// Materials returns all material keys in ascending order.
	Materials() []ObjectKey

	// Light returns the light attached to key.
	Light(key ObjectKey) (light.Light, bool)

	// EachLight calls fn for every light in ascending key order with the
	// world matrix of the object it is attached to.
	EachLight(fn func(world [16]float32, l light.Light))

	// Walk returns the drawable objects below sceneID (inclusive) whose bounding
	// sphere intersects the frustum of viewProj, in ascending key order.
	//
	// Parameters:
	//   - sceneID: root of the subtree to walk
	//   - viewProj: column-major projection * view matrix
	//
	// Returns:
	//   - []ObjectKey: visible drawable objects
	Walk(sceneID ObjectKey, viewProj [16]float32) []ObjectKey
}

type object struct {
	parent ObjectKey
	name   string
}

// DB is the mutable scene database. Clients build and mutate a DB on their own
// goroutine and hand Clone() snapshots to the renderer.
type DB struct {
	nextKey    ObjectKey
	objects    map[ObjectKey]object
	locations  map[ObjectKey]Location
	drawables  map[ObjectKey]Drawable
	geometries map[ObjectKey]Geometry
	materials  map[ObjectKey]Material
	lights     map[ObjectKey]light.Light
}

var _ Database = &DB{}

// NewDatabase creates an empty scene database.
func NewDatabase() *DB {
	return &DB{
		nextKey:    1,
		objects:    make(map[ObjectKey]object),
		locations:  make(map[ObjectKey]Location),
		drawables:  make(map[ObjectKey]Drawable),
		geometries: make(map[ObjectKey]Geometry),
		materials:  make(map[ObjectKey]Material),
		lights:     make(map[ObjectKey]light.Light),
	}
}

// NewObject creates an object under parent (NoObject for a root) and returns its key.
func (db *DB) NewObject(parent ObjectKey, name string) ObjectKey {
	key := db.nextKey
	db.nextKey++
	db.objects[key] = object{parent: parent, name: name}
	return key
}

// SetLocation sets the parent-relative transform of key.
func (db *DB) SetLocation(key ObjectKey, loc Location) {
	db.locations[key] = loc
}

// SetDrawable attaches a geometry and material to key.
func (db *DB) SetDrawable(key ObjectKey, d Drawable) {
	db.drawables[key] = d
}

// AddGeometry stores a copy of g as a new object under parent and returns its key.
// When g.Radius is zero the bounding radius is computed from the vertices.
func (db *DB) AddGeometry(parent ObjectKey, name string, g Geometry) (ObjectKey, error) {
	if len(g.Vertices)%VertexStride != 0 {
		return NoObject, fmt.Errorf("scene: geometry %q has %d floats, not a multiple of %d", name, len(g.Vertices), VertexStride)
	}
	vertexCount := uint32(g.VertexCount())
	for _, idx := range g.Indices {
		if idx >= vertexCount {
			return NoObject, fmt.Errorf("scene: geometry %q index %d out of range (%d vertices)", name, idx, vertexCount)
		}
	}

	stored := Geometry{
		Vertices: slices.Clone(g.Vertices),
		Indices:  slices.Clone(g.Indices),
		Radius:   g.Radius,
	}
	if stored.Radius == 0 {
		stored.Radius = boundingRadius(stored.Vertices)
	}

	key := db.NewObject(parent, name)
	db.geometries[key] = stored
	return key, nil
}

// SetMaterial stores m under key.
func (db *DB) SetMaterial(key ObjectKey, m Material) {
	db.materials[key] = m
}

// SetLight attaches l to key.
func (db *DB) SetLight(key ObjectKey, l light.Light) {
	db.lights[key] = l
}

// Remove deletes key and all of its descendants.
func (db *DB) Remove(key ObjectKey) {
	doomed := []ObjectKey{key}
	for k := range db.objects {
		if k != key && db.isDescendant(k, key) {
			doomed = append(doomed, k)
		}
	}
	for _, k := range doomed {
		delete(db.objects, k)
		delete(db.locations, k)
		delete(db.drawables, k)
		delete(db.geometries, k)
		delete(db.materials, k)
		delete(db.lights, k)
	}
}

func (db *DB) Clone() Database {
	return &DB{
		nextKey:    db.nextKey,
		objects:    maps.Clone(db.objects),
		locations:  maps.Clone(db.locations),
		drawables:  maps.Clone(db.drawables),
		geometries: maps.Clone(db.geometries),
		materials:  maps.Clone(db.materials),
		lights:     maps.Clone(db.lights),
	}
}

func (db *DB) Len() int {
	return len(db.objects)
}

func (db *DB) Parent(key ObjectKey) ObjectKey {
	return db.objects[key].parent
}

func (db *DB) Name(key ObjectKey) string {
	return db.objects[key].name
}

func (db *DB) Location(key ObjectKey) (Location, bool) {
	loc, ok := db.locations[key]
	return loc, ok
}

func (db *DB) Position(key ObjectKey) [16]float32 {
	world := common.IdentityMatrix()
	var local [16]float32
	// Walk up to the root, pre-multiplying each parent transform.
	for k, depth := key, 0; k != NoObject && depth <= len(db.objects); k, depth = db.objects[k].parent, depth+1 {
		loc, ok := db.locations[k]
		if !ok {
			continue
		}
		localMatrix(local[:], loc)
		common.Mul4(world[:], local[:], world[:])
	}
	return world
}

func (db *DB) Drawable(key ObjectKey) (Drawable, bool) {
	d, ok := db.drawables[key]
	return d, ok
}

func (db *DB) Geometry(key ObjectKey) (Geometry, bool) {
	g, ok := db.geometries[key]
	return g, ok
}

func (db *DB) Geometries() []ObjectKey {
	return sortedKeys(db.geometries)
}

func (db *DB) Material(key ObjectKey) (Material, bool) {
	m, ok := db.materials[key]
	return m, ok
}

func (db *DB) Materials() []ObjectKey {
	return sortedKeys(db.materials)
}

func (db *DB) Light(key ObjectKey) (light.Light, bool) {
	l, ok := db.lights[key]
	return l, ok
}

func (db *DB) EachLight(fn func(world [16]float32, l light.Light)) {
	for _, key := range sortedKeys(db.lights) {
		fn(db.Position(key), db.lights[key])
	}
}

func (db *DB) Walk(sceneID ObjectKey, viewProj [16]float32) []ObjectKey {
	if sceneID == NoObject {
		return nil
	}
	frustum := common.ExtractFrustumFromMatrix(viewProj[:])

	var visible []ObjectKey
	for _, key := range sortedKeys(db.drawables) {
		if !db.isDescendant(key, sceneID) {
			continue
		}
		g, ok := db.geometries[db.drawables[key].Geometry]
		if !ok {
			continue
		}
		world := db.Position(key)
		if frustum.ContainsSphere(common.Translation(world[:]), g.Radius*common.MaxScale(world[:])) {
			visible = append(visible, key)
		}
	}
	return visible
}

// isDescendant reports whether key is root or lies below it.
func (db *DB) isDescendant(key, root ObjectKey) bool {
	for depth := 0; key != NoObject && depth <= len(db.objects); depth++ {
		if key == root {
			return true
		}
		key = db.objects[key].parent
	}
	return false
}

func localMatrix(out []float32, loc Location) {
	scale := loc.Scale
	if scale == ([3]float32{}) {
		scale = [3]float32{1, 1, 1}
	}
	common.ComposeMatrix(out, loc.Position, loc.Rotation, scale)
}

func boundingRadius(vertices []float32) float32 {
	var best float32
	for i := 0; i+2 < len(vertices); i += VertexStride {
		x, y, z := vertices[i], vertices[i+1], vertices[i+2]
		best = max(best, x*x+y*y+z*z)
	}
	return float32(math.Sqrt(float64(best)))
}

func sortedKeys[V any](m map[ObjectKey]V) []ObjectKey {
	return slices.Sorted(maps.Keys(m))
}
