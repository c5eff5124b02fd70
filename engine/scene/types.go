package scene

// ObjectKey identifies an object in a scene database.
type ObjectKey uint32

// NoObject is the "none" key. A renderer with NoObject as its active scene
// does not hand out work.
const NoObject ObjectKey = 0

// VertexStride is the number of float32 values per vertex in Geometry.Vertices:
// position (x, y, z) followed by normal (x, y, z).
const VertexStride = 6

// Location is an object's transform relative to its parent.
type Location struct {
	// Position is the translation in parent space.
	Position [3]float32

	// Rotation is a quaternion stored as (x, y, z, w).
	Rotation [4]float32

	// Scale is the per-axis scale. A zero scale is treated as (1, 1, 1).
	Scale [3]float32
}

// NewLocation returns an identity-rotation, unit-scale location at pos.
func NewLocation(pos [3]float32) Location {
	return Location{
		Position: pos,
		Rotation: [4]float32{0, 0, 0, 1},
		Scale:    [3]float32{1, 1, 1},
	}
}

// Drawable binds a geometry and a material to an object.
type Drawable struct {
	Geometry ObjectKey
	Material ObjectKey
}

// Geometry is an indexed triangle mesh with interleaved position and normal data.
// Geometry slices are treated as immutable once stored in a database, so
// snapshots share them.
type Geometry struct {
	Vertices []float32
	Indices  []uint32

	// Radius is the bounding sphere radius around the local origin.
	Radius float32
}

// VertexCount returns the number of vertices in the geometry.
func (g Geometry) VertexCount() int {
	return len(g.Vertices) / VertexStride
}

// Material describes the surface of a drawable.
type Material struct {
	// Diffuse is the diffuse (kd) color.
	Diffuse [3]float32

	// DiffuseMap references a texture object, or NoObject for a flat color.
	DiffuseMap ObjectKey
}
