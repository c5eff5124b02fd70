package material

import (
	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
	"github.com/Carmen-Shannon/oxy-render/log"
)

// DefaultCapacity is the default number of material slots in a Buffer.
const DefaultCapacity = 4096

// NoMaterial is the id reported for drawables without a known material.
const NoMaterial uint32 = 0

// gpuMaterial matches the WGSL Material struct (32 bytes).
type gpuMaterial struct {
	Kd        [3]float32
	_         float32
	KdScale   [2]float32
	KdTexture int32
	_         int32
}

// TextureIndex resolves texture objects to their slot in a texture array.
type TextureIndex interface {
	// Texture returns the array index and uv scale for a texture object.
	//
	// Parameters:
	//   - key: the texture object referenced by a material
	//
	// Returns:
	//   - int32: the array layer
	//   - [2]float32: the uv scale
	//   - bool: false if the texture is not resident
	Texture(key scene.ObjectKey) (int32, [2]float32, bool)
}

// Buffer packs the materials of a scene into a GPU array and assigns each
// material a compact id. Ids start at 1 and slot id-1 holds the material.
type Buffer struct {
	slots    []gpuMaterial
	capacity int
	toID     map[scene.ObjectKey]uint32
	fromID   []scene.ObjectKey
	textures TextureIndex
	logger   log.Logger
}

// NewBuffer creates an empty material buffer.
//
// Parameters:
//   - options: functional options to configure the buffer
//
// Returns:
//   - *Buffer: the buffer
func NewBuffer(options ...MaterialBuilderOption) *Buffer {
	b := &Buffer{
		capacity: DefaultCapacity,
		toID:     make(map[scene.ObjectKey]uint32),
		logger:   log.New("material"),
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// Build rebuilds the material array from db in ascending material key order.
// Materials beyond capacity are left without an id.
//
// Parameters:
//   - db: the scene snapshot to read materials from
func (b *Buffer) Build(db scene.Database) {
	clear(b.toID)
	b.slots = b.slots[:0]
	b.fromID = b.fromID[:0]

	keys := db.Materials()
	if len(keys) > b.capacity {
		b.logger.Warningf("material buffer full, %d of %d material(s) without an id", len(keys)-b.capacity, len(keys))
		keys = keys[:b.capacity]
	}

	for _, key := range keys {
		m, _ := db.Material(key)
		slot := gpuMaterial{
			Kd:      m.Diffuse,
			KdScale: [2]float32{1, 1},
		}
		if m.DiffuseMap != scene.NoObject && b.textures != nil {
			if idx, scale, ok := b.textures.Texture(m.DiffuseMap); ok {
				slot.KdTexture = idx
				slot.KdScale = scale
			}
		}
		b.slots = append(b.slots, slot)
		b.fromID = append(b.fromID, key)
		b.toID[key] = uint32(len(b.slots))
	}
}

// ID returns the id assigned to a material object, or NoMaterial.
func (b *Buffer) ID(key scene.ObjectKey) uint32 {
	return b.toID[key]
}

// Material returns the material object for an id.
func (b *Buffer) Material(id uint32) (scene.ObjectKey, bool) {
	if id == NoMaterial || int(id) > len(b.fromID) {
		return scene.NoObject, false
	}
	return b.fromID[id-1], true
}

// Len returns the number of materials in the buffer.
func (b *Buffer) Len() int {
	return len(b.slots)
}

// Bytes returns a view of the material array for upload, or nil if empty.
func (b *Buffer) Bytes() []byte {
	return common.SliceToBytes(b.slots)
}
