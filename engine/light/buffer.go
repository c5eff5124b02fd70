package light

import (
	"unsafe"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/log"
)

const (
	// MaxPointLights is the number of point light slots in the lights block.
	MaxPointLights = 480

	// MaxDirectionalLights is the number of directional light slots in the lights block.
	MaxDirectionalLights = 8
)

// BlockSize is the size in bytes of the std140 lights block uploaded to the GPU.
const BlockSize = int(unsafe.Sizeof(gpuLightsBlock{}))

// gpuPointLight matches the WGSL PointLight struct (32 bytes).
type gpuPointLight struct {
	Color    [4]float32 // rgb * intensity, w = 1
	Position [4]float32 // world position, w = 1
}

// gpuDirectionalLight matches the WGSL DirectionalLight struct (32 bytes).
type gpuDirectionalLight struct {
	Color  [4]float32 // rgb * intensity, w = 1
	Normal [4]float32 // normalized world direction, w = 0
}

// gpuLightsBlock matches the WGSL Lights uniform block.
type gpuLightsBlock struct {
	PointCount       uint32
	DirectionalCount uint32
	_                [2]int32
	Point            [MaxPointLights]gpuPointLight
	Directional      [MaxDirectionalLights]gpuDirectionalLight
}

// Source enumerates lights together with the world matrix of their owning object.
type Source interface {
	EachLight(fn func(world [16]float32, l Light))
}

// Buffer accumulates the lights of a scene into the fixed-capacity lights block.
// Lights beyond the slot capacity are dropped and counted.
type Buffer struct {
	block   gpuLightsBlock
	dropped int
	logger  log.Logger
}

// NewBuffer creates an empty lights buffer.
func NewBuffer() *Buffer {
	return &Buffer{logger: log.New("light")}
}

// Build resets the block and fills it from src.
//
// Parameters:
//   - src: the light source, usually a scene database snapshot
func (b *Buffer) Build(src Source) {
	b.block.PointCount = 0
	b.block.DirectionalCount = 0
	b.dropped = 0

	src.EachLight(func(world [16]float32, l Light) {
		c := l.Color()
		i := l.Intensity()
		color := [4]float32{c[0] * i, c[1] * i, c[2] * i, 1}

		switch l.Type() {
		case LightTypePoint:
			if b.block.PointCount >= MaxPointLights {
				b.dropped++
				return
			}
			pos := common.Translation(world[:])
			b.block.Point[b.block.PointCount] = gpuPointLight{
				Color:    color,
				Position: [4]float32{pos[0], pos[1], pos[2], 1},
			}
			b.block.PointCount++
		case LightTypeDirectional:
			if b.block.DirectionalCount >= MaxDirectionalLights {
				b.dropped++
				return
			}
			n, _ := common.Normalize3(common.TransformDirection(world[:], l.Direction()))
			b.block.Directional[b.block.DirectionalCount] = gpuDirectionalLight{
				Color:  color,
				Normal: [4]float32{n[0], n[1], n[2], 0},
			}
			b.block.DirectionalCount++
		}
	})

	if b.dropped > 0 {
		b.logger.Warningf("lights block full, dropped %d light(s)", b.dropped)
	}
}

// Bytes returns a view of the lights block for upload. The view is invalidated by the next Build.
func (b *Buffer) Bytes() []byte {
	return common.StructToBytes(&b.block)
}

// PointCount returns the number of point lights written by the last Build.
func (b *Buffer) PointCount() int {
	return int(b.block.PointCount)
}

// DirectionalCount returns the number of directional lights written by the last Build.
func (b *Buffer) DirectionalCount() int {
	return int(b.block.DirectionalCount)
}

// Dropped returns the number of lights that did not fit during the last Build.
func (b *Buffer) Dropped() int {
	return b.dropped
}
