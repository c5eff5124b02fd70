package light

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/common"
)

type lightEntry struct {
	world [16]float32
	light Light
}

type sliceSource []lightEntry

func (s sliceSource) EachLight(fn func(world [16]float32, l Light)) {
	for _, e := range s {
		fn(e.world, e.light)
	}
}

func translated(x, y, z float32) [16]float32 {
	var m [16]float32
	common.ComposeMatrix(m[:], [3]float32{x, y, z}, common.QuatIdentity, [3]float32{1, 1, 1})
	return m
}

func TestBlockSize(t *testing.T) {
	if want := 16 + MaxPointLights*32 + MaxDirectionalLights*32; BlockSize != want {
		t.Fatalf("BlockSize = %d, want %d", BlockSize, want)
	}
}

func TestBuildEncodesPointAndDirectionalLights(t *testing.T) {
	var rotated [16]float32
	common.ComposeMatrix(rotated[:], [3]float32{5, 5, 5}, common.QuatFromAxisAngle([3]float32{0, 0, 1}, math.Pi/2), [3]float32{3, 3, 3})

	src := sliceSource{
		{translated(1, 2, 3), NewLight(WithColor(1, 0.5, 0), WithIntensity(2))},
		{rotated, NewLight(WithType(LightTypeDirectional), WithDirection(1, 0, 0))},
	}

	b := NewBuffer()
	b.Build(src)

	if b.PointCount() != 1 || b.DirectionalCount() != 1 || b.Dropped() != 0 {
		t.Fatalf("counts = (%d, %d, %d), want (1, 1, 0)", b.PointCount(), b.DirectionalCount(), b.Dropped())
	}

	data := b.Bytes()
	if len(data) != BlockSize {
		t.Fatalf("len(Bytes()) = %d, want %d", len(data), BlockSize)
	}
	if got := binary.LittleEndian.Uint32(data[0:4]); got != 1 {
		t.Errorf("point_count = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(data[4:8]); got != 1 {
		t.Errorf("direction_count = %d, want 1", got)
	}

	p := b.block.Point[0]
	if p.Color != [4]float32{2, 1, 0, 1} {
		t.Errorf("point color = %v, want [2 1 0 1]", p.Color)
	}
	if p.Position != [4]float32{1, 2, 3, 1} {
		t.Errorf("point position = %v, want [1 2 3 1]", p.Position)
	}

	// +X rotated a quarter turn around Z points along +Y; scale must not leak into the normal.
	n := b.block.Directional[0].Normal
	if math.Abs(float64(n[0])) > 1e-5 || math.Abs(float64(n[1]-1)) > 1e-5 || n[3] != 0 {
		t.Errorf("directional normal = %v, want [0 1 0 0]", n)
	}
}

func TestBuildDropsOverflow(t *testing.T) {
	var src sliceSource
	for i := 0; i < MaxPointLights+3; i++ {
		src = append(src, lightEntry{translated(float32(i), 0, 0), NewLight()})
	}
	for i := 0; i < MaxDirectionalLights+2; i++ {
		src = append(src, lightEntry{translated(0, 0, 0), NewLight(WithType(LightTypeDirectional))})
	}

	b := NewBuffer()
	b.Build(src)

	if b.PointCount() != MaxPointLights {
		t.Errorf("PointCount() = %d, want %d", b.PointCount(), MaxPointLights)
	}
	if b.DirectionalCount() != MaxDirectionalLights {
		t.Errorf("DirectionalCount() = %d, want %d", b.DirectionalCount(), MaxDirectionalLights)
	}
	if b.Dropped() != 5 {
		t.Errorf("Dropped() = %d, want 5", b.Dropped())
	}

	// A rebuild with fewer lights resets the counters.
	b.Build(src[:1])
	if b.PointCount() != 1 || b.Dropped() != 0 {
		t.Errorf("after rebuild counts = (%d, %d), want (1, 0)", b.PointCount(), b.Dropped())
	}
}

func TestWithIntensityClampsNegative(t *testing.T) {
	if got := NewLight(WithIntensity(-3)).Intensity(); got != 0 {
		t.Fatalf("Intensity() = %v, want 0", got)
	}
}
