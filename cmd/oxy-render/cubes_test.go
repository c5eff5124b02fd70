package main

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/loader"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
)

func TestCubeGeometry(t *testing.T) {
	g := cubeGeometry()
	if g.VertexCount() != 24 || len(g.Indices) != 36 {
		t.Fatalf("cube has %d vertices and %d indices, want 24 and 36", g.VertexCount(), len(g.Indices))
	}
	// Every triangle must wind counter-clockwise around its face normal.
	for i := 0; i < len(g.Indices); i += 3 {
		var p [3][3]float32
		for j := range 3 {
			v := g.Vertices[int(g.Indices[i+j])*scene.VertexStride:]
			p[j] = [3]float32{v[0], v[1], v[2]}
		}
		n := g.Vertices[int(g.Indices[i])*scene.VertexStride+3:]
		e1 := [3]float32{p[1][0] - p[0][0], p[1][1] - p[0][1], p[1][2] - p[0][2]}
		e2 := [3]float32{p[2][0] - p[0][0], p[2][1] - p[0][1], p[2][2] - p[0][2]}
		cross := [3]float32{
			e1[1]*e2[2] - e1[2]*e2[1],
			e1[2]*e2[0] - e1[0]*e2[2],
			e1[0]*e2[1] - e1[1]*e2[0],
		}
		if dot := cross[0]*n[0] + cross[1]*n[1] + cross[2]*n[2]; dot <= 0 {
			t.Fatalf("triangle %d winds clockwise", i/3)
		}
	}
}

func TestCubeSceneIsFramed(t *testing.T) {
	specs := []struct {
		cubes   int
		spacing float32
	}{
		{1, 3},
		{10, 2},
		{1000, 3},
	}
	for _, spec := range specs {
		s := newCubeScene(spec.cubes, spec.spacing)
		if len(s.cubes) != spec.cubes {
			t.Errorf("[%d cubes] scene has %d cubes", spec.cubes, len(s.cubes))
			continue
		}

		cam := camera.NewCamera(
			camera.WithWorld(s.db.Position(s.camera)),
			camera.WithViewport(1280, 720),
			camera.WithFov(math.Pi/4),
			camera.WithNear(0.1),
			camera.WithFar(1000),
		)
		visible := s.db.Walk(s.root, cam.Matrices().ViewProjection)
		if len(visible) != spec.cubes {
			t.Errorf("[%d cubes] camera sees %d cubes", spec.cubes, len(visible))
		}
	}
}

func TestTickSpinsAndSnapshots(t *testing.T) {
	s := newCubeScene(4, 2)
	first, ok := s.tick(0.5)
	if !ok {
		t.Fatal("tick() skipped the frame")
	}
	if first.Scene != s.root || first.Camera != s.camera {
		t.Fatalf("frame = scene %d camera %d, want %d and %d", first.Scene, first.Camera, s.root, s.camera)
	}
	before, _ := first.Database.Location(s.cubes[0])

	second, _ := s.tick(0.5)
	after, _ := second.Database.Location(s.cubes[0])
	if before.Rotation == after.Rotation {
		t.Fatal("cube did not rotate between ticks")
	}
	if again, _ := first.Database.Location(s.cubes[0]); again.Rotation != before.Rotation {
		t.Fatal("earlier snapshot changed after a later tick")
	}
	if before.Position != after.Position {
		t.Fatalf("cube moved from %v to %v", before.Position, after.Position)
	}
}

func TestModelGridAttachesEveryMesh(t *testing.T) {
	tri := scene.Geometry{
		Vertices: []float32{0, 0, 0, 0, 0, 1, 2, 0, 0, 0, 0, 1, 0, 2, 0, 0, 0, 1},
		Indices:  []uint32{0, 1, 2},
	}
	model := &loader.Model{
		Name:   "pair",
		Meshes: []loader.Mesh{{Name: "a", Geometry: tri, Material: -1}, {Name: "b", Geometry: tri, Material: -1}},
	}

	s, err := newGridScene(4, 3, model)
	if err != nil {
		t.Fatalf("newGridScene() error = %v", err)
	}
	if len(s.cubes) != 4 {
		t.Fatalf("scene has %d cells, want 4", len(s.cubes))
	}
	loc, _ := s.db.Location(s.cubes[0])
	if want := float32(3 * 0.45 / 2); math.Abs(float64(loc.Scale[0]-want)) > 1e-5 {
		t.Errorf("cell scale = %v, want %v", loc.Scale[0], want)
	}

	cam := camera.NewCamera(
		camera.WithWorld(s.db.Position(s.camera)),
		camera.WithViewport(1280, 720),
		camera.WithFov(math.Pi/4),
		camera.WithNear(0.1),
		camera.WithFar(1000),
	)
	if visible := s.db.Walk(s.root, cam.Matrices().ViewProjection); len(visible) != 8 {
		t.Fatalf("camera sees %d meshes, want 8", len(visible))
	}
}
