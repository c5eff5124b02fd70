package main

import (
	"math"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/loader"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
)

// cubePalette holds the diffuse colors cycled across the grid.
var cubePalette = [][3]float32{
	{0.90, 0.20, 0.20},
	{0.20, 0.80, 0.30},
	{0.20, 0.40, 0.90},
	{0.90, 0.80, 0.20},
	{0.80, 0.30, 0.80},
	{0.20, 0.80, 0.80},
}

// cubeScene is a square grid of cells that spin around their vertical axis.
// Each cell holds a cube or the meshes of a loaded model.
// The engine's tick goroutine owns it exclusively.
type cubeScene struct {
	db     *scene.DB
	root   scene.ObjectKey
	camera scene.ObjectKey
	cubes  []scene.ObjectKey
	phase  []float32
	angle  float32
}

// newCubeScene lays out n cubes on the XZ plane, spacing units apart, with a
// camera looking down at the grid, a sun and a point light above the center.
func newCubeScene(n int, spacing float32) *cubeScene {
	s, err := newGridScene(n, spacing, nil)
	if err != nil {
		panic(err)
	}
	return s
}

// newGridScene is newCubeScene with every cell showing model instead of a
// cube when model is non-nil. The model is scaled to fit inside a cell.
func newGridScene(n int, spacing float32, model *loader.Model) (*cubeScene, error) {
	db := scene.NewDatabase()
	s := &cubeScene{db: db, root: db.NewObject(scene.NoObject, "cubes")}

	var cell []scene.Drawable
	scale := float32(1)
	if model != nil {
		drawables, err := model.AddTo(db, s.root)
		if err != nil {
			return nil, err
		}
		cell = drawables
		if r := model.Radius(); r > 0 {
			scale = spacing * 0.45 / r
		}
	} else {
		geometry, err := db.AddGeometry(s.root, "cube", cubeGeometry())
		if err != nil {
			return nil, err
		}
		for _, color := range cubePalette {
			material := db.NewObject(s.root, "material")
			db.SetMaterial(material, scene.Material{Diffuse: color})
			cell = append(cell, scene.Drawable{Geometry: geometry, Material: material})
		}
	}

	side := int(math.Ceil(math.Sqrt(float64(n))))
	half := float32(side-1) * spacing / 2
	for i := 0; i < n; i++ {
		k := db.NewObject(s.root, "cell")
		x := float32(i%side)*spacing - half
		z := float32(i/side)*spacing - half
		loc := scene.NewLocation([3]float32{x, 0, z})
		loc.Scale = [3]float32{scale, scale, scale}
		db.SetLocation(k, loc)

		if model == nil {
			db.SetDrawable(k, cell[i%len(cell)])
		} else {
			for _, d := range cell {
				db.SetDrawable(db.NewObject(k, "mesh"), d)
			}
		}
		s.cubes = append(s.cubes, k)
		s.phase = append(s.phase, float32(i%7)*0.4)
	}

	// Pull the camera back far enough to frame the grid and tilt it down.
	extent := max(half, spacing)
	height, distance := extent*1.2, extent*2.2
	s.camera = db.NewObject(s.root, "camera")
	db.SetLocation(s.camera, scene.Location{
		Position: [3]float32{0, height, distance},
		Rotation: common.QuatFromAxisAngle([3]float32{1, 0, 0}, -float32(math.Atan2(float64(height), float64(distance)))),
		Scale:    [3]float32{1, 1, 1},
	})

	sun := db.NewObject(s.root, "sun")
	db.SetLight(sun, light.NewLight(
		light.WithType(light.LightTypeDirectional),
		light.WithDirection(-0.3, -1, -0.5),
		light.WithColor(1.0, 0.95, 0.85),
		light.WithIntensity(0.8),
	))

	lamp := db.NewObject(s.root, "lamp")
	db.SetLocation(lamp, scene.NewLocation([3]float32{0, spacing * 2, 0}))
	db.SetLight(lamp, light.NewLight(
		light.WithType(light.LightTypePoint),
		light.WithColor(1.0, 0.5, 0.1),
		light.WithIntensity(spacing*spacing*8),
	))
	return s, nil
}

// tick spins every cube and returns a snapshot of the result.
func (s *cubeScene) tick(dt float32) (engine.Frame, bool) {
	s.angle += dt
	for i, k := range s.cubes {
		loc, _ := s.db.Location(k)
		loc.Rotation = common.QuatFromAxisAngle([3]float32{0, 1, 0}, s.angle+s.phase[i])
		s.db.SetLocation(k, loc)
	}
	return s.snapshot(), true
}

func (s *cubeScene) snapshot() engine.Frame {
	return engine.Frame{Database: s.db.Clone(), Scene: s.root, Camera: s.camera}
}

// cubeGeometry returns a unit cube with per-face normals, counter-clockwise
// when seen from outside.
func cubeGeometry() scene.Geometry {
	type face struct {
		corners [4][3]float32
		normal  [3]float32
	}
	faces := []face{
		{[4][3]float32{{0.5, -0.5, -0.5}, {0.5, 0.5, -0.5}, {0.5, 0.5, 0.5}, {0.5, -0.5, 0.5}}, [3]float32{1, 0, 0}},
		{[4][3]float32{{-0.5, -0.5, 0.5}, {-0.5, 0.5, 0.5}, {-0.5, 0.5, -0.5}, {-0.5, -0.5, -0.5}}, [3]float32{-1, 0, 0}},
		{[4][3]float32{{-0.5, 0.5, -0.5}, {-0.5, 0.5, 0.5}, {0.5, 0.5, 0.5}, {0.5, 0.5, -0.5}}, [3]float32{0, 1, 0}},
		{[4][3]float32{{-0.5, -0.5, 0.5}, {-0.5, -0.5, -0.5}, {0.5, -0.5, -0.5}, {0.5, -0.5, 0.5}}, [3]float32{0, -1, 0}},
		{[4][3]float32{{-0.5, -0.5, 0.5}, {0.5, -0.5, 0.5}, {0.5, 0.5, 0.5}, {-0.5, 0.5, 0.5}}, [3]float32{0, 0, 1}},
		{[4][3]float32{{0.5, -0.5, -0.5}, {-0.5, -0.5, -0.5}, {-0.5, 0.5, -0.5}, {0.5, 0.5, -0.5}}, [3]float32{0, 0, -1}},
	}

	g := scene.Geometry{
		Vertices: make([]float32, 0, len(faces)*4*scene.VertexStride),
		Indices:  make([]uint32, 0, len(faces)*6),
	}
	for fi, f := range faces {
		for _, c := range f.corners {
			g.Vertices = append(g.Vertices, c[0], c[1], c[2], f.normal[0], f.normal[1], f.normal[2])
		}
		base := uint32(fi * 4)
		g.Indices = append(g.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return g
}
