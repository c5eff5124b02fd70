package scene

import (
	"math"
	"slices"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
)

func triangle() Geometry {
	return Geometry{
		Vertices: []float32{
			0, 1, 0, 0, 0, 1,
			-1, -1, 0, 0, 0, 1,
			1, -1, 0, 0, 0, 1,
		},
		Indices: []uint32{0, 1, 2},
	}
}

// viewProjAt builds a camera at eye looking down -Z with a 90 degree field of view.
func viewProjAt(eye [3]float32) [16]float32 {
	var world, view, proj, vp [16]float32
	common.ComposeMatrix(world[:], eye, common.QuatIdentity, [3]float32{1, 1, 1})
	common.Invert4(view[:], world[:])
	common.Perspective(proj[:], math.Pi/2, 1, 0.1, 100)
	common.Mul4(vp[:], proj[:], view[:])
	return vp
}

func buildScene(t *testing.T) (*DB, ObjectKey, ObjectKey, []ObjectKey) {
	t.Helper()
	db := NewDatabase()
	root := db.NewObject(NoObject, "scene")
	geom, err := db.AddGeometry(root, "triangle", triangle())
	if err != nil {
		t.Fatalf("AddGeometry() error = %v", err)
	}
	mat := db.NewObject(root, "red")
	db.SetMaterial(mat, Material{Diffuse: [3]float32{1, 0, 0}})

	var drawables []ObjectKey
	for _, z := range []float32{-5, -10, 10} {
		k := db.NewObject(root, "tri")
		db.SetLocation(k, NewLocation([3]float32{0, 0, z}))
		db.SetDrawable(k, Drawable{Geometry: geom, Material: mat})
		drawables = append(drawables, k)
	}
	return db, root, geom, drawables
}

func TestAddGeometryValidates(t *testing.T) {
	db := NewDatabase()

	specs := []struct {
		name string
		geom Geometry
	}{
		{"ragged vertices", Geometry{Vertices: []float32{1, 2, 3}}},
		{"index out of range", Geometry{Vertices: make([]float32, VertexStride), Indices: []uint32{0, 1}}},
	}
	for _, spec := range specs {
		if _, err := db.AddGeometry(NoObject, spec.name, spec.geom); err == nil {
			t.Errorf("[%s] expected an error", spec.name)
		}
	}
	if db.Len() != 0 {
		t.Fatalf("Len() = %d after failed inserts, want 0", db.Len())
	}
}

func TestAddGeometryComputesRadiusAndCopies(t *testing.T) {
	db := NewDatabase()
	src := triangle()
	key, err := db.AddGeometry(NoObject, "tri", src)
	if err != nil {
		t.Fatalf("AddGeometry() error = %v", err)
	}
	src.Vertices[0] = 99

	g, ok := db.Geometry(key)
	if !ok {
		t.Fatal("geometry not stored")
	}
	if g.Vertices[0] != 0 {
		t.Fatal("stored geometry aliases the caller's slice")
	}
	if want := float32(math.Sqrt(2)); math.Abs(float64(g.Radius-want)) > 1e-5 {
		t.Fatalf("Radius = %v, want %v", g.Radius, want)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	db, _, _, drawables := buildScene(t)
	snap := db.Clone()

	db.SetLocation(drawables[0], NewLocation([3]float32{7, 7, 7}))
	db.Remove(drawables[1])

	loc, _ := snap.Location(drawables[0])
	if loc.Position != [3]float32{0, 0, -5} {
		t.Errorf("snapshot location changed to %v", loc.Position)
	}
	if _, ok := snap.Drawable(drawables[1]); !ok {
		t.Error("snapshot lost a drawable removed from the source")
	}
	if snap.Len() != db.Len()+1 {
		t.Errorf("snapshot Len() = %d, source Len() = %d", snap.Len(), db.Len())
	}
}

func TestPositionComposesParents(t *testing.T) {
	db := NewDatabase()
	parent := db.NewObject(NoObject, "parent")
	db.SetLocation(parent, Location{
		Position: [3]float32{10, 0, 0},
		Rotation: common.QuatFromAxisAngle([3]float32{0, 1, 0}, math.Pi/2),
	})
	child := db.NewObject(parent, "child")
	db.SetLocation(child, NewLocation([3]float32{1, 0, 0}))
	grandchild := db.NewObject(child, "no location")

	world := db.Position(grandchild)
	got := common.Translation(world[:])
	want := [3]float32{10, 0, -1}
	for i := range got {
		if math.Abs(float64(got[i]-want[i])) > 1e-5 {
			t.Fatalf("Position() translation = %v, want %v", got, want)
		}
	}
}

func TestWalkCullsAndScopes(t *testing.T) {
	db, root, geom, drawables := buildScene(t)

	// An object in a different scene must never be returned.
	other := db.NewObject(NoObject, "other scene")
	stray := db.NewObject(other, "stray")
	db.SetLocation(stray, NewLocation([3]float32{0, 0, -5}))
	db.SetDrawable(stray, Drawable{Geometry: geom})

	got := db.Walk(root, viewProjAt([3]float32{}))
	want := drawables[:2] // the object behind the camera is culled
	if !slices.Equal(got, want) {
		t.Fatalf("Walk() = %v, want %v", got, want)
	}

	if got := db.Walk(NoObject, viewProjAt([3]float32{})); got != nil {
		t.Fatalf("Walk(NoObject) = %v, want nil", got)
	}

	// Turning the camera around swaps visibility.
	got = db.Walk(root, viewProjAt([3]float32{0, 0, 20}))
	if !slices.Equal(got, drawables) {
		t.Fatalf("Walk() from z=20 = %v, want %v", got, drawables)
	}
}

func TestEachLightOrderAndWorld(t *testing.T) {
	db := NewDatabase()
	a := db.NewObject(NoObject, "a")
	b := db.NewObject(NoObject, "b")
	db.SetLocation(b, NewLocation([3]float32{0, 3, 0}))
	db.SetLight(b, light.NewLight(light.WithIntensity(2)))
	db.SetLight(a, light.NewLight(light.WithType(light.LightTypeDirectional)))

	var order []light.LightType
	var lastWorld [16]float32
	db.EachLight(func(world [16]float32, l light.Light) {
		order = append(order, l.Type())
		lastWorld = world
	})

	if !slices.Equal(order, []light.LightType{light.LightTypeDirectional, light.LightTypePoint}) {
		t.Fatalf("EachLight order = %v", order)
	}
	if got := common.Translation(lastWorld[:]); got != [3]float32{0, 3, 0} {
		t.Fatalf("point light world translation = %v, want [0 3 0]", got)
	}
}

func TestRemoveDeletesDescendants(t *testing.T) {
	db, root, _, _ := buildScene(t)
	keep := db.NewObject(NoObject, "keep")

	db.Remove(root)

	if db.Len() != 1 {
		t.Fatalf("Len() = %d after removing the scene root, want 1", db.Len())
	}
	if db.Name(keep) != "keep" {
		t.Fatalf("unrelated object was removed")
	}
	if len(db.Geometries()) != 0 || len(db.Materials()) != 0 {
		t.Fatalf("geometries/materials survived removal")
	}
}
