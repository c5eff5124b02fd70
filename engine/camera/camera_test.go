package camera

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/common"
)

func TestViewIsInverseOfWorld(t *testing.T) {
	var world [16]float32
	common.ComposeMatrix(world[:], [3]float32{3, 4, 5}, common.QuatFromAxisAngle([3]float32{0, 1, 0}, 0.5), [3]float32{1, 1, 1})

	cam := NewCamera(WithWorld(world), WithViewport(800, 400))
	if got := cam.Aspect(); got != 2 {
		t.Fatalf("Aspect() = %v, want 2", got)
	}
	if got := cam.Position(); got != [3]float32{3, 4, 5} {
		t.Fatalf("Position() = %v, want [3 4 5]", got)
	}

	m := cam.Matrices()
	var prod [16]float32
	common.Mul4(prod[:], m.View[:], world[:])
	id := common.IdentityMatrix()
	for i := range prod {
		if math.Abs(float64(prod[i]-id[i])) > 1e-5 {
			t.Fatalf("view * world = %v, want identity", prod)
		}
	}
}

func TestFrustumFollowsWorld(t *testing.T) {
	var world [16]float32
	// Rotate half a turn so the camera looks down +Z.
	common.ComposeMatrix(world[:], [3]float32{}, common.QuatFromAxisAngle([3]float32{0, 1, 0}, math.Pi), [3]float32{1, 1, 1})
	f := NewCamera(WithWorld(world)).Frustum()

	if !f.ContainsSphere([3]float32{0, 0, 10}, 1) {
		t.Error("object in front of the turned camera was culled")
	}
	if f.ContainsSphere([3]float32{0, 0, -10}, 1) {
		t.Error("object behind the turned camera was kept")
	}
}

func TestOptionsIgnoreInvalidValues(t *testing.T) {
	cam := NewCamera(WithFov(-1), WithNear(0), WithFar(-5), WithViewport(0, 10))
	if cam.Fov() != math.Pi/4 || cam.Near() != 0.1 || cam.Far() != 1000 || cam.Aspect() != 1 {
		t.Fatalf("defaults overridden: fov=%v near=%v far=%v aspect=%v", cam.Fov(), cam.Near(), cam.Far(), cam.Aspect())
	}
}

func TestSingularWorldFallsBackToIdentityView(t *testing.T) {
	var zero [16]float32
	m := NewCamera(WithWorld(zero)).Matrices()
	if m.View != common.IdentityMatrix() {
		t.Fatalf("View = %v, want identity", m.View)
	}
}
