package common

import (
	"math"
	"testing"
)

func TestFrustumContainsSphere(t *testing.T) {
	// Camera at the origin looking down -Z.
	var proj [16]float32
	Perspective(proj[:], math.Pi/2, 1, 0.1, 100)
	f := ExtractFrustumFromMatrix(proj[:])

	specs := []struct {
		name   string
		center [3]float32
		radius float32
		want   bool
	}{
		{"in front", [3]float32{0, 0, -10}, 1, true},
		{"behind camera", [3]float32{0, 0, 10}, 1, false},
		{"beyond far plane", [3]float32{0, 0, -200}, 1, false},
		{"far left", [3]float32{-50, 0, -10}, 1, false},
		{"straddling left plane", [3]float32{-10.5, 0, -10}, 1, true},
		{"negative radius", [3]float32{0, 0, -10}, -5, true},
	}

	for _, spec := range specs {
		if got := f.ContainsSphere(spec.center, spec.radius); got != spec.want {
			t.Errorf("[%s] ContainsSphere(%v, %v) = %t, want %t", spec.name, spec.center, spec.radius, got, spec.want)
		}
	}
}
