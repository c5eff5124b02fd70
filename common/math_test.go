package common

import (
	"math"
	"testing"
)

func approxEqual(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-4
}

func matApproxEqual(a, b []float32) bool {
	for i := range a {
		if !approxEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func TestComposeMatrixIdentity(t *testing.T) {
	var m [16]float32
	ComposeMatrix(m[:], [3]float32{}, QuatIdentity, [3]float32{1, 1, 1})

	want := IdentityMatrix()
	if !matApproxEqual(m[:], want[:]) {
		t.Fatalf("ComposeMatrix(identity) = %v, want %v", m, want)
	}
}

func TestComposeMatrixRotatesAndTranslates(t *testing.T) {
	specs := []struct {
		name  string
		pos   [3]float32
		rot   [4]float32
		scale [3]float32
		in    [3]float32
		want  [3]float32
	}{
		{
			name:  "quarter turn around y",
			rot:   QuatFromAxisAngle([3]float32{0, 1, 0}, math.Pi/2),
			scale: [3]float32{1, 1, 1},
			in:    [3]float32{1, 0, 0},
			want:  [3]float32{0, 0, -1},
		},
		{
			name:  "scaled and translated",
			pos:   [3]float32{1, 2, 3},
			rot:   QuatIdentity,
			scale: [3]float32{2, 2, 2},
			in:    [3]float32{1, 1, 1},
			want:  [3]float32{3, 4, 5},
		},
		{
			name:  "unnormalized quaternion",
			rot:   [4]float32{0, 0, 0, 5},
			scale: [3]float32{1, 1, 1},
			in:    [3]float32{0, 1, 0},
			want:  [3]float32{0, 1, 0},
		},
	}

	for _, spec := range specs {
		var m [16]float32
		ComposeMatrix(m[:], spec.pos, spec.rot, spec.scale)
		got := TransformDirection(m[:], spec.in)
		tr := Translation(m[:])
		for i := range got {
			got[i] += tr[i]
		}
		for i := range got {
			if !approxEqual(got[i], spec.want[i]) {
				t.Errorf("[%s] transformed point = %v, want %v", spec.name, got, spec.want)
				break
			}
		}
	}
}

func TestInvert4RoundTrip(t *testing.T) {
	var m, inv, prod [16]float32
	ComposeMatrix(m[:], [3]float32{4, -2, 7}, QuatFromAxisAngle([3]float32{1, 1, 0}, 0.7), [3]float32{1, 2, 3})

	if !Invert4(inv[:], m[:]) {
		t.Fatal("Invert4 reported a singular matrix")
	}
	Mul4(prod[:], m[:], inv[:])

	want := IdentityMatrix()
	if !matApproxEqual(prod[:], want[:]) {
		t.Fatalf("m * inverse(m) = %v, want identity", prod)
	}
}

func TestInvert4Singular(t *testing.T) {
	var m, out [16]float32
	out[0] = 42
	if Invert4(out[:], m[:]) {
		t.Fatal("expected zero matrix to be singular")
	}
	if out[0] != 42 {
		t.Fatalf("output modified on singular input: %v", out)
	}
}

func TestQuatMulComposesRotations(t *testing.T) {
	half := QuatFromAxisAngle([3]float32{0, 0, 1}, math.Pi/4)
	full := QuatFromAxisAngle([3]float32{0, 0, 1}, math.Pi/2)
	got := QuatMul(half, half)
	for i := range got {
		if !approxEqual(got[i], full[i]) {
			t.Fatalf("QuatMul(half, half) = %v, want %v", got, full)
		}
	}
}

func TestMaxScale(t *testing.T) {
	var m [16]float32
	ComposeMatrix(m[:], [3]float32{}, QuatFromAxisAngle([3]float32{0, 1, 0}, 1.1), [3]float32{1, 4, 2})
	if got := MaxScale(m[:]); !approxEqual(got, 4) {
		t.Fatalf("MaxScale() = %v, want 4", got)
	}
}

func TestSliceToBytes(t *testing.T) {
	if got := SliceToBytes([]float32{}); got != nil {
		t.Fatalf("SliceToBytes(empty) = %v, want nil", got)
	}
	if got := len(SliceToBytes([]float32{1, 2, 3})); got != 12 {
		t.Fatalf("len(SliceToBytes) = %d, want 12", got)
	}
}
