package octree

import (
	"testing"

	"github.com/seqsense/pcgol/mat"
)

// testFrustum places the camera at (0, 0, 10) looking down -z with a
// 1 rad vertical field of view and clip range [0.1, 100].
func testFrustum() *Frustum {
	projection := mat.Perspective(1.0, 1.0, 0.1, 100.0)
	view := mat.Translate(0, 0, -10)
	return NewFrustum(projection, view)
}

func TestContainsPoint(t *testing.T) {
	f := testFrustum()
	testCases := []struct {
		name     string
		p        mat.Vec3
		expected bool
	}{
		{name: "Origin", p: mat.Vec3{0, 0, 0}, expected: true},
		{name: "NearCenter", p: mat.Vec3{0, 0, 5}, expected: true},
		{name: "DeepButVisible", p: mat.Vec3{0, 0, -85}, expected: true},
		{name: "BehindCamera", p: mat.Vec3{0, 0, 15}, expected: false},
		{name: "BeyondFar", p: mat.Vec3{0, 0, -95}, expected: false},
		{name: "OutsideSide", p: mat.Vec3{8, 0, 9}, expected: false},
		{name: "OutsideTop", p: mat.Vec3{0, -8, 9}, expected: false},
	}
	for _, tt := range testCases {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := f.ContainsPoint(tt.p); got != tt.expected {
				t.Errorf("ContainsPoint(%v) expected: %v, got: %v", tt.p, tt.expected, got)
			}
		})
	}
}

func TestIntersectsBox(t *testing.T) {
	f := testFrustum()
	testCases := []struct {
		name     string
		min, max mat.Vec3
		expected bool
	}{
		{
			name: "AroundOrigin",
			min:  mat.Vec3{-1, -1, -1}, max: mat.Vec3{1, 1, 1},
			expected: true,
		},
		{
			name: "ContainsFrustum",
			min:  mat.Vec3{-1000, -1000, -1000}, max: mat.Vec3{1000, 1000, 1000},
			expected: true,
		},
		{
			name: "StraddlesNearPlane",
			min:  mat.Vec3{-1, -1, 5}, max: mat.Vec3{1, 1, 15},
			expected: true,
		},
		{
			name: "BehindCamera",
			min:  mat.Vec3{-1, -1, 16}, max: mat.Vec3{1, 1, 28},
			expected: false,
		},
		{
			name: "BeyondFar",
			min:  mat.Vec3{-1, -1, -200}, max: mat.Vec3{1, 1, -150},
			expected: false,
		},
		{
			name: "FarOffAxis",
			min:  mat.Vec3{100, 100, 0}, max: mat.Vec3{101, 101, 1},
			expected: false,
		},
	}
	for _, tt := range testCases {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := f.IntersectsBox(tt.min, tt.max); got != tt.expected {
				t.Errorf("IntersectsBox(%v, %v) expected: %v, got: %v", tt.min, tt.max, tt.expected, got)
			}
		})
	}
}

func TestUpdate(t *testing.T) {
	projection := mat.Perspective(1.0, 1.0, 0.1, 100.0)
	f := NewFrustum(projection, mat.Translate(0, 0, -10))

	p := mat.Vec3{0, 0, -100}
	if f.ContainsPoint(p) {
		t.Fatal("point out of the initial frustum range expected")
	}

	// Move the camera back; the same point is now in range.
	f.Update(projection, mat.Translate(0, 0, 10))
	if !f.ContainsPoint(p) {
		t.Error("updated frustum must see the point")
	}
	if f.ContainsPoint(mat.Vec3{0, 0, 0}) {
		t.Error("updated frustum must not retain the old near range")
	}
}
