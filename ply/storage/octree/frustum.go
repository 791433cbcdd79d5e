package octree

import (
	"github.com/seqsense/pcgol/mat"
)

// Plane is an oriented half-space: Normal.Dot(p)+D >= 0 is inside.
type Plane struct {
	Normal mat.Vec3
	D      float32
}

// Frustum is the camera's visible volume as six unit-normalized
// planes (left, right, bottom, top, near, far). It is rebuilt in full
// on every Update; no partial state survives a camera change.
type Frustum struct {
	planes [6]Plane
}

// NewFrustum derives a frustum from projection and view matrices.
func NewFrustum(projection, view mat.Mat4) *Frustum {
	f := &Frustum{}
	f.Update(projection, view)
	return f
}

// Update extracts the six clip planes from the combined
// projection*view matrix rows and normalizes them.
func (f *Frustum) Update(projection, view mat.Mat4) {
	m := projection.Mul(view)
	// Column-major: element (row r, col c) is m[4*c+r].
	row := func(r int) [4]float32 {
		return [4]float32{m[r], m[4+r], m[8+r], m[12+r]}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	set := func(i int, a, b [4]float32, sub bool) {
		p := [4]float32{a[0] + b[0], a[1] + b[1], a[2] + b[2], a[3] + b[3]}
		if sub {
			p = [4]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2], a[3] - b[3]}
		}
		n := mat.Vec3{p[0], p[1], p[2]}
		l := n.Norm()
		if l > 0 {
			f.planes[i] = Plane{Normal: n.Mul(1 / l), D: p[3] / l}
		} else {
			f.planes[i] = Plane{Normal: n, D: p[3]}
		}
	}
	set(0, r3, r0, false) // left
	set(1, r3, r0, true)  // right
	set(2, r3, r1, false) // bottom
	set(3, r3, r1, true)  // top
	set(4, r3, r2, false) // near
	set(5, r3, r2, true)  // far
}

// ContainsPoint reports whether p is on the inside of all six planes.
func (f *Frustum) ContainsPoint(p mat.Vec3) bool {
	for i := range f.planes {
		if f.planes[i].Normal.Dot(p)+f.planes[i].D < 0 {
			return false
		}
	}
	return true
}

// IntersectsBox conservatively tests an axis-aligned box: for each
// plane the corner maximizing the plane equation is checked, so an
// intersecting or contained box is never culled, while some fully
// outside boxes may still pass.
func (f *Frustum) IntersectsBox(min, max mat.Vec3) bool {
	for i := range f.planes {
		pl := &f.planes[i]
		var corner mat.Vec3
		for j := 0; j < 3; j++ {
			if pl.Normal[j] >= 0 {
				corner[j] = max[j]
			} else {
				corner[j] = min[j]
			}
		}
		if pl.Normal.Dot(corner)+pl.D < 0 {
			return false
		}
	}
	return true
}
