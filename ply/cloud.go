package ply

import (
	"math"

	"github.com/seqsense/pcgol/mat"
)

// PointCloud is the canonical point set every dialect converges to.
// Positions is always 3*Points long. Colors is 4*Points (RGBA, 0-1).
// Normals, Scales, Rotations, SH and Faces are nil when the source
// dialect did not carry them.
type PointCloud struct {
	Points int

	Positions []float32
	Colors    []float32
	Normals   []float32
	Scales    []float32
	Rotations []float32

	// SH holds per-point directional color coefficients
	// (SHPerPoint coefficients each) for splat dialects.
	SH         []float32
	SHPerPoint int

	// Faces holds flat triangle index triples for mesh-bearing files.
	Faces []uint32
}

// Len returns the number of points.
func (pc *PointCloud) Len() int {
	return pc.Points
}

// Vec3At returns the i-th position.
func (pc *PointCloud) Vec3At(i int) mat.Vec3 {
	return mat.Vec3{
		pc.Positions[3*i],
		pc.Positions[3*i+1],
		pc.Positions[3*i+2],
	}
}

// MinMax returns the axis-aligned bounds over all positions.
func (pc *PointCloud) MinMax() (mat.Vec3, mat.Vec3, error) {
	if pc.Points == 0 {
		return mat.Vec3{}, mat.Vec3{}, &EmptyResultError{}
	}
	min := mat.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	max := mat.Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
	for i := 0; i < pc.Points; i++ {
		v := pc.Vec3At(i)
		for j := range v {
			if v[j] < min[j] {
				min[j] = v[j]
			}
			if v[j] > max[j] {
				max[j] = v[j]
			}
		}
	}
	return min, max, nil
}

// fillDefaults normalizes optional fields into the output contract:
// absent colors become opaque white, everything else stays nil.
func (pc *PointCloud) fillDefaults() {
	if pc.Colors == nil && pc.Points > 0 {
		pc.Colors = make([]float32, 4*pc.Points)
		for i := range pc.Colors {
			pc.Colors[i] = 1
		}
	}
}
