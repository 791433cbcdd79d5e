// Package voxelgrid downsamples a point cloud to at most one point
// per grid cell, keeping the cell centroid position and the first
// point's attributes.
package voxelgrid

import (
	"github.com/pkg/errors"
	"github.com/seqsense/pcgol/mat"

	"github.com/splatvis/splatview/ply"
	"github.com/splatvis/splatview/ply/filter"
)

type Options struct {
	LeafSize mat.Vec3
}

type voxelGrid struct {
	Options
}

type voxel struct {
	sum   mat.Vec3
	num   int
	index int
}

func New(leafSize mat.Vec3) filter.Filter {
	return &voxelGrid{
		Options: Options{
			LeafSize: leafSize,
		},
	}
}

func (f *voxelGrid) Filter(pc *ply.PointCloud) (*ply.PointCloud, error) {
	for _, s := range f.LeafSize {
		if s <= 0 {
			return nil, errors.Errorf("invalid leaf size %v", f.LeafSize)
		}
	}
	min, max, err := pc.MinMax()
	if err != nil {
		return nil, err
	}

	size := max.Sub(min)
	xs := int(size[0]/f.LeafSize[0]) + 1
	ys := int(size[1]/f.LeafSize[1]) + 1
	zs := int(size[2]/f.LeafSize[2]) + 1
	voxels := make([]voxel, xs*ys*zs)

	var n int
	for i := 0; i < pc.Points; i++ {
		p := pc.Vec3At(i).Sub(min)
		x, y, z := int(p[0]/f.LeafSize[0]), int(p[1]/f.LeafSize[1]), int(p[2]/f.LeafSize[2])
		v := &voxels[x+xs*(y+ys*z)]
		if v.num == 0 {
			v.index = i
			n++
		}
		v.num++
		v.sum = v.sum.Add(p)
	}

	// Faces reference pre-filter indices and cannot survive decimation.
	out := &ply.PointCloud{
		Points:     n,
		Positions:  make([]float32, 3*n),
		SHPerPoint: pc.SHPerPoint,
	}
	if pc.Colors != nil {
		out.Colors = make([]float32, 4*n)
	}
	if pc.Normals != nil {
		out.Normals = make([]float32, 3*n)
	}
	if pc.Scales != nil {
		out.Scales = make([]float32, 3*n)
	}
	if pc.Rotations != nil {
		out.Rotations = make([]float32, 4*n)
	}
	if pc.SH != nil {
		out.SH = make([]float32, pc.SHPerPoint*n)
	}

	var j int
	for i := range voxels {
		v := &voxels[i]
		if v.num == 0 {
			continue
		}
		c := v.sum.Mul(1 / float32(v.num)).Add(min)
		out.Positions[3*j] = c[0]
		out.Positions[3*j+1] = c[1]
		out.Positions[3*j+2] = c[2]
		if out.Colors != nil {
			copy(out.Colors[4*j:4*j+4], pc.Colors[4*v.index:4*v.index+4])
		}
		if out.Normals != nil {
			copy(out.Normals[3*j:3*j+3], pc.Normals[3*v.index:3*v.index+3])
		}
		if out.Scales != nil {
			copy(out.Scales[3*j:3*j+3], pc.Scales[3*v.index:3*v.index+3])
		}
		if out.Rotations != nil {
			copy(out.Rotations[4*j:4*j+4], pc.Rotations[4*v.index:4*v.index+4])
		}
		if out.SH != nil {
			copy(out.SH[pc.SHPerPoint*j:pc.SHPerPoint*(j+1)], pc.SH[pc.SHPerPoint*v.index:pc.SHPerPoint*(v.index+1)])
		}
		j++
	}
	return out, nil
}
