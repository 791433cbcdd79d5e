// Package splatview loads point-cloud and Gaussian-splat scenes and
// answers per-frame visibility queries over them. Rendering, input and
// GPU upload are the caller's concern; this package stops at typed
// numeric buffers and visible-index lists.
package splatview

import (
	"bytes"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/seqsense/pcgol/mat"

	"github.com/splatvis/splatview/pcd"
	"github.com/splatvis/splatview/ply"
	"github.com/splatvis/splatview/ply/filter/voxelgrid"
	"github.com/splatvis/splatview/ply/storage/octree"
)

var plyMagic = []byte("ply")

// Scene owns one loaded dataset: the canonical point cloud, its bounds
// and the octree built over it. Only one load is active at a time; a
// later Load fully replaces the previous state.
type Scene struct {
	logger golog.Logger
	config Config

	cloud    *ply.PointCloud
	index    *octree.Octree
	min, max mat.Vec3
}

// NewScene creates an empty scene.
func NewScene(config Config, logger golog.Logger) *Scene {
	if config.LeafCapacity <= 0 {
		config.LeafCapacity = DefaultConfig().LeafCapacity
	}
	if config.LODFactor <= 0 {
		config.LODFactor = DefaultConfig().LODFactor
	}
	return &Scene{
		logger: logger,
		config: config,
	}
}

// Load decodes a complete PLY or PCD buffer, optionally downsamples
// it, and rebuilds the spatial index. On error the previous dataset
// stays in place; on success it is replaced wholesale.
func (s *Scene) Load(data []byte) error {
	var pc *ply.PointCloud
	var err error
	if bytes.HasPrefix(data, plyMagic) {
		pc, err = ply.Decode(data, s.logger)
	} else {
		pc, err = pcd.Parse(bytes.NewReader(data))
	}
	if err != nil {
		return errors.Wrap(err, "loading scene")
	}

	if s.config.DownsampleResolution > 0 {
		before := pc.Points
		pc, err = voxelgrid.New(s.config.leafSize()).Filter(pc)
		if err != nil {
			return errors.Wrap(err, "downsampling scene")
		}
		s.logger.Debugf("downsampled %d points to %d", before, pc.Points)
	}

	min, max, err := pc.MinMax()
	if err != nil {
		return err
	}
	index, err := octree.FromPositions(pc.Positions, octree.Options{
		LeafCapacity: s.config.LeafCapacity,
		LODFactor:    s.config.LODFactor,
	})
	if err != nil {
		return errors.Wrap(err, "indexing scene")
	}

	s.cloud = pc
	s.index = index
	s.min, s.max = min, max
	return nil
}

// Cloud returns the current dataset, or nil before the first Load.
func (s *Scene) Cloud() *ply.PointCloud {
	return s.cloud
}

// Bounds returns the axis-aligned bounds of the current dataset.
func (s *Scene) Bounds() (min, max mat.Vec3) {
	return s.min, s.max
}

// VisibleIndices derives a fresh frustum from the camera matrices and
// returns indices of points inside it, thinned for far regions.
func (s *Scene) VisibleIndices(projection, view mat.Mat4, camera mat.Vec3) []int {
	if s.index == nil {
		return nil
	}
	return s.index.QueryFrustum(octree.NewFrustum(projection, view), camera)
}

// RadiusIndices returns indices of all points within radius of center.
func (s *Scene) RadiusIndices(center mat.Vec3, radius float32) []int {
	if s.index == nil {
		return nil
	}
	return s.index.QueryRadius(center, radius)
}
