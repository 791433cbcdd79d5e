// Package octree indexes point positions for radius and frustum
// queries. Nodes own either a point list (leaves) or exactly eight
// children covering the octants of their bounds; the frustum query
// thins far-away regions by striding over their points.
package octree

import (
	"math"

	"github.com/pkg/errors"
	"github.com/seqsense/pcgol/mat"
)

const (
	defaultLeafCapacity = 100
	defaultLODFactor    = 1000

	// minSubdivideExtent stops subdivision once a node is too small to
	// split meaningfully (e.g. many coincident points).
	minSubdivideExtent = 1e-6
)

// Options tunes index construction. Zero fields take defaults.
type Options struct {
	// LeafCapacity is the point count that triggers subdivision.
	LeafCapacity int
	// LODFactor scales the half extent into the distance beyond which
	// a region contributes strided samples instead of full density.
	LODFactor float32
}

// Point is one indexed position with its index into the origin array.
type Point struct {
	Pos   mat.Vec3
	Index int
}

type node struct {
	center     mat.Vec3
	halfExtent float32
	points     []Point
	children   []*node // nil for leaves, always 8 otherwise
}

// Octree is a spatial index with bounds fixed at construction.
type Octree struct {
	root         *node
	size         int
	leafCapacity int
	lodFactor    float32
}

// New creates an empty octree covering the cube of the given half
// extent around center.
func New(center mat.Vec3, halfExtent float32, opts Options) (*Octree, error) {
	if halfExtent <= 0 {
		return nil, errors.Errorf("invalid half extent %f for octree", halfExtent)
	}
	if opts.LeafCapacity <= 0 {
		opts.LeafCapacity = defaultLeafCapacity
	}
	if opts.LODFactor <= 0 {
		opts.LODFactor = defaultLODFactor
	}
	return &Octree{
		root:         &node{center: center, halfExtent: halfExtent},
		leafCapacity: opts.LeafCapacity,
		lodFactor:    opts.LODFactor,
	}, nil
}

// FromPositions builds an index over a flat xyz position array. Root
// bounds are derived from the data extent, so every position is
// accepted.
func FromPositions(positions []float32, opts Options) (*Octree, error) {
	n := len(positions) / 3
	if n == 0 {
		return nil, errors.New("no positions to index")
	}
	min := mat.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	max := mat.Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			v := positions[3*i+j]
			if v < min[j] {
				min[j] = v
			}
			if v > max[j] {
				max[j] = v
			}
		}
	}
	center := min.Add(max).Mul(0.5)
	var halfExtent float32
	for j := 0; j < 3; j++ {
		if d := (max[j] - min[j]) / 2; d > halfExtent {
			halfExtent = d
		}
	}
	// Margin keeps boundary points strictly inside after rounding.
	halfExtent = halfExtent*1.001 + 1e-6

	o, err := New(center, halfExtent, opts)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		p := Point{
			Pos:   mat.Vec3{positions[3*i], positions[3*i+1], positions[3*i+2]},
			Index: i,
		}
		if !o.Insert(p) {
			return nil, errors.Errorf("point %d rejected by bounds derived from data", i)
		}
	}
	return o, nil
}

// Size returns the number of stored points.
func (o *Octree) Size() int {
	return o.size
}

// Bounds returns the fixed root bounds.
func (o *Octree) Bounds() (min, max mat.Vec3) {
	return o.root.min(), o.root.max()
}

// Insert adds a point, returning false if it lies outside the root
// bounds. Rejection is a defined signal, not an error.
func (o *Octree) Insert(p Point) bool {
	if !o.root.contains(p.Pos) {
		return false
	}
	o.root.insert(p, o.leafCapacity)
	o.size++
	return true
}

func (n *node) min() mat.Vec3 {
	h := n.halfExtent
	return n.center.Sub(mat.Vec3{h, h, h})
}

func (n *node) max() mat.Vec3 {
	h := n.halfExtent
	return n.center.Add(mat.Vec3{h, h, h})
}

func (n *node) contains(p mat.Vec3) bool {
	for i := 0; i < 3; i++ {
		if p[i] < n.center[i]-n.halfExtent || p[i] > n.center[i]+n.halfExtent {
			return false
		}
	}
	return true
}

func (n *node) octant(p mat.Vec3) int {
	idx := 0
	for i := 0; i < 3; i++ {
		if p[i] >= n.center[i] {
			idx |= 1 << i
		}
	}
	return idx
}

func (n *node) insert(p Point, leafCapacity int) {
	if n.children == nil {
		if len(n.points) < leafCapacity || n.halfExtent <= minSubdivideExtent {
			n.points = append(n.points, p)
			return
		}
		n.subdivide()
	}
	n.children[n.octant(p.Pos)].insert(p, leafCapacity)
}

// subdivide splits a full leaf into eight octants of half the half
// extent and redistributes its points. This happens exactly once per
// node; the parent's list stays empty afterwards.
func (n *node) subdivide() {
	h := n.halfExtent / 2
	n.children = make([]*node, 8)
	for i := range n.children {
		offset := mat.Vec3{-h, -h, -h}
		for j := 0; j < 3; j++ {
			if i&(1<<j) != 0 {
				offset[j] = h
			}
		}
		n.children[i] = &node{
			center:     n.center.Add(offset),
			halfExtent: h,
		}
	}
	for _, p := range n.points {
		c := n.children[n.octant(p.Pos)]
		c.points = append(c.points, p)
	}
	n.points = nil
}

// QueryRadius returns the indices of all points within radius of
// center, pruning subtrees by closest-point-in-box distance.
func (o *Octree) QueryRadius(center mat.Vec3, radius float32) []int {
	var out []int
	o.root.queryRadius(center, radius, &out)
	return out
}

func (n *node) queryRadius(center mat.Vec3, radius float32, out *[]int) {
	if n.boxDistSq(center) > radius*radius {
		return
	}
	for _, p := range n.points {
		if p.Pos.Sub(center).NormSq() <= radius*radius {
			*out = append(*out, p.Index)
		}
	}
	for _, c := range n.children {
		c.queryRadius(center, radius, out)
	}
}

// boxDistSq is the squared distance from p to the closest point of the
// node's bounds; zero when p is inside.
func (n *node) boxDistSq(p mat.Vec3) float32 {
	var d float32
	for i := 0; i < 3; i++ {
		min := n.center[i] - n.halfExtent
		max := n.center[i] + n.halfExtent
		if p[i] < min {
			d += (min - p[i]) * (min - p[i])
		} else if p[i] > max {
			d += (p[i] - max) * (p[i] - max)
		}
	}
	return d
}

// QueryFrustum returns indices of points inside the frustum,
// distance-adaptively: an interior node farther from the camera than
// halfExtent*LODFactor contributes every stride-th point of its
// subtree, stride = max(1, floor(distance/threshold)). Near nodes and
// leaves contribute at full density.
func (o *Octree) QueryFrustum(f *Frustum, camera mat.Vec3) []int {
	var out []int
	o.root.queryFrustum(f, camera, o.lodFactor, &out)
	return out
}

func (n *node) queryFrustum(f *Frustum, camera mat.Vec3, lodFactor float32, out *[]int) {
	if !f.IntersectsBox(n.min(), n.max()) {
		return
	}
	if n.children != nil {
		threshold := n.halfExtent * lodFactor
		dist := n.center.Sub(camera).Norm()
		if dist > threshold {
			stride := int(dist / threshold)
			if stride < 1 {
				stride = 1
			}
			var i int
			n.collectStrided(stride, &i, out)
			return
		}
		for _, c := range n.children {
			c.queryFrustum(f, camera, lodFactor, out)
		}
		return
	}
	for _, p := range n.points {
		*out = append(*out, p.Index)
	}
}

func (n *node) collectStrided(stride int, counter *int, out *[]int) {
	for _, p := range n.points {
		if *counter%stride == 0 {
			*out = append(*out, p.Index)
		}
		*counter++
	}
	for _, c := range n.children {
		c.collectStrided(stride, counter, out)
	}
}
