package filter

import (
	"github.com/splatvis/splatview/ply"
)

// Filter transforms one canonical point cloud into another.
type Filter interface {
	Filter(*ply.PointCloud) (*ply.PointCloud, error)
}
