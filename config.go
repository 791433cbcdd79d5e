package splatview

import (
	"io"

	"github.com/seqsense/pcgol/mat"
	"gopkg.in/yaml.v3"
)

// Config tunes scene loading and spatial indexing.
type Config struct {
	// LeafCapacity is the octree leaf point count that triggers
	// subdivision.
	LeafCapacity int `yaml:"leaf_capacity"`
	// LODFactor scales node half extent into the camera distance
	// beyond which a region is sampled instead of fully emitted.
	LODFactor float32 `yaml:"lod_factor"`
	// DownsampleResolution, when positive, runs a voxel-grid filter
	// of this cell size over decoded clouds before indexing.
	DownsampleResolution float32 `yaml:"downsample_resolution"`
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		LeafCapacity: 100,
		LODFactor:    1000,
	}
}

// LoadConfig reads a yaml config, leaving unset fields at defaults.
func LoadConfig(r io.Reader) (Config, error) {
	c := DefaultConfig()
	if err := yaml.NewDecoder(r).Decode(&c); err != nil && err != io.EOF {
		return Config{}, err
	}
	if c.LeafCapacity <= 0 {
		c.LeafCapacity = 100
	}
	if c.LODFactor <= 0 {
		c.LODFactor = 1000
	}
	return c, nil
}

func (c Config) leafSize() mat.Vec3 {
	r := c.DownsampleResolution
	return mat.Vec3{r, r, r}
}
