package splatview

import (
	"strings"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	doc := `leaf_capacity: 32
lod_factor: 500
downsample_resolution: 0.05
`
	c, err := LoadConfig(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	if c.LeafCapacity != 32 {
		t.Errorf("LeafCapacity expected: 32, got: %d", c.LeafCapacity)
	}
	if c.LODFactor != 500 {
		t.Errorf("LODFactor expected: 500, got: %f", c.LODFactor)
	}
	if c.DownsampleResolution != 0.05 {
		t.Errorf("DownsampleResolution expected: 0.05, got: %f", c.DownsampleResolution)
	}

	leaf := c.leafSize()
	for i := 0; i < 3; i++ {
		if leaf[i] != 0.05 {
			t.Errorf("leafSize[%d] expected: 0.05, got: %f", i, leaf[i])
		}
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	c, err := LoadConfig(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if c != DefaultConfig() {
		t.Errorf("empty config expected defaults, got: %+v", c)
	}

	c, err = LoadConfig(strings.NewReader("lod_factor: -5\n"))
	if err != nil {
		t.Fatal(err)
	}
	if c.LODFactor != DefaultConfig().LODFactor {
		t.Errorf("non-positive LODFactor must fall back to default, got: %f", c.LODFactor)
	}
}

func TestLoadConfigError(t *testing.T) {
	if _, err := LoadConfig(strings.NewReader("leaf_capacity: [oops\n")); err == nil {
		t.Error("malformed yaml must fail")
	}
}
