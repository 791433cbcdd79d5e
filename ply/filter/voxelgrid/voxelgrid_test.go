package voxelgrid

import (
	"testing"

	"github.com/seqsense/pcgol/mat"

	"github.com/splatvis/splatview/ply"
)

func TestVoxelGrid(t *testing.T) {
	pc := &ply.PointCloud{
		Points: 5,
		Positions: []float32{
			0.50, 1.50, 0.10,
			1.00, 1.00, 1.00,
			0.52, 1.50, 0.12,
			1.00, 0.00, 1.00,
			1.00, 1.02, 1.00,
		},
		Colors: []float32{
			1, 0, 0, 1,
			0, 1, 0, 1,
			0, 0, 1, 1,
			1, 1, 0, 1,
			0, 1, 1, 1,
		},
	}

	vg := New(mat.Vec3{0.1, 0.1, 0.1})
	out, err := vg.Filter(pc)
	if err != nil {
		t.Fatal(err)
	}

	expected := []mat.Vec3{
		{0.51, 1.50, 0.11},
		{1.00, 0.00, 1.00},
		{1.00, 1.01, 1.00},
	}
	// The surviving point keeps the first contributor's attributes.
	expectedRed := []float32{1, 1, 0}

	if out.Points != len(expected) {
		t.Fatalf("Points expected: %d, got: %d", len(expected), out.Points)
	}
	const tolerance = 1e-6
	matched := make([]bool, len(expected))
	for i := 0; i < out.Points; i++ {
		p := out.Vec3At(i)
		var found bool
		for j, e := range expected {
			if matched[j] {
				continue
			}
			d := p.Sub(e)
			if d.NormSq() < tolerance {
				if out.Colors[4*i] != expectedRed[j] {
					t.Errorf("point %d red expected: %f, got: %f", i, expectedRed[j], out.Colors[4*i])
				}
				matched[j] = true
				found = true
				break
			}
		}
		if !found {
			t.Errorf("unexpected output point %v", p)
		}
	}
}

func TestVoxelGridKeepsSplatAttributes(t *testing.T) {
	pc := &ply.PointCloud{
		Points:     2,
		Positions:  []float32{0, 0, 0, 5, 5, 5},
		Scales:     []float32{1, 2, 3, 4, 5, 6},
		Rotations:  []float32{1, 0, 0, 0, 0, 1, 0, 0},
		SH:         []float32{0.1, 0.2, 0.3, 0.4},
		SHPerPoint: 2,
		Faces:      []uint32{0, 1, 0},
	}
	out, err := New(mat.Vec3{1, 1, 1}).Filter(pc)
	if err != nil {
		t.Fatal(err)
	}
	if out.Points != 2 {
		t.Fatalf("Points expected: 2, got: %d", out.Points)
	}
	if len(out.Scales) != 6 || len(out.Rotations) != 8 {
		t.Errorf("splat attributes must survive: %d scales, %d rotations", len(out.Scales), len(out.Rotations))
	}
	if out.SHPerPoint != 2 || len(out.SH) != 4 {
		t.Errorf("SH layout must survive: per-point %d, len %d", out.SHPerPoint, len(out.SH))
	}
	if out.Faces != nil {
		t.Error("faces cannot survive decimation")
	}
}

func TestVoxelGridError(t *testing.T) {
	if _, err := New(mat.Vec3{0, 1, 1}).Filter(&ply.PointCloud{Points: 1, Positions: []float32{0, 0, 0}}); err == nil {
		t.Error("zero leaf size must be rejected")
	}
	if _, err := New(mat.Vec3{1, 1, 1}).Filter(&ply.PointCloud{}); err == nil {
		t.Error("empty cloud must be rejected")
	}
}
