package splatview

import (
	"bytes"
	"errors"
	"testing"

	"github.com/edaniels/golog"
	"github.com/seqsense/pcgol/mat"

	"github.com/splatvis/splatview/ply"
)

func scenePLY(t *testing.T, positions []float32) []byte {
	t.Helper()
	var buf bytes.Buffer
	err := ply.Write(&buf, &ply.PointCloud{
		Points:    len(positions) / 3,
		Positions: positions,
	})
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestSceneLoad(t *testing.T) {
	s := NewScene(DefaultConfig(), golog.NewTestLogger(t))
	if s.Cloud() != nil {
		t.Fatal("fresh scene must have no cloud")
	}

	data := scenePLY(t, []float32{0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 3})
	if err := s.Load(data); err != nil {
		t.Fatal(err)
	}
	if s.Cloud().Points != 4 {
		t.Fatalf("Points expected: 4, got: %d", s.Cloud().Points)
	}
	min, max := s.Bounds()
	if min != (mat.Vec3{0, 0, 0}) || max != (mat.Vec3{1, 2, 3}) {
		t.Errorf("unexpected bounds: %v, %v", min, max)
	}

	out := s.RadiusIndices(mat.Vec3{0, 0, 0}, 1.5)
	if len(out) != 2 {
		t.Errorf("radius query expected 2 indices, got: %v", out)
	}
}

func TestSceneLoadReplaces(t *testing.T) {
	s := NewScene(DefaultConfig(), golog.NewTestLogger(t))
	if err := s.Load(scenePLY(t, []float32{0, 0, 0, 1, 1, 1})); err != nil {
		t.Fatal(err)
	}
	if err := s.Load(scenePLY(t, []float32{5, 5, 5, 6, 6, 6, 7, 7, 7})); err != nil {
		t.Fatal(err)
	}
	if s.Cloud().Points != 3 {
		t.Fatalf("second load must replace the first: %d points", s.Cloud().Points)
	}
	min, _ := s.Bounds()
	if min != (mat.Vec3{5, 5, 5}) {
		t.Errorf("bounds must track the second load: %v", min)
	}
	if out := s.RadiusIndices(mat.Vec3{0, 0, 0}, 2); len(out) != 0 {
		t.Errorf("index must not retain first-load points: %v", out)
	}
}

func TestSceneLoadKeepsStateOnError(t *testing.T) {
	s := NewScene(DefaultConfig(), golog.NewTestLogger(t))
	if err := s.Load(scenePLY(t, []float32{1, 2, 3})); err != nil {
		t.Fatal(err)
	}

	if err := s.Load([]byte("ply\nformat binary_little_endian 1.0\n")); err == nil {
		t.Fatal("truncated header must fail")
	}
	if s.Cloud() == nil || s.Cloud().Points != 1 {
		t.Error("failed load must leave previous dataset in place")
	}
}

func TestSceneLoadEmpty(t *testing.T) {
	s := NewScene(DefaultConfig(), golog.NewTestLogger(t))
	data := []byte("ply\nformat binary_little_endian 1.0\nelement vertex 0\nproperty float x\nend_header\n")
	err := s.Load(data)
	var ee *ply.EmptyResultError
	if !errors.As(err, &ee) {
		t.Fatalf("expected EmptyResultError, got: %v", err)
	}
}

func TestSceneLoadPCD(t *testing.T) {
	doc := `VERSION 0.7
FIELDS x y z
SIZE 4 4 4
TYPE F F F
COUNT 1 1 1
WIDTH 2
HEIGHT 1
POINTS 2
DATA ascii
0 0 0
1 1 1
`
	s := NewScene(DefaultConfig(), golog.NewTestLogger(t))
	if err := s.Load([]byte(doc)); err != nil {
		t.Fatal(err)
	}
	if s.Cloud().Points != 2 {
		t.Fatalf("Points expected: 2, got: %d", s.Cloud().Points)
	}
}

func TestSceneLoadDownsamples(t *testing.T) {
	config := DefaultConfig()
	config.DownsampleResolution = 1
	s := NewScene(config, golog.NewTestLogger(t))

	// Two tight pairs a meter apart collapse to two points.
	data := scenePLY(t, []float32{
		0, 0, 0,
		0.01, 0, 0,
		5, 5, 5,
		5.01, 5, 5,
	})
	if err := s.Load(data); err != nil {
		t.Fatal(err)
	}
	if s.Cloud().Points != 2 {
		t.Fatalf("downsampled Points expected: 2, got: %d", s.Cloud().Points)
	}
}

func TestSceneVisibleIndices(t *testing.T) {
	s := NewScene(DefaultConfig(), golog.NewTestLogger(t))

	projection := mat.Perspective(1.2, 1.0, 0.1, 100.0)
	view := mat.Translate(0, 0, -10)
	camera := mat.Vec3{0, 0, 10}
	if out := s.VisibleIndices(projection, view, camera); out != nil {
		t.Fatalf("empty scene expected no indices, got: %v", out)
	}

	if err := s.Load(scenePLY(t, []float32{0, 0, 0, 0.5, 0, 0, 0, 0.5, 0})); err != nil {
		t.Fatal(err)
	}
	out := s.VisibleIndices(projection, view, camera)
	if len(out) != 3 {
		t.Fatalf("expected all 3 points visible, got: %v", out)
	}
}
