package ply

import (
	"fmt"
	"math"

	"github.com/edaniels/golog"
)

// shC0 is the degree-0 spherical-harmonic basis coefficient used to
// reconstruct base color from the DC band.
const shC0 = 0.28209479177387814

// maxSHRest caps the per-vertex directional coefficient count.
const maxSHRest = 45

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// shColor maps a DC spherical-harmonic coefficient to a 0-1 channel.
func shColor(c float64) float32 {
	v := 0.5 + shC0*c
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return float32(v)
}

// normalizeQuat writes the unit quaternion (w,x,y,z) into out.
// A zero-length input degrades to identity.
func normalizeQuat(out []float32, w, x, y, z float64) {
	n := math.Sqrt(w*w + x*x + y*y + z*z)
	if n == 0 {
		out[0], out[1], out[2], out[3] = 1, 0, 0, 0
		return
	}
	out[0] = float32(w / n)
	out[1] = float32(x / n)
	out[2] = float32(y / n)
	out[3] = float32(z / n)
}

// decodeINRIAV1 reads the uncompressed INRIA Gaussian-splat layout:
// per-vertex position, log-encoded anisotropic scale, rotation
// quaternion, DC spherical-harmonic color, logistic opacity and up to
// 45 higher-order coefficients.
func decodeINRIAV1(h *Header, payload []byte, logger golog.Logger) (*PointCloud, error) {
	if h.Format == Ascii {
		return nil, decodeErrorf("inria_v1 dialect requires a binary payload")
	}
	v := h.Element("vertex")
	if v == nil || v.Count == 0 {
		return &PointCloud{}, nil
	}

	px, okX := v.Property("x")
	py, okY := v.Property("y")
	pz, okZ := v.Property("z")
	if !okX || !okY || !okZ {
		return nil, decodeErrorf("vertex element missing x/y/z properties")
	}

	// Check the declared count against the payload before any
	// count-derived allocation.
	off, err := h.ElementOffset("vertex")
	if err != nil {
		return nil, err
	}
	if err := checkBlock(payload, off, v.Count, v.Stride); err != nil {
		return nil, err
	}

	pc := &PointCloud{
		Points:    v.Count,
		Positions: make([]float32, 3*v.Count),
	}

	dc0, okDC0 := v.Property("f_dc_0")
	dc1, okDC1 := v.Property("f_dc_1")
	dc2, okDC2 := v.Property("f_dc_2")
	op, hasOpacity := v.Property("opacity")
	hasColor := okDC0 && okDC1 && okDC2
	if hasColor {
		pc.Colors = make([]float32, 4*v.Count)
	}

	sc := make([]Property, 0, 3)
	for i := 0; i < 3; i++ {
		p, ok := v.Property(fmt.Sprintf("scale_%d", i))
		if !ok {
			break
		}
		sc = append(sc, p)
	}
	hasScale := len(sc) == 3
	if hasScale {
		pc.Scales = make([]float32, 3*v.Count)
	}

	rot := make([]Property, 0, 4)
	for i := 0; i < 4; i++ {
		p, ok := v.Property(fmt.Sprintf("rot_%d", i))
		if !ok {
			break
		}
		rot = append(rot, p)
	}
	hasRot := len(rot) == 4
	if hasRot {
		pc.Rotations = make([]float32, 4*v.Count)
	}

	var rest []Property
	for i := 0; i < maxSHRest; i++ {
		p, ok := v.Property(fmt.Sprintf("f_rest_%d", i))
		if !ok {
			break
		}
		rest = append(rest, p)
	}
	if len(rest) > 0 {
		pc.SHPerPoint = len(rest)
		pc.SH = make([]float32, len(rest)*v.Count)
	}

	o := h.ByteOrder()
	for i := 0; i < v.Count; i++ {
		base := off + i*v.Stride
		pc.Positions[3*i] = float32(readScalar(payload, o, base+px.Offset, px.Type))
		pc.Positions[3*i+1] = float32(readScalar(payload, o, base+py.Offset, py.Type))
		pc.Positions[3*i+2] = float32(readScalar(payload, o, base+pz.Offset, pz.Type))
		if hasColor {
			pc.Colors[4*i] = shColor(readScalar(payload, o, base+dc0.Offset, dc0.Type))
			pc.Colors[4*i+1] = shColor(readScalar(payload, o, base+dc1.Offset, dc1.Type))
			pc.Colors[4*i+2] = shColor(readScalar(payload, o, base+dc2.Offset, dc2.Type))
			if hasOpacity {
				pc.Colors[4*i+3] = float32(sigmoid(readScalar(payload, o, base+op.Offset, op.Type)))
			} else {
				pc.Colors[4*i+3] = 1
			}
		}
		if hasScale {
			for j, p := range sc {
				pc.Scales[3*i+j] = float32(math.Exp(readScalar(payload, o, base+p.Offset, p.Type)))
			}
		}
		if hasRot {
			normalizeQuat(pc.Rotations[4*i:4*i+4],
				readScalar(payload, o, base+rot[0].Offset, rot[0].Type),
				readScalar(payload, o, base+rot[1].Offset, rot[1].Type),
				readScalar(payload, o, base+rot[2].Offset, rot[2].Type),
				readScalar(payload, o, base+rot[3].Offset, rot[3].Type))
		}
		for j, p := range rest {
			pc.SH[pc.SHPerPoint*i+j] = float32(readScalar(payload, o, base+p.Offset, p.Type))
		}
	}

	if f := h.Element("face"); f != nil && f.Count > 0 {
		if err := decodeFacesBinary(h, payload, f, pc, logger); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

// codebook is the decoded INRIA V2 lookup table. It lives only for the
// duration of a single decode.
type codebook struct {
	colors    []float32 // 4 per entry
	scales    []float32 // 3 per entry
	rotations []float32 // 4 per entry
}

// decodeINRIAV2 reads the vector-quantized INRIA layout: a
// codebook_centers element holding decoded attribute entries, then
// vertex records carrying a position and small integer indices into
// the codebook.
func decodeINRIAV2(h *Header, payload []byte, logger golog.Logger) (*PointCloud, error) {
	if h.Format == Ascii {
		return nil, decodeErrorf("inria_v2 dialect requires a binary payload")
	}
	v := h.Element("vertex")
	cbe := h.Element("codebook_centers")
	if v == nil || v.Count == 0 {
		return &PointCloud{}, nil
	}
	if cbe == nil || cbe.Count == 0 {
		return nil, decodeErrorf("codebook_centers element missing or empty")
	}

	px, okX := v.Property("x")
	py, okY := v.Property("y")
	pz, okZ := v.Property("z")
	if !okX || !okY || !okZ {
		return nil, decodeErrorf("vertex element missing x/y/z properties")
	}

	// Check the declared count against the payload before any
	// count-derived allocation.
	off, err := h.ElementOffset("vertex")
	if err != nil {
		return nil, err
	}
	if err := checkBlock(payload, off, v.Count, v.Stride); err != nil {
		return nil, err
	}

	cb, err := decodeCodebook(h, payload, cbe)
	if err != nil {
		return nil, err
	}

	ci, hasColorIdx := v.Property("color_index")
	si, hasScaleIdx := v.Property("scale_index")
	ri, hasRotIdx := v.Property("rot_index")
	for _, p := range []Property{ci, si, ri} {
		if p.Name != "" && !integerType(p.Type) {
			return nil, decodeErrorf("%s needs an integer type, got %q", p.Name, p.Type)
		}
	}

	pc := &PointCloud{
		Points:    v.Count,
		Positions: make([]float32, 3*v.Count),
	}
	if hasColorIdx && cb.colors != nil {
		pc.Colors = make([]float32, 4*v.Count)
	}
	if hasScaleIdx && cb.scales != nil {
		pc.Scales = make([]float32, 3*v.Count)
	}
	if hasRotIdx && cb.rotations != nil {
		pc.Rotations = make([]float32, 4*v.Count)
	}
	o := h.ByteOrder()
	for i := 0; i < v.Count; i++ {
		base := off + i*v.Stride
		pc.Positions[3*i] = float32(readScalar(payload, o, base+px.Offset, px.Type))
		pc.Positions[3*i+1] = float32(readScalar(payload, o, base+py.Offset, py.Type))
		pc.Positions[3*i+2] = float32(readScalar(payload, o, base+pz.Offset, pz.Type))
		if pc.Colors != nil {
			k := readIndex(payload, o, base+ci.Offset, ci.Type)
			if k < 0 || k >= cbe.Count {
				return nil, decodeErrorf("vertex %d color index %d outside codebook of %d", i, k, cbe.Count)
			}
			copy(pc.Colors[4*i:4*i+4], cb.colors[4*k:4*k+4])
		}
		if pc.Scales != nil {
			k := readIndex(payload, o, base+si.Offset, si.Type)
			if k < 0 || k >= cbe.Count {
				return nil, decodeErrorf("vertex %d scale index %d outside codebook of %d", i, k, cbe.Count)
			}
			copy(pc.Scales[3*i:3*i+3], cb.scales[3*k:3*k+3])
		}
		if pc.Rotations != nil {
			k := readIndex(payload, o, base+ri.Offset, ri.Type)
			if k < 0 || k >= cbe.Count {
				return nil, decodeErrorf("vertex %d rotation index %d outside codebook of %d", i, k, cbe.Count)
			}
			copy(pc.Rotations[4*i:4*i+4], cb.rotations[4*k:4*k+4])
		}
	}

	if f := h.Element("face"); f != nil && f.Count > 0 {
		if err := decodeFacesBinary(h, payload, f, pc, logger); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

func decodeCodebook(h *Header, payload []byte, cbe *Element) (*codebook, error) {
	off, err := h.ElementOffset("codebook_centers")
	if err != nil {
		return nil, err
	}
	if err := checkBlock(payload, off, cbe.Count, cbe.Stride); err != nil {
		return nil, err
	}

	dc0, okDC0 := cbe.Property("f_dc_0")
	dc1, okDC1 := cbe.Property("f_dc_1")
	dc2, okDC2 := cbe.Property("f_dc_2")
	op, okOp := cbe.Property("opacity")
	hasColor := okDC0 && okDC1 && okDC2 && okOp

	s0, okS0 := cbe.Property("scale_0")
	s1, okS1 := cbe.Property("scale_1")
	s2, okS2 := cbe.Property("scale_2")
	hasScale := okS0 && okS1 && okS2

	re, okRe := cbe.Property("rot_re")
	im0, okIm0 := cbe.Property("rot_im_0")
	im1, okIm1 := cbe.Property("rot_im_1")
	im2, okIm2 := cbe.Property("rot_im_2")
	hasRot := okRe && okIm0 && okIm1 && okIm2

	cb := &codebook{}
	if hasColor {
		cb.colors = make([]float32, 4*cbe.Count)
	}
	if hasScale {
		cb.scales = make([]float32, 3*cbe.Count)
	}
	if hasRot {
		cb.rotations = make([]float32, 4*cbe.Count)
	}
	o := h.ByteOrder()
	for i := 0; i < cbe.Count; i++ {
		base := off + i*cbe.Stride
		if hasColor {
			cb.colors[4*i] = shColor(readScalar(payload, o, base+dc0.Offset, dc0.Type))
			cb.colors[4*i+1] = shColor(readScalar(payload, o, base+dc1.Offset, dc1.Type))
			cb.colors[4*i+2] = shColor(readScalar(payload, o, base+dc2.Offset, dc2.Type))
			cb.colors[4*i+3] = float32(sigmoid(readScalar(payload, o, base+op.Offset, op.Type)))
		}
		if hasScale {
			cb.scales[3*i] = float32(math.Exp(readScalar(payload, o, base+s0.Offset, s0.Type)))
			cb.scales[3*i+1] = float32(math.Exp(readScalar(payload, o, base+s1.Offset, s1.Type)))
			cb.scales[3*i+2] = float32(math.Exp(readScalar(payload, o, base+s2.Offset, s2.Type)))
		}
		if hasRot {
			normalizeQuat(cb.rotations[4*i:4*i+4],
				readScalar(payload, o, base+re.Offset, re.Type),
				readScalar(payload, o, base+im0.Offset, im0.Type),
				readScalar(payload, o, base+im1.Offset, im1.Type),
				readScalar(payload, o, base+im2.Offset, im2.Type))
		}
	}
	return cb, nil
}
