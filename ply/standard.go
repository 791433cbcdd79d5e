package ply

import (
	"github.com/edaniels/golog"
)

// decodeStandard reads a plain PLY vertex (and optional face) payload.
// Recognized vertex properties are x/y/z, nx/ny/nz and
// red/green/blue/alpha; everything else is skipped at its declared
// offset. Faces are count-prefixed index lists, fan-triangulated.
func decodeStandard(h *Header, payload []byte, logger golog.Logger) (*PointCloud, error) {
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

	nx, okNX := v.Property("nx")
	ny, okNY := v.Property("ny")
	nz, okNZ := v.Property("nz")
	hasNormal := okNX && okNY && okNZ

	pr, okR := v.Property("red")
	pg, okG := v.Property("green")
	pb, okB := v.Property("blue")
	pa, hasAlpha := v.Property("alpha")
	hasColor := okR && okG && okB

	// The declared count is untrusted until it has been checked
	// against the payload; nothing is allocated from it before that.
	if h.Format == Ascii {
		r := newTokenReader(payload)
		if len(r.fields)/len(v.Properties) < v.Count {
			return nil, decodeErrorf(
				"ascii payload has %d fields for %d declared vertices",
				len(r.fields), v.Count)
		}
		pc := newStandardCloud(v.Count, hasNormal, hasColor)
		if err := decodeStandardAscii(h, r, pc, logger); err != nil {
			return nil, err
		}
		return pc, nil
	}

	off, err := h.ElementOffset("vertex")
	if err != nil {
		return nil, err
	}
	if err := checkBlock(payload, off, v.Count, v.Stride); err != nil {
		return nil, err
	}

	pc := newStandardCloud(v.Count, hasNormal, hasColor)
	o := h.ByteOrder()
	for i := 0; i < v.Count; i++ {
		base := off + i*v.Stride
		pc.Positions[3*i] = float32(readScalar(payload, o, base+px.Offset, px.Type))
		pc.Positions[3*i+1] = float32(readScalar(payload, o, base+py.Offset, py.Type))
		pc.Positions[3*i+2] = float32(readScalar(payload, o, base+pz.Offset, pz.Type))
		if hasNormal {
			pc.Normals[3*i] = float32(readScalar(payload, o, base+nx.Offset, nx.Type))
			pc.Normals[3*i+1] = float32(readScalar(payload, o, base+ny.Offset, ny.Type))
			pc.Normals[3*i+2] = float32(readScalar(payload, o, base+nz.Offset, nz.Type))
		}
		if hasColor {
			pc.Colors[4*i] = colorValue(pr, readScalar(payload, o, base+pr.Offset, pr.Type))
			pc.Colors[4*i+1] = colorValue(pg, readScalar(payload, o, base+pg.Offset, pg.Type))
			pc.Colors[4*i+2] = colorValue(pb, readScalar(payload, o, base+pb.Offset, pb.Type))
			if hasAlpha {
				pc.Colors[4*i+3] = colorValue(pa, readScalar(payload, o, base+pa.Offset, pa.Type))
			} else {
				pc.Colors[4*i+3] = 1
			}
		}
	}

	if f := h.Element("face"); f != nil && f.Count > 0 {
		if err := decodeFacesBinary(h, payload, f, pc, logger); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

func newStandardCloud(count int, hasNormal, hasColor bool) *PointCloud {
	pc := &PointCloud{
		Points:    count,
		Positions: make([]float32, 3*count),
	}
	if hasNormal {
		pc.Normals = make([]float32, 3*count)
	}
	if hasColor {
		pc.Colors = make([]float32, 4*count)
	}
	return pc
}

// colorValue normalizes a color channel: integer-typed channels are
// 0-255, float channels are already 0-1.
func colorValue(p Property, raw float64) float32 {
	if p.Type == "float" || p.Type == "double" {
		return float32(raw)
	}
	return float32(raw / 255)
}

func listProperty(e *Element) (Property, bool) {
	for _, p := range e.Properties {
		if p.List {
			return p, true
		}
	}
	return Property{}, false
}

func decodeFacesBinary(h *Header, payload []byte, f *Element, pc *PointCloud, logger golog.Logger) error {
	lp, ok := listProperty(f)
	if !ok {
		return nil
	}
	if !integerType(lp.CountType) || !integerType(lp.ElemType) {
		return decodeErrorf("face list %s needs integer count and index types", lp.Name)
	}
	off, err := h.ElementOffset("face")
	if err != nil {
		return err
	}
	o := h.ByteOrder()
	countSize := propertySizes[lp.CountType]
	elemSize := propertySizes[lp.ElemType]

	pos := off
	idx := make([]int, 0, 8)
	for i := 0; i < f.Count; i++ {
		for _, p := range f.Properties {
			if !p.List {
				if pos+p.Size > len(payload) {
					return decodeErrorf("face %d truncated", i)
				}
				pos += p.Size
				continue
			}
			if pos+countSize > len(payload) {
				return decodeErrorf("face %d truncated", i)
			}
			cnt := readIndex(payload, o, pos, lp.CountType)
			pos += countSize
			if cnt < 0 || pos+cnt*elemSize > len(payload) {
				return decodeErrorf("face %d index list exceeds payload", i)
			}
			idx = idx[:0]
			valid := true
			for j := 0; j < cnt; j++ {
				k := readIndex(payload, o, pos, lp.ElemType)
				pos += elemSize
				if k < 0 || k >= pc.Points {
					valid = false
				}
				idx = append(idx, k)
			}
			if cnt < 3 {
				logger.Warnf("skipping face %d with %d vertices", i, cnt)
				continue
			}
			if !valid {
				logger.Warnf("skipping face %d with out-of-range vertex index", i)
				continue
			}
			appendTriangleFan(pc, idx)
		}
	}
	return nil
}

// appendTriangleFan triangulates a convex polygon [i0..ik] as
// (i0, ij, ij+1), producing n-2 triangles for an n-gon.
func appendTriangleFan(pc *PointCloud, idx []int) {
	for j := 1; j < len(idx)-1; j++ {
		pc.Faces = append(pc.Faces,
			uint32(idx[0]), uint32(idx[j]), uint32(idx[j+1]))
	}
}

func decodeStandardAscii(h *Header, r *tokenReader, pc *PointCloud, logger golog.Logger) error {
	v := h.Element("vertex")
	for i := 0; i < v.Count; i++ {
		for _, p := range v.Properties {
			if p.List {
				cnt, err := r.int()
				if err != nil {
					return err
				}
				for j := 0; j < cnt; j++ {
					if _, err := r.next(); err != nil {
						return err
					}
				}
				continue
			}
			raw, err := r.float()
			if err != nil {
				return err
			}
			switch p.Name {
			case "x":
				pc.Positions[3*i] = float32(raw)
			case "y":
				pc.Positions[3*i+1] = float32(raw)
			case "z":
				pc.Positions[3*i+2] = float32(raw)
			case "nx", "ny", "nz":
				if pc.Normals != nil {
					pc.Normals[3*i+normalAxis(p.Name)] = float32(raw)
				}
			case "red":
				if pc.Colors != nil {
					pc.Colors[4*i] = colorValue(p, raw)
				}
			case "green":
				if pc.Colors != nil {
					pc.Colors[4*i+1] = colorValue(p, raw)
				}
			case "blue":
				if pc.Colors != nil {
					pc.Colors[4*i+2] = colorValue(p, raw)
				}
			case "alpha":
				if pc.Colors != nil {
					pc.Colors[4*i+3] = colorValue(p, raw)
				}
			}
		}
		if pc.Colors != nil {
			if _, hasAlpha := v.Property("alpha"); !hasAlpha {
				pc.Colors[4*i+3] = 1
			}
		}
	}

	f := h.Element("face")
	if f == nil || f.Count == 0 {
		return nil
	}
	if _, ok := listProperty(f); !ok {
		return nil
	}
	idx := make([]int, 0, 8)
	for i := 0; i < f.Count; i++ {
		for _, p := range f.Properties {
			if !p.List {
				if _, err := r.next(); err != nil {
					return err
				}
				continue
			}
			cnt, err := r.int()
			if err != nil {
				return err
			}
			idx = idx[:0]
			valid := true
			for j := 0; j < cnt; j++ {
				k, err := r.int()
				if err != nil {
					return err
				}
				if k < 0 || k >= pc.Points {
					valid = false
				}
				idx = append(idx, k)
			}
			if cnt < 3 {
				logger.Warnf("skipping face %d with %d vertices", i, cnt)
				continue
			}
			if !valid {
				logger.Warnf("skipping face %d with out-of-range vertex index", i)
				continue
			}
			appendTriangleFan(pc, idx)
		}
	}
	return nil
}

func normalAxis(name string) int {
	switch name {
	case "ny":
		return 1
	case "nz":
		return 2
	}
	return 0
}
