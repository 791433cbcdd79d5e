package ply

import (
	"math"
)

// chunkVertexCount is the fixed number of vertices per compressed
// chunk in the PlayCanvas layout.
const chunkVertexCount = 256

// pcChunk is one chunk's decompression ranges. Position and scale
// ranges are required; color ranges are optional and default to the
// identity range.
type pcChunk struct {
	minPos, maxPos     [3]float64
	minScale, maxScale [3]float64
	minColor, maxColor [3]float64
	hasScale           bool
	hasColor           bool
}

// decodePlayCanvas reads the PlayCanvas chunk-compressed layout.
// The payload carries one chunk record per 256 vertices holding
// min/max decompression ranges, then fixed-stride vertex records with
// packed_position (11-10-11 bits), packed_rotation (2 bits selecting
// the largest quaternion component plus three 10-bit components),
// packed_scale (11-10-11, log range) and packed_color (four bytes).
func decodePlayCanvas(h *Header, payload []byte) (*PointCloud, error) {
	if h.Format == Ascii {
		return nil, decodeErrorf("playcanvas dialect requires a binary payload")
	}
	v := h.Element("vertex")
	if v == nil || v.Count == 0 {
		return &PointCloud{}, nil
	}
	ce := h.Element("chunk")
	if ce == nil {
		return nil, decodeErrorf("chunk element missing")
	}
	needChunks := (v.Count + chunkVertexCount - 1) / chunkVertexCount
	if ce.Count < needChunks {
		return nil, decodeErrorf("%d chunks declared, %d vertices need %d", ce.Count, v.Count, needChunks)
	}

	chunks, err := decodeChunks(h, payload, ce)
	if err != nil {
		return nil, err
	}

	pp, okP := v.Property("packed_position")
	if !okP {
		return nil, decodeErrorf("vertex element missing packed_position")
	}
	pr, hasRot := v.Property("packed_rotation")
	ps, hasScale := v.Property("packed_scale")
	pcl, hasColor := v.Property("packed_color")

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
	if hasRot {
		pc.Rotations = make([]float32, 4*v.Count)
	}
	if hasScale {
		pc.Scales = make([]float32, 3*v.Count)
	}
	if hasColor {
		pc.Colors = make([]float32, 4*v.Count)
	}
	o := h.ByteOrder()
	for i := 0; i < v.Count; i++ {
		chunkIndex := i / chunkVertexCount
		ch := &chunks[chunkIndex]
		base := off + i*v.Stride

		bits := o.Uint32(payload[base+pp.Offset:])
		x, y, z := unpack111011(bits)
		pc.Positions[3*i] = float32(lerp(ch.minPos[0], ch.maxPos[0], x))
		pc.Positions[3*i+1] = float32(lerp(ch.minPos[1], ch.maxPos[1], y))
		pc.Positions[3*i+2] = float32(lerp(ch.minPos[2], ch.maxPos[2], z))

		if hasScale {
			if !ch.hasScale {
				return nil, decodeErrorf("chunk %d missing scale ranges", chunkIndex)
			}
			bits := o.Uint32(payload[base+ps.Offset:])
			sx, sy, sz := unpack111011(bits)
			pc.Scales[3*i] = float32(math.Exp(lerp(ch.minScale[0], ch.maxScale[0], sx)))
			pc.Scales[3*i+1] = float32(math.Exp(lerp(ch.minScale[1], ch.maxScale[1], sy)))
			pc.Scales[3*i+2] = float32(math.Exp(lerp(ch.minScale[2], ch.maxScale[2], sz)))
		}
		if hasRot {
			unpackRotation(pc.Rotations[4*i:4*i+4], o.Uint32(payload[base+pr.Offset:]))
		}
		if hasColor {
			bits := o.Uint32(payload[base+pcl.Offset:])
			r := float64(bits>>24&0xff) / 255
			g := float64(bits>>16&0xff) / 255
			b := float64(bits>>8&0xff) / 255
			a := float64(bits&0xff) / 255
			if ch.hasColor {
				r = lerp(ch.minColor[0], ch.maxColor[0], r)
				g = lerp(ch.minColor[1], ch.maxColor[1], g)
				b = lerp(ch.minColor[2], ch.maxColor[2], b)
			}
			pc.Colors[4*i] = float32(r)
			pc.Colors[4*i+1] = float32(g)
			pc.Colors[4*i+2] = float32(b)
			pc.Colors[4*i+3] = float32(a)
		}
	}
	return pc, nil
}

func decodeChunks(h *Header, payload []byte, ce *Element) ([]pcChunk, error) {
	off, err := h.ElementOffset("chunk")
	if err != nil {
		return nil, err
	}
	if err := checkBlock(payload, off, ce.Count, ce.Stride); err != nil {
		return nil, err
	}

	posNames := [6]string{"min_x", "min_y", "min_z", "max_x", "max_y", "max_z"}
	var posProps [6]Property
	for i, name := range posNames {
		p, ok := ce.Property(name)
		if !ok {
			return nil, decodeErrorf("chunk element missing %s", name)
		}
		posProps[i] = p
	}

	scaleNames := [6]string{"min_scale_x", "min_scale_y", "min_scale_z", "max_scale_x", "max_scale_y", "max_scale_z"}
	var scaleProps [6]Property
	hasScale := true
	for i, name := range scaleNames {
		p, ok := ce.Property(name)
		if !ok {
			hasScale = false
			break
		}
		scaleProps[i] = p
	}

	colorNames := [6]string{"min_r", "min_g", "min_b", "max_r", "max_g", "max_b"}
	var colorProps [6]Property
	hasColor := true
	for i, name := range colorNames {
		p, ok := ce.Property(name)
		if !ok {
			hasColor = false
			break
		}
		colorProps[i] = p
	}

	o := h.ByteOrder()
	chunks := make([]pcChunk, ce.Count)
	for i := range chunks {
		base := off + i*ce.Stride
		ch := &chunks[i]
		ch.hasScale = hasScale
		ch.hasColor = hasColor
		for j := 0; j < 3; j++ {
			ch.minPos[j] = readScalar(payload, o, base+posProps[j].Offset, posProps[j].Type)
			ch.maxPos[j] = readScalar(payload, o, base+posProps[j+3].Offset, posProps[j+3].Type)
			if hasScale {
				ch.minScale[j] = readScalar(payload, o, base+scaleProps[j].Offset, scaleProps[j].Type)
				ch.maxScale[j] = readScalar(payload, o, base+scaleProps[j+3].Offset, scaleProps[j+3].Type)
			}
			if hasColor {
				ch.minColor[j] = readScalar(payload, o, base+colorProps[j].Offset, colorProps[j].Type)
				ch.maxColor[j] = readScalar(payload, o, base+colorProps[j+3].Offset, colorProps[j+3].Type)
			}
		}
	}
	return chunks, nil
}

func lerp(min, max, t float64) float64 {
	return min + (max-min)*t
}

// unpack111011 splits a packed 11-10-11 bit triple into 0-1 fractions.
func unpack111011(bits uint32) (x, y, z float64) {
	x = float64(bits>>21&0x7ff) / 2047
	y = float64(bits>>11&0x3ff) / 1023
	z = float64(bits&0x7ff) / 2047
	return
}

// unpackRotation rebuilds a unit quaternion from a 2+10+10+10 bit
// field: the top two bits name the omitted largest component, the
// three stored components are mapped to [-1/sqrt2, 1/sqrt2].
func unpackRotation(out []float32, bits uint32) {
	const sqrt2 = math.Sqrt2
	largest := int(bits >> 30)
	var c [3]float64
	for i := 0; i < 3; i++ {
		raw := bits >> (20 - 10*i) & 0x3ff
		c[i] = (float64(raw)/1023 - 0.5) * sqrt2
	}
	rest := math.Sqrt(math.Max(0, 1-c[0]*c[0]-c[1]*c[1]-c[2]*c[2]))

	var q [4]float64
	j := 0
	for i := 0; i < 4; i++ {
		if i == largest {
			q[i] = rest
			continue
		}
		q[i] = c[j]
		j++
	}
	normalizeQuat(out, q[0], q[1], q[2], q[3])
}
