// Package pcd reads PCD point-cloud files into the same canonical
// point set as the PLY decoders, so the viewer can load either format.
package pcd

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	lzf "github.com/zhuyie/golzf"

	"github.com/splatvis/splatview/ply"
)

type Format int

const (
	Ascii Format = iota
	Binary
	BinaryCompressed
)

type header struct {
	version float32
	fields  []string
	size    []int
	typ     []string
	count   []int
	width   int
	height  int
	points  int
	format  Format
}

func (h *header) stride() int {
	var stride int
	for i := range h.fields {
		stride += h.count[i] * h.size[i]
	}
	return stride
}

func (h *header) offset(name string) (int, int, bool) {
	off := 0
	for i, fn := range h.fields {
		if fn == name {
			return off, i, true
		}
		off += h.size[i] * h.count[i]
	}
	return 0, 0, false
}

// Parse reads a complete PCD document in ascii, binary or
// binary_compressed form.
func Parse(r io.Reader) (*ply.PointCloud, error) {
	rb := bufio.NewReader(r)
	h := &header{}

L_HEADER:
	for {
		line, _, err := rb.ReadLine()
		if err != nil {
			return nil, err
		}
		args := strings.Fields(string(line))
		if len(args) == 0 || strings.HasPrefix(args[0], "#") {
			continue
		}
		if len(args) < 2 {
			return nil, errors.New("pcd: header field must have value")
		}
		switch args[0] {
		case "VERSION":
			f, err := strconv.ParseFloat(args[1], 32)
			if err != nil {
				return nil, err
			}
			h.version = float32(f)
		case "FIELDS":
			h.fields = args[1:]
		case "SIZE":
			h.size = make([]int, len(args)-1)
			for i, s := range args[1:] {
				if h.size[i], err = strconv.Atoi(s); err != nil {
					return nil, err
				}
			}
		case "TYPE":
			h.typ = args[1:]
		case "COUNT":
			h.count = make([]int, len(args)-1)
			for i, s := range args[1:] {
				if h.count[i], err = strconv.Atoi(s); err != nil {
					return nil, err
				}
			}
		case "WIDTH":
			if h.width, err = strconv.Atoi(args[1]); err != nil {
				return nil, err
			}
		case "HEIGHT":
			if h.height, err = strconv.Atoi(args[1]); err != nil {
				return nil, err
			}
		case "POINTS":
			if h.points, err = strconv.Atoi(args[1]); err != nil {
				return nil, err
			}
		case "DATA":
			switch args[1] {
			case "ascii":
				h.format = Ascii
			case "binary":
				h.format = Binary
			case "binary_compressed":
				h.format = BinaryCompressed
			default:
				return nil, errors.New("pcd: unknown data format")
			}
			break L_HEADER
		}
	}
	if len(h.fields) != len(h.size) {
		return nil, errors.New("pcd: SIZE entry count mismatch")
	}
	if len(h.fields) != len(h.typ) {
		return nil, errors.New("pcd: TYPE entry count mismatch")
	}
	if len(h.fields) != len(h.count) {
		return nil, errors.New("pcd: COUNT entry count mismatch")
	}
	if h.points == 0 {
		h.points = h.width * h.height
	}
	if h.points <= 0 {
		return nil, errors.New("pcd: no points declared")
	}

	if h.format == Ascii {
		return parseAscii(rb, h)
	}

	data, err := readPayload(rb, h)
	if err != nil {
		return nil, err
	}
	return cloudFromBinary(h, data)
}

// readPayload returns the payload as array-of-structs records,
// decompressing and de-transposing binary_compressed data. Declared
// sizes and counts are untrusted; the division form of the length
// checks stays exact for counts that would overflow a product.
func readPayload(rb *bufio.Reader, h *header) ([]byte, error) {
	stride := h.stride()
	if stride <= 0 {
		return nil, errors.New("pcd: zero-width records")
	}

	if h.format == Binary {
		b, err := io.ReadAll(rb)
		if err != nil {
			return nil, err
		}
		if len(b)/stride < h.points {
			return nil, errors.New("pcd: payload shorter than declared points")
		}
		return b, nil
	}

	var nCompressed, nUncompressed int32
	if err := binary.Read(rb, binary.LittleEndian, &nCompressed); err != nil {
		return nil, err
	}
	if err := binary.Read(rb, binary.LittleEndian, &nUncompressed); err != nil {
		return nil, err
	}
	if nCompressed < 0 || nUncompressed < 0 {
		return nil, errors.New("pcd: negative compressed payload size")
	}
	b, err := io.ReadAll(rb)
	if err != nil {
		return nil, err
	}
	if int(nCompressed) > len(b) {
		return nil, errors.New("pcd: compressed payload truncated")
	}
	dec := make([]byte, nUncompressed)
	n, err := lzf.Decompress(b[:nCompressed], dec)
	if err != nil {
		return nil, err
	}
	if int(nUncompressed) != n {
		return nil, errors.New("pcd: wrong uncompressed size")
	}
	if n/stride < h.points {
		return nil, errors.New("pcd: uncompressed payload shorter than declared points")
	}

	// Compressed payloads are stored field-major; regroup per point.
	head := make([]int, len(h.fields))
	offset := make([]int, len(h.fields))
	var pos, off int
	for i := range h.fields {
		head[i] = pos
		offset[i] = off
		pos += h.size[i] * h.count[i] * h.points
		off += h.size[i] * h.count[i]
	}
	data := make([]byte, n)
	for p := 0; p < h.points; p++ {
		for i := range head {
			size := h.size[i] * h.count[i]
			to := p*stride + offset[i]
			from := head[i] + p*size
			copy(data[to:to+size], dec[from:from+size])
		}
	}
	return data, nil
}

func cloudFromBinary(h *header, data []byte) (*ply.PointCloud, error) {
	xOff, xi, okX := h.offset("x")
	yOff, _, okY := h.offset("y")
	zOff, _, okZ := h.offset("z")
	if !okX || !okY || !okZ {
		return nil, errors.New("pcd: missing x/y/z fields")
	}
	if h.size[xi] != 4 || h.typ[xi] != "F" {
		return nil, errors.New("pcd: x/y/z must be 4-byte floats")
	}

	stride := h.stride()
	pc := &ply.PointCloud{
		Points:    h.points,
		Positions: make([]float32, 3*h.points),
	}

	if stride%4 == 0 && xOff%4 == 0 && yOff == xOff+4 && zOff == yOff+4 {
		// Aligned consecutive xyz; read through a float32 view.
		f := byteSliceAsFloat32Slice(data)
		s4 := stride / 4
		for i := 0; i < h.points; i++ {
			copy(pc.Positions[3*i:3*i+3], f[i*s4+xOff/4:i*s4+xOff/4+3])
		}
	} else {
		for i := 0; i < h.points; i++ {
			base := i * stride
			pc.Positions[3*i] = math.Float32frombits(binary.LittleEndian.Uint32(data[base+xOff:]))
			pc.Positions[3*i+1] = math.Float32frombits(binary.LittleEndian.Uint32(data[base+yOff:]))
			pc.Positions[3*i+2] = math.Float32frombits(binary.LittleEndian.Uint32(data[base+zOff:]))
		}
	}

	if rgbOff, ri, ok := h.offset("rgb"); ok && h.size[ri] == 4 {
		pc.Colors = make([]float32, 4*h.points)
		for i := 0; i < h.points; i++ {
			c := binary.LittleEndian.Uint32(data[i*stride+rgbOff:])
			setPackedColor(pc.Colors[4*i:4*i+4], c)
		}
	}
	return pc, nil
}

func parseAscii(rb *bufio.Reader, h *header) (*ply.PointCloud, error) {
	_, xi, okX := h.offset("x")
	_, yi, okY := h.offset("y")
	_, zi, okZ := h.offset("z")
	if !okX || !okY || !okZ {
		return nil, errors.New("pcd: missing x/y/z fields")
	}
	_, rgbI, hasRGB := h.offset("rgb")

	body, err := io.ReadAll(rb)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(string(body))
	var perRecord int
	for i := range h.fields {
		perRecord += h.count[i]
	}
	if perRecord <= 0 || len(fields)/perRecord < h.points {
		return nil, errors.New("pcd: ascii payload shorter than declared points")
	}

	pc := &ply.PointCloud{
		Points:    h.points,
		Positions: make([]float32, 3*h.points),
	}
	if hasRGB {
		pc.Colors = make([]float32, 4*h.points)
	}
	for i := 0; i < h.points; i++ {
		tokens := fields[i*perRecord : (i+1)*perRecord]
		col := 0
		for j := range h.fields {
			tok := tokens[col]
			col += h.count[j]
			switch j {
			case xi, yi, zi:
				v, err := strconv.ParseFloat(tok, 32)
				if err != nil {
					return nil, err
				}
				switch j {
				case xi:
					pc.Positions[3*i] = float32(v)
				case yi:
					pc.Positions[3*i+1] = float32(v)
				case zi:
					pc.Positions[3*i+2] = float32(v)
				}
			default:
				if hasRGB && j == rgbI {
					c, err := asciiPackedColor(tok)
					if err != nil {
						return nil, err
					}
					setPackedColor(pc.Colors[4*i:4*i+4], c)
				}
			}
		}
	}
	return pc, nil
}

// setPackedColor expands the PCL packed 0x00RRGGBB convention.
func setPackedColor(out []float32, c uint32) {
	out[0] = float32(c>>16&0xff) / 255
	out[1] = float32(c>>8&0xff) / 255
	out[2] = float32(c&0xff) / 255
	out[3] = 1
}

// asciiPackedColor accepts the packed color as either an integer or a
// float whose bit pattern carries the packed bytes.
func asciiPackedColor(tok string) (uint32, error) {
	if v, err := strconv.ParseUint(tok, 10, 32); err == nil {
		return uint32(v), nil
	}
	f, err := strconv.ParseFloat(tok, 32)
	if err != nil {
		return 0, err
	}
	return math.Float32bits(float32(f)), nil
}
