package ply

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/edaniels/golog"
)

// Decode parses the header of a complete PLY buffer, detects its
// dialect and decodes the payload into the canonical point set.
// Corrupt face records are skipped with a warning; a corrupt vertex
// record aborts the whole load, since a skipped vertex would
// desynchronize downstream index offsets.
func Decode(data []byte, logger golog.Logger) (*PointCloud, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	payload := data[h.Length:]

	var pc *PointCloud
	switch DetectDialect(h.Text) {
	case DialectINRIAV1:
		pc, err = decodeINRIAV1(h, payload, logger)
	case DialectINRIAV2:
		pc, err = decodeINRIAV2(h, payload, logger)
	case DialectPlayCanvas:
		pc, err = decodePlayCanvas(h, payload)
	default:
		pc, err = decodeStandard(h, payload, logger)
	}
	if err != nil {
		return nil, err
	}
	if pc.Points == 0 || len(pc.Positions) == 0 {
		return nil, &EmptyResultError{}
	}
	pc.fillDefaults()
	return pc, nil
}

// readScalar decodes one scalar property value at off. The caller
// guarantees off+size is in bounds.
func readScalar(data []byte, o binary.ByteOrder, off int, typ string) float64 {
	switch typ {
	case "char":
		return float64(int8(data[off]))
	case "uchar":
		return float64(data[off])
	case "short":
		return float64(int16(o.Uint16(data[off:])))
	case "ushort":
		return float64(o.Uint16(data[off:]))
	case "int":
		return float64(int32(o.Uint32(data[off:])))
	case "uint":
		return float64(o.Uint32(data[off:]))
	case "float":
		return float64(math.Float32frombits(o.Uint32(data[off:])))
	case "double":
		return math.Float64frombits(o.Uint64(data[off:]))
	}
	return 0
}

// readIndex decodes one integer-typed value at off, for face indices,
// list counts and codebook references.
func readIndex(data []byte, o binary.ByteOrder, off int, typ string) int {
	switch typ {
	case "char":
		return int(int8(data[off]))
	case "uchar":
		return int(data[off])
	case "short":
		return int(int16(o.Uint16(data[off:])))
	case "ushort":
		return int(o.Uint16(data[off:]))
	case "int":
		return int(int32(o.Uint32(data[off:])))
	case "uint":
		return int(o.Uint32(data[off:]))
	}
	return 0
}

// checkBlock verifies that count fixed-stride records starting at off
// fit inside the payload. The division form stays exact for counts
// near the integer limit, where off+count*stride would wrap.
func checkBlock(payload []byte, off, count, stride int) error {
	if off >= 0 && off <= len(payload) &&
		(stride <= 0 || (len(payload)-off)/stride >= count) {
		return nil
	}
	return decodeErrorf(
		"payload too short: need %d records of %d bytes at offset %d, have %d bytes",
		count, stride, off, len(payload))
}

// integerType reports whether typ can carry a list count or an index.
func integerType(typ string) bool {
	switch typ {
	case "char", "uchar", "short", "ushort", "int", "uint":
		return true
	}
	return false
}

// tokenReader walks whitespace-separated fields of an ascii payload.
type tokenReader struct {
	fields []string
	pos    int
}

func newTokenReader(payload []byte) *tokenReader {
	return &tokenReader{fields: strings.Fields(string(payload))}
}

func (r *tokenReader) next() (string, error) {
	if r.pos >= len(r.fields) {
		return "", decodeErrorf("ascii payload exhausted after %d fields", r.pos)
	}
	t := r.fields[r.pos]
	r.pos++
	return t, nil
}

func (r *tokenReader) float() (float64, error) {
	t, err := r.next()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, decodeErrorf("invalid ascii value %q", t)
	}
	return v, nil
}

func (r *tokenReader) int() (int, error) {
	t, err := r.next()
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(t)
	if err != nil {
		return 0, decodeErrorf("invalid ascii index %q", t)
	}
	return v, nil
}
