// Package ply reads point-cloud and Gaussian-splat scenes stored in the
// PLY container format. Several incompatible binary dialects share the
// same ASCII header syntax; this package parses the header, detects the
// dialect and decodes the payload into one canonical point set.
package ply

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatError reports a malformed or unterminated header.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "ply: invalid header: " + e.Reason
}

func formatErrorf(format string, args ...interface{}) *FormatError {
	return &FormatError{Reason: fmt.Sprintf(format, args...)}
}

// DecodeError reports a payload that does not match its header, such as
// a truncated buffer or an out-of-range codebook index.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "ply: decode failed: " + e.Reason
}

func decodeErrorf(format string, args ...interface{}) *DecodeError {
	return &DecodeError{Reason: fmt.Sprintf(format, args...)}
}

// EmptyResultError reports a load that decoded zero points.
type EmptyResultError struct{}

func (e *EmptyResultError) Error() string {
	return "ply: no points decoded"
}

// ByteFormat is the payload encoding declared by the format directive.
type ByteFormat int

const (
	Ascii ByteFormat = iota
	BinaryLittleEndian
	BinaryBigEndian
)

var propertySizes = map[string]int{
	"char":   1,
	"uchar":  1,
	"short":  2,
	"ushort": 2,
	"int":    4,
	"uint":   4,
	"float":  4,
	"double": 8,
}

// Property is one declared vertex or element attribute.
type Property struct {
	Name   string
	Type   string
	Size   int
	Offset int

	// List marks a variable-length property (face index lists). List
	// properties do not contribute to the element stride.
	List      bool
	CountType string
	ElemType  string
}

// Element is one declared element block with its ordered properties.
type Element struct {
	Name       string
	Count      int
	Properties []Property

	// Stride is the fixed per-record byte width, the sum of the scalar
	// property sizes in declaration order.
	Stride int
}

// Property returns the named property and whether it was declared.
func (e *Element) Property(name string) (Property, bool) {
	for _, p := range e.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

func (e *Element) hasList() bool {
	for _, p := range e.Properties {
		if p.List {
			return true
		}
	}
	return false
}

// Header is the parsed PLY header.
type Header struct {
	Format   ByteFormat
	Version  string
	Elements []*Element

	// Length is the byte offset immediately following the
	// end_header terminator line, where the payload begins.
	Length int

	// Text is the raw header text, kept for dialect detection.
	Text string
}

// Element returns the named element, or nil if it was not declared.
func (h *Header) Element(name string) *Element {
	for _, e := range h.Elements {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// VertexCount returns the declared vertex element count.
func (h *Header) VertexCount() int {
	if e := h.Element("vertex"); e != nil {
		return e.Count
	}
	return 0
}

// ByteOrder returns the declared payload byte order. Ascii payloads
// report little endian; the ascii path never consults it.
func (h *Header) ByteOrder() binary.ByteOrder {
	if h.Format == BinaryBigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// ElementOffset returns the payload byte offset of the named element,
// assuming payload blocks follow declaration order. Elements with list
// properties have no fixed record width, so any such element preceding
// name makes the offset incomputable.
func (h *Header) ElementOffset(name string) (int, error) {
	off := 0
	for _, e := range h.Elements {
		if e.Name == name {
			return off, nil
		}
		if e.hasList() {
			return 0, decodeErrorf("element %q follows variable-length element %q", name, e.Name)
		}
		if e.Stride > 0 && e.Count > (math.MaxInt-off)/e.Stride {
			return 0, decodeErrorf("element %q payload size overflows", e.Name)
		}
		off += e.Count * e.Stride
	}
	return 0, decodeErrorf("element %q not declared", name)
}

const headerTerminator = "end_header"

// ParseHeader scans data for the PLY header, returning the parsed
// schema and the byte offset where the payload begins. It fails with
// FormatError if the terminator is missing or a property type is not
// recognized.
func ParseHeader(data []byte) (*Header, error) {
	idx := terminatorIndex(data)
	if idx < 0 {
		return nil, formatErrorf("no %s terminator", headerTerminator)
	}
	end := idx + len(headerTerminator)
	if end < len(data) && data[end] == '\r' {
		end++
	}
	if end < len(data) && data[end] == '\n' {
		end++
	}

	h := &Header{
		Length: end,
		Text:   string(data[:end]),
	}
	if err := h.parseLines(); err != nil {
		return nil, err
	}
	return h, nil
}

// ParseHeaderString parses a header out of an ascii PLY document.
func ParseHeaderString(text string) (*Header, error) {
	return ParseHeader([]byte(text))
}

// terminatorIndex finds end_header standing on a line of its own.
// A match inside another line (a comment mentioning it) is not a
// terminator.
func terminatorIndex(data []byte) int {
	term := []byte(headerTerminator)
	for search := 0; search < len(data); {
		i := bytes.Index(data[search:], term)
		if i < 0 {
			return -1
		}
		i += search
		j := i + len(term)
		atLineStart := i == 0 || data[i-1] == '\n'
		atLineEnd := j == len(data) || data[j] == '\n' || data[j] == '\r'
		if atLineStart && atLineEnd {
			return i
		}
		search = j
	}
	return -1
}

func (h *Header) parseLines() error {
	var cur *Element
	for _, line := range strings.Split(h.Text, "\n") {
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "format":
			if len(args) < 2 {
				return formatErrorf("format directive without value")
			}
			switch args[1] {
			case "ascii":
				h.Format = Ascii
			case "binary_little_endian":
				h.Format = BinaryLittleEndian
			case "binary_big_endian":
				h.Format = BinaryBigEndian
			default:
				return formatErrorf("unknown format %q", args[1])
			}
			if len(args) > 2 {
				h.Version = args[2]
			}
		case "element":
			if len(args) < 3 {
				return formatErrorf("element directive needs name and count")
			}
			n, err := strconv.Atoi(args[2])
			if err != nil || n < 0 {
				return formatErrorf("invalid element count %q", args[2])
			}
			cur = &Element{Name: args[1], Count: n}
			h.Elements = append(h.Elements, cur)
		case "property":
			if cur == nil {
				continue
			}
			if len(args) >= 2 && args[1] == "list" {
				if len(args) < 5 {
					return formatErrorf("property list needs count type, type and name")
				}
				if _, ok := propertySizes[args[2]]; !ok {
					return formatErrorf("unknown property type %q", args[2])
				}
				if _, ok := propertySizes[args[3]]; !ok {
					return formatErrorf("unknown property type %q", args[3])
				}
				cur.Properties = append(cur.Properties, Property{
					Name:      args[4],
					List:      true,
					CountType: args[2],
					ElemType:  args[3],
				})
				continue
			}
			if len(args) < 3 {
				return formatErrorf("property directive needs type and name")
			}
			size, ok := propertySizes[args[1]]
			if !ok {
				return formatErrorf("unknown property type %q", args[1])
			}
			cur.Properties = append(cur.Properties, Property{
				Name:   args[2],
				Type:   args[1],
				Size:   size,
				Offset: cur.Stride,
			})
			cur.Stride += size
		default:
			// ply magic, comment, obj_info and anything else.
		}
	}
	return nil
}
