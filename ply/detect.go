package ply

import "strings"

// Dialect identifies which decoder a PLY file needs. The four dialects
// share the header syntax but disagree on per-vertex field semantics.
type Dialect int

const (
	DialectStandard Dialect = iota
	DialectINRIAV1
	DialectINRIAV2
	DialectPlayCanvas
)

func (d Dialect) String() string {
	switch d {
	case DialectINRIAV1:
		return "inria_v1"
	case DialectINRIAV2:
		return "inria_v2"
	case DialectPlayCanvas:
		return "playcanvas"
	default:
		return "standard"
	}
}

// detectWindow bounds how much header text the classifier inspects.
const detectWindow = 1024

// DetectDialect classifies a header by marker substrings, checked in
// priority order. Detection selects a decoder; it does not validate
// the payload.
func DetectDialect(headerText string) Dialect {
	if len(headerText) > detectWindow {
		headerText = headerText[:detectWindow]
	}
	switch {
	case strings.Contains(headerText, "element codebook_centers"):
		return DialectINRIAV2
	case strings.Contains(headerText, "element chunk") ||
		strings.Contains(headerText, "packed_"):
		return DialectPlayCanvas
	case strings.Contains(headerText, "f_dc_") ||
		strings.Contains(headerText, "f_rest_") ||
		strings.Contains(headerText, "scale_0"):
		return DialectINRIAV1
	default:
		return DialectStandard
	}
}
