package ply

import (
	"testing"
)

func TestDetectDialect(t *testing.T) {
	testCases := []struct {
		name     string
		header   string
		expected Dialect
	}{
		{
			name:     "Standard",
			header:   "ply\nformat binary_little_endian 1.0\nelement vertex 3\nproperty float x\nproperty float y\nproperty float z\nend_header\n",
			expected: DialectStandard,
		},
		{
			name:     "StandardWithFaces",
			header:   "ply\nformat ascii 1.0\nelement vertex 3\nproperty float x\nelement face 1\nproperty list uchar uint vertex_indices\nend_header\n",
			expected: DialectStandard,
		},
		{
			name:     "INRIAV1",
			header:   "ply\nformat binary_little_endian 1.0\nelement vertex 3\nproperty float x\nproperty float f_dc_0\nproperty float scale_0\nend_header\n",
			expected: DialectINRIAV1,
		},
		{
			name:     "INRIAV1RestOnly",
			header:   "ply\nformat binary_little_endian 1.0\nelement vertex 3\nproperty float x\nproperty float f_rest_0\nend_header\n",
			expected: DialectINRIAV1,
		},
		{
			name:     "INRIAV2",
			header:   "ply\nformat binary_little_endian 1.0\nelement vertex 3\nproperty float f_dc_0\nelement codebook_centers 16\nproperty float f_dc_0\nend_header\n",
			expected: DialectINRIAV2,
		},
		{
			name:     "PlayCanvas",
			header:   "ply\nformat binary_little_endian 1.0\nelement chunk 1\nproperty float min_x\nelement vertex 3\nproperty uint packed_position\nend_header\n",
			expected: DialectPlayCanvas,
		},
		{
			name:     "PlayCanvasPackedOnly",
			header:   "ply\nformat binary_little_endian 1.0\nelement vertex 3\nproperty uint packed_position\nend_header\n",
			expected: DialectPlayCanvas,
		},
	}
	for _, tt := range testCases {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if d := DetectDialect(tt.header); d != tt.expected {
				t.Errorf("expected dialect: %s, got: %s", tt.expected, d)
			}
		})
	}
}

func TestDetectDialectCodebookWins(t *testing.T) {
	// V2 headers also carry f_dc_ markers; the codebook marker must
	// take priority.
	header := "ply\nelement vertex 1\nproperty float f_dc_0\nproperty float scale_0\nelement codebook_centers 4\nend_header\n"
	if d := DetectDialect(header); d != DialectINRIAV2 {
		t.Errorf("expected dialect: %s, got: %s", DialectINRIAV2, d)
	}
}
