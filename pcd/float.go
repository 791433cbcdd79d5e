package pcd

import (
	"unsafe"
)

// byteSliceAsFloat32Slice reinterprets b as little-endian float32s
// without copying. Valid only while b is alive and unmodified.
func byteSliceAsFloat32Slice(b []byte) []float32 {
	if len(b) < 4 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4)
}
