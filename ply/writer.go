package ply

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Write encodes the point cloud in the standard dialect as
// binary_little_endian: float positions and normals, uchar RGBA, and
// face index lists. Splat-only attributes (scales, rotations, SH) have
// no standard-dialect representation and are not written.
func Write(w io.Writer, pc *PointCloud) error {
	if pc.Points == 0 {
		return &EmptyResultError{}
	}
	bw := bufio.NewWriter(w)
	fmt.Fprint(bw, "ply\nformat binary_little_endian 1.0\n")
	fmt.Fprintf(bw, "element vertex %d\n", pc.Points)
	fmt.Fprint(bw, "property float x\nproperty float y\nproperty float z\n")
	if pc.Normals != nil {
		fmt.Fprint(bw, "property float nx\nproperty float ny\nproperty float nz\n")
	}
	if pc.Colors != nil {
		fmt.Fprint(bw, "property uchar red\nproperty uchar green\nproperty uchar blue\nproperty uchar alpha\n")
	}
	nFaces := len(pc.Faces) / 3
	if nFaces > 0 {
		fmt.Fprintf(bw, "element face %d\n", nFaces)
		fmt.Fprint(bw, "property list uchar uint vertex_indices\n")
	}
	fmt.Fprint(bw, "end_header\n")

	var buf [4]byte
	writeFloat := func(v float32) {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		bw.Write(buf[:])
	}
	for i := 0; i < pc.Points; i++ {
		writeFloat(pc.Positions[3*i])
		writeFloat(pc.Positions[3*i+1])
		writeFloat(pc.Positions[3*i+2])
		if pc.Normals != nil {
			writeFloat(pc.Normals[3*i])
			writeFloat(pc.Normals[3*i+1])
			writeFloat(pc.Normals[3*i+2])
		}
		if pc.Colors != nil {
			for j := 0; j < 4; j++ {
				bw.WriteByte(colorByte(pc.Colors[4*i+j]))
			}
		}
	}
	for i := 0; i < nFaces; i++ {
		bw.WriteByte(3)
		for j := 0; j < 3; j++ {
			binary.LittleEndian.PutUint32(buf[:], pc.Faces[3*i+j])
			bw.Write(buf[:])
		}
	}
	return bw.Flush()
}

func colorByte(c float32) byte {
	v := int(c*255 + 0.5)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
