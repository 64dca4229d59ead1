package common

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// PadMat3 expands a column-major 3x3 matrix into the 12-float layout WGSL uses
// for mat3x3<f32>: three vec3 columns, each padded to 16 bytes.
//
// Parameters:
//   - m: the column-major matrix
//
// Returns:
//   - [12]float32: the padded columns; every fourth element is zero
func PadMat3(m mgl32.Mat3) [12]float32 {
	var out [12]float32
	for c := range 3 {
		for r := range 3 {
			out[c*4+r] = m[c*3+r]
		}
	}
	return out
}

// UnpadMat3 is the inverse of PadMat3; padding lanes are discarded.
func UnpadMat3(p [12]float32) mgl32.Mat3 {
	var m mgl32.Mat3
	for c := range 3 {
		for r := range 3 {
			m[c*3+r] = p[c*4+r]
		}
	}
	return m
}

// PutFloat32s writes vals little-endian into buf starting at off.
//
// Parameters:
//   - buf: destination buffer; must hold off+4*len(vals) bytes
//   - off: byte offset of the first value
//   - vals: values to write
//
// Returns:
//   - int: the byte offset just past the last value written
func PutFloat32s(buf []byte, off int, vals ...float32) int {
	for _, v := range vals {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	return off
}

// Float32At reads one little-endian float32 at off.
func Float32At(buf []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[off : off+4]))
}

// Float32sAt fills dst with consecutive little-endian float32 values starting at off.
func Float32sAt(buf []byte, off int, dst []float32) {
	for i := range dst {
		dst[i] = Float32At(buf, off+i*4)
	}
}

// RoundUpAlign rounds value up to the next multiple of alignment.
// Alignment must be a power of two; zero returns value unchanged.
func RoundUpAlign(alignment, value uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}
