package uniforms

import (
	"errors"
	"fmt"
)

var (
	// ErrShortBuffer is returned when a byte buffer is too small for the structure being decoded.
	ErrShortBuffer = errors.New("uniforms: buffer too short")

	// ErrBufferStride is returned when a particle buffer length is not a multiple of the particle size.
	ErrBufferStride = errors.New("uniforms: buffer length is not a multiple of the element size")

	// ErrInvertedBox is returned when a Box has a minimum corner above its maximum corner.
	ErrInvertedBox = errors.New("uniforms: box minimum exceeds maximum")

	// ErrCapacity is returned when PointCloudUniforms.MaxPoints is not positive.
	ErrCapacity = errors.New("uniforms: point capacity must be positive")

	// ErrCursorRange is returned when the ring cursor lies outside [0, MaxPoints).
	ErrCursorRange = errors.New("uniforms: point cloud cursor out of range")
)

// NewBox builds a Box from two arbitrary corners, ordering each axis so that the
// result always satisfies BoxMin <= BoxMax.
//
// Parameters:
//   - a, b: opposite corners in any order
//
// Returns:
//   - Box: the ordered bounding box
func NewBox(a, b [3]float32) Box {
	var box Box
	for i := range 3 {
		box.BoxMin[i] = min(a[i], b[i])
		box.BoxMax[i] = max(a[i], b[i])
	}
	return box
}

// Validate reports whether the box is well formed.
//
// Returns:
//   - error: ErrInvertedBox naming the first offending axis, or nil
func (b *Box) Validate() error {
	for i, axis := range [3]string{"x", "y", "z"} {
		if b.BoxMin[i] > b.BoxMax[i] {
			return fmt.Errorf("%w: %s axis min %g > max %g", ErrInvertedBox, axis, b.BoxMin[i], b.BoxMax[i])
		}
	}
	return nil
}

// Contains reports whether p lies inside the box, boundaries included.
func (b *Box) Contains(p [3]float32) bool {
	for i := range 3 {
		if p[i] < b.BoxMin[i] || p[i] > b.BoxMax[i] {
			return false
		}
	}
	return true
}

// Validate checks the ring-buffer invariants: MaxPoints > 0 and
// 0 <= PointCloudCurrentIndex < MaxPoints.
//
// Returns:
//   - error: ErrCapacity or ErrCursorRange, or nil
func (u *PointCloudUniforms) Validate() error {
	if u.MaxPoints <= 0 {
		return fmt.Errorf("%w: got %d", ErrCapacity, u.MaxPoints)
	}
	if u.PointCloudCurrentIndex < 0 || u.PointCloudCurrentIndex >= u.MaxPoints {
		return fmt.Errorf("%w: index %d, capacity %d", ErrCursorRange, u.PointCloudCurrentIndex, u.MaxPoints)
	}
	return nil
}

// AdvanceCursor moves the write cursor forward by n accumulated points, wrapping
// modulo MaxPoints the way the accumulation stage fills the particle ring.
//
// Parameters:
//   - n: number of points written since the last advance; must be non-negative
//
// Returns:
//   - error: ErrCapacity if MaxPoints is not positive
func (u *PointCloudUniforms) AdvanceCursor(n int) error {
	if u.MaxPoints <= 0 {
		return fmt.Errorf("%w: got %d", ErrCapacity, u.MaxPoints)
	}
	next := (int64(u.PointCloudCurrentIndex) + int64(n)) % int64(u.MaxPoints)
	if next < 0 {
		next += int64(u.MaxPoints)
	}
	u.PointCloudCurrentIndex = int32(next)
	return nil
}
