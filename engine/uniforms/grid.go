package uniforms

import (
	"math"

	"github.com/Carmen-Shannon/oxy-pointcloud/common"
	"github.com/go-gl/mathgl/mgl32"
)

// GridPointStride is the byte stride of one element of the grid-points buffer (array<vec2<f32>>).
const GridPointStride = 8

// GridPoints lays out roughly count sample points over a camera image of the given
// resolution. Points sit at cell centres of a square grid whose spacing gives the
// requested density; odd rows are shifted by half a cell so neighbouring rows
// interleave.
//
// Parameters:
//   - resolution: image width and height in pixels
//   - count: desired number of samples
//
// Returns:
//   - []mgl32.Vec2: sample positions in pixel coordinates, row-major; nil if any input is non-positive
func GridPoints(resolution mgl32.Vec2, count int) []mgl32.Vec2 {
	if count <= 0 || resolution[0] <= 0 || resolution[1] <= 0 {
		return nil
	}
	area := float64(resolution[0]) * float64(resolution[1])
	spacing := math.Sqrt(area / float64(count))
	cols := int(math.Round(float64(resolution[0]) / spacing))
	rows := int(math.Round(float64(resolution[1]) / spacing))

	points := make([]mgl32.Vec2, 0, cols*rows)
	for y := range rows {
		offsetX := float64(y%2) * spacing / 2
		for x := range cols {
			points = append(points, mgl32.Vec2{
				float32(offsetX + (float64(x)+0.5)*spacing),
				float32((float64(y) + 0.5) * spacing),
			})
		}
	}
	return points
}

// MarshalGridPoints serializes grid points for the grid-points storage buffer.
//
// Parameters:
//   - points: sample positions
//
// Returns:
//   - []byte: len(points)*8 bytes ready for GPU upload
func MarshalGridPoints(points []mgl32.Vec2) []byte {
	buf := make([]byte, len(points)*GridPointStride)
	for i, p := range points {
		common.PutFloat32s(buf, i*GridPointStride, p[0], p[1])
	}
	return buf
}
