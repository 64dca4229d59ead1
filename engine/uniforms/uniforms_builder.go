package uniforms

import (
	"github.com/Carmen-Shannon/oxy-pointcloud/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Defaults carried over from the capture app that produced these buffers.
const (
	// DefaultMaxPoints is the capacity of the particle ring buffer.
	DefaultMaxPoints = 15_000_000

	// DefaultParticleSize is the rendered particle size in pixels.
	DefaultParticleSize float32 = 8

	// DefaultConfidenceThreshold is the lowest accepted depth-confidence level.
	DefaultConfidenceThreshold = 2

	// DefaultGridPoints is the number of depth samples taken per accumulated frame.
	DefaultGridPoints = 1_000
)

// PointCloudUniformsOption is a functional option used to configure PointCloudUniforms during construction.
type PointCloudUniformsOption func(*PointCloudUniforms)

// NewPointCloudUniforms creates PointCloudUniforms with identity matrices, the
// default capacity, particle size and confidence threshold, then applies options.
//
// Parameters:
//   - options: functional options applied in order
//
// Returns:
//   - PointCloudUniforms: the configured uniforms
func NewPointCloudUniforms(options ...PointCloudUniformsOption) PointCloudUniforms {
	ident := mgl32.Ident4()
	u := PointCloudUniforms{
		ViewMatrix:               ident,
		ProjectionMatrix:         ident,
		LocalToWorld:             ident,
		CameraIntrinsicsInversed: common.PadMat3(mgl32.Ident3()),
		CameraPosition:           [4]float32{0, 0, 0, 1},
		ParticleSize:             DefaultParticleSize,
		MaxPoints:                DefaultMaxPoints,
		ConfidenceThreshold:      DefaultConfidenceThreshold,
	}
	for _, option := range options {
		option(&u)
	}
	return u
}

// WithMaxPoints sets the particle ring capacity.
//
// Parameters:
//   - n: capacity in points
//
// Returns:
//   - PointCloudUniformsOption: a function that sets MaxPoints
func WithMaxPoints(n int32) PointCloudUniformsOption {
	return func(u *PointCloudUniforms) {
		u.MaxPoints = n
	}
}

// WithParticleSize sets the rendered particle size.
//
// Parameters:
//   - size: particle size in pixels
//
// Returns:
//   - PointCloudUniformsOption: a function that sets ParticleSize
func WithParticleSize(size float32) PointCloudUniformsOption {
	return func(u *PointCloudUniforms) {
		u.ParticleSize = size
	}
}

// WithConfidenceThreshold sets the minimum ordinal confidence level.
//
// Parameters:
//   - level: confidence level
//
// Returns:
//   - PointCloudUniformsOption: a function that sets ConfidenceThreshold
func WithConfidenceThreshold(level int32) PointCloudUniformsOption {
	return func(u *PointCloudUniforms) {
		u.ConfidenceThreshold = level
	}
}

// WithCameraResolution sets the pixel size of the source depth image.
//
// Parameters:
//   - width, height: resolution in pixels
//
// Returns:
//   - PointCloudUniformsOption: a function that sets CameraResolution
func WithCameraResolution(width, height float32) PointCloudUniformsOption {
	return func(u *PointCloudUniforms) {
		u.CameraResolution = [2]float32{width, height}
	}
}
