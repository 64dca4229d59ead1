package uniforms

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-pointcloud/common"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrSingular is returned when a transform that must be inverted has a zero determinant.
var ErrSingular = errors.New("uniforms: transform is not invertible")

// Orientation is the interface orientation the display transform was computed for.
type Orientation int

const (
	OrientationLandscapeRight Orientation = iota
	OrientationLandscapeLeft
	OrientationPortrait
	OrientationPortraitUpsideDown
)

// cameraToDisplayRotation returns the rotation in degrees from the sensor's native
// landscape orientation to the given interface orientation.
func (o Orientation) cameraToDisplayRotation() float32 {
	switch o {
	case OrientationLandscapeLeft:
		return 180
	case OrientationPortrait:
		return 90
	case OrientationPortraitUpsideDown:
		return -90
	default:
		return 0
	}
}

// RotateToARCamera returns the matrix taking the point-cloud local space into the
// AR camera's coordinate frame: a Y/Z flip followed by the display rotation about Z.
//
// Parameters:
//   - o: interface orientation
//
// Returns:
//   - mgl32.Mat4: column-major rotation matrix
func RotateToARCamera(o Orientation) mgl32.Mat4 {
	flipYZ := mgl32.Diag4(mgl32.Vec4{1, -1, -1, 1})
	angle := mgl32.DegToRad(o.cameraToDisplayRotation())
	return flipYZ.Mul4(mgl32.HomogRotate3DZ(angle))
}

// Affine is a 2D affine transform in row-vector form:
//
//	[x' y' 1] = [x y 1] * | A  B  0 |
//	                      | C  D  0 |
//	                      | Tx Ty 1 |
type Affine struct {
	A, B, C, D, Tx, Ty float32
}

// Invert returns the inverse transform.
//
// Returns:
//   - Affine: the inverse
//   - error: ErrSingular if the linear part has a zero determinant
func (t Affine) Invert() (Affine, error) {
	det := t.A*t.D - t.B*t.C
	if det == 0 {
		return Affine{}, ErrSingular
	}
	return Affine{
		A:  t.D / det,
		B:  -t.B / det,
		C:  -t.C / det,
		D:  t.A / det,
		Tx: (t.C*t.Ty - t.D*t.Tx) / det,
		Ty: (t.B*t.Tx - t.A*t.Ty) / det,
	}, nil
}

// ViewToCameraFromAffine packs an affine transform into the padded mat3x3 layout
// used by RGBUniforms.ViewToCamera. Column 0 is (A, C, Tx), column 1 is (B, D, Ty)
// and column 2 is (0, 0, 1), so the shader computes (uv, 1) * M with its
// column-vector math.
//
// Parameters:
//   - t: the viewport-to-camera-image transform
//
// Returns:
//   - [12]float32: padded mat3x3<f32>
func ViewToCameraFromAffine(t Affine) [12]float32 {
	m := mgl32.Mat3FromCols(
		mgl32.Vec3{t.A, t.C, t.Tx},
		mgl32.Vec3{t.B, t.D, t.Ty},
		mgl32.Vec3{0, 0, 1},
	)
	return common.PadMat3(m)
}

// NewRGBUniforms builds the RGB reprojection uniforms from the display transform of
// the camera image and the viewport size.
//
// Parameters:
//   - displayTransform: camera-image-to-viewport transform; it is inverted here
//   - viewportWidth, viewportHeight: viewport size in points
//
// Returns:
//   - RGBUniforms: the uniforms
//   - error: ErrSingular if the display transform cannot be inverted
func NewRGBUniforms(displayTransform Affine, viewportWidth, viewportHeight float32) (RGBUniforms, error) {
	viewToCamera, err := displayTransform.Invert()
	if err != nil {
		return RGBUniforms{}, err
	}
	u := RGBUniforms{ViewToCamera: ViewToCameraFromAffine(viewToCamera)}
	if viewportHeight != 0 {
		u.ViewRatio = viewportWidth / viewportHeight
	}
	return u, nil
}

// FrameInputs is the per-frame camera state the point-cloud uniforms are derived from.
type FrameInputs struct {
	// View is the camera view matrix for the interface orientation.
	View mgl32.Mat4
	// Projection is the camera projection matrix.
	Projection mgl32.Mat4
	// CameraTransform is the camera-to-world transform; its last column is the camera position.
	CameraTransform mgl32.Mat4
	// Intrinsics is the camera intrinsic matrix (column-major).
	Intrinsics mgl32.Mat3
	// Orientation is the interface orientation the view matrix was computed for.
	Orientation Orientation
}

// UpdateFrame writes the per-frame matrices and camera position. Capacity,
// cursor, particle size and threshold are left untouched.
//
// Parameters:
//   - in: the frame's camera state
//
// Returns:
//   - error: ErrSingular if the view or intrinsic matrix cannot be inverted
func (u *PointCloudUniforms) UpdateFrame(in FrameInputs) error {
	if in.View.Det() == 0 || in.Intrinsics.Det() == 0 {
		return ErrSingular
	}
	u.ViewMatrix = in.View
	u.ProjectionMatrix = in.Projection
	u.LocalToWorld = in.View.Inv().Mul4(RotateToARCamera(in.Orientation))
	u.SetCameraIntrinsicsInversed(in.Intrinsics.Inv())
	u.CameraPosition = in.CameraTransform.Col(3)
	return nil
}

// SetCameraIntrinsicsInversed stores an already-inverted intrinsic matrix in padded form.
func (u *PointCloudUniforms) SetCameraIntrinsicsInversed(m mgl32.Mat3) {
	u.CameraIntrinsicsInversed = common.PadMat3(m)
}

// ViewProjection returns Projection * View, the matrix the capture app records per frame.
func (u *PointCloudUniforms) ViewProjection() mgl32.Mat4 {
	return mgl32.Mat4(u.ProjectionMatrix).Mul4(mgl32.Mat4(u.ViewMatrix))
}

// SetViewToCamera stores m as the padded reprojection matrix.
func (u *RGBUniforms) SetViewToCamera(m mgl32.Mat3) {
	u.ViewToCamera = common.PadMat3(m)
}
