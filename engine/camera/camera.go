package camera

import (
	"math"

	"github.com/Carmen-Shannon/oxy-render/common"
)

// Matrices is the set of camera matrices consumed by culling and submission.
// All matrices are column-major.
type Matrices struct {
	View           [16]float32
	Projection     [16]float32
	ViewProjection [16]float32
}

// cameraImpl is the implementation of the Camera interface.
type cameraImpl struct {
	world  [16]float32
	fov    float32
	aspect float32
	near   float32
	far    float32

	matrices Matrices
}

// Camera derives view and projection matrices from the world transform of a
// scene object. The camera looks down its local -Z axis with +Y up.
type Camera interface {
	// Fov returns the vertical field of view in radians.
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	Aspect() float32

	// Near returns the near clipping plane distance.
	Near() float32

	// Far returns the far clipping plane distance.
	Far() float32

	// Position returns the world-space position of the camera.
	//
	// Returns:
	//   - [3]float32: position as (x, y, z)
	Position() [3]float32

	// Matrices returns the view, projection and combined matrices.
	//
	// Returns:
	//   - Matrices: the camera matrices
	Matrices() Matrices

	// Frustum returns the view frustum in world space.
	//
	// Returns:
	//   - common.Frustum: the six normalized frustum planes
	Frustum() common.Frustum
}

var _ Camera = &cameraImpl{}

// NewCamera creates a camera from the provided options.
// Defaults: identity world transform, 45 degree field of view, aspect 1,
// near plane 0.1, far plane 1000.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the configured camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		world:  common.IdentityMatrix(),
		fov:    math.Pi / 4,
		aspect: 1,
		near:   0.1,
		far:    1000,
	}
	for _, opt := range options {
		opt(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Fov() float32 {
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	return c.near
}

func (c *cameraImpl) Far() float32 {
	return c.far
}

func (c *cameraImpl) Position() [3]float32 {
	return common.Translation(c.world[:])
}

func (c *cameraImpl) Matrices() Matrices {
	return c.matrices
}

func (c *cameraImpl) Frustum() common.Frustum {
	return common.ExtractFrustumFromMatrix(c.matrices.ViewProjection[:])
}

// updateMatrices recomputes view, projection and view-projection.
// A singular world transform leaves the view at identity.
func (c *cameraImpl) updateMatrices() {
	m := &c.matrices
	if !common.Invert4(m.View[:], c.world[:]) {
		common.Identity(m.View[:])
	}
	common.Perspective(m.Projection[:], c.fov, c.aspect, c.near, c.far)
	common.Mul4(m.ViewProjection[:], m.Projection[:], m.View[:])
}
