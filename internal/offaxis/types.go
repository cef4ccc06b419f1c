// Package offaxis solves the camera parameters that make a perspective or
// orthographic camera exactly frame an arbitrary planar rectangle.
//
// The solver runs in two stages. The extrinsic stage builds an orthonormal
// basis from the rectangle and rotates the camera so its near plane is
// parallel to the rectangle. The intrinsic stage derives the asymmetric
// frustum bounds at the near plane and converts them into a focal length and
// a normalized sensor shift (generalized perspective projection, Kooima 2008).
//
// Every function in this package is pure: inputs are value types and nothing
// is cached or shared between calls, so solves may run concurrently.
package offaxis

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// SensorFit selects which sensor dimension governs scale.
type SensorFit string

const (
	// SensorFitAuto picks horizontal when the image is at least as wide as it is tall.
	SensorFitAuto SensorFit = "auto"
	// SensorFitHorizontal scales by sensor width.
	SensorFitHorizontal SensorFit = "horizontal"
	// SensorFitVertical scales by sensor height.
	SensorFitVertical SensorFit = "vertical"
)

// ParseSensorFit accepts the fit names case-insensitively.
func ParseSensorFit(s string) (SensorFit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return SensorFitAuto, nil
	case "horizontal":
		return SensorFitHorizontal, nil
	case "vertical":
		return SensorFitVertical, nil
	default:
		return "", fmt.Errorf("unknown sensor fit %q (want auto, horizontal or vertical)", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *SensorFit) UnmarshalText(b []byte) error {
	v, err := ParseSensorFit(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// ProjectionType is the camera projection model.
type ProjectionType string

const (
	ProjectionPerspective  ProjectionType = "perspective"
	ProjectionOrthographic ProjectionType = "orthographic"
)

// ParseProjectionType accepts the long names and the short "persp"/"ortho" forms.
func ParseProjectionType(s string) (ProjectionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "perspective", "persp":
		return ProjectionPerspective, nil
	case "orthographic", "ortho":
		return ProjectionOrthographic, nil
	default:
		return "", fmt.Errorf("unknown projection type %q (want perspective or orthographic)", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *ProjectionType) UnmarshalText(b []byte) error {
	v, err := ParseProjectionType(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// CameraIntrinsics holds the camera settings the solver reads.
// SensorWidth and SensorHeight are in physical sensor units (usually mm);
// ClipStart is in world units.
type CameraIntrinsics struct {
	SensorFit      SensorFit      `json:"sensor_fit"`
	SensorWidth    float64        `json:"sensor_width"`
	SensorHeight   float64        `json:"sensor_height"`
	ClipStart      float64        `json:"clip_start"`
	ProjectionType ProjectionType `json:"type"`
}

// Validate checks the settings that would otherwise produce NaN results.
func (c CameraIntrinsics) Validate() error {
	if c.ClipStart <= 0 {
		return fmt.Errorf("clip_start must be positive, got %g", c.ClipStart)
	}
	if c.SensorWidth <= 0 || c.SensorHeight <= 0 {
		return fmt.Errorf("sensor size must be positive, got %gx%g", c.SensorWidth, c.SensorHeight)
	}
	if _, err := ParseSensorFit(string(c.SensorFit)); err != nil {
		return err
	}
	if _, err := ParseProjectionType(string(c.ProjectionType)); err != nil {
		return err
	}
	return nil
}

// TargetRectangle is a planar right-angled quad given by three world-space
// corners. The fourth corner is implied.
type TargetRectangle struct {
	BottomLeft  r3.Vec `json:"bottom_left"`
	BottomRight r3.Vec `json:"bottom_right"`
	TopLeft     r3.Vec `json:"top_left"`
}

// TopRight returns the implied fourth corner.
func (t TargetRectangle) TopRight() r3.Vec {
	return r3.Add(t.BottomRight, r3.Sub(t.TopLeft, t.BottomLeft))
}

// Width returns the length of the bottom edge.
func (t TargetRectangle) Width() float64 {
	return r3.Norm(r3.Sub(t.BottomRight, t.BottomLeft))
}

// Height returns the length of the left edge.
func (t TargetRectangle) Height() float64 {
	return r3.Norm(r3.Sub(t.TopLeft, t.BottomLeft))
}

// Resolution is the target image size in pixels.
type Resolution struct {
	X int `json:"resolution_x"`
	Y int `json:"resolution_y"`
}

// Validate rejects non-positive resolutions.
func (r Resolution) Validate() error {
	if r.X <= 0 || r.Y <= 0 {
		return fmt.Errorf("resolution must be positive, got %dx%d", r.X, r.Y)
	}
	return nil
}

// FrustumBounds are the near-plane offsets along the rectangle's right and
// up axes, measured at clip_start distance.
type FrustumBounds struct {
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Top    float64 `json:"top"`
}

// SolverResult is the full output of Solve. Lens is nil for orthographic
// cameras.
type SolverResult struct {
	Transform RigidTransform `json:"matrix"`
	Lens      *float64       `json:"lens"`
	ShiftX    float64        `json:"shift_x"`
	ShiftY    float64        `json:"shift_y"`
	Bounds    FrustumBounds  `json:"bounds"`
}

// Inputs bundles everything one solve needs.
type Inputs struct {
	CameraPosition r3.Vec           `json:"location"`
	Target         TargetRectangle  `json:"rectangle"`
	Camera         CameraIntrinsics `json:"camera"`
	Resolution     Resolution       `json:"resolution"`
}

// Options tunes tolerances and the pixel aspect factors.
type Options struct {
	// OrthogonalityTolerance bounds |dot(vr, vu)| for the corner edges.
	OrthogonalityTolerance float64 `json:"orthogonality_tolerance"`
	// AspectTolerance bounds the frustum/resolution aspect mismatch.
	AspectTolerance float64 `json:"aspect_tolerance"`
	// PixelAspectX and PixelAspectY are the per-pixel aspect factors.
	PixelAspectX float64 `json:"pixel_aspect_x"`
	PixelAspectY float64 `json:"pixel_aspect_y"`
	// RejectBehindPlane fails solves where the camera is on the back side
	// of the rectangle's normal. When false the mirrored frustum is returned.
	RejectBehindPlane bool `json:"reject_behind_plane"`
}

// DefaultOptions returns the reference tolerances with square pixels.
func DefaultOptions() Options {
	return Options{
		OrthogonalityTolerance: 1e-7,
		AspectTolerance:        1e-7,
		PixelAspectX:           1,
		PixelAspectY:           1,
		RejectBehindPlane:      true,
	}
}
