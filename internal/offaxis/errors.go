package offaxis

import "fmt"

// ErrorKind classifies a GeometryError.
type ErrorKind string

const (
	KindNonRectangularTarget ErrorKind = "non_rectangular_target"
	KindDegenerateTarget     ErrorKind = "degenerate_target"
	KindInconsistentFrustum  ErrorKind = "inconsistent_frustum"
	KindCameraBehindPlane    ErrorKind = "camera_behind_plane"
)

// GeometryError rejects an input configuration. Solves are deterministic so
// the same input always fails the same way.
type GeometryError struct {
	Kind   ErrorKind
	Detail string
}

func (e *GeometryError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("geometry error: %s", e.Kind)
	}
	return fmt.Sprintf("geometry error: %s: %s", e.Kind, e.Detail)
}

// Is matches any GeometryError of the same kind, so the sentinels below
// work with errors.Is regardless of detail.
func (e *GeometryError) Is(target error) bool {
	t, ok := target.(*GeometryError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrNonRectangularTarget = &GeometryError{Kind: KindNonRectangularTarget}
	ErrDegenerateTarget     = &GeometryError{Kind: KindDegenerateTarget}
	ErrInconsistentFrustum  = &GeometryError{Kind: KindInconsistentFrustum}
	ErrCameraBehindPlane    = &GeometryError{Kind: KindCameraBehindPlane}
)

func geometryErrorf(kind ErrorKind, format string, args ...interface{}) error {
	return &GeometryError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
