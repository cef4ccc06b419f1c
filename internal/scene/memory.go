package scene

import (
	"fmt"
	"sort"
	"sync"

	"github.com/banshee-data/offaxis/internal/offaxis"
	"gonum.org/v1/gonum/spatial/r3"
)

// Camera is a camera object as the host stores it.
type Camera struct {
	Location   r3.Vec
	Intrinsics offaxis.CameraIntrinsics
	Lens       float64
	ShiftX     float64
	ShiftY     float64
	// Matrix is the camera placement; it includes Location as translation.
	Matrix offaxis.RigidTransform
}

// Rectangle is a quad mesh: four local vertices in bottom-left,
// bottom-right, top-left, top-right order plus a world matrix.
type Rectangle struct {
	Vertices []r3.Vec
	Matrix   Matrix4
}

// Corners returns the first three vertices in world space.
func (r Rectangle) Corners() (offaxis.TargetRectangle, error) {
	if len(r.Vertices) != 4 {
		return offaxis.TargetRectangle{}, fmt.Errorf("rectangle mesh must have exactly 4 vertices, got %d", len(r.Vertices))
	}
	return offaxis.TargetRectangle{
		BottomLeft:  r.Matrix.Apply(r.Vertices[0]),
		BottomRight: r.Matrix.Apply(r.Vertices[1]),
		TopLeft:     r.Matrix.Apply(r.Vertices[2]),
	}, nil
}

// Memory is an in-process scene implementing SceneReader and SceneWriter.
// It is safe for concurrent use.
type Memory struct {
	mu         sync.RWMutex
	resolution offaxis.Resolution
	cameras    map[string]*Camera
	rectangles map[string]*Rectangle
}

// NewMemory creates an empty scene rendering at res.
func NewMemory(res offaxis.Resolution) *Memory {
	return &Memory{
		resolution: res,
		cameras:    make(map[string]*Camera),
		rectangles: make(map[string]*Rectangle),
	}
}

// AddCamera inserts or replaces a camera.
func (m *Memory) AddCamera(name string, c Camera) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cameras[name] = &c
}

// AddRectangle inserts or replaces a rectangle.
func (m *Memory) AddRectangle(name string, r Rectangle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.Vertices = append([]r3.Vec(nil), r.Vertices...)
	m.rectangles[name] = &r
}

// Camera returns a copy of the named camera.
func (m *Memory) Camera(name string) (Camera, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cameras[name]
	if !ok {
		return Camera{}, false
	}
	return *c, true
}

// Rectangle returns a copy of the named rectangle.
func (m *Memory) Rectangle(name string) (Rectangle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rectangles[name]
	if !ok {
		return Rectangle{}, false
	}
	out := *r
	out.Vertices = append([]r3.Vec(nil), r.Vertices...)
	return out, true
}

// CameraNames returns the camera names in sorted order.
func (m *Memory) CameraNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.cameras)
}

// RectangleNames returns the rectangle names in sorted order.
func (m *Memory) RectangleNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.rectangles)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *Memory) camera(name string) (*Camera, error) {
	c, ok := m.cameras[name]
	if !ok {
		return nil, fmt.Errorf("camera %q: %w", name, ErrNotFound)
	}
	return c, nil
}

// CameraPosition implements SceneReader.
func (m *Memory) CameraPosition(name string) (r3.Vec, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.camera(name)
	if err != nil {
		return r3.Vec{}, err
	}
	return c.Location, nil
}

// CameraIntrinsics implements SceneReader.
func (m *Memory) CameraIntrinsics(name string) (offaxis.CameraIntrinsics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.camera(name)
	if err != nil {
		return offaxis.CameraIntrinsics{}, err
	}
	return c.Intrinsics, nil
}

// RectangleCorners implements SceneReader.
func (m *Memory) RectangleCorners(name string) (offaxis.TargetRectangle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rectangles[name]
	if !ok {
		return offaxis.TargetRectangle{}, fmt.Errorf("rectangle %q: %w", name, ErrNotFound)
	}
	corners, err := r.Corners()
	if err != nil {
		return offaxis.TargetRectangle{}, fmt.Errorf("rectangle %q: %w", name, err)
	}
	return corners, nil
}

// Resolution implements SceneReader.
func (m *Memory) Resolution() (offaxis.Resolution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.resolution, nil
}

// SetCameraTransform implements SceneWriter.
func (m *Memory) SetCameraTransform(name string, t offaxis.RigidTransform) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.camera(name)
	if err != nil {
		return err
	}
	c.Matrix = t
	c.Location = t.Translation()
	return nil
}

// SetCameraLens implements SceneWriter.
func (m *Memory) SetCameraLens(name string, lens float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.camera(name)
	if err != nil {
		return err
	}
	c.Lens = lens
	return nil
}

// SetCameraShift implements SceneWriter.
func (m *Memory) SetCameraShift(name string, x, y float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.camera(name)
	if err != nil {
		return err
	}
	c.ShiftX = x
	c.ShiftY = y
	return nil
}
