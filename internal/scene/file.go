package scene

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/offaxis/internal/offaxis"
	"gonum.org/v1/gonum/spatial/r3"
)

// Camera defaults applied to fields a rig file omits.
const (
	DefaultSensorWidth  = 36.0
	DefaultSensorHeight = 24.0
	DefaultClipStart    = 0.1
	DefaultLens         = 50.0
)

const maxRigFileSize = 16 * 1024 * 1024 // 16MB

// File is the on-disk JSON form of a scene plus the pairs to solve.
type File struct {
	Render     offaxis.Resolution       `json:"render"`
	Cameras    map[string]CameraFile    `json:"cameras"`
	Rectangles map[string]RectangleFile `json:"rectangles"`
	Pairs      []Pair                   `json:"pairs,omitempty"`
}

// CameraFile is one camera entry in a rig file.
type CameraFile struct {
	Location     [3]float64   `json:"location"`
	SensorFit    string       `json:"sensor_fit,omitempty"`
	SensorWidth  *float64     `json:"sensor_width,omitempty"`
	SensorHeight *float64     `json:"sensor_height,omitempty"`
	ClipStart    *float64     `json:"clip_start,omitempty"`
	Type         string       `json:"type,omitempty"`
	Lens         *float64     `json:"lens,omitempty"`
	ShiftX       float64      `json:"shift_x"`
	ShiftY       float64      `json:"shift_y"`
	Matrix       *[16]float64 `json:"matrix,omitempty"`
}

// RectangleFile is one rectangle mesh entry in a rig file.
type RectangleFile struct {
	Vertices [][3]float64 `json:"vertices"`
	Matrix   *[16]float64 `json:"matrix,omitempty"`
}

func vec(a [3]float64) r3.Vec {
	return r3.Vec{X: a[0], Y: a[1], Z: a[2]}
}

func array(v r3.Vec) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

func orDefault(p *float64, d float64) float64 {
	if p == nil {
		return d
	}
	return *p
}

// Camera converts the entry, filling omitted settings with defaults.
func (cf CameraFile) Camera() (Camera, error) {
	fit, err := offaxis.ParseSensorFit(cf.SensorFit)
	if err != nil {
		return Camera{}, err
	}
	typ, err := offaxis.ParseProjectionType(cf.Type)
	if err != nil {
		return Camera{}, err
	}
	c := Camera{
		Location: vec(cf.Location),
		Intrinsics: offaxis.CameraIntrinsics{
			SensorFit:      fit,
			SensorWidth:    orDefault(cf.SensorWidth, DefaultSensorWidth),
			SensorHeight:   orDefault(cf.SensorHeight, DefaultSensorHeight),
			ClipStart:      orDefault(cf.ClipStart, DefaultClipStart),
			ProjectionType: typ,
		},
		Lens:   orDefault(cf.Lens, DefaultLens),
		ShiftX: cf.ShiftX,
		ShiftY: cf.ShiftY,
	}
	if cf.Matrix != nil {
		c.Matrix = offaxis.RigidTransform(*cf.Matrix)
		c.Location = c.Matrix.Translation()
	} else {
		c.Matrix = offaxis.IdentityTransform()
		c.Matrix[3], c.Matrix[7], c.Matrix[11] = c.Location.X, c.Location.Y, c.Location.Z
	}
	return c, nil
}

func (rf RectangleFile) rectangle() Rectangle {
	r := Rectangle{Matrix: IdentityMatrix()}
	if rf.Matrix != nil {
		r.Matrix = Matrix4(*rf.Matrix)
	}
	for _, v := range rf.Vertices {
		r.Vertices = append(r.Vertices, vec(v))
	}
	return r
}

// Memory builds an in-memory scene from the file. Pairs must reference
// objects that exist in the file.
func (f *File) Memory() (*Memory, error) {
	if err := f.Render.Validate(); err != nil {
		return nil, fmt.Errorf("invalid render settings: %w", err)
	}
	m := NewMemory(f.Render)
	for name, cf := range f.Cameras {
		c, err := cf.Camera()
		if err != nil {
			return nil, fmt.Errorf("camera %q: %w", name, err)
		}
		m.AddCamera(name, c)
	}
	for name, rf := range f.Rectangles {
		m.AddRectangle(name, rf.rectangle())
	}
	for i, p := range f.Pairs {
		if _, ok := f.Cameras[p.Camera]; !ok {
			return nil, fmt.Errorf("pair %d: camera %q: %w", i, p.Camera, ErrNotFound)
		}
		if _, ok := f.Rectangles[p.Rectangle]; !ok {
			return nil, fmt.Errorf("pair %d: rectangle %q: %w", i, p.Rectangle, ErrNotFound)
		}
	}
	return m, nil
}

// Snapshot captures the current state of m as a rig file.
func (m *Memory) Snapshot(pairs []Pair) *File {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f := &File{
		Render:     m.resolution,
		Cameras:    make(map[string]CameraFile, len(m.cameras)),
		Rectangles: make(map[string]RectangleFile, len(m.rectangles)),
		Pairs:      append([]Pair(nil), pairs...),
	}
	for name, c := range m.cameras {
		sw, sh, clip, lens := c.Intrinsics.SensorWidth, c.Intrinsics.SensorHeight, c.Intrinsics.ClipStart, c.Lens
		matrix := [16]float64(c.Matrix)
		f.Cameras[name] = CameraFile{
			Location:     array(c.Location),
			SensorFit:    string(c.Intrinsics.SensorFit),
			SensorWidth:  &sw,
			SensorHeight: &sh,
			ClipStart:    &clip,
			Type:         string(c.Intrinsics.ProjectionType),
			Lens:         &lens,
			ShiftX:       c.ShiftX,
			ShiftY:       c.ShiftY,
			Matrix:       &matrix,
		}
	}
	for name, r := range m.rectangles {
		matrix := [16]float64(r.Matrix)
		rf := RectangleFile{Matrix: &matrix}
		for _, v := range r.Vertices {
			rf.Vertices = append(rf.Vertices, array(v))
		}
		f.Rectangles[name] = rf
	}
	return f
}

// ParseFile decodes a rig file from JSON.
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rig JSON: %w", err)
	}
	return &f, nil
}

// LoadFile reads a rig file and returns its scene and pairs.
// The file must have a .json extension.
func LoadFile(path string) (*Memory, []Pair, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, nil, fmt.Errorf("rig file must have .json extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat rig file: %w", err)
	}
	if info.Size() > maxRigFileSize {
		return nil, nil, fmt.Errorf("rig file too large: %d bytes (max %d)", info.Size(), maxRigFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read rig file: %w", err)
	}
	f, err := ParseFile(data)
	if err != nil {
		return nil, nil, err
	}
	m, err := f.Memory()
	if err != nil {
		return nil, nil, err
	}
	return m, f.Pairs, nil
}

// SaveFile writes m and pairs to path as indented JSON.
func SaveFile(path string, m *Memory, pairs []Pair) error {
	data, err := json.MarshalIndent(m.Snapshot(pairs), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode rig file: %w", err)
	}
	if err := os.WriteFile(filepath.Clean(path), append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write rig file: %w", err)
	}
	return nil
}
