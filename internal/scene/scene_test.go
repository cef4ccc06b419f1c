package scene

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/offaxis/internal/offaxis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func unitQuad() []r3.Vec {
	return []r3.Vec{
		{X: -1, Y: -1}, {X: 1, Y: -1}, {X: -1, Y: 1}, {X: 1, Y: 1},
	}
}

func translateZ(z, scale float64) Matrix4 {
	m := IdentityMatrix()
	m[0], m[5], m[10] = scale, scale, scale
	m[11] = z
	return m
}

func defaultIntrinsics() offaxis.CameraIntrinsics {
	return offaxis.CameraIntrinsics{
		SensorFit:      offaxis.SensorFitAuto,
		SensorWidth:    DefaultSensorWidth,
		SensorHeight:   DefaultSensorHeight,
		ClipStart:      DefaultClipStart,
		ProjectionType: offaxis.ProjectionPerspective,
	}
}

// newTestScene has one camera at the origin facing a 2x2 quad ten units
// down -Z, rendering square frames.
func newTestScene() *Memory {
	m := NewMemory(offaxis.Resolution{X: 1000, Y: 1000})
	m.AddCamera("Camera", Camera{
		Intrinsics: defaultIntrinsics(),
		Lens:       DefaultLens,
		Matrix:     offaxis.IdentityTransform(),
	})
	m.AddRectangle("Screen", Rectangle{Vertices: unitQuad(), Matrix: translateZ(-10, 1)})
	return m
}

func TestRectangleCorners(t *testing.T) {
	m := newTestScene()
	m.AddRectangle("Big", Rectangle{Vertices: unitQuad(), Matrix: translateZ(-10, 2)})

	tests := []struct {
		name string
		rect string
		want offaxis.TargetRectangle
	}{
		{
			name: "translated",
			rect: "Screen",
			want: offaxis.TargetRectangle{
				BottomLeft:  r3.Vec{X: -1, Y: -1, Z: -10},
				BottomRight: r3.Vec{X: 1, Y: -1, Z: -10},
				TopLeft:     r3.Vec{X: -1, Y: 1, Z: -10},
			},
		},
		{
			name: "scaled",
			rect: "Big",
			want: offaxis.TargetRectangle{
				BottomLeft:  r3.Vec{X: -2, Y: -2, Z: -10},
				BottomRight: r3.Vec{X: 2, Y: -2, Z: -10},
				TopLeft:     r3.Vec{X: -2, Y: 2, Z: -10},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.RectangleCorners(tt.rect)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRectangleCorners_VertexCount(t *testing.T) {
	m := newTestScene()
	m.AddRectangle("Triangle", Rectangle{Vertices: unitQuad()[:3], Matrix: IdentityMatrix()})

	_, err := m.RectangleCorners("Triangle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly 4 vertices")
}

func TestReadInputs_NotFound(t *testing.T) {
	m := newTestScene()

	_, err := ReadInputs(m, "Missing", "Screen")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	_, err = ReadInputs(m, "Camera", "Missing")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	assert.True(t, errors.Is(m.SetCameraLens("Missing", 1), ErrNotFound))
}

func TestUpdate(t *testing.T) {
	m := newTestScene()

	res, err := Update(m, m, "Camera", "Screen", offaxis.DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, res.Lens)

	// Half-width 1 at distance 10 on a 36mm sensor.
	assert.InDelta(t, 180.0, *res.Lens, 1e-9)

	cam, ok := m.Camera("Camera")
	require.True(t, ok)
	assert.InDelta(t, 180.0, cam.Lens, 1e-9)
	assert.InDelta(t, 0.0, cam.ShiftX, 1e-12)
	assert.InDelta(t, 0.0, cam.ShiftY, 1e-12)
	assert.Equal(t, r3.Vec{}, cam.Location)
	assert.True(t, cam.Matrix.IsRigid(offaxis.MatrixValidationTolerance))
}

func TestUpdate_OffAxisShift(t *testing.T) {
	m := newTestScene()
	// Slide the camera right by one unit: the quad's left edge is now on
	// the optical axis.
	m.AddCamera("Camera", Camera{
		Location:   r3.Vec{X: 1},
		Intrinsics: defaultIntrinsics(),
		Lens:       DefaultLens,
	})

	_, err := Update(m, m, "Camera", "Screen", offaxis.DefaultOptions())
	require.NoError(t, err)

	cam, _ := m.Camera("Camera")
	assert.InDelta(t, -0.5, cam.ShiftX, 1e-9)
	assert.InDelta(t, 0.0, cam.ShiftY, 1e-9)
	assert.Equal(t, r3.Vec{X: 1}, cam.Location)
}

func TestUpdate_FailureWritesNothing(t *testing.T) {
	m := newTestScene()
	skewed := unitQuad()
	skewed[1] = r3.Vec{X: 1, Y: -0.5}
	m.AddRectangle("Skewed", Rectangle{Vertices: skewed, Matrix: translateZ(-10, 1)})

	before, _ := m.Camera("Camera")
	_, err := Update(m, m, "Camera", "Skewed", offaxis.DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, offaxis.ErrNonRectangularTarget), "got %v", err)

	after, _ := m.Camera("Camera")
	assert.Equal(t, before, after)
}

func TestUpdate_OrthographicKeepsLens(t *testing.T) {
	m := newTestScene()
	intr := defaultIntrinsics()
	intr.ProjectionType = offaxis.ProjectionOrthographic
	m.AddCamera("Ortho", Camera{Location: r3.Vec{X: 1}, Intrinsics: intr, Lens: 42})

	res, err := Update(m, m, "Ortho", "Screen", offaxis.DefaultOptions())
	require.NoError(t, err)
	assert.Nil(t, res.Lens)

	cam, _ := m.Camera("Ortho")
	assert.Equal(t, 42.0, cam.Lens)
	assert.InDelta(t, -0.5, cam.ShiftX, 1e-9)
}

type recordingWriter struct {
	calls []string
}

func (w *recordingWriter) SetCameraTransform(string, offaxis.RigidTransform) error {
	w.calls = append(w.calls, "transform")
	return nil
}

func (w *recordingWriter) SetCameraLens(string, float64) error {
	w.calls = append(w.calls, "lens")
	return nil
}

func (w *recordingWriter) SetCameraShift(string, float64, float64) error {
	w.calls = append(w.calls, "shift")
	return nil
}

func TestApply(t *testing.T) {
	lens := 35.0
	tests := []struct {
		name string
		res  offaxis.SolverResult
		want []string
	}{
		{"perspective", offaxis.SolverResult{Lens: &lens}, []string{"transform", "lens", "shift"}},
		{"orthographic", offaxis.SolverResult{}, []string{"transform", "shift"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &recordingWriter{}
			require.NoError(t, Apply(w, "Camera", tt.res))
			assert.Equal(t, tt.want, w.calls)
		})
	}
}

const testRig = `{
  "render": {"resolution_x": 1000, "resolution_y": 1000},
  "cameras": {
    "Camera": {"location": [0, 0, 0]},
    "Side": {"location": [1, 0, 0], "sensor_fit": "HORIZONTAL", "type": "PERSP"}
  },
  "rectangles": {
    "Screen": {
      "vertices": [[-1, -1, 0], [1, -1, 0], [-1, 1, 0], [1, 1, 0]],
      "matrix": [1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, -10, 0, 0, 0, 1]
    }
  },
  "pairs": [
    {"camera": "Camera", "rectangle": "Screen"},
    {"camera": "Side", "rectangle": "Screen"}
  ]
}`

func writeRig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rig.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadFile(t *testing.T) {
	m, pairs, err := LoadFile(writeRig(t, testRig))
	require.NoError(t, err)

	assert.Equal(t, []Pair{{"Camera", "Screen"}, {"Side", "Screen"}}, pairs)
	assert.Equal(t, []string{"Camera", "Side"}, m.CameraNames())
	assert.Equal(t, []string{"Screen"}, m.RectangleNames())

	cam, ok := m.Camera("Camera")
	require.True(t, ok)
	assert.Equal(t, defaultIntrinsics(), cam.Intrinsics)
	assert.Equal(t, DefaultLens, cam.Lens)

	side, _ := m.Camera("Side")
	assert.Equal(t, offaxis.SensorFitHorizontal, side.Intrinsics.SensorFit)
	assert.Equal(t, r3.Vec{X: 1}, side.Matrix.Translation())
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{"render":`},
		{"zero resolution", `{"render": {"resolution_x": 0, "resolution_y": 10}}`},
		{"bad sensor fit", `{"render": {"resolution_x": 1, "resolution_y": 1}, "cameras": {"C": {"location": [0,0,0], "sensor_fit": "DIAGONAL"}}}`},
		{"dangling pair", `{"render": {"resolution_x": 1, "resolution_y": 1}, "pairs": [{"camera": "C", "rectangle": "R"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := LoadFile(writeRig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, _, err := LoadFile(filepath.Join(t.TempDir(), "rig.yaml"))
	assert.Error(t, err)
}

func TestSaveFile_RoundTrip(t *testing.T) {
	m, pairs, err := LoadFile(writeRig(t, testRig))
	require.NoError(t, err)

	for _, p := range pairs {
		_, err := Update(m, m, p.Camera, p.Rectangle, offaxis.DefaultOptions())
		require.NoError(t, err)
	}

	out := filepath.Join(t.TempDir(), "solved.json")
	require.NoError(t, SaveFile(out, m, pairs))

	reloaded, reloadedPairs, err := LoadFile(out)
	require.NoError(t, err)
	assert.Equal(t, pairs, reloadedPairs)

	for _, name := range m.CameraNames() {
		want, _ := m.Camera(name)
		got, ok := reloaded.Camera(name)
		require.True(t, ok)
		assert.Equal(t, want, got, name)
	}
	side, _ := reloaded.Camera("Side")
	assert.InDelta(t, -0.5, side.ShiftX, 1e-9)
}
