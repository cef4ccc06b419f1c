package offaxis

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

func squareCamera() CameraIntrinsics {
	return CameraIntrinsics{
		SensorFit:      SensorFitAuto,
		SensorWidth:    36,
		SensorHeight:   36,
		ClipStart:      0.1,
		ProjectionType: ProjectionPerspective,
	}
}

func onAxisInputs() Inputs {
	return Inputs{
		CameraPosition: r3.Vec{},
		Target: TargetRectangle{
			BottomLeft:  r3.Vec{X: -0.5, Y: -0.5, Z: -1},
			BottomRight: r3.Vec{X: 0.5, Y: -0.5, Z: -1},
			TopLeft:     r3.Vec{X: -0.5, Y: 0.5, Z: -1},
		},
		Camera:     squareCamera(),
		Resolution: Resolution{X: 1000, Y: 1000},
	}
}

func TestSolve_OnAxis(t *testing.T) {
	res, err := Solve(onAxisInputs(), DefaultOptions())
	require.NoError(t, err)

	require.NotNil(t, res.Lens)
	// 36mm sensor framing a 1-unit-wide rectangle at distance 1.
	assert.InDelta(t, 36.0, *res.Lens, 1e-9)
	assert.InDelta(t, 0.0, res.ShiftX, 1e-12)
	assert.InDelta(t, 0.0, res.ShiftY, 1e-12)

	want := FrustumBounds{Left: -0.05, Right: 0.05, Bottom: -0.05, Top: 0.05}
	if diff := cmp.Diff(want, res.Bounds, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("bounds mismatch (-want +got):\n%s", diff)
	}

	// Rectangle already faces the camera, so no rotation is needed.
	if diff := cmp.Diff(IdentityTransform(), res.Transform, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("transform mismatch (-want +got):\n%s", diff)
	}
}

func TestSolve_OffAxis(t *testing.T) {
	in := onAxisInputs()
	in.Target = TargetRectangle{
		BottomLeft:  r3.Vec{X: 0, Y: -0.5, Z: -1},
		BottomRight: r3.Vec{X: 1, Y: -0.5, Z: -1},
		TopLeft:     r3.Vec{X: 0, Y: 0.5, Z: -1},
	}

	res, err := Solve(in, DefaultOptions())
	require.NoError(t, err)

	assert.Greater(t, res.ShiftX, 0.0)
	assert.InDelta(t, 0.5, res.ShiftX, 1e-12)
	assert.InDelta(t, 0.0, res.ShiftY, 1e-12)
	require.NotNil(t, res.Lens)
	assert.InDelta(t, 36.0, *res.Lens, 1e-9)
}

func TestSolve_CameraPositionPreserved(t *testing.T) {
	in := onAxisInputs()
	in.CameraPosition = r3.Vec{X: 0.3, Y: -0.2, Z: 2}

	res, err := Solve(in, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, in.CameraPosition, res.Transform.Translation())
	assert.True(t, res.Transform.IsRigid(MatrixValidationTolerance))
}

func TestSolve_Orthographic(t *testing.T) {
	cases := []Inputs{onAxisInputs(), onAxisInputs()}
	cases[1].Target.BottomLeft.X = 0
	cases[1].Target.TopLeft.X = 0
	cases[1].Target.BottomRight.X = 1

	for _, in := range cases {
		in.Camera.ProjectionType = ProjectionOrthographic
		res, err := Solve(in, DefaultOptions())
		require.NoError(t, err)
		assert.Nil(t, res.Lens)
	}
}

func TestSolve_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *Inputs)
		want   error
	}{
		{
			name: "skewed quad",
			mutate: func(in *Inputs) {
				// dot of unit edges is about 0.29
				in.Target.TopLeft = r3.Vec{X: -0.2, Y: 0.5, Z: -1}
			},
			want: ErrNonRectangularTarget,
		},
		{
			name: "slightly skewed quad",
			mutate: func(in *Inputs) {
				in.Target.TopLeft = r3.Vec{X: -0.45, Y: 0.5, Z: -1}
			},
			want: ErrNonRectangularTarget,
		},
		{
			name: "coincident corners",
			mutate: func(in *Inputs) {
				in.Target.BottomRight = in.Target.BottomLeft
			},
			want: ErrDegenerateTarget,
		},
		{
			name: "aspect mismatch",
			mutate: func(in *Inputs) {
				in.Target.BottomLeft = r3.Vec{X: -1, Y: -0.5, Z: -1}
				in.Target.BottomRight = r3.Vec{X: 1, Y: -0.5, Z: -1}
				in.Target.TopLeft = r3.Vec{X: -1, Y: 0.5, Z: -1}
			},
			want: ErrInconsistentFrustum,
		},
		{
			name: "camera behind plane",
			mutate: func(in *Inputs) {
				in.CameraPosition = r3.Vec{Z: -2}
			},
			want: ErrCameraBehindPlane,
		},
		{
			name: "camera in plane",
			mutate: func(in *Inputs) {
				in.CameraPosition = r3.Vec{X: 3, Z: -1}
			},
			want: ErrCameraBehindPlane,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := onAxisInputs()
			tt.mutate(&in)

			res, err := Solve(in, DefaultOptions())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
			assert.Equal(t, SolverResult{}, res)

			var gerr *GeometryError
			require.True(t, errors.As(err, &gerr))
			assert.NotEmpty(t, gerr.Detail)
		})
	}
}

func TestSolve_BehindPlaneAllowed(t *testing.T) {
	in := onAxisInputs()
	in.CameraPosition = r3.Vec{Z: -2}

	opts := DefaultOptions()
	opts.RejectBehindPlane = false
	res, err := Solve(in, opts)
	require.NoError(t, err)
	// d is -1, so the frustum comes back mirrored.
	assert.InDelta(t, 0.05, res.Bounds.Left, 1e-12)
	assert.InDelta(t, -0.05, res.Bounds.Right, 1e-12)
}

func TestSolve_InvalidSettings(t *testing.T) {
	in := onAxisInputs()
	in.Camera.ClipStart = 0
	_, err := Solve(in, DefaultOptions())
	assert.Error(t, err)

	in = onAxisInputs()
	in.Resolution = Resolution{X: 0, Y: 10}
	_, err = Solve(in, DefaultOptions())
	assert.Error(t, err)

	in = onAxisInputs()
	opts := DefaultOptions()
	opts.PixelAspectY = 0
	_, err = Solve(in, opts)
	assert.Error(t, err)
}

func TestSolve_SensorFit(t *testing.T) {
	// 2:1 rectangle rendered at 2000x1000.
	base := Inputs{
		Target: TargetRectangle{
			BottomLeft:  r3.Vec{X: -1, Y: -0.5, Z: -1},
			BottomRight: r3.Vec{X: 1, Y: -0.5, Z: -1},
			TopLeft:     r3.Vec{X: -1, Y: 0.5, Z: -1},
		},
		Camera: CameraIntrinsics{
			SensorWidth:  36,
			SensorHeight: 24,
			ClipStart:    0.1,
		},
		Resolution: Resolution{X: 2000, Y: 1000},
	}

	tests := []struct {
		fit      SensorFit
		wantLens float64
	}{
		{SensorFitAuto, 18},       // horizontal: 36 * 1 / 2
		{SensorFitHorizontal, 18}, // same
		{SensorFitVertical, 24},   // 24 * 0.1 / 1000 * 2000 / 0.2
	}
	for _, tt := range tests {
		t.Run(string(tt.fit), func(t *testing.T) {
			in := base
			in.Camera.SensorFit = tt.fit
			res, err := Solve(in, DefaultOptions())
			require.NoError(t, err)
			require.NotNil(t, res.Lens)
			assert.InDelta(t, tt.wantLens, *res.Lens, 1e-9)
		})
	}
}

func TestEffectiveSensorFit(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, SensorFitHorizontal, EffectiveSensorFit(SensorFitAuto, Resolution{X: 100, Y: 100}, opts))
	assert.Equal(t, SensorFitHorizontal, EffectiveSensorFit(SensorFitAuto, Resolution{X: 200, Y: 100}, opts))
	assert.Equal(t, SensorFitVertical, EffectiveSensorFit(SensorFitAuto, Resolution{X: 100, Y: 200}, opts))
	assert.Equal(t, SensorFitVertical, EffectiveSensorFit(SensorFitVertical, Resolution{X: 200, Y: 100}, opts))
	assert.Equal(t, SensorFitHorizontal, EffectiveSensorFit("", Resolution{X: 1, Y: 1}, opts))

	opts.PixelAspectY = 3
	assert.Equal(t, SensorFitVertical, EffectiveSensorFit(SensorFitAuto, Resolution{X: 200, Y: 100}, opts))
}

// randomScene builds a valid rectangle of the given resolution aspect in a
// random pose with a camera somewhere on its front side.
func randomScene(rng *rand.Rand, res Resolution) (Inputs, Basis) {
	q := quat.Number{Real: rng.NormFloat64(), Imag: rng.NormFloat64(), Jmag: rng.NormFloat64(), Kmag: rng.NormFloat64()}
	q = quat.Scale(1/quat.Abs(q), q)
	b := Basis{
		Right:  Rotate(q, r3.Vec{X: 1}),
		Up:     Rotate(q, r3.Vec{Y: 1}),
		Normal: Rotate(q, r3.Vec{Z: 1}),
	}

	w := 0.5 + 4*rng.Float64()
	h := w * float64(res.Y) / float64(res.X)
	center := r3.Vec{X: 10*rng.Float64() - 5, Y: 10*rng.Float64() - 5, Z: 10*rng.Float64() - 5}
	bl := center
	rect := TargetRectangle{
		BottomLeft:  bl,
		BottomRight: r3.Add(bl, r3.Scale(w, b.Right)),
		TopLeft:     r3.Add(bl, r3.Scale(h, b.Up)),
	}

	cam := r3.Add(bl, r3.Scale(0.5+5*rng.Float64(), b.Normal))
	cam = r3.Add(cam, r3.Scale(6*rng.Float64()-3, b.Right))
	cam = r3.Add(cam, r3.Scale(6*rng.Float64()-3, b.Up))

	fits := []SensorFit{SensorFitAuto, SensorFitHorizontal, SensorFitVertical}
	return Inputs{
		CameraPosition: cam,
		Target:         rect,
		Camera: CameraIntrinsics{
			SensorFit:    fits[rng.Intn(len(fits))],
			SensorWidth:  36,
			SensorHeight: 24,
			ClipStart:    0.01 + rng.Float64(),
		},
		Resolution: res,
	}, b
}

func TestSolve_Orthonormality(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		in, b := randomScene(rng, Resolution{X: 1920, Y: 1080})
		res, err := Solve(in, DefaultOptions())
		require.NoError(t, err, "case %d", i)

		right, up, normal := res.Transform.Column(0), res.Transform.Column(1), res.Transform.Column(2)
		for _, pair := range [][2]r3.Vec{{right, b.Right}, {up, b.Up}, {normal, b.Normal}} {
			assert.InDelta(t, 0, r3.Norm(r3.Sub(pair[0], pair[1])), 1e-6, "case %d", i)
		}
		assert.InDelta(t, 0, r3.Dot(right, up), 1e-6)
		assert.InDelta(t, 0, r3.Dot(up, normal), 1e-6)
		assert.InDelta(t, 1, r3.Norm(normal), 1e-6)
	}
}

func TestSolve_ProjectiveRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	resolutions := []Resolution{{1000, 1000}, {1920, 1080}, {1080, 1920}, {640, 480}}
	for i := 0; i < 200; i++ {
		res := resolutions[i%len(resolutions)]
		in, _ := randomScene(rng, res)
		opts := DefaultOptions()

		out, err := Solve(in, opts)
		require.NoError(t, err, "case %d", i)

		worst, err := Verify(in, out, opts)
		require.NoError(t, err)
		assert.Less(t, worst, 1e-6, "case %d: corners off by %g", i, worst)
	}
}

func TestSolve_DeterministicFailure(t *testing.T) {
	in := onAxisInputs()
	in.Target.TopLeft = r3.Vec{X: 0, Y: 0.5, Z: -1}

	_, err1 := Solve(in, DefaultOptions())
	_, err2 := Solve(in, DefaultOptions())
	require.Error(t, err1)
	assert.Equal(t, err1.Error(), err2.Error())
}
