// Package report renders solver output for humans: a frustum diagram of a
// single solve and an HTML chart of lens and shift across a rig.
package report

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/banshee-data/offaxis/internal/offaxis"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

var (
	rectColor    = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	rayColor     = color.RGBA{R: 127, G: 127, B: 127, A: 255}
	nearColor    = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	cameraColor  = color.Black
	defaultWidth = 12 * vg.Inch
)

// view selects which camera-local axis runs across a panel.
type view struct {
	title string
	axis  string
	pick  func(r3.Vec) float64
	lo    func(offaxis.FrustumBounds) float64
	hi    func(offaxis.FrustumBounds) float64
}

var views = []view{
	{
		title: "Top view",
		axis:  "Right",
		pick:  func(v r3.Vec) float64 { return v.X },
		lo:    func(b offaxis.FrustumBounds) float64 { return b.Left },
		hi:    func(b offaxis.FrustumBounds) float64 { return b.Right },
	},
	{
		title: "Side view",
		axis:  "Up",
		pick:  func(v r3.Vec) float64 { return v.Y },
		lo:    func(b offaxis.FrustumBounds) float64 { return b.Bottom },
		hi:    func(b offaxis.FrustumBounds) float64 { return b.Top },
	},
}

// FrustumPlots builds the top and side panels of a solved frustum. Both are
// drawn in the solved camera frame: the camera sits at the origin and depth
// runs along the view direction, so an off-axis solve shows as a lopsided
// frustum against a centred optical axis.
func FrustumPlots(in offaxis.Inputs, res offaxis.SolverResult) ([]*plot.Plot, error) {
	if !res.Transform.IsRigid(offaxis.MatrixValidationTolerance) {
		return nil, fmt.Errorf("camera transform is not rigid")
	}

	local := func(p r3.Vec) r3.Vec { return res.Transform.ApplyInverse(p) }
	corners := []r3.Vec{
		local(in.Target.BottomLeft),
		local(in.Target.BottomRight),
		local(in.Target.TopRight()),
		local(in.Target.TopLeft),
	}
	depth := -corners[0].Z
	clip := in.Camera.ClipStart

	plots := make([]*plot.Plot, 0, len(views))
	for _, v := range views {
		p := plot.New()
		p.Title.Text = v.title
		p.X.Label.Text = "Depth"
		p.Y.Label.Text = v.axis

		lo, hi := v.pick(corners[0]), v.pick(corners[0])
		for _, c := range corners[1:] {
			lo = min(lo, v.pick(c))
			hi = max(hi, v.pick(c))
		}

		rect, err := segment(depth, lo, depth, hi, rectColor, 2)
		if err != nil {
			return nil, err
		}
		p.Add(rect)
		p.Legend.Add("rectangle", rect)

		for i, end := range []float64{lo, hi} {
			ray, err := segment(0, 0, depth, end, rayColor, 1)
			if err != nil {
				return nil, err
			}
			ray.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
			p.Add(ray)
			if i == 0 {
				p.Legend.Add("frustum", ray)
			}
		}

		near, err := segment(clip, v.lo(res.Bounds), clip, v.hi(res.Bounds), nearColor, 2)
		if err != nil {
			return nil, err
		}
		p.Add(near)
		p.Legend.Add("near plane", near)

		axis, err := segment(0, 0, depth, 0, cameraColor, 0.5)
		if err != nil {
			return nil, err
		}
		p.Add(axis)

		cam, err := plotter.NewScatter(plotter.XYs{{X: 0, Y: 0}})
		if err != nil {
			return nil, err
		}
		cam.Color = cameraColor
		p.Add(cam)
		p.Legend.Add("camera", cam)

		p.Legend.Top = true
		p.Legend.Left = true
		p.Add(plotter.NewGrid())
		plots = append(plots, p)
	}
	return plots, nil
}

func segment(x0, y0, x1, y1 float64, c color.Color, width float64) (*plotter.Line, error) {
	line, err := plotter.NewLine(plotter.XYs{{X: x0, Y: y0}, {X: x1, Y: y1}})
	if err != nil {
		return nil, err
	}
	line.Color = c
	line.Width = vg.Points(width)
	return line, nil
}

// WriteFrustumPNG renders both panels side by side as a PNG.
func WriteFrustumPNG(w io.Writer, in offaxis.Inputs, res offaxis.SolverResult) error {
	plots, err := FrustumPlots(in, res)
	if err != nil {
		return err
	}

	img := vgimg.New(defaultWidth, defaultWidth/2)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      1,
		Cols:      len(plots),
		PadX:      vg.Millimeter * 4,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}
	canvases := plot.Align([][]*plot.Plot{plots}, tiles, dc)
	for i, p := range plots {
		p.Draw(canvases[0][i])
	}

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

// PlotFrustum writes the frustum diagram to a PNG file at path.
func PlotFrustum(path string, in offaxis.Inputs, res offaxis.SolverResult) error {
	if ext := filepath.Ext(path); ext != ".png" {
		return fmt.Errorf("frustum plot must be a .png file, got %q", ext)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteFrustumPNG(f, in, res); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
