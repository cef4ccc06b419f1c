package report

import (
	"fmt"
	"io"

	"github.com/banshee-data/offaxis/internal/rig"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// AssetsHost is where rendered pages load the echarts scripts from.
var AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// Row is one bar group in a rig chart. Failed pairs render as empty bars.
type Row struct {
	Label  string
	Lens   *float64
	ShiftX float64
	ShiftY float64
	Failed bool
}

// RigRows converts rig results into chart rows.
func RigRows(results []rig.PairResult) []Row {
	rows := make([]Row, 0, len(results))
	for _, r := range results {
		row := Row{Label: r.Pair.String(), Failed: r.Err != nil}
		if r.Err == nil {
			row.Lens = r.Result.Lens
			row.ShiftX = r.Result.ShiftX
			row.ShiftY = r.Result.ShiftY
		}
		rows = append(rows, row)
	}
	return rows
}

// ShiftChart renders an HTML page with a shift bar chart and, when any pair
// is perspective, a lens bar chart.
func ShiftChart(w io.Writer, title string, rows []Row) error {
	labels := make([]string, 0, len(rows))
	shiftX := make([]opts.BarData, 0, len(rows))
	shiftY := make([]opts.BarData, 0, len(rows))
	lens := make([]opts.BarData, 0, len(rows))
	anyLens := false
	failed := 0

	for _, r := range rows {
		labels = append(labels, r.Label)
		if r.Failed {
			failed++
			shiftX = append(shiftX, opts.BarData{Name: "failed"})
			shiftY = append(shiftY, opts.BarData{Name: "failed"})
			lens = append(lens, opts.BarData{Name: "failed"})
			continue
		}
		shiftX = append(shiftX, opts.BarData{Value: r.ShiftX})
		shiftY = append(shiftY, opts.BarData{Value: r.ShiftY})
		if r.Lens != nil {
			anyLens = true
			lens = append(lens, opts.BarData{Value: *r.Lens})
		} else {
			lens = append(lens, opts.BarData{Name: "orthographic"})
		}
	}

	subtitle := fmt.Sprintf("pairs=%d failed=%d", len(rows), failed)

	shifts := charts.NewBar()
	shifts.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "480px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Sensor shift", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "shift (frame widths)"}),
	)
	shifts.SetXAxis(labels).
		AddSeries("shift_x", shiftX).
		AddSeries("shift_y", shiftY)

	page := components.NewPage()
	page.SetPageTitle(title)
	page.SetAssetsHost(AssetsHost)
	page.AddCharts(shifts)

	if anyLens {
		bar := charts.NewBar()
		bar.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px", AssetsHost: AssetsHost}),
			charts.WithTitleOpts(opts.Title{Title: "Focal length", Subtitle: subtitle}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithYAxisOpts(opts.YAxis{Name: "lens (mm)"}),
		)
		bar.SetXAxis(labels).
			AddSeries("lens", lens,
				charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
			)
		page.AddCharts(bar)
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	return nil
}
