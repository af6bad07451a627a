package agent

import (
	"fmt"
	"time"

	"github.com/go-analyze/charts"
)

// ActivityMetrics summarizes a run's breakpoint lifecycle counts and
// capture latency, the input to the Activity Report chart.
type ActivityMetrics struct {
	GeneratedAt      time.Time
	BreakpointsSet   int
	BreakpointsHit   int
	BreakpointsError int
	BreakpointsClear int
	// CaptureLatenciesMs is one sample per completed capture.
	CaptureLatenciesMs []float64
}

// RenderActivityReport renders metrics as a PNG summarizing lifecycle
// counts and capture latency distribution: two horizontal bar charts laid
// out top-to-bottom, in the same painter/layout-builder style as the
// teacher's module-change report.
func RenderActivityReport(metrics ActivityMetrics) ([]byte, error) {
	painterOpt := charts.PainterOptions{
		OutputFormat: charts.ChartOutputPNG,
		Width:        800,
		Height:       480,
	}
	p := charts.NewPainter(painterOpt)
	p.FilledRect(0, 0, p.Width(), p.Height(), charts.ColorWhite, charts.ColorWhite, 0)
	p = p.Child(charts.PainterPaddingOption(charts.NewBox(0, 10, 10, 10)))

	titleFont := charts.FontStyle{
		FontSize:  16,
		FontColor: charts.ColorBlack,
		Font:      charts.GetDefaultFont(),
	}
	title := fmt.Sprintf("snapshot activity @ %s", metrics.GeneratedAt.Format(time.RFC3339))
	titleBox := p.MeasureText(title, 0, titleFont)
	p.Text(title, 0, titleBox.Height(), 0, titleFont)

	painters, err := p.LayoutByRows().
		RowGap(fmt.Sprintf("%d", titleBox.Height()+8)).
		Row().Height("220").Columns("lifecycle").
		Row().Columns("latency").
		Build()
	if err != nil {
		return nil, fmt.Errorf("build activity report layout: %w", err)
	}

	lifecycleOpt := charts.NewHorizontalBarChartOptionWithData([][]float64{
		{float64(metrics.BreakpointsSet)},
		{float64(metrics.BreakpointsHit)},
		{float64(metrics.BreakpointsError)},
		{float64(metrics.BreakpointsClear)},
	})
	lifecycleOpt.Title.Text = "breakpoint lifecycle (set / hit / error / cleared)"
	if err := painters["lifecycle"].HorizontalBarChart(lifecycleOpt); err != nil {
		return nil, fmt.Errorf("render lifecycle chart: %w", err)
	}

	buckets := latencyBuckets(metrics.CaptureLatenciesMs)
	latencyOpt := charts.NewHorizontalBarChartOptionWithData([][]float64{
		{buckets[0]}, {buckets[1]}, {buckets[2]}, {buckets[3]},
	})
	latencyOpt.Title.Text = "capture latency (ms), bucketed: <1 / <10 / <100 / >=100"
	if err := painters["latency"].HorizontalBarChart(latencyOpt); err != nil {
		return nil, fmt.Errorf("render latency chart: %w", err)
	}

	return p.Bytes()
}

// latencyBuckets sorts samples into four buckets: <1ms, <10ms, <100ms, >=100ms.
func latencyBuckets(samples []float64) [4]float64 {
	var buckets [4]float64
	for _, ms := range samples {
		switch {
		case ms < 1:
			buckets[0]++
		case ms < 10:
			buckets[1]++
		case ms < 100:
			buckets[2]++
		default:
			buckets[3]++
		}
	}
	return buckets
}
