package report

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// WriteChart draws total time per stage, plus overhead, as a bar chart.
// The image format follows the file extension (.png, .svg, .pdf).
func WriteChart(s Summary, path string) error {
	values := make(plotter.Values, 0, len(s.Stages)+1)
	names := make([]string, 0, len(s.Stages)+1)
	for _, st := range s.Stages {
		values = append(values, st.Total.Seconds())
		names = append(names, string(st.Stage))
	}
	overhead := s.Overhead.Seconds()
	if overhead < 0 {
		overhead = 0
	}
	values = append(values, overhead)
	names = append(names, "overhead")

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Stage time (%d tests)", s.Total)
	p.Y.Label.Text = "seconds"

	bars, err := plotter.NewBarChart(values, vg.Points(28))
	if err != nil {
		return fmt.Errorf("build bar chart: %w", err)
	}
	bars.Color = plotutil.Color(0)
	bars.LineStyle.Width = vg.Length(0)

	p.Add(bars)
	p.NominalX(names...)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save chart: %w", err)
	}
	return nil
}
