package curves

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/shotboundary/internal/sbd"
)

// ReportFileName is the HTML report written next to the PNG curves.
const ReportFileName = "curves.html"

// WriteHTMLReport renders the PR and ROC curves of rows as one interactive
// page. subtitle is shown under each chart title.
func WriteHTMLReport(w io.Writer, rows []sbd.MetricRow, subtitle string) error {
	if len(rows) == 0 {
		return ErrNoData
	}
	page := components.NewPage()
	page.SetPageTitle("Shot boundary evaluation")
	for _, c := range []Curve{PRCurve(rows), ROCCurve(rows)} {
		page.AddCharts(lineChart(c, subtitle))
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func lineChart(c Curve, subtitle string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: c.Title, Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: c.Title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Min: 0, Max: c.XMax, Name: c.XLabel, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Min: 0, Max: c.YMax, Name: c.YLabel, NameLocation: "middle", NameGap: 35}),
	)

	data := lineData(c)
	if c.StepPost {
		line.AddSeries(c.Series, data,
			charts.WithItemStyleOpts(opts.ItemStyle{Color: "#0000ff"}),
			charts.WithAreaStyleOpts(opts.AreaStyle{}),
		)
	} else {
		line.AddSeries(c.Series, data,
			charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ffa500"}),
		)
	}
	return line
}

// lineData converts c into (x, y) pairs. A post-step curve gets an extra
// corner point before every change so the line holds y until the next x.
func lineData(c Curve) []opts.LineData {
	data := make([]opts.LineData, 0, 2*c.Len())
	for i := 0; i < c.Len(); i++ {
		x, y := c.XY(i)
		if c.StepPost && i > 0 {
			data = append(data, opts.LineData{Value: []interface{}{x, c.Y[i-1]}})
		}
		data = append(data, opts.LineData{Value: []interface{}{x, y}})
	}
	return data
}
