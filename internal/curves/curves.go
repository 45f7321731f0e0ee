// Package curves renders the precision-recall and ROC curves of a sweep.
// Curves are plain numeric series handed to a Sink; PNGSink draws them with
// gonum/plot and WriteHTMLReport with go-echarts.
package curves

import (
	"errors"
	"fmt"

	"github.com/banshee-data/shotboundary/internal/monitoring"
	"github.com/banshee-data/shotboundary/internal/sbd"
)

var logger = monitoring.NewLogger("curves")

// ErrNoData is returned when there are no sweep rows to draw.
var ErrNoData = errors.New("curves: no data")

// Curve is one chart. Points are drawn in the order given.
type Curve struct {
	Name   string // file stem, e.g. "pr_curve"
	Title  string
	Series string
	XLabel string
	YLabel string
	X      []float64
	Y      []float64
	XMax   float64
	YMax   float64

	// StepPost draws a post-step line filled down to the x-axis.
	StepPost bool
}

// Len returns the number of points.
func (c Curve) Len() int { return len(c.X) }

// XY returns point i.
func (c Curve) XY(i int) (float64, float64) { return c.X[i], c.Y[i] }

// PRCurve traces recall (x) against precision (y) over rows, which should be
// the sweep's overall rows ordered by descending α.
func PRCurve(rows []sbd.MetricRow) Curve {
	c := Curve{
		Name:     "pr_curve",
		Title:    "2-class Precision-Recall curve",
		Series:   "PR",
		XLabel:   "Recall",
		YLabel:   "Precision",
		XMax:     1.0,
		YMax:     1.05,
		StepPost: true,
	}
	for _, r := range rows {
		c.X = append(c.X, r.Metrics.Recall)
		c.Y = append(c.Y, r.Metrics.Precision)
	}
	return c
}

// ROCCurve traces FPR (x) against TPR (y) over the same rows.
func ROCCurve(rows []sbd.MetricRow) Curve {
	c := Curve{
		Name:   "roc_curve",
		Title:  "Receiver Operating Characteristic (ROC) Curve",
		Series: "ROC",
		XLabel: "False Positive Rate",
		YLabel: "True Positive Rate",
		XMax:   1.0,
		YMax:   1.0,
	}
	for _, r := range rows {
		c.X = append(c.X, r.Metrics.FPR)
		c.Y = append(c.Y, r.Metrics.TPR)
	}
	return c
}

// Sink consumes curves.
type Sink interface {
	Draw(c Curve) error
}

// Render draws the PR and ROC curves of rows into sink.
func Render(sink Sink, rows []sbd.MetricRow) error {
	if len(rows) == 0 {
		return ErrNoData
	}
	for _, c := range []Curve{PRCurve(rows), ROCCurve(rows)} {
		if err := sink.Draw(c); err != nil {
			return fmt.Errorf("draw %s: %w", c.Name, err)
		}
	}
	return nil
}
