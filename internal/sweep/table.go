package sweep

import (
	"sort"

	"github.com/banshee-data/shotboundary/internal/sbd"
)

// Table is the result of a sweep. Rows holds every per-video row followed by
// its point's overall row, in evaluation order; Overall holds only the
// overall rows, one per threshold point.
type Table struct {
	Mode    sbd.ThresholdMode
	Rows    []sbd.MetricRow
	Overall []sbd.MetricRow
}

// RowsAt returns the rows of one threshold point, overall row last.
func (t *Table) RowsAt(p sbd.ThresholdPoint) []sbd.MetricRow {
	var out []sbd.MetricRow
	for _, r := range t.Rows {
		if r.Point == p {
			out = append(out, r)
		}
	}
	return out
}

// Curve returns the overall rows ordered by descending α, then descending β.
// This is the order in which PR and ROC curves are traced.
func (t *Table) Curve() []sbd.MetricRow {
	out := append([]sbd.MetricRow(nil), t.Overall...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Point.Alpha != out[j].Point.Alpha {
			return out[i].Point.Alpha > out[j].Point.Alpha
		}
		return out[i].Point.Beta > out[j].Point.Beta
	})
	return out
}

// Best returns the overall row with the highest F1. Ties go to the higher α,
// then the higher β, i.e. the strictest threshold.
func (t *Table) Best() (sbd.MetricRow, bool) {
	curve := t.Curve()
	if len(curve) == 0 {
		return sbd.MetricRow{}, false
	}
	best := curve[0]
	for _, r := range curve[1:] {
		if r.Metrics.F1 > best.Metrics.F1 {
			best = r
		}
	}
	return best, true
}
