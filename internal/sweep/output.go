package sweep

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/shotboundary/internal/sbd"
)

// MetricRowHeader is the header of every per-threshold results file.
var MetricRowHeader = []string{"vid_name", "tp", "fp", "tn", "fn", "p", "r", "acc", "f1_score", "tp_rate", "fp_rate"}

// SummaryHeader is the header of the sweep summary file.
var SummaryHeader = append([]string{"alpha", "beta"}, MetricRowHeader[1:]...)

// SummaryFileName is the sweep summary written next to the per-threshold files.
const SummaryFileName = "final_evaluation_pr_curve.csv"

const resultFilePrefix = "final_results_th-"

// FormatFloat renders v the way the historical result files do: shortest
// round-trip digits, always with a decimal point ("1.0", "0.05").
func FormatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

// ResultFileName returns "final_results_th-<alpha>-<beta>.csv".
func ResultFileName(p sbd.ThresholdPoint) string {
	return resultFilePrefix + FormatFloat(p.Alpha) + "-" + FormatFloat(p.Beta) + ".csv"
}

// ParseResultFileName recovers the threshold point from a results filename.
func ParseResultFileName(name string) (sbd.ThresholdPoint, error) {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, resultFilePrefix) || !strings.HasSuffix(base, ".csv") {
		return sbd.ThresholdPoint{}, fmt.Errorf("%q is not a per-threshold results file", base)
	}
	body := strings.TrimSuffix(strings.TrimPrefix(base, resultFilePrefix), ".csv")
	// Values are non-negative in practice; split on the last '-' so a
	// negative beta still parses.
	i := strings.LastIndex(body, "-")
	if i > 0 && body[i-1] == '-' {
		i--
	}
	if i <= 0 {
		return sbd.ThresholdPoint{}, fmt.Errorf("%q has no alpha-beta pair", base)
	}
	a, err := strconv.ParseFloat(body[:i], 64)
	if err != nil {
		return sbd.ThresholdPoint{}, fmt.Errorf("alpha in %q: %w", base, err)
	}
	b, err := strconv.ParseFloat(body[i+1:], 64)
	if err != nil {
		return sbd.ThresholdPoint{}, fmt.Errorf("beta in %q: %w", base, err)
	}
	return sbd.ThresholdPoint{Alpha: a, Beta: b}, nil
}

func newWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	return cw
}

func countsAndMetrics(r sbd.MetricRow) []string {
	c, m := r.Counts, r.Metrics
	return []string{
		strconv.Itoa(c.TP), strconv.Itoa(c.FP), strconv.Itoa(c.TN), strconv.Itoa(c.FN),
		FormatFloat(m.Precision), FormatFloat(m.Recall), FormatFloat(m.Accuracy),
		FormatFloat(m.F1), FormatFloat(m.TPR), FormatFloat(m.FPR),
	}
}

// WriteMetricRows writes rows (per-video rows followed by the overall row)
// as one per-threshold results file.
func WriteMetricRows(w io.Writer, rows []sbd.MetricRow) error {
	cw := newWriter(w)
	if err := cw.Write(MetricRowHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(append([]string{r.VideoName}, countsAndMetrics(r)...)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// EncodeMetricRows is WriteMetricRows into memory.
func EncodeMetricRows(rows []sbd.MetricRow) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteMetricRows(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteSummary writes one line per overall row, prefixed by its α and β.
func WriteSummary(w io.Writer, overall []sbd.MetricRow) error {
	cw := newWriter(w)
	if err := cw.Write(SummaryHeader); err != nil {
		return err
	}
	for _, r := range overall {
		rec := append([]string{FormatFloat(r.Point.Alpha), FormatFloat(r.Point.Beta)}, countsAndMetrics(r)...)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadMetricRows parses a per-threshold results file. Every row is tagged
// with point, which the file itself does not carry (see ParseResultFileName).
func ReadMetricRows(r io.Reader, point sbd.ThresholdPoint) ([]sbd.MetricRow, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = len(MetricRowHeader)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read metric rows: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read metric rows: missing header")
	}
	if records[0][0] != MetricRowHeader[0] {
		return nil, fmt.Errorf("read metric rows: unexpected header %v", records[0])
	}

	rows := make([]sbd.MetricRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		row := sbd.MetricRow{VideoName: rec[0], Point: point}
		ints := []*int{&row.Counts.TP, &row.Counts.FP, &row.Counts.TN, &row.Counts.FN}
		for j, dst := range ints {
			v, err := strconv.Atoi(strings.TrimSpace(rec[1+j]))
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i+2, MetricRowHeader[1+j], err)
			}
			*dst = v
		}
		floats := []*float64{
			&row.Metrics.Precision, &row.Metrics.Recall, &row.Metrics.Accuracy,
			&row.Metrics.F1, &row.Metrics.TPR, &row.Metrics.FPR,
		}
		for j, dst := range floats {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[5+j]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i+2, MetricRowHeader[5+j], err)
			}
			*dst = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}
