// Package sbd implements the evaluation core for shot-boundary detection:
// thresholding of per-frame distance streams, candidate selection, shot
// reconstruction, frame-level alignment against ground truth and the
// derived precision/recall/ROC metrics.
package sbd

import "fmt"

// RawResult is the detector output for one video. Distance k describes the
// transition between frames StartFrame+k and StartFrame+k+1.
type RawResult struct {
	VideoName  string
	StartFrame int
	EndFrame   int
	Distances  []float64
}

// BoundaryEvent marks a cut between two adjacent frames.
type BoundaryEvent struct {
	VideoName string
	Prev      int
	Curr      int
}

// NoBoundary returns the sentinel event used when a video has no cuts.
func NoBoundary(video string) BoundaryEvent {
	return BoundaryEvent{VideoName: video, Prev: -1, Curr: -1}
}

// IsSentinel reports whether e is the "no boundaries detected" marker.
func (e BoundaryEvent) IsSentinel() bool {
	return e.Prev == -1 && e.Curr == -1
}

func (e BoundaryEvent) key() [2]int {
	return [2]int{e.Prev, e.Curr}
}

// Shot is a contiguous, inclusive frame range of a video. IDs start at 1.
type Shot struct {
	ID         int
	VideoName  string
	StartFrame int
	EndFrame   int
}

// String renders the shot in the "vid_name;shot_id;start;end" export layout.
func (s Shot) String() string {
	return fmt.Sprintf("%s;%d;%d;%d", s.VideoName, s.ID, s.StartFrame, s.EndFrame)
}

// ThresholdMode selects how the per-frame threshold vector is built.
type ThresholdMode string

const (
	ThresholdFixed    ThresholdMode = "fixed"
	ThresholdAdaptive ThresholdMode = "adaptive"
)

// ParseThresholdMode validates a configured threshold mode.
func ParseThresholdMode(s string) (ThresholdMode, error) {
	switch ThresholdMode(s) {
	case ThresholdFixed, ThresholdAdaptive:
		return ThresholdMode(s), nil
	}
	return "", fmt.Errorf("%w: unknown threshold_mode %q", ErrInvalidConfiguration, s)
}

// SelectionPolicy selects how boundary candidates are picked from a record.
type SelectionPolicy int

const (
	// SelectAllAbove emits every index whose distance exceeds its threshold.
	// Indices are record-local.
	SelectAllAbove SelectionPolicy = 0
	// SelectArgmax emits one boundary at the peak distance of the record.
	// Indices are absolute (offset by StartFrame).
	SelectArgmax SelectionPolicy = 1
)

// ParseSelectionPolicy maps activate_candidate_selection onto a policy.
func ParseSelectionPolicy(v int) (SelectionPolicy, error) {
	switch SelectionPolicy(v) {
	case SelectAllAbove, SelectArgmax:
		return SelectionPolicy(v), nil
	}
	return 0, fmt.Errorf("%w: activate_candidate_selection must be 0 or 1, got %d", ErrInvalidConfiguration, v)
}

// ThresholdPoint is one (alpha, beta) pair of a sweep. Beta is 0 in fixed mode.
type ThresholdPoint struct {
	Alpha float64
	Beta  float64
}

// ConfusionCounts are frame-level counts for one video or a whole corpus.
type ConfusionCounts struct {
	TP int
	FP int
	TN int
	FN int
}

// Total returns the number of frames the counts cover.
func (c ConfusionCounts) Total() int {
	return c.TP + c.FP + c.TN + c.FN
}

// Add returns the element-wise sum of c and o.
func (c ConfusionCounts) Add(o ConfusionCounts) ConfusionCounts {
	return ConfusionCounts{
		TP: c.TP + o.TP,
		FP: c.FP + o.FP,
		TN: c.TN + o.TN,
		FN: c.FN + o.FN,
	}
}

// Metrics are the scores derived from a ConfusionCounts value. All fields
// lie in [0, 1].
type Metrics struct {
	Precision float64
	Recall    float64
	Accuracy  float64
	F1        float64
	TPR       float64
	FPR       float64
}

// OverallVideoName labels the corpus aggregate row of a sweep point.
const OverallVideoName = "overall"

// MetricRow is one line of the per-threshold results table.
type MetricRow struct {
	VideoName string
	Point     ThresholdPoint
	Counts    ConfusionCounts
	Metrics   Metrics
}

// NewMetricRow scores counts and packages them as a row.
func NewMetricRow(video string, point ThresholdPoint, counts ConfusionCounts) MetricRow {
	return MetricRow{
		VideoName: video,
		Point:     point,
		Counts:    counts,
		Metrics:   ComputeMetrics(counts),
	}
}
