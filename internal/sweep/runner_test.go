package sweep

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/shotboundary/internal/fsutil"
	"github.com/banshee-data/shotboundary/internal/groundtruth"
	"github.com/banshee-data/shotboundary/internal/monitoring"
	"github.com/banshee-data/shotboundary/internal/rawresult"
	"github.com/banshee-data/shotboundary/internal/sbd"
	"github.com/banshee-data/shotboundary/internal/video"
)

func init() {
	monitoring.SetLogger(nil)
}

// corpus builds three 10-frame videos:
//
//	a: cut at (4,5), detector peaks 0.9 at 4 and 0.4 at 7
//	b: no cut, detector peak 0.6 at 2
//	c: raw result but no annotation (skipped)
func corpus(t *testing.T) (*fsutil.MemoryFileSystem, *rawresult.Store, *groundtruth.Store) {
	t.Helper()
	mfs := fsutil.NewMemoryFileSystem()
	raw, err := rawresult.NewStore(mfs, "/raw", "results_raw_", "csv")
	require.NoError(t, err)

	da := make([]float64, 9)
	da[4], da[7] = 0.9, 0.4
	db := make([]float64, 9)
	db[2] = 0.6
	for _, rec := range []sbd.RawResult{
		{VideoName: "a", StartFrame: 0, EndFrame: 9, Distances: da},
		{VideoName: "b", StartFrame: 0, EndFrame: 9, Distances: db},
		{VideoName: "c", StartFrame: 0, EndFrame: 9, Distances: make([]float64, 9)},
	} {
		require.NoError(t, raw.Save(rec))
	}

	require.NoError(t, groundtruth.Write(mfs, "/gt/a.csv", []sbd.Shot{
		{ID: 1, VideoName: "a", StartFrame: 0, EndFrame: 4},
		{ID: 2, VideoName: "a", StartFrame: 5, EndFrame: 9},
	}))
	require.NoError(t, groundtruth.Write(mfs, "/gt/b.csv", []sbd.Shot{
		{ID: 1, VideoName: "b", StartFrame: 0, EndFrame: 9},
	}))
	return mfs, raw, groundtruth.NewStore(mfs, "/gt")
}

func fixedOptions(t *testing.T, alphas ...float64) Options {
	t.Helper()
	g, err := NewGrid(sbd.ThresholdFixed, alphas, nil)
	require.NoError(t, err)
	return Options{
		Mode:        sbd.ThresholdFixed,
		Policy:      sbd.SelectAllAbove,
		Grid:        g,
		ResultsDir:  "/out",
		SaveResults: true,
	}
}

func TestRunner_FixedSweep(t *testing.T) {
	mfs, raw, gt := corpus(t)
	frames := video.Static{"a": 10, "b": 10, "c": 10}
	r := NewRunner(mfs, raw, gt, frames, fixedOptions(t, 1.0, 0.5, 0.3))

	table, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, table.Overall, 3)

	wantTotals := []sbd.ConfusionCounts{
		{TP: 0, FP: 0, TN: 19, FN: 1},
		{TP: 1, FP: 1, TN: 18, FN: 0},
		{TP: 1, FP: 2, TN: 17, FN: 0},
	}
	for i, want := range wantTotals {
		assert.Equal(t, want, table.Overall[i].Counts, "point %v", table.Overall[i].Point)
		assert.Equal(t, 20, table.Overall[i].Counts.Total())
	}
	// Two scored videos plus the overall row per point; c is skipped.
	assert.Len(t, table.Rows, 9)
	for _, row := range table.Rows {
		assert.NotEqual(t, "c", row.VideoName)
	}

	best, ok := table.Best()
	require.True(t, ok)
	assert.Equal(t, 0.5, best.Point.Alpha)
	assert.InDelta(t, 2.0/3.0, best.Metrics.F1, 1e-12)

	for _, p := range r.Options.Grid.Points() {
		path := "/out/" + ResultFileName(p)
		data, err := mfs.ReadFile(path)
		require.NoError(t, err, path)
		back, err := ReadMetricRows(bytes.NewReader(data), p)
		require.NoError(t, err)
		if diff := cmp.Diff(table.RowsAt(p), back); diff != "" {
			t.Errorf("%s mismatch (-table +file):\n%s", path, diff)
		}
	}
	assert.True(t, mfs.Exists("/out/final_results_th-0.5-0.0.csv"))
	assert.True(t, mfs.Exists("/out/"+SummaryFileName))
}

func TestRunner_ExportShots(t *testing.T) {
	mfs, raw, gt := corpus(t)
	r := NewRunner(mfs, raw, gt, video.Static{"a": 10, "b": 10}, fixedOptions(t, 0.5))

	n, err := r.ExportShots(context.Background(), sbd.ThresholdPoint{Alpha: 0.5}, "/shots")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "c has no frame count and is not exported")

	a, err := mfs.ReadFile("/shots/a.csv")
	require.NoError(t, err)
	assert.Equal(t, "vid_name;shot_id;start;end\na;1;0;4\na;2;5;9\n", string(a))

	b, err := mfs.ReadFile("/shots/b.csv")
	require.NoError(t, err)
	assert.Equal(t, "vid_name;shot_id;start;end\nb;1;0;2\nb;2;3;9\n", string(b))
}

func TestRunner_AdaptiveAndArgmax(t *testing.T) {
	mfs, raw, gt := corpus(t)
	frames := video.Static{"a": 10, "b": 10}

	g, err := NewGrid(sbd.ThresholdAdaptive, []float64{0.5}, []float64{1, 0})
	require.NoError(t, err)
	r := NewRunner(mfs, raw, gt, frames, Options{
		Mode:       sbd.ThresholdAdaptive,
		Policy:     sbd.SelectAllAbove,
		WindowSize: 9,
		Grid:       g,
	})
	table, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, table.Overall, 2)
	for _, row := range table.Overall {
		assert.Equal(t, 20, row.Counts.Total())
	}
	assert.False(t, mfs.Exists("/out"), "nothing is written without SaveResults")

	opts := fixedOptions(t, 1.0)
	opts.Policy = sbd.SelectArgmax
	opts.SaveResults = false
	r = NewRunner(mfs, raw, gt, frames, opts)
	table, err = r.Run(context.Background())
	require.NoError(t, err)
	// argmax ignores alpha: a's peak is the true cut, b's peak is a false alarm.
	assert.Equal(t, sbd.ConfusionCounts{TP: 1, FP: 1, TN: 18}, table.Overall[0].Counts)
}

func TestRunner_FatalErrors(t *testing.T) {
	t.Run("malformed record", func(t *testing.T) {
		mfs, raw, gt := corpus(t)
		require.NoError(t, mfs.WriteFile("/raw/results_raw_b.csv", []byte("b;0;9;0.1;oops\n"), 0644))
		r := NewRunner(mfs, raw, gt, video.Static{"a": 10, "b": 10}, fixedOptions(t, 0.5))

		_, err := r.Run(context.Background())
		assert.ErrorIs(t, err, sbd.ErrMalformedRecord)
		assert.False(t, mfs.Exists("/out/final_results_th-0.5-0.0.csv"), "no partial results file")
	})

	t.Run("video shorter than annotation", func(t *testing.T) {
		mfs, raw, gt := corpus(t)
		r := NewRunner(mfs, raw, gt, video.Static{"a": 5, "b": 10}, fixedOptions(t, 0.5))
		_, err := r.Run(context.Background())
		assert.ErrorIs(t, err, sbd.ErrBadGroundTruth)
	})

	t.Run("adaptive without window", func(t *testing.T) {
		mfs, raw, gt := corpus(t)
		g, err := NewGrid(sbd.ThresholdAdaptive, []float64{0.5}, []float64{0})
		require.NoError(t, err)
		r := NewRunner(mfs, raw, gt, video.Static{}, Options{Mode: sbd.ThresholdAdaptive, Grid: g})
		_, err = r.Run(context.Background())
		assert.ErrorIs(t, err, sbd.ErrInvalidConfiguration)
	})

	t.Run("cancelled", func(t *testing.T) {
		mfs, raw, gt := corpus(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		r := NewRunner(mfs, raw, gt, video.Static{"a": 10, "b": 10}, fixedOptions(t, 0.5))
		_, err := r.Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRunner_DebugLogsShots(t *testing.T) {
	original := monitoring.Logf
	defer func() { monitoring.Logf = original }()
	var lines []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})

	mfs, raw, gt := corpus(t)
	opts := fixedOptions(t, 0.5)
	opts.SaveResults = false
	opts.Debug = true
	r := NewRunner(mfs, raw, gt, video.Static{"a": 10, "b": 10}, opts)
	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, lines, "[sweep] shot a;1;0;4")
	assert.Contains(t, lines, "[sweep] shot b;2;3;9")
}

func TestRunner_ArgmaxPastLastFrame(t *testing.T) {
	original := monitoring.Logf
	defer func() { monitoring.Logf = original }()
	var lines []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})

	mfs, raw, gt := corpus(t)
	// b's record starts at frame 20, so its argmax lands past frame 9.
	db := make([]float64, 9)
	db[2] = 0.6
	require.NoError(t, raw.Save(sbd.RawResult{VideoName: "b", StartFrame: 20, EndFrame: 29, Distances: db}))

	opts := fixedOptions(t, 1.0)
	opts.Policy = sbd.SelectArgmax
	opts.SaveResults = false
	opts.Debug = true
	r := NewRunner(mfs, raw, gt, video.Static{"a": 10, "b": 10}, opts)

	table, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, table.Overall[0].Counts.Total())
	assert.Contains(t, lines, "[sweep] shot a;2;5;9")

	n, err := r.ExportShots(context.Background(), sbd.ThresholdPoint{Alpha: 1.0}, "/shots")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, mfs.Exists("/shots/a.csv"))
	assert.False(t, mfs.Exists("/shots/b.csv"))

	var warned int
	for _, l := range lines {
		if strings.Contains(l, "WARNING: not ") && strings.Contains(l, " shots of b:") {
			warned++
		}
	}
	assert.Equal(t, 2, warned, "one warning from the debug listing, one from the export")
}
