package sweep

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/shotboundary/internal/fsutil"
	"github.com/banshee-data/shotboundary/internal/groundtruth"
	"github.com/banshee-data/shotboundary/internal/monitoring"
	"github.com/banshee-data/shotboundary/internal/sbd"
	"github.com/banshee-data/shotboundary/internal/security"
	"github.com/banshee-data/shotboundary/internal/video"
)

var logger = monitoring.NewLogger("sweep")

// RecordSource lists and loads raw detector results.
type RecordSource interface {
	ListVideos() ([]string, error)
	Load(video string) (sbd.RawResult, error)
}

// ShotSource loads annotated ground-truth shots.
type ShotSource interface {
	Load(video string) ([]sbd.Shot, error)
}

// Options configure one sweep.
type Options struct {
	Mode       sbd.ThresholdMode
	Policy     sbd.SelectionPolicy
	WindowSize int
	Grid       Grid

	// ResultsDir receives the per-threshold files and the summary when
	// SaveResults is set.
	ResultsDir  string
	SaveResults bool

	// Debug logs the reconstructed shots of every video.
	Debug bool
}

// Runner evaluates raw results against ground truth over a threshold grid.
// It is single-threaded; a Runner must not be shared between goroutines.
type Runner struct {
	Records RecordSource
	Truth   ShotSource
	Frames  video.FrameCounter
	FS      fsutil.FileSystem
	Options Options
}

// NewRunner returns a Runner. Frame counts are cached for the lifetime of
// the Runner.
func NewRunner(fsys fsutil.FileSystem, records RecordSource, truth ShotSource, frames video.FrameCounter, opts Options) *Runner {
	return &Runner{
		Records: records,
		Truth:   truth,
		Frames:  video.NewCached(frames),
		FS:      fsys,
		Options: opts,
	}
}

// Run sweeps every grid point over every listed video. Missing files skip
// the affected video at that point; any other error aborts the sweep and no
// file is written for the point that failed.
func (r *Runner) Run(ctx context.Context) (*Table, error) {
	if r.Options.Mode == sbd.ThresholdAdaptive && r.Options.WindowSize < 1 {
		return nil, fmt.Errorf("%w: window_size must be >= 1, got %d", sbd.ErrInvalidConfiguration, r.Options.WindowSize)
	}
	videos, err := r.Records.ListVideos()
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		logger.Warnf("no raw results found; every point will score zero frames")
	}
	if r.Options.SaveResults {
		if err := r.FS.MkdirAll(r.Options.ResultsDir, 0755); err != nil {
			return nil, fmt.Errorf("create %s: %w", r.Options.ResultsDir, err)
		}
	}

	points := r.Options.Grid.Points()
	logger.Printf("Sweep start: %d videos, %d threshold points, mode=%s", len(videos), len(points), r.Options.Mode)

	table := &Table{Mode: r.Options.Mode}
	for i, p := range points {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("sweep stopped at point %d/%d: %w", i+1, len(points), err)
		}

		rows, overall, err := r.evaluatePoint(ctx, videos, p)
		if err != nil {
			return nil, err
		}
		rows = append(rows, overall)

		if r.Options.SaveResults {
			path := filepath.Join(r.Options.ResultsDir, ResultFileName(p))
			data, err := EncodeMetricRows(rows)
			if err != nil {
				return nil, fmt.Errorf("encode %s: %w", path, err)
			}
			if err := r.FS.WriteFile(path, data, 0644); err != nil {
				return nil, fmt.Errorf("write %s: %w", path, err)
			}
		}

		table.Rows = append(table.Rows, rows...)
		table.Overall = append(table.Overall, overall)
		logger.Printf("Point %d/%d alpha=%s beta=%s: tp=%d fp=%d fn=%d p=%.4f r=%.4f f1=%.4f",
			i+1, len(points), FormatFloat(p.Alpha), FormatFloat(p.Beta),
			overall.Counts.TP, overall.Counts.FP, overall.Counts.FN,
			overall.Metrics.Precision, overall.Metrics.Recall, overall.Metrics.F1)
	}

	if r.Options.SaveResults {
		if err := r.writeSummary(table); err != nil {
			return nil, err
		}
	}
	logger.Printf("Sweep complete: %d threshold points evaluated", len(points))
	return table, nil
}

func (r *Runner) writeSummary(table *Table) error {
	path := filepath.Join(r.Options.ResultsDir, SummaryFileName)
	w, err := r.FS.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	err = WriteSummary(w, table.Overall)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// evaluatePoint scores all videos at one point and returns the per-video
// rows plus the corpus row.
func (r *Runner) evaluatePoint(ctx context.Context, videos []string, p sbd.ThresholdPoint) ([]sbd.MetricRow, sbd.MetricRow, error) {
	var rows []sbd.MetricRow
	var totals sbd.ConfusionCounts
	for _, v := range videos {
		counts, err := r.evaluateVideo(ctx, v, p)
		if errors.Is(err, sbd.ErrNotFound) {
			logger.Warnf("skipping %s at alpha=%s beta=%s: %v", v, FormatFloat(p.Alpha), FormatFloat(p.Beta), err)
			continue
		}
		if err != nil {
			return nil, sbd.MetricRow{}, err
		}
		rows = append(rows, sbd.NewMetricRow(v, p, counts))
		totals = totals.Add(counts)
	}
	return rows, sbd.NewMetricRow(sbd.OverallVideoName, p, totals), nil
}

func (r *Runner) evaluateVideo(ctx context.Context, v string, p sbd.ThresholdPoint) (sbd.ConfusionCounts, error) {
	pred, n, err := r.Predict(ctx, v, p)
	if err != nil {
		return sbd.ConfusionCounts{}, err
	}

	shots, err := r.Truth.Load(v)
	if err != nil {
		return sbd.ConfusionCounts{}, err
	}
	gt := sbd.ShotsToBoundaries(shots)
	if err := sbd.ValidateGroundTruth(v, gt, n); err != nil {
		return sbd.ConfusionCounts{}, err
	}

	if r.Options.Debug {
		if err := r.logShots(v, pred, n); err != nil {
			return sbd.ConfusionCounts{}, err
		}
	}

	counts := sbd.AlignFrames(pred, gt, n)
	if counts.Total() != n {
		return sbd.ConfusionCounts{}, fmt.Errorf("%s: aligned %d frames of %d", v, counts.Total(), n)
	}
	return counts, nil
}

// Predict runs thresholding and candidate selection for one video and
// returns its boundary events together with the video's frame count.
func (r *Runner) Predict(ctx context.Context, v string, p sbd.ThresholdPoint) ([]sbd.BoundaryEvent, int, error) {
	n, err := r.Frames.FrameCount(ctx, v)
	if err != nil {
		return nil, 0, err
	}
	rec, err := r.Records.Load(v)
	if err != nil {
		return nil, 0, err
	}
	var th []float64
	if r.Options.Policy == sbd.SelectAllAbove {
		th, err = sbd.ComputeThresholds(rec.Distances, r.Options.Mode, p.Alpha, p.Beta, r.Options.WindowSize)
		if err != nil {
			return nil, 0, err
		}
	}
	events, err := sbd.SelectCandidates(rec, th, r.Options.Policy)
	if err != nil {
		return nil, 0, err
	}
	return events, n, nil
}

// logShots prints the shots of one video. Boundaries outside the video are
// reported and the listing is skipped; scoring is unaffected.
func (r *Runner) logShots(v string, events []sbd.BoundaryEvent, n int) error {
	shots, err := sbd.ReconstructShots(v, events, n)
	if errors.Is(err, sbd.ErrBadBoundaries) {
		logger.Warnf("not listing shots of %s: %v", v, err)
		return nil
	}
	if err != nil {
		return err
	}
	for _, s := range shots {
		logger.Printf("shot %s", s)
	}
	return nil
}

// ExportShots writes the reconstructed shot list of every video at point p
// to <dir>/<video>.csv and returns the number of files written. Videos whose
// boundaries fall outside their frame range are skipped with a warning.
func (r *Runner) ExportShots(ctx context.Context, p sbd.ThresholdPoint, dir string) (int, error) {
	videos, err := r.Records.ListVideos()
	if err != nil {
		return 0, err
	}
	written := 0
	for _, v := range videos {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		events, n, err := r.Predict(ctx, v, p)
		if errors.Is(err, sbd.ErrNotFound) {
			logger.Warnf("not exporting shots of %s: %v", v, err)
			continue
		}
		if err != nil {
			return written, err
		}
		shots, err := sbd.ReconstructShots(v, events, n)
		if errors.Is(err, sbd.ErrBadBoundaries) {
			logger.Warnf("not exporting shots of %s: %v", v, err)
			continue
		}
		if err != nil {
			return written, err
		}
		path := filepath.Join(dir, v+".csv")
		if err := security.ValidatePathWithinDirectory(path, dir); err != nil {
			return written, err
		}
		if err := groundtruth.Write(r.FS, path, shots); err != nil {
			return written, err
		}
		written++
	}
	logger.Printf("Exported shot lists of %d videos at alpha=%s beta=%s to %s",
		written, FormatFloat(p.Alpha), FormatFloat(p.Beta), dir)
	return written, nil
}
