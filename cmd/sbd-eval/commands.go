package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/banshee-data/shotboundary/internal/config"
	"github.com/banshee-data/shotboundary/internal/curves"
	"github.com/banshee-data/shotboundary/internal/db"
	"github.com/banshee-data/shotboundary/internal/fsutil"
	"github.com/banshee-data/shotboundary/internal/rawresult"
	"github.com/banshee-data/shotboundary/internal/sbd"
	"github.com/banshee-data/shotboundary/internal/sweep"
)

// replot rebuilds the PR/ROC curves and the HTML report of a finished sweep
// from the per-threshold files in dir. A file without an overall row gets
// one summed from its video rows.
func replot(fsys fsutil.FileSystem, dir string) (*sweep.Table, error) {
	names, err := fsys.ListFiles(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: results directory %s", sbd.ErrNotFound, dir)
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	table := &sweep.Table{}
	var points []sbd.ThresholdPoint
	for _, name := range names {
		p, err := sweep.ParseResultFileName(name)
		if err != nil {
			continue
		}
		path := filepath.Join(dir, name)
		data, err := fsys.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		rows, err := sweep.ReadMetricRows(bytes.NewReader(data), p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		table.Rows = append(table.Rows, rows...)
		points = append(points, p)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no per-threshold results in %s", sbd.ErrNotFound, dir)
	}

	for _, p := range points {
		table.Overall = append(table.Overall, overallRow(p, table.RowsAt(p)))
	}

	curve := table.Curve()
	if err := curves.Render(curves.NewPNGSink(fsys, dir), curve); err != nil {
		return nil, err
	}
	subtitle := fmt.Sprintf("replot of %s points=%d", dir, len(curve))
	if err := writeReport(fsys, dir, curve, subtitle); err != nil {
		return nil, err
	}
	log.Printf("Replotted %d threshold points from %s", len(curve), dir)
	return table, nil
}

func overallRow(p sbd.ThresholdPoint, rows []sbd.MetricRow) sbd.MetricRow {
	var totals sbd.ConfusionCounts
	for _, r := range rows {
		if r.VideoName == sbd.OverallVideoName {
			return r
		}
		totals = totals.Add(r.Counts)
	}
	return sbd.NewMetricRow(sbd.OverallVideoName, p, totals)
}

func openResultsDB(path string) (*db.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("results_db is not set: %w", sbd.ErrInvalidConfiguration)
	}
	return db.NewDB(path)
}

func parseSweepID(id string) (uuid.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: sweep id %q: %v", sbd.ErrInvalidConfiguration, id, err)
	}
	return u, nil
}

// showSweep prints one recorded sweep: its settings, the curve and the
// per-video counts at the best point.
func showSweep(ctx context.Context, path, id string) error {
	sweepID, err := parseSweepID(id)
	if err != nil {
		return err
	}
	database, err := openResultsDB(path)
	if err != nil {
		return err
	}
	defer database.Close()

	s, err := database.GetSweep(ctx, sweepID)
	if err != nil {
		return err
	}
	curve, err := database.SweepCurve(ctx, sweepID)
	if err != nil {
		return err
	}

	fmt.Printf("sweep %s\n", s.ID)
	fmt.Printf("  created     %s\n", s.Created.Format("2006-01-02 15:04:05"))
	fmt.Printf("  mode        %s (policy %d, window %d)\n", s.Mode, s.Policy, s.WindowSize)
	fmt.Printf("  raw         %s, %d videos\n", s.RawEncoding, s.VideoCount)
	if s.ToolVersion != "" {
		fmt.Printf("  version     %s\n", s.ToolVersion)
	}
	fmt.Printf("\n%6s  %6s  %6s  %6s  %6s  %6s  %6s\n", "alpha", "beta", "p", "r", "f1", "tpr", "fpr")
	for _, r := range curve {
		fmt.Printf("%6s  %6s  %6.4f  %6.4f  %6.4f  %6.4f  %6.4f\n",
			sweep.FormatFloat(r.Point.Alpha), sweep.FormatFloat(r.Point.Beta),
			r.Metrics.Precision, r.Metrics.Recall, r.Metrics.F1, r.Metrics.TPR, r.Metrics.FPR)
	}
	if !s.HasBest {
		return nil
	}

	counts, err := database.VideoCounts(ctx, sweepID, s.Best.Point)
	if err != nil {
		return err
	}
	videos := make([]string, 0, len(counts))
	for v := range counts {
		videos = append(videos, v)
	}
	sort.Strings(videos)
	fmt.Printf("\nbest alpha=%s beta=%s f1=%.4f\n",
		sweep.FormatFloat(s.Best.Point.Alpha), sweep.FormatFloat(s.Best.Point.Beta), s.Best.Metrics.F1)
	for _, v := range videos {
		c := counts[v]
		fmt.Printf("  %-24s tp=%d fp=%d tn=%d fn=%d\n", v, c.TP, c.FP, c.TN, c.FN)
	}
	return nil
}

func deleteSweep(ctx context.Context, path, id string) error {
	sweepID, err := parseSweepID(id)
	if err != nil {
		return err
	}
	database, err := openResultsDB(path)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.DeleteSweep(ctx, sweepID); err != nil {
		return err
	}
	log.Printf("Deleted sweep %s from %s", sweepID, path)
	return nil
}

// migrateDB applies "up", "down" (one step) or "version" to the results
// database without the automatic upgrade NewDB performs.
func migrateDB(path, action string) error {
	if path == "" {
		return fmt.Errorf("results_db is not set: %w", sbd.ErrInvalidConfiguration)
	}
	database, err := db.OpenDB(path)
	if err != nil {
		return err
	}
	defer database.Close()

	migrations := db.MigrationsFS()
	switch action {
	case "up":
		err = database.MigrateUp(migrations)
	case "down":
		err = database.MigrateDown(migrations)
	case "version":
	default:
		return fmt.Errorf("%w: unknown migrate action %q", sbd.ErrInvalidConfiguration, action)
	}
	if err != nil {
		return err
	}

	version, dirty, err := database.MigrateVersion(migrations)
	if err != nil {
		return err
	}
	log.Printf("%s at schema version %d (dirty: %v)", path, version, dirty)
	return nil
}

// convertRaw rewrites every raw result of cfg's store in encoding under dir
// and returns the number of records written.
func convertRaw(fsys fsutil.FileSystem, cfg *config.EvalConfig, encoding, dir string) (int, error) {
	src, err := rawresult.NewStore(fsys, cfg.GetPathRawResultsEval(), cfg.GetPathPrefixRawResults(), cfg.GetPathPostfixRawResults())
	if err != nil {
		return 0, err
	}
	dst, err := rawresult.NewStore(fsys, dir, cfg.GetPathPrefixRawResults(), encoding)
	if err != nil {
		return 0, err
	}
	if src.Path("x") == dst.Path("x") {
		return 0, fmt.Errorf("%w: converting %s onto itself", sbd.ErrInvalidConfiguration, dir)
	}

	videos, err := src.ListVideos()
	if err != nil {
		return 0, err
	}
	for _, v := range videos {
		rec, err := src.Load(v)
		if err != nil {
			return 0, err
		}
		if err := dst.Save(rec); err != nil {
			return 0, err
		}
	}
	log.Printf("Converted %d raw results to %s in %s", len(videos), encoding, dir)
	return len(videos), nil
}
