// Command sbd-eval sweeps shot-boundary thresholds over a corpus of raw
// detector results and scores them against annotated shots.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/banshee-data/shotboundary/internal/config"
	"github.com/banshee-data/shotboundary/internal/curves"
	"github.com/banshee-data/shotboundary/internal/db"
	"github.com/banshee-data/shotboundary/internal/fsutil"
	"github.com/banshee-data/shotboundary/internal/groundtruth"
	"github.com/banshee-data/shotboundary/internal/rawresult"
	"github.com/banshee-data/shotboundary/internal/sbd"
	"github.com/banshee-data/shotboundary/internal/sweep"
	"github.com/banshee-data/shotboundary/internal/timeutil"
	"github.com/banshee-data/shotboundary/internal/version"
	"github.com/banshee-data/shotboundary/internal/video"
)

// clock times the sweep and stamps recorded sweeps.
var clock timeutil.Clock = timeutil.RealClock{}

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "Evaluation config file (.yaml, .yml or .json)")
	alphaList := flag.String("alpha", "", "Alpha values: comma list (e.g. 0.5,0.4) or range start:end:step")
	betaList := flag.String("beta", "", "Beta values for adaptive mode: comma list or range start:end:step")
	output := flag.String("output", "", "Override path_eval_results")
	history := flag.Int("history", 0, "Print the N most recent sweeps from results_db and exit")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		fmt.Printf("sbd-eval %s\n", version.String())
		return
	}

	command := flag.Arg(0)
	args := flag.Args()
	if len(args) > 0 {
		args = args[1:]
	}

	// replot works on a results directory alone and needs no config.
	if command == "replot" {
		if len(args) != 1 {
			log.Fatal("Usage: sbd-eval replot <results_dir>")
		}
		if _, err := replot(fsutil.OSFileSystem{}, args[0]); err != nil {
			log.Fatalf("Replot failed: %v", err)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", *configPath, err)
	}
	if *output != "" {
		cfg.PathEvalResults = output
	}
	if *alphaList != "" {
		if cfg.AlphaGrid, err = sweep.ParseGridList(*alphaList); err != nil {
			log.Fatalf("Invalid -alpha: %v", err)
		}
	}
	if *betaList != "" {
		if cfg.BetaGrid, err = sweep.ParseGridList(*betaList); err != nil {
			log.Fatalf("Invalid -beta: %v", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch command {
	case "":
	case "show", "delete":
		if len(args) != 1 {
			log.Fatalf("Usage: sbd-eval %s <sweep_id>", command)
		}
		fn := showSweep
		if command == "delete" {
			fn = deleteSweep
		}
		if err := fn(ctx, cfg.GetResultsDB(), args[0]); err != nil {
			log.Fatalf("%s %s: %v", command, args[0], err)
		}
		return
	case "migrate":
		if len(args) != 1 {
			log.Fatal("Usage: sbd-eval migrate up|down|version")
		}
		if err := migrateDB(cfg.GetResultsDB(), args[0]); err != nil {
			log.Fatalf("Migration %s failed: %v", args[0], err)
		}
		return
	case "convert":
		if len(args) < 1 || len(args) > 2 {
			log.Fatal("Usage: sbd-eval convert csv|npy [output_dir]")
		}
		dir := cfg.GetPathRawResultsEval()
		if len(args) == 2 {
			dir = args[1]
		}
		if _, err := convertRaw(fsutil.OSFileSystem{}, cfg, args[0], dir); err != nil {
			log.Fatalf("Conversion failed: %v", err)
		}
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if *history > 0 {
		if err := printHistory(ctx, cfg.GetResultsDB(), *history); err != nil {
			log.Fatalf("Failed to read sweep history: %v", err)
		}
		return
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("Evaluation failed: %v", err)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `sbd-eval - shot-boundary detection threshold sweep

Usage: sbd-eval [flags] [command]

Commands:
  (none)                   Run the sweep described by -config
  replot <results_dir>     Redraw curves from existing final_results_th-*.csv files
  show <sweep_id>          Print a recorded sweep from results_db
  delete <sweep_id>        Remove a recorded sweep from results_db
  migrate up|down|version  Manage the results_db schema
  convert csv|npy [dir]    Rewrite the raw results in another encoding

Flags:
`)
	flag.PrintDefaults()
}

func run(ctx context.Context, cfg *config.EvalConfig) error {
	fsys := fsutil.OSFileSystem{}

	mode, err := sbd.ParseThresholdMode(cfg.GetThresholdMode())
	if err != nil {
		return err
	}
	policy, err := sbd.ParseSelectionPolicy(cfg.GetActivateCandidateSelection())
	if err != nil {
		return err
	}
	grid, err := sweep.NewGrid(mode, cfg.GetAlphaGrid(), cfg.GetBetaGrid())
	if err != nil {
		return err
	}

	records, err := rawresult.NewStore(fsys, cfg.GetPathRawResultsEval(), cfg.GetPathPrefixRawResults(), cfg.GetPathPostfixRawResults())
	if err != nil {
		return err
	}
	truth := groundtruth.NewStore(fsys, cfg.GetPathGTData())

	var frames video.FrameCounter
	switch cfg.GetFrameCountSource() {
	case config.FrameCountGroundTruth:
		frames = video.FromGroundTruth{Shots: truth}
	default:
		frames = video.NewFFProbe(fsys, cfg.GetFFProbePath(), cfg.GetPathVideos(), cfg.GetVideoExtension(), nil)
	}

	resultsDir := cfg.GetPathEvalResults()
	runner := sweep.NewRunner(fsys, records, truth, frames, sweep.Options{
		Mode:        mode,
		Policy:      policy,
		WindowSize:  cfg.GetWindowSize(),
		Grid:        grid,
		ResultsDir:  resultsDir,
		SaveResults: cfg.GetSaveEvalResults(),
		Debug:       cfg.GetDebugFlag(),
	})

	log.Printf("Sweeping %d threshold points (mode=%s policy=%d) over %s",
		grid.Len(), mode, policy, cfg.GetPathRawResultsEval())
	started := clock.Now()
	table, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	log.Printf("Sweep finished in %v", clock.Since(started).Round(time.Millisecond))

	curve := table.Curve()
	if err := curves.Render(curves.NewPNGSink(fsys, resultsDir), curve); err != nil {
		log.Printf("WARNING: curves not written: %v", err)
	}
	if cfg.GetSaveHTMLReport() {
		subtitle := fmt.Sprintf("mode=%s policy=%d points=%d", mode, policy, len(curve))
		if err := writeReport(fsys, resultsDir, curve, subtitle); err != nil {
			log.Printf("WARNING: HTML report not written: %v", err)
		}
	}

	best, ok := table.Best()
	if !ok {
		log.Printf("No threshold point produced results")
		return nil
	}

	if path := cfg.GetResultsDB(); path != "" {
		videos, err := records.ListVideos()
		if err != nil {
			return err
		}
		if err := recordSweep(ctx, path, table, db.Sweep{
			Mode:        mode,
			Policy:      policy,
			WindowSize:  cfg.GetWindowSize(),
			RawEncoding: cfg.GetPathPostfixRawResults(),
			VideoCount:  len(videos),
			ToolVersion: version.Version,
		}); err != nil {
			return fmt.Errorf("record sweep in %s: %w", path, err)
		}
	}

	if cfg.GetSaveFinalResults() {
		if _, err := runner.ExportShots(ctx, best.Point, cfg.GetPathFinalResults()); err != nil {
			return err
		}
	}

	m := best.Metrics
	fmt.Printf("best alpha=%s beta=%s precision=%.4f recall=%.4f f1=%.4f (tp=%d fp=%d tn=%d fn=%d)\n",
		sweep.FormatFloat(best.Point.Alpha), sweep.FormatFloat(best.Point.Beta),
		m.Precision, m.Recall, m.F1,
		best.Counts.TP, best.Counts.FP, best.Counts.TN, best.Counts.FN)
	return nil
}

func writeReport(fsys fsutil.FileSystem, dir string, rows []sbd.MetricRow, subtitle string) error {
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path := filepath.Join(dir, curves.ReportFileName)
	w, err := fsys.Create(path)
	if err != nil {
		return err
	}
	err = curves.WriteHTMLReport(w, rows, subtitle)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		log.Printf("Wrote %s", path)
	}
	return err
}

func recordSweep(ctx context.Context, path string, table *sweep.Table, meta db.Sweep) error {
	database, err := db.NewDB(path)
	if err != nil {
		return err
	}
	defer database.Close()
	database.Clock = clock

	s, err := database.RecordSweep(ctx, meta, table)
	if err != nil {
		return err
	}
	log.Printf("Recorded sweep %s in %s", s.ID, path)
	return nil
}

func printHistory(ctx context.Context, path string, limit int) error {
	database, err := openResultsDB(path)
	if err != nil {
		return err
	}
	defer database.Close()

	sweeps, err := database.ListSweeps(ctx, limit)
	if err != nil {
		return err
	}
	fmt.Printf("%-36s  %-19s  %-8s  %6s  %6s  %6s  %6s\n", "sweep", "created", "mode", "videos", "alpha", "beta", "f1")
	for _, s := range sweeps {
		alpha, beta, f1 := "-", "-", "-"
		if s.HasBest {
			alpha = sweep.FormatFloat(s.Best.Point.Alpha)
			beta = sweep.FormatFloat(s.Best.Point.Beta)
			f1 = fmt.Sprintf("%.4f", s.Best.Metrics.F1)
		}
		fmt.Printf("%-36s  %-19s  %-8s  %6d  %6s  %6s  %6s\n",
			s.ID, s.Created.Format("2006-01-02 15:04:05"), s.Mode, s.VideoCount, alpha, beta, f1)
	}
	return nil
}
