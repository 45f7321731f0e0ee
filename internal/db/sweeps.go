package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/shotboundary/internal/sbd"
	"github.com/banshee-data/shotboundary/internal/sweep"
)

// Sweep describes one recorded evaluation run.
type Sweep struct {
	ID          uuid.UUID
	Created     time.Time
	Mode        sbd.ThresholdMode
	Policy      sbd.SelectionPolicy
	WindowSize  int
	RawEncoding string
	VideoCount  int
	ToolVersion string

	// Best is the highest-F1 point. HasBest is false for an empty sweep.
	Best    sbd.MetricRow
	HasBest bool
}

// RecordSweep stores the sweep's overall rows and per-video counts in one
// transaction. A zero ID is generated and a zero Created is taken from
// db.Clock. The stored Sweep is returned.
func (db *DB) RecordSweep(ctx context.Context, s Sweep, table *sweep.Table) (Sweep, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Created.IsZero() {
		s.Created = db.Clock.Now()
	}
	s.Best, s.HasBest = table.Best()

	var bestAlpha, bestBeta, bestF1 sql.NullFloat64
	if s.HasBest {
		bestAlpha = sql.NullFloat64{Float64: s.Best.Point.Alpha, Valid: true}
		bestBeta = sql.NullFloat64{Float64: s.Best.Point.Beta, Valid: true}
		bestF1 = sql.NullFloat64{Float64: s.Best.Metrics.F1, Valid: true}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return s, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sweeps (
			sweep_id, created_unix, threshold_mode, selection_policy, window_size,
			raw_encoding, tool_version, video_count, best_alpha, best_beta, best_f1
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID.String(), s.Created.Unix(), string(s.Mode), int(s.Policy), s.WindowSize,
		s.RawEncoding, s.ToolVersion, s.VideoCount, bestAlpha, bestBeta, bestF1,
	)
	if err != nil {
		return s, fmt.Errorf("insert sweep: %w", err)
	}

	for _, r := range table.Overall {
		m := r.Metrics
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sweep_points (
				sweep_id, alpha, beta, tp, fp, tn, fn,
				precision, recall, accuracy, f1_score, tpr, fpr
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID.String(), r.Point.Alpha, r.Point.Beta,
			r.Counts.TP, r.Counts.FP, r.Counts.TN, r.Counts.FN,
			m.Precision, m.Recall, m.Accuracy, m.F1, m.TPR, m.FPR,
		)
		if err != nil {
			return s, fmt.Errorf("insert point (%g, %g): %w", r.Point.Alpha, r.Point.Beta, err)
		}
	}

	for _, r := range table.Rows {
		if r.VideoName == sbd.OverallVideoName {
			continue
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sweep_videos (sweep_id, alpha, beta, vid_name, tp, fp, tn, fn)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID.String(), r.Point.Alpha, r.Point.Beta, r.VideoName,
			r.Counts.TP, r.Counts.FP, r.Counts.TN, r.Counts.FN,
		)
		if err != nil {
			return s, fmt.Errorf("insert video row %s: %w", r.VideoName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return s, err
	}
	logger.Printf("Recorded sweep %s (%d points)", s.ID, len(table.Overall))
	return s, nil
}

const sweepColumns = `sweep_id, created_unix, threshold_mode, selection_policy, window_size,
	raw_encoding, tool_version, video_count, best_alpha, best_beta, best_f1`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSweep(row rowScanner) (Sweep, error) {
	var (
		s                           Sweep
		id, mode                    string
		created                     int64
		policy                      int
		bestAlpha, bestBeta, bestF1 sql.NullFloat64
	)
	err := row.Scan(&id, &created, &mode, &policy, &s.WindowSize,
		&s.RawEncoding, &s.ToolVersion, &s.VideoCount, &bestAlpha, &bestBeta, &bestF1)
	if err != nil {
		return s, err
	}
	if s.ID, err = uuid.Parse(id); err != nil {
		return s, fmt.Errorf("sweep id %q: %w", id, err)
	}
	s.Created = time.Unix(created, 0)
	s.Mode = sbd.ThresholdMode(mode)
	s.Policy = sbd.SelectionPolicy(policy)
	if bestF1.Valid {
		s.HasBest = true
		s.Best = sbd.MetricRow{
			VideoName: sbd.OverallVideoName,
			Point:     sbd.ThresholdPoint{Alpha: bestAlpha.Float64, Beta: bestBeta.Float64},
			Metrics:   sbd.Metrics{F1: bestF1.Float64},
		}
	}
	return s, nil
}

// GetSweep returns one sweep. A missing sweep is sbd.ErrNotFound.
func (db *DB) GetSweep(ctx context.Context, id uuid.UUID) (Sweep, error) {
	row := db.QueryRowContext(ctx, `SELECT `+sweepColumns+` FROM sweeps WHERE sweep_id = ?`, id.String())
	s, err := scanSweep(row)
	if errors.Is(err, sql.ErrNoRows) {
		return s, fmt.Errorf("sweep %s: %w", id, sbd.ErrNotFound)
	}
	return s, err
}

// ListSweeps returns the most recent sweeps first. limit <= 0 returns all.
func (db *DB) ListSweeps(ctx context.Context, limit int) ([]Sweep, error) {
	query := `SELECT ` + sweepColumns + ` FROM sweeps ORDER BY created_unix DESC, sweep_id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sweep
	for rows.Next() {
		s, err := scanSweep(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SweepCurve returns the overall rows of a sweep in curve order.
func (db *DB) SweepCurve(ctx context.Context, id uuid.UUID) ([]sbd.MetricRow, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT alpha, beta, tp, fp, tn, fn FROM sweep_points
		 WHERE sweep_id = ? ORDER BY alpha DESC, beta DESC`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sbd.MetricRow
	for rows.Next() {
		var p sbd.ThresholdPoint
		var c sbd.ConfusionCounts
		if err := rows.Scan(&p.Alpha, &p.Beta, &c.TP, &c.FP, &c.TN, &c.FN); err != nil {
			return nil, err
		}
		out = append(out, sbd.NewMetricRow(sbd.OverallVideoName, p, c))
	}
	return out, rows.Err()
}

// VideoCounts returns the per-video confusion counts of one point.
func (db *DB) VideoCounts(ctx context.Context, id uuid.UUID, p sbd.ThresholdPoint) (map[string]sbd.ConfusionCounts, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT vid_name, tp, fp, tn, fn FROM sweep_videos
		 WHERE sweep_id = ? AND alpha = ? AND beta = ?`, id.String(), p.Alpha, p.Beta)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]sbd.ConfusionCounts)
	for rows.Next() {
		var name string
		var c sbd.ConfusionCounts
		if err := rows.Scan(&name, &c.TP, &c.FP, &c.TN, &c.FN); err != nil {
			return nil, err
		}
		out[name] = c
	}
	return out, rows.Err()
}

// DeleteSweep removes a sweep and its rows.
func (db *DB) DeleteSweep(ctx context.Context, id uuid.UUID) error {
	res, err := db.ExecContext(ctx, `DELETE FROM sweeps WHERE sweep_id = ?`, id.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("sweep %s: %w", id, sbd.ErrNotFound)
	}
	return nil
}
