// Package sweep drives the threshold sweep of the shot-boundary evaluator:
// grid expansion, per-video scoring, corpus aggregation and the CSV tables
// written for every threshold point.
package sweep

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/shotboundary/internal/sbd"
)

// maxGridPoints bounds the α×β product of a sweep.
const maxGridPoints = 10000

// RangeSpec defines a floating-point parameter range for sweeping.
type RangeSpec struct {
	Min  float64
	Max  float64
	Step float64
}

// ParseRangeSpec parses a "min:max:step" string into a RangeSpec.
func ParseRangeSpec(s string) (RangeSpec, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return RangeSpec{}, fmt.Errorf("invalid range format %q: expected min:max:step", s)
	}

	lo, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return RangeSpec{}, fmt.Errorf("invalid min value %q: %w", parts[0], err)
	}
	hi, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return RangeSpec{}, fmt.Errorf("invalid max value %q: %w", parts[1], err)
	}
	step, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return RangeSpec{}, fmt.Errorf("invalid step value %q: %w", parts[2], err)
	}
	if step <= 0 {
		return RangeSpec{}, fmt.Errorf("step must be positive, got %f", step)
	}
	return RangeSpec{Min: lo, Max: hi, Step: step}, nil
}

// Descending returns max, max-step, ..., down to min (inclusive), rounded to
// three decimals so 0.05 steps do not accumulate drift. The sweep walks α
// from strict to permissive, so grids are generated high to low.
func (r RangeSpec) Descending() []float64 {
	if r.Step <= 0 || r.Min > r.Max {
		return nil
	}
	n := int(math.Floor((r.Max-r.Min)/r.Step+1e-9)) + 1
	if n > maxGridPoints {
		return nil
	}
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, math.Round((r.Max-float64(i)*r.Step)*1000)/1000)
	}
	return out
}

// ParseGridList parses a comma-separated list of floats or a "min:max:step"
// range. Lists keep their order; ranges are expanded high to low.
func ParseGridList(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if strings.Contains(s, ":") {
		spec, err := ParseRangeSpec(s)
		if err != nil {
			return nil, err
		}
		vals := spec.Descending()
		if len(vals) == 0 {
			return nil, fmt.Errorf("range %q yields no values", s)
		}
		return vals, nil
	}
	return ParseCSVFloat64s(s)
}

// ParseCSVFloat64s parses a comma-separated list of float64 values.
// Returns nil, nil for empty input strings.
func ParseCSVFloat64s(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Grid is the Cartesian threshold grid of a sweep.
type Grid struct {
	Alphas []float64
	Betas  []float64
}

// NewGrid builds the grid for a threshold mode. Fixed mode ignores betas and
// evaluates β = 0 only. Repeated values are rejected: each point owns one
// results file.
func NewGrid(mode sbd.ThresholdMode, alphas, betas []float64) (Grid, error) {
	if len(alphas) == 0 {
		return Grid{}, fmt.Errorf("%w: empty alpha grid", sbd.ErrInvalidConfiguration)
	}
	switch mode {
	case sbd.ThresholdFixed:
		betas = []float64{0}
	case sbd.ThresholdAdaptive:
		if len(betas) == 0 {
			return Grid{}, fmt.Errorf("%w: empty beta grid", sbd.ErrInvalidConfiguration)
		}
	default:
		return Grid{}, fmt.Errorf("%w: unknown threshold_mode %q", sbd.ErrInvalidConfiguration, mode)
	}
	if err := checkDistinct("alpha", alphas); err != nil {
		return Grid{}, err
	}
	if err := checkDistinct("beta", betas); err != nil {
		return Grid{}, err
	}
	if total := int64(len(alphas)) * int64(len(betas)); total > maxGridPoints {
		return Grid{}, fmt.Errorf("%w: %d threshold points exceed the limit of %d",
			sbd.ErrInvalidConfiguration, total, maxGridPoints)
	}
	return Grid{
		Alphas: append([]float64(nil), alphas...),
		Betas:  append([]float64(nil), betas...),
	}, nil
}

// checkDistinct fails with sbd.ErrInvalidConfiguration when vals repeats a
// value. 0 and -0 count as the same value.
func checkDistinct(name string, vals []float64) error {
	seen := make(map[float64]int, len(vals))
	for i, v := range vals {
		if j, ok := seen[v]; ok {
			return fmt.Errorf("%w: %s grid repeats %s at positions %d and %d",
				sbd.ErrInvalidConfiguration, name, FormatFloat(v), j, i)
		}
		seen[v] = i
	}
	return nil
}

// Points enumerates the grid with α as the outer loop.
func (g Grid) Points() []sbd.ThresholdPoint {
	pts := make([]sbd.ThresholdPoint, 0, len(g.Alphas)*len(g.Betas))
	for _, a := range g.Alphas {
		for _, b := range g.Betas {
			pts = append(pts, sbd.ThresholdPoint{Alpha: a, Beta: b})
		}
	}
	return pts
}

// Len returns the number of threshold points.
func (g Grid) Len() int { return len(g.Alphas) * len(g.Betas) }
