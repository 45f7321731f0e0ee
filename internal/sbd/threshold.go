package sbd

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// ComputeThresholds builds the per-frame threshold vector for distances.
//
// In fixed mode every element equals alpha and beta is ignored. In adaptive
// mode the distances are cut into consecutive windows of windowSize frames
// (the last window may be shorter) and each window gets
// mean + alpha + beta*stddev, using the population standard deviation.
// windowSize is only checked in adaptive mode.
func ComputeThresholds(distances []float64, mode ThresholdMode, alpha, beta float64, windowSize int) ([]float64, error) {
	switch mode {
	case ThresholdFixed:
		out := make([]float64, len(distances))
		for i := range out {
			out[i] = alpha
		}
		return out, nil

	case ThresholdAdaptive:
		if windowSize <= 0 {
			return nil, fmt.Errorf("%w: window_size must be >= 1, got %d", ErrInvalidConfiguration, windowSize)
		}
		out := make([]float64, len(distances))
		for start := 0; start < len(distances); start += windowSize {
			end := min(start+windowSize, len(distances))
			mean, std := stat.PopMeanStdDev(distances[start:end], nil)
			tau := mean + alpha + beta*std
			for i := start; i < end; i++ {
				out[i] = tau
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unknown threshold_mode %q", ErrInvalidConfiguration, mode)
}
